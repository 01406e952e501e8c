package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and surrounding whitespace and returns plain text.
// bluemonday escapes what it keeps, so entities are decoded back; callers
// store and count the literal characters.
// Use for: event names, locations, speakers, feedback.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// TextPtr sanitizes *input in place when it is set.
func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	clean := Text(*input)
	return &clean
}
