package events

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/sanitize"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	minNameLength     = 3
	maxNameLength     = 70
	minLocationLength = 5
	maxLocationLength = 100
	minSpeakerLength  = 3
	maxSpeakerLength  = 100
	maxFeedbackLength = 1000

	minDuration = 15 * time.Minute
	maxDuration = 12 * time.Hour
	// minLeadTime is how far in the future an event must start.
	minLeadTime = 5 * time.Minute
)

var ErrImageRequired = apperr.Validation("image", "image is required")

type CreateInput struct {
	Name      string
	Date      string
	StartTime string
	EndTime   string
	Location  string
	Speaker   string
	Image     []byte
}

// EditInput carries only the fields the caller sent.
type EditInput struct {
	Name      *string
	Date      *string
	StartTime *string
	EndTime   *string
	Location  *string
	Speaker   *string
	Image     []byte
}

func (in CreateInput) sanitized() CreateInput {
	in.Name = sanitize.Text(in.Name)
	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.Location = sanitize.Text(in.Location)
	in.Speaker = sanitize.Text(in.Speaker)
	return in
}

func (in EditInput) sanitized() EditInput {
	in.Name = sanitize.TextPtr(in.Name)
	in.Date = trimPtr(in.Date)
	in.StartTime = trimPtr(in.StartTime)
	in.EndTime = trimPtr(in.EndTime)
	in.Location = sanitize.TextPtr(in.Location)
	in.Speaker = sanitize.TextPtr(in.Speaker)
	return in
}

// Empty reports whether the edit changes nothing.
func (in EditInput) Empty() bool {
	return in.Name == nil && in.Date == nil && in.StartTime == nil && in.EndTime == nil &&
		in.Location == nil && in.Speaker == nil && len(in.Image) == 0
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func validateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return apperr.Validation(field, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return nil
}

func validateText(name, location, speaker string) error {
	if err := validateLength("eventName", name, minNameLength, maxNameLength); err != nil {
		return err
	}
	if err := validateLength("location", location, minLocationLength, maxLocationLength); err != nil {
		return err
	}
	return validateLength("speaker", speaker, minSpeakerLength, maxSpeakerLength)
}

// ValidateSchedule checks the combined date and time rules in loc.
func ValidateSchedule(date, startTime, endTime string, now time.Time, loc *time.Location) error {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return apperr.Validation("date", "date must use the YYYY-MM-DD format")
	}
	start, err := time.Parse(TimeLayout, startTime)
	if err != nil || len(startTime) != len(TimeLayout) {
		return apperr.Validation("startTime", "startTime must use the HH:MM format")
	}
	end, err := time.Parse(TimeLayout, endTime)
	if err != nil || len(endTime) != len(TimeLayout) {
		return apperr.Validation("endTime", "endTime must use the HH:MM format")
	}

	duration := end.Sub(start)
	switch {
	case duration <= 0:
		return apperr.Validation("endTime", "endTime must be after startTime")
	case duration < minDuration:
		return apperr.Validation("endTime", "event must last at least 15 minutes")
	case duration > maxDuration:
		return apperr.Validation("endTime", "event must not last longer than 12 hours")
	}

	now = now.In(loc)
	startsAt := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, loc)
	if !startsAt.After(now.Add(minLeadTime)) {
		return apperr.Validation("date", "event date and time must be in the future")
	}
	if day.After(now.AddDate(1, 0, 0)) {
		return apperr.Validation("date", "event date must not be more than one year ahead")
	}
	return nil
}

// ValidateFeedback trims feedback and checks its length.
func ValidateFeedback(feedback string) (string, error) {
	clean := sanitize.Text(feedback)
	if err := validateLength("feedback", clean, 1, maxFeedbackLength); err != nil {
		return "", err
	}
	return clean, nil
}

func (in CreateInput) validate(now time.Time, loc *time.Location) error {
	if err := validateText(in.Name, in.Location, in.Speaker); err != nil {
		return err
	}
	return ValidateSchedule(in.Date, in.StartTime, in.EndTime, now, loc)
}

// apply merges the edit into a copy of current.
func (in EditInput) apply(current Event) Event {
	merged := current
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Date != nil {
		merged.Date = *in.Date
	}
	if in.StartTime != nil {
		merged.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		merged.EndTime = *in.EndTime
	}
	if in.Location != nil {
		merged.Location = *in.Location
	}
	if in.Speaker != nil {
		merged.Speaker = *in.Speaker
	}
	return merged
}

// validateFields checks the fields that do not depend on the stored event.
func (in EditInput) validateFields() error {
	if in.Name != nil {
		if err := validateLength("eventName", *in.Name, minNameLength, maxNameLength); err != nil {
			return err
		}
	}
	if in.Location != nil {
		if err := validateLength("location", *in.Location, minLocationLength, maxLocationLength); err != nil {
			return err
		}
	}
	if in.Speaker != nil {
		if err := validateLength("speaker", *in.Speaker, minSpeakerLength, maxSpeakerLength); err != nil {
			return err
		}
	}
	return nil
}
