package auth

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel renders a User-Agent as "<Browser> on <OS>".
func DeviceLabel(userAgent string) string {
	browser, osName := "Unknown Browser", "Unknown OS"
	if strings.TrimSpace(userAgent) != "" {
		ua := useragent.New(userAgent)
		if name, _ := ua.Browser(); name != "" {
			browser = name
		}
		if name := ua.OS(); name != "" {
			osName = name
		}
	}
	return browser + " on " + osName
}
