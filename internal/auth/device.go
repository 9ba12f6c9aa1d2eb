package auth

import (
	"strings"

	"github.com/mpole/hdt-auth/internal/models"
)

// DeviceNameFromUserAgent derives a human-readable device name from the
// client User-Agent header.
func DeviceNameFromUserAgent(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Edg/"):
		return "Edge Browser"
	case strings.Contains(userAgent, "Chrome"):
		return "Chrome Browser"
	case strings.Contains(userAgent, "Firefox"):
		return "Firefox Browser"
	case strings.Contains(userAgent, "Safari"):
		return "Safari Browser"
	case strings.Contains(userAgent, "Mobile"):
		return "Mobile Browser"
	default:
		return "Unknown Browser"
	}
}

// DeviceTypeFromUserAgent classifies the client as PC, MOBILE or TABLET.
func DeviceTypeFromUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android"):
		return models.DeviceTypeMobile
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return models.DeviceTypeTablet
	default:
		return models.DeviceTypePC
	}
}
