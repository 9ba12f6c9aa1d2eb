package auth

import (
	"testing"

	"github.com/mpole/hdt-auth/internal/models"
)

func TestDeviceNameFromUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"edge", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge Browser"},
		{"chrome", "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", "Chrome Browser"},
		{"firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox Browser"},
		{"safari", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15", "Safari Browser"},
		{"empty", "", "Unknown Browser"},
		{"curl", "curl/8.4.0", "Unknown Browser"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeviceNameFromUserAgent(tt.userAgent); got != tt.expected {
				t.Errorf("DeviceNameFromUserAgent(%q) = %q, want %q", tt.userAgent, got, tt.expected)
			}
		})
	}
}

func TestDeviceTypeFromUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"android phone", "Mozilla/5.0 (Linux; Android 14) Chrome/120.0 Mobile Safari/537.36", models.DeviceTypeMobile},
		{"android no mobile token", "Mozilla/5.0 (Linux; Android 14) Chrome/120.0 Safari/537.36", models.DeviceTypeMobile},
		{"android tablet classified mobile", "Mozilla/5.0 (Linux; Android 14; Tablet) Chrome/120.0", models.DeviceTypeMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Version/17.0 Safari/605.1.15", models.DeviceTypeTablet},
		{"desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0", models.DeviceTypePC},
		{"empty", "", models.DeviceTypePC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeviceTypeFromUserAgent(tt.userAgent); got != tt.expected {
				t.Errorf("DeviceTypeFromUserAgent(%q) = %q, want %q", tt.userAgent, got, tt.expected)
			}
		})
	}
}
