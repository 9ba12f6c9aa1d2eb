package logger

import (
	"strings"
)

// SanitizeQueryString reports whether a query string contains sensitive
// parameters and should be redacted wholesale from logs.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
