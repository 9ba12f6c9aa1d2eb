package models

import "time"

// Device types derived from the client User-Agent.
const (
	DeviceTypePC     = "PC"
	DeviceTypeMobile = "MOBILE"
	DeviceTypeTablet = "TABLET"
)

// DeviceSession is the durable record backing one refresh token for one
// (account, device) pair. At most one live session exists per pair.
type DeviceSession struct {
	ID             string
	Token          string
	LoginID        string
	DeviceID       string
	DeviceName     string
	DeviceType     string
	IPAddress      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastUsedAt     time.Time
	LastActivityAt time.Time
}

// Expired reports whether the session's refresh window has passed.
func (s *DeviceSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
