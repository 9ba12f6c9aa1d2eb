package models

import (
	"time"
)

// LockThreshold is the number of consecutive failed logins that locks an account.
const LockThreshold = 5

type Account struct {
	ID                   string
	LoginID              string
	PasswordHash         string
	Email                string
	Name                 string
	Role                 string // "ADMIN", "USER"
	Enabled              bool
	Locked               bool
	FailedLoginAttempts  int
	LastPasswordChangeAt time.Time
	LastLoginAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PasswordChangeRequired reports whether the password is older than the
// configured change period.
func (a *Account) PasswordChangeRequired(changePeriodDays int) bool {
	if a.LastPasswordChangeAt.IsZero() {
		return true
	}
	return time.Now().After(a.LastPasswordChangeAt.AddDate(0, 0, changePeriodDays))
}

// DaysUntilPasswordExpiry returns the remaining days before the password must
// be changed, floored at zero.
func (a *Account) DaysUntilPasswordExpiry(changePeriodDays int) int {
	if a.LastPasswordChangeAt.IsZero() {
		return 0
	}
	expiry := a.LastPasswordChangeAt.AddDate(0, 0, changePeriodDays)
	days := int(time.Until(expiry).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
