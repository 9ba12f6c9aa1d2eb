package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 1 * time.Hour},
		{"RefreshTokenExpiry", cfg.Auth.RefreshTokenExpiry, 90 * 24 * time.Hour},
		{"ExpiredSweepInterval", cfg.Session.ExpiredSweepInterval, 24 * time.Hour},
		{"InactiveSweepInterval", cfg.Session.InactiveSweepInterval, 24 * time.Hour},
		{"InactivityThreshold", cfg.Session.InactivityThreshold, 90 * 24 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Session.MaxDevicesPerUser != 10 {
		t.Errorf("MaxDevicesPerUser: got %d, want 10", cfg.Session.MaxDevicesPerUser)
	}
	if cfg.Auth.PasswordChangePeriodDays != 90 {
		t.Errorf("PasswordChangePeriodDays: got %d, want 90", cfg.Auth.PasswordChangePeriodDays)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ACCESS_TOKEN_EXPIRY", "30m")
	os.Setenv("MAX_DEVICES_PER_USER", "3")
	os.Setenv("INACTIVITY_THRESHOLD", "720h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 30*time.Minute {
		t.Errorf("AccessTokenExpiry: got %v, want 30m", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Session.MaxDevicesPerUser != 3 {
		t.Errorf("MaxDevicesPerUser: got %d, want 3", cfg.Session.MaxDevicesPerUser)
	}
	if cfg.Session.InactivityThreshold != 720*time.Hour {
		t.Errorf("InactivityThreshold: got %v, want 720h", cfg.Session.InactivityThreshold)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Error("expected error for missing JWT_SECRET")
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Error("expected error for missing DB_PASSWORD")
	}
}

func TestLoad_RejectsInvalidDeviceCap(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("MAX_DEVICES_PER_USER", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero device cap")
	}
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		env        string
		shouldFail bool
	}{
		{"short secret in development", "0123456789abcdef", "development", false},
		{"short secret in production", "0123456789abcdef", "production", true},
		{"64 chars in production", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", "production", false},
		{"weak value", "changeme", "development", true},
		{"too short everywhere", "abc", "development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if tt.shouldFail && err == nil {
				t.Error("expected validation error")
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
