package auth

import (
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{
			name:       "valid strong password",
			password:   "SecurePass123",
			shouldFail: false,
		},
		{
			name:       "too short",
			password:   "Pass1",
			shouldFail: true,
		},
		{
			name:       "missing uppercase",
			password:   "securepass123",
			shouldFail: true,
		},
		{
			name:       "missing lowercase",
			password:   "SECUREPASS123",
			shouldFail: true,
		},
		{
			name:       "missing digit",
			password:   "SecurePassXyz",
			shouldFail: true,
		},
		{
			name:       "common password",
			password:   "Passw0rd",
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail && err == nil {
				t.Errorf("expected validation error for %q, got nil", tt.password)
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected no error for %q, got %v", tt.password, err)
			}
		})
	}
}

func TestValidatePassword_ErrorMessageIsGeneric(t *testing.T) {
	err := ValidatePassword("weak")
	if err == nil {
		t.Fatal("expected validation error")
	}

	// The user-facing message never enumerates which rule failed
	if err.Error() != "invalid password" {
		t.Errorf("expected generic message, got %q", err.Error())
	}

	validationErr, ok := err.(*PasswordValidationError)
	if !ok {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	if len(validationErr.Errors) == 0 {
		t.Error("expected detailed errors to be recorded internally")
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SecurePass123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if err := ComparePassword(hash, "SecurePass123"); err != nil {
		t.Errorf("expected password to match its own hash: %v", err)
	}
	if err := ComparePassword(hash, "WrongPass123"); err == nil {
		t.Error("expected mismatch for wrong password")
	}
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}
