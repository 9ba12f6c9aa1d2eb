package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpole/hdt-auth/internal/models"
)

func TestLockoutService_RecordFailure_PassesThreshold(t *testing.T) {
	var gotThreshold int
	repo := &MockAccountRepository{
		RecordFailureFunc: func(ctx context.Context, loginID string, threshold int) (*models.Account, error) {
			gotThreshold = threshold
			return &models.Account{LoginID: loginID, FailedLoginAttempts: 1}, nil
		},
	}
	service := NewLockoutService(repo, newTestLogger(), newTestAuditLogger())

	account, err := service.RecordFailure(context.Background(), "operator1")
	require.NoError(t, err)
	assert.Equal(t, models.LockThreshold, gotThreshold)
	assert.Equal(t, 1, account.FailedLoginAttempts)
	assert.False(t, account.Locked)
}

func TestLockoutService_RecordFailure_ReportsLock(t *testing.T) {
	repo := &MockAccountRepository{
		RecordFailureFunc: func(ctx context.Context, loginID string, threshold int) (*models.Account, error) {
			return &models.Account{
				LoginID:             loginID,
				FailedLoginAttempts: threshold,
				Locked:              true,
			}, nil
		},
	}
	service := NewLockoutService(repo, newTestLogger(), newTestAuditLogger())

	account, err := service.RecordFailure(context.Background(), "operator1")
	require.NoError(t, err)
	assert.True(t, account.Locked)
}

func TestLockoutService_RecordFailure_PropagatesError(t *testing.T) {
	repo := &MockAccountRepository{
		RecordFailureFunc: func(ctx context.Context, loginID string, threshold int) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	service := NewLockoutService(repo, newTestLogger(), newTestAuditLogger())

	_, err := service.RecordFailure(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLockoutService_Unlock(t *testing.T) {
	unlocked := false
	repo := &MockAccountRepository{
		UnlockFunc: func(ctx context.Context, loginID string) error {
			unlocked = true
			return nil
		},
	}
	service := NewLockoutService(repo, newTestLogger(), newTestAuditLogger())

	require.NoError(t, service.Unlock(context.Background(), "operator1"))
	assert.True(t, unlocked)
}

func TestLockoutService_Unlock_UnknownAccount(t *testing.T) {
	repo := &MockAccountRepository{
		UnlockFunc: func(ctx context.Context, loginID string) error {
			return models.ErrNotFound
		},
	}
	service := NewLockoutService(repo, newTestLogger(), newTestAuditLogger())

	err := service.Unlock(context.Background(), "ghost")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
