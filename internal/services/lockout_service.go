package services

import (
	"context"
	"log/slog"

	"github.com/mpole/hdt-auth/internal/models"
	pkglogger "github.com/mpole/hdt-auth/pkg/logger"
)

// AccountRepository defines the persistence operations for accounts.
// RecordFailure must commit independently of any caller transaction and
// must not lose concurrent increments.
type AccountRepository interface {
	GetByLoginID(ctx context.Context, loginID string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailure(ctx context.Context, loginID string, threshold int) (*models.Account, error)
	RecordSuccess(ctx context.Context, loginID string) error
	Unlock(ctx context.Context, loginID string) error
	UpdatePassword(ctx context.Context, loginID, passwordHash string) error
}

// LockoutService durably tracks authentication failures and trips the
// account lock at the threshold. Its writes survive rollback of the
// surrounding login operation, so an aborted request cannot erase failure
// history.
type LockoutService struct {
	repo        AccountRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	threshold   int
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo AccountRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
		threshold:   models.LockThreshold,
	}
}

// RecordFailure increments the account's failure counter, locking the
// account when the counter reaches the threshold. The write is committed
// before this method returns.
func (s *LockoutService) RecordFailure(ctx context.Context, loginID string) (*models.Account, error) {
	account, err := s.repo.RecordFailure(ctx, loginID, s.threshold)
	if err != nil {
		s.logger.Error("failed to record login failure",
			slog.String("login_id", loginID), slog.Any("error", err))
		return nil, err
	}

	if account.Locked {
		s.logger.Warn("account locked after repeated failures",
			slog.String("login_id", loginID),
			slog.Int("failed_attempts", account.FailedLoginAttempts))
		s.auditLogger.LogAccountEvent(pkglogger.AuditEvent{
			EventType: "account_locked",
			LoginID:   loginID,
			Success:   false,
		})
	} else {
		s.logger.Info("login failure recorded",
			slog.String("login_id", loginID),
			slog.Int("failed_attempts", account.FailedLoginAttempts))
	}

	return account, nil
}

// Unlock clears the lock and resets the failure counter. This is the only
// path that clears a lock.
func (s *LockoutService) Unlock(ctx context.Context, loginID string) error {
	if err := s.repo.Unlock(ctx, loginID); err != nil {
		s.logger.Error("failed to unlock account",
			slog.String("login_id", loginID), slog.Any("error", err))
		return err
	}

	s.logger.Info("account unlocked", slog.String("login_id", loginID))
	s.auditLogger.LogAccountEvent(pkglogger.AuditEvent{
		EventType: "account_unlocked",
		LoginID:   loginID,
		Success:   true,
	})

	return nil
}
