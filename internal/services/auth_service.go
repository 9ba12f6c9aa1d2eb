package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/models"
	pkgauth "github.com/mpole/hdt-auth/pkg/auth"
	pkglogger "github.com/mpole/hdt-auth/pkg/logger"
)

// TransactionRunner runs a function with every repository write inside one
// database transaction. *database.DB satisfies it with InTx.
type TransactionRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuthService orchestrates login, refresh, logout and the account-facing
// credential operations end to end.
type AuthService struct {
	accounts    AccountRepository
	lockout     *LockoutService
	sessions    *SessionService
	tm          *auth.TokenManager
	tx          TransactionRunner
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	passwordChangePeriodDays int
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountRepository,
	lockout *LockoutService,
	sessions *SessionService,
	tm *auth.TokenManager,
	tx TransactionRunner,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	passwordChangePeriodDays int,
) *AuthService {
	return &AuthService{
		accounts:                 accounts,
		lockout:                  lockout,
		sessions:                 sessions,
		tm:                       tm,
		tx:                       tx,
		logger:                   logger,
		auditLogger:              auditLogger,
		passwordChangePeriodDays: passwordChangePeriodDays,
	}
}

// ClientContext carries the request metadata the policy engine derives
// device identity from.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// AuthResult is the outcome of a successful login or refresh.
type AuthResult struct {
	AccessToken             string
	RefreshToken            string
	ExpiresInMs             int64
	Account                 *models.Account
	PasswordChangeRequired  bool
	DaysUntilPasswordExpiry int
	CurrentDeviceID         string
	ActiveSessions          []*models.DeviceSession
}

// Login verifies credentials and establishes a session for a fresh
// server-generated device id. Account state is checked before the
// password, so a locked account answers ErrAccountLocked whether or not
// the password was correct.
func (s *AuthService) Login(ctx context.Context, loginID, password string, client ClientContext) (*AuthResult, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return nil, models.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: unknown login id")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     client.IPAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := accountUsable(account); err != nil {
		s.logger.Info("login blocked by account state",
			slog.String("login_id", account.LoginID), slog.Any("error", err))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			LoginID:       account.LoginID,
			IPAddress:     client.IPAddress,
			FailureReason: "account_blocked",
			Success:       false,
		})
		return nil, err
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		// Recorded on its own connection; the failure count and any lock
		// survive whatever happens to this request afterwards.
		if _, lockErr := s.lockout.RecordFailure(ctx, account.LoginID); lockErr != nil {
			s.logger.Error("failed to record login failure",
				slog.String("login_id", account.LoginID), slog.Any("error", lockErr))
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			LoginID:       account.LoginID,
			IPAddress:     client.IPAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrInvalidCredentials
	}

	// Device identity is generated fresh for every login; client-supplied
	// identifiers are never persisted across requests.
	deviceID := uuid.New().String()
	deviceName := auth.DeviceNameFromUserAgent(client.UserAgent)
	deviceType := auth.DeviceTypeFromUserAgent(client.UserAgent)

	accessToken, err := s.tm.GenerateAccessToken(account.LoginID, account.Role)
	if err != nil {
		s.logger.Error("failed to generate access token",
			slog.String("login_id", account.LoginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The counter reset, login stamp and session write commit together; a
	// login that fails to persist its session leaves the account untouched.
	var session *models.DeviceSession
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.RecordSuccess(ctx, account.LoginID); err != nil {
			return err
		}
		var err error
		session, err = s.sessions.CreateOrRenew(ctx, account.LoginID, deviceID, deviceName, deviceType, client.IPAddress)
		return err
	})
	if err != nil {
		s.logger.Error("failed to commit login",
			slog.String("login_id", account.LoginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	active, err := s.sessions.ActiveSessions(ctx, account.LoginID)
	if err != nil {
		s.logger.Error("failed to list active sessions",
			slog.String("login_id", account.LoginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded",
		slog.String("login_id", account.LoginID),
		slog.String("device_name", deviceName),
		slog.String("device_type", deviceType))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		LoginID:   account.LoginID,
		IPAddress: client.IPAddress,
		DeviceID:  deviceID,
		Success:   true,
	})

	return &AuthResult{
		AccessToken:             accessToken,
		RefreshToken:            session.Token,
		ExpiresInMs:             s.tm.AccessTokenExpiry().Milliseconds(),
		Account:                 account,
		PasswordChangeRequired:  account.PasswordChangeRequired(s.passwordChangePeriodDays),
		DaysUntilPasswordExpiry: account.DaysUntilPasswordExpiry(s.passwordChangePeriodDays),
		CurrentDeviceID:         deviceID,
		ActiveSessions:          active,
	}, nil
}

// Refresh validates the device's session and issues a new access token.
// The refresh token itself is reused until its own expiry or the next
// login from that device.
func (s *AuthService) Refresh(ctx context.Context, loginID, deviceID string, client ClientContext) (*AuthResult, error) {
	session, err := s.sessions.ValidateForRefresh(ctx, loginID, deviceID, client.IPAddress)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) || errors.Is(err, models.ErrSessionExpired) {
			return nil, err
		}
		s.logger.Error("refresh validation failed",
			slog.String("login_id", loginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The session survived, but the account may have been locked or
	// disabled since login.
	account, err := s.accounts.GetByLoginID(ctx, session.LoginID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get account for refresh",
			slog.String("login_id", session.LoginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := accountUsable(account); err != nil {
		return nil, err
	}

	accessToken, err := s.tm.GenerateAccessToken(account.LoginID, account.Role)
	if err != nil {
		s.logger.Error("failed to generate access token",
			slog.String("login_id", account.LoginID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Debug("token refreshed",
		slog.String("login_id", account.LoginID),
		slog.String("device_name", session.DeviceName))

	return &AuthResult{
		AccessToken:             accessToken,
		RefreshToken:            session.Token,
		ExpiresInMs:             s.tm.AccessTokenExpiry().Milliseconds(),
		Account:                 account,
		PasswordChangeRequired:  account.PasswordChangeRequired(s.passwordChangePeriodDays),
		DaysUntilPasswordExpiry: account.DaysUntilPasswordExpiry(s.passwordChangePeriodDays),
	}, nil
}

// Logout removes the device's session; calling it for a device with no
// session succeeds.
func (s *AuthService) Logout(ctx context.Context, loginID, deviceID string) error {
	if deviceID == "" {
		return models.ErrInvalidToken
	}

	if err := s.sessions.Delete(ctx, loginID, deviceID); err != nil {
		s.logger.Error("logout failed",
			slog.String("login_id", loginID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "logout",
		LoginID:   loginID,
		DeviceID:  deviceID,
		Success:   true,
	})
	return nil
}

// LogoutAll removes every session for the account ("log out everywhere").
func (s *AuthService) LogoutAll(ctx context.Context, loginID string) error {
	if err := s.sessions.DeleteAll(ctx, loginID); err != nil {
		s.logger.Error("logout-all failed",
			slog.String("login_id", loginID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "logout_all",
		LoginID:   loginID,
		Success:   true,
	})
	return nil
}

// RevokeDevice forcibly terminates one device's session.
func (s *AuthService) RevokeDevice(ctx context.Context, loginID, deviceID string) error {
	if err := s.sessions.Revoke(ctx, loginID, deviceID); err != nil {
		s.logger.Error("device revocation failed",
			slog.String("login_id", loginID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// ActiveSessions lists the account's live device sessions.
func (s *AuthService) ActiveSessions(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	return s.sessions.ActiveSessions(ctx, loginID)
}

// ChangePassword rotates the account's password after re-verifying the
// current one.
func (s *AuthService) ChangePassword(ctx context.Context, loginID, currentPassword, newPassword, confirmPassword string) error {
	account, err := s.accounts.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account for password change",
			slog.String("login_id", loginID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(loginID, false)
		return models.ErrInvalidCredentials
	}

	if newPassword != confirmPassword {
		return models.ErrPasswordMismatch
	}

	if newPassword == currentPassword {
		return models.ErrPasswordUnchanged
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.UpdatePassword(ctx, loginID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("login_id", loginID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("login_id", loginID))
	s.auditLogger.LogPasswordChange(loginID, true)
	return nil
}

// UnlockAccount clears a lock set by the failure tracker.
func (s *AuthService) UnlockAccount(ctx context.Context, loginID string) error {
	return s.lockout.Unlock(ctx, loginID)
}

// accountUsable checks the account's state flags. Lock wins over disable,
// and both are reported without reference to the submitted password.
func accountUsable(account *models.Account) error {
	if account.Locked {
		return models.ErrAccountLocked
	}
	if !account.Enabled {
		return models.ErrAccountDisabled
	}
	return nil
}
