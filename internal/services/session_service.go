package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/models"
	pkglogger "github.com/mpole/hdt-auth/pkg/logger"
)

// SessionRepository defines the persistence operations for device sessions.
type SessionRepository interface {
	Upsert(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error)
	Find(ctx context.Context, loginID, deviceID string) (*models.DeviceSession, error)
	Touch(ctx context.Context, loginID, deviceID, ipAddress string, now time.Time) (*models.DeviceSession, error)
	ListByAccount(ctx context.Context, loginID string) ([]*models.DeviceSession, error)
	Delete(ctx context.Context, loginID, deviceID string) error
	DeleteAll(ctx context.Context, loginID string) (int64, error)
	CountActive(ctx context.Context, loginID string, now time.Time) (int, error)
	DeleteLeastActive(ctx context.Context, loginID string, now time.Time) (*models.DeviceSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListInactiveSince(ctx context.Context, threshold time.Time) ([]*models.DeviceSession, error)
}

// SessionService manages the per-(account, device) session records: renew
// or create on login, device-cap eviction, refresh validation, and the
// deletes behind logout and revocation.
type SessionService struct {
	repo        SessionRepository
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	maxDevices  int
}

// NewSessionService creates a new SessionService
func NewSessionService(repo SessionRepository, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, maxDevices int) *SessionService {
	return &SessionService{
		repo:        repo,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
		maxDevices:  maxDevices,
	}
}

// CreateOrRenew issues a refresh token for the device and persists the
// session. A known (loginID, deviceID) pair is renewed in place with no
// eviction accounting; a new device may first evict the least-recently
// active session when the account is at its device cap.
func (s *SessionService) CreateOrRenew(ctx context.Context, loginID, deviceID, deviceName, deviceType, ipAddress string) (*models.DeviceSession, error) {
	now := time.Now()

	_, err := s.repo.Find(ctx, loginID, deviceID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	isNewDevice := errors.Is(err, models.ErrNotFound)
	if isNewDevice {
		count, err := s.repo.CountActive(ctx, loginID, now)
		if err != nil {
			return nil, err
		}

		if count >= s.maxDevices {
			s.logger.Warn("device cap reached, evicting least active session",
				slog.String("login_id", loginID),
				slog.Int("max_devices", s.maxDevices))

			evicted, err := s.repo.DeleteLeastActive(ctx, loginID, now)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			if evicted != nil {
				s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
					EventType: "session_evicted",
					LoginID:   loginID,
					DeviceID:  evicted.DeviceID,
					Success:   true,
				})
			}
		}
	}

	token, err := s.tm.GenerateRefreshToken(loginID, deviceID)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.Upsert(ctx, &models.DeviceSession{
		Token:      token,
		LoginID:    loginID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		DeviceType: deviceType,
		IPAddress:  ipAddress,
		ExpiresAt:  now.Add(s.tm.RefreshTokenExpiry()),
	})
	if err != nil {
		return nil, err
	}

	if isNewDevice {
		s.logger.Info("session created",
			slog.String("login_id", loginID), slog.String("device_name", deviceName))
	} else {
		s.logger.Info("session renewed",
			slog.String("login_id", loginID), slog.String("device_name", deviceName))
	}

	return session, nil
}

// ValidateForRefresh looks up the device's session and touches its
// timestamps and observed IP in one atomic update. An expired session is
// deleted and reported as ErrSessionExpired; a missing one as
// ErrSessionNotFound. The stored IP is overwritten with the caller's
// current address but never compared against it.
func (s *SessionService) ValidateForRefresh(ctx context.Context, loginID, deviceID, ipAddress string) (*models.DeviceSession, error) {
	now := time.Now()

	session, err := s.repo.Touch(ctx, loginID, deviceID, ipAddress, now)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// The touch matched no row: distinguish missing from expired.
	existing, err := s.repo.Find(ctx, loginID, deviceID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if existing.Expired(now) {
		if err := s.repo.Delete(ctx, loginID, deviceID); err != nil {
			s.logger.Error("failed to delete expired session",
				slog.String("login_id", loginID), slog.Any("error", err))
		}
		s.logger.Info("expired session removed on refresh",
			slog.String("login_id", loginID), slog.String("device_id", deviceID))
		return nil, models.ErrSessionExpired
	}

	// A concurrent renew raced the touch; the session is live again.
	return nil, models.ErrSessionNotFound
}

// Delete removes one device's session; idempotent.
func (s *SessionService) Delete(ctx context.Context, loginID, deviceID string) error {
	if err := s.repo.Delete(ctx, loginID, deviceID); err != nil {
		return err
	}

	s.logger.Info("session deleted",
		slog.String("login_id", loginID), slog.String("device_id", deviceID))
	return nil
}

// DeleteAll removes every session for the account; idempotent.
func (s *SessionService) DeleteAll(ctx context.Context, loginID string) error {
	count, err := s.repo.DeleteAll(ctx, loginID)
	if err != nil {
		return err
	}

	s.logger.Warn("all sessions deleted",
		slog.String("login_id", loginID), slog.Int64("count", count))
	return nil
}

// Revoke is mechanically a single-device delete but audited as a forced
// termination.
func (s *SessionService) Revoke(ctx context.Context, loginID, deviceID string) error {
	if err := s.repo.Delete(ctx, loginID, deviceID); err != nil {
		return err
	}

	s.logger.Warn("device session forcibly revoked",
		slog.String("login_id", loginID), slog.String("device_id", deviceID))
	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "session_revoked",
		LoginID:   loginID,
		DeviceID:  deviceID,
		Success:   true,
	})
	return nil
}

// ActiveSessions returns the account's non-expired sessions.
func (s *SessionService) ActiveSessions(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	sessions, err := s.repo.ListByAccount(ctx, loginID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]*models.DeviceSession, 0, len(sessions))
	for _, session := range sessions {
		if !session.Expired(now) {
			active = append(active, session)
		}
	}

	return active, nil
}

// CleanupExpired bulk-deletes every session past its expiry. Used by the
// janitor's daily expired-token sweep.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now())
}

// CleanupInactive deletes sessions whose last activity is older than the
// threshold, even if not yet expired. Deletes are per record; one failure
// does not abort the rest of the sweep.
func (s *SessionService) CleanupInactive(ctx context.Context, inactivityThreshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-inactivityThreshold)

	stale, err := s.repo.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range stale {
		if err := s.repo.Delete(ctx, session.LoginID, session.DeviceID); err != nil {
			s.logger.Error("failed to delete inactive session",
				slog.String("login_id", session.LoginID),
				slog.String("device_id", session.DeviceID),
				slog.Any("error", err))
			continue
		}
		deleted++
		s.logger.Info("inactive session removed",
			slog.String("login_id", session.LoginID),
			slog.String("device_name", session.DeviceName),
			slog.Time("last_activity_at", session.LastActivityAt))
	}

	return deleted, nil
}
