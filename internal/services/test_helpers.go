package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mpole/hdt-auth/internal/models"
	pkglogger "github.com/mpole/hdt-auth/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByLoginIDFunc   func(ctx context.Context, loginID string) (*models.Account, error)
	CreateFunc         func(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailureFunc  func(ctx context.Context, loginID string, threshold int) (*models.Account, error)
	RecordSuccessFunc  func(ctx context.Context, loginID string) error
	UnlockFunc         func(ctx context.Context, loginID string) error
	UpdatePasswordFunc func(ctx context.Context, loginID, passwordHash string) error
}

func (m *MockAccountRepository) GetByLoginID(ctx context.Context, loginID string) (*models.Account, error) {
	if m.GetByLoginIDFunc != nil {
		return m.GetByLoginIDFunc(ctx, loginID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordFailure(ctx context.Context, loginID string, threshold int) (*models.Account, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, loginID, threshold)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) RecordSuccess(ctx context.Context, loginID string) error {
	if m.RecordSuccessFunc != nil {
		return m.RecordSuccessFunc(ctx, loginID)
	}
	return nil
}

func (m *MockAccountRepository) Unlock(ctx context.Context, loginID string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, loginID)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, loginID, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, loginID, passwordHash)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	UpsertFunc            func(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error)
	FindFunc              func(ctx context.Context, loginID, deviceID string) (*models.DeviceSession, error)
	TouchFunc             func(ctx context.Context, loginID, deviceID, ipAddress string, now time.Time) (*models.DeviceSession, error)
	ListByAccountFunc     func(ctx context.Context, loginID string) ([]*models.DeviceSession, error)
	DeleteFunc            func(ctx context.Context, loginID, deviceID string) error
	DeleteAllFunc         func(ctx context.Context, loginID string) (int64, error)
	CountActiveFunc       func(ctx context.Context, loginID string, now time.Time) (int, error)
	DeleteLeastActiveFunc func(ctx context.Context, loginID string, now time.Time) (*models.DeviceSession, error)
	DeleteExpiredFunc     func(ctx context.Context, now time.Time) (int64, error)
	ListInactiveSinceFunc func(ctx context.Context, threshold time.Time) ([]*models.DeviceSession, error)
}

func (m *MockSessionRepository) Upsert(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, session)
	}
	return session, nil
}

func (m *MockSessionRepository) Find(ctx context.Context, loginID, deviceID string) (*models.DeviceSession, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, loginID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, loginID, deviceID, ipAddress string, now time.Time) (*models.DeviceSession, error) {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, loginID, deviceID, ipAddress, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) ListByAccount(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, loginID)
	}
	return []*models.DeviceSession{}, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, loginID, deviceID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, loginID, deviceID)
	}
	return nil
}

func (m *MockSessionRepository) DeleteAll(ctx context.Context, loginID string) (int64, error) {
	if m.DeleteAllFunc != nil {
		return m.DeleteAllFunc(ctx, loginID)
	}
	return 0, nil
}

func (m *MockSessionRepository) CountActive(ctx context.Context, loginID string, now time.Time) (int, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx, loginID, now)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteLeastActive(ctx context.Context, loginID string, now time.Time) (*models.DeviceSession, error) {
	if m.DeleteLeastActiveFunc != nil {
		return m.DeleteLeastActiveFunc(ctx, loginID, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListInactiveSince(ctx context.Context, threshold time.Time) ([]*models.DeviceSession, error) {
	if m.ListInactiveSinceFunc != nil {
		return m.ListInactiveSinceFunc(ctx, threshold)
	}
	return []*models.DeviceSession{}, nil
}

// memorySessionRepository is a mutex-guarded in-memory SessionRepository
// for tests that exercise multi-step session flows.
type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.DeviceSession // keyed by loginID+"/"+deviceID
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*models.DeviceSession)}
}

func sessionKey(loginID, deviceID string) string {
	return loginID + "/" + deviceID
}

func (m *memorySessionRepository) Upsert(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := sessionKey(session.LoginID, session.DeviceID)
	if existing, ok := m.sessions[key]; ok {
		existing.Token = session.Token
		existing.IPAddress = session.IPAddress
		existing.ExpiresAt = session.ExpiresAt
		existing.LastUsedAt = now
		existing.LastActivityAt = now
		copied := *existing
		return &copied, nil
	}

	stored := *session
	stored.ID = key
	stored.CreatedAt = now
	stored.LastUsedAt = now
	stored.LastActivityAt = now
	m.sessions[key] = &stored
	copied := stored
	return &copied, nil
}

func (m *memorySessionRepository) Find(ctx context.Context, loginID, deviceID string) (*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionKey(loginID, deviceID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memorySessionRepository) Touch(ctx context.Context, loginID, deviceID, ipAddress string, now time.Time) (*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionKey(loginID, deviceID)]
	if !ok || !session.ExpiresAt.After(now) {
		return nil, models.ErrNotFound
	}
	session.LastUsedAt = now
	session.LastActivityAt = now
	session.IPAddress = ipAddress
	copied := *session
	return &copied, nil
}

func (m *memorySessionRepository) ListByAccount(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*models.DeviceSession, 0)
	for _, session := range m.sessions {
		if session.LoginID == loginID {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *memorySessionRepository) Delete(ctx context.Context, loginID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionKey(loginID, deviceID))
	return nil
}

func (m *memorySessionRepository) DeleteAll(ctx context.Context, loginID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, session := range m.sessions {
		if session.LoginID == loginID {
			delete(m.sessions, key)
			count++
		}
	}
	return count, nil
}

func (m *memorySessionRepository) CountActive(ctx context.Context, loginID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, session := range m.sessions {
		if session.LoginID == loginID && session.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (m *memorySessionRepository) DeleteLeastActive(ctx context.Context, loginID string, now time.Time) (*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var victim *models.DeviceSession
	var victimKey string
	for key, session := range m.sessions {
		if session.LoginID != loginID || !session.ExpiresAt.After(now) {
			continue
		}
		if victim == nil || session.LastActivityAt.Before(victim.LastActivityAt) {
			victim = session
			victimKey = key
		}
	}
	if victim == nil {
		return nil, models.ErrNotFound
	}
	delete(m.sessions, victimKey)
	copied := *victim
	return &copied, nil
}

func (m *memorySessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, key)
			count++
		}
	}
	return count, nil
}

func (m *memorySessionRepository) ListInactiveSince(ctx context.Context, threshold time.Time) ([]*models.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*models.DeviceSession, 0)
	for _, session := range m.sessions {
		if session.LastActivityAt.Before(threshold) {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, nil
}

// directTxRunner satisfies TransactionRunner without a database. The
// function runs as-is and the outcome is recorded so tests can assert what
// a real transaction would have done with the writes inside it.
type directTxRunner struct {
	active     bool
	committed  bool
	rolledBack bool
}

func (r *directTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.active = true
	err := fn(ctx)
	r.active = false
	if err != nil {
		r.rolledBack = true
		return err
	}
	r.committed = true
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger())
}
