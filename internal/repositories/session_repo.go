package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mpole/hdt-auth/internal/database"
	"github.com/mpole/hdt-auth/internal/models"
)

const sessionColumns = `id, token, login_id, device_id, device_name, device_type, ip_address,
	expires_at, created_at, last_used_at, last_activity_at`

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSessionRow(scanner rowScanner) (*models.DeviceSession, error) {
	var session models.DeviceSession

	err := scanner.Scan(
		&session.ID, &session.Token, &session.LoginID, &session.DeviceID,
		&session.DeviceName, &session.DeviceType, &session.IPAddress,
		&session.ExpiresAt, &session.CreatedAt, &session.LastUsedAt,
		&session.LastActivityAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.DeviceSession, error) {
	defer rows.Close()

	sessions := make([]*models.DeviceSession, 0)

	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// Upsert creates a session for (login_id, device_id) or renews the existing
// one in place: token, ip and expiry are replaced and both timestamps
// touched. The ON CONFLICT arm makes the renew atomic under concurrent
// logins from the same device.
func (r *SessionRepository) Upsert(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	query := `
		INSERT INTO device_sessions (id, token, login_id, device_id, device_name, device_type,
			ip_address, expires_at, created_at, last_used_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), NOW())
		ON CONFLICT (login_id, device_id) DO UPDATE
		SET token = EXCLUDED.token,
		    ip_address = EXCLUDED.ip_address,
		    expires_at = EXCLUDED.expires_at,
		    last_used_at = NOW(),
		    last_activity_at = NOW()
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.Querier(ctx).QueryRow(ctx, query,
		uuid.New().String(), session.Token, session.LoginID, session.DeviceID,
		session.DeviceName, session.DeviceType, session.IPAddress, session.ExpiresAt,
	))
}

func (r *SessionRepository) Find(ctx context.Context, loginID, deviceID string) (*models.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM device_sessions WHERE login_id = $1 AND device_id = $2`

	return scanSessionRow(r.db.Querier(ctx).QueryRow(ctx, query, loginID, deviceID))
}

// Touch updates last_used_at, last_activity_at and the observed client IP
// for a non-expired session and returns the updated row. The expiry guard
// in the WHERE clause makes check-and-touch a single atomic statement, so
// two concurrent refreshes cannot both renew an expired row. ErrNotFound
// means the session is either missing or expired; callers distinguish the
// two with Find.
func (r *SessionRepository) Touch(ctx context.Context, loginID, deviceID, ipAddress string, now time.Time) (*models.DeviceSession, error) {
	query := `
		UPDATE device_sessions
		SET last_used_at = $4, last_activity_at = $4, ip_address = $3
		WHERE login_id = $1 AND device_id = $2 AND expires_at > $4
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.Querier(ctx).QueryRow(ctx, query, loginID, deviceID, ipAddress, now))
}

func (r *SessionRepository) ListByAccount(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM device_sessions WHERE login_id = $1`

	rows, err := r.db.Querier(ctx).Query(ctx, query, loginID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// Delete removes one device's session. Deleting a session that does not
// exist is a no-op, keeping logout idempotent.
func (r *SessionRepository) Delete(ctx context.Context, loginID, deviceID string) error {
	query := `DELETE FROM device_sessions WHERE login_id = $1 AND device_id = $2`

	_, err := r.db.Querier(ctx).Exec(ctx, query, loginID, deviceID)
	return database.MapPostgresError(err)
}

func (r *SessionRepository) DeleteAll(ctx context.Context, loginID string) (int64, error) {
	query := `DELETE FROM device_sessions WHERE login_id = $1`

	result, err := r.db.Querier(ctx).Exec(ctx, query, loginID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func (r *SessionRepository) CountActive(ctx context.Context, loginID string, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM device_sessions WHERE login_id = $1 AND expires_at > $2`

	var count int
	if err := r.db.Querier(ctx).QueryRow(ctx, query, loginID, now).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteLeastActive evicts the non-expired session with the smallest
// last_activity_at for the account and returns it, or ErrNotFound when the
// account has no live sessions. Selection and delete happen in one
// statement so two concurrent logins cannot evict the same row twice.
func (r *SessionRepository) DeleteLeastActive(ctx context.Context, loginID string, now time.Time) (*models.DeviceSession, error) {
	query := `
		DELETE FROM device_sessions
		WHERE id = (
			SELECT id FROM device_sessions
			WHERE login_id = $1 AND expires_at > $2
			ORDER BY last_activity_at ASC
			LIMIT 1
		)
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.Querier(ctx).QueryRow(ctx, query, loginID, now))
}

// DeleteExpired bulk-removes every session past its expiry.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM device_sessions WHERE expires_at < $1`

	result, err := r.db.Querier(ctx).Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ListInactiveSince returns sessions whose last activity is older than the
// threshold, regardless of expiry. The janitor deletes these one by one.
func (r *SessionRepository) ListInactiveSince(ctx context.Context, threshold time.Time) ([]*models.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM device_sessions WHERE last_activity_at < $1`

	rows, err := r.db.Querier(ctx).Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive sessions: %w", err)
	}

	return scanSessionRows(rows)
}
