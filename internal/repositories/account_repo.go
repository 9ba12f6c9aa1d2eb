package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mpole/hdt-auth/internal/database"
	"github.com/mpole/hdt-auth/internal/models"
)

const accountColumns = `id, login_id, password_hash, email, name, role, enabled, locked,
	failed_login_attempts, last_password_change_at, last_login_at, created_at, updated_at`

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.LoginID, &account.PasswordHash, &account.Email,
		&account.Name, &account.Role, &account.Enabled, &account.Locked,
		&account.FailedLoginAttempts, &account.LastPasswordChangeAt,
		&lastLoginAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LastLoginAt = lastLoginAt

	return &account, nil
}

func (r *AccountRepository) GetByLoginID(ctx context.Context, loginID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE login_id = $1`

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, loginID))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.LastPasswordChangeAt.IsZero() {
		account.LastPasswordChangeAt = now
	}
	if account.Role == "" {
		account.Role = "USER"
	}

	query := `
		INSERT INTO accounts (id, login_id, password_hash, email, name, role, enabled, locked,
			failed_login_attempts, last_password_change_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query,
		account.ID, account.LoginID, account.PasswordHash, account.Email,
		account.Name, account.Role, account.Enabled, account.Locked,
		account.FailedLoginAttempts, account.LastPasswordChangeAt,
		account.CreatedAt, account.UpdatedAt,
	))
}

// RecordFailure increments the failure counter and trips the lock when the
// new count reaches the threshold. The whole transition is one UPDATE
// executed directly on the pool, never on a transaction the caller may be
// carrying: it commits on its own, survives any later rollback of the
// request, and concurrent failures against the same account cannot lose
// increments.
func (r *AccountRepository) RecordFailure(ctx context.Context, loginID string, threshold int) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked = locked OR (failed_login_attempts + 1 >= $2),
		    updated_at = NOW()
		WHERE login_id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, loginID, threshold))
}

// RecordSuccess resets the failure counter and stamps the login time.
func (r *AccountRepository) RecordSuccess(ctx context.Context, loginID string) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, last_login_at = NOW(), updated_at = NOW()
		WHERE login_id = $1
	`

	result, err := r.db.Querier(ctx).Exec(ctx, query, loginID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Unlock clears the lock and resets the failure counter in one write.
// This is the only operation that clears the locked flag.
func (r *AccountRepository) Unlock(ctx context.Context, loginID string) error {
	query := `
		UPDATE accounts
		SET locked = FALSE, failed_login_attempts = 0, updated_at = NOW()
		WHERE login_id = $1
	`

	result, err := r.db.Querier(ctx).Exec(ctx, query, loginID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the hash and stamps the change time.
func (r *AccountRepository) UpdatePassword(ctx context.Context, loginID, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, last_password_change_at = NOW(), updated_at = NOW()
		WHERE login_id = $1
	`

	result, err := r.db.Querier(ctx).Exec(ctx, query, loginID, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
