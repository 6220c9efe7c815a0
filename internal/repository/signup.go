package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skycrm/internal/domain"
)

// SignupRepository persists pre-verification signups keyed by email.
type SignupRepository struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewSignupRepository creates a SignupRepository over the pool pair.
func NewSignupRepository(writeDB, readDB *sql.DB) *SignupRepository {
	return &SignupRepository{writeDB: writeDB, readDB: readDB}
}

// Upsert stores or replaces the pending signup for an email.
func (r *SignupRepository) Upsert(ctx context.Context, p domain.PendingSignup) error {
	_, err := r.writeDB.ExecContext(ctx,
		`INSERT INTO email_codes (email, code, name, password_hash, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		     code = excluded.code,
		     name = excluded.name,
		     password_hash = excluded.password_hash,
		     expires_at = excluded.expires_at`,
		p.Email, p.Code, p.Name, p.PasswordHash, p.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert pending signup: %w", err)
	}
	return nil
}

// Get returns the pending signup for an email.
func (r *SignupRepository) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	var p domain.PendingSignup
	var expiresAt string
	err := r.readDB.QueryRowContext(ctx,
		"SELECT email, code, name, password_hash, expires_at FROM email_codes WHERE email = ?",
		email).Scan(&p.Email, &p.Code, &p.Name, &p.PasswordHash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("no pending signup for %q", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending signup: %w", err)
	}
	if p.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("get pending signup: %w", err)
	}
	return &p, nil
}

// RefreshCode replaces the code and expiry of an existing pending signup.
func (r *SignupRepository) RefreshCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	result, err := r.writeDB.ExecContext(ctx,
		"UPDATE email_codes SET code = ?, expires_at = ? WHERE email = ?",
		code, expiresAt.UTC().Format(time.RFC3339), email)
	if err != nil {
		return fmt.Errorf("refresh signup code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("refresh signup code: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound("no pending signup for %q", email)
	}
	return nil
}

// Delete removes the pending signup for an email. Missing rows are fine.
func (r *SignupRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.writeDB.ExecContext(ctx,
		"DELETE FROM email_codes WHERE email = ?", email); err != nil {
		return fmt.Errorf("delete pending signup: %w", err)
	}
	return nil
}

// DeleteExpired removes pending signups whose codes have expired and returns
// the number removed.
func (r *SignupRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.writeDB.ExecContext(ctx,
		"DELETE FROM email_codes WHERE expires_at < ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("delete expired signups: %w", err)
	}
	return result.RowsAffected()
}
