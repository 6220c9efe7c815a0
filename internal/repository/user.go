// Package repository contains the SQL-backed implementations of the account
// persistence ports: users, pending signups, and interactive sessions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"skycrm/internal/domain"
)

// timeLayouts covers the formats timestamps land in SQLite as: RFC3339 from
// Go writes, and the CURRENT_TIMESTAMP default from DDL.
var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UserRepository persists user accounts.
type UserRepository struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewUserRepository creates a UserRepository over the pool pair.
func NewUserRepository(writeDB, readDB *sql.DB) *UserRepository {
	return &UserRepository{writeDB: writeDB, readDB: readDB}
}

const userColumns = `id, name, email, password_hash, api_key_hash, api_key_expires_at, api_key_active, created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var keyExpires sql.NullString
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.APIKeyHash, &keyExpires, &u.APIKeyActive, &createdAt)
	if err != nil {
		return nil, err
	}
	if keyExpires.Valid {
		t, err := parseTime(keyExpires.String)
		if err != nil {
			return nil, err
		}
		u.APIKeyExpiresAt = &t
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and returns it with its assigned ID.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	result, err := r.writeDB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
		name, email, passwordHash)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, domain.ErrConflict("an account with email %q already exists", email)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns the user with the given ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.readDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("user %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByEmail returns the user with the given email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.readDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("user with email %q not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByAPIKeyHash returns the user holding an active API key with the given
// hash. Inactive keys do not resolve; expiry is the caller's check.
func (r *UserRepository) GetByAPIKeyHash(ctx context.Context, keyHash string) (*domain.User, error) {
	row := r.readDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE api_key_hash = ? AND api_key_active = 1", keyHash)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("no user for API key")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by api key: %w", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	result, err := r.writeDB.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound("user %d not found", userID)
	}
	return nil
}

// SetAPIKey stores a new API key hash and expiry, activating the key. Any
// previous key for the user is replaced.
func (r *UserRepository) SetAPIKey(ctx context.Context, userID int64, keyHash string, expiresAt time.Time) error {
	result, err := r.writeDB.ExecContext(ctx,
		"UPDATE users SET api_key_hash = ?, api_key_expires_at = ?, api_key_active = 1 WHERE id = ?",
		keyHash, expiresAt.UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set api key: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound("user %d not found", userID)
	}
	return nil
}

// RevokeAPIKey deactivates the user's API key without clearing the hash.
func (r *UserRepository) RevokeAPIKey(ctx context.Context, userID int64) error {
	result, err := r.writeDB.ExecContext(ctx,
		"UPDATE users SET api_key_active = 0 WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound("user %d not found", userID)
	}
	return nil
}
