package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skycrm/internal/domain"
)

// SessionRepository persists server-side interactive sessions.
type SessionRepository struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewSessionRepository creates a SessionRepository over the pool pair.
func NewSessionRepository(writeDB, readDB *sql.DB) *SessionRepository {
	return &SessionRepository{writeDB: writeDB, readDB: readDB}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s domain.Session) error {
	_, err := r.writeDB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		s.ID, s.UserID, s.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetUserID resolves a session ID to its user, rejecting expired sessions.
func (r *SessionRepository) GetUserID(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	var userID int64
	err := r.readDB.QueryRowContext(ctx,
		"SELECT user_id FROM sessions WHERE id = ? AND expires_at > ?",
		sessionID, now.UTC().Format(time.RFC3339)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound("session not found or expired")
	}
	if err != nil {
		return 0, fmt.Errorf("get session: %w", err)
	}
	return userID, nil
}

// Delete removes a session. Missing rows are fine.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.writeDB.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns the number
// removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.writeDB.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
