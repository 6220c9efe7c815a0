package domain

import (
	"context"
	"time"
)

// Mailer delivers verification codes and reset links. Outbound email is an
// external collaborator; the core only depends on this port.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
	SendResetLink(ctx context.Context, email, link string, expiresAt time.Time) error
}

// UserRepository persists tenant accounts and their API-key credentials.
type UserRepository interface {
	Create(ctx context.Context, name, email, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetAPIKey(ctx context.Context, id int64, keyHash string, expiresAt time.Time) error
	RevokeAPIKey(ctx context.Context, id int64) error
}

// SignupRepository persists pre-verification signups.
type SignupRepository interface {
	Upsert(ctx context.Context, s PendingSignup) error
	Get(ctx context.Context, email string) (*PendingSignup, error)
	RefreshCode(ctx context.Context, email, code string, expiresAt time.Time) error
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository persists server-side interactive sessions.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetUserID(ctx context.Context, sessionID string, now time.Time) (int64, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
