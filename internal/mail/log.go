// Package mail provides outbound mail transports.
package mail

import (
	"context"
	"log/slog"
	"time"

	"skycrm/internal/domain"
)

// LogMailer writes outbound messages to the structured log instead of
// delivering them. It is the development transport; production deployments
// swap in a real one behind the same port.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

var _ domain.Mailer = (*LogMailer)(nil)

// SendVerificationCode logs the signup verification code.
func (m *LogMailer) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.logger.InfoContext(ctx, "verification code issued",
		"email", email,
		"code", code,
		"expires_at", expiresAt.Format(time.RFC3339))
	return nil
}

// SendResetLink logs the password reset link.
func (m *LogMailer) SendResetLink(ctx context.Context, email, link string, expiresAt time.Time) error {
	m.logger.InfoContext(ctx, "password reset link issued",
		"email", email,
		"link", link,
		"expires_at", expiresAt.Format(time.RFC3339))
	return nil
}
