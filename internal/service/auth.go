// Package service contains the application services sitting between the HTTP
// layer and persistence.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"skycrm/internal/auth"
	"skycrm/internal/domain"
	"skycrm/internal/schema"
)

// codeTTL is how long a signup verification code stays valid.
const codeTTL = 10 * time.Minute

// AuthService implements account lifecycle: signup with email verification,
// interactive login with sessions, password reset, and API key issuance.
type AuthService struct {
	users    domain.UserRepository
	signups  domain.SignupRepository
	sessions domain.SessionRepository
	mailer   domain.Mailer

	tokens      *auth.TokenIssuer
	resetTokens *auth.TokenIssuer
	keys        *auth.APIKeyHasher

	sessionTTL time.Duration
	apiKeyTTL  time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService wires an AuthService.
func NewAuthService(
	users domain.UserRepository,
	signups domain.SignupRepository,
	sessions domain.SessionRepository,
	mailer domain.Mailer,
	tokens, resetTokens *auth.TokenIssuer,
	keys *auth.APIKeyHasher,
	sessionTTL, apiKeyTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		signups:     signups,
		sessions:    sessions,
		mailer:      mailer,
		tokens:      tokens,
		resetTokens: resetTokens,
		keys:        keys,
		sessionTTL:  sessionTTL,
		apiKeyTTL:   apiKeyTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// StartSignup records a pending signup and emails a verification code. The
// account itself is not created until the code is confirmed.
func (s *AuthService) StartSignup(ctx context.Context, req domain.SignupRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return domain.ErrConflict("an account with email %q already exists", req.Email)
	} else {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	code, err := generateCode()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(codeTTL)

	if err := s.signups.Upsert(ctx, domain.PendingSignup{
		Email:        req.Email,
		Code:         code,
		Name:         req.Name,
		PasswordHash: passwordHash,
		ExpiresAt:    expiresAt,
	}); err != nil {
		return err
	}

	return s.mailer.SendVerificationCode(ctx, req.Email, code, expiresAt)
}

// ResendCode issues a fresh verification code for an in-flight signup.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	if email == "" {
		return domain.ErrValidation("email is required")
	}
	if _, err := s.signups.Get(ctx, email); err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(codeTTL)
	if err := s.signups.RefreshCode(ctx, email, code, expiresAt); err != nil {
		return err
	}
	return s.mailer.SendVerificationCode(ctx, email, code, expiresAt)
}

// VerifySignup confirms a pending signup and creates the account.
func (s *AuthService) VerifySignup(ctx context.Context, email, code string) (*domain.User, error) {
	if email == "" || code == "" {
		return nil, domain.ErrValidation("email and code are required")
	}

	pending, err := s.signups.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if s.now().After(pending.ExpiresAt) {
		return nil, domain.ErrValidation("verification code expired")
	}
	if pending.Code != code {
		return nil, domain.ErrValidation("invalid verification code")
	}

	user, err := s.users.Create(ctx, pending.Name, pending.Email, pending.PasswordHash)
	if err != nil {
		return nil, err
	}
	if err := s.signups.Delete(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to clear pending signup", "email", email, "error", err)
	}

	s.logger.InfoContext(ctx, "account created", "user_id", user.ID)
	return user, nil
}

// LoginResult carries both credentials issued on login: a bearer token for
// API clients and a server-side session for cookie-based clients.
type LoginResult struct {
	User    *domain.User
	Token   string
	Session domain.Session
}

// Login authenticates credentials and issues a bearer token plus a session.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if schema.LooksLikeInjection(req.Email) {
		return nil, domain.ErrValidation("email contains forbidden characters or SQL patterns")
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrAccessDenied("invalid credentials")
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domain.ErrAccessDenied("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, s.now())
	if err != nil {
		return nil, err
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "login", "user_id", user.ID)
	return &LoginResult{User: user, Token: token, Session: session}, nil
}

// Logout removes the session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// RequestPasswordReset emails a short-lived reset link. The response does not
// reveal whether the address has an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return domain.ErrValidation("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}

	token, err := s.resetTokens.Issue(user.ID, s.now())
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.resetTokens.TTL())
	link := "/auth/reset-password?token=" + token
	return s.mailer.SendResetLink(ctx, email, link, expiresAt)
}

// ResetPassword sets a new password given a valid reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return domain.ErrValidation("token and new password are required")
	}

	userID, err := s.resetTokens.Verify(token)
	if err != nil {
		return domain.ErrAccessDenied("invalid or expired reset token")
	}
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", userID)
	return nil
}

// IssuedKey reports a freshly issued API key. The raw key is only ever
// available here.
type IssuedKey struct {
	Key       string
	ExpiresAt time.Time
}

// IssueAPIKey generates a new API key for the user, replacing any previous
// one.
func (s *AuthService) IssueAPIKey(ctx context.Context, userID int64) (*IssuedKey, error) {
	rawKey, keyHash, err := s.keys.GenerateKey()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.apiKeyTTL)
	if err := s.users.SetAPIKey(ctx, userID, keyHash, expiresAt); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "api key issued", "user_id", userID)
	return &IssuedKey{Key: rawKey, ExpiresAt: expiresAt}, nil
}

// RevokeAPIKey deactivates the user's API key.
func (s *AuthService) RevokeAPIKey(ctx context.Context, userID int64) error {
	if err := s.users.RevokeAPIKey(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "api key revoked", "user_id", userID)
	return nil
}

// Me returns the account for an authenticated principal.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// generateCode returns a random six digit verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
