// Package middleware provides the HTTP middleware chain: authentication,
// request IDs, and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"skycrm/internal/domain"
)

// SessionCookieName is the cookie carrying the interactive session ID.
const SessionCookieName = "session_id"

// TokenVerifier validates a bearer token and returns the user ID it was
// issued for.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// KeyHasher derives the stored lookup hash for a raw API key.
type KeyHasher interface {
	Hash(rawKey string) string
}

// UserLoader resolves users for the authenticator.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*domain.User, error)
}

// SessionResolver resolves an interactive session to its user.
type SessionResolver interface {
	GetUserID(ctx context.Context, sessionID string, now time.Time) (int64, error)
}

// Authenticator resolves the request principal from, in order: a Bearer
// token, an ApiKey credential, or, only when no Authorization header is
// present at all, the session cookie.
//
// A declared scheme is authoritative: a malformed or invalid Bearer token is
// rejected outright rather than falling through to the next mechanism.
type Authenticator struct {
	tokens   TokenVerifier
	hasher   KeyHasher
	users    UserLoader
	sessions SessionResolver
	now      func() time.Time
}

// NewAuthenticator wires an Authenticator.
func NewAuthenticator(tokens TokenVerifier, hasher KeyHasher, users UserLoader, sessions SessionResolver) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		hasher:   hasher,
		users:    users,
		sessions: sessions,
		now:      time.Now,
	}
}

// RequireAuth returns middleware that rejects unauthenticated requests with
// 401 and otherwise stores the resolved principal in the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return a.require(next, false)
}

// RequireBearer is RequireAuth restricted to the Bearer scheme. Key
// management sits behind it so an API key or session can never mint or
// revoke keys.
func (a *Authenticator) RequireBearer(next http.Handler) http.Handler {
	return a.require(next, true)
}

func (a *Authenticator) require(next http.Handler, bearerOnly bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerOnly {
			scheme, _, _ := strings.Cut(r.Header.Get("Authorization"), " ")
			if !strings.EqualFold(scheme, "Bearer") {
				writeUnauthorized(w, "bearer token required")
				return
			}
		}
		user, err := a.resolve(r)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}
		ctx := domain.WithPrincipal(r.Context(), domain.ContextPrincipal{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(r *http.Request) (*domain.User, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, credential, _ := strings.Cut(header, " ")
		credential = strings.TrimSpace(credential)

		switch {
		case strings.EqualFold(scheme, "Bearer"):
			userID, err := a.tokens.Verify(credential)
			if err != nil {
				return nil, domain.ErrAccessDenied("invalid or expired token")
			}
			user, err := a.users.GetByID(r.Context(), userID)
			if err != nil {
				return nil, domain.ErrAccessDenied("invalid or expired token")
			}
			return user, nil

		case strings.EqualFold(scheme, "ApiKey"):
			user, err := a.users.GetByAPIKeyHash(r.Context(), a.hasher.Hash(credential))
			if err != nil {
				return nil, domain.ErrAccessDenied("invalid API key")
			}
			if user.APIKeyExpiresAt != nil && a.now().After(*user.APIKeyExpiresAt) {
				return nil, domain.ErrAccessDenied("API key expired")
			}
			return user, nil

		default:
			return nil, domain.ErrAccessDenied("unsupported authorization scheme")
		}
	}

	// Session fallback only when no Authorization header was sent at all.
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrAccessDenied("authentication required")
	}
	userID, err := a.sessions.GetUserID(r.Context(), cookie.Value, a.now())
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid or expired session")
	}
	user, err := a.users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid or expired session")
	}
	return user, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
