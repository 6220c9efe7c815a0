package api

import (
	"log/slog"
	"net/http"
	"time"

	"skycrm/internal/domain"
	"skycrm/internal/middleware"
	"skycrm/internal/service"
)

// AuthHandler serves the account lifecycle endpoints.
type AuthHandler struct {
	auth          *service.AuthService
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies should be true in
// production so session cookies are HTTPS-only.
func NewAuthHandler(auth *service.AuthService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookies: secureCookies, logger: logger}
}

func userToAPI(u *domain.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"created_at": u.CreatedAt.Format(time.RFC3339),
	}
}

// Signup starts a signup and emails a verification code.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := domain.SignupRequest{
		Name:     stringValue(payload, "name"),
		Email:    stringValue(payload, "email"),
		Password: stringValue(payload, "password"),
	}
	if err := h.auth.StartSignup(r.Context(), req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "verification code sent"})
}

// Verify confirms a signup code and creates the account.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.auth.VerifySignup(r.Context(),
		stringValue(payload, "email"), stringValue(payload, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToAPI(user))
}

// Resend issues a fresh verification code for an in-flight signup.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.auth.ResendCode(r.Context(), stringValue(payload, "email")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "verification code sent"})
}

// Login authenticates credentials, sets the session cookie, and returns a
// bearer token for API clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.auth.Login(r.Context(), domain.LoginRequest{
		Email:    stringValue(payload, "email"),
		Password: stringValue(payload, "password"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    result.Session.ID,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  userToAPI(result.User),
	})
}

// Logout removes the session and clears the cookie. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

// RequestReset emails a password reset link. The response is identical
// whether or not the address has an account.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), stringValue(payload, "email")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "if the account exists, a reset link was sent"})
}

// ResetPassword sets a new password given a valid reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(),
		stringValue(payload, "token"), stringValue(payload, "new_password")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.auth.Me(r.Context(), p.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userToAPI(user))
}

// IssueAPIKey generates a new API key for the caller. The raw key appears in
// this response only.
func (h *AuthHandler) IssueAPIKey(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	issued, err := h.auth.IssueAPIKey(r.Context(), p.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key":    issued.Key,
		"expires_at": issued.ExpiresAt.Format(time.RFC3339),
	})
}

// RevokeAPIKey deactivates the caller's API key.
func (h *AuthHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.auth.RevokeAPIKey(r.Context(), p.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "api key revoked"})
}

func stringValue(payload map[string]any, field string) string {
	s, _ := payload[field].(string)
	return s
}
