package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycrm/internal/auth"
	"skycrm/internal/config"
	"skycrm/internal/db"
	"skycrm/internal/middleware"
	"skycrm/internal/repository"
	"skycrm/internal/schema"
	"skycrm/internal/service"
	"skycrm/internal/store"
)

type captureMailer struct {
	codes map[string]string
	links map[string]string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, email, code string, _ time.Time) error {
	m.codes[email] = code
	return nil
}

func (m *captureMailer) SendResetLink(_ context.Context, email, link string, _ time.Time) error {
	m.links[email] = link
	return nil
}

type fixture struct {
	router http.Handler
	mailer *captureMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)

	cfg := &config.Config{
		ListenAddr:         ":0",
		LogLevel:           "error",
		JWTSecret:          "test-secret",
		APIKeySecret:       "test-key-secret",
		TokenTTL:           time.Hour,
		APIKeyTTL:          24 * time.Hour,
		SessionTTL:         time.Hour,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := schema.NewCRMRegistry()
	st := store.New(writeDB, readDB, reg)
	userRepo := repository.NewUserRepository(writeDB, readDB)
	signupRepo := repository.NewSignupRepository(writeDB, readDB)
	sessionRepo := repository.NewSessionRepository(writeDB, readDB)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	resetTokens := auth.NewTokenIssuer(cfg.JWTSecret+":reset", 15*time.Minute)
	keys := auth.NewAPIKeyHasher(cfg.APIKeySecret)
	mailer := &captureMailer{codes: map[string]string{}, links: map[string]string{}}

	authSvc := service.NewAuthService(
		userRepo, signupRepo, sessionRepo, mailer,
		tokens, resetTokens, keys,
		cfg.SessionTTL, cfg.APIKeyTTL, logger,
	)
	resourceSvc := service.NewResourceService(reg, st, logger)
	authn := middleware.NewAuthenticator(tokens, keys, userRepo, sessionRepo)

	return &fixture{
		router: NewRouter(cfg, authn, authSvc, resourceSvc, logger),
		mailer: mailer,
	}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.1.1.1:5555"
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

// registerAndLogin runs the full signup flow and returns a Bearer token.
func (f *fixture) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/signup", "",
		`{"name":"Ada","email":"`+email+`","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/auth/verify", "",
		`{"email":"`+email+`","code":"`+f.mailer.codes[email]+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/auth/login", "",
		`{"email":"`+email+`","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return "Bearer " + token
}

func TestHealthz_Public(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutes_Require401(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/prospects", "/crm/dashboard?count=5", "/auth/me"} {
		rec := f.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestProspectCRUD_RoundTrip(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/prospects", token,
		`{"name":"Acme","email":"sales@acme.test","pain_score":7,"status":"new"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := created["id"].(float64)
	assert.Equal(t, "Acme", created["name"])
	assert.Equal(t, float64(7), created["pain_score"])

	rec = f.do(t, http.MethodGet, "/prospects", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodPut, "/prospects/"+itoa(id), token, `{"status":"contacted"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "contacted", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodDelete, "/prospects/"+itoa(id), token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/prospects/"+itoa(id), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Second delete also reports not found.
	rec = f.do(t, http.MethodDelete, "/prospects/"+itoa(id), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreate_ValidationErrorsListShape(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/prospects", token, `{"user_id":1,"bogus":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errs, ok := body["errors"].([]any)
	require.True(t, ok, "expected errors list, got: %s", rec.Body.String())
	assert.Equal(t, "user_id cannot be provided manually", errs[0])
	assert.NotContains(t, body, "error")
}

func TestCreate_MalformedBodyIsStructural(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	for _, body := range []string{"", "{", `[1,2]`, `"text"`} {
		rec := f.do(t, http.MethodPost, "/prospects", token, body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %q", body)
		assert.Equal(t, "invalid or missing JSON body", decodeBody(t, rec)["error"], "body: %q", body)
	}
}

func TestTenantIsolation_EndToEnd(t *testing.T) {
	f := newFixture(t)
	aliceToken := f.registerAndLogin(t, "alice@example.com")
	bobToken := f.registerAndLogin(t, "bob@example.com")

	rec := f.do(t, http.MethodPost, "/prospects", aliceToken,
		`{"name":"Acme","email":"p@acme.test","status":"new"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(decodeBody(t, rec)["id"].(float64))

	// Bob cannot see, update, or delete Alice's record.
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/prospects/"+id, bobToken, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/prospects/"+id, bobToken, `{"status":"won"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/prospects/"+id, bobToken, "").Code)

	// Bob cannot reference Alice's prospect either.
	rec = f.do(t, http.MethodPost, "/interactions", bobToken,
		`{"prospect_id":`+id+`,"channel":"email","type":"outbound","attempt_number":1,"content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateEmail_Conflict(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	body := `{"name":"Acme","email":"dup@acme.test","status":"new"}`
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/prospects", token, body).Code)

	// The validator reports the duplicate as a field violation.
	rec := f.do(t, http.MethodPost, "/prospects", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decodeBody(t, rec)["errors"].([]any)
	assert.Contains(t, errs, "field 'email' must be unique")
}

func TestSessionCookie_Login_Me_Logout(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/auth/login", "",
		`{"email":"ada@example.com","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	req.AddCookie(session)
	meRec := httptest.NewRecorder()
	f.router.ServeHTTP(meRec, req)
	require.Equal(t, http.StatusOK, meRec.Code)
	assert.Equal(t, "ada@example.com", decodeBody(t, meRec)["email"])

	// Logout invalidates the session server-side.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	req.AddCookie(session)
	f.router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	req.AddCookie(session)
	meRec = httptest.NewRecorder()
	f.router.ServeHTTP(meRec, req)
	assert.Equal(t, http.StatusUnauthorized, meRec.Code)
}

func TestAPIKey_IssueAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/auth/api-key", token, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rawKey, _ := decodeBody(t, rec)["api_key"].(string)
	require.NotEmpty(t, rawKey)

	rec = f.do(t, http.MethodGet, "/auth/me", "ApiKey "+rawKey, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A key cannot mint or revoke keys; only a bearer token can.
	rec = f.do(t, http.MethodPost, "/auth/api-key", "ApiKey "+rawKey, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodDelete, "/auth/api-key", "ApiKey "+rawKey, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Revoked keys stop working.
	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/auth/api-key", token, "").Code)
	rec = f.do(t, http.MethodGet, "/auth/me", "ApiKey "+rawKey, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordReset_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/auth/reset-request", "", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	link := f.mailer.links["ada@example.com"]
	require.NotEmpty(t, link)
	resetToken := strings.TrimPrefix(link, "/auth/reset-password?token=")

	rec = f.do(t, http.MethodPost, "/auth/reset-password", "",
		`{"token":"`+resetToken+`","new_password":"changed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/auth/login", "", `{"email":"ada@example.com","password":"changed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard_CountRequired(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/crm/dashboard", token, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/crm/dashboard?count=abc", token, "").Code)

	rec := f.do(t, http.MethodGet, "/crm/dashboard?count=5", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "counts")
	assert.Contains(t, body, "recent_prospects")
}

func TestDashboard_AggregateCounts(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/crm/business", token,
		`{"name":"Globex","email":"contact@globex.test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/crm/dashboard?count=5", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	counts, ok := body["counts"].(map[string]any)
	require.True(t, ok, "expected counts block, got: %s", rec.Body.String())
	assert.Equal(t, float64(1), counts["prospects"])
	// The seeded interaction has attempt_number 0, so nothing was attempted
	// and the seeded pending payment adds no revenue.
	assert.Equal(t, float64(0), counts["interactions_attempted"])
	assert.Equal(t, float64(0), counts["deals_attempted"])
	assert.Equal(t, float64(0), counts["payments_total"])

	recent, ok := body["recent_prospects"].([]any)
	require.True(t, ok)
	require.Len(t, recent, 1)
	assert.Equal(t, "Globex", recent[0].(map[string]any)["name"])
}

func TestBusiness_SeedsBundle(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/crm/business", token,
		`{"name":"Globex","email":"contact@globex.test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotZero(t, body["prospect_id"])
	assert.NotZero(t, body["payment_id"])

	rec = f.do(t, http.MethodGet, "/deals", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var deals []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deals))
	require.Len(t, deals, 1)
	assert.Equal(t, "initiated", deals[0]["stage"])
}

func TestDocs_PublicAndListsAllKinds(t *testing.T) {
	f := newFixture(t)

	// No credentials required; the registry is a passive read-only surface.
	rec := f.do(t, http.MethodGet, "/docs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	for _, kind := range []string{"prospects", "interactions", "deals", "payments"} {
		assert.Contains(t, body, kind)
	}
}

func itoa(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}
