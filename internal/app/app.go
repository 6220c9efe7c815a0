// Package app wires repositories, services, and the HTTP router from the
// external dependencies main() provides.
package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"skycrm/internal/api"
	"skycrm/internal/auth"
	"skycrm/internal/config"
	"skycrm/internal/mail"
	"skycrm/internal/middleware"
	"skycrm/internal/repository"
	"skycrm/internal/schema"
	"skycrm/internal/service"
	"skycrm/internal/store"
)

// resetTokenTTL bounds password reset links.
const resetTokenTTL = 15 * time.Minute

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App is the fully wired application.
type App struct {
	Router  http.Handler
	Janitor *service.Janitor
}

// New wires the application from the provided deps.
func New(deps Deps) *App {
	cfg := deps.Cfg

	reg := schema.NewCRMRegistry()
	st := store.New(deps.WriteDB, deps.ReadDB, reg)

	userRepo := repository.NewUserRepository(deps.WriteDB, deps.ReadDB)
	signupRepo := repository.NewSignupRepository(deps.WriteDB, deps.ReadDB)
	sessionRepo := repository.NewSessionRepository(deps.WriteDB, deps.ReadDB)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	resetTokens := auth.NewTokenIssuer(cfg.JWTSecret+":reset", resetTokenTTL)
	keys := auth.NewAPIKeyHasher(cfg.APIKeySecret)
	mailer := mail.NewLogMailer(deps.Logger.With("component", "mailer"))

	authSvc := service.NewAuthService(
		userRepo, signupRepo, sessionRepo, mailer,
		tokens, resetTokens, keys,
		cfg.SessionTTL, cfg.APIKeyTTL,
		deps.Logger.With("component", "auth"),
	)
	resourceSvc := service.NewResourceService(reg, st, deps.Logger.With("component", "resources"))

	authn := middleware.NewAuthenticator(tokens, keys, userRepo, sessionRepo)
	router := api.NewRouter(cfg, authn, authSvc, resourceSvc, deps.Logger)

	janitor := service.NewJanitor(sessionRepo, signupRepo, deps.Logger.With("component", "janitor"))

	return &App{Router: router, Janitor: janitor}
}
