package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"skycrm/internal/config"
	"skycrm/internal/middleware"
	"skycrm/internal/service"
)

// NewRouter assembles the full HTTP surface: public auth and health
// endpoints, then the authenticated CRUD, CRM, and account routes.
func NewRouter(
	cfg *config.Config,
	authn *middleware.Authenticator,
	authSvc *service.AuthService,
	resourceSvc *service.ResourceService,
	logger *slog.Logger,
) http.Handler {
	authHandler := NewAuthHandler(authSvc, cfg.IsProduction(), logger)
	resourceHandler := NewResourceHandler(resourceSvc, logger)
	crmHandler := NewCRMHandler(resourceSvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	// Public account endpoints.
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/verify", authHandler.Verify)
		r.Post("/resend", authHandler.Resend)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/reset-request", authHandler.RequestReset)
		r.Post("/reset-password", authHandler.ResetPassword)

		// Authenticated account endpoints.
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Get("/me", authHandler.Me)
		})

		// Key management accepts only a bearer token, never a key or
		// session, so a leaked key cannot replace itself.
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireBearer)
			r.Post("/api-key", authHandler.IssueAPIKey)
			r.Delete("/api-key", authHandler.RevokeAPIKey)
		})
	})

	// Schema introspection is a passive read-only surface.
	r.Get("/docs", crmHandler.Docs)

	// Authenticated resource and CRM endpoints.
	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)
		resourceHandler.Mount(r)
		r.Get("/crm/dashboard", crmHandler.Dashboard)
		r.Post("/crm/business", crmHandler.CreateBusiness)
	})

	return r
}
