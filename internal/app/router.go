package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Corner-venturo/venturo-sub001/internal/auth"
	"github.com/Corner-venturo/venturo-sub001/internal/grants"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/httpx"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	"github.com/Corner-venturo/venturo-sub001/internal/users"
	"github.com/Corner-venturo/venturo-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	IdentityLoader *auth.IdentityLoader
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	GrantsHandler  *grants.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Venturo defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.IdentityLoader != nil {
		r.Use(params.IdentityLoader.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Clients fetch their CSRF token here before issuing mutations.
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("issue csrf token", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"csrfToken": token})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/me", params.AuthHandler.MountSession)
	r.Route("/permissions", params.GrantsHandler.MountCatalog)
	r.Route("/admin/users", func(r chi.Router) {
		params.UsersHandler.MountRoutes(r)
		params.GrantsHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
