package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sustainhub/sustainability-hub/internal/landing"
	"github.com/sustainhub/sustainability-hub/internal/observability"
	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
	"github.com/sustainhub/sustainability-hub/internal/requirements"
	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/specs"
	"github.com/sustainhub/sustainability-hub/internal/testcases"
	"github.com/sustainhub/sustainability-hub/jobs"
	"github.com/sustainhub/sustainability-hub/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	LandingHandler      *landing.Handler
	SpecsHandler        *specs.Handler
	RequirementsHandler *requirements.Handler
	TestCasesHandler    *testcases.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
	Health              HealthCheck
}

// NewRouter constructs the chi.Router with the hub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Static assets skip the session, CSRF and rate limits.
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}
	r.Get("/healthz", healthzHandler(params.Health, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
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

		if params.LandingHandler != nil {
			r.Method(http.MethodGet, "/", params.LandingHandler)
		}
		if params.SpecsHandler != nil {
			params.SpecsHandler.MountRoutes(r)
		}
		if params.RequirementsHandler != nil {
			params.RequirementsHandler.MountRoutes(r)
		}
		if params.TestCasesHandler != nil {
			params.TestCasesHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(r *http.Request) error

func healthzHandler(check HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				logger.Warn("health check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
