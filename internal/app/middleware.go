package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/sustainhub/sustainability-hub/internal/observability"
	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
	"github.com/sustainhub/sustainability-hub/internal/shared"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimit      = 120
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// MiddlewareStack returns the chain wrapped around every page. Order matters: the session
// is loaded before the limiter and CSRF check, which both key on it.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		loadSession(cfg),
		middleware.Recoverer,
		middleware.Timeout(cfg.requestTimeout()),
		secureHeaders(cfg),
		middleware.Compress(5),
		limitPerSession(cfg),
		verifyCSRF(cfg),
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	return stack
}

func (cfg MiddlewareConfig) requestTimeout() time.Duration {
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		return cfg.Config.AppRequestTimeout
	}
	return defaultRequestTimeout
}

func (cfg MiddlewareConfig) rateLimit() int {
	if cfg.Config != nil && cfg.Config.AppRateLimit > 0 {
		return cfg.Config.AppRateLimit
	}
	return defaultRateLimit
}

func (cfg MiddlewareConfig) production() bool {
	return cfg.Config != nil && cfg.Config.IsProduction()
}

// loadSession attaches the browser session to the request context. The session is written
// back just before the response header goes out, so handlers may add flashes up to their
// first write.
func loadSession(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			next.ServeHTTP(&sessionWriter{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				ctx:            context.WithoutCancel(ctx),
				logger:         cfg.Logger,
			}, r.WithContext(ctx))
		})
	}
}

type sessionWriter struct {
	http.ResponseWriter
	sess      *shared.Session
	manager   *shared.SessionManager
	ctx       context.Context
	logger    *slog.Logger
	committed bool
}

func (w *sessionWriter) WriteHeader(status int) {
	if !w.committed {
		w.committed = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("failed to commit session", slog.String("session", w.sess.ID), slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// secureHeaders sets the browser hardening headers. The pages load only their own script and
// stylesheet, so everything is restricted to self.
func secureHeaders(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "same-origin",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=()",
		ContentSecurityPolicy: "default-src 'self'; form-action 'self'; frame-ancestors 'none'",
		SSLRedirect:           cfg.production(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            31536000,
		IsDevelopment:         !cfg.production(),
	})
	sec.SetBadHostHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusBadRequest, "Bad host", "")
	}))
	return sec.Handler
}

// limitPerSession caps requests per browser session, falling back to the client IP for
// requests that have none.
func limitPerSession(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return httprate.Limit(cfg.rateLimit(), time.Minute,
		httprate.WithKeyFuncs(shared.RateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			cfg.Metrics.Rejected(observability.RejectRateLimit)
			cfg.Logger.Warn("rate limit exceeded", slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests),
				"Too many requests, try again in a minute")
		}),
	)
}

// verifyCSRF rejects unsafe methods whose token does not match the session's.
func verifyCSRF(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get(shared.CSRFHeader)
			if token == "" {
				token = r.PostFormValue(shared.CSRFFormField)
			}
			if err := cfg.CSRFManager.VerifyToken(shared.SessionFromContext(r.Context()), token); err != nil {
				cfg.Metrics.Rejected(observability.RejectCSRF)
				cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				if httpx.WantsJSON(r) {
					httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), "Missing or invalid CSRF token")
					return
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
