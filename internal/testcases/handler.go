package testcases

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/sustainhub/sustainability-hub/internal/form"
	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/view"
)

const formPath = "/tests/new"

// Handler serves the write-tests form.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	limiter := httprate.Limit(20, time.Minute,
		httprate.WithKeyFuncs(shared.RateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rateLimit: limiter}
}

// MountRoutes registers write-tests routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(formPath, h.showForm)
	r.With(h.rateLimit).Post("/tests", h.createTest)
}

// FormView is the template payload of the write-tests form.
type FormView struct {
	Values  form.Values
	Errors  form.Errors
	Failure string
	Detail  string
	Busy    bool
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, FormView{
		Values: h.service.Empty(),
		Errors: form.Errors{},
		Busy:   h.service.Busy(shared.OwnerKey(r.Context())),
	}, http.StatusOK)
}

func (h *Handler) createTest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	outcome := h.service.Submit(r.Context(), shared.OwnerKey(r.Context()), h.service.Bind(r))
	if outcome.OK() {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: outcome.Notice})
		}
		http.Redirect(w, r, formPath, http.StatusSeeOther)
		return
	}

	data := FormView{Values: outcome.Values, Errors: outcome.Errors, Busy: outcome.Busy}
	status := http.StatusBadRequest
	if !outcome.Invalid() {
		h.logger.Error("failed to create test", slog.Any("error", outcome.Err))
		data.Failure = FailureMessage
		data.Detail = outcome.Failure
		status = httpx.UpstreamStatus(outcome.Err)
	}
	h.render(w, r, data, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data FormView, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	viewData := view.TemplateData{
		Title:       "Write Tests",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: formPath,
		Data:        data,
	}
	if err := h.templates.Render(w, status, "pages/testcase_form.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
