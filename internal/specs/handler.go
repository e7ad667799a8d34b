package specs

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

const formPath = "/specifications/new"

// Handler serves the business specification form.
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

// MountRoutes registers business specification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(formPath, h.showForm)
	r.With(h.rateLimit).Post("/specifications", h.createSpecification)
}

// FormView is the template payload of the specification form.
type FormView struct {
	Values     form.Values
	Errors     form.Errors
	Failure    string
	Industries []Industry
	Busy       bool
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	owner := shared.OwnerKey(r.Context())
	snap, err := h.service.LoadIndustries(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to load industries", slog.Any("error", err))
	}
	h.render(w, r, FormView{
		Values:     h.service.Empty(),
		Errors:     form.Errors{},
		Industries: snap.Data,
		Busy:       h.service.Busy(owner),
	}, http.StatusOK)
}

func (h *Handler) createSpecification(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	owner := shared.OwnerKey(r.Context())
	outcome := h.service.Submit(r.Context(), owner, h.service.Bind(r))
	if outcome.OK() {
		h.redirectWithFlash(w, r, formPath, shared.FlashSuccess, outcome.Notice)
		return
	}

	status := http.StatusBadRequest
	if !outcome.Invalid() {
		h.logger.Error("failed to create business specification", slog.Any("error", outcome.Err))
		status = httpx.UpstreamStatus(outcome.Err)
	}
	h.render(w, r, FormView{
		Values:     outcome.Values,
		Errors:     outcome.Errors,
		Failure:    outcome.Failure,
		Industries: h.service.Industries(owner).Data,
		Busy:       outcome.Busy,
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data FormView, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	viewData := view.TemplateData{
		Title:       "Create Business Specification",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: formPath,
		Data:        data,
	}
	if err := h.templates.Render(w, status, "pages/specification_form.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
