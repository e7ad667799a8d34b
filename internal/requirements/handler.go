package requirements

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/view"
)

const (
	pagePath = "/requirements"
	// refreshedKey holds the list generation produced by the last mutation's refetch. The
	// next GET renders that snapshot instead of fetching again.
	refreshedKey  = "requirements.refreshed"
	mutationLimit = 60
)

// Handler serves the requirements board.
type Handler struct {
	logger    *slog.Logger
	boards    *Boards
	templates *view.Engine
	csrf      *shared.CSRFManager
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, boards *Boards, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	limiter := httprate.Limit(mutationLimit, time.Minute,
		httprate.WithKeyFuncs(shared.RateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "Too many changes. Please slow down.")
		}),
	)
	return &Handler{logger: logger, boards: boards, templates: templates, csrf: csrf, rateLimit: limiter}
}

// MountRoutes registers requirements routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(pagePath, h.handleList)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post(pagePath, h.handleAdd)
		r.Post(pagePath+"/{id}/toggle", h.handleToggle)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	board := h.boards.For(shared.OwnerKey(ctx))
	if !takeRefreshed(shared.SessionFromContext(ctx), board) {
		_, _ = board.Load(ctx)
	}
	v := board.View()
	if httpx.WantsJSON(r) {
		status := http.StatusOK
		if v.Phase == lifecycle.PhaseError {
			status = http.StatusBadGateway
		}
		httpx.JSON(w, status, v)
		return
	}
	h.render(w, r, v, http.StatusOK)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	board := h.boards.For(shared.OwnerKey(ctx))
	outcome := board.Add(ctx, r.PostFormValue(FieldName))

	switch {
	case outcome.Invalid():
		v := board.View()
		v.Draft = outcome.Values.Get(FieldName)
		v.DraftError = outcome.Errors.Get(FieldName)
		h.respond(w, r, v, http.StatusBadRequest)
	case !outcome.OK():
		v := board.View()
		v.Draft = outcome.Values.Get(FieldName)
		v.MutationError = outcome.Failure
		h.respond(w, r, v, httpx.UpstreamStatus(outcome.Err))
	default:
		h.afterMutation(w, r, board)
	}
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	board := h.boards.For(shared.OwnerKey(ctx))
	if err := board.Toggle(ctx, requirementID(r)); err != nil {
		v := board.View()
		v.MutationError = lifecycle.Message(err)
		h.respond(w, r, v, httpx.UpstreamStatus(err))
		return
	}
	h.afterMutation(w, r, board)
}

// requirementID returns the decoded {id} segment. chi matches on the raw path when the
// request carries escaped slashes, leaving the parameter escaped.
func requirementID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id
	}
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

// afterMutation hands the refetched list to the next GET and redirects to it.
func (h *Handler) afterMutation(w http.ResponseWriter, r *http.Request, board *Board) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, board.View())
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(refreshedKey, strconv.FormatUint(board.Snapshot().Generation, 10))
	}
	http.Redirect(w, r, pagePath, http.StatusSeeOther)
}

// takeRefreshed consumes the refreshed marker and reports whether the board still holds the
// snapshot it names.
func takeRefreshed(sess *shared.Session, board *Board) bool {
	if sess == nil {
		return false
	}
	marker := sess.Get(refreshedKey)
	if marker == "" {
		return false
	}
	sess.Delete(refreshedKey)
	snap := board.Snapshot()
	return !snap.Loading() && strconv.FormatUint(snap.Generation, 10) == marker
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v View, status int) {
	if httpx.WantsJSON(r) {
		detail := v.MutationError
		if detail == "" {
			detail = v.DraftError
		}
		httpx.Problem(w, status, http.StatusText(status), detail)
		return
	}
	h.render(w, r, v, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, v View, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	data := view.TemplateData{
		Title:       "Gather Requirements",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: pagePath,
		Data:        v,
	}
	if err := h.templates.Render(w, status, "pages/requirements.html", data); err != nil {
		h.logger.Error("render requirements", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
