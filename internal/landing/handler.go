package landing

import (
	"log/slog"
	"net/http"

	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/view"
)

// Handler serves the home page.
type Handler struct {
	logger    *slog.Logger
	content   Content
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, content Content, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, content: content, templates: templates, csrf: csrf}
}

// ServeHTTP renders the landing page.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	data := view.TemplateData{
		Title:       h.content.Title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        h.content,
	}
	if err := h.templates.Render(w, http.StatusOK, "pages/landing.html", data); err != nil {
		h.logger.Error("render landing", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
