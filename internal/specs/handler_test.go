package specs

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sustainhub/sustainability-hub/internal/backend"
	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/view"
)

type fakeAPI struct {
	mu             sync.Mutex
	industries     []string
	failIndustries bool
	rejectStatus   int
	created        []BusinessSpecification
	posts          int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/api/industries":
		if f.failIndustries {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(f.industries)
	case "/api/business-specifications":
		f.posts++
		if f.rejectStatus != 0 {
			w.WriteHeader(f.rejectStatus)
			_, _ = w.Write([]byte(`{"detail":"A specification with this name already exists"}`))
			return
		}
		var spec BusinessSpecification
		_ = json.NewDecoder(r.Body).Decode(&spec)
		f.created = append(f.created, spec)
		w.WriteHeader(http.StatusCreated)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) Posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

type harness struct {
	router http.Handler
	sess   *shared.Session
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(NewRepository(backend.NewClient(srv.URL, time.Second)), lifecycle.Options{Logger: logger}, time.Hour)
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	sess := &shared.Session{ID: "browser-1"}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	NewHandler(logger, svc, templates, shared.NewCSRFManager("secret")).MountRoutes(r)
	return &harness{router: r, sess: sess}
}

func (h *harness) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func validForm() url.Values {
	return url.Values{
		"name":        {"Green Grocer"},
		"description": {"Zero-waste neighbourhood store"},
		"industry":    {"Retail"},
		"features":    {"bulk bins, compost, Bulk Bins"},
	}
}

func TestHandler_ShowFormListsIndustries(t *testing.T) {
	h := newHarness(t, &fakeAPI{industries: []string{"Retail", "Energy"}})

	rec := h.do(http.MethodGet, "/specifications/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `<option value="Retail">Retail</option>`)
	require.Contains(t, body, `<option value="Energy">Energy</option>`)
	require.Contains(t, body, "Create Business Specification")
}

func TestHandler_IndustriesFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, &fakeAPI{failIndustries: true})

	rec := h.do(http.MethodGet, "/specifications/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "<option")
}

func TestHandler_RequiredFieldsBlockSubmission(t *testing.T) {
	api := &fakeAPI{industries: []string{"Retail"}}
	h := newHarness(t, api)

	rec := h.do(http.MethodPost, "/specifications", url.Values{"name": {""}, "description": {""}, "features": {""}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 3, strings.Count(rec.Body.String(), "This field is required"))
	require.Zero(t, api.Posts())
}

func TestHandler_ShortNameBlocked(t *testing.T) {
	api := &fakeAPI{}
	h := newHarness(t, api)

	form := validForm()
	form.Set("name", "ab")
	rec := h.do(http.MethodPost, "/specifications", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Name must be at least 3 characters")
	require.Zero(t, api.Posts())
}

func TestHandler_FeaturesOfOnlySeparatorsBlocked(t *testing.T) {
	api := &fakeAPI{}
	h := newHarness(t, api)

	form := validForm()
	form.Set("features", " , ,")
	rec := h.do(http.MethodPost, "/specifications", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 1, strings.Count(rec.Body.String(), "This field is required"))
	require.Zero(t, api.Posts())
	require.Empty(t, api.created)
}

func TestHandler_UnknownIndustryBlocked(t *testing.T) {
	api := &fakeAPI{industries: []string{"Retail"}}
	h := newHarness(t, api)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/specifications/new", nil).Code)

	form := validForm()
	form.Set("industry", "Mining")
	rec := h.do(http.MethodPost, "/specifications", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Select one of the listed industries")
	require.Zero(t, api.Posts())
}

func TestHandler_SuccessFlashesOnceAndResets(t *testing.T) {
	api := &fakeAPI{industries: []string{"Retail"}}
	h := newHarness(t, api)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/specifications/new", nil).Code)

	rec := h.do(http.MethodPost, "/specifications", validForm())
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/specifications/new", rec.Header().Get("Location"))
	require.Equal(t, []BusinessSpecification{{
		Name:        "Green Grocer",
		Description: "Zero-waste neighbourhood store",
		Industry:    "Retail",
		Features:    []string{"bulk bins", "compost"},
	}}, api.created)

	rec = h.do(http.MethodGet, "/specifications/new", nil)
	body := rec.Body.String()
	require.Equal(t, 1, strings.Count(body, SuccessMessage))
	require.Contains(t, body, `id="name" name="name" value=""`)

	rec = h.do(http.MethodGet, "/specifications/new", nil)
	require.NotContains(t, rec.Body.String(), SuccessMessage)
}

func TestHandler_RejectedKeepsValues(t *testing.T) {
	api := &fakeAPI{industries: []string{"Retail"}, rejectStatus: http.StatusConflict}
	h := newHarness(t, api)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/specifications/new", nil).Code)

	rec := h.do(http.MethodPost, "/specifications", validForm())
	require.Equal(t, http.StatusConflict, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `value="Green Grocer"`)
	require.Contains(t, body, "Zero-waste neighbourhood store</textarea>")
	require.Contains(t, body, `<option value="Retail" selected>Retail</option>`)
	require.Contains(t, body, "A specification with this name already exists")
	require.NotContains(t, body, SuccessMessage)
	require.Equal(t, 1, api.Posts())
}
