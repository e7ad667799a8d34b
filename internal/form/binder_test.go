package form

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
)

type record struct {
	Name  string
	Color string
}

type recorder struct {
	calls []record
	err   error
}

func (r *recorder) submit(_ context.Context, rec record) error {
	r.calls = append(r.calls, rec)
	return r.err
}

var allowedColors = map[string]bool{"green": true, "blue": true}

func newTestBinder(t *testing.T, rec *recorder) *Binder[record] {
	t.Helper()
	binder, err := NewBinder(Config[record]{
		Schema: Schema{
			{Name: "name", Label: "Name", Required: true, Trim: true, MinLength: 3},
			{Name: "color", Label: "Color", Required: true, Check: &Check{
				Tag:       "color",
				Predicate: func(_ context.Context, v string) bool { return allowedColors[v] },
				Message:   "Pick a listed color",
			}},
		},
		Assemble: func(v Values) record {
			return record{Name: v.Get("name"), Color: v.Get("color")}
		},
		Submit:         rec.submit,
		SuccessMessage: "Saved!",
	})
	require.NoError(t, err)
	return binder
}

func newController() *lifecycle.Controller[struct{}] {
	return lifecycle.New[struct{}](lifecycle.Options{Name: "form"})
}

func TestBinder_RequiredFieldsBlockSubmission(t *testing.T) {
	rec := &recorder{}
	binder := newTestBinder(t, rec)
	ctrl := newController()

	out := binder.Submit(context.Background(), ctrl, Values{"name": "", "color": ""})
	require.True(t, out.Invalid())
	require.Equal(t, DefaultRequiredMessage, out.Errors.Get("name"))
	require.Equal(t, DefaultRequiredMessage, out.Errors.Get("color"))
	require.False(t, out.Submitted)
	require.Empty(t, rec.calls, "no network call for invalid input")
	require.Equal(t, lifecycle.PhaseIdle, ctrl.Phase())
}

func TestBinder_MinLengthMessage(t *testing.T) {
	rec := &recorder{}
	binder := newTestBinder(t, rec)

	out := binder.Submit(context.Background(), newController(), Values{"name": "ab", "color": "green"})
	require.Equal(t, "Name must be at least 3 characters", out.Errors.Get("name"))
	require.False(t, out.Errors.Has("color"))
	require.Empty(t, rec.calls)
}

func TestBinder_TrimmedWhitespaceIsEmpty(t *testing.T) {
	binder := newTestBinder(t, &recorder{})
	errs := binder.Validate(context.Background(), Values{"name": "   ", "color": "blue"})
	require.Equal(t, Errors{"name": DefaultRequiredMessage}, errs)
}

func TestBinder_CustomPredicate(t *testing.T) {
	binder := newTestBinder(t, &recorder{})
	errs := binder.Validate(context.Background(), Values{"name": "Acme", "color": "purple"})
	require.Equal(t, "Pick a listed color", errs.Get("color"))
}

func TestBinder_SuccessResetsFields(t *testing.T) {
	rec := &recorder{}
	binder := newTestBinder(t, rec)
	ctrl := newController()

	out := binder.Submit(context.Background(), ctrl, Values{"name": " Acme ", "color": "green"})
	require.True(t, out.OK())
	require.Equal(t, "Saved!", out.Notice)
	require.Empty(t, out.Failure)
	if diff := cmp.Diff(Values{"name": "", "color": ""}, out.Values); diff != "" {
		t.Fatalf("values not reset (-want +got):\n%s", diff)
	}
	require.Equal(t, []record{{Name: "Acme", Color: "green"}}, rec.calls)
	require.Equal(t, lifecycle.PhaseSuccess, ctrl.Phase())
}

func TestBinder_FailureKeepsFields(t *testing.T) {
	rec := &recorder{err: errors.New("server said no")}
	binder := newTestBinder(t, rec)
	ctrl := newController()

	values := Values{"name": "Acme", "color": "blue"}
	out := binder.Submit(context.Background(), ctrl, values)
	require.True(t, out.Submitted)
	require.False(t, out.OK())
	require.Equal(t, "server said no", out.Failure)
	require.Empty(t, out.Notice)
	require.Equal(t, values, out.Values)
	require.Equal(t, lifecycle.PhaseError, ctrl.Phase())
}

func TestBinder_Bind(t *testing.T) {
	binder := newTestBinder(t, &recorder{})
	body := url.Values{"name": {"  Acme  "}, "color": {"green"}, "extra": {"ignored"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values := binder.Bind(req)
	require.Equal(t, Values{"name": "Acme", "color": "green"}, values)
}

func TestNewBinder_RequiresCallbacks(t *testing.T) {
	_, err := NewBinder(Config[record]{})
	require.Error(t, err)
}

func TestSchemaLookup(t *testing.T) {
	schema := Schema{{Name: "a"}, {Name: "b", Label: "Bee"}}
	f, ok := schema.Lookup("b")
	require.True(t, ok)
	require.Equal(t, "Bee", f.Label)
	_, ok = schema.Lookup("c")
	require.False(t, ok)
}
