package requirements

import (
	"context"
	"strings"
	"time"

	"github.com/sustainhub/sustainability-hub/internal/form"
	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
)

// FieldName is the form field holding a new requirement's name.
const FieldName = "name"

// RepositoryPort describes the API operations used by a Board.
type RepositoryPort interface {
	List(ctx context.Context) ([]Requirement, error)
	Create(ctx context.Context, draft Draft) error
	Toggle(ctx context.Context, id string) error
}

// Schema declares the add form.
func Schema() form.Schema {
	return form.Schema{
		{Name: FieldName, Label: "Name", Required: true, Trim: true, Messages: form.Messages{Required: "Enter a requirement name"}},
	}
}

// Boards hands out the board owned by each session.
type Boards struct {
	repo      RepositoryPort
	binder    *form.Binder[Draft]
	lists     *lifecycle.Registry[[]Requirement]
	mutations *lifecycle.Registry[struct{}]
}

// NewBoards constructs Boards. Idle boards are dropped after idleTTL.
func NewBoards(repo RepositoryPort, opts lifecycle.Options, idleTTL time.Duration) (*Boards, error) {
	binder, err := form.NewBinder(form.Config[Draft]{
		Schema:   Schema(),
		Assemble: func(v form.Values) Draft { return Draft{Name: v.Get(FieldName)} },
		Submit:   repo.Create,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	listOpts, mutationOpts := opts, opts
	listOpts.Name = "requirements.list"
	mutationOpts.Name = "requirements.mutation"
	return &Boards{
		repo:      repo,
		binder:    binder,
		lists:     lifecycle.NewRegistry[[]Requirement](listOpts, idleTTL),
		mutations: lifecycle.NewRegistry[struct{}](mutationOpts, idleTTL),
	}, nil
}

// For returns the board owned by owner.
func (b *Boards) For(owner string) *Board {
	return &Board{
		repo:     b.repo,
		binder:   b.binder,
		list:     b.lists.For(owner),
		mutation: b.mutations.For(owner),
	}
}

// Board is one session's requirements list. The list controller keeps the last loaded
// records; the mutation controller tracks adds and toggles.
type Board struct {
	repo     RepositoryPort
	binder   *form.Binder[Draft]
	list     *lifecycle.Controller[[]Requirement]
	mutation *lifecycle.Controller[struct{}]
}

// Load fetches the list. On failure the previous rows are kept and the error is recorded.
func (b *Board) Load(ctx context.Context) (lifecycle.Snapshot[[]Requirement], error) {
	return b.list.Run(ctx, b.repo.List)
}

// Add creates a requirement and refetches the list once. A blank name is rejected without
// contacting the API.
func (b *Board) Add(ctx context.Context, name string) form.Outcome {
	outcome := b.binder.Submit(ctx, b.mutation, form.Values{FieldName: name})
	if outcome.OK() {
		_, _ = b.Load(ctx)
	}
	return outcome
}

// Toggle flips one requirement and, when the API accepts it, refetches the list once. The
// row is not changed locally. The returned error is the toggle's; a failed refetch is
// recorded on the list.
func (b *Board) Toggle(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}
	_, err := b.mutation.Run(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.repo.Toggle(ctx, id)
	})
	if err != nil {
		return err
	}
	_, _ = b.Load(ctx)
	return nil
}

// Snapshot returns the list state.
func (b *Board) Snapshot() lifecycle.Snapshot[[]Requirement] {
	return b.list.Snapshot()
}

// Rows renders the current records.
func (b *Board) Rows() []Row {
	return RowsFor(b.list.Snapshot().Data)
}

// View is the board as presented to templates and JSON clients.
type View struct {
	Phase         lifecycle.Phase `json:"phase"`
	Rows          []Row           `json:"requirements"`
	Loading       bool            `json:"loading"`
	Busy          bool            `json:"busy"`
	Error         string          `json:"error,omitempty"`
	MutationError string          `json:"mutationError,omitempty"`
	Draft         string          `json:"-"`
	DraftError    string          `json:"-"`
	Generation    uint64          `json:"generation"`
}

// View assembles the presentation state.
func (b *Board) View() View {
	list := b.list.Snapshot()
	return View{
		Phase:      list.Phase,
		Rows:       RowsFor(list.Data),
		Loading:    list.Loading(),
		Busy:       list.InFlight > 0 || b.mutation.Busy(),
		Error:      list.Message,
		Generation: list.Generation,
	}
}
