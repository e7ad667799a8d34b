package specs

import (
	"context"
	"net/http"
	"time"

	"github.com/sustainhub/sustainability-hub/internal/form"
	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
)

// SuccessMessage is flashed after a specification is accepted.
const SuccessMessage = "Business specification created successfully!"

// RepositoryPort describes the API operations used by Service.
type RepositoryPort interface {
	Industries(ctx context.Context) ([]string, error)
	Create(ctx context.Context, spec BusinessSpecification) error
}

type industriesKey struct{}

// withIndustries records the options the user was offered so the industry check can use them.
func withIndustries(ctx context.Context, options []Industry) context.Context {
	return context.WithValue(ctx, industriesKey{}, options)
}

// knownIndustry accepts any value until options have been loaded.
func knownIndustry(ctx context.Context, value string) bool {
	options, _ := ctx.Value(industriesKey{}).([]Industry)
	if len(options) == 0 {
		return true
	}
	for _, opt := range options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// hasFeatures rejects input made only of commas and blanks.
func hasFeatures(_ context.Context, value string) bool {
	return len(SplitFeatures(value)) > 0
}

// Schema declares the business specification form.
func Schema() form.Schema {
	return form.Schema{
		{Name: FieldName, Label: "Name", Required: true, Trim: true, MinLength: 3},
		{Name: FieldDescription, Label: "Description", Required: true, Trim: true},
		{Name: FieldIndustry, Label: "Industry", Trim: true, Check: &form.Check{
			Tag:       "industry",
			Predicate: knownIndustry,
			Message:   "Select one of the listed industries",
		}},
		{Name: FieldFeatures, Label: "Features", Required: true, Trim: true, Check: &form.Check{
			Tag:       "features",
			Predicate: hasFeatures,
			Message:   form.DefaultRequiredMessage,
		}},
	}
}

// Service owns the per-session industries list and submission state.
type Service struct {
	repo       RepositoryPort
	binder     *form.Binder[BusinessSpecification]
	industries *lifecycle.Registry[[]Industry]
	submits    *lifecycle.Registry[struct{}]
}

// NewService constructs Service.
func NewService(repo RepositoryPort, opts lifecycle.Options, idleTTL time.Duration) (*Service, error) {
	binder, err := form.NewBinder(form.Config[BusinessSpecification]{
		Schema:         Schema(),
		Assemble:       func(v form.Values) BusinessSpecification { return assemble(v) },
		Submit:         repo.Create,
		SuccessMessage: SuccessMessage,
		Logger:         opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	industryOpts, submitOpts := opts, opts
	industryOpts.Name = "specs.industries"
	submitOpts.Name = "specs.submit"
	return &Service{
		repo:       repo,
		binder:     binder,
		industries: lifecycle.NewRegistry[[]Industry](industryOpts, idleTTL),
		submits:    lifecycle.NewRegistry[struct{}](submitOpts, idleTTL),
	}, nil
}

// LoadIndustries fetches the options for owner. A failure keeps the previously loaded ones.
func (s *Service) LoadIndustries(ctx context.Context, owner string) (lifecycle.Snapshot[[]Industry], error) {
	return s.industries.For(owner).Run(ctx, func(ctx context.Context) ([]Industry, error) {
		ids, err := s.repo.Industries(ctx)
		if err != nil {
			return nil, err
		}
		return IndustryOptions(ids), nil
	})
}

// Industries returns the options last loaded for owner without fetching.
func (s *Service) Industries(owner string) lifecycle.Snapshot[[]Industry] {
	return s.industries.For(owner).Snapshot()
}

// Bind reads the form fields from r.
func (s *Service) Bind(r *http.Request) form.Values {
	return s.binder.Bind(r)
}

// Empty returns blank form values.
func (s *Service) Empty() form.Values {
	return s.binder.Schema().Empty()
}

// Submit validates and posts values on behalf of owner.
func (s *Service) Submit(ctx context.Context, owner string, values form.Values) form.Outcome {
	ctx = withIndustries(ctx, s.Industries(owner).Data)
	return s.binder.Submit(ctx, s.submits.For(owner), values)
}

// Busy reports whether owner has a submission outstanding.
func (s *Service) Busy(owner string) bool {
	return s.submits.For(owner).Busy()
}
