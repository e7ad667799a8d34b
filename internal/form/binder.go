package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
)

// Config declares a form.
type Config[T any] struct {
	Schema         Schema
	Assemble       func(Values) T
	Submit         func(ctx context.Context, record T) error
	SuccessMessage string
	Logger         *slog.Logger
}

// Binder validates and submits one kind of form. It holds no per-user state; the lifecycle
// controller passed to Submit is the component instance.
type Binder[T any] struct {
	schema   Schema
	validate *validator.Validate
	assemble func(Values) T
	submit   func(context.Context, T) error
	success  string
	logger   *slog.Logger
}

// Outcome is the result of a submission attempt, ready to be rendered.
type Outcome struct {
	Values    Values
	Errors    Errors
	Notice    string
	Failure   string
	Submitted bool
	Busy      bool
	Err       error
}

// OK reports whether the record reached the server and was accepted.
func (o Outcome) OK() bool {
	return o.Submitted && o.Failure == ""
}

// Invalid reports whether validation blocked the submission.
func (o Outcome) Invalid() bool {
	return len(o.Errors) > 0
}

// NewBinder registers the schema's custom checks and returns a Binder.
func NewBinder[T any](cfg Config[T]) (*Binder[T], error) {
	if cfg.Assemble == nil || cfg.Submit == nil {
		return nil, errors.New("form: assemble and submit are required")
	}
	validate := validator.New()
	for _, f := range cfg.Schema {
		if f.Check == nil || f.Check.Predicate == nil {
			continue
		}
		predicate := f.Check.Predicate
		err := validate.RegisterValidationCtx(f.Check.Tag, func(ctx context.Context, fl validator.FieldLevel) bool {
			return predicate(ctx, fl.Field().String())
		})
		if err != nil {
			return nil, fmt.Errorf("form: register %s: %w", f.Check.Tag, err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder[T]{
		schema:   cfg.Schema,
		validate: validate,
		assemble: cfg.Assemble,
		submit:   cfg.Submit,
		success:  cfg.SuccessMessage,
		logger:   logger,
	}, nil
}

// Schema exposes the declared fields.
func (b *Binder[T]) Schema() Schema {
	return b.schema
}

// Bind reads the declared fields from a request's form body.
func (b *Binder[T]) Bind(r *http.Request) Values {
	values := make(Values, len(b.schema))
	for _, f := range b.schema {
		values[f.Name] = f.normalise(r.PostFormValue(f.Name))
	}
	return values
}

// Validate runs every field's rules and returns the failures, keyed by field.
func (b *Binder[T]) Validate(ctx context.Context, values Values) Errors {
	errs := make(Errors)
	for _, f := range b.schema {
		value := f.normalise(values.Get(f.Name))
		err := b.validate.VarCtx(ctx, value, f.tag())
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			errs[f.Name] = f.message(fieldErrs[0].Tag())
			continue
		}
		b.logger.Error("form rule misconfigured", slog.String("field", f.Name), slog.Any("error", err))
		errs[f.Name] = f.displayName() + " is invalid"
	}
	return errs
}

// Submit validates values and, when they pass, sends the assembled record under ctrl. Invalid
// input never reaches the network. On success the fields are cleared; on failure they are kept
// so the user can retry.
func (b *Binder[T]) Submit(ctx context.Context, ctrl *lifecycle.Controller[struct{}], values Values) Outcome {
	values = b.normalise(values)
	if errs := b.Validate(ctx, values); len(errs) > 0 {
		return Outcome{Values: values, Errors: errs, Busy: ctrl.Busy()}
	}

	record := b.assemble(values)
	snap, err := ctrl.Run(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.submit(ctx, record)
	})
	if err != nil {
		failure := snap.Message
		if failure == "" {
			failure = lifecycle.Message(err)
		}
		return Outcome{Values: values, Failure: failure, Submitted: true, Busy: snap.InFlight > 0, Err: err}
	}
	return Outcome{Values: b.schema.Empty(), Notice: b.success, Submitted: true, Busy: snap.InFlight > 0}
}

func (b *Binder[T]) normalise(values Values) Values {
	out := make(Values, len(values))
	for name, value := range values {
		out[name] = value
	}
	for _, f := range b.schema {
		out[f.Name] = f.normalise(values.Get(f.Name))
	}
	return out
}
