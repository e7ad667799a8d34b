// Package testcases serves the "write tests" form. Accepted test cases are queued and
// delivered to the API by the worker.
package testcases

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/sustainhub/sustainability-hub/internal/form"
	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
	"github.com/sustainhub/sustainability-hub/jobs"
)

// Form field names.
const (
	FieldName        = "testName"
	FieldDescription = "testDescription"
)

// User-facing messages.
const (
	SuccessMessage = "Test created successfully"
	FailureMessage = "An error occurred while creating the test."
)

// TestCase is a test written through the form.
type TestCase struct {
	ID          string
	Name        string
	Description string
}

// Enqueuer hands test cases to the job queue; *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueTestCase(ctx context.Context, payload jobs.TestCasePayload) (*asynq.TaskInfo, error)
}

// Schema declares the write-tests form.
func Schema() form.Schema {
	return form.Schema{
		{Name: FieldName, Label: "Test Name", Required: true, Trim: true},
		{Name: FieldDescription, Label: "Test Description", Required: true, Trim: true},
	}
}

// Service validates and queues test cases.
type Service struct {
	queue   Enqueuer
	binder  *form.Binder[TestCase]
	submits *lifecycle.Registry[struct{}]
	logger  *slog.Logger
	newID   func() (string, error)
}

// NewService constructs Service.
func NewService(queue Enqueuer, opts lifecycle.Options, idleTTL time.Duration) (*Service, error) {
	s := &Service{queue: queue, logger: opts.Logger, newID: func() (string, error) { return gonanoid.New() }}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	binder, err := form.NewBinder(form.Config[TestCase]{
		Schema: Schema(),
		Assemble: func(v form.Values) TestCase {
			return TestCase{Name: v.Get(FieldName), Description: v.Get(FieldDescription)}
		},
		Submit:         s.enqueue,
		SuccessMessage: SuccessMessage,
		Logger:         opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.binder = binder
	opts.Name = "testcases.submit"
	s.submits = lifecycle.NewRegistry[struct{}](opts, idleTTL)
	return s, nil
}

func (s *Service) enqueue(ctx context.Context, tc TestCase) error {
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("could not assign a test id: %w", err)
	}
	tc.ID = id
	info, err := s.queue.EnqueueTestCase(ctx, jobs.TestCasePayload{ID: tc.ID, Name: tc.Name, Description: tc.Description})
	if err != nil {
		return fmt.Errorf("could not queue the test: %w", err)
	}
	queue := jobs.QueueDefault
	if info != nil {
		queue = info.Queue
	}
	s.logger.Info("test case queued", slog.String("test_id", tc.ID), slog.String("queue", queue))
	return nil
}

// Bind reads the form fields from r.
func (s *Service) Bind(r *http.Request) form.Values {
	return s.binder.Bind(r)
}

// Empty returns blank form values.
func (s *Service) Empty() form.Values {
	return s.binder.Schema().Empty()
}

// Submit validates and queues values on behalf of owner.
func (s *Service) Submit(ctx context.Context, owner string, values form.Values) form.Outcome {
	return s.binder.Submit(ctx, s.submits.For(owner), values)
}

// Busy reports whether owner has a submission outstanding.
func (s *Service) Busy(owner string) bool {
	return s.submits.For(owner).Busy()
}
