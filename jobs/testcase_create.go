package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sustainhub/sustainability-hub/internal/jobs"
)

const testCasesPath = "/api/tests"

// Poster sends JSON to the API; *backend.Client satisfies it.
type Poster interface {
	PostJSON(ctx context.Context, path string, body, dest any) error
}

// TestCaseJob posts queued test cases to the API.
type TestCaseJob struct {
	API     Poster
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTestCaseJob wires dependencies for the test case handler.
func NewTestCaseJob(api Poster, logger *slog.Logger, metrics *jobmetrics.Metrics) *TestCaseJob {
	return &TestCaseJob{API: api, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTestCaseCreate tasks. Rejections the API will keep returning are not
// retried.
func (j *TestCaseJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.API == nil {
		return errors.New("testcase create: handler not configured")
	}
	var payload TestCasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("testcase create: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskTestCaseCreate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("test_id", payload.ID))
	if err := j.API.PostJSON(ctx, testCasesPath, payload, nil); err != nil {
		if !retryable(err) {
			logger.Error("test case rejected", slog.Any("error", err))
			return fmt.Errorf("testcase create: %v: %w", err, asynq.SkipRetry)
		}
		logger.Warn("test case delivery failed", slog.Any("error", err))
		return fmt.Errorf("testcase create: %w", err)
	}
	logger.Info("test case delivered", slog.String("name", payload.Name))
	return nil
}

func retryable(err error) bool {
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}

func (j *TestCaseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *TestCaseJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
