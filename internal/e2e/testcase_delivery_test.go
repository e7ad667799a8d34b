package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/sustainhub/sustainability-hub/internal/backend"
	"github.com/sustainhub/sustainability-hub/internal/form"
	jobmetrics "github.com/sustainhub/sustainability-hub/internal/jobs"
	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
	"github.com/sustainhub/sustainability-hub/internal/testcases"
	"github.com/sustainhub/sustainability-hub/jobs"
)

// capturingQueue keeps the tasks the web process would have sent to Redis.
type capturingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *capturingQueue) EnqueueTestCase(_ context.Context, payload jobs.TestCasePayload) (*asynq.TaskInfo, error) {
	task, err := jobs.NewTestCaseTask(payload)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: payload.ID, Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

type testsAPI struct {
	mu       sync.Mutex
	received []jobs.TestCasePayload
	status   int
}

func (a *testsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/api/tests" {
		http.NotFound(w, r)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != 0 {
		w.WriteHeader(a.status)
		return
	}
	var payload jobs.TestCasePayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	a.received = append(a.received, payload)
	w.WriteHeader(http.StatusCreated)
}

func newPipeline(t *testing.T, api *testsAPI) (*testcases.Service, *capturingQueue, *jobs.TestCaseJob, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	queue := &capturingQueue{}
	svc, err := testcases.NewService(queue, lifecycle.Options{Logger: logger}, time.Minute)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	job := jobs.NewTestCaseJob(backend.NewClient(srv.URL, 2*time.Second), logger, jobmetrics.NewMetrics(reg))
	return svc, queue, job, reg
}

func TestTestCaseDelivery_FormToAPI(t *testing.T) {
	api := &testsAPI{}
	svc, queue, job, reg := newPipeline(t, api)

	outcome := svc.Submit(context.Background(), "owner-1", form.Values{
		testcases.FieldName:        "  Bins emptied  ",
		testcases.FieldDescription: "Bins are emptied daily",
	})
	require.True(t, outcome.OK(), "submission failed: %+v", outcome)
	require.Len(t, queue.tasks, 1)

	task := queue.tasks[0]
	require.Equal(t, jobs.TaskTestCaseCreate, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, api.received, 1)
	require.Equal(t, "Bins emptied", api.received[0].Name)
	require.Equal(t, "Bins are emptied daily", api.received[0].Description)
	require.NotEmpty(t, api.received[0].ID)
	count, err := testutil.GatherAndCount(reg, "hub_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestTestCaseDelivery_RejectedTaskIsNotRetried(t *testing.T) {
	api := &testsAPI{status: http.StatusUnprocessableEntity}
	svc, queue, job, _ := newPipeline(t, api)

	outcome := svc.Submit(context.Background(), "owner-1", form.Values{
		testcases.FieldName:        "Bins emptied",
		testcases.FieldDescription: "Bins are emptied daily",
	})
	require.True(t, outcome.OK())

	err := job.Handle(context.Background(), queue.tasks[0])
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTestCaseDelivery_OutageIsRetried(t *testing.T) {
	api := &testsAPI{status: http.StatusServiceUnavailable}
	svc, queue, job, _ := newPipeline(t, api)

	outcome := svc.Submit(context.Background(), "owner-1", form.Values{
		testcases.FieldName:        "Bins emptied",
		testcases.FieldDescription: "Bins are emptied daily",
	})
	require.True(t, outcome.OK())

	err := job.Handle(context.Background(), queue.tasks[0])
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}
