package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTestCaseCreate delivers a written test case to the API.
	TaskTestCaseCreate = "testcase:create"

	testCaseMaxRetry = 5
)

// ErrMissingTaskID is returned when a payload carries no ID to deduplicate on.
var ErrMissingTaskID = errors.New("jobs: task id required")

// TestCasePayload is a test case written through the web form.
type TestCasePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewTestCaseTask builds a task whose asynq ID is the payload ID, so a retried submission
// cannot enqueue the same test case twice.
func NewTestCaseTask(payload TestCasePayload) (*asynq.Task, error) {
	if payload.ID == "" {
		return nil, ErrMissingTaskID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTestCaseCreate, body,
		asynq.TaskID(payload.ID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(testCaseMaxRetry),
	), nil
}
