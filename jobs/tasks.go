package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGrantsIntegrityScan reconciles stored grants against the catalog.
	TaskGrantsIntegrityScan = "grants:integrity_scan"
	// TaskSessionPrune removes expired session records from postgres.
	TaskSessionPrune = "sessions:prune"
)

// IntegrityScanPayload carries scheduling metadata for the scan.
type IntegrityScanPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewIntegrityScanTask constructs an Asynq task for the integrity scan.
func NewIntegrityScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(IntegrityScanPayload{RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantsIntegrityScan, body, asynq.Queue(QueueDefault)), nil
}

// SessionPrunePayload carries scheduling metadata for session pruning.
type SessionPrunePayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewSessionPruneTask constructs an Asynq task for session pruning.
func NewSessionPruneTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionPrunePayload{RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPrune, body, asynq.Queue(QueueDefault)), nil
}

// EnqueueIntegrityScan submits an integrity scan task. Satisfies the
// grants service enqueuer interface.
func (c *Client) EnqueueIntegrityScan(ctx context.Context) error {
	task, err := NewIntegrityScanTask(time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
