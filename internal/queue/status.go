package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/pa-tiq/synthia-api/internal/errs"
	"github.com/pa-tiq/synthia-api/internal/model"
)

// StatusResolver maps a job handle to its client-visible status. This layer
// only reads queue state; transitions are driven entirely by the worker pool.
type StatusResolver interface {
	Resolve(ctx context.Context, jobID string) (*model.JobStatusView, error)
}

// TaskInfoReader is the slice of asynq.Inspector the resolver needs.
type TaskInfoReader interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// Resolver resolves job status through an asynq inspector.
type Resolver struct {
	inspector TaskInfoReader
}

// NewResolver constructs a Resolver.
func NewResolver(inspector TaskInfoReader) *Resolver {
	return &Resolver{inspector: inspector}
}

// Resolve queries the queue backend once and collapses its native states to
// processing/completed/failed. A completed task with an empty summary counts
// as failed: the workers never produce a legitimately empty summary.
func (r *Resolver) Resolve(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	info, err := r.inspector.GetTaskInfo(QueueName, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("job %s: %w", jobID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("inspect job %s: %w", jobID, err)
	}
	view := &model.JobStatusView{JobID: jobID}
	switch info.State {
	case asynq.TaskStateCompleted:
		var result model.SummaryResult
		if err := json.Unmarshal(info.Result, &result); err != nil || result.Summary == "" {
			view.Status = model.StatusFailed
			view.Error = "job finished with no result"
			return view, nil
		}
		view.Status = model.StatusCompleted
		view.Summary = result.Summary
	case asynq.TaskStateArchived:
		view.Status = model.StatusFailed
		view.Error = info.LastErr
		if view.Error == "" {
			view.Error = "job failed"
		}
	default:
		// Pending, scheduled, active, retrying and aggregating all read as
		// processing to the client.
		view.Status = model.StatusProcessing
	}
	return view, nil
}
