// Package queue defines the summarization tasks exchanged between the API and
// the worker pool, plus the status view derived from the queue backend.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pa-tiq/synthia-api/internal/model"
)

const (
	// SummarizeFileTask is scheduled for each uploaded file.
	SummarizeFileTask = "summarize:file"
	// SummarizeTextTask is scheduled for directly submitted text.
	SummarizeTextTask = "summarize:text"

	// QueueName is the asynq queue both task types travel on.
	QueueName = "default"

	maxRetry = 3
)

// FilePayload tells the worker which object to download and how to process it.
type FilePayload struct {
	ObjectKey      string         `json:"object_key"`
	FileName       string         `json:"file_name"`
	FileType       model.FileType `json:"file_type"`
	TargetLanguage string         `json:"target_language"`
}

// TextPayload carries directly submitted text.
type TextPayload struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

// Enqueuer submits work and returns promptly; the api server depends on this
// interface so tests can fake the queue backend.
type Enqueuer interface {
	EnqueueFile(ctx context.Context, jobID string, payload FilePayload) error
	EnqueueText(ctx context.Context, jobID string, payload TextPayload) error
}

// Client wraps an asynq client with the options every summarization task
// needs: a caller-chosen task ID (the job handle) and a retention window so
// finished tasks stay queryable.
type Client struct {
	client    *asynq.Client
	retention time.Duration
}

// NewClient builds an Enqueuer over an asynq client.
func NewClient(client *asynq.Client, retention time.Duration) *Client {
	return &Client{client: client, retention: retention}
}

// EnqueueFile enqueues a file summarization job under the given handle.
func (c *Client) EnqueueFile(ctx context.Context, jobID string, payload FilePayload) error {
	return c.enqueue(ctx, jobID, SummarizeFileTask, payload)
}

// EnqueueText enqueues a text summarization job under the given handle.
func (c *Client) EnqueueText(ctx context.Context, jobID string, payload TextPayload) error {
	return c.enqueue(ctx, jobID, SummarizeTextTask, payload)
}

func (c *Client) enqueue(ctx context.Context, jobID, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(c.retention),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
