package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer submits translate-page tasks to asynq.
type Enqueuer struct {
	client    *asynq.Client
	queueName string
	maxRetry  int
	timeout   time.Duration
}

// NewEnqueuer connects an asynq client. processingTimeoutMs <= 0 uses
// DefaultProcessingTimeout.
func NewEnqueuer(redisURL, queueName string, processingTimeoutMs int64) (*Enqueuer, error) {
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	cfg := ConsumerConfig{ProcessingTimeout: processingTimeoutMs}
	return &Enqueuer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		maxRetry:  3,
		// leave the worker room to record the failure before asynq gives up
		timeout: cfg.timeout() + 30*time.Second,
	}, nil
}

// NewTask builds the task for a payload, assigning a page id when the
// payload has none so retries keep the same page.
func NewTask(payload *PagePayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if payload.PageID == "" {
		payload.PageID = uuid.New().String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page payload: %w", err)
	}
	return asynq.NewTask(TaskTranslatePage, data), nil
}

// Enqueue submits one page and returns its page id.
func (e *Enqueuer) Enqueue(ctx context.Context, payload *PagePayload) (string, error) {
	task, err := NewTask(payload)
	if err != nil {
		return "", err
	}
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queueName),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
		asynq.TaskID(payload.PageID),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue page %s: %w", payload.PageID, err)
	}
	return payload.PageID, nil
}

// Close closes the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
