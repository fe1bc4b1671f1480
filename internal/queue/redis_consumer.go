/**
 * Direct Redis Queue Consumer for the page translation worker
 *
 * Compatible with the TypeScript RedisQueue implementation: job ids are
 * pushed to a LIST, job records live in a HASH, and status is tracked in
 * SETs with events published for WebSocket streaming.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
)

var errNoJobs = stderrors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Payload    PagePayload `json:"payload"`
	CreatedAt  time.Time   `json:"createdAt"`
	Attempts   int         `json:"attempts"`
	MaxRetries int         `json:"maxRetries"`
}

// RedisConsumer handles job consumption from the Redis list queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.PageProcessorInterface
	config    *RedisConsumerConfig
	keys      queueKeys
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PageProcessorInterface
	ProcessingTimeout int64 // milliseconds
}

type queueKeys struct {
	list, data, processing, completed, failed, results, errors, events string
}

func keysFor(queue string) queueKeys {
	return queueKeys{
		list:       queue,
		data:       queue + ":data",
		processing: queue + ":processing",
		completed:  queue + ":completed",
		failed:     queue + ":failed",
		results:    queue + ":results",
		errors:     queue + ":errors",
		events:     queue + ":events",
	}
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "pagetranslate:jobs"
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		keys:      keysFor(cfg.QueueName),
		logger:    logging.NewLogger("RedisConsumer"),
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop gracefully stops the consumer
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log := c.logger.With("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-c.ctx.Done():
			log.Debug("Worker stopping")
			return
		default:
			if err := c.processNextJob(); err != nil {
				if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
					continue
				}
				log.Warn("Worker error", "error", err)
				select {
				case <-c.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	jobID := result[1]

	// Once popped, the job's bookkeeping must land even if Stop is called.
	ctx := context.WithoutCancel(c.ctx)

	raw, err := c.client.HGet(ctx, c.keys.data, jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.markFailed(ctx, jobID, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	job.ID = jobID

	c.markProcessing(ctx, jobID)

	out := c.runJob(&job)
	switch out.action {
	case jobRetry:
		if err := c.requeue(ctx, &job); err != nil {
			c.logger.Warn(fmt.Sprintf("[Page %s] Re-queue failed, marking job failed", job.Payload.PageID), "error", err)
			c.markFailed(ctx, jobID, out.details)
			return err
		}
		c.logger.Info(fmt.Sprintf("[Page %s] Re-queued for retry", job.Payload.PageID),
			"attempt", job.Attempts, "maxRetries", job.MaxRetries)
	case jobFailed:
		c.markFailed(ctx, jobID, out.details)
	default:
		c.markCompleted(ctx, jobID, out.result)
	}
	return nil
}

type jobAction int

const (
	jobCompleted jobAction = iota
	jobRetry
	jobFailed
)

type jobOutcome struct {
	action  jobAction
	result  map[string]interface{}
	details map[string]interface{}
}

// runJob validates and processes one job and decides what happens to it.
// It bumps job.Attempts on failure.
func (c *RedisConsumer) runJob(job *RedisJobData) jobOutcome {
	if err := job.Payload.Validate(); err != nil {
		return jobOutcome{action: jobFailed, details: map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(errors.ErrorInput),
		}}
	}
	// The queue job id doubles as page id so retries keep the same page.
	if job.Payload.PageID == "" {
		job.Payload.PageID = job.ID
	}

	res, err := c.processJob(job)
	if err == nil {
		return jobOutcome{action: jobCompleted, result: resultSummary(res)}
	}

	job.Attempts++
	details := map[string]interface{}{
		"error":     errors.Reason(err),
		"errorCode": string(errors.CodeOf(err)),
		"attempts":  job.Attempts,
	}
	if retryable(err) && job.Attempts < job.MaxRetries {
		return jobOutcome{action: jobRetry, details: details}
	}
	return jobOutcome{action: jobFailed, details: details}
}

// processJob runs the page with the configured timeout. The page context is
// not tied to the consumer so Stop lets in-flight pages finish.
func (c *RedisConsumer) processJob(job *RedisJobData) (*processor.PageResult, error) {
	startTime := time.Now()

	timeout := DefaultProcessingTimeout
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := c.processor.ProcessPage(ctx, job.Payload.Request())
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn(fmt.Sprintf("[Page %s] Processing failed after %v", job.Payload.PageID, duration),
			"code", errors.CodeOf(err), "error", err)
		return nil, err
	}

	c.logger.Info(fmt.Sprintf("[Page %s] Processing completed in %v", job.Payload.PageID, duration))
	return result, nil
}

// requeue stores the bumped attempt count and pushes the job back.
func (c *RedisConsumer) requeue(ctx context.Context, job *RedisJobData) error {
	updated, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.keys.data, job.ID, updated)
	pipe.SRem(ctx, c.keys.processing, job.ID)
	pipe.LPush(ctx, c.keys.list, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to re-queue job %s: %w", job.ID, err)
	}
	return nil
}

func (c *RedisConsumer) markProcessing(ctx context.Context, jobID string) {
	if err := c.client.SAdd(ctx, c.keys.processing, jobID).Err(); err != nil {
		c.logger.Warn("Failed to record job start", "job", jobID, "error", err)
	}
	c.publish(ctx, jobID, "processing")
}

func (c *RedisConsumer) markCompleted(ctx context.Context, jobID string, result map[string]interface{}) {
	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.keys.processing, jobID)
	pipe.SAdd(ctx, c.keys.completed, jobID)
	if result != nil {
		data, err := json.Marshal(result)
		if err == nil {
			pipe.HSet(ctx, c.keys.results, jobID, data)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to record job completion", "job", jobID, "error", err)
	}
	c.publish(ctx, jobID, "completed")
}

func (c *RedisConsumer) markFailed(ctx context.Context, jobID string, details map[string]interface{}) {
	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.keys.processing, jobID)
	pipe.SAdd(ctx, c.keys.failed, jobID)
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, fmt.Sprint(details["error"])))
	}
	pipe.HSet(ctx, c.keys.errors, jobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to record job failure", "job", jobID, "error", err)
	}
	c.publish(ctx, jobID, "failed")
}

// publish emits a status event for WebSocket streaming
func (c *RedisConsumer) publish(ctx context.Context, jobID, status string) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	if err := c.client.Publish(ctx, c.keys.events, data).Err(); err != nil {
		c.logger.Debug("Failed to publish job event", "job", jobID, "error", err)
	}
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.keys.list)
	processing := pipe.SCard(ctx, c.keys.processing)
	completed := pipe.SCard(ctx, c.keys.completed)
	failed := pipe.SCard(ctx, c.keys.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}
