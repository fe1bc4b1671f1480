/**
 * Asynq Queue Consumer for the page translation worker
 *
 * Consumes translate-page tasks and runs each page through the processor.
 * The processor records page status itself; this layer only decides
 * whether asynq should retry.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
)

// DefaultProcessingTimeout applies when the config leaves it unset.
const DefaultProcessingTimeout = 5 * time.Minute

// Consumer handles task consumption from the asynq queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.PageProcessorInterface
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PageProcessorInterface
	ProcessingTimeout int64 // milliseconds
}

func (cfg *ConsumerConfig) timeout() time.Duration {
	if cfg.ProcessingTimeout > 0 {
		return time.Duration(cfg.ProcessingTimeout) * time.Millisecond
	}
	return DefaultProcessingTimeout
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("QueueConsumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// 5s, 10s, 20s ... capped at a minute
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
			Logger: logging.NewLogger("asynq").Entry(),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskTranslatePage, consumer.handleTranslatePage)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

func (c *Consumer) handleTranslatePage(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload PagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal page payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid page payload: %v: %w", err, asynq.SkipRetry)
	}

	timeout := c.config.timeout()
	c.logger.Info(fmt.Sprintf("[Page %s] Processing page", payload.PageID),
		"filename", payload.Filename, "target", payload.TargetLanguage, "timeout", timeout)

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessPage(processCtx, payload.Request())
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn(fmt.Sprintf("[Page %s] Processing failed after %v", payload.PageID, duration),
			"code", errors.CodeOf(err), "error", err)
		if !retryable(err) {
			return fmt.Errorf("page translation failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("page translation failed: %w", err)
	}

	c.logger.Info(fmt.Sprintf("[Page %s] Processing completed in %v", result.Page.ID, duration),
		"output", result.OutputLocation, "regions", result.RegionsGrouped)

	if w := task.ResultWriter(); w != nil {
		if data, err := json.Marshal(resultSummary(result)); err == nil {
			if _, err := w.Write(data); err != nil {
				c.logger.Debug("Could not write task result", "error", err)
			}
		}
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "asynq",
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}
