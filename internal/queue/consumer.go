package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ResultRecorder verifies an image into an open run.
type ResultRecorder interface {
	VerifyInto(ctx context.Context, runID, path string) (*verification.Result, error)
}

// ConsumerConfig holds worker settings.
type ConsumerConfig struct {
	Queue       string
	Concurrency int
	// TaskTimeout bounds one verification including persistence.
	TaskTimeout time.Duration
}

// Consumer processes verification tasks from Redis.
type Consumer struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	recorder ResultRecorder
	config   ConsumerConfig
	logger   *zap.Logger
}

// NewConsumer creates a new Consumer. The asynq server logs through logger.
func NewConsumer(redis RedisOpt, cfg ConsumerConfig, recorder ResultRecorder, logger *zap.Logger) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	c := &Consumer{
		recorder: recorder,
		config:   cfg,
		logger:   logger,
		mux:      asynq.NewServeMux(),
	}

	c.server = asynq.NewServer(redis.clientOpt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			cfg.Queue: 10,
			"default": 1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("Task failed",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Error(err))
		}),
		Logger: logger.Sugar(),
	})
	c.mux.HandleFunc(TypeVerify, c.HandleVerify)

	return c
}

// Name returns the worker name
func (c *Consumer) Name() string { return "queue-consumer" }

// Start begins processing tasks in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer",
		zap.String("queue", c.config.Queue),
		zap.Int("concurrency", c.config.Concurrency))
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop waits for running tasks and shuts the server down.
func (c *Consumer) Stop() error {
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// HandleVerify verifies the image named by the task into its run. Bad
// payloads and unknown runs are not retried.
func (c *Consumer) HandleVerify(ctx context.Context, task *asynq.Task) error {
	t, err := ParseVerifyTask(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if c.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.TaskTimeout)
		defer cancel()
	}

	result, err := c.recorder.VerifyInto(ctx, t.RunID, t.ImagePath)
	if errors.Is(err, port.ErrNotFound) {
		return fmt.Errorf("run %s: %v: %w", t.RunID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	c.logger.Debug("Verify task done",
		zap.String("run_id", t.RunID),
		zap.String("image", t.ImagePath),
		zap.String("status", string(result.Verdict.Status)))
	return nil
}

// retryDelay backs off 5s, 10s, 20s up to a minute.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > time.Minute || delay <= 0 {
		delay = time.Minute
	}
	return delay
}
