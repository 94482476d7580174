package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ProducerConfig holds enqueue settings.
type ProducerConfig struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// Producer enqueues verification tasks.
type Producer struct {
	client *asynq.Client
	config ProducerConfig
	logger *zap.Logger
}

var _ port.TaskEnqueuer = (*Producer)(nil)

// NewProducer creates a new Producer connected to Redis.
func NewProducer(redis RedisOpt, cfg ProducerConfig, logger *zap.Logger) *Producer {
	return &Producer{
		client: asynq.NewClient(redis.clientOpt()),
		config: cfg,
		logger: logger,
	}
}

// EnqueueVerify pushes one image onto the queue.
func (p *Producer) EnqueueVerify(ctx context.Context, t port.VerifyTask) error {
	task, err := NewVerifyTask(t)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, task, p.options()...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", t.ImagePath, err)
	}

	p.logger.Debug("Task enqueued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("run_id", t.RunID),
		zap.String("image", t.ImagePath))
	return nil
}

func (p *Producer) options() []asynq.Option {
	var opts []asynq.Option
	if p.config.Queue != "" {
		opts = append(opts, asynq.Queue(p.config.Queue))
	}
	if p.config.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(p.config.MaxRetry))
	}
	if p.config.Timeout > 0 {
		opts = append(opts, asynq.Timeout(p.config.Timeout))
	}
	return opts
}

// Close releases the Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}
