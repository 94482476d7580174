package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"go.uber.org/zap"
)

// BatchVerifier verifies a set of images as one run.
type BatchVerifier interface {
	VerifyBatch(ctx context.Context, source string, paths []string) (*entity.VerificationRun, []*verification.Result, error)
}

// MailWorkerConfig holds configuration for the mailbox poller
type MailWorkerConfig struct {
	PollInterval time.Duration
	// Lookback is how far back each poll searches.
	Lookback    time.Duration
	Sender      string
	PollTimeout time.Duration
}

// DefaultMailWorkerConfig returns default configuration
func DefaultMailWorkerConfig() MailWorkerConfig {
	return MailWorkerConfig{
		PollInterval: 15 * time.Minute,
		Lookback:     7 * 24 * time.Hour,
		PollTimeout:  5 * time.Minute,
	}
}

// MailWorker downloads new timesheets from the finance mailbox on a timer
// and verifies each batch of new files as a MAIL run.
type MailWorker struct {
	config     MailWorkerConfig
	downloader port.MailDownloader
	verifier   BatchVerifier
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	isRunning  bool
	lastPoll   time.Time
	downloaded int
	runs       int
	lastError  error
}

// NewMailWorker creates a new mail worker
func NewMailWorker(config MailWorkerConfig, downloader port.MailDownloader, verifier BatchVerifier, logger *zap.Logger) *MailWorker {
	return &MailWorker{
		config:     config,
		downloader: downloader,
		verifier:   verifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Start polls once immediately, then every PollInterval.
func (w *MailWorker) Start(ctx context.Context) error {
	if w.config.PollInterval <= 0 {
		return fmt.Errorf("mail worker poll interval must be positive")
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("mail worker already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("MailWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("lookback", w.config.Lookback),
		zap.String("sender", w.config.Sender))

	go w.pollLoop()
	return nil
}

// Stop gracefully terminates the worker
func (w *MailWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	stats := w.Stats()
	w.logger.Info("MailWorker stopped",
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("runs", stats.Runs))
	return nil
}

// Name returns the worker name for identification
func (w *MailWorker) Name() string {
	return "MailWorker"
}

// MailWorkerStats is a snapshot of the worker's counters.
type MailWorkerStats struct {
	LastPoll   time.Time
	Downloaded int
	Runs       int
	LastError  error
}

// Stats returns the current counters.
func (w *MailWorker) Stats() MailWorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return MailWorkerStats{LastPoll: w.lastPoll, Downloaded: w.downloaded, Runs: w.runs, LastError: w.lastError}
}

func (w *MailWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.pollAndRecord()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.pollAndRecord()
		}
	}
}

func (w *MailWorker) pollAndRecord() {
	err := w.Poll(w.ctx)
	if err != nil && w.ctx.Err() == nil {
		w.logger.Error("Mail poll failed", zap.Error(err))
	}
	w.mu.Lock()
	w.lastPoll = w.now()
	w.lastError = err
	w.mu.Unlock()
}

// Poll downloads mails received within Lookback and verifies the new files.
func (w *MailWorker) Poll(ctx context.Context) error {
	if w.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.PollTimeout)
		defer cancel()
	}

	now := w.now()
	q := port.MailQuery{
		Sender: w.config.Sender,
		Since:  now.Add(-w.config.Lookback),
		Before: now.Add(24 * time.Hour),
	}
	paths, err := w.downloader.Download(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to download mail: %w", err)
	}

	w.mu.Lock()
	w.downloaded += len(paths)
	w.mu.Unlock()

	if len(paths) == 0 {
		w.logger.Debug("No new timesheets in mailbox")
		return nil
	}

	run, _, err := w.verifier.VerifyBatch(ctx, entity.RunSourceMail, paths)
	if err != nil {
		return fmt.Errorf("failed to verify downloaded timesheets: %w", err)
	}

	w.mu.Lock()
	w.runs++
	w.mu.Unlock()

	w.logger.Info("Mailed timesheets verified",
		zap.String("run_id", run.ID),
		zap.Int("files", len(paths)),
		zap.Int("approved", run.Approved),
		zap.Int("rejected", run.Rejected))
	return nil
}
