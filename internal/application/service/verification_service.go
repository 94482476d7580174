package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/google/uuid"
)

// Logger is the structured logger used by services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Verifier is the part of verification.Verifier the service depends on.
type Verifier interface {
	VerifyImage(ctx context.Context, path string) *verification.Result
	VerifyBatch(ctx context.Context, paths []string) []*verification.Result
}

// VerificationService runs verifications and records them as runs.
type VerificationService interface {
	// StartRun opens an empty run that results can be added to.
	StartRun(ctx context.Context, source string) (*entity.VerificationRun, error)

	// VerifyBatch verifies paths in a new run and closes it.
	VerifyBatch(ctx context.Context, source string, paths []string) (*entity.VerificationRun, []*verification.Result, error)

	// VerifyInto verifies one image and appends the result to an open run.
	VerifyInto(ctx context.Context, runID, path string) (*verification.Result, error)

	// CompleteRun closes a run using the results stored for it.
	CompleteRun(ctx context.Context, runID string) (*entity.VerificationRun, error)

	GetRun(ctx context.Context, runID string) (*entity.VerificationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*entity.VerificationRun, error)
	GetResults(ctx context.Context, runID string) ([]*entity.VerificationRecord, error)
}

type verificationServiceImpl struct {
	verifier      Verifier
	runRepo       port.RunRepository
	resultRepo    port.ResultRepository
	txManager     port.TransactionManager
	referencePath string
	logger        Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	verifier Verifier,
	runRepo port.RunRepository,
	resultRepo port.ResultRepository,
	txManager port.TransactionManager,
	referencePath string,
	logger Logger,
) VerificationService {
	return &verificationServiceImpl{
		verifier:      verifier,
		runRepo:       runRepo,
		resultRepo:    resultRepo,
		txManager:     txManager,
		referencePath: referencePath,
		logger:        logger,
	}
}

func (s *verificationServiceImpl) StartRun(ctx context.Context, source string) (*entity.VerificationRun, error) {
	run := &entity.VerificationRun{
		ID:            uuid.New().String(),
		Source:        source,
		ReferencePath: s.referencePath,
		Status:        entity.RunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.logger.Error("Failed to start run", "error", err, "source", source)
		return nil, fmt.Errorf("start run: %w", err)
	}
	s.logger.Info("Run started", "run_id", run.ID, "source", source)
	return run, nil
}

func (s *verificationServiceImpl) VerifyBatch(ctx context.Context, source string, paths []string) (*entity.VerificationRun, []*verification.Result, error) {
	run, err := s.StartRun(ctx, source)
	if err != nil {
		return nil, nil, err
	}

	results := s.verifier.VerifyBatch(ctx, paths)

	summary := verification.Summarize(results)
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, r := range results {
			if err := s.resultRepo.Create(ctx, ToRecord(run.ID, r)); err != nil {
				return err
			}
		}
		applySummary(run, summary)
		run.Status = entity.RunStatusCompleted
		return s.runRepo.Finish(ctx, run)
	})
	if err != nil {
		s.logger.Error("Failed to store run results", "error", err, "run_id", run.ID)
		s.markFailed(run)
		return run, results, fmt.Errorf("store run results: %w", err)
	}

	s.logger.Info("Run completed",
		"run_id", run.ID,
		"total", summary.Total,
		"approved", summary.Approved,
		"rejected", summary.Rejected,
		"name_not_found", summary.NameNotFound,
		"hours_not_extractable", summary.HoursNotExtractable)
	return run, results, nil
}

func (s *verificationServiceImpl) VerifyInto(ctx context.Context, runID, path string) (*verification.Result, error) {
	if _, err := s.runRepo.GetByID(ctx, runID); err != nil {
		return nil, fmt.Errorf("verify into run %s: %w", runID, err)
	}

	result := s.verifier.VerifyImage(ctx, path)

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.resultRepo.Create(ctx, ToRecord(runID, result)); err != nil {
			return err
		}
		return s.runRepo.IncrementCounts(ctx, runID, string(result.Verdict.Status))
	})
	if err != nil {
		s.logger.Error("Failed to store result", "error", err, "run_id", runID, "path", path)
		return result, fmt.Errorf("store result: %w", err)
	}
	return result, nil
}

func (s *verificationServiceImpl) CompleteRun(ctx context.Context, runID string) (*entity.VerificationRun, error) {
	var run *entity.VerificationRun
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		counts, err := s.resultRepo.CountByStatus(ctx, runID)
		if err != nil {
			return err
		}
		run.Approved = counts[string(approval.StatusApproved)]
		run.Rejected = counts[string(approval.StatusRejected)]
		run.NameNotFound = counts[string(approval.StatusNameNotFound)]
		run.HoursNotExtractable = counts[string(approval.StatusHoursNotExtractable)]
		run.Total = run.Approved + run.Rejected + run.NameNotFound + run.HoursNotExtractable
		run.Status = entity.RunStatusCompleted
		return s.runRepo.Finish(ctx, run)
	})
	if err != nil {
		return nil, fmt.Errorf("complete run %s: %w", runID, err)
	}
	s.logger.Info("Run completed", "run_id", run.ID, "total", run.Total, "approved", run.Approved)
	return run, nil
}

func (s *verificationServiceImpl) GetRun(ctx context.Context, runID string) (*entity.VerificationRun, error) {
	return s.runRepo.GetByID(ctx, runID)
}

func (s *verificationServiceImpl) ListRuns(ctx context.Context, limit, offset int) ([]*entity.VerificationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.runRepo.List(ctx, limit, offset)
}

func (s *verificationServiceImpl) GetResults(ctx context.Context, runID string) ([]*entity.VerificationRecord, error) {
	if _, err := s.runRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.resultRepo.GetByRunID(ctx, runID)
}

// markFailed closes a run whose results could not be stored. Uses a fresh
// context so a cancelled batch still gets closed.
func (s *verificationServiceImpl) markFailed(run *entity.VerificationRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run.Status = entity.RunStatusFailed
	if err := s.runRepo.Finish(ctx, run); err != nil {
		s.logger.Error("Failed to mark run as failed", "error", err, "run_id", run.ID)
	}
}

func applySummary(run *entity.VerificationRun, s verification.Summary) {
	run.Total = s.Total
	run.Approved = s.Approved
	run.Rejected = s.Rejected
	run.NameNotFound = s.NameNotFound
	run.HoursNotExtractable = s.HoursNotExtractable
}

// ToRecord converts a verification result into its persisted form.
func ToRecord(runID string, r *verification.Result) *entity.VerificationRecord {
	rec := &entity.VerificationRecord{
		RunID:         runID,
		ImagePath:     r.ImagePath,
		ExtractedName: r.ExtractedName,
		MatchedName:   r.MatchedName,
		ReportedHours: r.ReportedHours,
		AgreedHours:   r.AgreedHours,
		Status:        string(r.Verdict.Status),
		Difference:    r.Verdict.Difference,
		Rationale:     r.Verdict.Rationale,
		Failure:       r.Failure,
		DurationMs:    r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		rec.ErrorMessage = r.Err.Error()
	}
	return rec
}
