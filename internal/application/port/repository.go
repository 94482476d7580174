package port

import (
	"context"
	"errors"

	"github.com/garyjia/timesheet-prove/internal/domain/entity"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RunRepository defines persistence operations for VerificationRun
type RunRepository interface {
	Create(ctx context.Context, run *entity.VerificationRun) error
	GetByID(ctx context.Context, id string) (*entity.VerificationRun, error)
	// Finish stores the final counts and status of a run.
	Finish(ctx context.Context, run *entity.VerificationRun) error
	// IncrementCounts adds one result with the given verdict status to the run totals.
	IncrementCounts(ctx context.Context, id, status string) error
	List(ctx context.Context, limit, offset int) ([]*entity.VerificationRun, error)
}

// ResultRepository defines persistence operations for VerificationRecord
type ResultRepository interface {
	Create(ctx context.Context, rec *entity.VerificationRecord) error
	GetByRunID(ctx context.Context, runID string) ([]*entity.VerificationRecord, error)
	CountByStatus(ctx context.Context, runID string) (map[string]int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
