package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/pkg/database"
	"go.uber.org/zap"
)

// statusColumns maps a verdict status to its counter column.
var statusColumns = map[string]string{
	string(approval.StatusApproved):            "approved",
	string(approval.StatusRejected):            "rejected",
	string(approval.StatusNameNotFound):        "name_not_found",
	string(approval.StatusHoursNotExtractable): "hours_not_extractable",
}

// RunRepository implements port.RunRepository
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// Create inserts a run. StartedAt defaults to now.
func (r *RunRepository) Create(ctx context.Context, run *entity.VerificationRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = entity.RunStatusRunning
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO verification_runs (id, source, reference_path, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.ReferencePath, run.Status, run.StartedAt)
	if err != nil {
		r.logger.Error("Failed to create run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.VerificationRun, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT id, source, reference_path, status, total, approved, rejected,
			name_not_found, hours_not_extractable, started_at, finished_at
		FROM verification_runs
		WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// Finish stores the final counts and status.
func (r *RunRepository) Finish(ctx context.Context, run *entity.VerificationRun) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	res, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE verification_runs
		SET status = ?, total = ?, approved = ?, rejected = ?,
			name_not_found = ?, hours_not_extractable = ?, finished_at = ?
		WHERE id = ?`,
		run.Status, run.Total, run.Approved, run.Rejected,
		run.NameNotFound, run.HoursNotExtractable, finished, run.ID)
	if err != nil {
		r.logger.Error("Failed to finish run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, port.ErrNotFound)
	}
	run.FinishedAt = &finished
	return nil
}

// IncrementCounts bumps the total and the counter for status by one.
func (r *RunRepository) IncrementCounts(ctx context.Context, id, status string) error {
	col, ok := statusColumns[status]
	if !ok {
		return fmt.Errorf("unknown verdict status %q", status)
	}

	query := fmt.Sprintf(`UPDATE verification_runs SET total = total + 1, %s = %s + 1 WHERE id = ?`, col, col)
	res, err := r.db.Executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, port.ErrNotFound)
	}
	return nil
}

// List returns runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*entity.VerificationRun, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, source, reference_path, status, total, approved, rejected,
			name_not_found, hours_not_extractable, started_at, finished_at
		FROM verification_runs
		ORDER BY started_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.VerificationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*entity.VerificationRun, error) {
	var run entity.VerificationRun
	var finished sql.NullTime
	err := s.Scan(
		&run.ID,
		&run.Source,
		&run.ReferencePath,
		&run.Status,
		&run.Total,
		&run.Approved,
		&run.Rejected,
		&run.NameNotFound,
		&run.HoursNotExtractable,
		&run.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

var _ port.RunRepository = (*RunRepository)(nil)
