package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/pkg/database"
	"go.uber.org/zap"
)

// ResultRepository implements port.ResultRepository
type ResultRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB, logger *zap.Logger) *ResultRepository {
	return &ResultRepository{db: db, logger: logger}
}

// Create inserts a verification record and sets its ID.
func (r *ResultRepository) Create(ctx context.Context, rec *entity.VerificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var matched sql.NullString
	if rec.MatchedName != nil {
		matched = sql.NullString{String: *rec.MatchedName, Valid: true}
	}
	var reported, agreed sql.NullFloat64
	if rec.ReportedHours != nil {
		reported = sql.NullFloat64{Float64: *rec.ReportedHours, Valid: true}
	}
	if rec.AgreedHours != nil {
		agreed = sql.NullFloat64{Float64: *rec.AgreedHours, Valid: true}
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO verification_results (
			run_id, image_path, extracted_name, matched_name,
			reported_hours, agreed_hours, status, difference,
			rationale, failure, error_message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.ImagePath,
		rec.ExtractedName,
		matched,
		reported,
		agreed,
		rec.Status,
		rec.Difference,
		rec.Rationale,
		rec.Failure,
		rec.ErrorMessage,
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create verification result",
			zap.String("run_id", rec.RunID),
			zap.String("image_path", rec.ImagePath),
			zap.Error(err))
		return fmt.Errorf("failed to create verification result: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetByRunID returns the records of a run in insertion order.
func (r *ResultRepository) GetByRunID(ctx context.Context, runID string) ([]*entity.VerificationRecord, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, run_id, image_path, extracted_name, matched_name,
			reported_hours, agreed_hours, status, difference,
			rationale, failure, error_message, duration_ms, created_at
		FROM verification_results
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification results: %w", err)
	}
	defer rows.Close()

	var records []*entity.VerificationRecord
	for rows.Next() {
		var rec entity.VerificationRecord
		var matched sql.NullString
		var reported, agreed sql.NullFloat64
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.ImagePath,
			&rec.ExtractedName,
			&matched,
			&reported,
			&agreed,
			&rec.Status,
			&rec.Difference,
			&rec.Rationale,
			&rec.Failure,
			&rec.ErrorMessage,
			&rec.DurationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan verification result: %w", err)
		}
		if matched.Valid {
			rec.MatchedName = &matched.String
		}
		if reported.Valid {
			rec.ReportedHours = &reported.Float64
		}
		if agreed.Valid {
			rec.AgreedHours = &agreed.Float64
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountByStatus tallies the records of a run per verdict status.
func (r *ResultRepository) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT status, COUNT(*) FROM verification_results
		WHERE run_id = ?
		GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count verification results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

var _ port.ResultRepository = (*ResultRepository)(nil)
