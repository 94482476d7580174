// Package report writes verification runs out for payroll staff.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultHeaders = []interface{}{
	"File", "Extracted name", "Matched name", "Reported hours",
	"Agreed hours", "Status", "Difference", "Failure", "Rationale",
}

// statusFills colors the status cell per verdict.
var statusFills = map[string]string{
	"APPROVED":              "C6EFCE",
	"REJECTED":              "FFC7CE",
	"NAME_NOT_FOUND":        "FFEB9C",
	"HOURS_NOT_EXTRACTABLE": "FFEB9C",
}

// ExcelWriter renders a run into an .xlsx workbook.
type ExcelWriter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExcelWriter creates a writer saving into outputDir.
func NewExcelWriter(outputDir string, logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{outputDir: outputDir, logger: logger}
}

// Write saves run and its records as <outputDir>/run-<id>.xlsx and returns the path.
func (w *ExcelWriter) Write(run *entity.VerificationRun, records []*entity.VerificationRecord) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("run-%s.xlsx", run.ID))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := w.writeResults(f, records); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return "", fmt.Errorf("failed to add summary sheet: %w", err)
	}
	if err := w.writeSummary(f, run); err != nil {
		return "", err
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}

	w.logger.Info("Report written",
		zap.String("run_id", run.ID),
		zap.String("path", path),
		zap.Int("rows", len(records)))
	return path, nil
}

func (w *ExcelWriter) writeResults(f *excelize.File, records []*entity.VerificationRecord) error {
	if err := f.SetSheetRow(resultsSheet, "A1", &resultHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(resultsSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	fills := make(map[string]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("failed to create status style: %w", err)
		}
		fills[status] = id
	}

	for i, rec := range records {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []interface{}{
			filepath.Base(rec.ImagePath),
			rec.ExtractedName,
			optionalString(rec.MatchedName),
			optionalFloat(rec.ReportedHours),
			optionalFloat(rec.AgreedHours),
			rec.Status,
			rec.Difference,
			rec.Failure,
			rec.Rationale,
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if style, ok := fills[rec.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(6, row)
			w.setStyle(f, statusCell, style)
		}
	}

	if err := f.SetColWidth(resultsSheet, "A", "A", 40); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(resultsSheet, "I", "I", 60); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
	return nil
}

func (w *ExcelWriter) writeSummary(f *excelize.File, run *entity.VerificationRun) error {
	rows := [][]interface{}{
		{"Run", run.ID},
		{"Source", run.Source},
		{"Reference", run.ReferencePath},
		{"Status", run.Status},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05")},
		{"Total", run.Total},
		{"Approved", run.Approved},
		{"Rejected", run.Rejected},
		{"Name not found", run.NameNotFound},
		{"Hours not extractable", run.HoursNotExtractable},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func (w *ExcelWriter) setStyle(f *excelize.File, cell string, style int) {
	if err := f.SetCellStyle(resultsSheet, cell, cell, style); err != nil {
		w.logger.Warn("Failed to set cell style", zap.String("cell", cell), zap.Error(err))
	}
}

func optionalString(s *string) interface{} {
	if s == nil {
		return ""
	}
	return *s
}

func optionalFloat(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}
