package reference

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Column headers, matched case-insensitively after trimming.
const (
	ColumnName      = "name"
	ColumnAgreed    = "agreed hours"
	ColumnExtra     = "extra hours"
	ColumnGivenAway = "hours given away"
)

// Load reads a reference table from a .csv or .xlsx file. Any error here is
// fatal for a verification run.
func Load(path string, threshold float64, logger *zap.Logger) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open reference table: %w", err)
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported reference table format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	records, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference table %s: %w", path, err)
	}

	table := NewTable(records, threshold)
	logger.Info("Reference table loaded",
		zap.String("path", path),
		zap.Int("records", table.Len()),
		zap.Int("distinct_names", len(table.names)))
	if table.Len() != len(table.names) {
		logger.Warn("Reference table has duplicate names; first row wins",
			zap.Int("duplicates", table.Len()-len(table.names)))
	}
	return table, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, want := range []string{ColumnName, ColumnAgreed, ColumnExtra, ColumnGivenAway} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		name := cell(row, cols[ColumnName])
		if strings.TrimSpace(name) == "" {
			continue
		}
		var rec Record
		rec.Name = name
		var err error
		if rec.AgreedHours, err = parseHours(cell(row, cols[ColumnAgreed])); err != nil {
			return nil, fmt.Errorf("row %d, %s: %w", line, ColumnAgreed, err)
		}
		if rec.ExtraHours, err = parseHours(cell(row, cols[ColumnExtra])); err != nil {
			return nil, fmt.Errorf("row %d, %s: %w", line, ColumnExtra, err)
		}
		if rec.GivenAwayHours, err = parseHours(cell(row, cols[ColumnGivenAway])); err != nil {
			return nil, fmt.Errorf("row %d, %s: %w", line, ColumnGivenAway, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// parseHours accepts "." or "," decimals. A blank cell counts as zero.
func parseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
