// Package verification runs the per-image pipeline: token OCR, anchor and
// hours extraction, name extraction, reference matching and the approval
// decision.
package verification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/extraction"
	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/reference"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the OCR work for a single image.
const DefaultTimeout = 60 * time.Second

// Config tunes the pipeline.
type Config struct {
	AnchorPhrase    string
	AnchorThreshold float64
	AnchorMode      extraction.MatchMode
	RowTolerance    float64
	Timeout         time.Duration
	Workers         int
	Load            ocr.LoadOptions
}

// DefaultConfig returns the canonical extraction defaults.
func DefaultConfig() Config {
	return Config{
		AnchorPhrase:    extraction.DefaultAnchorPhrase,
		AnchorThreshold: extraction.DefaultAnchorThreshold,
		AnchorMode:      extraction.MatchToken,
		RowTolerance:    extraction.DefaultRowTolerance,
		Timeout:         DefaultTimeout,
		Workers:         runtime.NumCPU(),
	}
}

// Verifier is safe for concurrent use as long as the engine is.
type Verifier struct {
	engine  ocr.Engine
	table   *reference.Table
	decider *approval.Engine
	anchor  *extraction.AnchorResolver
	numeric *extraction.NumericExtractor
	names   *extraction.NameExtractor
	config  Config
	logger  *zap.Logger
}

// NewVerifier wires the pipeline around an initialized engine and a loaded
// reference table.
func NewVerifier(engine ocr.Engine, table *reference.Table, decider *approval.Engine, cfg Config, logger *zap.Logger) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.AnchorMode == "" {
		cfg.AnchorMode = extraction.MatchToken
	}
	return &Verifier{
		engine:  engine,
		table:   table,
		decider: decider,
		anchor: &extraction.AnchorResolver{
			Phrase:    cfg.AnchorPhrase,
			Threshold: cfg.AnchorThreshold,
			Mode:      cfg.AnchorMode,
		},
		numeric: extraction.NewNumericExtractor(cfg.RowTolerance),
		names:   extraction.NewNameExtractor(engine, logger),
		config:  cfg,
		logger:  logger,
	}
}

// VerifyImage produces exactly one result for path. Extraction failures are
// recorded on the result, never returned.
func (v *Verifier) VerifyImage(ctx context.Context, path string) *Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	r := &Result{ImagePath: path, ExtractedName: extraction.UnknownName}

	img, err := ocr.LoadImage(path, v.config.Load)
	if err != nil {
		r.Verdict = v.decider.Decide(nil, nil)
		v.finish(r, err, start)
		return r
	}

	reported, hoursErr := v.extractHours(ctx, img)
	name, nameErr := v.names.Extract(ctx, img)
	r.ExtractedName = name
	r.ReportedHours = reported

	// An unparsable name is matched as the sentinel.
	rec, lookupErr := v.table.BestMatch(name)
	if rec != nil {
		matched := rec.Name
		net := rec.NetHours()
		r.MatchedName = &matched
		r.AgreedHours = &net
	}

	r.Verdict = v.decider.Decide(reported, rec)
	v.finish(r, errors.Join(hoursErr, nameErr, lookupErr), start)
	return r
}

func (v *Verifier) finish(r *Result, err error, start time.Time) {
	r.Err = err
	r.Failure = FailureReason(err)
	r.Duration = time.Since(start)

	fields := r.Fields()
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	v.logger.Info("Timesheet verified", fields...)
}

func (v *Verifier) extractHours(ctx context.Context, img *ocr.Image) (*float64, error) {
	tokens, err := v.engine.Tokens(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize tokens: %w", err)
	}
	anchor, err := v.anchor.Resolve(tokens)
	if err != nil {
		return nil, err
	}
	field, err := v.numeric.Extract(tokens, anchor.Center)
	if err != nil {
		return nil, err
	}
	v.logger.Debug("Hours extracted",
		zap.String("path", img.Path),
		zap.String("anchor", anchor.Token.Text),
		zap.Float64("anchor_score", anchor.Score),
		zap.String("token", field.Token.Text),
		zap.Float64("hours", field.Value))
	return &field.Value, nil
}

// VerifyBatch verifies paths on a bounded pool and returns results in input
// order.
func (v *Verifier) VerifyBatch(ctx context.Context, paths []string) []*Result {
	results := make([]*Result, len(paths))
	p := pool.New().WithMaxGoroutines(v.config.Workers)
	for i, path := range paths {
		p.Go(func() {
			results[i] = v.VerifyImage(ctx, path)
		})
	}
	p.Wait()

	v.logger.Info("Batch verified",
		zap.Int("images", len(paths)),
		zap.Int("workers", v.config.Workers),
		zap.Stringer("summary", Summarize(results)))
	return results
}

// ListImages returns the supported image files directly inside dir, sorted by
// name.
func ListImages(dir string, logger *zap.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image folder: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !ocr.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		logger.Warn("No images found", zap.String("dir", dir))
	}
	return paths, nil
}
