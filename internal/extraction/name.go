package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/garyjia/timesheet-prove/internal/ocr"
	"go.uber.org/zap"
)

// UnknownName is reported when no name label can be read.
const UnknownName = "Unknown"

var namePattern = regexp.MustCompile(`(?i)(?:Navn|Name)\s*:\s*([A-Za-zÆØÅæøå \-]+)`)

// ParseName applies the "Navn:"/"Name:" label pattern to plain OCR text.
func ParseName(text string) (string, error) {
	m := namePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", ErrNameUnparsable
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", ErrNameUnparsable
	}
	return name, nil
}

// NameExtractor reads the employee name from a full-text OCR pass.
type NameExtractor struct {
	engine ocr.Engine
	logger *zap.Logger
}

// NewNameExtractor creates a NameExtractor backed by engine.
func NewNameExtractor(engine ocr.Engine, logger *zap.Logger) *NameExtractor {
	return &NameExtractor{engine: engine, logger: logger}
}

// Extract returns the labelled name, or UnknownName with the reason when the
// page cannot be recognized or carries no label.
func (x *NameExtractor) Extract(ctx context.Context, img *ocr.Image) (string, error) {
	text, err := x.engine.Text(ctx, img)
	if err != nil {
		x.logger.Warn("Full-text OCR failed", zap.String("path", img.Path), zap.Error(err))
		return UnknownName, fmt.Errorf("failed to read name: %w", err)
	}

	name, err := ParseName(text)
	if err != nil {
		x.logger.Debug("No name label in OCR text",
			zap.String("path", img.Path),
			zap.Int("text_length", len(text)))
		return UnknownName, err
	}
	return name, nil
}
