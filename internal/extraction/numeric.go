package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/garyjia/timesheet-prove/internal/ocr"
)

// DefaultRowTolerance is the vertical distance, in pixels, within which a
// token counts as being on the anchor's row.
const DefaultRowTolerance = 30.0

var hoursPattern = regexp.MustCompile(`^\d{1,3}([.,]\d{1,2})?$`)

// NumericField is the number picked for an anchor.
type NumericField struct {
	Token    ocr.Token
	Center   ocr.Point
	Distance float64
	Value    float64
}

// NumericExtractor finds the hours figure printed to the right of an anchor.
type NumericExtractor struct {
	RowTolerance float64
}

// NewNumericExtractor returns an extractor with the given row tolerance.
func NewNumericExtractor(rowTolerance float64) *NumericExtractor {
	return &NumericExtractor{RowTolerance: rowTolerance}
}

// Candidates returns every token that looks like an hours figure, lies
// strictly right of the anchor and within the row band, in OCR order.
func (e *NumericExtractor) Candidates(tokens []ocr.Token, anchor ocr.Point) []NumericField {
	var out []NumericField
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if !hoursPattern.MatchString(text) {
			continue
		}
		c := tok.Center()
		if c.X <= anchor.X {
			continue
		}
		dy := c.Y - anchor.Y
		if dy < 0 {
			dy = -dy
		}
		if dy >= e.RowTolerance {
			continue
		}
		out = append(out, NumericField{Token: tok, Center: c, Distance: c.X - anchor.X})
	}
	return out
}

// Extract picks the candidate horizontally closest to the anchor and parses
// it. The first token wins a distance tie.
func (e *NumericExtractor) Extract(tokens []ocr.Token, anchor ocr.Point) (*NumericField, error) {
	candidates := e.Candidates(tokens, anchor)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: anchor at (%.1f,%.1f), row tolerance %.1f",
			ErrNoNumericCandidate, anchor.X, anchor.Y, e.RowTolerance)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < best.Distance {
			best = c
		}
	}

	v, err := ParseHours(best.Token.Text)
	if err != nil {
		return nil, err
	}
	best.Value = v
	return &best, nil
}

// ParseHours parses an hours figure written with either "." or "," as the
// decimal separator.
func ParseHours(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNumericParse, text, err)
	}
	return v, nil
}
