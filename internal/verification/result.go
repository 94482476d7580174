package verification

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/extraction"
	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/reference"
	"go.uber.org/zap"
)

// Result is the outcome for one image. It is not modified after VerifyImage
// returns it.
type Result struct {
	ImagePath     string           `json:"image_path"`
	ExtractedName string           `json:"extracted_name"`
	MatchedName   *string          `json:"matched_name,omitempty"`
	ReportedHours *float64         `json:"reported_hours,omitempty"`
	AgreedHours   *float64         `json:"agreed_hours,omitempty"`
	Verdict       approval.Verdict `json:"verdict"`
	Failure       string           `json:"failure,omitempty"`
	Duration      time.Duration    `json:"duration_ns"`
	Err           error            `json:"-"`
}

// String renders the result as one report line.
func (r *Result) String() string {
	matched := "-"
	if r.MatchedName != nil {
		matched = *r.MatchedName
	}
	line := fmt.Sprintf("%s | name: %s (matched: %s) | reported: %s | agreed: %s | %s",
		filepath.Base(r.ImagePath), r.ExtractedName, matched,
		formatHours(r.ReportedHours), formatHours(r.AgreedHours), r.Verdict)
	if r.Failure != "" {
		line += " [" + r.Failure + "]"
	}
	return line
}

// Fields returns the result as structured log fields.
func (r *Result) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("file", filepath.Base(r.ImagePath)),
		zap.String("name", r.ExtractedName),
		zap.String("status", string(r.Verdict.Status)),
		zap.Duration("duration", r.Duration),
	}
	if r.MatchedName != nil {
		fields = append(fields, zap.String("matched_name", *r.MatchedName))
	}
	if r.ReportedHours != nil {
		fields = append(fields, zap.Float64("reported_hours", *r.ReportedHours))
	}
	if r.AgreedHours != nil {
		fields = append(fields, zap.Float64("agreed_hours", *r.AgreedHours))
	}
	if r.Verdict.Status == approval.StatusRejected {
		fields = append(fields, zap.Float64("difference", r.Verdict.Difference))
	}
	if r.Failure != "" {
		fields = append(fields, zap.String("failure", r.Failure))
	}
	return fields
}

func formatHours(h *float64) string {
	if h == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *h)
}

// Failure codes stored with a result.
const (
	FailureImageUnreadable    = "image_unreadable"
	FailureTimeout            = "timeout"
	FailureCanceled           = "canceled"
	FailureAnchorNotFound     = "anchor_not_found"
	FailureNoNumericCandidate = "no_numeric_candidate"
	FailureNumericParse       = "numeric_parse"
	FailureNameUnparsable     = "name_unparsable"
	FailureLookupMiss         = "lookup_miss"
	FailureOCR                = "ocr_failed"
)

// FailureReason maps an extraction error to a stable code. Hours failures win
// over name failures when both are present.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ocr.ErrImageUnreadable):
		return FailureImageUnreadable
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	case errors.Is(err, extraction.ErrAnchorNotFound):
		return FailureAnchorNotFound
	case errors.Is(err, extraction.ErrNoNumericCandidate):
		return FailureNoNumericCandidate
	case errors.Is(err, extraction.ErrNumericParse):
		return FailureNumericParse
	case errors.Is(err, extraction.ErrNameUnparsable):
		return FailureNameUnparsable
	case errors.Is(err, reference.ErrLookupMiss):
		return FailureLookupMiss
	default:
		return FailureOCR
	}
}

// Summary counts results per status.
type Summary struct {
	Total               int `json:"total"`
	Approved            int `json:"approved"`
	Rejected            int `json:"rejected"`
	NameNotFound        int `json:"name_not_found"`
	HoursNotExtractable int `json:"hours_not_extractable"`
}

// Summarize tallies results.
func Summarize(results []*Result) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		switch r.Verdict.Status {
		case approval.StatusApproved:
			s.Approved++
		case approval.StatusRejected:
			s.Rejected++
		case approval.StatusNameNotFound:
			s.NameNotFound++
		case approval.StatusHoursNotExtractable:
			s.HoursNotExtractable++
		}
	}
	return s
}

func (s Summary) String() string {
	parts := []string{
		fmt.Sprintf("total=%d", s.Total),
		fmt.Sprintf("approved=%d", s.Approved),
		fmt.Sprintf("rejected=%d", s.Rejected),
		fmt.Sprintf("name_not_found=%d", s.NameNotFound),
		fmt.Sprintf("hours_not_extractable=%d", s.HoursNotExtractable),
	}
	return strings.Join(parts, " ")
}
