// Package approval decides whether reported hours match the agreed entitlement.
package approval

import (
	"fmt"
	"math"

	"github.com/garyjia/timesheet-prove/internal/reference"
)

// DefaultTolerance is the allowed difference, in hours, between reported and net hours.
const DefaultTolerance = 0.1

// boundaryEpsilon absorbs float64 error so a difference equal to the
// tolerance is approved.
const boundaryEpsilon = 1e-9

// Status is the closed set of verdict outcomes.
type Status string

const (
	StatusApproved            Status = "APPROVED"
	StatusRejected            Status = "REJECTED"
	StatusNameNotFound        Status = "NAME_NOT_FOUND"
	StatusHoursNotExtractable Status = "HOURS_NOT_EXTRACTABLE"
)

// Statuses lists every status in report order.
func Statuses() []Status {
	return []Status{StatusApproved, StatusRejected, StatusNameNotFound, StatusHoursNotExtractable}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusNameNotFound, StatusHoursNotExtractable:
		return true
	}
	return false
}

// Verdict is the outcome for one timesheet. Difference is only set for
// rejections.
type Verdict struct {
	Status     Status  `json:"status"`
	Difference float64 `json:"difference,omitempty"`
	Rationale  string  `json:"rationale"`
}

func (v Verdict) String() string {
	if v.Status == StatusRejected {
		return fmt.Sprintf("%s (diff %.2f)", v.Status, v.Difference)
	}
	return string(v.Status)
}

// Engine applies the hours tolerance.
type Engine struct {
	Tolerance float64
}

// NewEngine returns an engine with the given tolerance.
func NewEngine(tolerance float64) *Engine {
	return &Engine{Tolerance: tolerance}
}

// DefaultEngine returns an engine using DefaultTolerance.
func DefaultEngine() *Engine {
	return NewEngine(DefaultTolerance)
}

// Validate ensures the tolerance is usable.
func (e *Engine) Validate() error {
	if e.Tolerance < 0 || math.IsNaN(e.Tolerance) || math.IsInf(e.Tolerance, 0) {
		return fmt.Errorf("tolerance must be a finite value >= 0, got %v", e.Tolerance)
	}
	return nil
}

// Decide maps reported hours and the matched record to a verdict. Missing
// hours take precedence over a missing record. The tolerance bound is inclusive.
func (e *Engine) Decide(reported *float64, rec *reference.Record) Verdict {
	switch {
	case reported == nil:
		return Verdict{
			Status:    StatusHoursNotExtractable,
			Rationale: "reported hours could not be read from the timesheet",
		}
	case rec == nil:
		return Verdict{
			Status:    StatusNameNotFound,
			Rationale: "no reference record matches the extracted name",
		}
	}

	net := rec.NetHours()
	diff := math.Abs(*reported - net)
	if diff <= e.Tolerance+boundaryEpsilon {
		return Verdict{
			Status:    StatusApproved,
			Rationale: fmt.Sprintf("reported %.2f matches net %.2f within %.2f", *reported, net, e.Tolerance),
		}
	}
	return Verdict{
		Status:     StatusRejected,
		Difference: diff,
		Rationale:  fmt.Sprintf("reported %.2f differs from net %.2f by %.2f (tolerance %.2f)", *reported, net, diff, e.Tolerance),
	}
}
