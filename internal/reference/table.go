// Package reference holds the payroll reference table that reported hours are
// checked against.
package reference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/timesheet-prove/internal/similarity"
)

// DefaultMatchThreshold is the minimum name similarity accepted by BestMatch.
const DefaultMatchThreshold = 0.6

var ErrLookupMiss = errors.New("name not in reference table")

// Record is one employee row.
type Record struct {
	Name           string  `json:"name"`
	AgreedHours    float64 `json:"agreed_hours"`
	ExtraHours     float64 `json:"extra_hours"`
	GivenAwayHours float64 `json:"given_away_hours"`
}

// NetHours is the entitlement the employee should report. It may be negative.
func (r Record) NetHours() float64 {
	return r.AgreedHours + r.ExtraHours - r.GivenAwayHours
}

// NormalizeName case-folds and trims a name for lookup.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Table is read-only once built and safe for concurrent lookups.
type Table struct {
	records   []Record
	names     []string
	byName    map[string]int
	threshold float64
}

// NewTable builds a table from records. Names are normalized; when a name
// repeats, lookups resolve to the first row carrying it.
func NewTable(records []Record, threshold float64) *Table {
	t := &Table{
		records:   make([]Record, 0, len(records)),
		byName:    make(map[string]int, len(records)),
		threshold: threshold,
	}
	for _, r := range records {
		r.Name = NormalizeName(r.Name)
		t.records = append(t.records, r)
		if _, ok := t.byName[r.Name]; ok {
			continue
		}
		t.byName[r.Name] = len(t.records) - 1
		t.names = append(t.names, r.Name)
	}
	return t
}

// Len returns the number of rows, duplicates included.
func (t *Table) Len() int { return len(t.records) }

// Records returns a copy of all rows in load order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Threshold returns the similarity cutoff used by BestMatch.
func (t *Table) Threshold() float64 { return t.threshold }

// Lookup returns the first row whose normalized name equals name.
func (t *Table) Lookup(name string) (*Record, error) {
	i, ok := t.byName[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLookupMiss, name)
	}
	r := t.records[i]
	return &r, nil
}

// BestMatch returns the row whose name is most similar to candidate, provided
// the similarity reaches the table threshold. An exact name wins without
// scoring. A miss wraps ErrLookupMiss.
func (t *Table) BestMatch(candidate string) (*Record, error) {
	if r, err := t.Lookup(candidate); err == nil {
		return r, nil
	}
	matches := similarity.CloseMatches(NormalizeName(candidate), t.names, 1, t.threshold)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrLookupMiss, candidate)
	}
	r := t.records[t.byName[matches[0].Value]]
	return &r, nil
}
