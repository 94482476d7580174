// Package similarity scores how alike two strings are using difflib's
// matching-blocks ratio: twice the number of characters found in common
// blocks divided by the combined length of both strings.
package similarity

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// runes splits s into lower-cased single-rune elements for the matcher, so
// "Ø" and "ø" are the same single character.
func runes(s string) []string {
	rs := []rune(strings.ToLower(s))
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// Ratio returns a similarity score in [0,1] for a and b. Comparison is case
// insensitive and works on runes.
//
// The greedy block search is not order independent for every input, so both
// orientations are scored and the larger one wins. That keeps Ratio(a, b) equal
// to Ratio(b, a).
func Ratio(a, b string) float64 {
	return ratio(runes(a), runes(b))
}

func ratio(a, b []string) float64 {
	r := difflib.NewMatcher(a, b).Ratio()
	if r == 1.0 {
		return r
	}
	if rev := difflib.NewMatcher(b, a).Ratio(); rev > r {
		return rev
	}
	return r
}

// Match is one candidate accepted by CloseMatches.
type Match struct {
	Value string
	Score float64
	Index int
}

// CloseMatches returns up to n candidates whose Ratio against word is at least
// cutoff, best score first. Candidates with equal scores keep their input order.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []Match {
	if n <= 0 {
		return nil
	}
	w := runes(word)
	m := difflib.NewMatcher(nil, w)

	var matches []Match
	for i, c := range candidates {
		rc := runes(c)
		m.SetSeq1(rc)
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if score := ratio(rc, w); score >= cutoff {
			matches = append(matches, Match{Value: c, Score: score, Index: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}
