// Package extraction pulls the reported hours and the employee name out of
// OCR output.
package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/similarity"
)

var (
	ErrAnchorNotFound     = errors.New("anchor phrase not found")
	ErrNoNumericCandidate = errors.New("no numeric token right of anchor")
	ErrNumericParse       = errors.New("numeric token could not be parsed")
	ErrNameUnparsable     = errors.New("name label not found")
)

// DefaultAnchorPhrase labels the hours-to-be-paid total on the timesheet form.
const DefaultAnchorPhrase = "sum timer til utbetaling"

// DefaultAnchorThreshold is the minimum similarity for a token to count as the anchor.
const DefaultAnchorThreshold = 0.6

// MatchMode selects what part of a token is compared against the phrase.
type MatchMode string

const (
	// MatchToken compares the whole token text.
	MatchToken MatchMode = "token"
	// MatchWord compares each whitespace separated word of the token.
	MatchWord MatchMode = "word"
)

// Anchor is the token that matched the phrase.
type Anchor struct {
	Token  ocr.Token
	Center ocr.Point
	Score  float64
	Index  int
}

// AnchorResolver locates the first token resembling Phrase.
type AnchorResolver struct {
	Phrase    string
	Threshold float64
	Mode      MatchMode
}

// NewAnchorResolver returns a resolver in whole-token mode.
func NewAnchorResolver(phrase string, threshold float64) *AnchorResolver {
	return &AnchorResolver{Phrase: phrase, Threshold: threshold, Mode: MatchToken}
}

// Resolve returns the first token, in OCR order, whose similarity to the
// phrase reaches the threshold. Later tokens are not considered even if they
// score higher.
func (r *AnchorResolver) Resolve(tokens []ocr.Token) (*Anchor, error) {
	for i, tok := range tokens {
		score := r.score(tok.Text)
		if score >= r.Threshold {
			return &Anchor{
				Token:  tok,
				Center: tok.Center(),
				Score:  score,
				Index:  i,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %d tokens", ErrAnchorNotFound, r.Phrase, len(tokens))
}

func (r *AnchorResolver) score(text string) float64 {
	if r.Mode != MatchWord {
		return similarity.Ratio(text, r.Phrase)
	}
	var best float64
	for _, w := range strings.Fields(text) {
		if s := similarity.Ratio(w, r.Phrase); s > best {
			best = s
		}
	}
	return best
}
