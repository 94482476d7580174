package ocr

import (
	"math"
	"regexp"
	"strings"
)

var numericWord = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// GroupPhrases merges consecutive word tokens that sit on the same visual line
// into phrase tokens, so a multi-word label becomes a single token the way
// line-oriented detectors report it. Two words join when their vertical
// centers are within half a word height of each other and the horizontal gap
// is at most gapFactor word heights. Numeric words always stay on their own.
// A gapFactor of zero or less returns the words unchanged.
func GroupPhrases(words []Token, gapFactor float64) []Token {
	if gapFactor <= 0 || len(words) == 0 {
		return words
	}

	var (
		phrases []Token
		current []Token
	)
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, mergeTokens(current))
			current = nil
		}
	}

	for _, w := range words {
		if len(current) == 0 {
			current = append(current, w)
			continue
		}
		prev := current[len(current)-1]
		if joinable(prev, w, gapFactor) {
			current = append(current, w)
			continue
		}
		flush()
		current = append(current, w)
	}
	flush()
	return phrases
}

func joinable(prev, next Token, gapFactor float64) bool {
	if isNumeric(prev.Text) || isNumeric(next.Text) {
		return false
	}
	h := math.Max(prev.Box.Height(), next.Box.Height())
	if h <= 0 {
		return false
	}
	if math.Abs(prev.Center().Y-next.Center().Y) > h/2 {
		return false
	}
	gap := next.Box[0].X - prev.Box[2].X
	return gap >= -h/2 && gap <= gapFactor*h
}

func isNumeric(s string) bool {
	return numericWord.MatchString(strings.TrimSpace(s))
}

func mergeTokens(tokens []Token) Token {
	if len(tokens) == 1 {
		return tokens[0]
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	texts := make([]string, 0, len(tokens))
	var conf float64
	for _, t := range tokens {
		minX = math.Min(minX, t.Box[0].X)
		minY = math.Min(minY, t.Box[0].Y)
		maxX = math.Max(maxX, t.Box[2].X)
		maxY = math.Max(maxY, t.Box[2].Y)
		texts = append(texts, t.Text)
		conf += t.Confidence
	}
	return Token{
		Box: Quad{
			{X: minX, Y: minY},
			{X: maxX, Y: minY},
			{X: maxX, Y: maxY},
			{X: minX, Y: maxY},
		},
		Text:       strings.Join(texts, " "),
		Confidence: conf / float64(len(tokens)),
	}
}
