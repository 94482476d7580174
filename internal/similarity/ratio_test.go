package similarity

import (
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "jon hansen", b: "jon hansen", want: 1.0},
		{name: "case insensitive", a: "Sum Timer Til Utbetaling", b: "sum timer til utbetaling", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abc", b: "", want: 0.0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0},
		{name: "shifted overlap", a: "abcd", b: "bcde", want: 0.75},
		{name: "one letter variant", a: "jon hanssen", b: "jon hansen", want: 20.0 / 21.0},
		{name: "norwegian letters are single runes", a: "Bjørn Ås", b: "bjørn ås", want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatio_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"jon hanssen", "jon hansen"},
		{"sum timer", "sum timer til utbetaling"},
		{"abxcd", "abcd"},
		{"tilutbetaling", "til utbetaling"},
		{"aaab", "abaa"},
		{"Navn: Kari", "kari nordmann"},
		{"", "x"},
	}

	for _, p := range pairs {
		assert.Equal(t, Ratio(p[0], p[1]), Ratio(p[1], p[0]), "pair %q / %q", p[0], p[1])
	}
}

func TestRatio_Reflexive(t *testing.T) {
	for _, s := range []string{"", "a", "12,00", "Sum timer til utbetaling", "Øyvind Ærø-Ås"} {
		assert.Equal(t, 1.0, Ratio(s, s), s)
	}
}

func TestRatio_BoundedByQuickRatios(t *testing.T) {
	a := runes("kari nordmann")
	b := runes("karin nordman")
	m := difflib.NewMatcher(a, b)

	assert.LessOrEqual(t, m.Ratio(), m.QuickRatio())
	assert.LessOrEqual(t, m.QuickRatio(), m.RealQuickRatio())
	assert.GreaterOrEqual(t, ratio(a, b), m.Ratio())
}

func TestRunes(t *testing.T) {
	assert.Equal(t, []string{"b", "j", "ø", "r", "n"}, runes("BJØRN"))
	assert.Empty(t, runes(""))
}

func TestCloseMatches(t *testing.T) {
	names := []string{"kari nordmann", "jon hansen", "jonas hansen", "ola normann"}

	t.Run("returns best match over the whole set", func(t *testing.T) {
		got := CloseMatches("jon hanssen", names, 1, 0.6)

		require.Len(t, got, 1)
		assert.Equal(t, "jon hansen", got[0].Value)
		assert.Equal(t, 1, got[0].Index)
		assert.GreaterOrEqual(t, got[0].Score, 0.6)
	})

	t.Run("orders by score", func(t *testing.T) {
		got := CloseMatches("jon hansen", names, 3, 0.6)

		require.Len(t, got, 2)
		assert.Equal(t, "jon hansen", got[0].Value)
		assert.Equal(t, "jonas hansen", got[1].Value)
		assert.Greater(t, got[0].Score, got[1].Score)
	})

	t.Run("equal scores keep input order", func(t *testing.T) {
		got := CloseMatches("ab", []string{"abx", "aby"}, 2, 0.5)

		require.Len(t, got, 2)
		assert.Equal(t, "abx", got[0].Value)
		assert.Equal(t, "aby", got[1].Value)
	})

	t.Run("nothing above cutoff", func(t *testing.T) {
		assert.Empty(t, CloseMatches("unknown", names, 1, 0.6))
	})

	t.Run("non-positive n", func(t *testing.T) {
		assert.Nil(t, CloseMatches("jon hansen", names, 0, 0.6))
	})
}
