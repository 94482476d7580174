package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokenAt builds a 20x10 token centered on (cx, cy).
func tokenAt(text string, cx, cy float64) ocr.Token {
	return ocr.Token{
		Box: ocr.Quad{
			{X: cx - 10, Y: cy - 5},
			{X: cx + 10, Y: cy - 5},
			{X: cx + 10, Y: cy + 5},
			{X: cx - 10, Y: cy + 5},
		},
		Text:       text,
		Confidence: 0.9,
	}
}

func TestAnchorResolver_Resolve(t *testing.T) {
	r := NewAnchorResolver(DefaultAnchorPhrase, DefaultAnchorThreshold)

	t.Run("exact phrase", func(t *testing.T) {
		tokens := []ocr.Token{
			tokenAt("Navn: Ola Nordmann", 50, 50),
			tokenAt("Sum timer til utbetaling", 100, 200),
		}

		a, err := r.Resolve(tokens)

		require.NoError(t, err)
		assert.Equal(t, 1, a.Index)
		assert.Equal(t, ocr.Point{X: 100, Y: 200}, a.Center)
		assert.InDelta(t, 1.0, a.Score, 1e-9)
	})

	t.Run("tolerates OCR noise", func(t *testing.T) {
		a, err := r.Resolve([]ocr.Token{tokenAt("Sum tlmer til utbetallng", 10, 10)})

		require.NoError(t, err)
		assert.Greater(t, a.Score, 0.6)
	})

	t.Run("first match wins over a better later match", func(t *testing.T) {
		tokens := []ocr.Token{
			tokenAt("Sum timer til utbetal", 100, 100),
			tokenAt("Sum timer til utbetaling", 100, 400),
		}

		a, err := r.Resolve(tokens)

		require.NoError(t, err)
		assert.Equal(t, 0, a.Index)
		assert.Equal(t, 100.0, a.Center.Y)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := r.Resolve([]ocr.Token{tokenAt("Dato", 10, 10), tokenAt("12,00", 50, 10)})

		assert.ErrorIs(t, err, ErrAnchorNotFound)
	})

	t.Run("empty token list", func(t *testing.T) {
		_, err := r.Resolve(nil)

		assert.ErrorIs(t, err, ErrAnchorNotFound)
	})

	t.Run("word mode compares single words", func(t *testing.T) {
		wr := &AnchorResolver{Phrase: "utbetaling", Threshold: 0.8, Mode: MatchWord}

		a, err := wr.Resolve([]ocr.Token{tokenAt("Sum timer til utbetaling", 100, 200)})

		require.NoError(t, err)
		assert.InDelta(t, 1.0, a.Score, 1e-9)

		_, err = r.Resolve([]ocr.Token{tokenAt("utbetaling", 100, 200)})
		assert.ErrorIs(t, err, ErrAnchorNotFound)
	})
}

func TestNumericExtractor_Extract(t *testing.T) {
	x := NewNumericExtractor(DefaultRowTolerance)
	anchor := ocr.Point{X: 100, Y: 200}

	tests := []struct {
		name    string
		tokens  []ocr.Token
		want    float64
		wantErr error
	}{
		{
			name:   "comma decimal on the anchor row",
			tokens: []ocr.Token{tokenAt("12,00", 180, 205)},
			want:   12.0,
		},
		{
			name:   "dot decimal",
			tokens: []ocr.Token{tokenAt("7.5", 150, 190)},
			want:   7.5,
		},
		{
			name:   "integer",
			tokens: []ocr.Token{tokenAt("37", 300, 200)},
			want:   37,
		},
		{
			name: "nearest to the right wins",
			tokens: []ocr.Token{
				tokenAt("40,00", 400, 200),
				tokenAt("12,50", 200, 200),
			},
			want: 12.5,
		},
		{
			name: "equal distance keeps the first token",
			tokens: []ocr.Token{
				tokenAt("10", 200, 190),
				tokenAt("20", 200, 210),
			},
			want: 10,
		},
		{
			name: "tokens left of the anchor are ignored",
			tokens: []ocr.Token{
				tokenAt("99", 50, 200),
				tokenAt("8", 500, 200),
			},
			want: 8,
		},
		{
			name:    "token at the anchor x is not right of it",
			tokens:  []ocr.Token{tokenAt("12", 100, 200)},
			wantErr: ErrNoNumericCandidate,
		},
		{
			name:    "row band is exclusive",
			tokens:  []ocr.Token{tokenAt("12", 180, 230)},
			wantErr: ErrNoNumericCandidate,
		},
		{
			name: "non-numeric tokens are skipped",
			tokens: []ocr.Token{
				tokenAt("timer", 150, 200),
				tokenAt("12,000", 160, 200),
				tokenAt("1234", 170, 200),
				tokenAt("kr 12", 180, 200),
			},
			wantErr: ErrNoNumericCandidate,
		},
		{
			name:    "no tokens",
			wantErr: ErrNoNumericCandidate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Extract(tt.tokens, anchor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
		})
	}
}

func TestParseHours(t *testing.T) {
	v, err := ParseHours(" 12,25 ")
	require.NoError(t, err)
	assert.Equal(t, 12.25, v)

	_, err = ParseHours("1,2,3")
	assert.ErrorIs(t, err, ErrNumericParse)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		wantErr bool
	}{
		{text: "Timeliste\nNavn: Ola Nordmann\nDato: 01.02", want: "Ola Nordmann"},
		{text: "Name : Kari Øvre-Dal\n", want: "Kari Øvre-Dal"},
		{text: "navn:Åse Berg", want: "Åse Berg"},
		{text: "Timeliste uten etikett", wantErr: true},
		{text: "Navn: 12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseName(tt.text)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNameUnparsable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Name() string { return "mock" }

func (m *mockEngine) Tokens(ctx context.Context, img *ocr.Image) ([]ocr.Token, error) {
	args := m.Called(ctx, img)
	tokens, _ := args.Get(0).([]ocr.Token)
	return tokens, args.Error(1)
}

func (m *mockEngine) Text(ctx context.Context, img *ocr.Image) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}

func (m *mockEngine) Close() error { return nil }

func TestNameExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	img := &ocr.Image{Path: "scan.png"}

	t.Run("labelled name", func(t *testing.T) {
		engine := new(mockEngine)
		engine.On("Text", ctx, img).Return("Navn: Ola Nordmann\n", nil)

		name, err := NewNameExtractor(engine, zap.NewNop()).Extract(ctx, img)

		require.NoError(t, err)
		assert.Equal(t, "Ola Nordmann", name)
		engine.AssertExpectations(t)
	})

	t.Run("missing label yields sentinel", func(t *testing.T) {
		engine := new(mockEngine)
		engine.On("Text", ctx, img).Return("Timeliste", nil)

		name, err := NewNameExtractor(engine, zap.NewNop()).Extract(ctx, img)

		assert.ErrorIs(t, err, ErrNameUnparsable)
		assert.Equal(t, UnknownName, name)
	})

	t.Run("engine failure yields sentinel", func(t *testing.T) {
		boom := errors.New("tesseract crashed")
		engine := new(mockEngine)
		engine.On("Text", ctx, img).Return("", boom)

		name, err := NewNameExtractor(engine, zap.NewNop()).Extract(ctx, img)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, UnknownName, name)
	})
}
