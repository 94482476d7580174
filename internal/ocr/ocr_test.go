package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(text string, x0, y0, x1, y1 int) Token {
	return Token{Box: QuadFromRect(image.Rect(x0, y0, x1, y1)), Text: text, Confidence: 0.9}
}

func TestQuadCenter(t *testing.T) {
	q := Quad{{X: 10, Y: 20}, {X: 50, Y: 20}, {X: 50, Y: 40}, {X: 10, Y: 40}}

	assert.Equal(t, Point{X: 30, Y: 30}, q.Center())
	assert.Equal(t, 20.0, q.Height())
}

func TestQuadFromRect(t *testing.T) {
	q := QuadFromRect(image.Rect(1, 2, 5, 8))

	assert.Equal(t, Point{X: 1, Y: 2}, q[0])
	assert.Equal(t, Point{X: 5, Y: 2}, q[1])
	assert.Equal(t, Point{X: 5, Y: 8}, q[2])
	assert.Equal(t, Point{X: 1, Y: 8}, q[3])
}

func TestGroupPhrases(t *testing.T) {
	words := []Token{
		word("Sum", 10, 100, 50, 120),
		word("timer", 58, 101, 110, 121),
		word("til", 118, 100, 140, 120),
		word("utbetaling", 148, 100, 250, 120),
		word("12,00", 300, 101, 350, 121),
		word("Navn:", 10, 200, 60, 220),
	}

	t.Run("merges a label on one line and keeps numbers apart", func(t *testing.T) {
		got := GroupPhrases(words, 1.0)

		require.Len(t, got, 3)
		assert.Equal(t, "Sum timer til utbetaling", got[0].Text)
		assert.Equal(t, Point{X: 10, Y: 100}, got[0].Box[0])
		assert.Equal(t, Point{X: 250, Y: 121}, got[0].Box[2])
		assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
		assert.Equal(t, "12,00", got[1].Text)
		assert.Equal(t, "Navn:", got[2].Text)
	})

	t.Run("large gaps split phrases", func(t *testing.T) {
		got := GroupPhrases([]Token{word("Sum", 10, 100, 50, 120), word("timer", 200, 100, 250, 120)}, 1.0)

		assert.Len(t, got, 2)
	})

	t.Run("zero gap factor keeps words", func(t *testing.T) {
		assert.Equal(t, words, GroupPhrases(words, 0))
	})
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 230, G: 230, B: 230, A: 255}
			if x < w/2 {
				c = color.RGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, 40, 20)

	t.Run("decodes and re-encodes", func(t *testing.T) {
		img, err := LoadImage(path, LoadOptions{})

		require.NoError(t, err)
		assert.Equal(t, path, img.Path)
		assert.Equal(t, 40, img.Width)
		assert.Equal(t, 20, img.Height)
		assert.NotEmpty(t, img.Data)
	})

	t.Run("upscales narrow pages", func(t *testing.T) {
		img, err := LoadImage(path, LoadOptions{MinWidth: 80})

		require.NoError(t, err)
		assert.Equal(t, 80, img.Width)
		assert.Equal(t, 40, img.Height)
	})

	t.Run("binarizes to black and white", func(t *testing.T) {
		img, err := LoadImage(path, LoadOptions{Binarize: true})
		require.NoError(t, err)

		decoded, err := png.Decode(bytes.NewReader(img.Data))
		require.NoError(t, err)
		gray, ok := decoded.(*image.Gray)
		require.True(t, ok)
		for _, v := range gray.Pix {
			assert.True(t, v == 0 || v == 255)
		}
		assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(255), gray.GrayAt(39, 0).Y)
	})

	t.Run("missing file is unreadable", func(t *testing.T) {
		_, err := LoadImage(filepath.Join(dir, "missing.png"), LoadOptions{})

		assert.ErrorIs(t, err, ErrImageUnreadable)
	})

	t.Run("garbage is unreadable", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.jpg")
		require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

		_, err := LoadImage(bad, LoadOptions{})

		assert.ErrorIs(t, err, ErrImageUnreadable)
	})
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a/b/scan.PNG"))
	assert.True(t, IsSupported("scan.jpeg"))
	assert.True(t, IsSupported("scan.pdf"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("noext"))
}

func TestTesseractEngine_GuardKeepsSlotUntilWorkEnds(t *testing.T) {
	e := &TesseractEngine{slots: make(chan struct{}, 1)}
	release := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := e.guard(ctx, func() error {
		<-release
		close(finished)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the abandoned call still occupies the only slot
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	called := false
	err = e.guard(ctx2, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	<-finished
	require.Eventually(t, func() bool {
		return e.guard(context.Background(), func() error { return nil }) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestTesseractEngine_GuardReturnsWorkError(t *testing.T) {
	e := &TesseractEngine{slots: make(chan struct{}, 2)}

	err := e.guard(context.Background(), func() error { return ErrImageUnreadable })

	assert.ErrorIs(t, err, ErrImageUnreadable)
	assert.Eventually(t, func() bool { return len(e.slots) == 0 }, time.Second, time.Millisecond)
}
