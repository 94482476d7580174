// Package ocr wraps the recognition engine that turns a timesheet image into
// positioned text tokens and into plain text.
//
// Engines are constructed once and shared by every verification; they hold
// no per-image state.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrImageUnreadable is returned when an image cannot be opened or decoded.
var ErrImageUnreadable = errors.New("image unreadable")

// Point is a pixel coordinate with the origin in the upper-left corner.
type Point struct {
	X float64
	Y float64
}

// Quad is a token outline ordered top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// QuadFromRect converts an axis-aligned rectangle to a Quad.
func QuadFromRect(r image.Rectangle) Quad {
	minX, minY := float64(r.Min.X), float64(r.Min.Y)
	maxX, maxY := float64(r.Max.X), float64(r.Max.Y)
	return Quad{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Center is the midpoint of the top-left and bottom-right corners.
func (q Quad) Center() Point {
	return Point{
		X: (q[0].X + q[2].X) / 2.0,
		Y: (q[0].Y + q[2].Y) / 2.0,
	}
}

// Height is the vertical extent between the top-left and bottom-right corners.
func (q Quad) Height() float64 {
	return q[2].Y - q[0].Y
}

// Token is one unit of recognized text with its outline and confidence in [0,1].
type Token struct {
	Box        Quad
	Text       string
	Confidence float64
}

// Center returns the geometric center of the token outline.
func (t Token) Center() Point {
	return t.Box.Center()
}

func (t Token) String() string {
	c := t.Center()
	return fmt.Sprintf("%q@(%.1f,%.1f) conf=%.2f", t.Text, c.X, c.Y, t.Confidence)
}

// Image is a decoded page ready for recognition. Data holds the PNG encoding
// handed to the engine.
type Image struct {
	Path   string
	Data   []byte
	Width  int
	Height int
}

// Engine is the recognition oracle used by verification.
type Engine interface {
	Name() string
	// Tokens returns positioned tokens in reading order.
	Tokens(ctx context.Context, img *Image) ([]Token, error)
	// Text returns the plain-text transcription of the whole page.
	Text(ctx context.Context, img *Image) (string, error)
	Close() error
}
