// Package face locates the single face a square crop should be biased toward.
package face

import (
	"context"
	"image"
)

// Candidate is a face region in pixel coordinates of the source image
type Candidate struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the candidate's bounding box
func (c Candidate) Center() (int, int) {
	return c.X + c.Width/2, c.Y + c.Height/2
}

// Rect returns the bounding box as an image.Rectangle
func (c Candidate) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Locator finds at most one face in a decoded image.
//
// ok is false when no face cleared the locator's threshold; that is the
// normal "no face" branch and not an error. Implementations are not required
// to be safe for concurrent use; the batch scheduler gives each worker its own.
type Locator interface {
	Locate(ctx context.Context, img image.Image) (c Candidate, ok bool, err error)
}
