// Package cropper selects the square region of an image that is kept
// before resizing, biased toward a detected face when there is one.
package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/facecrop/pkg/face"
)

// ErrEmptyImage is returned when an image has no pixels to crop
var ErrEmptyImage = errors.New("image has zero width or height")

// Region is a square crop in pixel coordinates of the source image
type Region struct {
	X    int
	Y    int
	Side int
}

// Rect returns the region as an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Side, r.Y+r.Side)
}

// In reports whether the region lies fully inside a width x height image
func (r Region) In(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Side <= width && r.Y+r.Side <= height
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Side, r.Side, r.X, r.Y)
}

// Square computes the crop for a width x height image. side is always
// min(width, height).
//
// With no face the crop is the geometric center, width/2 - side/2 on each
// axis. With a face the crop is centered on the face and then clamped on
// both edges, so a face near the right or bottom border slides the crop back
// inside the image instead of overrunning it.
func Square(width, height int, c *face.Candidate) Region {
	side := min(width, height)

	if c == nil {
		return Region{
			X:    width/2 - side/2,
			Y:    height/2 - side/2,
			Side: side,
		}
	}

	cx, cy := c.Center()
	return Region{
		X:    clamp(cx-side/2, 0, width-side),
		Y:    clamp(cy-side/2, 0, height-side),
		Side: side,
	}
}

// Select is Square with a guard against images that cannot be cropped
func Select(width, height int, c *face.Candidate) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, ErrEmptyImage
	}
	r := Square(width, height, c)
	if !r.In(width, height) {
		return Region{}, fmt.Errorf("crop %s outside %dx%d image", r, width, height)
	}
	return r, nil
}

// clamp bounds v to [lo, hi], applying the lower bound first.
func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
