package face

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// Params holds the fixed tuning of the cascade scan
type Params struct {
	MinFaceSize int
	// MaxFaceSize of 0 means min(width, height) of the scanned image.
	MaxFaceSize    int
	ScoreThreshold float64
	// PyramidScaleFactor is the down-scaling between two pyramid levels, in (0, 1).
	PyramidScaleFactor float64
	// ShiftFactor is the window stride as a fraction of the window size.
	ShiftFactor  float64
	IoUThreshold float64
}

// DefaultParams returns the detector tuning used by the CLI
func DefaultParams() Params {
	return Params{
		MinFaceSize:        20,
		MaxFaceSize:        0,
		ScoreThreshold:     5.0,
		PyramidScaleFactor: 0.8,
		ShiftFactor:        0.1,
		IoUThreshold:       0.2,
	}
}

// Detector runs a pigo cascade over a grayscale copy of the image.
// A Detector must not be shared between goroutines; build one per worker
// from the same model bytes instead.
type Detector struct {
	classifier *pigo.Pigo
	params     Params
}

// NewDetector unpacks the cascade model into a new detector
func NewDetector(model []byte, params Params) (*Detector, error) {
	if len(model) == 0 {
		return nil, ErrNoCascade
	}
	classifier, err := pigo.NewPigo().Unpack(model)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &Detector{classifier: classifier, params: params}, nil
}

// Params returns the tuning the detector was built with
func (d *Detector) Params() Params {
	return d.params
}

// Locate implements Locator
func (d *Detector) Locate(ctx context.Context, img image.Image) (Candidate, bool, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, false, err
	}

	pixels, cols, rows := Grayscale(img)
	maxSize := d.params.MaxFaceSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinFaceSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: 1 / d.params.PyramidScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	c, ok := FirstAccepted(dets, d.params.ScoreThreshold)
	return c, ok, nil
}

// Grayscale converts img into a row-major single channel buffer with its
// origin at (0,0), as the cascade expects.
func Grayscale(img image.Image) ([]uint8, int, int) {
	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	return pigo.RgbToGrayscale(src), cols, rows
}

// FirstAccepted returns the first detection, in the order the cascade
// reported them, whose score clears threshold. This is not necessarily the
// highest scoring one.
func FirstAccepted(dets []pigo.Detection, threshold float64) (Candidate, bool) {
	for _, det := range dets {
		if float64(det.Q) < threshold {
			continue
		}
		return Candidate{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
			Score:  float64(det.Q),
		}, true
	}
	return Candidate{}, false
}
