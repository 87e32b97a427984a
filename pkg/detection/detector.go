// Package detection locates the primary face with a vision language model,
// as an alternative to the cascade detector in package face.
package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/menta2k/facecrop/pkg/face"
	"github.com/menta2k/facecrop/pkg/processing"
	"github.com/menta2k/facecrop/pkg/types"
)

// DefaultPrompt asks the model for the single most prominent face
const DefaultPrompt = `You are a face locator.

Return JSON only:
{
  "primary": {
    "label": "face",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence (<= 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- The box must tightly enclose the single largest, most frontal human face.
- Do not guess real identities.
- If there is no human face, return:
  {"primary":{"label":"none","confidence":0.0,"box":{"x":0,"y":0,"w":0,"h":0}},"description":"no face"}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionClient sends one image and prompt to a vision model
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}

// Options configures a SubjectLocator
type Options struct {
	Model string
	// SendSize caps the long side of the image sent to the model, 0 = original.
	SendSize    int
	SendQuality int
	// MinScore is the confidence below which the answer counts as no face.
	MinScore float64
}

// SubjectLocator implements face.Locator on top of a VisionClient
type SubjectLocator struct {
	client    VisionClient
	processor *processing.Processor
	opts      Options
}

// NewSubjectLocator creates a locator that asks client for the face box
func NewSubjectLocator(client VisionClient, opts Options) *SubjectLocator {
	return &SubjectLocator{
		client:    client,
		processor: processing.NewProcessor(processing.DefaultEncodeOptions()),
		opts:      opts,
	}
}

// Locate implements face.Locator
func (l *SubjectLocator) Locate(ctx context.Context, img image.Image) (face.Candidate, bool, error) {
	imgB64, err := l.processor.PrepareImageForModel(img, "jpg", l.opts.SendSize, l.opts.SendQuality)
	if err != nil {
		return face.Candidate{}, false, fmt.Errorf("failed to prepare image for model: %w", err)
	}

	result, err := l.client.AnalyzeImage(ctx, l.opts.Model, DefaultPrompt, imgB64)
	if err != nil {
		return face.Candidate{}, false, err
	}

	b := img.Bounds()
	c, ok := ToCandidate(result, b.Dx(), b.Dy(), l.opts.MinScore)
	return c, ok, nil
}

// ToCandidate converts a model answer into pixel coordinates of a
// width x height image. Answers labelled "none", below minScore or with an
// empty box are the no-face branch.
func ToCandidate(result *types.AnalysisResult, width, height int, minScore float64) (face.Candidate, bool) {
	if result == nil || strings.EqualFold(result.Primary.Label, "none") {
		return face.Candidate{}, false
	}
	if result.Primary.Confidence < minScore {
		return face.Candidate{}, false
	}

	box := normalizeBox(result.Primary.Box)
	if box.W <= 0 || box.H <= 0 {
		return face.Candidate{}, false
	}

	fw, fh := float64(width), float64(height)
	return face.Candidate{
		X:      int(math.Round(box.X * fw)),
		Y:      int(math.Round(box.Y * fh)),
		Width:  int(math.Round(box.W * fw)),
		Height: int(math.Round(box.H * fh)),
		Score:  result.Primary.Confidence,
	}, true
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
