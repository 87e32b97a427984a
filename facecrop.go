// Package facecrop turns photos into square, resized images whose crop is
// biased toward the most prominent human face.
//
// Basic usage:
//
//	detector, err := face.NewDetector(model, face.DefaultParams())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c := facecrop.New(detector, processing.DefaultEncodeOptions())
//	out, err := c.Process(ctx, facecrop.Task{
//		Source: "portrait.jpg",
//		Width:  300,
//		Height: 300,
//		Format: "png",
//	})
//
// The pipeline for one file is: decode, locate a face, select a square crop
// (face centered when one was found, image centered otherwise), resample to
// the target size, encode and write to {stem}_resized.{format}.
//
// A Cropper is not safe for concurrent use when its Locator is not; batch
// callers build one Cropper per worker.
package facecrop

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/facecrop/internal/utils"
	"github.com/menta2k/facecrop/pkg/analyzer"
	"github.com/menta2k/facecrop/pkg/cropper"
	"github.com/menta2k/facecrop/pkg/face"
	"github.com/menta2k/facecrop/pkg/processing"
)

// Version of the facecrop library
const Version = "1.0.0"

// ErrInvalidTarget is returned for a non-positive target width or height
var ErrInvalidTarget = errors.New("target width and height must be positive")

// Task describes the work for one source image
type Task struct {
	Source string
	Width  int
	Height int
	// Format is the output format token as given by the user, it is also
	// the output file extension.
	Format string
	// OutputDir is where the result is written, empty = beside Source.
	OutputDir string
}

// Stage names the pipeline step an error came from
type Stage string

const (
	StageFormat  Stage = "format"
	StageDecode  Stage = "decode"
	StageDetect  Stage = "detect"
	StageCrop    Stage = "crop"
	StageEncode  Stage = "encode"
	StageResolve Stage = "resolve"
	StageWrite   Stage = "write"
)

// StageError attributes a pipeline failure to its stage
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of err, or "" when err carries none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Status is the result kind of one batch entry
type Status int

const (
	Succeeded Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one batch entry
type Outcome struct {
	Path   string
	Output string
	Status Status
	Err    error
}

// Cropper runs the per-item pipeline
type Cropper struct {
	locator   face.Locator
	processor *processing.Processor
	analyzer  *analyzer.ImageAnalyzer
}

// New creates a Cropper that finds faces with locator. A nil locator
// always takes the center-crop path.
func New(locator face.Locator, opts processing.EncodeOptions) *Cropper {
	return &Cropper{
		locator:   locator,
		processor: processing.NewProcessor(opts),
		analyzer:  analyzer.New(),
	}
}

// Probe decodes the file at path, see analyzer.Probe
func (c *Cropper) Probe(path string) (image.Image, error) {
	img, _, err := c.analyzer.Probe(path)
	return img, err
}

// Process decodes task.Source and runs the pipeline on it. It returns the
// path of the written file.
func (c *Cropper) Process(ctx context.Context, task Task) (string, error) {
	if _, err := processing.ParseFormat(task.Format); err != nil {
		return "", stageErr(StageFormat, err)
	}

	img, err := c.Probe(task.Source)
	if err != nil {
		return "", stageErr(StageDecode, err)
	}

	return c.ProcessImage(ctx, task, img)
}

// ProcessImage runs the pipeline on an image already decoded from
// task.Source
func (c *Cropper) ProcessImage(ctx context.Context, task Task, img image.Image) (string, error) {
	format, err := processing.ParseFormat(task.Format)
	if err != nil {
		return "", stageErr(StageFormat, err)
	}
	if task.Width <= 0 || task.Height <= 0 {
		return "", stageErr(StageFormat, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, task.Width, task.Height))
	}

	region, _, err := c.Plan(ctx, img)
	if err != nil {
		return "", err
	}

	out, err := c.processor.Render(img, region.Rect(), task.Width, task.Height)
	if err != nil {
		return "", stageErr(StageCrop, err)
	}

	data, err := c.processor.EncodeBytes(out, format)
	if err != nil {
		return "", stageErr(StageEncode, err)
	}

	dst, err := utils.ResolveOutput(task.Source, task.Format, task.OutputDir)
	if err != nil {
		return "", stageErr(StageResolve, err)
	}

	if err := utils.WriteFileAtomic(dst, data, 0o644); err != nil {
		return "", stageErr(StageWrite, err)
	}

	return dst, nil
}

// Plan locates a face in img and selects the square crop. The candidate is
// nil when no face was found.
func (c *Cropper) Plan(ctx context.Context, img image.Image) (cropper.Region, *face.Candidate, error) {
	var found *face.Candidate
	if c.locator != nil {
		cand, ok, err := c.locator.Locate(ctx, img)
		if err != nil {
			return cropper.Region{}, nil, stageErr(StageDetect, err)
		}
		if ok {
			found = &cand
		}
	}

	b := img.Bounds()
	region, err := cropper.Select(b.Dx(), b.Dy(), found)
	if err != nil {
		return cropper.Region{}, nil, stageErr(StageCrop, err)
	}
	return region, found, nil
}
