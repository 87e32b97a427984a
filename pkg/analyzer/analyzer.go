// Package analyzer decides whether a file is an image this tool can work on
// and decodes it.
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when a file's content is not an image type
var ErrNotImage = errors.New("not an image")

// sniffLen is how much of a file is read for MIME detection
const sniffLen = 3072

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	MIME        string
}

// ImageAnalyzer probes and decodes image files
type ImageAnalyzer struct {
	autoOrient bool
}

// New creates a new ImageAnalyzer that applies EXIF orientation on decode
func New() *ImageAnalyzer {
	return &ImageAnalyzer{autoOrient: true}
}

// Probe opens path, checks that its content sniffs as an image and fully
// decodes it. A corrupt or non-image file returns an error; callers treat
// that as "skip this entry".
func (a *ImageAnalyzer) Probe(path string) (image.Image, ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, ImageInfo{}, fmt.Errorf("failed to read image file: %w", err)
	}
	head = head[:n]

	mime := mimetype.Detect(head)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, ImageInfo{}, fmt.Errorf("%w: %s", ErrNotImage, mime.String())
	}

	img, err := imaging.Decode(io.MultiReader(bytes.NewReader(head), f), imaging.AutoOrientation(a.autoOrient))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}

	info := a.GetImageInfo(img)
	info.MIME = mime.String()
	return img, info, nil
}

// LoadImageFromReader decodes an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	img, err := imaging.Decode(reader, imaging.AutoOrientation(a.autoOrient))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var ratio float64
	if height > 0 {
		ratio = float64(width) / float64(height)
	}

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: ratio,
	}
}
