package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// ErrUnsupportedFormat is returned for output format tokens with no encoder
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format is an output encoder
type Format int

const (
	PNG Format = iota
	JPEG
	GIF
	BMP
	TIFF
	WEBP
)

var formatNames = map[Format]string{
	PNG:  "png",
	JPEG: "jpeg",
	GIF:  "gif",
	BMP:  "bmp",
	TIFF: "tiff",
	WEBP: "webp",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a case-insensitive format token to its encoder.
// "jpg" and "jpeg" select the same encoder.
func ParseFormat(token string) (Format, error) {
	switch strings.ToLower(token) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "tiff":
		return TIFF, nil
	case "webp":
		return WEBP, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, token)
	}
}

// EncodeOptions tunes the lossy encoders
type EncodeOptions struct {
	// Quality applies to JPEG and lossy WebP, 1-100.
	Quality  int
	Lossless bool
}

// DefaultEncodeOptions returns the options used when none are configured
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Quality: 90}
}

// Processor crops, resamples and encodes images
type Processor struct {
	opts EncodeOptions
}

// NewProcessor creates a new image processor
func NewProcessor(opts EncodeOptions) *Processor {
	if opts.Quality <= 0 {
		opts.Quality = DefaultEncodeOptions().Quality
	}
	return &Processor{opts: opts}
}

// Render crops img to rect and resamples the result to exactly
// width x height with a Lanczos filter
func (p *Processor) Render(img image.Image, rect image.Rectangle, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	b := img.Bounds()
	rect = rect.Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}

	cropped := imaging.Crop(img, rect)
	return imaging.Resize(cropped, width, height, imaging.Lanczos), nil
}

// Encode writes img to w in the given format
func (p *Processor) Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.opts.Quality))
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case GIF:
		return imaging.Encode(w, img, imaging.GIF)
	case BMP:
		return imaging.Encode(w, img, imaging.BMP)
	case TIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case WEBP:
		return webp.Encode(w, img, &webp.Options{Lossless: p.opts.Lossless, Quality: float32(p.opts.Quality)})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// EncodeBytes is Encode into a new byte slice
func (p *Processor) EncodeBytes(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models.
// The long side is capped at maxDim when maxDim > 0.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
