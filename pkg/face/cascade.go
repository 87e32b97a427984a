package face

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
)

// facefinder is the frontal face cascade distributed with pigo
//
//go:embed cascade/facefinder
var facefinder []byte

// ErrNoCascade is returned when a cascade model has no content
var ErrNoCascade = errors.New("empty face cascade")

// Model returns the cascade bytes. An empty path selects the embedded
// cascade, which is shared by every caller and must not be modified.
func Model(path string) ([]byte, error) {
	if path == "" {
		return facefinder, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return data, nil
}
