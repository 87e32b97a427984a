package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/facecrop/pkg/processing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	if cfg.Size != "2000x2000" {
		t.Errorf("Expected default size 2000x2000, got %s", cfg.Size)
	}
	if cfg.Format != "jpg" {
		t.Errorf("Expected default format jpg, got %s", cfg.Format)
	}
	if cfg.Detector.Backend != BackendPigo {
		t.Errorf("Expected default backend pigo, got %s", cfg.Detector.Backend)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in            string
		width, height int
	}{
		{"2000x2000", 2000, 2000},
		{"800x600", 800, 600},
		{"1x1", 1, 1},
	}

	for _, tt := range tests {
		w, h, err := ParseSize(tt.in)
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", tt.in, err)
			continue
		}
		if w != tt.width || h != tt.height {
			t.Errorf("ParseSize(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.width, tt.height)
		}
	}
}

func TestParseSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "800", "800x", "x600", "800x600x2", "0x600", "800x-1", "axb", "800X600", "800 x 600"} {
		if _, _, err := ParseSize(in); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("ParseSize(%q): expected ErrInvalidSize, got %v", in, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"bad size", func(c *Config) { c.Size = "big" }, ErrInvalidSize},
		{"bad format", func(c *Config) { c.Format = "heic" }, processing.ErrUnsupportedFormat},
		{"negative workers", func(c *Config) { c.Workers = -1 }, nil},
		{"quality too high", func(c *Config) { c.Output.Quality = 101 }, nil},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "opencv" }, nil},
		{"zero min face", func(c *Config) { c.Detector.MinFaceSize = 0 }, nil},
		{"max below min", func(c *Config) { c.Detector.MaxFaceSize = 10 }, nil},
		{"scale factor one", func(c *Config) { c.Detector.PyramidScaleFactor = 1 }, nil},
		{"zero shift", func(c *Config) { c.Detector.ShiftFactor = 0 }, nil},
		{"iou above one", func(c *Config) { c.Detector.IoUThreshold = 1.5 }, nil},
		{"min score above one", func(c *Config) { c.Detector.MinScore = 2 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestValidateFormatCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Format = "JPEG"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected JPEG to be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("size: 300x300\nformat: png\ndetector:\n  min_face_size: 40\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Size != "300x300" || cfg.Format != "png" {
		t.Errorf("Expected file values, got size=%s format=%s", cfg.Size, cfg.Format)
	}
	if cfg.Detector.MinFaceSize != 40 {
		t.Errorf("Expected min face size 40, got %d", cfg.Detector.MinFaceSize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Detector.PyramidScaleFactor != 0.8 {
		t.Errorf("Expected default pyramid scale factor, got %f", cfg.Detector.PyramidScaleFactor)
	}
	if cfg.Output.Quality != 90 {
		t.Errorf("Expected default quality 90, got %d", cfg.Output.Quality)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("size: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Workers = 3
	cfg.Detector.Backend = BackendOllama
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Workers != 3 || loaded.Detector.Backend != BackendOllama {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestFaceParams(t *testing.T) {
	cfg := Default()
	cfg.Detector.MinFaceSize = 32

	p := cfg.FaceParams()
	if p.MinFaceSize != 32 || p.PyramidScaleFactor != cfg.Detector.PyramidScaleFactor {
		t.Errorf("Unexpected params %+v", p)
	}
}
