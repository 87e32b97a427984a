package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/facecrop/pkg/face"
	"github.com/menta2k/facecrop/pkg/processing"
)

// ErrInvalidSize is returned for size strings that are not WIDTHxHEIGHT
var ErrInvalidSize = errors.New("invalid size format, expected WIDTHxHEIGHT")

// Detector backends
const (
	BackendPigo     = "pigo"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Size       string         `yaml:"size"`
	Format     string         `yaml:"format"`
	OutputPath string         `yaml:"output_path"`
	Workers    int            `yaml:"workers"`
	Output     OutputConfig   `yaml:"output"`
	Detector   DetectorConfig `yaml:"detector"`
	Log        LogConfig      `yaml:"log"`
}

// OutputConfig holds encoder settings
type OutputConfig struct {
	Quality  int  `yaml:"quality"`
	Lossless bool `yaml:"lossless"`
}

// DetectorConfig holds configuration for face location
type DetectorConfig struct {
	Backend            string  `yaml:"backend"`
	MinFaceSize        int     `yaml:"min_face_size"`
	MaxFaceSize        int     `yaml:"max_face_size"`
	ScoreThreshold     float64 `yaml:"score_threshold"`
	PyramidScaleFactor float64 `yaml:"pyramid_scale_factor"`
	ShiftFactor        float64 `yaml:"shift_factor"`
	IoUThreshold       float64 `yaml:"iou_threshold"`
	CascadePath        string  `yaml:"cascade_path"`

	// Vision model backends only.
	Model       string  `yaml:"model"`
	URL         string  `yaml:"url"`
	SendSize    int     `yaml:"send_size"`
	SendQuality int     `yaml:"send_quality"`
	MinScore    float64 `yaml:"min_score"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	params := face.DefaultParams()
	return &Config{
		Size:   "2000x2000",
		Format: "jpg",
		Output: OutputConfig{
			Quality: processing.DefaultEncodeOptions().Quality,
		},
		Detector: DetectorConfig{
			Backend:            BackendPigo,
			MinFaceSize:        params.MinFaceSize,
			MaxFaceSize:        params.MaxFaceSize,
			ScoreThreshold:     params.ScoreThreshold,
			PyramidScaleFactor: params.PyramidScaleFactor,
			ShiftFactor:        params.ShiftFactor,
			IoUThreshold:       params.IoUThreshold,
			Model:              "openbmb/minicpm-v4.5",
			SendSize:           1536,
			SendQuality:        85,
			MinScore:           0.3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Everything checked here
// would otherwise fail identically for every image in the run.
func (c *Config) Validate() error {
	if _, _, err := ParseSize(c.Size); err != nil {
		return fmt.Errorf("size: %w", err)
	}

	if _, err := processing.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Detector.Backend {
	case BackendPigo, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("detector.backend must be one of %s, %s, %s", BackendPigo, BackendOllama, BackendLlamaCpp)
	}

	if c.Detector.MinFaceSize < 1 {
		return fmt.Errorf("detector.min_face_size must be positive")
	}

	if c.Detector.MaxFaceSize != 0 && c.Detector.MaxFaceSize < c.Detector.MinFaceSize {
		return fmt.Errorf("detector.max_face_size must be 0 or at least min_face_size")
	}

	if c.Detector.PyramidScaleFactor <= 0 || c.Detector.PyramidScaleFactor >= 1 {
		return fmt.Errorf("detector.pyramid_scale_factor must be between 0 and 1")
	}

	if c.Detector.ShiftFactor <= 0 || c.Detector.ShiftFactor > 1 {
		return fmt.Errorf("detector.shift_factor must be in (0, 1]")
	}

	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		return fmt.Errorf("detector.iou_threshold must be between 0 and 1")
	}

	if c.Detector.MinScore < 0 || c.Detector.MinScore > 1 {
		return fmt.Errorf("detector.min_score must be between 0 and 1")
	}

	return nil
}

// FaceParams returns the pigo tuning described by the detector section
func (c *Config) FaceParams() face.Params {
	return face.Params{
		MinFaceSize:        c.Detector.MinFaceSize,
		MaxFaceSize:        c.Detector.MaxFaceSize,
		ScoreThreshold:     c.Detector.ScoreThreshold,
		PyramidScaleFactor: c.Detector.PyramidScaleFactor,
		ShiftFactor:        c.Detector.ShiftFactor,
		IoUThreshold:       c.Detector.IoUThreshold,
	}
}

// EncodeOptions returns the encoder settings
func (c *Config) EncodeOptions() processing.EncodeOptions {
	return processing.EncodeOptions{
		Quality:  c.Output.Quality,
		Lossless: c.Output.Lossless,
	}
}

// ParseSize parses "WIDTHxHEIGHT" into two positive integers
func ParseSize(size string) (int, int, error) {
	parts := strings.Split(size, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSize, size)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("%w: width %q", ErrInvalidSize, parts[0])
	}

	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("%w: height %q", ErrInvalidSize, parts[1])
	}

	return width, height, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "facecrop", "config.yaml")
}
