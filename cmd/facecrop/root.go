package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/menta2k/facecrop"
	"github.com/menta2k/facecrop/internal/batch"
	"github.com/menta2k/facecrop/internal/config"
	"github.com/menta2k/facecrop/internal/utils"
	"github.com/menta2k/facecrop/pkg/detection"
	"github.com/menta2k/facecrop/pkg/face"
	"github.com/menta2k/facecrop/pkg/llamacpp"
	"github.com/menta2k/facecrop/pkg/ollama"
)

var (
	configPath string
	flagCfg    = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "facecrop DIR",
	Short: "Square-crop and resize every image in a directory, centered on faces",
	Long: `facecrop crops every image directly inside DIR to a square and resizes it
to the requested size. When a face is found the crop is centered on it,
otherwise on the image center. Results are written as {name}_resized.{format}.`,
	Version:       facecrop.Version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the root command and exits non-zero on a fatal error
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	bindFlags(rootCmd.Flags(), flagCfg)
}

// bindFlags registers the command line flags, storing their values in cfg
func bindFlags(f *pflag.FlagSet, cfg *config.Config) {
	f.StringVarP(&cfg.Size, "size", "s", cfg.Size, "output size WIDTHxHEIGHT")
	f.StringVarP(&cfg.Format, "format", "f", cfg.Format, "output format: png|jpg|jpeg|gif|bmp|tiff|webp")
	f.StringVarP(&cfg.OutputPath, "output-path", "o", "", "output directory (default: beside each source image)")
	f.StringVar(&configPath, "config", "", "YAML config file (default: "+config.GetConfigPath()+")")
	f.IntVar(&cfg.Workers, "workers", 0, "number of workers (0 = logical CPUs)")
	f.IntVar(&cfg.Output.Quality, "quality", cfg.Output.Quality, "JPEG/WebP quality (1-100)")
	f.BoolVar(&cfg.Output.Lossless, "lossless", false, "WebP lossless mode")
	f.StringVar(&cfg.Detector.Backend, "detector", cfg.Detector.Backend, "face detector: pigo|ollama|llamacpp")
	f.StringVar(&cfg.Detector.CascadePath, "cascade", "", "pigo cascade file (default: embedded)")
	f.StringVar(&cfg.Detector.Model, "model", cfg.Detector.Model, "vision model name (ollama, llamacpp)")
	f.StringVar(&cfg.Detector.URL, "url", "", "vision server URL (ollama, llamacpp)")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug|info|warn|error")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), configPath, flagCfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := utils.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := utils.Logger(os.Stderr, level)
	slog.SetDefault(logger)

	width, height, err := config.ParseSize(cfg.Size)
	if err != nil {
		return err
	}

	newLocator, err := locatorFactory(cfg)
	if err != nil {
		return err
	}

	s := batch.New(batch.Options{
		Width:     width,
		Height:    height,
		Format:    cfg.Format,
		OutputDir: cfg.OutputPath,
		Workers:   cfg.Workers,
		Encode:    cfg.EncodeOptions(),
	}, newLocator,
		batch.WithLogger(logger),
		batch.WithProgress(func(total int) batch.Progress {
			return progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Cropping"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}))

	summary, err := s.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Done:", summary)
	return nil
}

// loadConfig reads the config file at path, or the default one when path is
// empty, and applies the values of the flags the user set
func loadConfig(flags *pflag.FlagSet, path string, set *config.Config) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = config.GetConfigPath()
	}

	cfg, err := config.LoadFromFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return nil, err
	}

	if flags.Changed("size") {
		cfg.Size = set.Size
	}
	if flags.Changed("format") {
		cfg.Format = set.Format
	}
	if flags.Changed("output-path") {
		cfg.OutputPath = set.OutputPath
	}
	if flags.Changed("workers") {
		cfg.Workers = set.Workers
	}
	if flags.Changed("quality") {
		cfg.Output.Quality = set.Output.Quality
	}
	if flags.Changed("lossless") {
		cfg.Output.Lossless = set.Output.Lossless
	}
	if flags.Changed("detector") {
		cfg.Detector.Backend = set.Detector.Backend
	}
	if flags.Changed("cascade") {
		cfg.Detector.CascadePath = set.Detector.CascadePath
	}
	if flags.Changed("model") {
		cfg.Detector.Model = set.Detector.Model
	}
	if flags.Changed("url") {
		cfg.Detector.URL = set.Detector.URL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = set.Log.Level
	}
	return cfg, nil
}

// locatorFactory checks the detector setup once and returns a factory that
// gives each worker its own locator
func locatorFactory(cfg *config.Config) (batch.LocatorFactory, error) {
	d := cfg.Detector

	switch d.Backend {
	case config.BackendPigo:
		model, err := face.Model(d.CascadePath)
		if err != nil {
			return nil, err
		}
		params := cfg.FaceParams()
		if _, err := face.NewDetector(model, params); err != nil {
			return nil, err
		}
		return func() (face.Locator, error) {
			return face.NewDetector(model, params)
		}, nil

	case config.BackendOllama, config.BackendLlamaCpp:
		var client detection.VisionClient
		var err error
		if d.Backend == config.BackendOllama {
			client, err = ollama.NewClient(d.URL)
		} else {
			client, err = llamacpp.NewClient(d.URL)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", d.Backend, err)
		}
		opts := detection.Options{
			Model:       d.Model,
			SendSize:    d.SendSize,
			SendQuality: d.SendQuality,
			MinScore:    d.MinScore,
		}
		return func() (face.Locator, error) {
			return detection.NewSubjectLocator(client, opts), nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown detector backend %q", d.Backend)
	}
}
