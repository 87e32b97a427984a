// Package batch runs the crop pipeline over every image in a directory on a
// pool of workers.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/facecrop"
	"github.com/menta2k/facecrop/pkg/face"
	"github.com/menta2k/facecrop/pkg/processing"
)

// Progress is advanced once per dispatched entry.
// *progressbar.ProgressBar satisfies it.
type Progress interface {
	Add(n int) error
	Finish() error
}

// LocatorFactory builds the face locator owned by one worker
type LocatorFactory func() (face.Locator, error)

// Options configures a batch run
type Options struct {
	Width     int
	Height    int
	Format    string
	OutputDir string
	// Workers is the pool size, 0 = DefaultWorkers().
	Workers int
	Encode  processing.EncodeOptions
}

// Summary counts the outcomes of a run
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d processed, %d succeeded, %d failed, %d skipped", s.Total, s.Succeeded, s.Failed, s.Skipped)
}

// Scheduler fans the entries of one directory out to workers
type Scheduler struct {
	opts        Options
	newLocator  LocatorFactory
	newProgress func(total int) Progress
	logger      *slog.Logger
	onOutcome   func(facecrop.Outcome)
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithProgress sets the progress reporter built once the number of
// dispatched entries is known
func WithProgress(fn func(total int) Progress) Option {
	return func(s *Scheduler) { s.newProgress = fn }
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithOutcome registers fn to receive every outcome. It is called
// concurrently from the workers.
func WithOutcome(fn func(facecrop.Outcome)) Option {
	return func(s *Scheduler) { s.onOutcome = fn }
}

// New creates a Scheduler. A nil newLocator runs every entry on the
// center-crop path.
func New(opts Options, newLocator LocatorFactory, options ...Option) *Scheduler {
	s := &Scheduler{
		opts:        opts,
		newLocator:  newLocator,
		newProgress: func(int) Progress { return nopProgress{} },
		logger:      slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// DefaultWorkers returns the number of logical CPUs
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Run processes the immediate entries of root. Only a missing, non-directory
// or unlistable root is returned as an error; per-entry failures are logged
// and counted in the Summary. Cancelling ctx stops dispatching new entries.
func (s *Scheduler) Run(ctx context.Context, root string) (Summary, error) {
	paths, err := s.list(root)
	if err != nil {
		return Summary{}, err
	}

	workers := s.opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	workers = max(1, min(workers, len(paths)))

	progress := s.newProgress(len(paths))
	defer progress.Finish()

	var succeeded, failed, skipped atomic.Int64
	// destination -> source that last wrote it during this run
	var written sync.Map
	jobs := make(chan string)

	g, gctx := errgroup.WithContext(ctx)
	// Entries already dispatched run to completion after an interrupt.
	taskCtx := context.WithoutCancel(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			c, err := s.cropper()
			if err != nil {
				return err
			}
			for path := range jobs {
				o := s.process(taskCtx, c, path)
				if o.Status == facecrop.Succeeded {
					if prev, loaded := written.Swap(o.Output, o.Path); loaded {
						s.logger.Warn("output overwritten by another source",
							"path", o.Path, "output", o.Output, "previous", prev)
					}
				}
				switch o.Status {
				case facecrop.Succeeded:
					succeeded.Add(1)
				case facecrop.Failed:
					failed.Add(1)
				case facecrop.Skipped:
					skipped.Add(1)
				}
				if s.onOutcome != nil {
					s.onOutcome(o)
				}
				progress.Add(1)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, path := range paths {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case jobs <- path:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	err = g.Wait()

	summary := Summary{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	summary.Total = summary.Succeeded + summary.Failed + summary.Skipped

	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		s.logger.Warn("batch interrupted", "dispatched", summary.Total, "remaining", len(paths)-summary.Total)
	}
	s.logger.Info("batch complete",
		"processed", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary, nil
}

// list returns the regular entries of root in directory order
func (s *Scheduler) list(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		fi, err := e.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable entry", "path", path, "reason", err)
			continue
		}
		if fi.IsDir() {
			s.logger.Warn("skipping file", "path", path, "reason", "is a directory")
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// cropper builds the per-worker pipeline around its own locator
func (s *Scheduler) cropper() (*facecrop.Cropper, error) {
	var loc face.Locator
	if s.newLocator != nil {
		l, err := s.newLocator()
		if err != nil {
			return nil, fmt.Errorf("failed to create face locator: %w", err)
		}
		loc = l
	}
	return facecrop.New(loc, s.opts.Encode), nil
}

// process runs one entry and never returns its failure to the pool
func (s *Scheduler) process(ctx context.Context, c *facecrop.Cropper, path string) facecrop.Outcome {
	img, err := c.Probe(path)
	if err != nil {
		s.logger.Warn("skipping file", "path", path, "reason", err)
		return facecrop.Outcome{Path: path, Status: facecrop.Skipped, Err: err}
	}

	task := facecrop.Task{
		Source:    path,
		Width:     s.opts.Width,
		Height:    s.opts.Height,
		Format:    s.opts.Format,
		OutputDir: s.opts.OutputDir,
	}
	out, err := c.ProcessImage(ctx, task, img)
	if err != nil {
		s.logger.Error("failed to process image", "path", path, "stage", facecrop.StageOf(err), "err", err)
		return facecrop.Outcome{Path: path, Status: facecrop.Failed, Err: err}
	}

	s.logger.Debug("wrote image", "path", path, "output", out)
	return facecrop.Outcome{Path: path, Output: out, Status: facecrop.Succeeded}
}

type nopProgress struct{}

func (nopProgress) Add(int) error { return nil }
func (nopProgress) Finish() error { return nil }
