package postprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"cardrender/internal/capture"
	"cardrender/internal/fileutil"
	"cardrender/internal/logging"
)

// Tracker receives per-image accounting from workers. Dispatched runs on the
// submitting goroutine; the rest run on workers and must be safe for
// concurrent use.
type Tracker interface {
	Cancelled() bool
	ImageDispatched()
	ImageCompleted()
	ImageFailed()
	ImageAborted()
}

// Options configures a Pool.
type Options struct {
	Dir       string
	Format    Format
	Crop      bool
	Tolerance float64
	// Workers bounds concurrent tasks; zero means one goroutine per image.
	Workers int
	Logger  *slog.Logger
}

// Pool encodes captured images and writes them off the render goroutine.
type Pool struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewPool validates opts and builds a pool.
func NewPool(opts Options) (*Pool, error) {
	if opts.Dir == "" {
		return nil, errors.New("postprocess: output directory required")
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("postprocess: workers must be >= 0, got %d", opts.Workers)
	}
	p := &Pool{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "postprocess"),
	}
	if opts.Workers > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.Workers))
	}
	return p, nil
}

// Path returns the output path for label.
func (p *Pool) Path(label string) string {
	return filepath.Join(p.opts.Dir, label+"."+p.opts.Format.Ext())
}

// Submit hands img to a background worker and returns immediately. The
// worker owns img. Cancellation, via tracker or ctx, observed before the
// file is written aborts the task without output.
func (p *Pool) Submit(ctx context.Context, tracker Tracker, img capture.Image) {
	tracker.ImageDispatched()
	go p.run(ctx, tracker, img)
}

func (p *Pool) run(ctx context.Context, tracker Tracker, img capture.Image) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			tracker.ImageAborted()
			return
		}
		defer p.sem.Release(1)
	}
	if tracker.Cancelled() || ctx.Err() != nil {
		tracker.ImageAborted()
		return
	}

	path, err := p.process(ctx, tracker, img)
	switch {
	case errors.Is(err, errAborted), errors.Is(err, context.Canceled):
		tracker.ImageAborted()
	case err != nil:
		logging.ErrorWithContext(p.logger, "image write failed", "image_write_failed",
			logging.String(logging.FieldLayer, img.Label),
			logging.String("output_path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the render directory"),
		)
		tracker.ImageFailed()
	default:
		p.logger.Debug("image written",
			logging.String(logging.FieldLayer, img.Label),
			logging.String("output_path", path),
		)
		tracker.ImageCompleted()
	}
}

var errAborted = errors.New("image aborted")

type cancelled interface{ Cancelled() bool }

// Process encodes img, cropping if configured, and writes it. It runs
// synchronously and is what workers call.
func (p *Pool) Process(ctx context.Context, img capture.Image) (string, error) {
	return p.process(ctx, nil, img)
}

func (p *Pool) process(ctx context.Context, flag cancelled, img capture.Image) (string, error) {
	path := p.Path(img.Label)
	if img.Width <= 0 || img.Height <= 0 || len(img.Pix) < img.Width*img.Height*4 {
		return path, fmt.Errorf("image %s: invalid buffer %dx%d (%d bytes)", img.Label, img.Width, img.Height, len(img.Pix))
	}

	var out image.Image = img.RGBA()
	if p.opts.Crop {
		out = Trim(img.RGBA(), p.tolerance())
	}

	var buf bytes.Buffer
	if err := p.opts.Format.Encode(&buf, out); err != nil {
		return path, fmt.Errorf("encode %s: %w", img.Label, err)
	}

	if err := ctx.Err(); err != nil {
		return path, err
	}
	if flag != nil && flag.Cancelled() {
		return path, errAborted
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	return path, nil
}

func (p *Pool) tolerance() float64 {
	if p.opts.Tolerance <= 0 {
		return DefaultTolerance
	}
	return p.opts.Tolerance
}
