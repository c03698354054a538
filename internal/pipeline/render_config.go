package pipeline

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"cardrender/internal/capture"
	"cardrender/internal/config"
	"cardrender/internal/postprocess"
)

// RenderConfig is the immutable per-run configuration.
type RenderConfig struct {
	Capture capture.Settings

	// Start and End bound the inclusive card range in either order.
	Start int
	End   int

	Crop          bool
	OnlyFullCards bool

	Format    postprocess.Format
	Workers   int
	Tolerance float64

	DrainTimeout time.Duration
	RenderDir    string
	ManifestPath string
}

// FromConfig builds a RenderConfig from loaded configuration.
func FromConfig(cfg *config.Config) (RenderConfig, error) {
	if cfg == nil {
		return RenderConfig{}, errors.New("pipeline: config required")
	}
	r := cfg.Render
	format, err := postprocess.ParseFormat(r.ImageFormat)
	if err != nil {
		return RenderConfig{}, err
	}
	rc := RenderConfig{
		Capture: capture.Settings{
			CaptureWidth:  r.CaptureWidth,
			CaptureHeight: r.CaptureHeight,
			ExportWidth:   r.ExportWidth,
			ExportHeight:  r.ExportHeight,
			Source:        image.Rect(r.SourceX, r.SourceY, r.SourceX+r.SourceWidth, r.SourceY+r.SourceHeight),
			Dest:          image.Pt(r.DestX, r.DestY),
		},
		Start:         r.RangeStart,
		End:           r.RangeEnd,
		Crop:          r.Crop,
		OnlyFullCards: r.OnlyFullCards,
		Format:        format,
		Workers:       r.Workers,
		Tolerance:     r.CropTolerance,
		DrainTimeout:  cfg.DrainTimeout(),
		RenderDir:     cfg.Paths.RenderDir,
		ManifestPath:  cfg.Paths.ManifestPath,
	}
	return rc, rc.Validate()
}

// Validate checks geometry and output locations.
func (rc RenderConfig) Validate() error {
	if err := rc.Capture.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rc.RenderDir) == "" {
		return errors.New("render directory required")
	}
	if strings.TrimSpace(rc.ManifestPath) == "" {
		return errors.New("manifest path required")
	}
	if rc.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", rc.Workers)
	}
	if rc.DrainTimeout <= 0 {
		return fmt.Errorf("drain timeout must be positive, got %s", rc.DrainTimeout)
	}
	return nil
}

// NormalizeRange orders start and end and clamps both to [0, count-1].
// count must be positive.
func NormalizeRange(start, end, count int) (int, int) {
	if start > end {
		start, end = end, start
	}
	clamp := func(v int) int {
		return min(max(v, 0), count-1)
	}
	return clamp(start), clamp(end)
}
