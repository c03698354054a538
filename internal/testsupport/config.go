package testsupport

import (
	"path/filepath"
	"testing"

	"cardrender/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RenderDir = filepath.Join(base, "RenderResults")
	cfgVal.Paths.ManifestPath = filepath.Join(base, "RenderSummary.csv")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.Path = filepath.Join(base, "cards.yaml")
	cfgVal.Render.DrainTimeout = 5

	builder := &configBuilder{t: t, cfg: &cfgVal}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCrop enables auto-trimming of exported images.
func WithCrop() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Crop = true
	}
}

// WithOnlyFullCards restricts exports to the Full step.
func WithOnlyFullCards() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.OnlyFullCards = true
	}
}

// WithCaptureGeometry shrinks capture and export to small sizes so tests
// stay fast. The source rectangle covers the whole capture.
func WithCaptureGeometry(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.CaptureWidth = width
		b.cfg.Render.CaptureHeight = height
		b.cfg.Render.ExportWidth = width
		b.cfg.Render.ExportHeight = height
		b.cfg.Render.SourceX = 0
		b.cfg.Render.SourceY = 0
		b.cfg.Render.SourceWidth = width
		b.cfg.Render.SourceHeight = height
	}
}

// WithCatalogYAML writes content as the test catalog.
func WithCatalogYAML(content string) ConfigOption {
	return func(b *configBuilder) {
		WriteFile(b.t, b.cfg.Catalog.Path, content)
	}
}
