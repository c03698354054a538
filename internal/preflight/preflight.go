package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"cardrender/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckOutputDirectory("Render directory", cfg.Paths.RenderDir),
		CheckOutputDirectory("Manifest directory", filepath.Dir(cfg.Paths.ManifestPath)),
		CheckCatalog(ctx, cfg.Catalog),
		CheckLayout(cfg.Scene.Layout),
	}
	if strings.TrimSpace(cfg.Scene.AssetDir) != "" {
		results = append(results, CheckReadableDirectory("Asset directory", cfg.Scene.AssetDir))
	}
	return results
}

// Failed returns the failing results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
