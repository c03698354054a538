package pipeline_test

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"cardrender/internal/catalog"
	"cardrender/internal/config"
	"cardrender/internal/pipeline"
	"cardrender/internal/scene"
	"cardrender/internal/testsupport"
)

func newCatalog(t *testing.T, ids ...string) *catalog.Catalog {
	t.Helper()
	records := make([]catalog.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, catalog.NewRecord(id, map[string]any{
			"id":   id,
			"name": "Card " + id,
		}))
	}
	cat, err := catalog.New([]string{"id", "name"}, records)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

// scenarioHost gives card A one meaningful "Icon" plus an empty "Art" sprite
// and card B nothing meaningful.
func scenarioHost() *testsupport.FakeHost {
	host := testsupport.NewFakeHost()
	host.Cards["A"] = func() *testsupport.FakeCard {
		return &testsupport.FakeCard{BodyElements: []scene.Element{
			testsupport.NewSprite("Icon", false),
			testsupport.NewSprite("Art", true),
		}}
	}
	host.Cards["B"] = func() *testsupport.FakeCard {
		return &testsupport.FakeCard{BodyElements: []scene.Element{
			testsupport.NewText("Title", ""),
		}}
	}
	return host
}

func newOrchestrator(t *testing.T, host scene.Host, cat *catalog.Catalog, opts ...testsupport.ConfigOption) (*pipeline.Orchestrator, *config.Config) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithCaptureGeometry(8, 6)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	rc, err := pipeline.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	o, err := pipeline.New(pipeline.Options{Host: host, Catalog: cat, Config: rc})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, cfg
}

func pngSize(t *testing.T, path string) (int, int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func assertFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	got := testsupport.ListFiles(t, dir)
	if len(got) != len(want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("files = %v, want %v", got, want)
		}
	}
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, stat err=%v", filepath.Base(path), err)
	}
}
