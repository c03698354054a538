package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"cardrender/internal/manifest"
	"cardrender/internal/pipeline"
	"cardrender/internal/postprocess"
	"cardrender/internal/testsupport"
)

func TestBatchScenarioTwoCards(t *testing.T) {
	host := scenarioHost()
	o, cfg := newOrchestrator(t, host, newCatalog(t, "A", "B"))
	ctx := context.Background()

	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := o.State(); got != pipeline.StateRunning {
		t.Fatalf("state after Start = %s", got)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertFiles(t, cfg.Paths.RenderDir, "A_Full.png", "A_Icon.png", "B_Full.png")

	table, err := manifest.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if strings.Join(table.Header, ",") != "id,name,sections" {
		t.Fatalf("unexpected header %v", table.Header)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if got := strings.Join(table.Rows[0], ","); got != "A,Card A,Icon" {
		t.Fatalf("row A = %s", got)
	}
	if got := strings.Join(table.Rows[1], ","); got != "B,Card B," {
		t.Fatalf("row B = %s", got)
	}

	frames := strings.Join(host.FrameSummary(), " ")
	if frames != "A:Icon,Art A:Icon B:Title" {
		t.Fatalf("unexpected frames %q", frames)
	}

	snap := o.Snapshot()
	if snap.State != pipeline.StateIdle {
		t.Fatalf("state after run = %s", snap.State)
	}
	if snap.Previous == nil || snap.Previous.State != pipeline.StateCompleted {
		t.Fatalf("expected completed result, got %+v", snap.Previous)
	}
	p := snap.Previous.Progress
	if p.CardsProcessed != 2 || p.ImagesDispatched != 3 || p.ImagesCompleted != 3 || p.ImagesPending != 0 {
		t.Fatalf("unexpected progress %+v", p)
	}
	prepared, restored, live := host.Counts()
	if prepared != 1 || restored != 1 || live != 0 {
		t.Fatalf("prepared=%d restored=%d live=%d", prepared, restored, live)
	}
}

func TestOnlyFullCards(t *testing.T) {
	o, cfg := newOrchestrator(t, scenarioHost(), newCatalog(t, "A", "B"), testsupport.WithOnlyFullCards())
	ctx := context.Background()
	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFiles(t, cfg.Paths.RenderDir, "A_Full.png", "B_Full.png")

	table, err := manifest.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	for i := range table.Rows {
		if layers := table.Layers(i); layers != nil {
			t.Fatalf("row %d: expected no layers, got %v", i, layers)
		}
	}
	if p := o.Snapshot().Previous.Progress; p.CardsProcessed != 2 || p.ImagesDispatched != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestStopResetsAndWritesNoManifest(t *testing.T) {
	host := scenarioHost()
	o, cfg := newOrchestrator(t, host, newCatalog(t, "A", "B", "C"))
	ctx := context.Background()
	if err := o.Start(ctx, 0, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done, err := o.Tick(ctx)
	if err != nil || done {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}
	if got := o.Snapshot().Progress.CardsProcessed; got != 1 {
		t.Fatalf("cards processed = %d", got)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	snap := o.Snapshot()
	if snap.State != pipeline.StateIdle {
		t.Fatalf("state after Stop = %s", snap.State)
	}
	if snap.Progress.CardsProcessed != 0 || snap.Progress.ImagesDispatched != 0 {
		t.Fatalf("counters must reset, got %+v", snap.Progress)
	}
	if snap.Previous == nil || snap.Previous.State != pipeline.StateCancelled {
		t.Fatalf("expected cancelled result, got %+v", snap.Previous)
	}
	assertNoFile(t, cfg.Paths.ManifestPath)

	if _, err := o.Tick(ctx); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("Tick after Stop: %v", err)
	}
	if err := o.Stop(); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("second Stop: %v", err)
	}
	if _, _, live := host.Counts(); live != 0 {
		t.Fatalf("capture target leaked: %d live", live)
	}

	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	o, cfg := newOrchestrator(t, scenarioHost(), newCatalog(t, "A", "B"))
	ctx, cancel := context.WithCancel(context.Background())
	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	if err := o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
	if o.State() != pipeline.StateIdle || o.Snapshot().Previous.State != pipeline.StateCancelled {
		t.Fatalf("unexpected final state %+v", o.Snapshot())
	}
	assertNoFile(t, cfg.Paths.ManifestPath)
}

func TestRangeIsNormalized(t *testing.T) {
	ids := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9"}
	o, _ := newOrchestrator(t, testsupport.NewFakeHost(), newCatalog(t, ids...))
	ctx := context.Background()
	if err := o.Start(ctx, 5, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := o.Snapshot()
	if snap.First != 2 || snap.Last != 5 || snap.Progress.CardsToProcess != 4 {
		t.Fatalf("range = [%d,%d] cards=%d", snap.First, snap.Last, snap.Progress.CardsToProcess)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := o.Snapshot().Previous.Progress.CardsProcessed; got != 4 {
		t.Fatalf("cards processed = %d", got)
	}
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		start, end, count int
		wantStart, wantEnd int
	}{
		{5, 2, 10, 2, 5},
		{0, 4, 2, 0, 1},
		{-3, 20, 10, 0, 9},
		{7, 7, 3, 2, 2},
	}
	for _, tt := range tests {
		s, e := pipeline.NormalizeRange(tt.start, tt.end, tt.count)
		if s != tt.wantStart || e != tt.wantEnd {
			t.Fatalf("NormalizeRange(%d,%d,%d) = %d,%d want %d,%d", tt.start, tt.end, tt.count, s, e, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestRenderErrorFailsBatch(t *testing.T) {
	host := scenarioHost()
	host.RenderErrAt = 2
	o, cfg := newOrchestrator(t, host, newCatalog(t, "A", "B"))
	ctx := context.Background()
	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := o.Run(ctx)
	if !errors.Is(err, testsupport.ErrFakeRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !strings.Contains(err.Error(), "A_Icon") {
		t.Fatalf("error must name the failing label: %v", err)
	}
	snap := o.Snapshot()
	if snap.State != pipeline.StateIdle || snap.Previous.State != pipeline.StateFailed {
		t.Fatalf("unexpected state %+v", snap)
	}
	if !errors.Is(snap.Previous.Err, testsupport.ErrFakeRender) {
		t.Fatalf("result must carry the error, got %v", snap.Previous.Err)
	}
	assertNoFile(t, cfg.Paths.ManifestPath)
	_, restored, live := host.Counts()
	if restored != 1 || live != 0 {
		t.Fatalf("restored=%d live=%d", restored, live)
	}
}

func TestLoadErrorFailsBatch(t *testing.T) {
	host := scenarioHost()
	boom := errors.New("card asset missing")
	host.LoadErr = map[string]error{"B": boom}
	o, _ := newOrchestrator(t, host, newCatalog(t, "A", "B"))
	ctx := context.Background()
	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if o.Snapshot().Previous.State != pipeline.StateFailed {
		t.Fatal("expected failed batch")
	}
}

func TestStartPreconditions(t *testing.T) {
	ctx := context.Background()
	empty := newCatalog(t)
	o, _ := newOrchestrator(t, testsupport.NewFakeHost(), empty)
	if err := o.Start(ctx, 0, 1); !errors.Is(err, pipeline.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if err := o.Run(ctx); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("Run without Start: %v", err)
	}

	o, _ = newOrchestrator(t, testsupport.NewFakeHost(), newCatalog(t, "A"))
	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Start(ctx, 0, 0); !errors.Is(err, pipeline.ErrNotIdle) {
		t.Fatalf("expected ErrNotIdle, got %v", err)
	}
	if _, err := o.Sample(ctx, 0); !errors.Is(err, pipeline.ErrNotIdle) {
		t.Fatalf("Sample while running: %v", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStartRefusesLockedRenderDir(t *testing.T) {
	o, cfg := newOrchestrator(t, testsupport.NewFakeHost(), newCatalog(t, "A"))
	other := flock.New(filepath.Join(cfg.Paths.RenderDir, pipeline.LockFileName))
	if err := o.Start(context.Background(), 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock must be released after Stop: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()
	if err := o.Start(context.Background(), 0, 0); !errors.Is(err, pipeline.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestCropOnOpaqueImageKeepsDimensions(t *testing.T) {
	o, cfg := newOrchestrator(t, testsupport.NewFakeHost(), newCatalog(t, "A"), testsupport.WithCrop())
	ctx := context.Background()
	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	w, h := pngSize(t, filepath.Join(cfg.Paths.RenderDir, "A_Full.png"))
	if w != 8 || h != 6 {
		t.Fatalf("cropped opaque image = %dx%d, want 8x6", w, h)
	}
}

func TestSampleWritesSingleImage(t *testing.T) {
	host := scenarioHost()
	o, cfg := newOrchestrator(t, host, newCatalog(t, "A", "B"))
	path, err := o.Sample(context.Background(), 1)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if filepath.Base(path) != "Sample.png" {
		t.Fatalf("unexpected sample path %s", path)
	}
	assertFiles(t, cfg.Paths.RenderDir, "Sample.png")
	if frames := host.Frames(); len(frames) != 1 || frames[0].CardID != "B" {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if _, _, live := host.Counts(); live != 0 {
		t.Fatalf("sample leaked %d targets", live)
	}
}

func TestReconfigureChangesOutput(t *testing.T) {
	o, cfg := newOrchestrator(t, testsupport.NewFakeHost(), newCatalog(t, "A"))
	next := o.Config()
	next.Format = postprocess.FormatJPEG
	next.Capture.ExportWidth = 4
	next.Capture.ExportHeight = 4
	if err := o.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	ctx := context.Background()
	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Reconfigure(next); !errors.Is(err, pipeline.ErrNotIdle) {
		t.Fatalf("Reconfigure while running: %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFiles(t, cfg.Paths.RenderDir, "A_Full.jpg")

	bad := next
	bad.Capture.CaptureWidth = 0
	if err := o.Reconfigure(bad); err == nil {
		t.Fatal("expected invalid geometry to be rejected")
	}
}

func TestFromConfigRejectsBadFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.ImageFormat = "gif"
	if _, err := pipeline.FromConfig(cfg); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
