package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cardrender/internal/catalog"
	"cardrender/internal/logging"
	"cardrender/internal/notifications"
	"cardrender/internal/testsupport"
)

func newBatch(t *testing.T, host *testsupport.FakeHost, cards int, tune func(*RenderConfig), notifier notifications.Service) *Orchestrator {
	t.Helper()
	records := make([]catalog.Record, 0, cards)
	for i := range cards {
		id := fmt.Sprintf("C%02d", i)
		records = append(records, catalog.NewRecord(id, map[string]any{"id": id}))
	}
	cat, err := catalog.New([]string{"id"}, records)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	rc, err := FromConfig(testsupport.NewConfig(t, testsupport.WithCaptureGeometry(4, 4)))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if tune != nil {
		tune(&rc)
	}
	o, err := New(Options{Host: host, Catalog: cat, Config: rc, Notifier: notifier})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, what string, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

// settledExcept waits until no more than extra images remain pending, so
// late writes do not race the temp dir cleanup.
func settledExcept(t *testing.T, r *run, extra int64) {
	t.Helper()
	waitUntil(t, "image workers", func() bool { return r.progress.Snapshot().ImagesPending <= extra })
}

func TestStopFromAnotherGoroutineDuringRun(t *testing.T) {
	host := testsupport.NewFakeHost()
	reached := make(chan struct{})
	resume := make(chan struct{})
	var renders atomic.Int32
	host.BeforeRender = func() {
		if renders.Add(1) == 3 {
			close(reached)
			<-resume
		}
	}
	o := newBatch(t, host, 20, nil, nil)
	ctx := context.Background()
	if err := o.Start(ctx, 0, 19); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r := o.active.Load()

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(ctx) }()
	select {
	case <-reached:
	case <-time.After(5 * time.Second):
		t.Fatal("render loop never reached the third card")
	}

	stopErr := make(chan error, 1)
	go func() { stopErr <- o.Stop() }()
	waitUntil(t, "stop flag", r.stopped)
	close(resume)

	if err := receive(t, "Stop", stopErr); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := receive(t, "Run", runErr); err != nil {
		t.Fatalf("Run: %v", err)
	}
	settledExcept(t, r, 0)

	snap := o.Snapshot()
	if snap.State != StateIdle {
		t.Fatalf("state after Stop = %s", snap.State)
	}
	if snap.Progress != (ProgressSnapshot{}) {
		t.Fatalf("counters must reset, got %+v", snap.Progress)
	}
	if snap.Previous == nil || snap.Previous.State != StateCancelled {
		t.Fatalf("expected cancelled result, got %+v", snap.Previous)
	}
	if got := snap.Previous.Progress.CardsProcessed; got >= 20 {
		t.Fatalf("batch ran to the end: %d cards processed", got)
	}
	prepared, restored, live := host.Counts()
	if live != 0 || prepared != 1 || restored != 1 {
		t.Fatalf("prepared=%d restored=%d live=%d", prepared, restored, live)
	}
	if _, err := os.Stat(o.cfg.ManifestPath); !os.IsNotExist(err) {
		t.Fatalf("stopped batch must leave no manifest, stat err=%v", err)
	}
}

func TestStopWhileDrainingCancelsBatch(t *testing.T) {
	host := testsupport.NewFakeHost()
	o := newBatch(t, host, 1, nil, nil)
	ctx := context.Background()
	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r := o.active.Load()
	if done, err := o.Tick(ctx); done || err != nil {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}
	// A write that never settles keeps the final tick draining.
	r.progress.ImageDispatched()

	tickErr := make(chan error, 1)
	go func() {
		done, err := o.Tick(ctx)
		if err == nil && !done {
			err = errors.New("final tick reported not done")
		}
		tickErr <- err
	}()
	waitUntil(t, "manifest flush", func() bool {
		_, err := os.Stat(o.cfg.ManifestPath)
		return err == nil
	})
	if got := o.State(); got != StateRunning {
		t.Fatalf("state while draining = %s", got)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := receive(t, "final Tick", tickErr); err != nil {
		t.Fatalf("final Tick: %v", err)
	}
	settledExcept(t, r, 1)

	snap := o.Snapshot()
	if snap.State != StateIdle {
		t.Fatalf("state after Stop = %s", snap.State)
	}
	if snap.Previous == nil || snap.Previous.State != StateCancelled || snap.Previous.Err != nil {
		t.Fatalf("expected cancelled result, got %+v", snap.Previous)
	}
	if _, err := os.Stat(o.cfg.ManifestPath); err != nil {
		t.Fatalf("manifest written before the drain should remain: %v", err)
	}
	if _, _, live := host.Counts(); live != 0 {
		t.Fatalf("capture target leaked: %d live", live)
	}
}

func TestDrainTimeoutFailsBatch(t *testing.T) {
	host := testsupport.NewFakeHost()
	o := newBatch(t, host, 1, func(rc *RenderConfig) { rc.DrainTimeout = 30 * time.Millisecond }, nil)
	ctx := context.Background()
	if err := o.Start(ctx, 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r := o.active.Load()
	if done, err := o.Tick(ctx); done || err != nil {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}
	r.progress.ImageDispatched()

	done, err := o.Tick(ctx)
	if !done || !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("final Tick: done=%v err=%v", done, err)
	}
	settledExcept(t, r, 1)

	snap := o.Snapshot()
	if snap.State != StateIdle {
		t.Fatalf("state after drain timeout = %s", snap.State)
	}
	if snap.Previous == nil || snap.Previous.State != StateFailed || !errors.Is(snap.Previous.Err, ErrDrainTimeout) {
		t.Fatalf("expected failed result, got %+v", snap.Previous)
	}
	if _, _, live := host.Counts(); live != 0 {
		t.Fatalf("capture target leaked: %d live", live)
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed context.Context
	summary   notifications.BatchSummary
}

func (n *recordingNotifier) NotifyBatchStarted(context.Context, string, int) error { return nil }

func (n *recordingNotifier) NotifyBatchCompleted(ctx context.Context, summary notifications.BatchSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = ctx
	n.summary = summary
	return nil
}

func (n *recordingNotifier) NotifyBatchFailed(context.Context, string, error) error { return nil }
func (n *recordingNotifier) TestNotification(context.Context) error                  { return nil }

func TestCompletedNotificationOutlivesRun(t *testing.T) {
	notifier := &recordingNotifier{}
	o := newBatch(t, testsupport.NewFakeHost(), 2, nil, notifier)
	ctx := context.Background()
	if err := o.Start(ctx, 0, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.completed == nil {
		t.Fatal("completion was not notified")
	}
	// Teardown cancels the run context; delivery may still be in flight.
	if err := notifier.completed.Err(); err != nil {
		t.Fatalf("completion context cancelled after teardown: %v", err)
	}
	prev := o.Snapshot().Previous
	if id, ok := logging.RunIDFromContext(notifier.completed); !ok || id != prev.RunID {
		t.Fatalf("run id %q (ok=%v), want %q", id, ok, prev.RunID)
	}
	if notifier.summary.Cards != 2 || notifier.summary.Images != 2 {
		t.Fatalf("unexpected summary %+v", notifier.summary)
	}
}
