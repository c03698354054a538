package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cardrender/internal/capture"
	"cardrender/internal/catalog"
	"cardrender/internal/decompose"
	"cardrender/internal/logging"
	"cardrender/internal/manifest"
	"cardrender/internal/notifications"
	"cardrender/internal/postprocess"
	"cardrender/internal/scene"
)

// LockFileName is the run lock created inside the render directory.
const LockFileName = ".cardrender.lock"

var (
	ErrNotIdle      = errors.New("pipeline: batch already active")
	ErrNotRunning   = errors.New("pipeline: no batch running")
	ErrEmptyCatalog = errors.New("pipeline: catalog is empty")
	ErrLocked       = errors.New("pipeline: render directory locked by another run")
	ErrDrainTimeout = errors.New("pipeline: timed out waiting for image writes")

	errStopped = errors.New("pipeline: batch stopped")
)

// Options wires an Orchestrator to its collaborators.
type Options struct {
	Host    scene.Host
	Catalog *catalog.Catalog
	Config  RenderConfig
	// Columns defaults to every catalog field in catalog order.
	Columns  []manifest.Column
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Result describes how the last batch ended.
type Result struct {
	RunID    string
	State    State
	Progress ProgressSnapshot
	Duration time.Duration
	Err      error
}

// Snapshot is a view of the orchestrator for status displays.
type Snapshot struct {
	State    State
	RunID    string
	First    int
	Last     int
	Progress ProgressSnapshot
	// Previous is the outcome of the most recent finished batch, if any.
	Previous *Result
}

// Orchestrator runs batches over a catalog. Start, Tick, Sample and
// Reconfigure must be called from the render goroutine. Stop and Snapshot
// are safe from any goroutine.
type Orchestrator struct {
	host     scene.Host
	catalog  *catalog.Catalog
	columns  []manifest.Column
	notifier notifications.Service
	logger   *slog.Logger

	mu       sync.Mutex
	cfg      RenderConfig
	capturer *capture.Capturer
	pool     *postprocess.Pool
	builder  *manifest.Builder

	state  atomic.Int32
	active atomic.Pointer[run]
	last   atomic.Pointer[Result]
}

type run struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	progress *Progress
	first    int
	last     int
	next     int
	started  time.Time
	lock     *flock.Flock
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
}

// abort flags the run as stopped and cancels queued image work.
func (r *run) abort() {
	r.progress.cancel()
	r.cancel()
}

func (r *run) stopped() bool {
	return r.progress.Cancelled()
}

// New validates opts and builds an idle orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Host == nil {
		return nil, errors.New("pipeline: scene host required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("pipeline: catalog required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	columns := opts.Columns
	if columns == nil {
		columns = manifest.Columns(opts.Catalog.Fields())
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	o := &Orchestrator{
		host:     opts.Host,
		catalog:  opts.Catalog,
		columns:  columns,
		notifier: notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		capturer: capture.New(opts.Host, opts.Config.Capture),
	}
	if err := o.apply(opts.Config); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) apply(cfg RenderConfig) error {
	pool, err := postprocess.NewPool(postprocess.Options{
		Dir:       cfg.RenderDir,
		Format:    cfg.Format,
		Crop:      cfg.Crop,
		Tolerance: cfg.Tolerance,
		Workers:   cfg.Workers,
		Logger:    o.logger,
	})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.pool = pool
	o.builder = manifest.NewBuilder(cfg.ManifestPath, o.columns)
	return nil
}

// Config returns the active render configuration.
func (o *Orchestrator) Config() RenderConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Reconfigure replaces the render configuration between batches and
// rebuilds the capture target for the new geometry.
func (o *Orchestrator) Reconfigure(cfg RenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() != StateIdle {
		return ErrNotIdle
	}
	if err := o.capturer.Reset(cfg.Capture); err != nil {
		return err
	}
	return o.apply(cfg)
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Snapshot reports state and counters without blocking on the render goroutine.
func (o *Orchestrator) Snapshot() Snapshot {
	snap := Snapshot{State: o.State(), Previous: o.last.Load()}
	if r := o.active.Load(); r != nil {
		snap.RunID = r.id
		snap.First = r.first
		snap.Last = r.last
		snap.Progress = r.progress.Snapshot()
	}
	return snap
}

// CardCount is the number of cards in the catalog.
func (o *Orchestrator) CardCount() int { return o.catalog.Len() }

// Start opens a batch over the inclusive range [first, last], normalized
// against the catalog.
func (o *Orchestrator) Start(ctx context.Context, first, last int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() != StateIdle {
		return ErrNotIdle
	}
	count := o.catalog.Len()
	if count == 0 {
		return ErrEmptyCatalog
	}
	first, last = NormalizeRange(first, last, count)

	if err := os.MkdirAll(o.cfg.RenderDir, 0o755); err != nil {
		return fmt.Errorf("create render directory: %w", err)
	}
	lock := flock.New(filepath.Join(o.cfg.RenderDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire render lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	if err := o.host.Prepare(); err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("prepare scene: %w", err)
	}
	if err := o.capturer.Open(); err != nil {
		_ = o.host.Restore()
		_ = lock.Unlock()
		return fmt.Errorf("open capture target: %w", err)
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(logging.WithRunID(ctx, id))
	r := &run{
		id:       id,
		ctx:      runCtx,
		cancel:   cancel,
		progress: newProgress(last - first + 1),
		first:    first,
		last:     last,
		next:     first,
		started:  time.Now(),
		lock:     lock,
		logger:   o.logger.With(logging.String(logging.FieldRunID, id)),
		sampler:  logging.NewProgressSampler(10),
	}
	o.builder.Reset()
	o.active.Store(r)
	o.state.Store(int32(StateRunning))

	r.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("first", first),
		logging.Int("last", last),
		logging.Int("cards", last-first+1),
		logging.String("render_dir", o.cfg.RenderDir),
		logging.String("format", string(o.cfg.Format)),
		logging.Bool("crop", o.cfg.Crop),
		logging.Bool("only_full_cards", o.cfg.OnlyFullCards),
	)
	_ = o.notifier.NotifyBatchStarted(runCtx, id, last-first+1)
	return nil
}

// Tick renders the next card. Once the range is exhausted it finalizes the
// batch and reports done. A stopped batch reports done with no error.
func (o *Orchestrator) Tick(ctx context.Context) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.active.Load()
	if r == nil || o.State() != StateRunning {
		return true, ErrNotRunning
	}
	if r.stopped() {
		o.teardown(r, StateCancelled, nil)
		return true, nil
	}
	err := ctx.Err()
	if err == nil {
		err = r.ctx.Err()
	}
	if err != nil {
		r.abort()
		o.teardown(r, StateCancelled, nil)
		return true, err
	}

	if r.next > r.last {
		return true, o.finish(r)
	}

	record := o.catalog.At(r.next)
	err = o.renderCard(r, record)
	switch {
	case errors.Is(err, errStopped):
		o.teardown(r, StateCancelled, nil)
		return true, nil
	case err != nil:
		o.fail(r, err)
		return true, err
	}
	r.next++
	r.progress.cardDone()
	o.logProgress(r, record.ID)
	return false, nil
}

// Run ticks until the batch ends. Cancelling ctx stops the batch.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.State() != StateRunning {
		return ErrNotRunning
	}
	for {
		done, err := o.Tick(ctx)
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		if done || err != nil {
			return err
		}
	}
}

// Stop cancels the running batch. It does not wait for in-flight image
// writes; it waits only for the current card to release the render goroutine.
func (o *Orchestrator) Stop() error {
	r := o.active.Load()
	if r == nil || o.State() != StateRunning {
		return ErrNotRunning
	}
	r.abort()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active.Load() == r {
		o.teardown(r, StateCancelled, nil)
	}
	return nil
}

func (o *Orchestrator) renderCard(r *run, record catalog.Record) error {
	logger := r.logger.With(logging.String(logging.FieldCardID, record.ID))
	card, err := o.host.LoadCard(r.ctx, record)
	if err != nil {
		if r.stopped() {
			return errStopped
		}
		return fmt.Errorf("load card %s: %w", record.ID, err)
	}

	plan := decompose.Decompose(card, record.ID, o.cfg.OnlyFullCards)
	defer plan.Restore()
	if len(plan.Skipped) > 0 {
		logger.Debug("empty elements skipped", logging.Any("skipped", plan.Skipped))
	}

	for _, step := range plan.Steps {
		if r.stopped() {
			return errStopped
		}
		plan.Apply(step)
		img, err := o.capturer.Capture(step.Label)
		if err != nil {
			return fmt.Errorf("capture %s: %w", step.Label, err)
		}
		o.pool.Submit(r.ctx, r.progress, img)
		logger.Debug("layer dispatched", logging.String(logging.FieldLayer, step.Layer))
	}

	o.builder.Add(record, plan.Layers)
	return nil
}

func (o *Orchestrator) logProgress(r *run, cardID string) {
	snap := r.progress.Snapshot()
	percent := snap.Percent()
	if !r.sampler.ShouldLog(percent, "render") {
		return
	}
	r.logger.Info("render progress",
		logging.String(logging.FieldEventType, "render_progress"),
		logging.String(logging.FieldCardID, cardID),
		logging.Int64("cards_processed", snap.CardsProcessed),
		logging.Int64("cards_to_process", snap.CardsToProcess),
		logging.Int64("images_dispatched", snap.ImagesDispatched),
		logging.Int64("images_completed", snap.ImagesCompleted),
		logging.Float64("percent", percent),
	)
}

// finish flushes the manifest, drains pending writes and completes the run.
// The manifest is written only here, so a stopped batch leaves none.
func (o *Orchestrator) finish(r *run) error {
	if err := o.builder.Flush(); err != nil {
		o.fail(r, err)
		return err
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), o.cfg.DrainTimeout)
	defer cancel()
	if err := r.progress.wait(waitCtx); err != nil {
		if errors.Is(err, errStopped) || r.stopped() {
			o.teardown(r, StateCancelled, nil)
			return nil
		}
		err = fmt.Errorf("%w after %s (%d pending)", ErrDrainTimeout, o.cfg.DrainTimeout, r.progress.Snapshot().ImagesPending)
		o.fail(r, err)
		return err
	}

	snap := r.progress.Snapshot()
	duration := time.Since(r.started)
	r.logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_completed"),
		logging.Int64("cards", snap.CardsProcessed),
		logging.Int64("images", snap.ImagesCompleted),
		logging.Int64("images_failed", snap.ImagesFailed),
		logging.Duration("duration", duration),
		logging.String("manifest", o.cfg.ManifestPath),
	)
	_ = o.notifier.NotifyBatchCompleted(context.WithoutCancel(r.ctx), notifications.BatchSummary{
		RunID:        r.id,
		Cards:        int(snap.CardsProcessed),
		Images:       int(snap.ImagesCompleted),
		FailedImages: int(snap.ImagesFailed),
		Duration:     duration,
		OutputDir:    o.cfg.RenderDir,
		Manifest:     o.cfg.ManifestPath,
	})
	o.teardown(r, StateCompleted, nil)
	return nil
}

func (o *Orchestrator) fail(r *run, err error) {
	r.abort()
	logging.ErrorWithContext(r.logger, "batch failed", "batch_failed",
		logging.Error(err),
		logging.Int("card_index", r.next),
		logging.String(logging.FieldErrorHint, "check the scene host and render directory, then restart the batch"),
	)
	_ = o.notifier.NotifyBatchFailed(context.WithoutCancel(r.ctx), r.id, err)
	o.teardown(r, StateFailed, err)
}

// teardown releases run resources, records the outcome and returns to Idle.
// Callers hold o.mu.
func (o *Orchestrator) teardown(r *run, final State, err error) {
	if o.active.Load() != r {
		return
	}
	o.state.Store(int32(final))
	snap := r.progress.Snapshot()
	if final == StateCancelled {
		r.logger.Info("batch stopped",
			logging.String(logging.FieldEventType, "batch_stopped"),
			logging.Int64("cards_processed", snap.CardsProcessed),
			logging.Int64("images_pending", snap.ImagesPending),
		)
	}
	o.builder.Reset()
	o.capturer.Close()
	if restoreErr := o.host.Restore(); restoreErr != nil {
		logging.WarnWithContext(r.logger, "scene restore failed", "scene_restore_failed",
			logging.Error(restoreErr),
			logging.String(logging.FieldImpact, "unrelated scene content may stay hidden"),
		)
	}
	if unlockErr := r.lock.Unlock(); unlockErr != nil {
		logging.WarnWithContext(r.logger, "failed to release render lock", "lock_release_failed",
			logging.Error(unlockErr),
			logging.String(logging.FieldErrorHint, "remove "+LockFileName+" from the render directory if no batch is running"),
		)
	}
	r.cancel()

	o.last.Store(&Result{
		RunID:    r.id,
		State:    final,
		Progress: snap,
		Duration: time.Since(r.started),
		Err:      err,
	})
	o.active.Store(nil)
	o.state.Store(int32(StateIdle))
}

// Sample renders the card at index into a single "Sample" image and writes
// it synchronously. Only legal while idle.
func (o *Orchestrator) Sample(ctx context.Context, index int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() != StateIdle {
		return "", ErrNotIdle
	}
	count := o.catalog.Len()
	if count == 0 {
		return "", ErrEmptyCatalog
	}
	index, _ = NormalizeRange(index, index, count)
	record := o.catalog.At(index)

	if err := o.host.Prepare(); err != nil {
		return "", fmt.Errorf("prepare scene: %w", err)
	}
	defer func() { _ = o.host.Restore() }()
	if _, err := o.host.LoadCard(ctx, record); err != nil {
		return "", fmt.Errorf("load card %s: %w", record.ID, err)
	}
	if err := o.capturer.Open(); err != nil {
		return "", fmt.Errorf("open capture target: %w", err)
	}
	defer o.capturer.Close()

	img, err := o.capturer.Sample()
	if err != nil {
		return "", fmt.Errorf("capture sample: %w", err)
	}
	path, err := o.pool.Process(ctx, img)
	if err != nil {
		return path, err
	}
	o.logger.Info("sample written",
		logging.String(logging.FieldCardID, record.ID),
		logging.String("output_path", path),
	)
	return path, nil
}
