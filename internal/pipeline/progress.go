package pipeline

import (
	"context"
	"sync/atomic"
)

// Progress is the per-run counters shared by the render goroutine and image
// workers. Workers of a stopped run keep their own Progress, so they never
// touch the counters of a later run.
type Progress struct {
	cardsProcessed atomic.Int64
	cardsToProcess atomic.Int64

	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	aborted    atomic.Int64
	pending    atomic.Int64

	cancelled atomic.Bool
	settled   chan struct{}
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	CardsProcessed   int64
	CardsToProcess   int64
	ImagesDispatched int64
	ImagesCompleted  int64
	ImagesFailed     int64
	ImagesAborted    int64
	ImagesPending    int64
	Cancelled        bool
}

// Percent is card progress in [0, 100].
func (s ProgressSnapshot) Percent() float64 {
	if s.CardsToProcess <= 0 {
		return 0
	}
	return float64(s.CardsProcessed) / float64(s.CardsToProcess) * 100
}

func newProgress(cards int) *Progress {
	p := &Progress{settled: make(chan struct{}, 1)}
	p.cardsToProcess.Store(int64(cards))
	return p
}

// Cancelled reports whether the run was stopped.
func (p *Progress) Cancelled() bool { return p.cancelled.Load() }

// ImageDispatched counts an image handed to the worker pool as pending.
// It and the three methods below implement postprocess.Tracker.
func (p *Progress) ImageDispatched() {
	p.dispatched.Add(1)
	p.pending.Add(1)
}

// ImageCompleted settles a pending image that was written.
func (p *Progress) ImageCompleted() { p.completed.Add(1); p.settle() }

// ImageFailed settles a pending image whose encode or write failed.
func (p *Progress) ImageFailed() { p.failed.Add(1); p.settle() }

// ImageAborted settles a pending image dropped because the run was stopped.
func (p *Progress) ImageAborted() { p.aborted.Add(1); p.settle() }

func (p *Progress) settle() {
	p.pending.Add(-1)
	select {
	case p.settled <- struct{}{}:
	default:
	}
}

func (p *Progress) cardDone() { p.cardsProcessed.Add(1) }

func (p *Progress) cancel() {
	p.cancelled.Store(true)
	select {
	case p.settled <- struct{}{}:
	default:
	}
}

// wait blocks until no image is pending, the run is cancelled, or ctx ends.
func (p *Progress) wait(ctx context.Context) error {
	for p.pending.Load() > 0 {
		if p.Cancelled() {
			return errStopped
		}
		select {
		case <-p.settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Snapshot copies the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	return ProgressSnapshot{
		CardsProcessed:   p.cardsProcessed.Load(),
		CardsToProcess:   p.cardsToProcess.Load(),
		ImagesDispatched: p.dispatched.Load(),
		ImagesCompleted:  p.completed.Load(),
		ImagesFailed:     p.failed.Load(),
		ImagesAborted:    p.aborted.Load(),
		ImagesPending:    p.pending.Load(),
		Cancelled:        p.cancelled.Load(),
	}
}
