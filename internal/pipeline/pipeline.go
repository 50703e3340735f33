// Package pipeline orchestrates the ETL stages: catalog load, register
// extraction, raw-trace download, filtering, spectrogram rendering, and
// label derivation. Stages run sequentially; items inside a stage fan
// out over a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/seismocat/seismic-etl/internal/observability"
)

// clock is a package-level time source so tests can freeze time via
// SetClock. Production code uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for stage timing. Pass nil to reset to
// real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Stage is one unit of batch work. Run returns an error only for
// stage-fatal conditions; per-item failures are logged and skipped
// inside the stage.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes stages in order, recording readiness, the active
// stage, and per-stage timing.
type Runner struct {
	stages  []Stage
	logger  *slog.Logger
	metrics *observability.Metrics

	ready  atomic.Bool
	active atomic.Value // string
}

// NewRunner creates a Runner over the given stages.
func NewRunner(logger *slog.Logger, metrics *observability.Metrics, stages ...Stage) *Runner {
	r := &Runner{
		stages:  stages,
		logger:  logger,
		metrics: metrics,
	}
	r.active.Store("")
	return r
}

// CheckReadiness returns nil once the run has started.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("pipeline has not started yet")
	}
	return nil
}

// ActiveStage names the stage currently running, or "" between stages.
func (r *Runner) ActiveStage() string {
	s, _ := r.active.Load().(string)
	return s
}

// Run executes every stage in order. The first stage-fatal error stops
// the run.
func (r *Runner) Run(ctx context.Context) error {
	r.ready.Store(true)
	for _, stage := range r.stages {
		if ctx.Err() != nil {
			r.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if err := r.runStage(ctx, stage); err != nil {
			return err
		}
	}
	r.active.Store("")
	r.logger.Info("pipeline finished", "stages", len(r.stages))
	return nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage) error {
	name := stage.Name()
	r.active.Store(name)
	r.metrics.StageRunning.WithLabelValues(name).Set(1)
	defer r.metrics.StageRunning.WithLabelValues(name).Set(0)

	r.logger.Info("stage started", "stage", name)
	start := clock.Now()

	err := stage.Run(ctx)

	elapsed := clock.Since(start)
	r.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		r.logger.Error("stage failed", "stage", name, "elapsed", elapsed, "error", err)
		return err
	}
	r.logger.Info("stage finished", "stage", name, "elapsed", elapsed)
	return nil
}

// forEach fans items out over a bounded worker pool. fn returning an
// error is stage-fatal: remaining items are cancelled and the first
// error is returned. Per-item skips are handled inside fn.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) error) error {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan T)
	var wg sync.WaitGroup

	var once sync.Once
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				if ctx.Err() != nil {
					return
				}
				if err := fn(ctx, item); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case work <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return context.Cause(ctx)
}
