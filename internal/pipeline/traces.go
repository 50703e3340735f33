package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/dsp"
	"github.com/seismocat/seismic-etl/internal/observability"
	"github.com/seismocat/seismic-etl/internal/slist"
)

// WaveformFetcher downloads every component of one station over a
// request window.
type WaveformFetcher interface {
	FetchWaveform(ctx context.Context, station, start, final string) ([]domain.Waveform, error)
}

// TraceStore lists registers awaiting raw traces and persists the
// sliced results.
type TraceStore interface {
	PendingRegisters(ctx context.Context) ([]domain.PendingRegister, error)
	InsertTraces(ctx context.Context, rows []domain.TraceRow) error
}

// TracesConfig holds the raw-trace stage settings.
type TracesConfig struct {
	DownloadWindow time.Duration
	SliceWidth     time.Duration
	PhaseGuard     time.Duration
	RawDir         string
	Workers        int
}

// TracesStage downloads a generous window around each register's P
// pick, draws one randomized slice window per register, and stores one
// sliced trace file per component.
type TracesStage struct {
	store     TraceStore
	waveforms WaveformFetcher
	failures  *FailureLog
	cfg       TracesConfig
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTracesStage creates the raw-trace stage. The rand source drives
// the slice-window draw; tests pass a seeded source.
func NewTracesStage(store TraceStore, waveforms WaveformFetcher, failures *FailureLog,
	cfg TracesConfig, rng *rand.Rand, logger *slog.Logger, metrics *observability.Metrics) *TracesStage {
	return &TracesStage{
		store:     store,
		waveforms: waveforms,
		failures:  failures,
		cfg:       cfg,
		rng:       rng,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *TracesStage) Name() string { return "traces" }

// Run fans pending registers out over the worker pool. Download
// failures are appended to the failure log and skipped; store and
// filesystem errors stop the stage.
func (s *TracesStage) Run(ctx context.Context) error {
	pending, err := s.store.PendingRegisters(ctx)
	if err != nil {
		return err
	}

	failed, err := s.failures.Pairs()
	if err != nil {
		return err
	}
	queue := make([]domain.PendingRegister, 0, len(pending))
	for _, reg := range pending {
		if failed[[2]string{reg.Code, reg.Station}] {
			continue
		}
		queue = append(queue, reg)
	}
	s.logger.Info("registers pending traces",
		"count", len(queue), "previously_failed", len(pending)-len(queue))

	if err := os.MkdirAll(s.cfg.RawDir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}

	return forEach(ctx, s.cfg.Workers, queue, s.process)
}

func (s *TracesStage) process(ctx context.Context, reg domain.PendingRegister) error {
	p, err := domain.CombinePick(reg.Date, reg.PTime)
	if err != nil {
		s.skip(reg, err)
		return nil
	}
	sPick, err := domain.CombinePick(reg.Date, reg.STime)
	if err != nil {
		s.skip(reg, err)
		return nil
	}

	window := domain.DeriveDownloadWindow(p, s.cfg.DownloadWindow)
	start, final := window.RequestBounds()
	waveforms, err := s.waveforms.FetchWaveform(ctx, reg.Station, start, final)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if logErr := s.failures.Append(reg.Code, reg.Station); logErr != nil {
			return logErr
		}
		s.skip(reg, err)
		return nil
	}

	slice, err := s.drawSlice(p, sPick)
	if err != nil {
		// Misconfigured window constants, not bad data. Loud, but the
		// batch continues: other events may have narrower P-S gaps.
		s.logger.Error("slice window draw failed",
			"code", reg.Code, "station", reg.Station, "error", err)
		s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
		return nil
	}

	rows := make([]domain.TraceRow, 0, len(waveforms))
	for _, wf := range waveforms {
		cut, err := dsp.Slice(wf, slice.StartEngine, slice.FinalEngine)
		if err != nil {
			s.logger.Warn("component skipped",
				"code", reg.Code, "source", wf.SourceID(), "error", err)
			continue
		}
		name := fmt.Sprintf("%s_%s_%s.slist", reg.Code, reg.Station, cut.Component())
		if err := writeSlist(filepath.Join(s.cfg.RawDir, name), cut); err != nil {
			return err
		}
		rows = append(rows, domain.TraceRow{
			Code:      reg.Code,
			Station:   reg.Station,
			Component: cut.Component(),
			Start:     slice.StartStore,
			Final:     slice.FinalStore,
			Type:      domain.TraceRaw,
			Location:  cut.Location,
		})
	}
	if len(rows) == 0 {
		s.skip(reg, fmt.Errorf("no usable components"))
		return nil
	}

	if err := s.store.InsertTraces(ctx, rows); err != nil {
		return fmt.Errorf("store traces %s %s: %w", reg.Code, reg.Station, err)
	}
	s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Inc()
	s.logger.Info("traces sliced",
		"code", reg.Code, "station", reg.Station, "components", len(rows))
	return nil
}

// drawSlice serializes draws so concurrent workers share one rand
// stream.
func (s *TracesStage) drawSlice(p, sPick time.Time) (domain.SliceWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Slice(p, sPick, domain.SliceConfig{
		Width: s.cfg.SliceWidth,
		Guard: s.cfg.PhaseGuard,
	}, s.rng)
}

func (s *TracesStage) skip(reg domain.PendingRegister, err error) {
	s.logger.Warn("register skipped",
		"code", reg.Code, "station", reg.Station, "error", err)
	s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
}

func writeSlist(path string, wf domain.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	if err := slist.Encode(f, wf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close trace file: %w", err)
	}
	return nil
}
