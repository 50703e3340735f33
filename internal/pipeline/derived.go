package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/dsp"
	"github.com/seismocat/seismic-etl/internal/observability"
	"github.com/seismocat/seismic-etl/internal/slist"
)

// DerivedStore lists traces awaiting a derived counterpart and
// persists the results.
type DerivedStore interface {
	PendingTraces(ctx context.Context, have, want int) ([]domain.TraceRow, error)
	InsertTraces(ctx context.Context, rows []domain.TraceRow) error
}

// FilterConfig holds the filter stage settings.
type FilterConfig struct {
	Kind    string
	FreqMin float64
	FreqMax float64
	RawDir  string
	OutDir  string
	Workers int
}

// FilterStage band-filters and normalizes every raw trace that has no
// filtered counterpart yet.
type FilterStage struct {
	store   DerivedStore
	cfg     FilterConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFilterStage creates the filter stage.
func NewFilterStage(store DerivedStore, cfg FilterConfig, logger *slog.Logger, metrics *observability.Metrics) *FilterStage {
	return &FilterStage{store: store, cfg: cfg, logger: logger, metrics: metrics}
}

func (s *FilterStage) Name() string { return "filter" }

func (s *FilterStage) Run(ctx context.Context) error {
	pending, err := s.store.PendingTraces(ctx, domain.TraceRaw, domain.TraceFiltered)
	if err != nil {
		return err
	}
	s.logger.Info("traces pending filter", "count", len(pending), "kind", s.cfg.Kind)

	if err := os.MkdirAll(s.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create filtered dir: %w", err)
	}

	return forEach(ctx, s.cfg.Workers, pending, s.process)
}

func (s *FilterStage) process(ctx context.Context, row domain.TraceRow) error {
	wf, err := readSlist(filepath.Join(s.cfg.RawDir, traceFileName(row, "slist")))
	if err != nil {
		s.skipTrace(row, err)
		return nil
	}

	filtered, err := dsp.Apply(wf, s.cfg.Kind, s.cfg.FreqMin, s.cfg.FreqMax)
	if err != nil {
		s.skipTrace(row, err)
		return nil
	}

	if err := writeSlist(filepath.Join(s.cfg.OutDir, traceFileName(row, "slist")), filtered); err != nil {
		return err
	}

	out := row
	out.Type = domain.TraceFiltered
	if err := s.store.InsertTraces(ctx, []domain.TraceRow{out}); err != nil {
		return fmt.Errorf("store filtered trace %s: %w", traceFileName(row, "slist"), err)
	}
	s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Inc()
	return nil
}

func (s *FilterStage) skipTrace(row domain.TraceRow, err error) {
	s.logger.Warn("trace skipped", "stage", s.Name(),
		"code", row.Code, "station", row.Station, "component", row.Component, "error", err)
	s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
}

// SpectrogramConfig holds the spectrogram stage settings.
type SpectrogramConfig struct {
	SampleRate float64
	InDir      string
	OutDir     string
	Workers    int
}

// SpectrogramStage resamples every filtered trace to a common rate and
// renders it as a grayscale spectrogram PNG.
type SpectrogramStage struct {
	store   DerivedStore
	cfg     SpectrogramConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSpectrogramStage creates the spectrogram stage.
func NewSpectrogramStage(store DerivedStore, cfg SpectrogramConfig, logger *slog.Logger, metrics *observability.Metrics) *SpectrogramStage {
	return &SpectrogramStage{store: store, cfg: cfg, logger: logger, metrics: metrics}
}

func (s *SpectrogramStage) Name() string { return "spectrogram" }

func (s *SpectrogramStage) Run(ctx context.Context) error {
	pending, err := s.store.PendingTraces(ctx, domain.TraceFiltered, domain.TraceSpectrogram)
	if err != nil {
		return err
	}
	s.logger.Info("traces pending spectrogram", "count", len(pending))

	if err := os.MkdirAll(s.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create spectrogram dir: %w", err)
	}

	return forEach(ctx, s.cfg.Workers, pending, s.process)
}

func (s *SpectrogramStage) process(ctx context.Context, row domain.TraceRow) error {
	wf, err := readSlist(filepath.Join(s.cfg.InDir, traceFileName(row, "slist")))
	if err != nil {
		s.skipTrace(row, err)
		return nil
	}

	resampled, err := dsp.Resample(wf, s.cfg.SampleRate)
	if err != nil {
		s.skipTrace(row, err)
		return nil
	}
	img, err := dsp.Spectrogram(resampled)
	if err != nil {
		s.skipTrace(row, err)
		return nil
	}

	path := filepath.Join(s.cfg.OutDir, traceFileName(row, "png"))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spectrogram file: %w", err)
	}
	if err := dsp.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close spectrogram file: %w", err)
	}

	out := row
	out.Type = domain.TraceSpectrogram
	if err := s.store.InsertTraces(ctx, []domain.TraceRow{out}); err != nil {
		return fmt.Errorf("store spectrogram trace %s: %w", traceFileName(row, "png"), err)
	}
	s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Inc()
	return nil
}

func (s *SpectrogramStage) skipTrace(row domain.TraceRow, err error) {
	s.logger.Warn("trace skipped", "stage", s.Name(),
		"code", row.Code, "station", row.Station, "component", row.Component, "error", err)
	s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
}

// traceFileName is the artifact naming scheme shared by every stage:
// {code}_{station}_{component} with a per-format extension.
func traceFileName(row domain.TraceRow, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", row.Code, row.Station, row.Component, ext)
}

func readSlist(path string) (domain.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	waveforms, err := slist.Decode(f)
	if err != nil {
		return domain.Waveform{}, err
	}
	return waveforms[0], nil
}
