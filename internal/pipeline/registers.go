package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/observability"
)

// ReportFetcher downloads the GSE phase report of one event.
type ReportFetcher interface {
	FetchReport(ctx context.Context, code string) (string, error)
}

// RegisterStore persists arrival records and lists events still
// awaiting them.
type RegisterStore interface {
	CodesWithoutRegisters(ctx context.Context) ([]string, error)
	InsertRegisters(ctx context.Context, records []domain.ArrivalRecord) error
}

// RegistersStage turns phase reports into arrival records: one register
// per station with adjacent P and S picks.
type RegistersStage struct {
	store   RegisterStore
	reports ReportFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRegistersStage creates the register extraction stage.
func NewRegistersStage(store RegisterStore, reports ReportFetcher, logger *slog.Logger, metrics *observability.Metrics) *RegistersStage {
	return &RegistersStage{
		store:   store,
		reports: reports,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *RegistersStage) Name() string { return "registers" }

// Run processes every catalog event without registers. Missing or
// malformed reports skip the event; store errors stop the stage.
func (s *RegistersStage) Run(ctx context.Context) error {
	codes, err := s.store.CodesWithoutRegisters(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("events pending registers", "count", len(codes))

	for i, code := range codes {
		if ctx.Err() != nil {
			return nil
		}
		records, err := s.buildRegisters(ctx, code)
		if err != nil {
			if isSkippable(err) {
				s.logger.Warn("event skipped", "code", code, "error", err)
				s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
				continue
			}
			return fmt.Errorf("event %s: %w", code, err)
		}

		if err := s.store.InsertRegisters(ctx, records); err != nil {
			return fmt.Errorf("store registers %s: %w", code, err)
		}
		s.metrics.RegistersBuilt.Add(float64(len(records)))
		s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Inc()
		s.logger.Info("event registered",
			"code", code, "registers", len(records),
			"progress", fmt.Sprintf("%d/%d", i+1, len(codes)))
	}
	return nil
}

// buildRegisters runs the report chain for one event: fetch, extract
// the phase table, pair adjacent picks, validate, map to records. An
// event with a report but no surviving pairs yields an empty slice.
func (s *RegistersStage) buildRegisters(ctx context.Context, code string) ([]domain.ArrivalRecord, error) {
	report, err := s.reports.FetchReport(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrReportNotFound) {
			s.metrics.ReportsMissing.Inc()
		}
		return nil, err
	}
	s.metrics.ReportsFetched.Inc()

	lines, err := domain.ParseReport(report)
	if err != nil {
		if errors.Is(err, domain.ErrNoPhaseTable) {
			s.metrics.ReportsMissing.Inc()
		}
		return nil, err
	}

	pairs, err := domain.PairPhases(lines)
	if err != nil {
		return nil, err
	}
	valid := domain.FilterPairs(pairs)
	s.metrics.PairsDiscarded.Add(float64(len(pairs) - len(valid)))

	return domain.BuildRegisters(code, valid), nil
}

// isSkippable reports whether an event failure should skip the event
// rather than stop the stage.
func isSkippable(err error) bool {
	return errors.Is(err, domain.ErrReportNotFound) ||
		errors.Is(err, domain.ErrNoPhaseTable) ||
		errors.Is(err, domain.ErrInterleavedStations)
}
