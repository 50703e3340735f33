package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/observability"
)

// LabelStore lists rendered spectrograms awaiting labels and persists
// the record rows.
type LabelStore interface {
	SpectrogramRegisters(ctx context.Context) ([]domain.SpectrogramRegister, error)
	InsertRecords(ctx context.Context, rows []domain.RecordRow) error
}

// LabelPublisher pushes label events to an external sink.
type LabelPublisher interface {
	PublishLabels(ctx context.Context, events []domain.LabelEvent) error
}

// LabelsConfig holds the label stage settings.
type LabelsConfig struct {
	SpectroDir string
	RecordDir  string
	PMargin    time.Duration
	SMargin    time.Duration
	TrainSplit float64
}

// Train/test split markers stored in the record table.
const (
	splitTrain = 0
	splitTest  = 1
)

// LabelsStage maps register picks onto spectrogram pixels, assigns
// each labeled image to the train or test split, and exports the
// labels as JSONL files alongside the record rows.
type LabelsStage struct {
	store     LabelStore
	publisher LabelPublisher // optional
	cfg       LabelsConfig
	rng       *rand.Rand
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLabelsStage creates the label stage. publisher may be nil.
func NewLabelsStage(store LabelStore, publisher LabelPublisher, cfg LabelsConfig,
	rng *rand.Rand, logger *slog.Logger, metrics *observability.Metrics) *LabelsStage {
	return &LabelsStage{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		rng:       rng,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *LabelsStage) Name() string { return "labels" }

type labeled struct {
	reg   domain.SpectrogramRegister
	file  string
	box   domain.SpectrogramBox
	width int
}

// Run labels every unlabeled spectrogram, shuffles the set, and splits
// it at the configured train fraction.
func (s *LabelsStage) Run(ctx context.Context) error {
	regs, err := s.store.SpectrogramRegisters(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("spectrograms pending labels", "count", len(regs))
	if len(regs) == 0 {
		return nil
	}

	var items []labeled
	for _, reg := range regs {
		item, err := s.label(reg)
		if err != nil {
			s.logger.Warn("spectrogram skipped",
				"code", reg.Code, "station", reg.Station, "component", reg.Component,
				"error", err)
			s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}

	s.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	nTrain := int(float64(len(items)) * s.cfg.TrainSplit)

	rows := make([]domain.RecordRow, len(items))
	events := make([]domain.LabelEvent, len(items))
	for i, item := range items {
		split, splitName := splitTrain, "train"
		if i >= nTrain {
			split, splitName = splitTest, "test"
		}
		rows[i] = domain.RecordRow{
			Code:       item.reg.Code,
			Station:    item.reg.Station,
			Component:  item.reg.Component,
			Type:       domain.TraceRecord,
			PPixel:     item.box.PPixel,
			SPixel:     item.box.SPixel,
			EventStart: item.box.EventStart,
			EventFinal: item.box.EventFinal,
			Split:      split,
			Location:   item.reg.Location,
		}
		events[i] = domain.LabelEvent{
			Code:      item.reg.Code,
			Station:   item.reg.Station,
			Component: item.reg.Component,
			File:      item.file,
			Split:     splitName,
			Box:       item.box.NormalizedBox(item.width),
		}
	}

	if err := os.MkdirAll(s.cfg.RecordDir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	if err := writeLabelFile(filepath.Join(s.cfg.RecordDir, "labels_train.jsonl"), events[:nTrain]); err != nil {
		return err
	}
	if err := writeLabelFile(filepath.Join(s.cfg.RecordDir, "labels_test.jsonl"), events[nTrain:]); err != nil {
		return err
	}

	if err := s.store.InsertRecords(ctx, rows); err != nil {
		return fmt.Errorf("store records: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishLabels(ctx, events); err != nil {
			return fmt.Errorf("publish labels: %w", err)
		}
	}

	s.metrics.LabelsBuilt.Add(float64(len(events)))
	s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Add(float64(len(events)))
	s.logger.Info("labels built",
		"train", nTrain, "test", len(items)-nTrain)
	return nil
}

// label locates the picks inside one rendered spectrogram.
func (s *LabelsStage) label(reg domain.SpectrogramRegister) (labeled, error) {
	start, err := time.Parse(domain.PickParseLayout, reg.Start)
	if err != nil {
		return labeled{}, fmt.Errorf("parse window start %q: %w", reg.Start, err)
	}
	final, err := time.Parse(domain.PickParseLayout, reg.Final)
	if err != nil {
		return labeled{}, fmt.Errorf("parse window final %q: %w", reg.Final, err)
	}

	date := start.Format("2006-01-02")
	p, err := domain.CombinePick(date, reg.PTime)
	if err != nil {
		return labeled{}, err
	}
	sPick, err := domain.CombinePick(date, reg.STime)
	if err != nil {
		return labeled{}, err
	}

	file := fmt.Sprintf("%s_%s_%s.png", reg.Code, reg.Station, reg.Component)
	width, err := imageWidth(filepath.Join(s.cfg.SpectroDir, file))
	if err != nil {
		return labeled{}, err
	}

	box := domain.MapPixels(start, final, p, sPick, width, domain.PixelConfig{
		PMargin: s.cfg.PMargin,
		SMargin: s.cfg.SMargin,
	})
	box.File = file
	return labeled{reg: reg, file: file, box: box, width: width}, nil
}

func imageWidth(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open spectrogram: %w", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("decode spectrogram %s: %w", path, err)
	}
	return cfg.Width, nil
}

func writeLabelFile(path string, events []domain.LabelEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create label file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			f.Close()
			return fmt.Errorf("write label: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close label file: %w", err)
	}
	return nil
}
