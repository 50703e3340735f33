package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/observability"
)

// CatalogStore persists catalog events and station inventory rows.
type CatalogStore interface {
	InsertEarthquakes(ctx context.Context, quakes []domain.Earthquake) error
	InsertStations(ctx context.Context, stations []domain.Station) error
}

// CatalogStage loads the earthquake catalog CSV exports and the station
// inventory file into the store.
type CatalogStage struct {
	store        CatalogStore
	catalogDir   string
	stationsPath string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewCatalogStage creates the catalog stage. Either input may be empty,
// in which case that half is skipped.
func NewCatalogStage(store CatalogStore, catalogDir, stationsPath string, logger *slog.Logger, metrics *observability.Metrics) *CatalogStage {
	return &CatalogStage{
		store:        store,
		catalogDir:   catalogDir,
		stationsPath: stationsPath,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s *CatalogStage) Name() string { return "catalog" }

// Run loads every catalog CSV in lexical order, de-duplicating codes
// across files, then the station inventory.
func (s *CatalogStage) Run(ctx context.Context) error {
	if s.catalogDir != "" {
		if err := s.loadCatalog(ctx); err != nil {
			return err
		}
	}
	if s.stationsPath != "" {
		if err := s.loadStations(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *CatalogStage) loadCatalog(ctx context.Context) error {
	paths, err := filepath.Glob(filepath.Join(s.catalogDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("list catalog dir: %w", err)
	}
	sort.Strings(paths)

	seen := map[string]bool{}
	for _, path := range paths {
		quakes, err := s.readCatalogFile(path, seen)
		if err != nil {
			s.logger.Warn("catalog file skipped", "path", path, "error", err)
			s.metrics.ItemFailures.WithLabelValues(s.Name()).Inc()
			continue
		}
		if err := s.store.InsertEarthquakes(ctx, quakes); err != nil {
			return fmt.Errorf("store catalog %s: %w", path, err)
		}
		s.metrics.ItemsProcessed.WithLabelValues(s.Name()).Add(float64(len(quakes)))
		s.logger.Info("catalog file loaded", "path", path, "events", len(quakes))
	}
	return nil
}

func (s *CatalogStage) readCatalogFile(path string, seen map[string]bool) ([]domain.Earthquake, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		// Header names vary with the export language; drop by position.
		rows = rows[1:]
	}
	return domain.ParseCatalogRows(rows, seen), nil
}

func (s *CatalogStage) loadStations(ctx context.Context) error {
	data, err := os.ReadFile(s.stationsPath)
	if err != nil {
		return fmt.Errorf("read stations: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	stations := domain.ParseStations(lines)
	if err := s.store.InsertStations(ctx, stations); err != nil {
		return fmt.Errorf("store stations: %w", err)
	}
	s.logger.Info("stations loaded", "path", s.stationsPath, "stations", len(stations))
	return nil
}
