package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/seismocat/seismic-etl/internal/adapter/httpserver"
	"github.com/seismocat/seismic-etl/internal/adapter/icgc"
	kafkaadapter "github.com/seismocat/seismic-etl/internal/adapter/kafka"
	"github.com/seismocat/seismic-etl/internal/adapter/sqlite"
	"github.com/seismocat/seismic-etl/internal/config"
	"github.com/seismocat/seismic-etl/internal/observability"
	"github.com/seismocat/seismic-etl/internal/pipeline"
)

const allStages = "catalog,registers,traces,filter,spectrogram,labels"

func main() {
	stagesFlag := flag.String("stages", allStages,
		"comma-separated stages to run, in pipeline order")
	seedFlag := flag.Int64("seed", 0,
		"random seed for window draws and the train/test shuffle (0 = time-based)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	stages, err := buildStages(cfg, store, logger, metrics, seed, strings.Split(*stagesFlag, ","))
	if err != nil {
		logger.Error("failed to build stages", "error", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(logger, metrics, stages...)
	srv := httpserver.NewServer(cfg.HTTPAddr, runner, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := runner.Run(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildStages wires the requested stages in pipeline order. Unknown
// stage names fail fast.
func buildStages(cfg *config.Config, store *sqlite.Store, logger *slog.Logger,
	metrics *observability.Metrics, seed int64, names []string) ([]pipeline.Stage, error) {

	var publisher pipeline.LabelPublisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewWriter(cfg, logger)
		logger.Info("kafka label sink enabled",
			"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaLabelTopic)
	} else {
		logger.Info("kafka label sink disabled")
	}

	reports := icgc.NewReportClient(cfg.ReportBaseURL, cfg.HTTPTimeout, logger)
	waveforms := icgc.NewWaveformClient(cfg.WaveformBaseURL, cfg.Network, cfg.HTTPTimeout, logger)
	failures := pipeline.NewFailureLog(cfg.FailureLog)

	var stages []pipeline.Stage
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "catalog":
			stages = append(stages, pipeline.NewCatalogStage(
				store, cfg.CatalogDir, cfg.StationsPath, logger, metrics))
		case "registers":
			stages = append(stages, pipeline.NewRegistersStage(
				store, reports, logger, metrics))
		case "traces":
			stages = append(stages, pipeline.NewTracesStage(
				store, waveforms, failures, pipeline.TracesConfig{
					DownloadWindow: cfg.DownloadWindow,
					SliceWidth:     cfg.SliceWidth,
					PhaseGuard:     cfg.PhaseGuard,
					RawDir:         cfg.RawDir,
					Workers:        cfg.Workers,
				}, rand.New(rand.NewSource(seed)), logger, metrics))
		case "filter":
			stages = append(stages, pipeline.NewFilterStage(
				store, pipeline.FilterConfig{
					Kind:    cfg.FilterKind,
					FreqMin: cfg.FilterFreqMin,
					FreqMax: cfg.FilterFreqMax,
					RawDir:  cfg.RawDir,
					OutDir:  cfg.FilteredDir,
					Workers: cfg.Workers,
				}, logger, metrics))
		case "spectrogram":
			stages = append(stages, pipeline.NewSpectrogramStage(
				store, pipeline.SpectrogramConfig{
					SampleRate: cfg.SampleRate,
					InDir:      cfg.FilteredDir,
					OutDir:     cfg.SpectroDir,
					Workers:    cfg.Workers,
				}, logger, metrics))
		case "labels":
			stages = append(stages, pipeline.NewLabelsStage(
				store, publisher, pipeline.LabelsConfig{
					SpectroDir: cfg.SpectroDir,
					RecordDir:  cfg.RecordDir,
					PMargin:    cfg.PMargin,
					SMargin:    cfg.SMargin,
					TrainSplit: cfg.TrainSplit,
				}, rand.New(rand.NewSource(seed+1)), logger, metrics))
		case "":
		default:
			return nil, fmt.Errorf("unknown stage %q", name)
		}
	}
	return stages, nil
}
