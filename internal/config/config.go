package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Filter kinds accepted by FILTER_KIND. Band filters need both corner
// frequencies; the single-corner kinds ignore FILTER_FREQ_MAX.
var (
	twoFreqFilters = map[string]bool{"bandpass": true, "bandstop": true}
	oneFreqFilters = map[string]bool{"lowpass": true, "highpass": true}
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StorePath       string
	ReportBaseURL   string
	WaveformBaseURL string
	Network         string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
	Workers         int

	// Window constants (§ time windows).
	DownloadWindow time.Duration // bulk download width, centered on P
	SliceWidth     time.Duration // randomized slice width
	PhaseGuard     time.Duration // P-S margin kept inside the slice
	PMargin        time.Duration // label margin ahead of P
	SMargin        time.Duration // label margin behind S

	SampleRate float64
	TrainSplit float64

	FilterKind    string
	FilterFreqMin float64
	FilterFreqMax float64

	// Artifact directories, indexed by trace type.
	RawDir      string
	FilteredDir string
	SpectroDir  string
	RecordDir   string

	CatalogDir   string
	StationsPath string
	FailureLog   string

	// Optional Kafka label sink.
	KafkaBrokers    []string
	KafkaLabelTopic string
	KafkaEnabled    bool
}

// Load reads configuration from environment variables, applying
// defaults where unset. Window constants are validated together: a
// slice window plus both guards must fit inside the download window,
// otherwise every slice draw would fail at run time.
func Load() (*Config, error) {
	cfg := &Config{
		StorePath:       envOrDefault("STORE_PATH", "seismic_cat.db"),
		ReportBaseURL:   envOrDefault("REPORT_BASE_URL", "https://sismocat.icgc.cat/sisweb2/siswebclient_gse_external.php"),
		WaveformBaseURL: envOrDefault("WAVEFORM_BASE_URL", "http://ws.icgc.cat/fdsnws/dataselect/1/query"),
		Network:         envOrDefault("NETWORK", "CA"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		FilterKind:      envOrDefault("FILTER_KIND", "bandpass"),
		RawDir:          envOrDefault("RAW_DIR", "data/traces_raw"),
		FilteredDir:     envOrDefault("FILTERED_DIR", "data/traces_filtered"),
		SpectroDir:      envOrDefault("SPECTRO_DIR", "data/traces_spectrogram"),
		RecordDir:       envOrDefault("RECORD_DIR", "data/traces_record"),
		CatalogDir:      os.Getenv("CATALOG_DIR"),
		StationsPath:    os.Getenv("STATIONS_PATH"),
		FailureLog:      envOrDefault("FAILURE_LOG", "raw_traces_failures.csv"),
		KafkaLabelTopic: envOrDefault("KAFKA_LABEL_TOPIC", "earthquake-labels"),
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DownloadWindow, err = durationEnv("DOWNLOAD_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SliceWidth, err = durationEnv("SLICE_WIDTH", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PhaseGuard, err = durationEnv("PHASE_GUARD", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PMargin, err = durationEnv("P_MARGIN", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SMargin, err = durationEnv("S_MARGIN", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Workers, err = intEnv("WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.SampleRate, err = floatEnv("SAMPLE_RATE", 100); err != nil {
		return nil, err
	}
	if cfg.TrainSplit, err = floatEnv("TRAIN_SPLIT", 0.9); err != nil {
		return nil, err
	}
	if cfg.FilterFreqMin, err = floatEnv("FILTER_FREQ_MIN", 1); err != nil {
		return nil, err
	}
	if cfg.FilterFreqMax, err = floatEnv("FILTER_FREQ_MAX", 5); err != nil {
		return nil, err
	}

	brokers := envOrDefault("KAFKA_BROKERS", "localhost:9092")
	cfg.KafkaBrokers = splitBrokers(brokers)
	cfg.KafkaEnabled = os.Getenv("KAFKA_ENABLED") == "true"

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StorePath == "" {
		return errors.New("STORE_PATH is required")
	}
	if c.Workers < 1 {
		return errors.New("WORKERS must be at least 1")
	}
	if c.SliceWidth+2*c.PhaseGuard > c.DownloadWindow {
		return fmt.Errorf("SLICE_WIDTH %s + 2*PHASE_GUARD %s exceeds DOWNLOAD_WINDOW %s",
			c.SliceWidth, c.PhaseGuard, c.DownloadWindow)
	}
	if c.TrainSplit <= 0 || c.TrainSplit > 1 {
		return errors.New("TRAIN_SPLIT must be in (0, 1]")
	}
	switch {
	case twoFreqFilters[c.FilterKind]:
		if c.FilterFreqMax <= c.FilterFreqMin {
			return fmt.Errorf("FILTER_FREQ_MAX must exceed FILTER_FREQ_MIN for %s", c.FilterKind)
		}
	case oneFreqFilters[c.FilterKind]:
		// single corner, max unused
	default:
		return fmt.Errorf("unsupported FILTER_KIND %q", c.FilterKind)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
