package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ETL stages.
type Metrics struct {
	ReportsFetched prometheus.Counter
	ReportsMissing prometheus.Counter
	PairsDiscarded prometheus.Counter
	RegistersBuilt prometheus.Counter
	LabelsBuilt    prometheus.Counter

	ItemsProcessed *prometheus.CounterVec   // label: stage
	ItemFailures   *prometheus.CounterVec   // label: stage
	StageDuration  *prometheus.HistogramVec // label: stage
	StageRunning   *prometheus.GaugeVec     // label: stage
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "reports_fetched_total",
			Help:      "GSE report documents fetched from the catalog service.",
		}),
		ReportsMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "reports_missing_total",
			Help:      "Events whose GSE report was absent or had no phase table.",
		}),
		PairsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "pairs_discarded_total",
			Help:      "Phase pairs dropped as depth phases or incomplete reports.",
		}),
		RegistersBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "registers_built_total",
			Help:      "Arrival records written to the register table.",
		}),
		LabelsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "labels_built_total",
			Help:      "Spectrogram bounding-box labels derived.",
		}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "items_processed_total",
			Help:      "Items completed per stage.",
		}, []string{"stage"}),
		ItemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismic_etl",
			Name:      "item_failures_total",
			Help:      "Per-item failures that were logged and skipped.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seismic_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a complete stage run.",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 1800, 7200},
		}, []string{"stage"}),
		StageRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "seismic_etl",
			Name:      "stage_running",
			Help:      "1 while the named stage is active.",
		}, []string{"stage"}),
	}
}

// NewMetrics creates and registers all stage metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsFetched,
		m.ReportsMissing,
		m.PairsDiscarded,
		m.RegistersBuilt,
		m.LabelsBuilt,
		m.ItemsProcessed,
		m.ItemFailures,
		m.StageDuration,
		m.StageRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so
// parallel tests avoid "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
