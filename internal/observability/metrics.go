package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flight_recon"

// Metrics holds the Prometheus counters, histograms, and gauges for the reconciliation pipeline.
type Metrics struct {
	RowsIngested    *prometheus.CounterVec // labels: stream
	RowsRejected    *prometheus.CounterVec // labels: stream, reason
	KeysUnresolved  *prometheus.CounterVec // labels: stream
	FlightsFolded   *prometheus.CounterVec // labels: side
	Comparisons     *prometheus.CounterVec // labels: overall
	FieldVerdicts   *prometheus.CounterVec // labels: field, verdict
	OutputsWritten  *prometheus.CounterVec // labels: kind
	DaysProcessed   prometheus.Counter
	DayDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Rows decoded from input sources.",
		}, []string{"stream"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Row-level diagnostics by stream and reason.",
		}, []string{"stream", "reason"}),
		KeysUnresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_unresolved_total",
			Help:      "Rows whose FlightKey could not be resolved.",
		}, []string{"stream"}),
		FlightsFolded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flights_folded_total",
			Help:      "Folded flight states by side.",
		}, []string{"side"}),
		Comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Comparison records by overall verdict.",
		}, []string{"overall"}),
		FieldVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_verdicts_total",
			Help:      "Per-field verdicts by field and verdict.",
		}, []string{"field", "verdict"}),
		OutputsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_written_total",
			Help:      "Output artifacts written by kind.",
		}, []string{"kind"}),
		DaysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_processed_total",
			Help:      "Reporting days completed.",
		}),
		DayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "day_duration_seconds",
			Help:      "Duration of one reporting-day pipeline run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsIngested,
		m.RowsRejected,
		m.KeysUnresolved,
		m.FlightsFolded,
		m.Comparisons,
		m.FieldVerdicts,
		m.OutputsWritten,
		m.DaysProcessed,
		m.DayDuration,
		m.PipelineRunning,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
