package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire_tracker"

// Metrics holds the Prometheus counters, histograms, and gauges for the tracker.
type Metrics struct {
	MessagesConsumed  prometheus.Counter
	SummariesProduced prometheus.Counter
	StepErrors        prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Tracking metrics.
	StepsProcessed         prometheus.Counter
	StepProcessingDuration prometheus.Histogram
	FiresCreated           prometheus.Counter
	FiresInvalidated       *prometheus.CounterVec // labels: reason={static,merge}
	ClustersSkipped        prometheus.Counter
	FireLineFallbacks      prometheus.Counter
	YearResets             prometheus.Counter
	Fires                  *prometheus.GaugeVec // labels: region, state={active,sleeper,dead}

	// Land-cover lookup metrics.
	LandcoverRequests    *prometheus.CounterVec // labels: outcome={success,error}
	LandcoverCache       *prometheus.CounterVec // labels: result={hit,miss}
	LandcoverAPIDuration prometheus.Histogram
	LandcoverEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all tracker metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total step batches read from the source topic.",
		}),
		SummariesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_produced_total",
			Help:      "Total step summaries written to the sinks.",
		}),
		StepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Total step batches skipped as unprocessable.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-process-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		StepsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_processed_total",
			Help:      "Total region time steps applied to a fire collection.",
		}),
		StepProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_processing_duration_seconds",
			Help:      "Duration of applying one step batch to its fire collection.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		FiresCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fires_created_total",
			Help:      "Total fires ignited from new pixel clusters.",
		}),
		FiresInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fires_invalidated_total",
			Help:      "Total fires invalidated by reason.",
		}, []string{"reason"}),
		ClustersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_skipped_total",
			Help:      "Total pixel clusters that could not seed a fire.",
		}),
		FireLineFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fireline_fallbacks_total",
			Help:      "Total fire-line extractions that failed and reused the previous line.",
		}),
		YearResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "year_resets_total",
			Help:      "Total annual fire id compactions.",
		}),
		Fires: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fires",
			Help:      "Fires per region by lifecycle state after the last step.",
		}, []string{"region", "state"}),
		LandcoverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "landcover_requests_total",
			Help:      "Land-cover API requests by outcome.",
		}, []string{"outcome"}),
		LandcoverCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "landcover_cache_total",
			Help:      "Land-cover cache lookups by result.",
		}, []string{"result"}),
		LandcoverAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "landcover_api_duration_seconds",
			Help:      "Land-cover API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		LandcoverEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "landcover_enabled",
			Help:      "1 when land-cover classification is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.SummariesProduced,
		m.StepErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.StepsProcessed,
		m.StepProcessingDuration,
		m.FiresCreated,
		m.FiresInvalidated,
		m.ClustersSkipped,
		m.FireLineFallbacks,
		m.YearResets,
		m.Fires,
		m.LandcoverRequests,
		m.LandcoverCache,
		m.LandcoverAPIDuration,
		m.LandcoverEnabled,
	}
}
