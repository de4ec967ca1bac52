package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes the picker's progress to Prometheus.
type Recorder struct {
	observed         prometheus.Counter
	decisions        *prometheus.CounterVec
	estimationErrors *prometheus.CounterVec
	driftEvents      *prometheus.CounterVec
	threshold        prometheus.Gauge
	lastPrice        prometheus.Gauge
	calibrationTime  prometheus.Histogram
	holdoutSize      prometheus.Gauge
}

// New registers the picker metrics on reg. Pass prometheus.DefaultRegisterer to expose
// them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		observed: factory.NewCounter(prometheus.CounterOpts{
			Name: "picker_prices_observed_total",
			Help: "Total number of prices fetched from the item source",
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "picker_decisions_total",
			Help: "Stop/continue decisions by outcome",
		}, []string{"decision"}),
		estimationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "picker_estimation_errors_total",
			Help: "Iterations whose decision was skipped because estimation failed",
		}, []string{"type"}),
		driftEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "picker_drift_change_points_total",
			Help: "Change points detected in the live price stream",
		}, []string{"direction"}),
		threshold: factory.NewGauge(prometheus.GaugeOpts{
			Name: "picker_calibrated_threshold",
			Help: "Threshold chosen by the latest calibration",
		}),
		lastPrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "picker_last_price",
			Help: "Last price fetched from the item source",
		}),
		calibrationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "picker_calibration_duration_seconds",
			Help:    "Duration of one calibration (fit plus grid search)",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		holdoutSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "picker_calibration_holdout_size",
			Help: "Holdout size used by the latest calibration",
		}),
	}
}

func (r *Recorder) RecordPrice(price float64) {
	r.observed.Inc()
	r.lastPrice.Set(price)
}

func (r *Recorder) RecordDecision(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

func (r *Recorder) RecordEstimationError(kind string) {
	r.estimationErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordDrift(direction string) {
	r.driftEvents.WithLabelValues(direction).Inc()
}

func (r *Recorder) RecordCalibration(threshold float64, holdoutSize int, seconds float64) {
	r.threshold.Set(threshold)
	r.holdoutSize.Set(float64(holdoutSize))
	r.calibrationTime.Observe(seconds)
}
