package preview

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives pipeline observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveFetch records one page fetch and its outcome (ok, timeout, http_status, network).
	ObserveFetch(outcome string, duration time.Duration)

	// ObserveValidation records one image HEAD probe.
	ObserveValidation(accepted bool)

	// ObserveStrategy records the strategy that produced the selected image.
	ObserveStrategy(kind string)

	// ObservePreview records one assembled preview (ok, degraded).
	ObservePreview(outcome string, duration time.Duration)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveFetch(string, time.Duration)   {}
func (NopRecorder) ObserveValidation(bool)               {}
func (NopRecorder) ObserveStrategy(string)               {}
func (NopRecorder) ObservePreview(string, time.Duration) {}

// PrometheusRecorder records pipeline metrics to Prometheus.
type PrometheusRecorder struct {
	fetchDuration   *prometheus.HistogramVec
	validations     *prometheus.CounterVec
	strategies      *prometheus.CounterVec
	previewDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the pipeline metrics and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "preview_fetch_duration_seconds",
			Help:    "Time spent fetching target pages",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preview_image_validations_total",
			Help: "Image candidate HEAD probes by result",
		}, []string{"result"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preview_strategy_selected_total",
			Help: "Selected image strategy per resolved preview",
		}, []string{"strategy"}),
		previewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "preview_assemble_duration_seconds",
			Help:    "End to end preview assembly time",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{r.fetchDuration, r.validations, r.strategies, r.previewDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveFetch(outcome string, duration time.Duration) {
	r.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveValidation(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	r.validations.WithLabelValues(result).Inc()
}

func (r *PrometheusRecorder) ObserveStrategy(kind string) {
	r.strategies.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) ObservePreview(outcome string, duration time.Duration) {
	r.previewDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
