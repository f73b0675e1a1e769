package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks job throughput per job type
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics creates the worker metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Processed jobs by type and status",
		}, []string{"job_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Job processing time",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job_type"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful job",
		}, []string{"job_type"}),
	}

	for _, c := range []prometheus.Collector{m.jobsTotal, m.jobDuration, m.lastSuccess} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordJob observes one finished job. A nil receiver is a no-op.
func (m *Metrics) RecordJob(jobType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
		m.lastSuccess.WithLabelValues(jobType).SetToCurrentTime()
	}
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}
