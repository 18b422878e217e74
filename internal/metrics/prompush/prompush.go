// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch run is too short lived to be scraped, so the
// registry is pushed on Flush.
package prompush

import (
	"fmt"

	"movie-pipeline/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	records      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	writes       *prometheus.CounterVec
	viewErrors   *prometheus.CounterVec
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping job and defaults to "movie_pipeline".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "movie_pipeline"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records seen per kind (ingested, cleaned).",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RejectedTotal,
			Help: "Records rejected per cleaning stage.",
		}, []string{"stage"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.WritesTotal,
			Help: "Insert outcomes per collection.",
		}, []string{"collection", "outcome"}),
		viewErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ViewErrorsTotal,
			Help: "Failed view operations.",
		}, []string{"view", "op"}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.records, b.rejected, b.writes, b.viewErrors} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.RejectedTotal:
		b.rejected.WithLabelValues(labels["stage"]).Add(delta)
	case metrics.WritesTotal:
		b.writes.WithLabelValues(labels["collection"], labels["outcome"]).Add(delta)
	case metrics.ViewErrorsTotal:
		b.viewErrors.WithLabelValues(labels["view"], labels["op"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
