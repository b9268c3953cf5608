// Package metrics holds the prometheus collectors for normalization runs
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics records per run counters; a nil *Metrics is a no-op
type Metrics struct {
	reg *prometheus.Registry

	// Records counts record outcomes by entity, action and outcome
	Records *prometheus.CounterVec

	// RunDuration is the wall time of one action over one entity
	RunDuration *prometheus.HistogramVec

	// LastSuccess is the unix time of the last clean action completion
	LastSuccess *prometheus.GaugeVec
}

// New creates a Metrics instance on its own registry.
// Batch jobs push once at exit so nothing is shared with the default registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "locnorm_records_total",
			Help: "Records handled by the normalization engine by outcome",
		}, []string{"entity", "action", "outcome"}),

		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locnorm_action_duration_seconds",
			Help:    "Duration of one normalization action",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"entity", "action"}),

		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "locnorm_last_success_timestamp_seconds",
			Help: "Unix time of the last action that finished without failures",
		}, []string{"entity", "action"}),
	}
}

// Gatherer exposes the private registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.reg
}

// AddOutcome adds n to the counter for an outcome; zero is skipped
func (m *Metrics) AddOutcome(entity, action, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Records.WithLabelValues(entity, action, outcome).Add(float64(n))
}

// ObserveRun records how long an action took and stamps success when ok
func (m *Metrics) ObserveRun(entity, action string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(entity, action).Observe(d.Seconds())
	if ok {
		m.LastSuccess.WithLabelValues(entity, action).SetToCurrentTime()
	}
}

// Push sends everything gathered to a pushgateway under job, grouped by entity
func (m *Metrics) Push(ctx context.Context, url, job, entity string) error {
	if m == nil || url == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(m.reg).
		Grouping("entity", entity).
		PushContext(ctx)
}
