// Package metrics provides a Prometheus-backed MetricsRecorder for the lot
// services.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lottrace/pkg/domain"
)

// Recorder publishes operation outcomes and degraded-mode counters to a
// Prometheus registry.
type Recorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	degraded  *prometheus.CounterVec
}

// Compile-time contract assertion.
var _ domain.MetricsRecorder = (*Recorder)(nil)

// NewRecorder constructs a recorder and registers its collectors. A nil
// registerer defaults to prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lottrace",
			Name:      "operation_duration_seconds",
			Help:      "Duration of lot service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lottrace",
			Name:      "operations_total",
			Help:      "Lot service operation outcomes.",
		}, []string{"operation", "status"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lottrace",
			Name:      "degraded_total",
			Help:      "Weakened-invariant events: sequence fallbacks and unpersisted resolutions.",
		}, []string{"operation", "reason"}),
	}
	reg.MustRegister(r.durations, r.results, r.degraded)
	return r
}

// Observe records one operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// Degraded counts one degraded-mode event.
func (r *Recorder) Degraded(_ context.Context, operation, reason string) {
	r.degraded.WithLabelValues(operation, reason).Inc()
}
