// Package metrics exposes run counters over Prometheus. The automation core
// increments them through nil-safe helpers so library callers that do not
// care about metrics can pass nil and forget about it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters one automation run maintains.
type Metrics struct {
	panIterations         prometheus.Counter
	driftRejections       prometheus.Counter
	zeroEstimateFallbacks prometheus.Counter
	noChangeAborts        prometheus.Counter
	stepRetries           prometheus.Counter
	stepOutcomes          *prometheus.CounterVec
}

// New registers the run counters with reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		panIterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvaspilot_pan_iterations_total",
			Help: "Pan loop iterations executed across all alignment calls.",
		}),
		driftRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvaspilot_drift_rejections_total",
			Help: "Motion estimates vetoed by the drift guard.",
		}),
		zeroEstimateFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvaspilot_zero_estimate_fallbacks_total",
			Help: "Pan iterations that applied the commanded delta because the estimator returned zero on a visibly changed region.",
		}),
		noChangeAborts: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvaspilot_no_change_aborts_total",
			Help: "Pan loops aborted because consecutive drags produced no visible change.",
		}),
		stepRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvaspilot_step_retries_total",
			Help: "Step retry attempts, including those that later succeeded.",
		}),
		stepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canvaspilot_step_outcomes_total",
			Help: "Final step classifications by status.",
		}, []string{"status"}),
	}
}

// PanIteration counts one pan loop iteration.
func (m *Metrics) PanIteration() {
	if m != nil {
		m.panIterations.Inc()
	}
}

// DriftRejection counts one vetoed motion estimate.
func (m *Metrics) DriftRejection() {
	if m != nil {
		m.driftRejections.Inc()
	}
}

// ZeroEstimateFallback counts one commanded-delta fallback.
func (m *Metrics) ZeroEstimateFallback() {
	if m != nil {
		m.zeroEstimateFallbacks.Inc()
	}
}

// NoChangeAbort counts one pan loop abort due to an unresponsive viewport.
func (m *Metrics) NoChangeAbort() {
	if m != nil {
		m.noChangeAborts.Inc()
	}
}

// StepRetry counts one retry attempt.
func (m *Metrics) StepRetry() {
	if m != nil {
		m.stepRetries.Inc()
	}
}

// StepOutcome counts one final step classification.
func (m *Metrics) StepOutcome(status string) {
	if m != nil {
		m.stepOutcomes.WithLabelValues(status).Inc()
	}
}
