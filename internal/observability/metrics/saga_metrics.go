package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ProvisioningOutcomeSuccess   = "success"
	ProvisioningOutcomeRetryable = "retryable"
	ProvisioningOutcomePermanent = "permanent"

	ReconcileActionStalled = "stalled"
	ReconcileActionRetried = "retried"
	ReconcileActionFailed  = "retry_failed"
	ReconcileActionSkipped = "lock_busy"
)

// SagaMetrics captures provisioning saga health for alerting.
type SagaMetrics struct {
	stepDuration      *prometheus.HistogramVec
	providerCalls     *prometheus.CounterVec
	fallbacks         *prometheus.CounterVec
	ledgerTransitions *prometheus.CounterVec
	reconcileActions  *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
}

func NewSagaMetrics(cfg Config) *SagaMetrics {
	return NewSagaMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewSagaMetricsWithRegisterer(reg prometheus.Registerer, cfg Config) *SagaMetrics {
	labels := constLabels(cfg)
	return &SagaMetrics{
		stepDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "streamgate_saga_step_duration_seconds",
			Help:        "Saga step latency by step and outcome.",
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			ConstLabels: labels,
		}, []string{"step", "outcome"})),
		providerCalls: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "streamgate_provider_calls_total",
			Help:        "Provisioning API calls by operation and outcome.",
			ConstLabels: labels,
		}, []string{"operation", "outcome"})),
		fallbacks: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "streamgate_provider_fallbacks_total",
			Help:        "Locally generated credentials by reason; each needs manual reconciliation.",
			ConstLabels: labels,
		}, []string{"reason"})),
		ledgerTransitions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "streamgate_ledger_transitions_total",
			Help:        "Automation ledger status transitions.",
			ConstLabels: labels,
		}, []string{"from", "to"})),
		reconcileActions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "streamgate_reconcile_actions_total",
			Help:        "Reconciliation sweep actions by kind.",
			ConstLabels: labels,
		}, []string{"action"})),
		reconcileDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "streamgate_reconcile_duration_seconds",
			Help:        "Reconciliation sweep latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			ConstLabels: labels,
		})),
	}
}

func (m *SagaMetrics) ObserveStep(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step, outcome).Observe(elapsed.Seconds())
}

func (m *SagaMetrics) IncProviderCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *SagaMetrics) IncFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *SagaMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.ledgerTransitions.WithLabelValues(from, to).Inc()
}

func (m *SagaMetrics) IncReconcile(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileActions.WithLabelValues(action).Add(float64(n))
}

func (m *SagaMetrics) ObserveReconcile(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(elapsed.Seconds())
}
