package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcome labels. Handled outcomes and failures get distinct series
// so retry storms and orphan floods are visible without log digging.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
	OutcomeOrphan    = "orphan"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// WebhookMetrics records reconciliation outcomes per gateway provider.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	payouts  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by reconciliation outcome.",
	}, []string{"provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_seconds",
		Help:    "Duration of webhook reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_disbursements_total",
		Help: "Commission disbursement attempts by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, duration, payouts)
	return &WebhookMetrics{
		outcomes: outcomes,
		duration: duration,
		payouts:  payouts,
	}
}

// IncOutcome increments the outcome counter for the provider.
func (m *WebhookMetrics) IncOutcome(provider, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records reconciliation latency for the provider.
func (m *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// IncDisbursement counts a disbursement attempt result (ok/failed).
func (m *WebhookMetrics) IncDisbursement(result string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
