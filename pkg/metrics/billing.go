package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Charge attempt results.
const (
	ChargeResultApproved = "approved"
	ChargeResultDeclined = "declined"
	ChargeResultError    = "error"
)

// BillingMetrics tracks recurring charge outcomes.
type BillingMetrics struct {
	chargeAttempts   *prometheus.CounterVec
	retriesScheduled prometheus.Counter
	chargeDuration   prometheus.Histogram
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	chargeAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_charge_attempts_total",
		Help: "Recurring charge attempts by result.",
	}, []string{"result"})
	retriesScheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_charge_retries_scheduled_total",
		Help: "Failed charges that were scheduled for a retry.",
	})
	chargeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_charge_duration_seconds",
		Help:    "Duration of gateway charge calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(chargeAttempts, retriesScheduled, chargeDuration)
	return &BillingMetrics{
		chargeAttempts:   chargeAttempts,
		retriesScheduled: retriesScheduled,
		chargeDuration:   chargeDuration,
	}
}

// IncChargeAttempt records one charge attempt with its result.
func (b *BillingMetrics) IncChargeAttempt(result string) {
	if b == nil || b.chargeAttempts == nil {
		return
	}
	b.chargeAttempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRetryScheduled records a charge retry being scheduled.
func (b *BillingMetrics) IncRetryScheduled() {
	if b == nil || b.retriesScheduled == nil {
		return
	}
	b.retriesScheduled.Inc()
}

// ObserveChargeDuration records how long a gateway charge call took.
func (b *BillingMetrics) ObserveChargeDuration(duration time.Duration) {
	if b == nil || b.chargeDuration == nil {
		return
	}
	b.chargeDuration.Observe(duration.Seconds())
}

// WebhookMetrics tracks inbound webhook ingestion.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Webhook events accepted for processing, by source.",
	}, []string{"source"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed_total",
		Help: "Webhook events processed, by source and outcome.",
	}, []string{"source", "outcome"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Webhook deliveries dropped as duplicates, by source.",
	}, []string{"source"})
	reg.MustRegister(received, processed, duplicate)
	return &WebhookMetrics{
		received:  received,
		processed: processed,
		duplicate: duplicate,
	}
}

// IncReceived records a webhook accepted for processing.
func (w *WebhookMetrics) IncReceived(source string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncProcessed records a webhook processing outcome.
func (w *WebhookMetrics) IncProcessed(source, outcome string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// IncDuplicate records a duplicate delivery that was dropped.
func (w *WebhookMetrics) IncDuplicate(source string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(source)).Inc()
}

// BulkMetrics tracks bulk action execution.
type BulkMetrics struct {
	actions *prometheus.CounterVec
}

// NewBulkMetrics registers the bulk action metrics on the provided registerer.
func NewBulkMetrics(reg prometheus.Registerer) *BulkMetrics {
	if reg == nil {
		return &BulkMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_actions_total",
		Help: "Bulk action records executed, by action and result.",
	}, []string{"action", "result"})
	reg.MustRegister(actions)
	return &BulkMetrics{actions: actions}
}

// IncAction records one bulk action record outcome.
func (b *BulkMetrics) IncAction(action, result string) {
	if b == nil || b.actions == nil {
		return
	}
	b.actions.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}
