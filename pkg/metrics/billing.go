package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records request and billing flow metadata.
type BillingMetrics struct {
	requestDuration  *prometheus.HistogramVec
	webhookEvents    *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
	portalSessions   prometheus.Counter
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Processed Stripe webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	checkoutSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Checkout sessions created by plan.",
	}, []string{"plan"})
	portalSessions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_sessions_created_total",
		Help: "Customer portal sessions created.",
	})
	reg.MustRegister(requestDuration, webhookEvents, checkoutSessions, portalSessions)
	return &BillingMetrics{
		requestDuration:  requestDuration,
		webhookEvents:    webhookEvents,
		checkoutSessions: checkoutSessions,
		portalSessions:   portalSessions,
	}
}

// ObserveRequest records the duration of a handled HTTP request.
func (m *BillingMetrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.
		WithLabelValues(normalizeLabel(route), normalizeLabel(method), strconv.Itoa(status)).
		Observe(duration.Seconds())
}

// IncWebhookEvent counts a processed webhook delivery.
func (m *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncCheckoutSession counts a created checkout session for the plan.
func (m *BillingMetrics) IncCheckoutSession(plan string) {
	if m == nil || m.checkoutSessions == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(normalizeLabel(plan)).Inc()
}

// IncPortalSession counts a created customer portal session.
func (m *BillingMetrics) IncPortalSession() {
	if m == nil || m.portalSessions == nil {
		return
	}
	m.portalSessions.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
