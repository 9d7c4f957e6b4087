package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the outbox relay.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dead      *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox relay metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Failed outbox publish attempts.",
	}, []string{"event_type"})
	dead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_exhausted_total",
		Help: "Outbox events that hit the max attempt count.",
	}, []string{"event_type"})
	reg.MustRegister(published, failed, dead)
	return &OutboxMetrics{published: published, failed: failed, dead: dead}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncExhausted(eventType string) {
	if m == nil || m.dead == nil {
		return
	}
	m.dead.WithLabelValues(normalizeLabel(eventType)).Inc()
}
