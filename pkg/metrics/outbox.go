package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox records publisher progress.
type Outbox struct {
	published *prometheus.CounterVec
	pending   prometheus.Gauge
}

// NewOutbox registers the outbox publisher metrics on the provided registerer.
func NewOutbox(reg prometheus.Registerer) *Outbox {
	if reg == nil {
		return &Outbox{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox publish attempts by event type and result.",
	}, []string{"event_type", "result"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Unpublished outbox rows observed at the last poll.",
	})
	reg.MustRegister(published, pending)
	return &Outbox{published: published, pending: pending}
}

// IncPublished counts a publish attempt. result is "published" or "failed".
func (o *Outbox) IncPublished(eventType, result string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// SetPending records the current backlog.
func (o *Outbox) SetPending(count int64) {
	if o == nil || o.pending == nil {
		return
	}
	o.pending.Set(float64(count))
}
