package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const outcomeOK = "ok"

// Lifecycle records order, payment and refund operation outcomes.
type Lifecycle struct {
	duration      *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	auditFailures prometheus.Counter
	signatureFail prometheus.Counter
}

// NewLifecycle registers the lifecycle metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	if reg == nil {
		return &Lifecycle{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifecycle_operation_duration_seconds",
		Help:    "Duration of order lifecycle operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_operation_total",
		Help: "Order lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	})
	signatureFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_signature_failures_total",
		Help: "Payment verifications rejected for signature mismatch.",
	})
	reg.MustRegister(duration, outcomes, auditFailures, signatureFail)
	return &Lifecycle{
		duration:      duration,
		outcomes:      outcomes,
		auditFailures: auditFailures,
		signatureFail: signatureFail,
	}
}

// Observe records the duration and outcome of operation. The outcome label is
// the business reason, the error code, or "ok".
func (l *Lifecycle) Observe(operation string, started time.Time, err error) {
	if l == nil || l.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	l.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	l.outcomes.WithLabelValues(op, outcomeLabel(err)).Inc()
}

// IncAuditFailure counts an audit write that was dropped.
func (l *Lifecycle) IncAuditFailure() {
	if l == nil || l.auditFailures == nil {
		return
	}
	l.auditFailures.Inc()
}

// IncSignatureFailure counts a rejected payment signature.
func (l *Lifecycle) IncSignatureFailure() {
	if l == nil || l.signatureFail == nil {
		return
	}
	l.signatureFail.Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return outcomeOK
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return string(pkgerrors.CodeInternal)
	}
	if reason := typed.Reason(); reason != "" {
		return string(reason)
	}
	return string(typed.Code())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
