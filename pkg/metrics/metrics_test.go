package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestLifecycleOutcomesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	lc := NewLifecycle(reg)

	started := time.Now().Add(-50 * time.Millisecond)
	lc.Observe("order.create", started, nil)
	lc.Observe("order.create", started, pkgerrors.New(pkgerrors.CodeInsufficientStock, "out").WithReason(pkgerrors.ReasonInsufficientStock))
	lc.Observe("payment.verify", started, pkgerrors.New(pkgerrors.CodeNotFound, "gone"))
	lc.Observe("payment.verify", started, errors.New("db down"))
	lc.IncAuditFailure()
	lc.IncSignatureFailure()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expectCounter(t, mfs, "lifecycle_operation_total", 1, "operation", "order.create", "outcome", "ok")
	expectCounter(t, mfs, "lifecycle_operation_total", 1, "operation", "order.create", "outcome", "INSUFFICIENT_STOCK")
	expectCounter(t, mfs, "lifecycle_operation_total", 1, "operation", "payment.verify", "outcome", "NOT_FOUND")
	expectCounter(t, mfs, "lifecycle_operation_total", 1, "operation", "payment.verify", "outcome", "INTERNAL_ERROR")
	expectCounter(t, mfs, "audit_write_failures_total", 1)
	expectCounter(t, mfs, "payment_signature_failures_total", 1)

	if sum, err := fetchHistogramSum(mfs, "lifecycle_operation_duration_seconds", "operation", "order.create"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	lc := NewLifecycle(nil)
	lc.Observe("x", time.Now(), nil)
	lc.IncAuditFailure()

	var nilLC *Lifecycle
	nilLC.IncSignatureFailure()

	NewHTTP(nil).Observe(http.MethodGet, "/", 200, time.Millisecond)
	NewOutbox(nil).SetPending(3)
}

func TestHTTPAndOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	o := NewOutbox(reg)

	h.Observe(http.MethodPost, "/api/v1/orders", http.StatusCreated, 10*time.Millisecond)
	o.IncPublished("order_paid", "published")
	o.SetPending(4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expectCounter(t, mfs, "http_requests_total", 1, "method", "POST", "route", "/api/v1/orders", "status", "201")
	expectCounter(t, mfs, "outbox_publish_total", 1, "event_type", "order_paid", "result", "published")

	mf := findMetricFamily(mfs, "outbox_pending_events")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected pending gauge of 4")
	}
}

func expectCounter(t *testing.T, mfs []*dto.MetricFamily, name string, want float64, labels ...string) {
	t.Helper()
	got, err := fetchCounterValue(mfs, name, labels...)
	if err != nil {
		t.Fatalf("fetch %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("expected %s=%f, got %f", name, want, got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels ...string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels...) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels ...string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels...) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, labels ...string) bool {
	for i := 0; i+1 < len(labels); i += 2 {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == labels[i] && pair.GetValue() == labels[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := NewJobs(reg)

	jobs.ObserveJob("outbox-retention", 20*time.Millisecond, nil)
	jobs.ObserveJob("outbox-retention", time.Millisecond, errors.New("db down"))
	NewJobs(nil).ObserveJob("noop", time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expectCounter(t, mfs, "maintenance_job_runs_total", 1, "job", "outbox-retention", "result", "success")
	expectCounter(t, mfs, "maintenance_job_runs_total", 1, "job", "outbox-retention", "result", "failure")
}
