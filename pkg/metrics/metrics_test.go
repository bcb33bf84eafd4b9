package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "recurring-charges"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncLockSkipped(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, name := range []string{"cron_job_success_total", "cron_job_failure_total", "cron_job_lock_skipped_total"} {
		if got, err := fetchCounterValue(mfs, name, "job", job); err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		} else if got != 1 {
			t.Fatalf("expected %s=1, got %f", name, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestBillingMetricsCountsAttemptsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)
	m.IncChargeAttempt(ChargeResultApproved)
	m.IncChargeAttempt(ChargeResultDeclined)
	m.IncChargeAttempt(ChargeResultDeclined)
	m.IncRetryScheduled()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "billing_charge_attempts_total", "result", ChargeResultDeclined); err != nil {
		t.Fatalf("fetch declined: %v", err)
	} else if got != 2 {
		t.Fatalf("expected declined=2, got %f", got)
	}
}

func TestWebhookMetricsCountsBySource(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.IncReceived("sumit")
	m.IncDuplicate("sumit")
	m.IncProcessed("sumit", "processed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_duplicate_total", "source", "sumit"); err != nil {
		t.Fatalf("fetch duplicates: %v", err)
	} else if got != 1 {
		t.Fatalf("expected duplicates=1, got %f", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.IncSuccess("anything")
	b := NewBillingMetrics(nil)
	b.IncChargeAttempt(ChargeResultError)
	w := NewWebhookMetrics(nil)
	w.IncReceived("crm")
	bk := NewBulkMetrics(nil)
	bk.IncAction("charge_subscription", "success")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
