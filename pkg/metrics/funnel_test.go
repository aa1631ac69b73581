package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestFunnelMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewFunnelMetrics(reg)

	metrics.IncCartWrite("created")
	metrics.IncCartWrite("merged")
	metrics.IncCartWrite("merged")
	metrics.IncOwnerMismatch()
	metrics.IncDispatch("sent")
	metrics.ObserveDispatchDuration(250 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "funnel_cart_writes_total", "outcome", "merged"); err != nil {
		t.Fatalf("fetch cart writes: %v", err)
	} else if got != 2 {
		t.Fatalf("expected merged=2, got %f", got)
	}

	if got, err := fetchPlainCounterValue(mfs, "funnel_owner_mismatch_total"); err != nil {
		t.Fatalf("fetch owner mismatch: %v", err)
	} else if got != 1 {
		t.Fatalf("expected mismatch=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "conversion_dispatch_total", "result", "sent"); err != nil {
		t.Fatalf("fetch dispatch: %v", err)
	} else if got != 1 {
		t.Fatalf("expected sent=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "conversion_dispatch_duration_seconds"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestFunnelMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewFunnelMetrics(nil)
	metrics.IncCartWrite("created")
	metrics.IncOwnerMismatch()
	metrics.IncDispatch("failed")
	metrics.ObserveDispatchDuration(time.Second)
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

func fetchPlainCounterValue(mfs []*dto.MetricFamily, name string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	if len(mf.GetMetric()) == 0 {
		return 0, fmt.Errorf("metric %q has no samples", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("histogram %q not found", name)
	}
	if len(mf.GetMetric()) == 0 {
		return 0, fmt.Errorf("histogram %q has no samples", name)
	}
	return mf.GetMetric()[0].GetHistogram().GetSampleSum(), nil
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
