package tendergate

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricOTPResend)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("login_success = %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricOTPResend] != 1 {
		t.Fatalf("otp_resend = %d", snap.Counters[MetricOTPResend])
	}
	// Untouched counters are omitted from the snapshot.
	if _, ok := snap.Counters[MetricLogout]; ok {
		t.Fatal("zero counter present in snapshot")
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionEstablished)

	snap := m.Snapshot()
	m.Inc(MetricSessionEstablished)

	if snap.Counters[MetricSessionEstablished] != 1 {
		t.Fatalf("snapshot mutated after the fact: %d", snap.Counters[MetricSessionEstablished])
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	if got := len(m.Snapshot().Counters); got != 0 {
		t.Fatalf("disabled metrics recorded %d counters", got)
	}

	// Nil receivers are valid; the engine holds nil when metrics are off.
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if got := len(nilMetrics.Snapshot().Counters); got != 0 {
		t.Fatalf("nil metrics recorded %d counters", got)
	}
}

func TestMetricsOutOfRangeIDIgnored(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)
	m.Inc(MetricID(9999))
	if got := len(m.Snapshot().Counters); got != 0 {
		t.Fatalf("out-of-range increments recorded %d counters", got)
	}
}

func TestMetricNames(t *testing.T) {
	for id := MetricID(0); id < metricIDCount; id++ {
		if id.Name() == "" || id.Name() == "unknown" {
			t.Fatalf("metric %d has no name", id)
		}
	}
	if metricIDCount.Name() != "unknown" {
		t.Fatalf("out-of-range name %q", metricIDCount.Name())
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricPermissionFetchSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricPermissionFetchSuccess]; got != 8000 {
		t.Fatalf("permission_fetch_success = %d, want 8000", got)
	}
}
