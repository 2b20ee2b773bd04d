package authguard

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledCountsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricThreatBlocked)
	m.Observe(MetricScoreLatency, time.Second)
	if m.Value(MetricThreatBlocked) != 0 {
		t.Fatal("nil metrics reported a value")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, each = 16, 2500
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				m.Inc(MetricRefreshReuseDetected)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshReuseDetected); got != workers*each {
		t.Fatalf("expected %d, got %d", workers*each, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		time.Millisecond,
		8 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		90 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		2 * time.Second,
	} {
		m.Observe(MetricScoreLatency, d)
	}
	// Counters never keep histograms.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricScoreLatency]
	if len(buckets) != HistogramBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistogramBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter metric grew a histogram")
	}
}

func TestValidateAccessRecordsLatencyWithoutStoreCalls(t *testing.T) {
	env := newTestEnv(t)
	tokens := env.login(t, usIP).Tokens

	env.creds.failGet = ErrStoreFailure
	if _, err := env.engine.ValidateAccess(context.Background(), tokens.AccessToken, "GET", "/api/driver/trips"); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	var total uint64
	for _, v := range env.engine.MetricsSnapshot().Histograms[MetricValidateLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}

func TestEngineCountsOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.login(t, usIP)
	_, _ = env.engine.VerifyCredentials(ctx, "alice@example.com", "Wrong-Password-1!")

	snap := env.engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricLoginSuccess:   1,
		MetricLoginFailure:   1,
		MetricSessionCreated: 1,
		MetricTokensIssued:   1,
	}
	for id, v := range want {
		if got := snap.Counters[id]; got != v {
			t.Errorf("metric %d: expected %d, got %d", id, v, got)
		}
	}
}
