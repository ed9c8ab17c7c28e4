package perf

import (
	"testing"
	"time"

	"github.com/vietddude/rewriter/internal/core/domain"
)

func TestStats_Empty(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	stats := m.Stats()
	if stats.Requests != 0 || stats.ErrorRate != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}
	if !m.Healthy() {
		t.Error("empty monitor should be healthy")
	}
}

func TestStats_Computation(t *testing.T) {
	m := NewMonitor(DefaultThresholds)

	for i := 0; i < 8; i++ {
		m.Record(Metric{Duration: 100 * time.Millisecond, Success: true})
	}
	m.Record(Metric{Duration: 500 * time.Millisecond, Success: false, Code: domain.ErrTimeout})
	m.Record(Metric{Duration: 900 * time.Millisecond, Success: false, Code: domain.ErrInternal})

	stats := m.Stats()
	if stats.Requests != 10 {
		t.Errorf("Requests = %d, want 10", stats.Requests)
	}
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2", stats.Errors)
	}
	if stats.ErrorRate != 0.2 {
		t.Errorf("ErrorRate = %v, want 0.2", stats.ErrorRate)
	}
	if stats.P99Latency != 900*time.Millisecond {
		t.Errorf("P99 = %v, want 900ms", stats.P99Latency)
	}
	if stats.AvgLatency <= 100*time.Millisecond {
		t.Errorf("AvgLatency = %v, want > 100ms", stats.AvgLatency)
	}
}

func TestRecord_CapsEntries(t *testing.T) {
	m := NewMonitor(DefaultThresholds)

	for i := 0; i < maxEntries+500; i++ {
		m.Record(Metric{Duration: time.Millisecond, Success: true})
	}

	if stats := m.Stats(); stats.Requests > maxEntries {
		t.Errorf("retained %d entries, cap is %d", stats.Requests, maxEntries)
	}
}

func TestCleanup_EvictsOldEntries(t *testing.T) {
	m := NewMonitor(DefaultThresholds)

	m.Record(Metric{At: time.Now().Add(-2 * time.Hour), Duration: time.Second, Success: true})
	m.Record(Metric{Duration: time.Millisecond, Success: true})

	m.mu.Lock()
	m.cleanupLocked(true)
	m.mu.Unlock()

	if stats := m.Stats(); stats.Requests != 1 {
		t.Errorf("Requests = %d, want 1 after eviction", stats.Requests)
	}
}

func TestRecommendations_HighLatency(t *testing.T) {
	m := NewMonitor(Thresholds{
		AcceptableAvgLatency: 50 * time.Millisecond,
		MaxP99Latency:        100 * time.Millisecond,
		MaxErrorRate:         0.5,
	})

	for i := 0; i < 5; i++ {
		m.Record(Metric{Duration: 200 * time.Millisecond, Success: true})
	}

	recs := m.Recommendations()
	if len(recs) == 0 {
		t.Fatal("expected latency recommendations")
	}
	if m.Healthy() {
		t.Error("monitor above latency threshold should be unhealthy")
	}
}

func TestRecommendations_QuietWindow(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	if recs := m.Recommendations(); len(recs) != 0 {
		t.Errorf("recommendations with no traffic = %v, want none", recs)
	}
}

func TestHealthy_ErrorRate(t *testing.T) {
	m := NewMonitor(Thresholds{
		AcceptableAvgLatency: time.Second,
		MaxP99Latency:        time.Second,
		MaxErrorRate:         0.3,
	})

	for i := 0; i < 5; i++ {
		m.Record(Metric{Duration: time.Millisecond, Success: false, Code: domain.ErrAPIUnavailable})
	}
	for i := 0; i < 5; i++ {
		m.Record(Metric{Duration: time.Millisecond, Success: true})
	}

	if m.Healthy() {
		t.Error("50% error rate should be unhealthy at 30% threshold")
	}
}
