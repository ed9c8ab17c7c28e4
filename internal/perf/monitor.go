// Package perf records completion metrics and computes rolling
// statistics over a bounded, time-windowed history.
package perf

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/rewriter/internal/core/domain"
)

// Metric is one timestamped completion record.
type Metric struct {
	At           time.Time
	Duration     time.Duration
	PromptSize   int
	ResponseSize int
	Retries      int
	Success      bool
	Code         domain.ErrorCode
}

// PerformanceStats is computed on demand over the retained window.
type PerformanceStats struct {
	Requests      int           `json:"requests"`
	Errors        int           `json:"errors"`
	ErrorRate     float64       `json:"error_rate"`
	AvgLatency    time.Duration `json:"avg_latency"`
	P95Latency    time.Duration `json:"p95_latency"`
	P99Latency    time.Duration `json:"p99_latency"`
	PerMinute     float64       `json:"per_minute"`
	WindowMinutes float64       `json:"window_minutes"`
}

// Thresholds configure health checks and recommendations.
type Thresholds struct {
	AcceptableAvgLatency time.Duration
	MaxP99Latency        time.Duration
	MaxErrorRate         float64
}

// DefaultThresholds provides conservative defaults.
var DefaultThresholds = Thresholds{
	AcceptableAvgLatency: 3 * time.Second,
	MaxP99Latency:        15 * time.Second,
	MaxErrorRate:         0.3,
}

const (
	maxEntries      = 1000
	retentionWindow = time.Hour
	cleanupInterval = 5 * time.Minute
)

// Monitor holds the bounded history. Eviction runs lazily on record,
// at most once per cleanupInterval; the entry cap bounds memory
// regardless of load.
type Monitor struct {
	mu          sync.RWMutex
	entries     []Metric
	lastCleanup time.Time
	thresholds  Thresholds
}

// NewMonitor creates a monitor with the given thresholds.
func NewMonitor(thresholds Thresholds) *Monitor {
	if thresholds.AcceptableAvgLatency <= 0 {
		thresholds.AcceptableAvgLatency = DefaultThresholds.AcceptableAvgLatency
	}
	if thresholds.MaxP99Latency <= 0 {
		thresholds.MaxP99Latency = DefaultThresholds.MaxP99Latency
	}
	if thresholds.MaxErrorRate <= 0 {
		thresholds.MaxErrorRate = DefaultThresholds.MaxErrorRate
	}
	return &Monitor{
		entries:     make([]Metric, 0, 128),
		lastCleanup: time.Now(),
		thresholds:  thresholds,
	}
}

// Record appends a completion record.
func (m *Monitor) Record(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metric.At.IsZero() {
		metric.At = time.Now()
	}
	m.entries = append(m.entries, metric)
	m.cleanupLocked(false)
}

// cleanupLocked evicts entries older than the retention window and
// enforces the entry cap. Time-based eviction is rate limited; the cap
// is enforced on every call.
func (m *Monitor) cleanupLocked(force bool) {
	now := time.Now()
	if force || now.Sub(m.lastCleanup) >= cleanupInterval {
		cutoff := now.Add(-retentionWindow)
		kept := m.entries[:0]
		for _, e := range m.entries {
			if e.At.After(cutoff) {
				kept = append(kept, e)
			}
		}
		m.entries = kept
		m.lastCleanup = now
	}
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}

// Stats computes rolling statistics over the retained window.
func (m *Monitor) Stats() PerformanceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := PerformanceStats{Requests: len(m.entries)}
	if len(m.entries) == 0 {
		return stats
	}

	latencies := make([]time.Duration, 0, len(m.entries))
	var total time.Duration
	oldest := m.entries[0].At
	for _, e := range m.entries {
		latencies = append(latencies, e.Duration)
		total += e.Duration
		if !e.Success {
			stats.Errors++
		}
		if e.At.Before(oldest) {
			oldest = e.At
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	stats.ErrorRate = float64(stats.Errors) / float64(stats.Requests)
	stats.AvgLatency = total / time.Duration(stats.Requests)
	stats.P95Latency = percentile(latencies, 0.95)
	stats.P99Latency = percentile(latencies, 0.99)

	minutes := time.Since(oldest).Minutes()
	if minutes < 1 {
		minutes = 1
	}
	stats.WindowMinutes = minutes
	stats.PerMinute = float64(stats.Requests) / minutes
	return stats
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Recommendations returns rule-based tuning suggestions based on the
// current window.
func (m *Monitor) Recommendations() []string {
	stats := m.Stats()

	var recs []string
	if stats.Requests == 0 {
		return recs
	}
	if stats.AvgLatency > m.thresholds.AcceptableAvgLatency {
		recs = append(recs, fmt.Sprintf(
			"average latency %s exceeds %s; consider shorter prompts or a smaller completion size",
			stats.AvgLatency.Round(time.Millisecond), m.thresholds.AcceptableAvgLatency))
	}
	if stats.P99Latency > m.thresholds.MaxP99Latency {
		recs = append(recs, fmt.Sprintf(
			"p99 latency %s exceeds %s; consider lowering the request timeout or max concurrency",
			stats.P99Latency.Round(time.Millisecond), m.thresholds.MaxP99Latency))
	}
	if stats.ErrorRate > m.thresholds.MaxErrorRate {
		recs = append(recs, fmt.Sprintf(
			"error rate %.0f%% exceeds %.0f%%; check completion API health and retry policy",
			stats.ErrorRate*100, m.thresholds.MaxErrorRate*100))
	}
	return recs
}

// Healthy reports whether latency and error rate are inside thresholds.
func (m *Monitor) Healthy() bool {
	stats := m.Stats()
	if stats.Requests == 0 {
		return true
	}
	return stats.AvgLatency <= m.thresholds.AcceptableAvgLatency &&
		stats.ErrorRate <= m.thresholds.MaxErrorRate
}
