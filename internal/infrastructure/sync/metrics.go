package sync

import (
	stdsync "sync"
	"sync/atomic"
	"time"
)

// Metrics tracks sync outcomes for the operational dashboard: lifetime
// counters, success/failure counts over a rolling window, and average sync
// duration.
type Metrics struct {
	// lifetime counters
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Retried   atomic.Int64
	Deferred  atomic.Int64

	totalDurationNanos atomic.Int64
	durationSamples    atomic.Int64

	mu       stdsync.Mutex
	window   time.Duration
	clock    Clock
	outcomes []outcome
}

type outcome struct {
	at      time.Time
	success bool
}

// NewMetrics creates a metrics collector with the given rolling window.
func NewMetrics(window time.Duration, clock Clock) *Metrics {
	if clock == nil {
		clock = SystemClock()
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Metrics{window: window, clock: clock}
}

// RecordSuccess records a completed sync and its duration.
func (m *Metrics) RecordSuccess(duration time.Duration) {
	m.Succeeded.Add(1)
	m.totalDurationNanos.Add(int64(duration))
	m.durationSamples.Add(1)
	m.record(true)
}

// RecordFailure records a terminal sync failure.
func (m *Metrics) RecordFailure() {
	m.Failed.Add(1)
	m.record(false)
}

// RecordRetry records a transient failure scheduled for retry.
func (m *Metrics) RecordRetry() {
	m.Retried.Add(1)
}

// RecordDeferral records a circuit-open or rate-limited deferral. Deferrals
// are not failures and never count in the rolling failure rate.
func (m *Metrics) RecordDeferral() {
	m.Deferred.Add(1)
}

func (m *Metrics) record(success bool) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome{at: now, success: success})
	m.prune(now)
}

// prune must be called with the lock held.
func (m *Metrics) prune(now time.Time) {
	cutoff := now.Add(-m.window)
	i := 0
	for ; i < len(m.outcomes); i++ {
		if m.outcomes[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		m.outcomes = m.outcomes[i:]
	}
}

// MetricsSnapshot is a point-in-time view for the metrics surface.
type MetricsSnapshot struct {
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	Retried         int64         `json:"retried"`
	Deferred        int64         `json:"deferred"`
	WindowSucceeded int64         `json:"window_succeeded"`
	WindowFailed    int64         `json:"window_failed"`
	AvgSyncDuration time.Duration `json:"avg_sync_duration"`
}

// Snapshot returns current counters and rolling-window counts.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Succeeded: m.Succeeded.Load(),
		Failed:    m.Failed.Load(),
		Retried:   m.Retried.Load(),
		Deferred:  m.Deferred.Load(),
	}
	if samples := m.durationSamples.Load(); samples > 0 {
		snap.AvgSyncDuration = time.Duration(m.totalDurationNanos.Load() / samples)
	}

	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(now)
	for _, o := range m.outcomes {
		if o.success {
			snap.WindowSucceeded++
		} else {
			snap.WindowFailed++
		}
	}
	return snap
}
