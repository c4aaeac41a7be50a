package sync

import (
	stdsync "sync"
	"time"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// ---------------------------------------------------------------------------
// Limiter
// ---------------------------------------------------------------------------

// LimiterConfig is the published API quota for one provider: Capacity calls
// per Window.
type LimiterConfig struct {
	Capacity int
	Window   time.Duration
}

// DefaultLimiterConfig is the quota applied to providers without an
// explicit entry in configuration.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{Capacity: 60, Window: time.Minute}
}

// Limiter is a fixed-window admission gate for one provider. It throttles
// healthy traffic to respect the provider's quota; the circuit breaker, by
// contrast, stops traffic to a failing dependency. Both are consulted
// independently before every call. Safe for concurrent use.
type Limiter struct {
	mu stdsync.Mutex

	provider accounting.ProviderCode
	config   LimiterConfig
	clock    Clock

	windowStart time.Time
	remaining   int
}

// NewLimiter creates a limiter with a full window.
func NewLimiter(provider accounting.ProviderCode, config LimiterConfig, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &Limiter{
		provider:    provider,
		config:      config,
		clock:       clock,
		windowStart: clock.Now(),
		remaining:   config.Capacity,
	}
}

// TryAcquire admits one call if quota remains in the current window. On
// deny it returns the wait until the next window opens; the caller treats a
// deny as "not yet", never as a failure.
func (l *Limiter) TryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if elapsed := now.Sub(l.windowStart); elapsed >= l.config.Window {
		// Roll the window forward to the one containing now.
		windows := elapsed / l.config.Window
		l.windowStart = l.windowStart.Add(windows * l.config.Window)
		l.remaining = l.config.Capacity
	}

	if l.remaining > 0 {
		l.remaining--
		return true, 0
	}

	wait := l.config.Window - now.Sub(l.windowStart)
	return false, wait
}

// LimiterSnapshot reports limiter state for operational visibility.
type LimiterSnapshot struct {
	Provider        accounting.ProviderCode `json:"provider"`
	Capacity        int                     `json:"capacity"`
	RemainingTokens int                     `json:"remaining_tokens"`
	Window          time.Duration           `json:"window"`
	WindowStart     time.Time               `json:"window_start"`
}

// Snapshot returns the current limiter state.
func (l *Limiter) Snapshot() LimiterSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterSnapshot{
		Provider:        l.provider,
		Capacity:        l.config.Capacity,
		RemainingTokens: l.remaining,
		Window:          l.config.Window,
		WindowStart:     l.windowStart,
	}
}

// ---------------------------------------------------------------------------
// LimiterRegistry
// ---------------------------------------------------------------------------

// LimiterRegistry owns one limiter per provider, with distinct quotas per
// provider code.
type LimiterRegistry struct {
	mu       stdsync.RWMutex
	limiters map[accounting.ProviderCode]*Limiter
	quotas   map[accounting.ProviderCode]LimiterConfig
	fallback LimiterConfig
	clock    Clock
}

// NewLimiterRegistry creates a registry. quotas maps provider codes to
// their published quotas; providers without an entry use the fallback.
func NewLimiterRegistry(quotas map[accounting.ProviderCode]LimiterConfig, fallback LimiterConfig, clock Clock) *LimiterRegistry {
	if clock == nil {
		clock = SystemClock()
	}
	if quotas == nil {
		quotas = make(map[accounting.ProviderCode]LimiterConfig)
	}
	return &LimiterRegistry{
		limiters: make(map[accounting.ProviderCode]*Limiter),
		quotas:   quotas,
		fallback: fallback,
		clock:    clock,
	}
}

// ForProvider returns the limiter for a provider, creating it on first use.
func (r *LimiterRegistry) ForProvider(code accounting.ProviderCode) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[code]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.limiters[code]; ok {
		return l
	}
	config, ok := r.quotas[code]
	if !ok {
		config = r.fallback
	}
	l = NewLimiter(code, config, r.clock)
	r.limiters[code] = l
	return l
}

// Snapshots returns the state of every known limiter.
func (r *LimiterRegistry) Snapshots() []LimiterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]LimiterSnapshot, 0, len(r.limiters))
	for _, l := range r.limiters {
		snapshots = append(snapshots, l.Snapshot())
	}
	return snapshots
}
