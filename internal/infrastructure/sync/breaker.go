package sync

import (
	stdsync "sync"
	"time"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// ---------------------------------------------------------------------------
// Breaker states
// ---------------------------------------------------------------------------

// BreakerState is the circuit breaker state for one provider
type BreakerState string

const (
	// BreakerClosed passes calls through; failures are counted
	BreakerClosed BreakerState = "CLOSED"
	// BreakerOpen rejects calls immediately without contacting the provider
	BreakerOpen BreakerState = "OPEN"
	// BreakerHalfOpen allows exactly one probe call through
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string { return string(s) }

// ---------------------------------------------------------------------------
// BreakerConfig
// ---------------------------------------------------------------------------

// BreakerConfig holds circuit breaker tuning. Operational values, exposed
// through configuration rather than hard-coded.
type BreakerConfig struct {
	// FailureThreshold is the consecutive transient failure count that
	// opens the breaker
	FailureThreshold int
	// Cooldown is the initial OPEN duration before a probe is allowed
	Cooldown time.Duration
	// MaxCooldown caps the bounded-exponential cooldown growth on
	// repeated probe failures
	MaxCooldown time.Duration
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		MaxCooldown:      10 * time.Minute,
	}
}

// ---------------------------------------------------------------------------
// Breaker
// ---------------------------------------------------------------------------

// Breaker is the per-provider failure-tracking gate. Only consecutive
// transient failures count toward the threshold; permanent provider errors
// are not a dependency-health signal and never reach the breaker.
// Safe for concurrent use.
type Breaker struct {
	mu stdsync.Mutex

	provider accounting.ProviderCode
	config   BreakerConfig
	clock    Clock

	state               BreakerState
	consecutiveFailures int
	lastTransition      time.Time
	cooldown            time.Duration
	probeInFlight       bool
}

// NewBreaker creates a breaker in CLOSED state.
func NewBreaker(provider accounting.ProviderCode, config BreakerConfig, clock Clock) *Breaker {
	if clock == nil {
		clock = SystemClock()
	}
	return &Breaker{
		provider:       provider,
		config:         config,
		clock:          clock,
		state:          BreakerClosed,
		cooldown:       config.Cooldown,
		lastTransition: clock.Now(),
	}
}

// Allow reports whether a call to the provider may proceed. When the
// breaker is OPEN it returns false together with the time remaining until a
// probe will be permitted. In HALF_OPEN the single probe slot is claimed by
// the first caller; the claimant must settle it with RecordSuccess,
// RecordFailure, or ReleaseProbe.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case BreakerClosed:
		return true, 0
	case BreakerOpen:
		elapsed := now.Sub(b.lastTransition)
		if elapsed < b.cooldown {
			return false, b.cooldown - elapsed
		}
		// Cooldown elapsed: move to HALF_OPEN and hand out the probe slot.
		b.transition(BreakerHalfOpen, now)
		b.probeInFlight = true
		return true, 0
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false, b.cooldown
		}
		b.probeInFlight = true
		return true, 0
	default:
		return true, 0
	}
}

// RecordSuccess resets the consecutive failure counter. A successful probe
// closes the breaker and resets the cooldown to its initial value.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case BreakerHalfOpen:
		b.probeInFlight = false
		b.cooldown = b.config.Cooldown
		b.consecutiveFailures = 0
		b.transition(BreakerClosed, now)
	default:
		b.consecutiveFailures = 0
	}
}

// RecordFailure counts a transient failure. Reaching the threshold opens
// the breaker; a failed probe re-opens it with a grown cooldown so repeated
// probing does not thrash a struggling provider.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case BreakerClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.transition(BreakerOpen, now)
		}
	case BreakerHalfOpen:
		b.probeInFlight = false
		b.consecutiveFailures++
		b.cooldown *= 2
		if b.cooldown > b.config.MaxCooldown {
			b.cooldown = b.config.MaxCooldown
		}
		b.transition(BreakerOpen, now)
	case BreakerOpen:
		// Late failure from a call admitted before the breaker opened.
		b.consecutiveFailures++
	}
}

// ReleaseProbe returns an unclaimed probe slot without recording an
// outcome. Used when a probe call is deferred by the rate limiter before
// the provider is contacted.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.probeInFlight = false
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(state BreakerState, now time.Time) {
	b.state = state
	b.lastTransition = now
}

// BreakerSnapshot reports the breaker's state for operational visibility.
type BreakerSnapshot struct {
	Provider            accounting.ProviderCode `json:"provider"`
	State               BreakerState            `json:"state"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	Cooldown            time.Duration           `json:"cooldown"`
	LastTransition      time.Time               `json:"last_transition"`
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Provider:            b.provider,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		Cooldown:            b.cooldown,
		LastTransition:      b.lastTransition,
	}
}

// ---------------------------------------------------------------------------
// BreakerRegistry
// ---------------------------------------------------------------------------

// BreakerRegistry owns one breaker per provider. State is partitioned by
// provider so cross-provider operations never contend.
type BreakerRegistry struct {
	mu       stdsync.RWMutex
	breakers map[accounting.ProviderCode]*Breaker
	config   BreakerConfig
	clock    Clock
}

// NewBreakerRegistry creates a registry that lazily constructs breakers.
func NewBreakerRegistry(config BreakerConfig, clock Clock) *BreakerRegistry {
	if clock == nil {
		clock = SystemClock()
	}
	return &BreakerRegistry{
		breakers: make(map[accounting.ProviderCode]*Breaker),
		config:   config,
		clock:    clock,
	}
}

// ForProvider returns the breaker for a provider, creating it on first use.
func (r *BreakerRegistry) ForProvider(code accounting.ProviderCode) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[code]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[code]; ok {
		return b
	}
	b = NewBreaker(code, r.config, r.clock)
	r.breakers[code] = b
	return b
}

// Snapshots returns the state of every known breaker.
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]BreakerSnapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snapshots = append(snapshots, b.Snapshot())
	}
	return snapshots
}
