package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		MaxCooldown:      4 * time.Minute,
	}
}

func TestBreaker_OpensAtExactThreshold(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, BreakerClosed, b.Snapshot().State, "failure %d", i+1)
	}

	// Exactly the 5th consecutive failure opens the breaker.
	b.RecordFailure()
	snap := b.Snapshot()
	assert.Equal(t, BreakerOpen, snap.State)
	assert.Equal(t, 5, snap.ConsecutiveFailures)

	allowed, retryAfter := b.Allow()
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, 30*time.Second)
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	assert.Equal(t, 0, b.Snapshot().ConsecutiveFailures)

	// Only consecutive failures count: four more still don't open it.
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.Snapshot().State)
}

func TestBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.Equal(t, BreakerOpen, b.Snapshot().State)

	clock.Advance(30 * time.Second)

	// First caller after cooldown gets the probe slot.
	allowed, _ := b.Allow()
	assert.True(t, allowed)
	assert.Equal(t, BreakerHalfOpen, b.Snapshot().State)

	// Second caller is rejected while the probe is in flight.
	allowed, _ = b.Allow()
	assert.False(t, allowed)
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)
	allowed, _ := b.Allow()
	require.True(t, allowed)

	b.RecordSuccess()
	snap := b.Snapshot()
	assert.Equal(t, BreakerClosed, snap.State)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, snap.Cooldown)
}

func TestBreaker_ProbeFailureGrowsCooldown(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	// First probe failure: cooldown doubles to 60s.
	clock.Advance(30 * time.Second)
	allowed, _ := b.Allow()
	require.True(t, allowed)
	b.RecordFailure()

	snap := b.Snapshot()
	assert.Equal(t, BreakerOpen, snap.State)
	assert.Equal(t, time.Minute, snap.Cooldown)

	// Still open before the grown cooldown elapses.
	clock.Advance(30 * time.Second)
	allowed, _ = b.Allow()
	assert.False(t, allowed)

	// Second probe failure: 120s. Third: capped at 240s.
	clock.Advance(30 * time.Second)
	allowed, _ = b.Allow()
	require.True(t, allowed)
	b.RecordFailure()
	assert.Equal(t, 2*time.Minute, b.Snapshot().Cooldown)

	clock.Advance(2 * time.Minute)
	allowed, _ = b.Allow()
	require.True(t, allowed)
	b.RecordFailure()
	assert.Equal(t, 4*time.Minute, b.Snapshot().Cooldown)

	clock.Advance(4 * time.Minute)
	allowed, _ = b.Allow()
	require.True(t, allowed)
	b.RecordFailure()
	assert.Equal(t, 4*time.Minute, b.Snapshot().Cooldown, "cooldown growth is capped")
}

func TestBreaker_ReleaseProbe(t *testing.T) {
	clock := newFakeClock(time.Now())
	b := NewBreaker(accounting.ProviderCodeXero, testBreakerConfig(), clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)
	allowed, _ := b.Allow()
	require.True(t, allowed)

	// The probe never reached the provider (rate limited); releasing the
	// slot lets the next caller probe instead.
	b.ReleaseProbe()
	allowed, _ = b.Allow()
	assert.True(t, allowed)
}

func TestBreakerRegistry_PartitionsByProvider(t *testing.T) {
	clock := newFakeClock(time.Now())
	r := NewBreakerRegistry(testBreakerConfig(), clock)

	xero := r.ForProvider(accounting.ProviderCodeXero)
	myob := r.ForProvider(accounting.ProviderCodeMYOB)
	assert.NotSame(t, xero, myob)
	assert.Same(t, xero, r.ForProvider(accounting.ProviderCodeXero))

	for i := 0; i < 5; i++ {
		xero.RecordFailure()
	}
	assert.Equal(t, BreakerOpen, xero.Snapshot().State)
	assert.Equal(t, BreakerClosed, myob.Snapshot().State)

	assert.Len(t, r.Snapshots(), 2)
}
