package accounting

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// JobPriority
// ---------------------------------------------------------------------------

// JobPriority orders sync jobs in the queue. HIGH jobs (manual retries) are
// always dequeued before NORMAL ones within a provider.
type JobPriority int

const (
	// JobPriorityNormal is the default priority for route-triggered syncs
	JobPriorityNormal JobPriority = 0
	// JobPriorityHigh is used for manual retries
	JobPriorityHigh JobPriority = 1
)

// IsValid returns true if the priority is valid
func (p JobPriority) IsValid() bool {
	return p == JobPriorityNormal || p == JobPriorityHigh
}

// String returns the string representation of JobPriority
func (p JobPriority) String() string {
	if p == JobPriorityHigh {
		return "HIGH"
	}
	return "NORMAL"
}

// ---------------------------------------------------------------------------
// SyncJob
// ---------------------------------------------------------------------------

// SyncJob is an ephemeral queue entry representing "push this invoice to
// this provider". It is created by a route handler or a failure-triggered
// re-enqueue and destroyed on terminal success or terminal failure.
type SyncJob struct {
	// ID is the unique identifier of the job
	ID uuid.UUID
	// TenantID is the organization the invoice belongs to
	TenantID uuid.UUID
	// InvoiceID identifies the invoice to push
	InvoiceID uuid.UUID
	// Provider is the target accounting platform
	Provider ProviderCode
	// Priority orders the job relative to others for the same provider
	Priority JobPriority
	// Attempts counts provider calls made for this job. Deferrals (circuit
	// open, rate limited) do not increment it.
	Attempts int
	// EligibleAt is the earliest time the job may be dequeued
	EligibleAt time.Time
	// EnqueuedAt is when the job was first enqueued; FIFO tiebreak
	EnqueuedAt time.Time
}

// NewSyncJob creates a job eligible for immediate dequeue.
func NewSyncJob(tenantID, invoiceID uuid.UUID, provider ProviderCode, priority JobPriority, now time.Time) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		InvoiceID:  invoiceID,
		Provider:   provider,
		Priority:   priority,
		EligibleAt: now,
		EnqueuedAt: now,
	}
}

// Key identifies the (invoice, provider) pair the job belongs to. The queue
// holds at most one job per key.
func (j *SyncJob) Key() JobKey {
	return JobKey{InvoiceID: j.InvoiceID, Provider: j.Provider}
}

// Defer pushes the job's eligibility forward without counting an attempt.
// Used for circuit-open and rate-limited deferrals.
func (j *SyncJob) Defer(delay time.Duration, now time.Time) {
	j.EligibleAt = now.Add(delay)
}

// RecordAttempt increments the attempt counter after a provider call.
func (j *SyncJob) RecordAttempt() {
	j.Attempts++
}

// UncountAttempt reverses RecordAttempt for a call that never completed,
// such as one interrupted by shutdown. The retry budget only pays for
// answers from the provider.
func (j *SyncJob) UncountAttempt() {
	if j.Attempts > 0 {
		j.Attempts--
	}
}

// JobKey is the dedupe key for queued jobs.
type JobKey struct {
	InvoiceID uuid.UUID
	Provider  ProviderCode
}

// ---------------------------------------------------------------------------
// BackoffPolicy
// ---------------------------------------------------------------------------

// BackoffPolicy computes retry delays for transient failures: base delay
// doubled per attempt, capped, plus jitter. All values are operational
// tuning exposed through configuration.
type BackoffPolicy struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth
	MaxDelay time.Duration
	// MaxRetries is the retry budget before the invoice is marked FAILED
	MaxRetries int
	// JitterFraction adds up to this fraction of the computed delay as
	// random jitter (0 disables jitter, useful in tests)
	JitterFraction float64
	// Rand supplies jitter randomness; nil uses the global source
	Rand *rand.Rand
}

// DefaultBackoffPolicy returns the default retry policy.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:      2 * time.Second,
		MaxDelay:       5 * time.Minute,
		MaxRetries:     5,
		JitterFraction: 0.2,
	}
}

// Delay returns the backoff delay for the given attempt count (1-based: the
// delay applied after the attempt-th failure).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFraction > 0 {
		span := float64(delay) * p.JitterFraction
		if p.Rand != nil {
			delay += time.Duration(p.Rand.Float64() * span)
		} else {
			delay += time.Duration(rand.Float64() * span)
		}
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return delay
}

// Exhausted returns true when the retry budget is spent for the given
// attempt count.
func (p BackoffPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxRetries
}
