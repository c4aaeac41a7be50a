package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

func newQueueJob(clock Clock, provider accounting.ProviderCode, priority accounting.JobPriority) *accounting.SyncJob {
	return accounting.NewSyncJob(uuid.New(), uuid.New(), provider, priority, clock.Now())
}

func TestQueue_DequeueEmptyReturnsNil(t *testing.T) {
	q := NewQueue(newFakeClock(time.Now()))
	assert.Nil(t, q.Dequeue())
}

func TestQueue_HighPriorityFirst(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	normal := newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityNormal)
	q.Enqueue(normal)

	clock.Advance(time.Second)
	high := newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityHigh)
	q.Enqueue(high)

	// HIGH dequeues before NORMAL even though it was enqueued later.
	first := q.Dequeue()
	require.NotNil(t, first)
	assert.Equal(t, high.ID, first.ID)

	second := q.Dequeue()
	require.NotNil(t, second)
	assert.Equal(t, normal.ID, second.ID)
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	first := newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityNormal)
	q.Enqueue(first)
	clock.Advance(time.Millisecond)
	second := newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityNormal)
	q.Enqueue(second)

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestQueue_HonorsEligibility(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	job := newQueueJob(clock, accounting.ProviderCodeMYOB, accounting.JobPriorityNormal)
	q.Enqueue(job)
	q.Requeue(q.Dequeue(), 10*time.Second)

	// Not yet eligible
	assert.Nil(t, q.Dequeue())

	clock.Advance(10 * time.Second)
	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestQueue_EnqueueDeduplicates(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	invoiceID := uuid.New()
	tenantID := uuid.New()
	a := accounting.NewSyncJob(tenantID, invoiceID, accounting.ProviderCodeXero, accounting.JobPriorityNormal, clock.Now())
	q.Enqueue(a)

	// Rapid duplicate click: same invoice and provider.
	b := accounting.NewSyncJob(tenantID, invoiceID, accounting.ProviderCodeXero, accounting.JobPriorityHigh, clock.Now())
	queued := q.Enqueue(b)

	// The existing entry was updated in place, not duplicated.
	assert.Equal(t, a.ID, queued.ID)
	assert.Equal(t, accounting.JobPriorityHigh, queued.Priority)
	assert.Equal(t, 1, q.Depth())

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Nil(t, q.Dequeue())
}

func TestQueue_DedupeBringsEligibilityForward(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	job := newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityNormal)
	q.Enqueue(job)
	q.Requeue(q.Dequeue(), time.Minute)

	// A new manual enqueue for the same pair makes the job eligible now.
	manual := accounting.NewSyncJob(job.TenantID, job.InvoiceID, job.Provider, accounting.JobPriorityHigh, clock.Now())
	q.Enqueue(manual)

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestQueue_DepthAndOldestAge(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	assert.Equal(t, 0, q.Depth())
	assert.Equal(t, time.Duration(0), q.OldestAge())

	q.Enqueue(newQueueJob(clock, accounting.ProviderCodeXero, accounting.JobPriorityNormal))
	clock.Advance(30 * time.Second)
	q.Enqueue(newQueueJob(clock, accounting.ProviderCodeMYOB, accounting.JobPriorityNormal))

	assert.Equal(t, 2, q.Depth())
	assert.Equal(t, 30*time.Second, q.OldestAge())
}

func TestQueue_Contains(t *testing.T) {
	clock := newFakeClock(time.Now())
	q := NewQueue(clock)

	job := newQueueJob(clock, accounting.ProviderCodeQuickBooks, accounting.JobPriorityNormal)
	q.Enqueue(job)

	assert.True(t, q.Contains(job.Key()))
	q.Dequeue()
	assert.False(t, q.Contains(job.Key()))
}
