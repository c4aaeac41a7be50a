package sync

import (
	stdsync "sync"
	"time"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// Queue holds pending sync jobs and yields them in priority order, honoring
// each job's earliest-eligible timestamp. It holds at most one job per
// (invoice, provider) key: enqueueing an equivalent job updates the existing
// entry in place, which is the primary defense against double-submission
// from rapid duplicate user clicks.
//
// Dequeue is a non-blocking poll; the orchestrator workers sleep between
// polls.
type Queue struct {
	mu      stdsync.Mutex
	entries map[accounting.JobKey]*accounting.SyncJob
	clock   Clock
}

// NewQueue creates an empty queue.
func NewQueue(clock Clock) *Queue {
	if clock == nil {
		clock = SystemClock()
	}
	return &Queue{
		entries: make(map[accounting.JobKey]*accounting.SyncJob),
		clock:   clock,
	}
}

// Enqueue accepts a job. If a job for the same (invoice, provider) is
// already pending, the existing entry is updated in place: priority is
// raised if the new job's is higher, eligibility is brought forward, and the
// original enqueue time is kept for FIFO fairness. Returns the job that is
// actually queued.
func (q *Queue) Enqueue(job *accounting.SyncJob) *accounting.SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.entries[job.Key()]; ok {
		if job.Priority > existing.Priority {
			existing.Priority = job.Priority
		}
		if job.EligibleAt.Before(existing.EligibleAt) {
			existing.EligibleAt = job.EligibleAt
		}
		return existing
	}

	q.entries[job.Key()] = job
	return job
}

// Dequeue removes and returns the highest-priority job whose eligibility
// timestamp has passed; ties are broken by enqueue time (FIFO). Returns nil
// if no eligible job exists.
func (q *Queue) Dequeue() *accounting.SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	var best *accounting.SyncJob
	for _, job := range q.entries {
		if job.EligibleAt.After(now) {
			continue
		}
		if best == nil || jobBefore(job, best) {
			best = job
		}
	}
	if best == nil {
		return nil
	}
	delete(q.entries, best.Key())
	return best
}

// jobBefore reports whether a should be dequeued ahead of b.
func jobBefore(a, b *accounting.SyncJob) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

// Requeue re-inserts a dequeued job with a new eligibility delay. The
// caller decides whether the attempt counter advances: retries record an
// attempt first, deferrals do not.
func (q *Queue) Requeue(job *accounting.SyncJob, delay time.Duration) {
	job.Defer(delay, q.clock.Now())

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[job.Key()] = job
}

// Contains reports whether a job for the key is currently queued.
func (q *Queue) Contains(key accounting.JobKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[key]
	return ok
}

// Depth returns the number of queued jobs. Exposed as a gauge.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// OldestAge returns the age of the oldest queued job, zero when empty.
// Exposed as a gauge.
func (q *Queue) OldestAge() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	var oldest time.Duration
	for _, job := range q.entries {
		if age := now.Sub(job.EnqueuedAt); age > oldest {
			oldest = age
		}
	}
	return oldest
}
