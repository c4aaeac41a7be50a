package sync

import "time"

// Clock abstracts time for the queue, breaker, and limiter so backoff and
// cooldown schedules are testable without real timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
