package handler

import (
	"github.com/gin-gonic/gin"

	syncinfra "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/sync"
)

// SyncMetricsHandler exposes the operational state of the sync pipeline:
// queue depth, breaker and limiter state per provider, and outcome counters.
type SyncMetricsHandler struct {
	BaseHandler
	queue    *syncinfra.Queue
	breakers *syncinfra.BreakerRegistry
	limiters *syncinfra.LimiterRegistry
	outcomes *syncinfra.Metrics
}

// NewSyncMetricsHandler creates a new SyncMetricsHandler
func NewSyncMetricsHandler(
	queue *syncinfra.Queue,
	breakers *syncinfra.BreakerRegistry,
	limiters *syncinfra.LimiterRegistry,
	outcomes *syncinfra.Metrics,
) *SyncMetricsHandler {
	return &SyncMetricsHandler{
		queue:    queue,
		breakers: breakers,
		limiters: limiters,
		outcomes: outcomes,
	}
}

// QueueStatsResponse represents queue state
type QueueStatsResponse struct {
	Depth            int     `json:"depth"`
	OldestAgeSeconds float64 `json:"oldest_age_seconds"`
}

// SyncMetricsResponse represents the full metrics surface
type SyncMetricsResponse struct {
	Queue      QueueStatsResponse          `json:"queue"`
	Outcomes   syncinfra.MetricsSnapshot   `json:"outcomes"`
	Breakers   []syncinfra.BreakerSnapshot `json:"breakers"`
	RateLimits []syncinfra.LimiterSnapshot `json:"rate_limits"`
}

// GetSyncMetrics returns a point-in-time view of the sync pipeline
func (h *SyncMetricsHandler) GetSyncMetrics(c *gin.Context) {
	response := SyncMetricsResponse{
		Queue: QueueStatsResponse{
			Depth:            h.queue.Depth(),
			OldestAgeSeconds: h.queue.OldestAge().Seconds(),
		},
		Outcomes:   h.outcomes.Snapshot(),
		Breakers:   h.breakers.Snapshots(),
		RateLimits: h.limiters.Snapshots(),
	}

	h.Success(c, response)
}
