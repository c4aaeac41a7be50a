package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	syncinfra "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/sync"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/interfaces/http/dto"
)

func TestSyncMetricsHandler_GetSyncMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	queue := syncinfra.NewQueue(nil)
	breakers := syncinfra.NewBreakerRegistry(syncinfra.DefaultBreakerConfig(), nil)
	limiters := syncinfra.NewLimiterRegistry(nil, syncinfra.DefaultLimiterConfig(), nil)
	outcomes := syncinfra.NewMetrics(time.Minute, nil)

	queue.Enqueue(accounting.NewSyncJob(uuid.New(), uuid.New(),
		accounting.ProviderCodeXero, accounting.JobPriorityNormal, time.Now()))

	breaker := breakers.ForProvider(accounting.ProviderCodeMYOB)
	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}

	limiter := limiters.ForProvider(accounting.ProviderCodeXero)
	allowed, _ := limiter.TryAcquire()
	require.True(t, allowed)

	outcomes.RecordSuccess(120 * time.Millisecond)
	outcomes.RecordFailure()
	outcomes.RecordDeferral()

	h := NewSyncMetricsHandler(queue, breakers, limiters, outcomes)

	engine := gin.New()
	engine.GET("/sync/metrics", h.GetSyncMetrics)

	req := httptest.NewRequest(http.MethodGet, "/sync/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})

	queueStats := data["queue"].(map[string]interface{})
	assert.Equal(t, float64(1), queueStats["depth"])

	outcomeStats := data["outcomes"].(map[string]interface{})
	assert.Equal(t, float64(1), outcomeStats["succeeded"])
	assert.Equal(t, float64(1), outcomeStats["failed"])
	assert.Equal(t, float64(1), outcomeStats["deferred"])

	breakerStats := data["breakers"].([]interface{})
	require.Len(t, breakerStats, 1)
	myob := breakerStats[0].(map[string]interface{})
	assert.Equal(t, "MYOB", myob["provider"])
	assert.Equal(t, "OPEN", myob["state"])
	assert.Equal(t, float64(5), myob["consecutive_failures"])

	limiterStats := data["rate_limits"].([]interface{})
	require.Len(t, limiterStats, 1)
	xero := limiterStats[0].(map[string]interface{})
	assert.Equal(t, "XERO", xero["provider"])
	assert.Equal(t, float64(59), xero["remaining_tokens"])
}
