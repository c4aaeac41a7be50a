package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	syncinfra "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/sync"
)

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// AttrProvider labels per-provider metrics with the accounting platform code.
var AttrProvider = attribute.Key("provider")

// SyncMetricsSources are the live resilience-layer components the observable
// instruments read from on every export cycle.
type SyncMetricsSources struct {
	Queue    *syncinfra.Queue
	Breakers *syncinfra.BreakerRegistry
	Limiters *syncinfra.LimiterRegistry
	Outcomes *syncinfra.Metrics
}

// RegisterSyncMetrics registers observable instruments for the sync
// resilience layer: queue depth and age, per-provider breaker state and
// failure counts, per-provider rate limit headroom, and lifetime outcome
// counters. Values are observed at export time, no hot-path recording.
func RegisterSyncMetrics(meter metric.Meter, src SyncMetricsSources) error {
	if meter == nil {
		return ErrMeterNil
	}

	queueDepth, err := meter.Int64ObservableGauge(
		"accounting_sync_queue_depth",
		metric.WithDescription("Number of jobs waiting in the sync queue"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue depth gauge: %w", err)
	}

	queueOldestAge, err := meter.Float64ObservableGauge(
		"accounting_sync_queue_oldest_age_seconds",
		metric.WithDescription("Age of the oldest queued sync job"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue age gauge: %w", err)
	}

	breakerState, err := meter.Int64ObservableGauge(
		"accounting_breaker_state",
		metric.WithDescription("Circuit breaker state per provider (0=closed, 1=half-open, 2=open)"),
	)
	if err != nil {
		return fmt.Errorf("failed to create breaker state gauge: %w", err)
	}

	breakerFailures, err := meter.Int64ObservableGauge(
		"accounting_breaker_consecutive_failures",
		metric.WithDescription("Consecutive transient failures per provider"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create breaker failures gauge: %w", err)
	}

	limiterTokens, err := meter.Int64ObservableGauge(
		"accounting_ratelimit_remaining_tokens",
		metric.WithDescription("Remaining requests in the provider's current rate limit window"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create limiter tokens gauge: %w", err)
	}

	syncSucceeded, err := meter.Int64ObservableCounter(
		"accounting_sync_succeeded_total",
		metric.WithDescription("Total invoices synced successfully"),
		metric.WithUnit("{invoices}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create succeeded counter: %w", err)
	}

	syncFailed, err := meter.Int64ObservableCounter(
		"accounting_sync_failed_total",
		metric.WithDescription("Total invoice syncs that failed terminally"),
		metric.WithUnit("{invoices}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create failed counter: %w", err)
	}

	syncRetried, err := meter.Int64ObservableCounter(
		"accounting_sync_retried_total",
		metric.WithDescription("Total transient failures scheduled for retry"),
		metric.WithUnit("{retries}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create retried counter: %w", err)
	}

	syncDeferred, err := meter.Int64ObservableCounter(
		"accounting_sync_deferred_total",
		metric.WithDescription("Total jobs deferred by an open breaker or rate limit"),
		metric.WithUnit("{deferrals}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create deferred counter: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			if src.Queue != nil {
				o.ObserveInt64(queueDepth, int64(src.Queue.Depth()))
				o.ObserveFloat64(queueOldestAge, src.Queue.OldestAge().Seconds())
			}
			if src.Breakers != nil {
				for _, snap := range src.Breakers.Snapshots() {
					attrs := metric.WithAttributes(AttrProvider.String(snap.Provider.String()))
					o.ObserveInt64(breakerState, breakerStateValue(snap.State), attrs)
					o.ObserveInt64(breakerFailures, int64(snap.ConsecutiveFailures), attrs)
				}
			}
			if src.Limiters != nil {
				for _, snap := range src.Limiters.Snapshots() {
					attrs := metric.WithAttributes(AttrProvider.String(snap.Provider.String()))
					o.ObserveInt64(limiterTokens, int64(snap.RemainingTokens), attrs)
				}
			}
			if src.Outcomes != nil {
				o.ObserveInt64(syncSucceeded, src.Outcomes.Succeeded.Load())
				o.ObserveInt64(syncFailed, src.Outcomes.Failed.Load())
				o.ObserveInt64(syncRetried, src.Outcomes.Retried.Load())
				o.ObserveInt64(syncDeferred, src.Outcomes.Deferred.Load())
			}
			return nil
		},
		queueDepth, queueOldestAge,
		breakerState, breakerFailures,
		limiterTokens,
		syncSucceeded, syncFailed, syncRetried, syncDeferred,
	)
	if err != nil {
		return fmt.Errorf("failed to register metrics callback: %w", err)
	}

	return nil
}

func breakerStateValue(state syncinfra.BreakerState) int64 {
	switch state {
	case syncinfra.BreakerHalfOpen:
		return 1
	case syncinfra.BreakerOpen:
		return 2
	default:
		return 0
	}
}
