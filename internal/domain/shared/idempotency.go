package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores applied idempotency keys so that at-least-once
// webhook delivery from providers results in at-most-once application to
// local invoice and payment state.
type IdempotencyStore interface {
	// MarkProcessed marks a key as applied with a TTL.
	// Returns true if the key was newly marked, false if it was already applied.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been applied
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release removes a claimed key so a failed application can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for applied keys. Providers stop redelivering
	// an event well within this horizon.
	// Default: 72 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     72 * time.Hour,
		Enabled: true,
	}
}
