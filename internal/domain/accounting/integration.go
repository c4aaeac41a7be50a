package accounting

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ConnectionStatus
// ---------------------------------------------------------------------------

// ConnectionStatus represents the connection state of an Integration
type ConnectionStatus string

const (
	// ConnectionStatusDisconnected indicates no active connection
	ConnectionStatusDisconnected ConnectionStatus = "DISCONNECTED"
	// ConnectionStatusConnected indicates a usable connection
	ConnectionStatusConnected ConnectionStatus = "CONNECTED"
	// ConnectionStatusError indicates the connection requires attention,
	// typically expired credentials
	ConnectionStatusError ConnectionStatus = "ERROR"
)

// IsValid returns true if the status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusDisconnected, ConnectionStatusConnected, ConnectionStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Integration
// ---------------------------------------------------------------------------

// Integration is the per (tenant, provider) connection record. At most one
// exists per pair. The connection-setup flow creates it; the orchestrator
// only updates sync outcome fields and flips status to ERROR on expired
// credentials.
type Integration struct {
	// ID is the unique identifier of the integration
	ID uuid.UUID
	// TenantID is the organization that owns the connection
	TenantID uuid.UUID
	// Provider is the connected accounting platform
	Provider ProviderCode
	// Status is the connection status
	Status ConnectionStatus
	// TokenExpiresAt is when the provider access token expires
	TokenExpiresAt *time.Time
	// LastSyncedAt is the last successful sync through this integration
	LastSyncedAt *time.Time
	// LastError is the most recent error message, empty when healthy
	LastError string
	// CreatedAt is when the integration was created
	CreatedAt time.Time
	// UpdatedAt is when the integration was last updated
	UpdatedAt time.Time
}

// IsUsable returns true if syncs may be attempted through this integration.
func (i *Integration) IsUsable() bool {
	return i.Status == ConnectionStatusConnected
}

// TokenExpired returns true if the access token has expired as of now.
func (i *Integration) TokenExpired(now time.Time) bool {
	return i.TokenExpiresAt != nil && now.After(*i.TokenExpiresAt)
}

// RecordSuccess stamps a successful sync and clears any prior error.
func (i *Integration) RecordSuccess(now time.Time) {
	i.LastSyncedAt = &now
	i.LastError = ""
	i.UpdatedAt = now
}

// RecordError surfaces the last terminal error message on the integration.
func (i *Integration) RecordError(errMsg string, now time.Time) {
	i.LastError = errMsg
	i.UpdatedAt = now
}

// MarkAuthExpired flips the integration to ERROR status. The tenant must
// reconnect before further syncs are attempted.
func (i *Integration) MarkAuthExpired(errMsg string, now time.Time) {
	i.Status = ConnectionStatusError
	i.LastError = errMsg
	i.UpdatedAt = now
}
