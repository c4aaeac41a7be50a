package accounting

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceSyncRepository defines the interface for persisting invoice sync
// projections.
type InvoiceSyncRepository interface {
	// Save creates or updates a projection
	Save(ctx context.Context, state *InvoiceSyncState) error

	// FindByInvoiceAndProvider finds the projection for an (invoice,
	// provider) pair
	FindByInvoiceAndProvider(ctx context.Context, tenantID, invoiceID uuid.UUID, provider ProviderCode) (*InvoiceSyncState, error)

	// FindByInvoice finds all projections for an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]InvoiceSyncState, error)

	// FindByExternalID finds the projection holding a provider document id
	FindByExternalID(ctx context.Context, provider ProviderCode, externalID string) (*InvoiceSyncState, error)

	// FindPending returns projections claimed as PENDING across all
	// tenants, oldest first. Used at startup to re-enqueue work that was
	// in flight when the process stopped.
	FindPending(ctx context.Context, offset, limit int) ([]InvoiceSyncState, error)

	// CountByStatus returns projection counts per status
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[SyncStatus]int64, error)
}

// IntegrationRepository defines the interface for persisting integrations.
type IntegrationRepository interface {
	// Save creates or updates an integration
	Save(ctx context.Context, integration *Integration) error

	// FindByTenantAndProvider finds the unique integration for a pair
	FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider ProviderCode) (*Integration, error)

	// FindAllForTenant finds all integrations for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]Integration, error)
}
