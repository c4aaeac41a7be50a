package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// SyncStatus represents the invoice synchronization status
// ---------------------------------------------------------------------------

// SyncStatus represents the synchronization status of an invoice with a
// provider. Transitions are driven exclusively by the orchestrator.
type SyncStatus string

const (
	// SyncStatusNotSynced indicates the invoice has never been pushed
	SyncStatusNotSynced SyncStatus = "NOT_SYNCED"
	// SyncStatusPending indicates a sync job is queued or executing
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusSynced indicates the invoice exists on the provider
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusFailed indicates the last attempt terminally failed
	SyncStatusFailed SyncStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusNotSynced, SyncStatusPending, SyncStatusSynced, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that end a sync attempt
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSynced || s == SyncStatusFailed
}

// ---------------------------------------------------------------------------
// InvoiceSyncState
// ---------------------------------------------------------------------------

// InvoiceSyncState is the sync-relevant projection of an invoice for one
// provider. The Status field is the single source of truth for "is a sync in
// flight": a PENDING state refuses a second concurrent job at enqueue time.
type InvoiceSyncState struct {
	// ID is the unique identifier of the projection row
	ID uuid.UUID
	// TenantID is the organization that owns the invoice
	TenantID uuid.UUID
	// InvoiceID is our internal invoice identifier
	InvoiceID uuid.UUID
	// InvoiceNumber is the human-readable invoice number
	InvoiceNumber string
	// Provider is the accounting platform this projection targets
	Provider ProviderCode
	// Status is the current sync status
	Status SyncStatus
	// ExternalID is the document id assigned by the provider. It is set on
	// the first successful sync and never overwritten afterwards.
	ExternalID *string
	// TotalAmount is the invoice total pushed to the provider
	TotalAmount decimal.Decimal
	// Currency is the invoice currency code
	Currency string
	// AmountPaid is the amount settled so far (updated by payment webhooks)
	AmountPaid decimal.Decimal
	// LastSyncedAt is when the last successful sync completed
	LastSyncedAt *time.Time
	// LastError is the last terminal error message, empty when none
	LastError string
	// CreatedAt is when this projection was created
	CreatedAt time.Time
	// UpdatedAt is when this projection was last updated
	UpdatedAt time.Time
}

// NewInvoiceSyncState creates a projection in NOT_SYNCED status.
func NewInvoiceSyncState(tenantID, invoiceID uuid.UUID, invoiceNumber string, provider ProviderCode, total decimal.Decimal, currency string) *InvoiceSyncState {
	now := time.Now()
	return &InvoiceSyncState{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceID:     invoiceID,
		InvoiceNumber: invoiceNumber,
		Provider:      provider,
		Status:        SyncStatusNotSynced,
		TotalAmount:   total,
		AmountPaid:    decimal.Zero,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanEnqueue returns true if a new sync job may be created for this invoice.
// A PENDING invoice is already claimed by an in-flight job.
func (s *InvoiceSyncState) CanEnqueue() bool {
	return s.Status != SyncStatusPending
}

// MarkPending claims the invoice for an in-flight sync. Returns
// ErrAlreadySyncing when a sync is already pending.
func (s *InvoiceSyncState) MarkPending(now time.Time) error {
	if s.Status == SyncStatusPending {
		return ErrAlreadySyncing
	}
	s.Status = SyncStatusPending
	s.UpdatedAt = now
	return nil
}

// MarkSynced records a successful sync. Applying a SYNCED outcome twice is a
// no-op and the external id recorded on first success is kept.
func (s *InvoiceSyncState) MarkSynced(externalID string, now time.Time) {
	if s.ExternalID == nil {
		s.ExternalID = &externalID
	}
	if s.Status == SyncStatusSynced {
		return
	}
	s.Status = SyncStatusSynced
	s.LastSyncedAt = &now
	s.LastError = ""
	s.UpdatedAt = now
}

// MarkFailed records a terminal failure with the last terminal error message.
func (s *InvoiceSyncState) MarkFailed(errMsg string, now time.Time) {
	s.Status = SyncStatusFailed
	s.LastError = errMsg
	s.UpdatedAt = now
}

// ApplyPayment records a settled amount reported by a provider webhook.
// It is commutative with respect to duplicate application: callers guard
// with the idempotency key, this method only accumulates.
func (s *InvoiceSyncState) ApplyPayment(amount decimal.Decimal, now time.Time) {
	s.AmountPaid = s.AmountPaid.Add(amount)
	s.UpdatedAt = now
}
