package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// AuditAction
// ---------------------------------------------------------------------------

// AuditAction classifies a sync audit log entry. Deferrals are logged
// distinctly from failures so operators can tell "provider is down" from
// "we are choosing not to call it yet".
type AuditAction string

const (
	// AuditActionInitiated records a job starting a provider call
	AuditActionInitiated AuditAction = "INITIATED"
	// AuditActionSucceeded records a successful sync
	AuditActionSucceeded AuditAction = "SUCCEEDED"
	// AuditActionFailed records a terminal failure
	AuditActionFailed AuditAction = "FAILED"
	// AuditActionRetried records a transient failure scheduled for retry
	AuditActionRetried AuditAction = "RETRIED"
	// AuditActionDeferredCircuitOpen records a fail-fast deferral
	AuditActionDeferredCircuitOpen AuditAction = "DEFERRED_CIRCUIT_OPEN"
	// AuditActionDeferredRateLimited records a quota deferral
	AuditActionDeferredRateLimited AuditAction = "DEFERRED_RATE_LIMITED"
	// AuditActionWebhookApplied records an inbound event applied to local state
	AuditActionWebhookApplied AuditAction = "WEBHOOK_APPLIED"
	// AuditActionWebhookDuplicate records an inbound event skipped as a duplicate
	AuditActionWebhookDuplicate AuditAction = "WEBHOOK_DUPLICATE"
)

// IsValid returns true if the action is valid
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionInitiated, AuditActionSucceeded, AuditActionFailed,
		AuditActionRetried, AuditActionDeferredCircuitOpen,
		AuditActionDeferredRateLimited, AuditActionWebhookApplied,
		AuditActionWebhookDuplicate:
		return true
	default:
		return false
	}
}

// String returns the string representation of AuditAction
func (a AuditAction) String() string {
	return string(a)
}

// ---------------------------------------------------------------------------
// AuditLogEntry
// ---------------------------------------------------------------------------

// AuditLogEntry is an append-only record of a sync transition. Entries are
// never mutated or deleted; they are pure history for support and
// compliance. Every orchestrator transition writes exactly one entry.
type AuditLogEntry struct {
	// ID is the unique identifier of the entry
	ID uuid.UUID
	// TenantID is the organization the invoice belongs to
	TenantID uuid.UUID
	// InvoiceID identifies the invoice
	InvoiceID uuid.UUID
	// Provider is the accounting platform involved
	Provider ProviderCode
	// Action classifies the transition
	Action AuditAction
	// Attempt is the attempt count at the time of the entry
	Attempt int
	// Detail holds the error message or deferral reason, empty for success
	Detail string
	// CreatedAt is when the transition happened
	CreatedAt time.Time
}

// NewAuditLogEntry creates an audit entry for a sync transition.
func NewAuditLogEntry(tenantID, invoiceID uuid.UUID, provider ProviderCode, action AuditAction, attempt int, detail string, now time.Time) *AuditLogEntry {
	return &AuditLogEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		InvoiceID: invoiceID,
		Provider:  provider,
		Action:    action,
		Attempt:   attempt,
		Detail:    detail,
		CreatedAt: now,
	}
}

// AuditLogFilter defines filter criteria for audit entries
type AuditLogFilter struct {
	// InvoiceID filters by invoice (optional)
	InvoiceID *uuid.UUID
	// Provider filters by provider (optional)
	Provider *ProviderCode
	// Action filters by action (optional)
	Action *AuditAction
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// AuditLogRepository defines the interface for persisting audit entries.
// Append-only: there are no update or delete operations.
type AuditLogRepository interface {
	// Append persists one or more audit entries
	Append(ctx context.Context, entries ...*AuditLogEntry) error

	// FindByInvoice returns entries for an invoice, newest first
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]AuditLogEntry, error)

	// FindAll returns entries matching the filter, newest first
	FindAll(ctx context.Context, tenantID uuid.UUID, filter AuditLogFilter) ([]AuditLogEntry, int64, error)
}
