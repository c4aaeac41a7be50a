package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// WebhookStatus
// ---------------------------------------------------------------------------

// WebhookStatus represents the processing status of an inbound event
type WebhookStatus string

const (
	// WebhookStatusPending indicates the event is queued for processing
	WebhookStatusPending WebhookStatus = "PENDING"
	// WebhookStatusProcessed indicates the event was applied to local state
	WebhookStatusProcessed WebhookStatus = "PROCESSED"
	// WebhookStatusFailed indicates processing failed and may be retried
	WebhookStatusFailed WebhookStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s WebhookStatus) IsValid() bool {
	switch s {
	case WebhookStatusPending, WebhookStatusProcessed, WebhookStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of WebhookStatus
func (s WebhookStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// WebhookEvent
// ---------------------------------------------------------------------------

// WebhookEventType classifies inbound provider events
type WebhookEventType string

const (
	// WebhookEventPaymentReceived is a payment notification for an invoice
	WebhookEventPaymentReceived WebhookEventType = "PAYMENT_RECEIVED"
	// WebhookEventInvoiceUpdated is a remote document change notification
	WebhookEventInvoiceUpdated WebhookEventType = "INVOICE_UPDATED"
	// WebhookEventInvoiceVoided is a remote void notification
	WebhookEventInvoiceVoided WebhookEventType = "INVOICE_VOIDED"
)

// WebhookEvent is an inbound provider event buffered for asynchronous,
// idempotent application. The idempotency key is derived from the provider
// event id: the same key is applied to local state at most once, and
// at-least-once delivery from providers must be tolerated.
type WebhookEvent struct {
	// ID is the unique identifier of the buffered event
	ID uuid.UUID
	// TenantID is the organization the event belongs to
	TenantID uuid.UUID
	// Provider is the platform that emitted the event
	Provider ProviderCode
	// EventType classifies the event
	EventType WebhookEventType
	// IdempotencyKey is derived from the provider event id
	IdempotencyKey string
	// ExternalDocumentID is the provider-side document the event refers to
	ExternalDocumentID string
	// Payload is the raw provider payload
	Payload []byte
	// Status is the processing status
	Status WebhookStatus
	// Attempts counts processing attempts
	Attempts int
	// MaxAttempts bounds retries before manual intervention is required
	MaxAttempts int
	// LastError is the most recent processing error
	LastError string
	// ReceivedAt is when the event was accepted at the HTTP boundary
	ReceivedAt time.Time
	// ProcessedAt is when the event was applied, nil until then
	ProcessedAt *time.Time
	// UpdatedAt is when the record was last updated
	UpdatedAt time.Time
}

// DefaultWebhookMaxAttempts bounds webhook processing retries.
const DefaultWebhookMaxAttempts = 3

// WebhookIdempotencyKey derives the dedupe key for a provider event id.
func WebhookIdempotencyKey(provider ProviderCode, providerEventID string) string {
	return string(provider) + ":" + providerEventID
}

// NewWebhookEvent buffers an inbound provider event in PENDING status.
func NewWebhookEvent(tenantID uuid.UUID, provider ProviderCode, eventType WebhookEventType, providerEventID, externalDocumentID string, payload []byte, now time.Time) *WebhookEvent {
	return &WebhookEvent{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Provider:           provider,
		EventType:          eventType,
		IdempotencyKey:     WebhookIdempotencyKey(provider, providerEventID),
		ExternalDocumentID: externalDocumentID,
		Payload:            payload,
		Status:             WebhookStatusPending,
		MaxAttempts:        DefaultWebhookMaxAttempts,
		ReceivedAt:         now,
		UpdatedAt:          now,
	}
}

// MarkProcessed records successful application to local state.
func (e *WebhookEvent) MarkProcessed(now time.Time) {
	e.Status = WebhookStatusProcessed
	e.ProcessedAt = &now
	e.LastError = ""
	e.UpdatedAt = now
}

// MarkFailed records a processing failure and counts the attempt.
func (e *WebhookEvent) MarkFailed(errMsg string, now time.Time) {
	e.Attempts++
	e.Status = WebhookStatusFailed
	e.LastError = errMsg
	e.UpdatedAt = now
}

// CanRetry returns true while the attempt budget is not exhausted. Events
// past the budget require manual intervention.
func (e *WebhookEvent) CanRetry() bool {
	return e.Status == WebhookStatusFailed && e.Attempts < e.MaxAttempts
}

// PaymentNotification is the decoded payload of a PAYMENT_RECEIVED event.
type PaymentNotification struct {
	ProviderEventID    string          `json:"event_id"`
	ExternalDocumentID string          `json:"document_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	PaidAt             time.Time       `json:"paid_at"`
}

// ---------------------------------------------------------------------------
// WebhookEventRepository
// ---------------------------------------------------------------------------

// WebhookEventRepository defines the interface for the durable webhook
// ingestion buffer.
type WebhookEventRepository interface {
	// Save persists a new buffered event
	Save(ctx context.Context, event *WebhookEvent) error

	// Update updates a buffered event after processing
	Update(ctx context.Context, event *WebhookEvent) error

	// FindByID retrieves a buffered event
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)

	// FindByIdempotencyKey retrieves an event by its dedupe key
	FindByIdempotencyKey(ctx context.Context, key string) (*WebhookEvent, error)

	// FindPending retrieves events awaiting processing, oldest first
	FindPending(ctx context.Context, limit int) ([]*WebhookEvent, error)

	// FindRetryable retrieves failed events still within their attempt
	// budget, oldest first
	FindRetryable(ctx context.Context, limit int) ([]*WebhookEvent, error)

	// CountByStatus returns event counts per status
	CountByStatus(ctx context.Context) (map[WebhookStatus]int64, error)
}
