package accounting

import (
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// ProviderCode represents an external accounting platform
// ---------------------------------------------------------------------------

// ProviderCode identifies an external accounting platform that invoices are
// synchronized to.
type ProviderCode string

const (
	// ProviderCodeXero represents Xero
	ProviderCodeXero ProviderCode = "XERO"
	// ProviderCodeQuickBooks represents QuickBooks Online
	ProviderCodeQuickBooks ProviderCode = "QUICKBOOKS"
	// ProviderCodeMYOB represents MYOB Business
	ProviderCodeMYOB ProviderCode = "MYOB"
)

// AllProviderCodes returns every supported provider code.
func AllProviderCodes() []ProviderCode {
	return []ProviderCode{ProviderCodeXero, ProviderCodeQuickBooks, ProviderCodeMYOB}
}

// IsValid returns true if the provider code is valid
func (c ProviderCode) IsValid() bool {
	switch c {
	case ProviderCodeXero, ProviderCodeQuickBooks, ProviderCodeMYOB:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProviderCode
func (c ProviderCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the provider
func (c ProviderCode) DisplayName() string {
	switch c {
	case ProviderCodeXero:
		return "Xero"
	case ProviderCodeQuickBooks:
		return "QuickBooks Online"
	case ProviderCodeMYOB:
		return "MYOB Business"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrProviderNotConfigured indicates no adapter is registered for the code
	ErrProviderNotConfigured = errors.New("accounting: provider not configured")
	// ErrIntegrationNotConnected indicates the tenant has no usable connection
	ErrIntegrationNotConnected = errors.New("accounting: integration not connected")
	// ErrAlreadySyncing is returned when an enqueue is attempted while a sync
	// for the same invoice and provider is already pending
	ErrAlreadySyncing = errors.New("accounting: invoice sync already in progress")
	// ErrSyncStateNotFound indicates no sync projection exists for the invoice
	ErrSyncStateNotFound = errors.New("accounting: invoice sync state not found")
	// ErrIntegrationNotFound indicates no integration record exists
	ErrIntegrationNotFound = errors.New("accounting: integration not found")
	// ErrWebhookEventNotFound indicates no webhook event record exists
	ErrWebhookEventNotFound = errors.New("accounting: webhook event not found")
	// ErrInvalidSignature indicates a webhook payload failed authenticity checks
	ErrInvalidSignature = errors.New("accounting: invalid webhook signature")
)

// TransientProviderError is a retryable provider failure: timeouts, 5xx
// responses, connection errors. It counts against the circuit breaker.
type TransientProviderError struct {
	Provider   ProviderCode
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *TransientProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("accounting: transient %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("accounting: transient %s error: %s", e.Provider, e.Message)
}

// PermanentProviderError is a terminal provider failure: validation
// rejections and other 4xx responses that will never succeed on retry.
// It does not count against the circuit breaker.
type PermanentProviderError struct {
	Provider   ProviderCode
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *PermanentProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("accounting: permanent %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("accounting: permanent %s error: %s", e.Provider, e.Message)
}

// AuthExpiredError is a terminal failure indicating the provider credentials
// have expired. It additionally flips the Integration to ERROR status so the
// tenant is prompted to reconnect.
type AuthExpiredError struct {
	Provider ProviderCode
	Message  string
}

// Error implements the error interface
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("accounting: %s authentication expired: %s", e.Provider, e.Message)
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientProviderError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a terminal provider failure.
func IsPermanent(err error) bool {
	var pe *PermanentProviderError
	return errors.As(err, &pe)
}

// IsAuthExpired reports whether err indicates expired provider credentials.
func IsAuthExpired(err error) bool {
	var ae *AuthExpiredError
	return errors.As(err, &ae)
}

// ---------------------------------------------------------------------------
// ProviderClient Port Interface
// ---------------------------------------------------------------------------

// SyncOutcome is the result of a successful invoice push.
type SyncOutcome struct {
	// ExternalID is the document identifier assigned by the provider
	ExternalID string
}

// ProviderClient defines the port interface for external accounting
// platforms. Implementations perform the actual network call and return one
// of the typed errors above; callers never see raw HTTP errors.
type ProviderClient interface {
	// ProviderCode returns the provider this client talks to
	ProviderCode() ProviderCode

	// SyncInvoice creates or updates the external document for the invoice.
	// The context carries the bounded per-call timeout.
	SyncInvoice(ctx context.Context, invoice *InvoiceSyncState) (*SyncOutcome, error)

	// VerifyWebhookSignature checks the authenticity of an inbound payload
	VerifyWebhookSignature(payload []byte, signature string) error
}

// ProviderRegistry provides access to configured provider clients. The
// client for a job is selected once at job-creation time, keyed by code.
type ProviderRegistry interface {
	// Client returns the provider client for the specified code
	Client(code ProviderCode) (ProviderClient, error)

	// Clients returns all registered provider clients
	Clients() []ProviderClient
}
