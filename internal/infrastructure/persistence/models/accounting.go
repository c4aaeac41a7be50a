package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// InvoiceSyncStateModel is the persistence model for the InvoiceSyncState
// domain entity. One row exists per (invoice, provider) pair.
type InvoiceSyncStateModel struct {
	ID            uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID               `gorm:"type:uuid;not null;index:idx_invoice_sync_tenant_invoice,priority:1"`
	InvoiceID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_invoice_sync_tenant_invoice,priority:2;uniqueIndex:uq_invoice_sync_invoice_provider,priority:1"`
	InvoiceNumber string                  `gorm:"type:varchar(50);not null"`
	Provider      accounting.ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:uq_invoice_sync_invoice_provider,priority:2;index:idx_invoice_sync_external,priority:1"`
	Status        accounting.SyncStatus   `gorm:"type:varchar(20);not null;default:'NOT_SYNCED';index"`
	ExternalID    *string                 `gorm:"type:varchar(100);index:idx_invoice_sync_external,priority:2"`
	TotalAmount   decimal.Decimal         `gorm:"type:decimal(20,4);not null"`
	Currency      string                  `gorm:"type:varchar(3);not null"`
	AmountPaid    decimal.Decimal         `gorm:"type:decimal(20,4);not null;default:0"`
	LastSyncedAt  *time.Time
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceSyncStateModel) TableName() string {
	return "invoice_sync_states"
}

// ToDomain converts the persistence model to a domain InvoiceSyncState entity.
func (m *InvoiceSyncStateModel) ToDomain() *accounting.InvoiceSyncState {
	return &accounting.InvoiceSyncState{
		ID:            m.ID,
		TenantID:      m.TenantID,
		InvoiceID:     m.InvoiceID,
		InvoiceNumber: m.InvoiceNumber,
		Provider:      m.Provider,
		Status:        m.Status,
		ExternalID:    m.ExternalID,
		TotalAmount:   m.TotalAmount,
		Currency:      m.Currency,
		AmountPaid:    m.AmountPaid,
		LastSyncedAt:  m.LastSyncedAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain entity.
func (m *InvoiceSyncStateModel) FromDomain(s *accounting.InvoiceSyncState) {
	m.ID = s.ID
	m.TenantID = s.TenantID
	m.InvoiceID = s.InvoiceID
	m.InvoiceNumber = s.InvoiceNumber
	m.Provider = s.Provider
	m.Status = s.Status
	m.ExternalID = s.ExternalID
	m.TotalAmount = s.TotalAmount
	m.Currency = s.Currency
	m.AmountPaid = s.AmountPaid
	m.LastSyncedAt = s.LastSyncedAt
	m.LastError = s.LastError
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// InvoiceSyncStateModelFromDomain creates a persistence model from a domain entity.
func InvoiceSyncStateModelFromDomain(s *accounting.InvoiceSyncState) *InvoiceSyncStateModel {
	m := &InvoiceSyncStateModel{}
	m.FromDomain(s)
	return m
}

// IntegrationModel is the persistence model for the Integration domain
// entity. At most one row exists per (tenant, provider) pair.
type IntegrationModel struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:uq_integration_tenant_provider,priority:1"`
	Provider       accounting.ProviderCode     `gorm:"type:varchar(20);not null;uniqueIndex:uq_integration_tenant_provider,priority:2"`
	Status         accounting.ConnectionStatus `gorm:"type:varchar(20);not null;default:'DISCONNECTED'"`
	TokenExpiresAt *time.Time
	LastSyncedAt   *time.Time
	LastError      string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "accounting_integrations"
}

// ToDomain converts the persistence model to a domain Integration entity.
func (m *IntegrationModel) ToDomain() *accounting.Integration {
	return &accounting.Integration{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Provider:       m.Provider,
		Status:         m.Status,
		TokenExpiresAt: m.TokenExpiresAt,
		LastSyncedAt:   m.LastSyncedAt,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain entity.
func (m *IntegrationModel) FromDomain(i *accounting.Integration) {
	m.ID = i.ID
	m.TenantID = i.TenantID
	m.Provider = i.Provider
	m.Status = i.Status
	m.TokenExpiresAt = i.TokenExpiresAt
	m.LastSyncedAt = i.LastSyncedAt
	m.LastError = i.LastError
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}

// IntegrationModelFromDomain creates a persistence model from a domain entity.
func IntegrationModelFromDomain(i *accounting.Integration) *IntegrationModel {
	m := &IntegrationModel{}
	m.FromDomain(i)
	return m
}

// AuditLogEntryModel is the persistence model for AuditLogEntry. The table
// is append-only: rows are never updated or deleted.
type AuditLogEntryModel struct {
	ID        uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID               `gorm:"type:uuid;not null;index:idx_sync_audit_tenant_invoice,priority:1"`
	InvoiceID uuid.UUID               `gorm:"type:uuid;not null;index:idx_sync_audit_tenant_invoice,priority:2"`
	Provider  accounting.ProviderCode `gorm:"type:varchar(20);not null"`
	Action    accounting.AuditAction  `gorm:"type:varchar(30);not null;index"`
	Attempt   int                     `gorm:"not null;default:0"`
	Detail    string                  `gorm:"type:text"`
	CreatedAt time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogEntryModel) TableName() string {
	return "sync_audit_log"
}

// ToDomain converts the persistence model to a domain AuditLogEntry.
func (m *AuditLogEntryModel) ToDomain() *accounting.AuditLogEntry {
	return &accounting.AuditLogEntry{
		ID:        m.ID,
		TenantID:  m.TenantID,
		InvoiceID: m.InvoiceID,
		Provider:  m.Provider,
		Action:    m.Action,
		Attempt:   m.Attempt,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}

// AuditLogEntryModelFromDomain creates a persistence model from a domain entity.
func AuditLogEntryModelFromDomain(e *accounting.AuditLogEntry) *AuditLogEntryModel {
	return &AuditLogEntryModel{
		ID:        e.ID,
		TenantID:  e.TenantID,
		InvoiceID: e.InvoiceID,
		Provider:  e.Provider,
		Action:    e.Action,
		Attempt:   e.Attempt,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

// WebhookEventModel is the persistence model for the WebhookEvent buffer.
type WebhookEventModel struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primary_key"`
	TenantID           uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Provider           accounting.ProviderCode     `gorm:"type:varchar(20);not null"`
	EventType          accounting.WebhookEventType `gorm:"type:varchar(30);not null"`
	IdempotencyKey     string                      `gorm:"type:varchar(150);not null;uniqueIndex"`
	ExternalDocumentID string                      `gorm:"type:varchar(100)"`
	Payload            []byte                      `gorm:"type:bytea"`
	Status             accounting.WebhookStatus    `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_webhook_status_received,priority:1"`
	Attempts           int                         `gorm:"not null;default:0"`
	MaxAttempts        int                         `gorm:"not null;default:3"`
	LastError          string                      `gorm:"type:text"`
	ReceivedAt         time.Time                   `gorm:"not null;index:idx_webhook_status_received,priority:2"`
	ProcessedAt        *time.Time
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
func (m *WebhookEventModel) ToDomain() *accounting.WebhookEvent {
	return &accounting.WebhookEvent{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		Provider:           m.Provider,
		EventType:          m.EventType,
		IdempotencyKey:     m.IdempotencyKey,
		ExternalDocumentID: m.ExternalDocumentID,
		Payload:            m.Payload,
		Status:             m.Status,
		Attempts:           m.Attempts,
		MaxAttempts:        m.MaxAttempts,
		LastError:          m.LastError,
		ReceivedAt:         m.ReceivedAt,
		ProcessedAt:        m.ProcessedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain entity.
func (m *WebhookEventModel) FromDomain(e *accounting.WebhookEvent) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.Provider = e.Provider
	m.EventType = e.EventType
	m.IdempotencyKey = e.IdempotencyKey
	m.ExternalDocumentID = e.ExternalDocumentID
	m.Payload = e.Payload
	m.Status = e.Status
	m.Attempts = e.Attempts
	m.MaxAttempts = e.MaxAttempts
	m.LastError = e.LastError
	m.ReceivedAt = e.ReceivedAt
	m.ProcessedAt = e.ProcessedAt
	m.UpdatedAt = e.UpdatedAt
}

// WebhookEventModelFromDomain creates a persistence model from a domain entity.
func WebhookEventModelFromDomain(e *accounting.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(e)
	return m
}
