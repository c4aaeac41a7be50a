package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// SyncService is the application surface the sync endpoints depend on.
type SyncService interface {
	EnqueueSync(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.SyncJob, error)
	RetrySync(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.SyncJob, error)
	GetSyncStatus(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.InvoiceSyncState, error)
	GetAuditTrail(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.AuditLogEntry, error)
	ListIntegrations(ctx context.Context, tenantID uuid.UUID) ([]accounting.Integration, error)
}

// SyncHandler handles invoice sync API endpoints
type SyncHandler struct {
	BaseHandler
	syncService SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// EnqueueSyncRequest represents a request to queue an invoice for syncing
type EnqueueSyncRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// SyncJobResponse represents a queued sync job
type SyncJobResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Provider   string    `json:"provider"`
	Priority   string    `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// SyncStateResponse represents the sync status of an invoice for one provider
type SyncStateResponse struct {
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Provider      string     `json:"provider"`
	Status        string     `json:"status"`
	ExternalID    *string    `json:"external_id,omitempty"`
	TotalAmount   string     `json:"total_amount"`
	AmountPaid    string     `json:"amount_paid"`
	Currency      string     `json:"currency"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AuditEntryResponse represents one append-only audit trail entry
type AuditEntryResponse struct {
	Provider  string    `json:"provider"`
	Action    string    `json:"action"`
	Attempt   int       `json:"attempt"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IntegrationResponse represents a tenant's provider connection
type IntegrationResponse struct {
	Provider     string     `json:"provider"`
	DisplayName  string     `json:"display_name"`
	Status       string     `json:"status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

func toSyncJobResponse(job *accounting.SyncJob) SyncJobResponse {
	return SyncJobResponse{
		JobID:      job.ID,
		InvoiceID:  job.InvoiceID,
		Provider:   job.Provider.String(),
		Priority:   job.Priority.String(),
		EnqueuedAt: job.EnqueuedAt,
	}
}

func toSyncStateResponse(state *accounting.InvoiceSyncState) SyncStateResponse {
	return SyncStateResponse{
		InvoiceID:     state.InvoiceID,
		InvoiceNumber: state.InvoiceNumber,
		Provider:      state.Provider.String(),
		Status:        state.Status.String(),
		ExternalID:    state.ExternalID,
		TotalAmount:   state.TotalAmount.String(),
		AmountPaid:    state.AmountPaid.String(),
		Currency:      state.Currency,
		LastSyncedAt:  state.LastSyncedAt,
		LastError:     state.LastError,
		UpdatedAt:     state.UpdatedAt,
	}
}

// bindInvoiceTarget extracts the tenant, invoice id, and provider common to
// the enqueue and retry endpoints. Responds and returns false on failure.
func (h *SyncHandler) bindInvoiceTarget(c *gin.Context) (tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, uuid.Nil, "", false
	}

	invoiceID, err = uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return uuid.Nil, uuid.Nil, "", false
	}

	var req EnqueueSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return uuid.Nil, uuid.Nil, "", false
	}
	provider = accounting.ProviderCode(req.Provider)
	if !provider.IsValid() {
		h.BadRequest(c, "Unknown provider: "+req.Provider)
		return uuid.Nil, uuid.Nil, "", false
	}

	return tenantID, invoiceID, provider, true
}

// EnqueueSync queues an invoice for syncing to a provider. Returns 202: the
// push happens asynchronously in the orchestrator.
func (h *SyncHandler) EnqueueSync(c *gin.Context) {
	tenantID, invoiceID, provider, ok := h.bindInvoiceTarget(c)
	if !ok {
		return
	}

	job, err := h.syncService.EnqueueSync(c.Request.Context(), tenantID, invoiceID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, toSyncJobResponse(job))
}

// RetrySync re-queues a failed invoice at high priority
func (h *SyncHandler) RetrySync(c *gin.Context) {
	tenantID, invoiceID, provider, ok := h.bindInvoiceTarget(c)
	if !ok {
		return
	}

	job, err := h.syncService.RetrySync(c.Request.Context(), tenantID, invoiceID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, toSyncJobResponse(job))
}

// GetSyncStatus returns the invoice's sync status across all providers
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	states, err := h.syncService.GetSyncStatus(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]SyncStateResponse, len(states))
	for i := range states {
		responses[i] = toSyncStateResponse(&states[i])
	}
	h.Success(c, responses)
}

// GetAuditTrail returns the invoice's sync history, newest first
func (h *SyncHandler) GetAuditTrail(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	entries, err := h.syncService.GetAuditTrail(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = AuditEntryResponse{
			Provider:  entry.Provider.String(),
			Action:    entry.Action.String(),
			Attempt:   entry.Attempt,
			Detail:    entry.Detail,
			CreatedAt: entry.CreatedAt,
		}
	}
	h.Success(c, responses)
}

// ListIntegrations returns the tenant's provider connections
func (h *SyncHandler) ListIntegrations(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	integrations, err := h.syncService.ListIntegrations(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]IntegrationResponse, len(integrations))
	for i, integration := range integrations {
		responses[i] = IntegrationResponse{
			Provider:     integration.Provider.String(),
			DisplayName:  integration.Provider.DisplayName(),
			Status:       integration.Status.String(),
			LastSyncedAt: integration.LastSyncedAt,
			LastError:    integration.LastError,
		}
	}
	h.Success(c, responses)
}
