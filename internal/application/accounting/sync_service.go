package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
)

// SyncQueue is the subset of the durable sync queue the application layer
// needs: enqueue with dedupe, and membership checks.
type SyncQueue interface {
	// Enqueue inserts the job, or updates the queued entry for the same
	// (invoice, provider) pair in place, and returns the queued job
	Enqueue(job *accounting.SyncJob) *accounting.SyncJob

	// Contains reports whether a job for the key is currently queued
	Contains(key accounting.JobKey) bool
}

// SyncServiceImpl coordinates sync enqueueing: it claims the invoice's
// PENDING status, creates the job, and records the initiating audit entry.
// Everything after enqueue belongs to the orchestrator.
type SyncServiceImpl struct {
	states       accounting.InvoiceSyncRepository
	integrations accounting.IntegrationRepository
	audit        accounting.AuditLogRepository
	queue        SyncQueue
}

// NewSyncService creates a new SyncServiceImpl
func NewSyncService(
	states accounting.InvoiceSyncRepository,
	integrations accounting.IntegrationRepository,
	audit accounting.AuditLogRepository,
	queue SyncQueue,
) *SyncServiceImpl {
	return &SyncServiceImpl{
		states:       states,
		integrations: integrations,
		audit:        audit,
		queue:        queue,
	}
}

// ---------------------------------------------------------------------------
// Enqueue Operations
// ---------------------------------------------------------------------------

// EnqueueSync queues an invoice for synchronization at NORMAL priority.
// Returns ErrAlreadySyncing when a sync for the same invoice and provider is
// already in flight: the PENDING status is the claim, so a second enqueue
// between two rapid requests loses deterministically.
func (s *SyncServiceImpl) EnqueueSync(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.SyncJob, error) {
	return s.enqueue(ctx, tenantID, invoiceID, provider, accounting.JobPriorityNormal, "")
}

// RetrySync re-queues a FAILED invoice at HIGH priority so a manual retry
// jumps ahead of routine work. Invoices in any other status are rejected.
func (s *SyncServiceImpl) RetrySync(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.SyncJob, error) {
	state, err := s.states.FindByInvoiceAndProvider(ctx, tenantID, invoiceID, provider)
	if err != nil {
		return nil, err
	}
	if state.Status == accounting.SyncStatusPending {
		return nil, accounting.ErrAlreadySyncing
	}
	if state.Status != accounting.SyncStatusFailed {
		return nil, shared.NewDomainError("NOT_RETRYABLE", "Only failed invoices can be retried")
	}

	return s.enqueue(ctx, tenantID, invoiceID, provider, accounting.JobPriorityHigh, "manual retry")
}

func (s *SyncServiceImpl) enqueue(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode, priority accounting.JobPriority, detail string) (*accounting.SyncJob, error) {
	integration, err := s.integrations.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}
	if !integration.IsUsable() {
		return nil, accounting.ErrIntegrationNotConnected
	}

	state, err := s.states.FindByInvoiceAndProvider(ctx, tenantID, invoiceID, provider)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := state.MarkPending(now); err != nil {
		return nil, err
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, err
	}

	job := accounting.NewSyncJob(tenantID, invoiceID, provider, priority, now)
	queued := s.queue.Enqueue(job)

	entry := accounting.NewAuditLogEntry(tenantID, invoiceID, provider, accounting.AuditActionInitiated, 0, detail, now)
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, err
	}

	return queued, nil
}

// recoverBatchSize bounds each scan of PENDING projections during startup
// recovery.
const recoverBatchSize = 500

// RecoverPending re-enqueues a job for every invoice still claimed as
// PENDING. The queue lives in process memory, so a restart between the
// claim and completion would otherwise strand the invoice: the PENDING
// status rejects new enqueues while no queued job exists for a worker to
// pick up. Called once at startup, before the orchestrator begins draining.
// Returns the number of jobs re-enqueued.
func (s *SyncServiceImpl) RecoverPending(ctx context.Context) (int, error) {
	recovered := 0
	for offset := 0; ; offset += recoverBatchSize {
		states, err := s.states.FindPending(ctx, offset, recoverBatchSize)
		if err != nil {
			return recovered, err
		}

		for i := range states {
			state := &states[i]
			key := accounting.JobKey{InvoiceID: state.InvoiceID, Provider: state.Provider}
			if s.queue.Contains(key) {
				continue
			}

			now := time.Now()
			s.queue.Enqueue(accounting.NewSyncJob(state.TenantID, state.InvoiceID, state.Provider, accounting.JobPriorityNormal, now))

			entry := accounting.NewAuditLogEntry(state.TenantID, state.InvoiceID, state.Provider, accounting.AuditActionInitiated, 0, "recovered after restart", now)
			if err := s.audit.Append(ctx, entry); err != nil {
				return recovered, err
			}
			recovered++
		}

		if len(states) < recoverBatchSize {
			return recovered, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Query Operations
// ---------------------------------------------------------------------------

// GetSyncStatus returns the sync projection of an invoice across all
// providers it has been synced to.
func (s *SyncServiceImpl) GetSyncStatus(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.InvoiceSyncState, error) {
	states, err := s.states.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, accounting.ErrSyncStateNotFound
	}
	return states, nil
}

// GetAuditTrail returns the append-only sync history of an invoice.
func (s *SyncServiceImpl) GetAuditTrail(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.AuditLogEntry, error) {
	return s.audit.FindByInvoice(ctx, tenantID, invoiceID)
}

// ListIntegrations returns the tenant's provider connections.
func (s *SyncServiceImpl) ListIntegrations(ctx context.Context, tenantID uuid.UUID) ([]accounting.Integration, error) {
	return s.integrations.FindAllForTenant(ctx, tenantID)
}
