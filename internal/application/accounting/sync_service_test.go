package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
)

type syncServiceFixture struct {
	service      *SyncServiceImpl
	states       *fakeStateRepo
	integrations *fakeIntegrationRepo
	audit        *fakeAuditRepo
	queue        *fakeQueue

	tenantID  uuid.UUID
	invoiceID uuid.UUID
}

func newSyncServiceFixture(t *testing.T) *syncServiceFixture {
	t.Helper()

	f := &syncServiceFixture{
		states:       newFakeStateRepo(),
		integrations: newFakeIntegrationRepo(),
		audit:        &fakeAuditRepo{},
		queue:        newFakeQueue(),
		tenantID:     uuid.New(),
		invoiceID:    uuid.New(),
	}
	f.service = NewSyncService(f.states, f.integrations, f.audit, f.queue)

	state := accounting.NewInvoiceSyncState(f.tenantID, f.invoiceID, "INV-1001", accounting.ProviderCodeXero, decimal.NewFromInt(250), "AUD")
	require.NoError(t, f.states.Save(context.Background(), state))

	require.NoError(t, f.integrations.Save(context.Background(), &accounting.Integration{
		ID:       uuid.New(),
		TenantID: f.tenantID,
		Provider: accounting.ProviderCodeXero,
		Status:   accounting.ConnectionStatusConnected,
	}))

	return f
}

func (f *syncServiceFixture) state(t *testing.T) *accounting.InvoiceSyncState {
	t.Helper()
	state, err := f.states.FindByInvoiceAndProvider(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)
	return state
}

func TestSyncService_EnqueueSync(t *testing.T) {
	f := newSyncServiceFixture(t)

	job, err := f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, accounting.JobPriorityNormal, job.Priority)
	assert.Equal(t, accounting.SyncStatusPending, f.state(t).Status)
	assert.True(t, f.queue.Contains(job.Key()))
	assert.Equal(t, []accounting.AuditAction{accounting.AuditActionInitiated}, f.audit.actions())
}

func TestSyncService_EnqueueSyncRejectsConcurrent(t *testing.T) {
	f := newSyncServiceFixture(t)

	_, err := f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)

	// Rapid duplicate click: the PENDING claim refuses a second job.
	_, err = f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrAlreadySyncing)

	// Exactly one initiated entry, not two.
	assert.Equal(t, []accounting.AuditAction{accounting.AuditActionInitiated}, f.audit.actions())
}

func TestSyncService_EnqueueSyncRequiresUsableIntegration(t *testing.T) {
	f := newSyncServiceFixture(t)

	integration, err := f.integrations.FindByTenantAndProvider(context.Background(), f.tenantID, accounting.ProviderCodeXero)
	require.NoError(t, err)
	integration.MarkAuthExpired("token revoked", time.Now())
	require.NoError(t, f.integrations.Save(context.Background(), integration))

	_, err = f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrIntegrationNotConnected)
}

func TestSyncService_EnqueueSyncUnknownInvoice(t *testing.T) {
	f := newSyncServiceFixture(t)

	_, err := f.service.EnqueueSync(context.Background(), f.tenantID, uuid.New(), accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrSyncStateNotFound)
}

func TestSyncService_RetrySync(t *testing.T) {
	f := newSyncServiceFixture(t)

	state := f.state(t)
	state.MarkFailed("provider unavailable", time.Now())
	require.NoError(t, f.states.Save(context.Background(), state))

	job, err := f.service.RetrySync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)

	// Manual retries jump the queue.
	assert.Equal(t, accounting.JobPriorityHigh, job.Priority)
	assert.Equal(t, accounting.SyncStatusPending, f.state(t).Status)
}

func TestSyncService_RetrySyncOnlyForFailed(t *testing.T) {
	f := newSyncServiceFixture(t)

	// NOT_SYNCED is not retryable.
	_, err := f.service.RetrySync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_RETRYABLE", domainErr.Code)

	// PENDING reports the in-flight sync instead.
	_, err = f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)
	_, err = f.service.RetrySync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrAlreadySyncing)
}

func TestSyncService_RecoverPendingAfterRestart(t *testing.T) {
	f := newSyncServiceFixture(t)

	// Claim the invoice, then simulate a restart by rebuilding the
	// service over a fresh, empty queue. The PENDING claim survives in
	// the store; the queued job does not.
	_, err := f.service.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	require.NoError(t, err)

	freshQueue := newFakeQueue()
	restarted := NewSyncService(f.states, f.integrations, f.audit, freshQueue)

	// Without recovery the invoice is unreachable: both paths refuse it.
	_, err = restarted.EnqueueSync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrAlreadySyncing)
	_, err = restarted.RetrySync(context.Background(), f.tenantID, f.invoiceID, accounting.ProviderCodeXero)
	assert.ErrorIs(t, err, accounting.ErrAlreadySyncing)

	recovered, err := restarted.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.True(t, freshQueue.Contains(accounting.JobKey{InvoiceID: f.invoiceID, Provider: accounting.ProviderCodeXero}))

	// Running recovery again does not duplicate already-queued work.
	recovered, err = restarted.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	// One INITIATED entry at enqueue, a second at recovery.
	assert.Equal(t, []accounting.AuditAction{
		accounting.AuditActionInitiated,
		accounting.AuditActionInitiated,
	}, f.audit.actions())
}

func TestSyncService_RecoverPendingSkipsSettledInvoices(t *testing.T) {
	f := newSyncServiceFixture(t)

	state := f.state(t)
	state.MarkFailed("provider unavailable", time.Now())
	require.NoError(t, f.states.Save(context.Background(), state))

	recovered, err := f.service.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
	assert.False(t, f.queue.Contains(accounting.JobKey{InvoiceID: f.invoiceID, Provider: accounting.ProviderCodeXero}))
}

func TestSyncService_GetSyncStatus(t *testing.T) {
	f := newSyncServiceFixture(t)

	states, err := f.service.GetSyncStatus(context.Background(), f.tenantID, f.invoiceID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, accounting.SyncStatusNotSynced, states[0].Status)

	_, err = f.service.GetSyncStatus(context.Background(), f.tenantID, uuid.New())
	assert.ErrorIs(t, err, accounting.ErrSyncStateNotFound)
}
