package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appaccounting "github.com/CleanExpo/RestoreAssist-sub010/internal/application/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	infraaccounting "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence"
	syncinfra "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/sync"
)

// scriptedClient is a provider client whose first n calls fail with a
// transient error before it starts succeeding.
type scriptedClient struct {
	mu       sync.Mutex
	provider accounting.ProviderCode
	failures int
	calls    int
}

func (c *scriptedClient) ProviderCode() accounting.ProviderCode {
	return c.provider
}

func (c *scriptedClient) SyncInvoice(_ context.Context, state *accounting.InvoiceSyncState) (*accounting.SyncOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return nil, &accounting.TransientProviderError{
			Provider:   c.provider,
			StatusCode: 503,
			Message:    "service unavailable",
		}
	}
	return &accounting.SyncOutcome{ExternalID: "ext-" + state.InvoiceNumber}, nil
}

func (c *scriptedClient) VerifyWebhookSignature([]byte, string) error {
	return nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type syncFlowFixture struct {
	states       accounting.InvoiceSyncRepository
	integrations accounting.IntegrationRepository
	audit        accounting.AuditLogRepository
	service      *appaccounting.SyncServiceImpl
	orchestrator *syncinfra.Orchestrator
	queue        *syncinfra.Queue
}

func newSyncFlowFixture(t *testing.T, db *TestDB, client accounting.ProviderClient) *syncFlowFixture {
	t.Helper()

	states := persistence.NewGormInvoiceSyncRepository(db.DB)
	integrations := persistence.NewGormIntegrationRepository(db.DB)
	audit := persistence.NewGormAuditLogRepository(db.DB)

	queue := syncinfra.NewQueue(nil)
	breakers := syncinfra.NewBreakerRegistry(syncinfra.DefaultBreakerConfig(), nil)
	limiters := syncinfra.NewLimiterRegistry(nil, syncinfra.DefaultLimiterConfig(), nil)
	metrics := syncinfra.NewMetrics(time.Minute, nil)

	orchestrator := syncinfra.NewOrchestrator(
		queue, breakers, limiters,
		infraaccounting.NewRegistryWithClients(client),
		states, integrations, audit,
		syncinfra.OrchestratorConfig{
			Workers:         2,
			PollInterval:    20 * time.Millisecond,
			ProviderTimeout: 2 * time.Second,
			Backoff: accounting.BackoffPolicy{
				BaseDelay:  20 * time.Millisecond,
				MaxDelay:   100 * time.Millisecond,
				MaxRetries: 3,
			},
		},
		metrics, nil, zap.NewNop(),
	)

	return &syncFlowFixture{
		states:       states,
		integrations: integrations,
		audit:        audit,
		service:      appaccounting.NewSyncService(states, integrations, audit, queue),
		orchestrator: orchestrator,
		queue:        queue,
	}
}

func (f *syncFlowFixture) seedInvoice(t *testing.T, tenantID uuid.UUID, number string, provider accounting.ProviderCode) *accounting.InvoiceSyncState {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, f.integrations.Save(ctx, &accounting.Integration{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Provider:  provider,
		Status:    accounting.ConnectionStatusConnected,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	state := accounting.NewInvoiceSyncState(tenantID, uuid.New(), number,
		provider, decimal.NewFromFloat(480.00), "AUD")
	require.NoError(t, f.states.Save(ctx, state))
	return state
}

// TestSyncFlow_Integration drives an enqueued invoice through the worker
// pool against a real database.
func TestSyncFlow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("invoice is pushed and marked synced", func(t *testing.T) {
		client := &scriptedClient{provider: accounting.ProviderCodeXero}
		fixture := newSyncFlowFixture(t, testDB, client)
		state := fixture.seedInvoice(t, tenantID, "INV-2001", accounting.ProviderCodeXero)

		require.NoError(t, fixture.orchestrator.Start(ctx))
		defer fixture.orchestrator.Stop(context.Background())

		job, err := fixture.service.EnqueueSync(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeXero)
		require.NoError(t, err)
		assert.Equal(t, accounting.JobPriorityNormal, job.Priority)

		require.Eventually(t, func() bool {
			current, err := fixture.states.FindByInvoiceAndProvider(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeXero)
			return err == nil && current.Status == accounting.SyncStatusSynced
		}, 5*time.Second, 50*time.Millisecond, "invoice never reached SYNCED")

		current, err := fixture.states.FindByInvoiceAndProvider(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeXero)
		require.NoError(t, err)
		require.NotNil(t, current.ExternalID)
		assert.Equal(t, "ext-INV-2001", *current.ExternalID)

		entries, err := fixture.audit.FindByInvoice(ctx, tenantID, state.InvoiceID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, accounting.AuditActionSucceeded, entries[0].Action)
		assert.Equal(t, accounting.AuditActionInitiated, entries[1].Action)

		integration, err := fixture.integrations.FindByTenantAndProvider(ctx, tenantID, accounting.ProviderCodeXero)
		require.NoError(t, err)
		assert.NotNil(t, integration.LastSyncedAt)
	})

	t.Run("transient failures are retried with backoff until success", func(t *testing.T) {
		client := &scriptedClient{provider: accounting.ProviderCodeQuickBooks, failures: 2}
		fixture := newSyncFlowFixture(t, testDB, client)
		state := fixture.seedInvoice(t, tenantID, "INV-2002", accounting.ProviderCodeQuickBooks)

		require.NoError(t, fixture.orchestrator.Start(ctx))
		defer fixture.orchestrator.Stop(context.Background())

		_, err := fixture.service.EnqueueSync(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeQuickBooks)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			current, err := fixture.states.FindByInvoiceAndProvider(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeQuickBooks)
			return err == nil && current.Status == accounting.SyncStatusSynced
		}, 5*time.Second, 50*time.Millisecond, "invoice never recovered from transient failures")

		assert.Equal(t, 3, client.callCount())

		entries, err := fixture.audit.FindByInvoice(ctx, tenantID, state.InvoiceID)
		require.NoError(t, err)

		var retried int
		for _, entry := range entries {
			if entry.Action == accounting.AuditActionRetried {
				retried++
			}
		}
		assert.Equal(t, 2, retried)
	})

	t.Run("retry budget exhaustion marks the invoice failed", func(t *testing.T) {
		client := &scriptedClient{provider: accounting.ProviderCodeMYOB, failures: 100}
		fixture := newSyncFlowFixture(t, testDB, client)
		state := fixture.seedInvoice(t, tenantID, "INV-2003", accounting.ProviderCodeMYOB)

		require.NoError(t, fixture.orchestrator.Start(ctx))
		defer fixture.orchestrator.Stop(context.Background())

		_, err := fixture.service.EnqueueSync(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeMYOB)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			current, err := fixture.states.FindByInvoiceAndProvider(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeMYOB)
			return err == nil && current.Status == accounting.SyncStatusFailed
		}, 10*time.Second, 50*time.Millisecond, "invoice never exhausted its retry budget")

		current, err := fixture.states.FindByInvoiceAndProvider(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeMYOB)
		require.NoError(t, err)
		assert.Contains(t, current.LastError, "service unavailable")

		// A failed invoice is eligible for manual retry at high priority.
		job, err := fixture.service.RetrySync(ctx, tenantID, state.InvoiceID, accounting.ProviderCodeMYOB)
		require.NoError(t, err)
		assert.Equal(t, accounting.JobPriorityHigh, job.Priority)
	})
}
