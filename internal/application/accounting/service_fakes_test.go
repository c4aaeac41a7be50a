package accounting

import (
	"context"
	"errors"
	"sort"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// ---------------------------------------------------------------------------
// In-memory fakes shared by the service tests
// ---------------------------------------------------------------------------

type fakeStateRepo struct {
	mu     stdsync.Mutex
	states map[accounting.JobKey]*accounting.InvoiceSyncState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[accounting.JobKey]*accounting.InvoiceSyncState)}
}

func (r *fakeStateRepo) Save(_ context.Context, state *accounting.InvoiceSyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[accounting.JobKey{InvoiceID: state.InvoiceID, Provider: state.Provider}] = state
	return nil
}

func (r *fakeStateRepo) FindByInvoiceAndProvider(_ context.Context, _, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.InvoiceSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[accounting.JobKey{InvoiceID: invoiceID, Provider: provider}]
	if !ok {
		return nil, accounting.ErrSyncStateNotFound
	}
	return state, nil
}

func (r *fakeStateRepo) FindByInvoice(_ context.Context, _, invoiceID uuid.UUID) ([]accounting.InvoiceSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []accounting.InvoiceSyncState
	for _, s := range r.states {
		if s.InvoiceID == invoiceID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeStateRepo) FindByExternalID(_ context.Context, provider accounting.ProviderCode, externalID string) (*accounting.InvoiceSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.Provider == provider && s.ExternalID != nil && *s.ExternalID == externalID {
			return s, nil
		}
	}
	return nil, accounting.ErrSyncStateNotFound
}

func (r *fakeStateRepo) FindPending(_ context.Context, offset, limit int) ([]accounting.InvoiceSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []accounting.InvoiceSyncState
	for _, s := range r.states {
		if s.Status == accounting.SyncStatusPending {
			pending = append(pending, *s)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
	})
	if offset >= len(pending) {
		return nil, nil
	}
	pending = pending[offset:]
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *fakeStateRepo) CountByStatus(_ context.Context, _ uuid.UUID) (map[accounting.SyncStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[accounting.SyncStatus]int64)
	for _, s := range r.states {
		counts[s.Status]++
	}
	return counts, nil
}

type fakeIntegrationRepo struct {
	mu           stdsync.Mutex
	integrations map[accounting.ProviderCode]*accounting.Integration
}

func newFakeIntegrationRepo() *fakeIntegrationRepo {
	return &fakeIntegrationRepo{integrations: make(map[accounting.ProviderCode]*accounting.Integration)}
}

func (r *fakeIntegrationRepo) Save(_ context.Context, integration *accounting.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[integration.Provider] = integration
	return nil
}

func (r *fakeIntegrationRepo) FindByTenantAndProvider(_ context.Context, _ uuid.UUID, provider accounting.ProviderCode) (*accounting.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	integration, ok := r.integrations[provider]
	if !ok {
		return nil, accounting.ErrIntegrationNotFound
	}
	return integration, nil
}

func (r *fakeIntegrationRepo) FindAllForTenant(_ context.Context, _ uuid.UUID) ([]accounting.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []accounting.Integration
	for _, i := range r.integrations {
		out = append(out, *i)
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      stdsync.Mutex
	entries []*accounting.AuditLogEntry
}

func (r *fakeAuditRepo) Append(_ context.Context, entries ...*accounting.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeAuditRepo) FindByInvoice(_ context.Context, _, invoiceID uuid.UUID) ([]accounting.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []accounting.AuditLogEntry
	for _, e := range r.entries {
		if e.InvoiceID == invoiceID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) FindAll(_ context.Context, _ uuid.UUID, _ accounting.AuditLogFilter) ([]accounting.AuditLogEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]accounting.AuditLogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []accounting.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]accounting.AuditAction, len(r.entries))
	for i, e := range r.entries {
		actions[i] = e.Action
	}
	return actions
}

type fakeWebhookRepo struct {
	mu     stdsync.Mutex
	events map[uuid.UUID]*accounting.WebhookEvent
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{events: make(map[uuid.UUID]*accounting.WebhookEvent)}
}

func (r *fakeWebhookRepo) Save(_ context.Context, event *accounting.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *fakeWebhookRepo) Update(_ context.Context, event *accounting.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *fakeWebhookRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, accounting.ErrWebhookEventNotFound
	}
	return event, nil
}

func (r *fakeWebhookRepo) FindByIdempotencyKey(_ context.Context, key string) (*accounting.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.IdempotencyKey == key {
			return e, nil
		}
	}
	return nil, accounting.ErrWebhookEventNotFound
}

func (r *fakeWebhookRepo) FindPending(_ context.Context, limit int) ([]*accounting.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accounting.WebhookEvent
	for _, e := range r.events {
		if e.Status == accounting.WebhookStatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) FindRetryable(_ context.Context, limit int) ([]*accounting.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accounting.WebhookEvent
	for _, e := range r.events {
		if e.CanRetry() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) CountByStatus(_ context.Context) (map[accounting.WebhookStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[accounting.WebhookStatus]int64)
	for _, e := range r.events {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *fakeWebhookRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeIdempotencyStore struct {
	mu        stdsync.Mutex
	processed map[string]bool
	failNext  error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{processed: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return false, err
	}
	if s.processed[key] {
		return false, nil
	}
	s.processed[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[key], nil
}

func (s *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, key)
	return nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }

type fakeQueue struct {
	mu   stdsync.Mutex
	jobs map[accounting.JobKey]*accounting.SyncJob
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[accounting.JobKey]*accounting.SyncJob)}
}

func (q *fakeQueue) Enqueue(job *accounting.SyncJob) *accounting.SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.jobs[job.Key()]; ok {
		return existing
	}
	q.jobs[job.Key()] = job
	return job
}

func (q *fakeQueue) Contains(key accounting.JobKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.jobs[key]
	return ok
}

type fakeProviderClient struct {
	code          accounting.ProviderCode
	goodSignature string
}

func (c *fakeProviderClient) ProviderCode() accounting.ProviderCode { return c.code }

func (c *fakeProviderClient) SyncInvoice(_ context.Context, _ *accounting.InvoiceSyncState) (*accounting.SyncOutcome, error) {
	return nil, errors.New("not used in these tests")
}

func (c *fakeProviderClient) VerifyWebhookSignature(_ []byte, signature string) error {
	if signature != c.goodSignature {
		return accounting.ErrInvalidSignature
	}
	return nil
}

type fakeProviderRegistry struct {
	clients map[accounting.ProviderCode]accounting.ProviderClient
}

func (r *fakeProviderRegistry) Client(code accounting.ProviderCode) (accounting.ProviderClient, error) {
	client, ok := r.clients[code]
	if !ok {
		return nil, accounting.ErrProviderNotConfigured
	}
	return client, nil
}

func (r *fakeProviderRegistry) Clients() []accounting.ProviderClient {
	out := make([]accounting.ProviderClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
