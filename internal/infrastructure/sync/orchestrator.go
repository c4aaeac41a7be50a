package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// OrchestratorConfig holds worker pool tuning for the sync orchestrator.
type OrchestratorConfig struct {
	// Workers is the size of the fixed worker pool
	Workers int
	// PollInterval is how often an idle worker polls the queue
	PollInterval time.Duration
	// ProviderTimeout bounds every provider call
	ProviderTimeout time.Duration
	// Backoff is the retry policy for transient failures
	Backoff accounting.BackoffPolicy
}

// DefaultOrchestratorConfig returns default orchestrator tuning.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Workers:         4,
		PollInterval:    time.Second,
		ProviderTimeout: 30 * time.Second,
		Backoff:         accounting.DefaultBackoffPolicy(),
	}
}

// Orchestrator is the coordinating worker loop: it pulls jobs from the sync
// queue, consults the circuit breaker and rate limiter for the job's
// provider, invokes the provider client, updates invoice sync state, records
// audit entries, and re-enqueues on retryable failure. Each job is processed
// start-to-finish by one worker, which keeps per-job retry bookkeeping
// race-free.
type Orchestrator struct {
	queue     *Queue
	breakers  *BreakerRegistry
	limiters  *LimiterRegistry
	providers accounting.ProviderRegistry

	states       accounting.InvoiceSyncRepository
	integrations accounting.IntegrationRepository
	audit        accounting.AuditLogRepository

	config  OrchestratorConfig
	metrics *Metrics
	clock   Clock
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// NewOrchestrator creates an orchestrator. All collaborators are injected;
// breaker and limiter state is owned by the registries, not by globals.
func NewOrchestrator(
	queue *Queue,
	breakers *BreakerRegistry,
	limiters *LimiterRegistry,
	providers accounting.ProviderRegistry,
	states accounting.InvoiceSyncRepository,
	integrations accounting.IntegrationRepository,
	audit accounting.AuditLogRepository,
	config OrchestratorConfig,
	metrics *Metrics,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if clock == nil {
		clock = SystemClock()
	}
	return &Orchestrator{
		queue:        queue,
		breakers:     breakers,
		limiters:     limiters,
		providers:    providers,
		states:       states,
		integrations: integrations,
		audit:        audit,
		config:       config,
		metrics:      metrics,
		clock:        clock,
		logger:       logger,
	}
}

// Start launches the worker pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.config.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}

	o.logger.Info("sync orchestrator started",
		zap.Int("workers", o.config.Workers),
		zap.Duration("poll_interval", o.config.PollInterval),
		zap.Duration("provider_timeout", o.config.ProviderTimeout),
	)
	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight jobs.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("sync orchestrator stopped")
		return nil
	case <-ctx.Done():
		o.logger.Warn("sync orchestrator stop timed out")
		return ctx.Err()
	}
}

// worker polls the queue and processes eligible jobs.
func (o *Orchestrator) worker(ctx context.Context, workerID int) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job := o.queue.Dequeue()
				if job == nil {
					break
				}
				o.ProcessJob(ctx, job)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// ProcessJob runs one dequeued job through the full decision sequence:
// breaker gate, limiter gate, provider call, outcome handling. Exported so
// the poll loop can be bypassed in tests.
func (o *Orchestrator) ProcessJob(ctx context.Context, job *accounting.SyncJob) {
	log := o.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("invoice_id", job.InvoiceID.String()),
		zap.String("provider", job.Provider.String()),
		zap.Int("attempt", job.Attempts),
	)

	// Fail fast while the provider's breaker is open. Deferrals do not
	// count against the retry budget.
	breaker := o.breakers.ForProvider(job.Provider)
	allowed, retryAfter := breaker.Allow()
	if !allowed {
		o.deferJob(ctx, job, retryAfter, accounting.AuditActionDeferredCircuitOpen, "circuit open")
		log.Debug("sync deferred, circuit open", zap.Duration("retry_after", retryAfter))
		return
	}

	// Respect the provider's published quota.
	admitted, wait := o.limiters.ForProvider(job.Provider).TryAcquire()
	if !admitted {
		// An unclaimed half-open probe slot goes back to the breaker.
		breaker.ReleaseProbe()
		o.deferJob(ctx, job, wait, accounting.AuditActionDeferredRateLimited, "rate limited")
		log.Debug("sync deferred, rate limited", zap.Duration("retry_after", wait))
		return
	}

	state, err := o.states.FindByInvoiceAndProvider(ctx, job.TenantID, job.InvoiceID, job.Provider)
	if err != nil {
		breaker.ReleaseProbe()
		log.Error("failed to load invoice sync state, dropping job", zap.Error(err))
		return
	}

	client, err := o.providers.Client(job.Provider)
	if err != nil {
		breaker.ReleaseProbe()
		log.Error("no provider client registered, dropping job", zap.Error(err))
		return
	}

	job.RecordAttempt()
	started := o.clock.Now()

	callCtx, cancel := context.WithTimeout(ctx, o.config.ProviderTimeout)
	outcome, callErr := client.SyncInvoice(callCtx, state)
	cancel()

	if callErr == nil {
		o.handleSuccess(ctx, job, state, outcome, o.clock.Now().Sub(started))
		log.Info("invoice synced", zap.String("external_id", outcome.ExternalID))
		return
	}

	o.handleFailure(ctx, job, state, callErr, log)
}

// deferJob re-enqueues a job without counting an attempt and records the
// deferral distinctly from failures.
func (o *Orchestrator) deferJob(ctx context.Context, job *accounting.SyncJob, delay time.Duration, action accounting.AuditAction, reason string) {
	if delay <= 0 {
		delay = o.config.PollInterval
	}
	o.queue.Requeue(job, delay)
	o.metrics.RecordDeferral()
	o.appendAudit(ctx, job, action, reason)
}

// handleSuccess marks the invoice SYNCED, stores the external id, resets the
// breaker failure counter, records the audit entry, and drops the job.
func (o *Orchestrator) handleSuccess(ctx context.Context, job *accounting.SyncJob, state *accounting.InvoiceSyncState, outcome *accounting.SyncOutcome, duration time.Duration) {
	now := o.clock.Now()
	state.MarkSynced(outcome.ExternalID, now)
	if err := o.states.Save(ctx, state); err != nil {
		o.logger.Error("failed to persist synced state", zap.Error(err),
			zap.String("invoice_id", state.InvoiceID.String()))
	}

	if integration, err := o.integrations.FindByTenantAndProvider(ctx, job.TenantID, job.Provider); err == nil {
		integration.RecordSuccess(now)
		if err := o.integrations.Save(ctx, integration); err != nil {
			o.logger.Error("failed to update integration", zap.Error(err))
		}
	}

	o.breakers.ForProvider(job.Provider).RecordSuccess()
	o.metrics.RecordSuccess(duration)
	o.appendAudit(ctx, job, accounting.AuditActionSucceeded, "")
}

// handleFailure classifies the provider error once, at this boundary, and
// either schedules a retry with backoff or terminally fails the invoice.
func (o *Orchestrator) handleFailure(ctx context.Context, job *accounting.SyncJob, state *accounting.InvoiceSyncState, callErr error, log *zap.Logger) {
	switch {
	case errors.Is(callErr, context.Canceled):
		// Shutdown interrupted the call. Give the attempt back, return
		// any half-open probe slot, and requeue so the job runs on the
		// next pass. Not a provider-health signal, so the breaker is
		// untouched.
		job.UncountAttempt()
		o.breakers.ForProvider(job.Provider).ReleaseProbe()
		o.queue.Requeue(job, 0)
		log.Debug("sync interrupted by shutdown, requeued")

	case accounting.IsAuthExpired(callErr):
		// Terminal, and the integration needs reconnection. Not a
		// dependency-health signal, so the breaker is untouched.
		o.failInvoice(ctx, job, state, callErr.Error())
		o.markIntegrationAuthExpired(ctx, job, callErr.Error())
		log.Warn("sync failed, provider auth expired", zap.Error(callErr))

	case accounting.IsPermanent(callErr):
		// Terminal. The breaker is untouched: a validation rejection says
		// nothing about provider health.
		o.failInvoice(ctx, job, state, callErr.Error())
		o.surfaceIntegrationError(ctx, job, callErr.Error())
		log.Warn("sync failed permanently", zap.Error(callErr))

	default:
		// Transient (timeouts, 5xx, connection errors) and anything
		// unclassified: count against the breaker and retry while budget
		// remains.
		o.breakers.ForProvider(job.Provider).RecordFailure()

		if o.config.Backoff.Exhausted(job.Attempts) {
			o.failInvoice(ctx, job, state, callErr.Error())
			o.surfaceIntegrationError(ctx, job, callErr.Error())
			log.Error("sync failed, retry budget exhausted", zap.Error(callErr))
			return
		}

		delay := o.config.Backoff.Delay(job.Attempts)
		o.queue.Requeue(job, delay)
		o.metrics.RecordRetry()
		o.appendAudit(ctx, job, accounting.AuditActionRetried, callErr.Error())
		log.Warn("sync failed, retry scheduled",
			zap.Duration("delay", delay),
			zap.Error(callErr),
		)
	}
}

// failInvoice marks the invoice FAILED with the last terminal error and
// drops the job.
func (o *Orchestrator) failInvoice(ctx context.Context, job *accounting.SyncJob, state *accounting.InvoiceSyncState, errMsg string) {
	state.MarkFailed(errMsg, o.clock.Now())
	if err := o.states.Save(ctx, state); err != nil {
		o.logger.Error("failed to persist failed state", zap.Error(err),
			zap.String("invoice_id", state.InvoiceID.String()))
	}
	o.metrics.RecordFailure()
	o.appendAudit(ctx, job, accounting.AuditActionFailed, errMsg)
}

func (o *Orchestrator) markIntegrationAuthExpired(ctx context.Context, job *accounting.SyncJob, errMsg string) {
	integration, err := o.integrations.FindByTenantAndProvider(ctx, job.TenantID, job.Provider)
	if err != nil {
		o.logger.Error("failed to load integration", zap.Error(err))
		return
	}
	integration.MarkAuthExpired(errMsg, o.clock.Now())
	if err := o.integrations.Save(ctx, integration); err != nil {
		o.logger.Error("failed to update integration", zap.Error(err))
	}
}

func (o *Orchestrator) surfaceIntegrationError(ctx context.Context, job *accounting.SyncJob, errMsg string) {
	integration, err := o.integrations.FindByTenantAndProvider(ctx, job.TenantID, job.Provider)
	if err != nil {
		return
	}
	integration.RecordError(errMsg, o.clock.Now())
	if err := o.integrations.Save(ctx, integration); err != nil {
		o.logger.Error("failed to update integration", zap.Error(err))
	}
}

// appendAudit writes exactly one audit entry for a transition.
func (o *Orchestrator) appendAudit(ctx context.Context, job *accounting.SyncJob, action accounting.AuditAction, detail string) {
	entry := accounting.NewAuditLogEntry(job.TenantID, job.InvoiceID, job.Provider, action, job.Attempts, detail, o.clock.Now())
	if err := o.audit.Append(ctx, entry); err != nil {
		o.logger.Error("failed to append audit entry",
			zap.Error(err),
			zap.String("invoice_id", job.InvoiceID.String()),
			zap.String("action", action.String()),
		)
	}
}

// EnqueueForRetry is used by the application layer to re-enqueue a FAILED
// invoice at HIGH priority. It only creates a new job; a job already
// executing is unaffected.
func (o *Orchestrator) EnqueueForRetry(tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) *accounting.SyncJob {
	job := accounting.NewSyncJob(tenantID, invoiceID, provider, accounting.JobPriorityHigh, o.clock.Now())
	return o.queue.Enqueue(job)
}
