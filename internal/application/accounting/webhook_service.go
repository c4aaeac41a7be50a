package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
)

// WebhookConfig holds consumer pool tuning for webhook processing.
type WebhookConfig struct {
	// Consumers is the size of the consumer pool
	Consumers int
	// PollInterval is how often the buffer is polled for pending events
	PollInterval time.Duration
	// BatchSize caps how many events one poll picks up
	BatchSize int
}

// DefaultWebhookConfig returns default webhook consumer tuning.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Consumers:    2,
		PollInterval: 2 * time.Second,
		BatchSize:    50,
	}
}

// webhookEnvelope is the provider-agnostic header every inbound payload must
// carry. Type-specific fields are decoded separately at application time.
type webhookEnvelope struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	DocumentID string    `json:"document_id"`
}

// WebhookServiceImpl accepts inbound provider events at the HTTP boundary,
// buffers them durably, and applies them to local invoice state through a
// consumer pool. Application is idempotent: providers deliver at-least-once,
// local state changes at-most-once per provider event id.
type WebhookServiceImpl struct {
	events      accounting.WebhookEventRepository
	states      accounting.InvoiceSyncRepository
	audit       accounting.AuditLogRepository
	providers   accounting.ProviderRegistry
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	config      WebhookConfig
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// NewWebhookService creates a new WebhookServiceImpl
func NewWebhookService(
	events accounting.WebhookEventRepository,
	states accounting.InvoiceSyncRepository,
	audit accounting.AuditLogRepository,
	providers accounting.ProviderRegistry,
	idempotency shared.IdempotencyStore,
	idemConfig shared.IdempotencyConfig,
	config WebhookConfig,
	logger *zap.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		events:      events,
		states:      states,
		audit:       audit,
		providers:   providers,
		idempotency: idempotency,
		idemConfig:  idemConfig,
		config:      config,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Receipt
// ---------------------------------------------------------------------------

// Receive accepts an inbound provider event: verifies the signature, decodes
// the envelope, and durably buffers the event. Receipt is idempotent: a
// redelivered event id returns the already-buffered event. The caller
// acknowledges only after this returns, so an error here makes the provider
// redeliver.
func (s *WebhookServiceImpl) Receive(ctx context.Context, provider accounting.ProviderCode, payload []byte, signature string) (*accounting.WebhookEvent, error) {
	client, err := s.providers.Client(provider)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyWebhookSignature(payload, signature); err != nil {
		return nil, accounting.ErrInvalidSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Webhook payload is not valid JSON")
	}
	if envelope.EventID == "" {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Webhook payload is missing event_id")
	}
	eventType := accounting.WebhookEventType(envelope.EventType)
	switch eventType {
	case accounting.WebhookEventPaymentReceived, accounting.WebhookEventInvoiceUpdated, accounting.WebhookEventInvoiceVoided:
	default:
		return nil, shared.NewDomainError("INVALID_PAYLOAD", fmt.Sprintf("Unsupported event type %q", envelope.EventType))
	}

	key := accounting.WebhookIdempotencyKey(provider, envelope.EventID)
	existing, err := s.events.FindByIdempotencyKey(ctx, key)
	if err == nil {
		// Already buffered: acknowledge without creating a second row.
		return existing, nil
	}
	if !errors.Is(err, accounting.ErrWebhookEventNotFound) {
		return nil, err
	}

	event := accounting.NewWebhookEvent(envelope.TenantID, provider, eventType, envelope.EventID, envelope.DocumentID, payload, time.Now())
	if err := s.events.Save(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ---------------------------------------------------------------------------
// Consumer pool
// ---------------------------------------------------------------------------

// Start launches the consumer pool: one poller feeding a bounded channel and
// a fixed set of workers applying events.
func (s *WebhookServiceImpl) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	queue := make(chan *accounting.WebhookEvent, s.config.BatchSize)

	s.wg.Add(1)
	go s.poll(ctx, queue)

	for i := 0; i < s.config.Consumers; i++ {
		s.wg.Add(1)
		go s.consume(ctx, queue)
	}

	s.logger.Info("webhook consumer pool started",
		zap.Int("consumers", s.config.Consumers),
		zap.Duration("poll_interval", s.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the consumer pool, waiting for in-flight events.
func (s *WebhookServiceImpl) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("webhook consumer pool stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("webhook consumer pool stop timed out")
		return ctx.Err()
	}
}

// poll feeds pending and retryable events to the workers. A single poller
// keeps each buffered event dispatched at most once per cycle within this
// instance; the idempotency store guards across instances.
func (s *WebhookServiceImpl) poll(ctx context.Context, queue chan<- *accounting.WebhookEvent) {
	defer s.wg.Done()
	defer close(queue)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, event := range s.nextBatch(ctx) {
				select {
				case <-ctx.Done():
					return
				case queue <- event:
				}
			}
		}
	}
}

func (s *WebhookServiceImpl) nextBatch(ctx context.Context) []*accounting.WebhookEvent {
	batch, err := s.events.FindPending(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("failed to poll pending webhook events", zap.Error(err))
		return nil
	}
	if len(batch) < s.config.BatchSize {
		retryable, err := s.events.FindRetryable(ctx, s.config.BatchSize-len(batch))
		if err != nil {
			s.logger.Error("failed to poll retryable webhook events", zap.Error(err))
		} else {
			batch = append(batch, retryable...)
		}
	}
	return batch
}

func (s *WebhookServiceImpl) consume(ctx context.Context, queue <-chan *accounting.WebhookEvent) {
	defer s.wg.Done()
	for event := range queue {
		if err := s.ProcessEvent(ctx, event); err != nil {
			s.logger.Warn("webhook event processing failed",
				zap.Error(err),
				zap.String("event_id", event.ID.String()),
				zap.String("idempotency_key", event.IdempotencyKey),
				zap.Int("attempts", event.Attempts),
			)
		}
	}
}

// ProcessEvent applies one buffered event to local state. Exported so the
// poll loop can be bypassed in tests.
//
// The idempotency key is claimed before application and released if
// application fails, so a redelivery of an applied event is a recorded
// no-op while a failed application stays retryable.
func (s *WebhookServiceImpl) ProcessEvent(ctx context.Context, event *accounting.WebhookEvent) error {
	now := time.Now()

	if s.idemConfig.Enabled {
		fresh, err := s.idempotency.MarkProcessed(ctx, event.IdempotencyKey, s.idemConfig.TTL)
		if err != nil {
			// Store unavailable: leave the event buffered for the next poll.
			return fmt.Errorf("claim idempotency key: %w", err)
		}
		if !fresh {
			event.MarkProcessed(now)
			if err := s.events.Update(ctx, event); err != nil {
				return err
			}
			s.appendAudit(ctx, event, accounting.AuditActionWebhookDuplicate, "already applied")
			return nil
		}
	}

	if err := s.apply(ctx, event, now); err != nil {
		if s.idemConfig.Enabled {
			if releaseErr := s.idempotency.Release(ctx, event.IdempotencyKey); releaseErr != nil {
				s.logger.Error("failed to release idempotency key",
					zap.Error(releaseErr),
					zap.String("idempotency_key", event.IdempotencyKey),
				)
			}
		}
		event.MarkFailed(err.Error(), now)
		if updateErr := s.events.Update(ctx, event); updateErr != nil {
			return updateErr
		}
		if !event.CanRetry() {
			s.logger.Error("webhook event exhausted its attempt budget, manual intervention required",
				zap.String("event_id", event.ID.String()),
				zap.String("idempotency_key", event.IdempotencyKey),
			)
		}
		return err
	}

	event.MarkProcessed(now)
	if err := s.events.Update(ctx, event); err != nil {
		return err
	}
	s.appendAudit(ctx, event, accounting.AuditActionWebhookApplied, "")
	return nil
}

// apply mutates local state for one event type.
func (s *WebhookServiceImpl) apply(ctx context.Context, event *accounting.WebhookEvent, now time.Time) error {
	switch event.EventType {
	case accounting.WebhookEventPaymentReceived:
		var notification accounting.PaymentNotification
		if err := json.Unmarshal(event.Payload, &notification); err != nil {
			return fmt.Errorf("decode payment notification: %w", err)
		}
		documentID := notification.ExternalDocumentID
		if documentID == "" {
			documentID = event.ExternalDocumentID
		}
		state, err := s.states.FindByExternalID(ctx, event.Provider, documentID)
		if err != nil {
			return err
		}
		state.ApplyPayment(notification.Amount, now)
		return s.states.Save(ctx, state)

	case accounting.WebhookEventInvoiceUpdated, accounting.WebhookEventInvoiceVoided:
		// The local document stays authoritative; the event is acknowledged
		// and kept in the audit trail for reconciliation.
		if _, err := s.states.FindByExternalID(ctx, event.Provider, event.ExternalDocumentID); err != nil {
			return err
		}
		return nil

	default:
		return shared.NewDomainError("INVALID_PAYLOAD", fmt.Sprintf("Unsupported event type %q", event.EventType))
	}
}

func (s *WebhookServiceImpl) appendAudit(ctx context.Context, event *accounting.WebhookEvent, action accounting.AuditAction, detail string) {
	state, err := s.states.FindByExternalID(ctx, event.Provider, event.ExternalDocumentID)
	if err != nil {
		// No local invoice to anchor the entry to; the buffered event row
		// itself is the record.
		return
	}
	entry := accounting.NewAuditLogEntry(event.TenantID, state.InvoiceID, event.Provider, action, event.Attempts, detail, time.Now())
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.String("action", action.String()),
		)
	}
}
