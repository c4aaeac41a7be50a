package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM.
// The table is the durable ingestion buffer: events are acknowledged at the
// HTTP boundary only after the row is committed.
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Save persists a new buffered event
func (r *GormWebhookEventRepository) Save(ctx context.Context, event *accounting.WebhookEvent) error {
	model := models.WebhookEventModelFromDomain(event)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update updates a buffered event after processing
func (r *GormWebhookEventRepository) Update(ctx context.Context, event *accounting.WebhookEvent) error {
	model := models.WebhookEventModelFromDomain(event)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID retrieves a buffered event
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrWebhookEventNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey retrieves an event by its dedupe key
func (r *GormWebhookEventRepository) FindByIdempotencyKey(ctx context.Context, key string) (*accounting.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrWebhookEventNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending retrieves events awaiting processing, oldest first
func (r *GormWebhookEventRepository) FindPending(ctx context.Context, limit int) ([]*accounting.WebhookEvent, error) {
	return r.findByStatus(ctx, accounting.WebhookStatusPending, limit, false)
}

// FindRetryable retrieves failed events still within their attempt budget,
// oldest first
func (r *GormWebhookEventRepository) FindRetryable(ctx context.Context, limit int) ([]*accounting.WebhookEvent, error) {
	return r.findByStatus(ctx, accounting.WebhookStatusFailed, limit, true)
}

func (r *GormWebhookEventRepository) findByStatus(ctx context.Context, status accounting.WebhookStatus, limit int, withinBudget bool) ([]*accounting.WebhookEvent, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("received_at ASC")
	if withinBudget {
		query = query.Where("attempts < max_attempts")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.WebhookEventModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*accounting.WebhookEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToDomain())
	}
	return events, nil
}

// CountByStatus returns event counts per status
func (r *GormWebhookEventRepository) CountByStatus(ctx context.Context) (map[accounting.WebhookStatus]int64, error) {
	type statusCount struct {
		Status accounting.WebhookStatus
		Count  int64
	}

	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[accounting.WebhookStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Ensure GormWebhookEventRepository implements WebhookEventRepository
var _ accounting.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
