package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence/models"
)

// GormAuditLogRepository implements AuditLogRepository using GORM. The
// backing table is append-only; this repository exposes no update or delete.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append persists one or more audit entries
func (r *GormAuditLogRepository) Append(ctx context.Context, entries ...*accounting.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*models.AuditLogEntryModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.AuditLogEntryModelFromDomain(e))
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindByInvoice returns entries for an invoice, newest first
func (r *GormAuditLogRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.AuditLogEntry, error) {
	var rows []models.AuditLogEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]accounting.AuditLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}

// FindAll returns entries matching the filter, newest first, with the total
// count for pagination
func (r *GormAuditLogRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter accounting.AuditLogFilter) ([]accounting.AuditLogEntry, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AuditLogEntryModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var rows []models.AuditLogEntryModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]accounting.AuditLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, total, nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ accounting.AuditLogRepository = (*GormAuditLogRepository)(nil)
