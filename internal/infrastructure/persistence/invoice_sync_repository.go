package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence/models"
)

// GormInvoiceSyncRepository implements InvoiceSyncRepository using GORM
type GormInvoiceSyncRepository struct {
	db *gorm.DB
}

// NewGormInvoiceSyncRepository creates a new GormInvoiceSyncRepository
func NewGormInvoiceSyncRepository(db *gorm.DB) *GormInvoiceSyncRepository {
	return &GormInvoiceSyncRepository{db: db}
}

// Save creates or updates a sync projection
func (r *GormInvoiceSyncRepository) Save(ctx context.Context, state *accounting.InvoiceSyncState) error {
	model := models.InvoiceSyncStateModelFromDomain(state)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByInvoiceAndProvider finds the projection for an (invoice, provider) pair
func (r *GormInvoiceSyncRepository) FindByInvoiceAndProvider(ctx context.Context, tenantID, invoiceID uuid.UUID, provider accounting.ProviderCode) (*accounting.InvoiceSyncState, error) {
	var model models.InvoiceSyncStateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ? AND provider = ?", tenantID, invoiceID, provider).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrSyncStateNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice finds all projections for an invoice
func (r *GormInvoiceSyncRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]accounting.InvoiceSyncState, error) {
	var rows []models.InvoiceSyncStateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("provider ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	states := make([]accounting.InvoiceSyncState, 0, len(rows))
	for i := range rows {
		states = append(states, *rows[i].ToDomain())
	}
	return states, nil
}

// FindByExternalID finds the projection holding a provider document id
func (r *GormInvoiceSyncRepository) FindByExternalID(ctx context.Context, provider accounting.ProviderCode, externalID string) (*accounting.InvoiceSyncState, error) {
	var model models.InvoiceSyncStateModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrSyncStateNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending returns projections claimed as PENDING across all tenants,
// oldest first
func (r *GormInvoiceSyncRepository) FindPending(ctx context.Context, offset, limit int) ([]accounting.InvoiceSyncState, error) {
	var rows []models.InvoiceSyncStateModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", accounting.SyncStatusPending).
		Order("updated_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	states := make([]accounting.InvoiceSyncState, 0, len(rows))
	for i := range rows {
		states = append(states, *rows[i].ToDomain())
	}
	return states, nil
}

// CountByStatus returns projection counts per status for a tenant
func (r *GormInvoiceSyncRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[accounting.SyncStatus]int64, error) {
	type statusCount struct {
		Status accounting.SyncStatus
		Count  int64
	}

	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceSyncStateModel{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[accounting.SyncStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Ensure GormInvoiceSyncRepository implements InvoiceSyncRepository
var _ accounting.InvoiceSyncRepository = (*GormInvoiceSyncRepository)(nil)
