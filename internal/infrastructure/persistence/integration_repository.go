package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// Save creates or updates an integration
func (r *GormIntegrationRepository) Save(ctx context.Context, integration *accounting.Integration) error {
	model := models.IntegrationModelFromDomain(integration)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByTenantAndProvider finds the unique integration for a (tenant, provider) pair
func (r *GormIntegrationRepository) FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider accounting.ProviderCode) (*accounting.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all integrations for a tenant
func (r *GormIntegrationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]accounting.Integration, error) {
	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("provider ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	integrations := make([]accounting.Integration, 0, len(rows))
	for i := range rows {
		integrations = append(integrations, *rows[i].ToDomain())
	}
	return integrations, nil
}

// Ensure GormIntegrationRepository implements IntegrationRepository
var _ accounting.IntegrationRepository = (*GormIntegrationRepository)(nil)
