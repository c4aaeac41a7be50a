package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence/models"
)

// newTestDB opens an isolated in-memory SQLite database with the accounting
// schema migrated. Each call returns a fresh database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection to :memory: would see an empty database; pin the
	// pool to the single connection holding the schema.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.InvoiceSyncStateModel{},
		&models.IntegrationModel{},
		&models.AuditLogEntryModel{},
		&models.WebhookEventModel{},
	))

	return db
}
