package services

import (
	"testing"

	"classreminder/internal/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func databaseOccurrences(db *gorm.DB) OccurrenceSource {
	return database.NewOccurrenceStore(db)
}

func databaseReminders(db *gorm.DB) ReminderLedger {
	return database.NewReminderStore(db)
}
