// Package dbtest opens throwaway SQLite databases carrying the sync schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vipul43/ledger-sync/internal/models"
)

// Open returns a migrated database that is removed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sync.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.TokenState{},
		&models.SyncCheckpoint{},
		&models.SyncLog{},
		&models.Account{},
		&models.Contact{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Journal{},
		&models.JournalLine{},
	)
	if err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
