package repository

import (
	"context"

	"github.com/vipul43/ledger-sync/internal/models"
	"gorm.io/gorm"
)

type SyncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create appends an entry to the sync audit log
func (r *SyncLogRepository) Create(ctx context.Context, entry models.SyncLog) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}
