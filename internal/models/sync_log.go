package models

import "time"

const (
	SyncLogSuccess = "success"
	SyncLogFailed  = "failed"
)

// SyncLog is one row of the append-only audit trail, written once per entity sync attempt.
type SyncLog struct {
	ID              string    `gorm:"column:id;primaryKey"`
	SyncType        string    `gorm:"column:sync_type;index"`
	Mode            SyncMode  `gorm:"column:mode"`
	RecordsSynced   int       `gorm:"column:records_synced"`
	Status          string    `gorm:"column:status"`
	ErrorMessage    *string   `gorm:"column:error_message"`
	StartedAt       time.Time `gorm:"column:started_at"`
	CompletedAt     time.Time `gorm:"column:completed_at"`
	DurationSeconds int       `gorm:"column:duration_seconds"`
}

// TableName specifies the table name for GORM
func (SyncLog) TableName() string {
	return "sync_log"
}
