package models

import "time"

type CheckpointStatus string

const (
	CheckpointIdle      CheckpointStatus = "idle"
	CheckpointRunning   CheckpointStatus = "running"
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointFailed    CheckpointStatus = "failed"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// StartPosition is the sentinel stored in LastPosition when no batch of the
// current run has been committed yet.
const StartPosition int64 = 0

// SyncCheckpoint is the resumption state for one entity.
// While Status is running, LastPosition is the last fully committed batch
// boundary: a page number for paged entities, a journal number for journals.
type SyncCheckpoint struct {
	Entity                string           `gorm:"column:entity;primaryKey"`
	Mode                  SyncMode         `gorm:"column:mode"`
	LastPosition          int64            `gorm:"column:last_position"`
	Status                CheckpointStatus `gorm:"column:status;index"`
	RunStartedAt          *time.Time       `gorm:"column:run_started_at"`
	LastCompletedAt       *time.Time       `gorm:"column:last_completed_at"`
	LastFullSyncAt        *time.Time       `gorm:"column:last_full_sync_at"`
	LastModifiedWatermark *time.Time       `gorm:"column:last_modified_watermark"`
	LastError             *string          `gorm:"column:last_error"`
	UpdatedAt             time.Time        `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncCheckpoint) TableName() string {
	return "sync_checkpoint"
}

// Interrupted reports whether the previous run stopped before completing.
func (c SyncCheckpoint) Interrupted() bool {
	return c.Status == CheckpointRunning || c.Status == CheckpointFailed
}
