package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vipul43/ledger-sync/internal/models"
	"gorm.io/gorm"
)

type CheckpointRepository struct {
	db *gorm.DB
}

func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Get returns the checkpoint for an entity, creating an idle one on first use
func (r *CheckpointRepository) Get(ctx context.Context, entity string) (*models.SyncCheckpoint, error) {
	checkpoint := models.SyncCheckpoint{
		Entity:       entity,
		Mode:         models.SyncModeFull,
		LastPosition: models.StartPosition,
		Status:       models.CheckpointIdle,
	}
	result := r.db.WithContext(ctx).
		Where(models.SyncCheckpoint{Entity: entity}).
		FirstOrCreate(&checkpoint)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", result.Error)
	}
	return &checkpoint, nil
}

// MarkRunning records the start (or resumption) of a run
func (r *CheckpointRepository) MarkRunning(ctx context.Context, entity string, mode models.SyncMode, position int64, runStartedAt time.Time) error {
	return r.update(ctx, entity, map[string]interface{}{
		"status":         models.CheckpointRunning,
		"mode":           mode,
		"last_position":  position,
		"run_started_at": runStartedAt,
		"last_error":     nil,
	})
}

// Advance moves the committed batch boundary forward
func (r *CheckpointRepository) Advance(ctx context.Context, entity string, position int64) error {
	return r.update(ctx, entity, map[string]interface{}{
		"last_position": position,
	})
}

// Completion carries the bookkeeping written when a run finishes successfully.
type Completion struct {
	CompletedAt time.Time
	FullSync    bool
	Watermark   *time.Time
}

// MarkCompleted resets the position to the start sentinel and stores timestamps
func (r *CheckpointRepository) MarkCompleted(ctx context.Context, entity string, c Completion) error {
	updates := map[string]interface{}{
		"status":            models.CheckpointCompleted,
		"last_position":     models.StartPosition,
		"last_completed_at": c.CompletedAt,
		"run_started_at":    nil,
		"last_error":        nil,
	}
	if c.FullSync {
		updates["last_full_sync_at"] = c.CompletedAt
	}
	if c.Watermark != nil {
		updates["last_modified_watermark"] = *c.Watermark
	}
	return r.update(ctx, entity, updates)
}

// MarkFailed records the error and leaves last_position untouched for the next resume
func (r *CheckpointRepository) MarkFailed(ctx context.Context, entity string, lastError string) error {
	return r.update(ctx, entity, map[string]interface{}{
		"status":     models.CheckpointFailed,
		"last_error": lastError,
	})
}

func (r *CheckpointRepository) update(ctx context.Context, entity string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.SyncCheckpoint{}).
		Where("entity = ?", entity).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update checkpoint %s: %w", entity, result.Error)
	}
	return nil
}
