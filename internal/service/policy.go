package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/repository"
)

// DefaultFullResyncInterval is how stale a journal full sync may get before the next run repeats it.
const DefaultFullResyncInterval = 7 * 24 * time.Hour

// CheckpointStore persists per-entity resumption state.
type CheckpointStore interface {
	Get(ctx context.Context, entity string) (*models.SyncCheckpoint, error)
	MarkRunning(ctx context.Context, entity string, mode models.SyncMode, position int64, runStartedAt time.Time) error
	MarkCompleted(ctx context.Context, entity string, c repository.Completion) error
	MarkFailed(ctx context.Context, entity string, lastError string) error
	CheckpointAdvancer
}

// KeySource reports the highest ordinal key already stored locally.
type KeySource interface {
	MaxJournalNumber(ctx context.Context) (int64, error)
}

// Plan is the decision taken for one entity before its run starts.
type Plan struct {
	Mode   models.SyncMode
	Resume bool
	// Position is the last committed boundary; the walk starts just after it.
	Position      int64
	ModifiedSince *time.Time
	RunStartedAt  time.Time
}

// Policy decides between full, incremental and resumed runs and keeps the
// checkpoint lifecycle in step with the outcome.
type Policy struct {
	checkpoints        CheckpointStore
	keys               KeySource
	fullResyncInterval time.Duration
	forceFull          bool
	now                func() time.Time
}

func NewPolicy(checkpoints CheckpointStore, keys KeySource, fullResyncInterval time.Duration, forceFull bool) *Policy {
	if fullResyncInterval <= 0 {
		fullResyncInterval = DefaultFullResyncInterval
	}
	return &Policy{
		checkpoints:        checkpoints,
		keys:               keys,
		fullResyncInterval: fullResyncInterval,
		forceFull:          forceFull,
		now:                time.Now,
	}
}

// Begin plans the run for entity and marks its checkpoint running.
func (p *Policy) Begin(ctx context.Context, entity Entity) (Plan, error) {
	checkpoint, err := p.checkpoints.Get(ctx, entity.Name)
	if err != nil {
		return Plan{}, err
	}

	plan, err := p.plan(ctx, entity, checkpoint)
	if err != nil {
		return Plan{}, err
	}

	if err := p.checkpoints.MarkRunning(ctx, entity.Name, plan.Mode, plan.Position, plan.RunStartedAt); err != nil {
		return Plan{}, err
	}

	switch {
	case plan.Resume:
		log.Printf("Resuming %s %s sync after position %d", plan.Mode, entity.Name, plan.Position)
	case plan.ModifiedSince != nil:
		log.Printf("Starting incremental %s sync, modified since %s", entity.Name, plan.ModifiedSince.Format(time.RFC3339))
	default:
		log.Printf("Starting %s %s sync from position %d", plan.Mode, entity.Name, plan.Position)
	}
	return plan, nil
}

func (p *Policy) plan(ctx context.Context, entity Entity, checkpoint *models.SyncCheckpoint) (Plan, error) {
	now := p.now()

	// A forced full sync only overrides an interrupted incremental run; an
	// interrupted full run already is one and picks up where it stopped.
	if checkpoint.Interrupted() && !(p.forceFull && checkpoint.Mode == models.SyncModeIncremental) {
		plan := Plan{
			Mode:         checkpoint.Mode,
			Resume:       true,
			Position:     checkpoint.LastPosition,
			RunStartedAt: now,
		}
		if checkpoint.RunStartedAt != nil {
			plan.RunStartedAt = *checkpoint.RunStartedAt
		}
		if entity.Watermarked && plan.Mode == models.SyncModeIncremental {
			plan.ModifiedSince = checkpoint.LastModifiedWatermark
		}
		return plan, nil
	}

	full := Plan{Mode: models.SyncModeFull, Position: models.StartPosition, RunStartedAt: now}
	if p.forceFull {
		return full, nil
	}

	switch {
	case entity.Watermarked:
		if checkpoint.Status == models.CheckpointCompleted && checkpoint.LastModifiedWatermark != nil {
			return Plan{
				Mode:          models.SyncModeIncremental,
				Position:      models.StartPosition,
				ModifiedSince: checkpoint.LastModifiedWatermark,
				RunStartedAt:  now,
			}, nil
		}

	case entity.Ordinal:
		if checkpoint.LastFullSyncAt == nil || now.Sub(*checkpoint.LastFullSyncAt) > p.fullResyncInterval {
			return full, nil
		}
		highest, err := p.keys.MaxJournalNumber(ctx)
		if err != nil {
			return Plan{}, err
		}
		return Plan{Mode: models.SyncModeIncremental, Position: highest, RunStartedAt: now}, nil
	}

	return full, nil
}

// Complete records a finished run: position back to the start sentinel, timestamps updated.
func (p *Policy) Complete(ctx context.Context, entity Entity, plan Plan) error {
	completion := repository.Completion{
		CompletedAt: p.now(),
		FullSync:    plan.Mode == models.SyncModeFull,
	}
	if entity.Watermarked {
		// records modified while the run was in flight are picked up next time
		watermark := plan.RunStartedAt
		completion.Watermark = &watermark
	}
	if err := p.checkpoints.MarkCompleted(ctx, entity.Name, completion); err != nil {
		return fmt.Errorf("failed to complete %s checkpoint: %w", entity.Name, err)
	}
	return nil
}

// Fail marks the checkpoint failed and leaves its position for the next resume.
// It runs even when ctx has been cancelled.
func (p *Policy) Fail(ctx context.Context, entity Entity, cause error) {
	if err := p.checkpoints.MarkFailed(context.WithoutCancel(ctx), entity.Name, cause.Error()); err != nil {
		log.Printf("Warning: failed to mark %s checkpoint failed: %v", entity.Name, err)
	}
}
