package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vipul43/ledger-sync/internal/models"
)

// Syncer syncs a single entity.
type Syncer interface {
	Sync(ctx context.Context, entity Entity) (Result, error)
}

// SyncLogWriter appends to the sync audit log.
type SyncLogWriter interface {
	Create(ctx context.Context, entry models.SyncLog) error
}

// Summary aggregates one orchestrated run.
type Summary struct {
	Results []Result
	Total   int
}

// Orchestrator runs every entity in order and stops at the first failure.
type Orchestrator struct {
	syncer   Syncer
	logs     SyncLogWriter
	entities []Entity
	now      func() time.Time
}

func NewOrchestrator(syncer Syncer, logs SyncLogWriter) *Orchestrator {
	return &Orchestrator{
		syncer:   syncer,
		logs:     logs,
		entities: DefaultEntities(),
		now:      time.Now,
	}
}

// Run syncs accounts, contacts, invoices and journals. Records committed by
// earlier entities, or earlier batches of the failing one, stay committed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	for _, entity := range o.entities {
		startedAt := o.now()
		result, err := o.syncer.Sync(ctx, entity)
		o.record(ctx, entity, result, startedAt, err)

		if err != nil {
			return summary, fmt.Errorf("%s sync failed: %w", entity.Name, err)
		}
		summary.Results = append(summary.Results, result)
		summary.Total += result.Records
	}

	return summary, nil
}

func (o *Orchestrator) record(ctx context.Context, entity Entity, result Result, startedAt time.Time, syncErr error) {
	completedAt := o.now()
	entry := models.SyncLog{
		ID:              uuid.New().String(),
		SyncType:        entity.Name,
		Mode:            result.Mode,
		RecordsSynced:   result.Records,
		Status:          models.SyncLogSuccess,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		DurationSeconds: int(completedAt.Sub(startedAt).Seconds()),
	}
	if syncErr != nil {
		msg := syncErr.Error()
		entry.Status = models.SyncLogFailed
		entry.ErrorMessage = &msg
	}

	if err := o.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("Warning: failed to write sync log for %s: %v", entity.Name, err)
	}
}
