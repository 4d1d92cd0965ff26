package service

import (
	"context"
	"fmt"
	"log"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/repository"
)

// BatchStore writes batches of fetched records.
type BatchStore interface {
	CommitBatch(ctx context.Context, records []models.FetchedRecord) (repository.BatchResult, error)
	KeyCounter
}

// KeyCounter reads back how many parent rows exist for a set of identifiers.
type KeyCounter interface {
	CountByKeys(ctx context.Context, parent models.Parent, ids []string) (int64, error)
}

// CheckpointAdvancer moves an entity's committed batch boundary.
type CheckpointAdvancer interface {
	Advance(ctx context.Context, entity string, position int64) error
}

// BatchCommitter buffers fetched records across pages and commits them in
// batches. The checkpoint only moves after a batch has been committed.
type BatchCommitter struct {
	entity      Entity
	store       BatchStore
	checkpoints CheckpointAdvancer
	threshold   int
	verify      bool

	buffer    []models.FetchedRecord
	pending   int64
	position  int64
	dirty     bool
	committed int
}

// NewBatchCommitter flushes once threshold records are buffered.
func NewBatchCommitter(entity Entity, store BatchStore, checkpoints CheckpointAdvancer, threshold int, verify bool) *BatchCommitter {
	if threshold <= 0 {
		threshold = 1
	}
	return &BatchCommitter{
		entity:      entity,
		store:       store,
		checkpoints: checkpoints,
		threshold:   threshold,
		verify:      verify,
	}
}

// Ingest buffers the records of one consumed response. position is the
// checkpoint value that becomes safe once these records are committed.
func (b *BatchCommitter) Ingest(records []models.FetchedRecord, position int64) {
	b.buffer = append(b.buffer, records...)
	b.pending = position
	b.dirty = true
}

// FlushIfFull commits the buffer when it has reached the threshold.
func (b *BatchCommitter) FlushIfFull(ctx context.Context) error {
	if len(b.buffer) < b.threshold {
		return nil
	}
	return b.flush(ctx)
}

// FlushRemainder commits whatever is left at the end of the stream.
func (b *BatchCommitter) FlushRemainder(ctx context.Context) error {
	if !b.dirty {
		return nil
	}
	return b.flush(ctx)
}

// Committed is the number of parent records stored so far.
func (b *BatchCommitter) Committed() int {
	return b.committed
}

// Position is the last checkpoint value written by this committer.
func (b *BatchCommitter) Position() int64 {
	return b.position
}

func (b *BatchCommitter) flush(ctx context.Context) error {
	if len(b.buffer) > 0 {
		result, err := b.store.CommitBatch(ctx, b.buffer)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCommit, b.entity.Name, err)
		}

		for _, failure := range result.Failed {
			log.Printf("Warning: skipping %v", &RecordError{Entity: b.entity.Name, ID: failure.ID, Err: failure.Err})
		}

		ids := uniqueIDs(result.Committed)
		if b.verify {
			ok, err := VerifyBatch(ctx, b.store, b.entity.Parent, ids)
			switch {
			case err != nil:
				log.Printf("Warning: could not verify %s batch: %v", b.entity.Name, err)
			case !ok:
				log.Printf("Warning: %s batch verification mismatch, expected %d rows", b.entity.Name, len(ids))
			}
		}

		b.committed += len(ids)
		log.Printf("Committed %d %s (%d child rows, %d skipped)", len(ids), b.entity.Name, result.Children, len(result.Failed))
	}

	if err := b.checkpoints.Advance(ctx, b.entity.Name, b.pending); err != nil {
		return fmt.Errorf("failed to advance %s checkpoint: %w", b.entity.Name, err)
	}
	b.position = b.pending
	b.buffer = b.buffer[:0]
	b.dirty = false
	return nil
}

// uniqueIDs drops repeated ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}

// VerifyBatch re-reads the parent rows for ids and reports whether all of them
// are present. A mismatch is only a signal; nothing is corrected.
func VerifyBatch(ctx context.Context, counter KeyCounter, parent models.Parent, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	ids = uniqueIDs(ids)
	n, err := counter.CountByKeys(ctx, parent, ids)
	if err != nil {
		return false, err
	}
	return n == int64(len(ids)), nil
}
