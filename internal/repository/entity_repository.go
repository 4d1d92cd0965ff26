package repository

import (
	"context"
	"fmt"

	"github.com/vipul43/ledger-sync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordFailure is a parent record that could not be upserted; the rest of its batch still commits.
type RecordFailure struct {
	ID  string
	Err error
}

// BatchResult describes what one committed batch wrote.
type BatchResult struct {
	Committed []string // parent ids upserted
	Children  int
	Failed    []RecordFailure
}

// EntityRepository upserts Xero entities keyed by their remote identifiers.
type EntityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// CommitBatch upserts every record in a single transaction.
// Each parent and its children run under a savepoint, so a failing record is
// rolled back alone and reported in BatchResult.Failed. A parent id that occurs
// more than once is upserted each time (last write wins) but listed once in
// BatchResult.Committed.
func (r *EntityRepository) CommitBatch(ctx context.Context, records []models.FetchedRecord) (BatchResult, error) {
	var result BatchResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result = BatchResult{}
		committed := make(map[string]bool, len(records))
		for _, record := range records {
			rec := record
			err := tx.Transaction(func(rtx *gorm.DB) error {
				if err := upsert(rtx, rec.Parent); err != nil {
					return fmt.Errorf("upsert %s %s: %w", rec.Parent.TableName(), rec.ID, err)
				}
				if rec.ChildCount > 0 {
					if err := upsert(rtx, rec.Children); err != nil {
						return fmt.Errorf("upsert children of %s: %w", rec.ID, err)
					}
				}
				return nil
			})
			if err != nil {
				result.Failed = append(result.Failed, RecordFailure{ID: rec.ID, Err: err})
				continue
			}
			if !committed[rec.ID] {
				committed[rec.ID] = true
				result.Committed = append(result.Committed, rec.ID)
			}
			result.Children += rec.ChildCount
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	return result, nil
}

// CountByKeys counts the parent rows present for the given identifiers
func (r *EntityRepository) CountByKeys(ctx context.Context, parent models.Parent, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	result := r.db.WithContext(ctx).
		Table(parent.TableName()).
		Where(parent.KeyColumn()+" IN ?", ids).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count %s: %w", parent.TableName(), result.Error)
	}
	return count, nil
}

// MaxJournalNumber returns the highest journal number stored locally, 0 when there are none
func (r *EntityRepository) MaxJournalNumber(ctx context.Context) (int64, error) {
	var highest *int64
	result := r.db.WithContext(ctx).
		Model(&models.Journal{}).
		Select("MAX(journal_number)").
		Scan(&highest)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to read max journal number: %w", result.Error)
	}
	if highest == nil {
		return 0, nil
	}
	return *highest, nil
}

func upsert(tx *gorm.DB, value interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}
