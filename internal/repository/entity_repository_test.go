package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/ledger-sync/internal/database/dbtest"
	"github.com/vipul43/ledger-sync/internal/models"
)

func strPtr(s string) *string { return &s }

func invoiceRecord(id string, total float64, lines ...string) models.FetchedRecord {
	items := make([]models.InvoiceItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.InvoiceItem{
			InvoiceItemID: models.ChildID(id, line),
			InvoiceID:     id,
			LineAmount:    total,
			SyncedAt:      time.Now(),
		})
	}
	return models.FetchedRecord{
		ID:         id,
		Parent:     &models.Invoice{InvoiceID: id, InvoiceNumber: strPtr("INV-" + id), Total: total, SyncedAt: time.Now()},
		Children:   &items,
		ChildCount: len(items),
	}
}

func TestEntityRepository_CommitBatch_IsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)
	ctx := context.Background()

	batch := []models.FetchedRecord{
		invoiceRecord("a", 10, "1", "2"),
		invoiceRecord("b", 20, "1"),
	}

	for i := 0; i < 2; i++ {
		result, err := repo.CommitBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, result.Committed)
		assert.Equal(t, 3, result.Children)
		assert.Empty(t, result.Failed)
	}

	var invoices, items int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&invoices).Error)
	require.NoError(t, db.Model(&models.InvoiceItem{}).Count(&items).Error)
	assert.Equal(t, int64(2), invoices)
	assert.Equal(t, int64(3), items)
}

func TestEntityRepository_CommitBatch_ListsRepeatedParentOnce(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)

	result, err := repo.CommitBatch(context.Background(), []models.FetchedRecord{
		invoiceRecord("a", 10, "1"),
		invoiceRecord("b", 20, "1"),
		invoiceRecord("a", 15, "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Committed)
	assert.Empty(t, result.Failed)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, "invoice_id = ?", "a").Error)
	assert.Equal(t, 15.0, stored.Total)

	count, err := repo.CountByKeys(context.Background(), &models.Invoice{}, result.Committed)
	require.NoError(t, err)
	assert.Equal(t, int64(len(result.Committed)), count)
}

func TestEntityRepository_CommitBatch_UpdatesInPlace(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)
	ctx := context.Background()

	_, err := repo.CommitBatch(ctx, []models.FetchedRecord{invoiceRecord("a", 10, "1")})
	require.NoError(t, err)
	_, err = repo.CommitBatch(ctx, []models.FetchedRecord{invoiceRecord("a", 99, "1")})
	require.NoError(t, err)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, "invoice_id = ?", "a").Error)
	assert.Equal(t, 99.0, stored.Total)

	var item models.InvoiceItem
	require.NoError(t, db.First(&item, "invoice_item_id = ?", "a_1").Error)
	assert.Equal(t, 99.0, item.LineAmount)
}

func TestEntityRepository_CommitBatch_SkipsFailingRecord(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)

	broken := invoiceRecord("bad", 5)
	broken.Children = &[]int{1}
	broken.ChildCount = 1

	result, err := repo.CommitBatch(context.Background(), []models.FetchedRecord{
		invoiceRecord("a", 10, "1"),
		broken,
		invoiceRecord("c", 30, "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, result.Committed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "bad", result.Failed[0].ID)

	// the failing parent was rolled back with its savepoint
	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Where("invoice_id = ?", "bad").Count(&count).Error)
	assert.Zero(t, count)
}

func TestEntityRepository_CountByKeys(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)
	ctx := context.Background()

	_, err := repo.CommitBatch(ctx, []models.FetchedRecord{invoiceRecord("a", 1), invoiceRecord("b", 2)})
	require.NoError(t, err)

	n, err := repo.CountByKeys(ctx, &models.Invoice{}, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountByKeys(ctx, &models.Invoice{}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEntityRepository_MaxJournalNumber(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewEntityRepository(db)
	ctx := context.Background()

	highest, err := repo.MaxJournalNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, highest)

	for _, n := range []int64{7, 42, 13} {
		require.NoError(t, db.Create(&models.Journal{JournalID: fmt.Sprintf("j-%d", n), JournalNumber: n}).Error)
	}

	highest, err = repo.MaxJournalNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), highest)
}
