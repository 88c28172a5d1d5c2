package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestImportRecordLifecycle(t *testing.T) {
	t.Parallel()
	db, ctx := openTestDB(t)
	repo := NewImportRepo(db)

	id := uuid.NewString()
	require.NoError(t, repo.Create(ctx, TransactionImport{
		ID: id, Filename: "march.csv", FileType: "csv",
		Status: StatusPending, TotalRows: 10, ValidRows: 8,
	}))

	record, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusPending, record.Status)
	require.Equal(t, 10, record.TotalRows)
	require.Nil(t, record.CompletedAt)

	processing := StatusProcessing
	require.NoError(t, repo.Update(ctx, id, ImportUpdate{Status: &processing}))

	partial := StatusPartial
	imported, skipped, errCount := 6, 1, 2
	details := `[{"row":2,"error":"invalid date format"}]`
	completed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, id, ImportUpdate{
		Status: &partial, ImportedCount: &imported, SkippedCount: &skipped,
		ErrorCount: &errCount, ErrorDetails: &details, CompletedAt: &completed,
	}))

	record, err = repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, record.Status)
	require.Equal(t, 6, record.ImportedCount)
	require.Equal(t, 1, record.SkippedCount)
	require.Equal(t, 2, record.ErrorCount)
	require.NotNil(t, record.ErrorDetails)
	require.NotNil(t, record.CompletedAt)

	require.ErrorIs(t, repo.Update(ctx, "missing", ImportUpdate{Status: &partial}), ErrNotFound)
}

func TestImportListFilter(t *testing.T) {
	t.Parallel()
	db, ctx := openTestDB(t)
	repo := NewImportRepo(db)

	for _, status := range []string{StatusCompleted, StatusFailed, StatusCompleted} {
		require.NoError(t, repo.Create(ctx, TransactionImport{
			ID: uuid.NewString(), Filename: "f.csv", FileType: "csv", Status: status,
		}))
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	completed, err := repo.List(ctx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
}

func TestImportDeleteUnlinksOrCascades(t *testing.T) {
	t.Parallel()
	db, ctx := openTestDB(t)
	imports := NewImportRepo(db)
	txns := NewTransactionRepo(db)

	makeBatch := func() (string, string) {
		impID := uuid.NewString()
		require.NoError(t, imports.Create(ctx, TransactionImport{
			ID: impID, Filename: "b.csv", FileType: "csv", Status: StatusCompleted,
		}))
		txnID := uuid.NewString()
		require.NoError(t, txns.Insert(ctx, Transaction{
			ID: txnID, Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
			Description: "BATCH ROW", AmountCents: -100, ImportID: &impID,
		}))
		return impID, txnID
	}

	// Default delete keeps the transactions, detached from the record.
	impID, txnID := makeBatch()
	require.NoError(t, imports.Delete(ctx, impID, false))
	txn, err := txns.Get(ctx, txnID)
	require.NoError(t, err)
	require.NotNil(t, txn)
	require.Nil(t, txn.ImportID)

	// Cascade delete removes the batch's transactions too.
	impID, txnID = makeBatch()
	require.NoError(t, imports.Delete(ctx, impID, true))
	txn, err = txns.Get(ctx, txnID)
	require.NoError(t, err)
	require.Nil(t, txn)

	require.ErrorIs(t, imports.Delete(ctx, "missing", false), ErrNotFound)
}

func TestFindExactDuplicateKey(t *testing.T) {
	t.Parallel()
	db, ctx := openTestDB(t)
	txns := NewTransactionRepo(db)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	merchant := "Somewhere"
	require.NoError(t, txns.Insert(ctx, Transaction{
		ID: uuid.NewString(), Date: date, Description: "COFFEE HOUSE", AmountCents: -500, Merchant: &merchant,
	}))

	found, err := txns.FindExact(ctx, date, "COFFEE HOUSE", -500)
	require.NoError(t, err)
	require.NotNil(t, found)

	// Any component of the triple differing means no duplicate.
	found, err = txns.FindExact(ctx, date.AddDate(0, 0, 1), "COFFEE HOUSE", -500)
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = txns.FindExact(ctx, date, "COFFEE HOUSE", -501)
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = txns.FindExact(ctx, date, "coffee house", -500)
	require.NoError(t, err)
	require.Nil(t, found, "the duplicate key is exact, not case-folded")
}
