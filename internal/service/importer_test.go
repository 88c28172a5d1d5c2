package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/calw/pocketsort/internal/database/repository"
)

func (f *fixture) importer() *Importer {
	return &Importer{
		Transactions: f.txns,
		Imports:      f.imports,
		Engine:       f.engine,
		Log:          zerolog.Nop(),
		Location:     time.UTC,
	}
}

func TestImportHappyPathWithAutoCategorize(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)
	groceries := f.category(t, "Groceries")
	f.rule(t, repository.Rule{Name: "walmart", Field: repository.FieldDescription, Operator: repository.OpContains,
		Value: "walmart", Priority: 100, IsActive: true, CategoryID: groceries})

	outcome, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "march.csv",
		FileType: "csv",
		Rows: []RowRecord{
			{"date": "2026-03-01", "description": "WALMART SUPERCENTER", "amount": "-45.67"},
			{"date": "2026-03-02", "description": "UNKNOWN VENDOR", "amount": "-10.00"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Imported)
	require.Equal(t, 0, outcome.Skipped)
	require.Equal(t, 0, outcome.Errors)
	require.NotEmpty(t, outcome.ImportID)

	record, err := f.imports.Get(f.ctx, outcome.ImportID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCompleted, record.Status)
	require.Equal(t, 2, record.TotalRows)
	require.Equal(t, 2, record.ValidRows)
	require.Equal(t, 2, record.ImportedCount)
	require.NotNil(t, record.CompletedAt)

	txns, err := f.txns.List(f.ctx, repository.TransactionFilters{ImportID: outcome.ImportID})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	byDesc := map[string]repository.Transaction{}
	for _, txn := range txns {
		byDesc[txn.Description] = txn
	}
	require.NotNil(t, byDesc["WALMART SUPERCENTER"].CategoryID)
	require.Equal(t, groceries, *byDesc["WALMART SUPERCENTER"].CategoryID)
	// No rule matched: uncategorized is a valid terminal state.
	require.Nil(t, byDesc["UNKNOWN VENDOR"].CategoryID)
}

func TestImportPartialStatus(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	outcome, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "mixed.csv",
		FileType: "csv",
		Rows: []RowRecord{
			{"date": "2026-03-01", "description": "GOOD ROW", "amount": "-1.00"},
			{"description": "MISSING DATE", "amount": "-2.00"},
			{"date": "2026-03-03", "description": "ANOTHER GOOD ROW", "amount": "-3.00"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Imported)
	require.Equal(t, 1, outcome.Errors)
	require.Len(t, outcome.ErrorDetails, 1)
	require.Equal(t, 2, outcome.ErrorDetails[0].Row)

	record, err := f.imports.Get(f.ctx, outcome.ImportID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusPartial, record.Status)
	require.Equal(t, 3, record.TotalRows)
	require.Equal(t, 2, record.ValidRows)
	require.Equal(t, 1, record.ErrorCount)
	require.NotNil(t, record.ErrorDetails)
}

func TestImportAllRowsInvalidIsFailed(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	outcome, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "bad.csv",
		FileType: "csv",
		Rows: []RowRecord{
			{"description": "NO DATE", "amount": "-2.00"},
			{"date": "2026-03-03", "description": "BAD AMOUNT", "amount": "???"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, outcome.Imported)
	require.Equal(t, 2, outcome.Errors)

	record, err := f.imports.Get(f.ctx, outcome.ImportID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusFailed, record.Status)
}

func TestImportAllDuplicatesIsCompleted(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	merchant := "Original Store"
	notes := "first import"
	f.transaction(t, repository.Transaction{
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "COFFEE HOUSE",
		AmountCents: -500,
		Merchant:    &merchant,
		Notes:       &notes,
	})

	// Same (date, description, amount) key, different merchant and
	// notes: still a duplicate.
	outcome, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "dupes.csv",
		FileType: "csv",
		Rows: []RowRecord{
			{"date": "2026-03-01", "description": "COFFEE HOUSE", "amount": "-5.00", "merchant": "Different Store"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, outcome.Imported)
	require.Equal(t, 1, outcome.Skipped)
	require.Equal(t, 0, outcome.Errors)
	require.Len(t, outcome.Duplicates, 1)
	require.NotEmpty(t, outcome.Duplicates[0].ExistingID)

	record, err := f.imports.Get(f.ctx, outcome.ImportID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCompleted, record.Status)
	require.Equal(t, 1, record.SkippedCount)
}

func TestImportAnywayWithForce(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	rows := []RowRecord{
		{"date": "2026-03-01", "description": "COFFEE HOUSE", "amount": "-5.00"},
	}
	first, err := f.importer().Run(f.ctx, ImportRequest{Filename: "a.csv", FileType: "csv", Rows: rows})
	require.NoError(t, err)
	require.Equal(t, 1, first.Imported)

	// Re-running the same rows detects the earlier insert as duplicate.
	second, err := f.importer().Run(f.ctx, ImportRequest{Filename: "a.csv", FileType: "csv", Rows: rows})
	require.NoError(t, err)
	require.Equal(t, 0, second.Imported)
	require.Equal(t, 1, second.Skipped)

	// Explicit force against the same record bypasses detection.
	third, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "a.csv", FileType: "csv", Rows: rows,
		ImportID: second.ImportID, Force: true,
	})
	require.NoError(t, err)
	require.Equal(t, second.ImportID, third.ImportID)
	require.Equal(t, 1, third.Imported)

	record, err := f.imports.Get(f.ctx, third.ImportID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCompleted, record.Status)
	// Counts accumulate on the reused record.
	require.Equal(t, 1, record.ImportedCount)
	require.Equal(t, 1, record.SkippedCount)
}

func TestImportUnknownImportIDFails(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	_, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "a.csv", FileType: "csv",
		Rows:     []RowRecord{{"date": "2026-03-01", "description": "X", "amount": "-1.00"}},
		ImportID: "no-such-import",
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinBatchDuplicates(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	rows := []RowRecord{
		{"date": "2026-03-01", "description": "TWIN ROW", "amount": "-5.00"},
		{"date": "2026-03-01", "description": "TWIN ROW", "amount": "-5.00"},
	}

	// Default behavior: identical rows within one file all insert.
	outcome, err := f.importer().Run(f.ctx, ImportRequest{Filename: "twins.csv", FileType: "csv", Rows: rows})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Imported)
	require.Equal(t, 0, outcome.Skipped)

	// Opt-in batch checking treats the second row as a duplicate.
	f2 := setupServiceTest(t)
	imp := f2.importer()
	imp.CheckBatchDuplicates = true
	outcome, err = imp.Run(f2.ctx, ImportRequest{Filename: "twins.csv", FileType: "csv", Rows: rows})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Imported)
	require.Equal(t, 1, outcome.Skipped)
}

func TestImportExplicitCategorySkipsRules(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	ruleCat := f.category(t, "Groceries")
	explicitCat := f.category(t, "Gifts")
	f.rule(t, repository.Rule{Name: "walmart", Field: repository.FieldDescription, Operator: repository.OpContains,
		Value: "walmart", Priority: 100, IsActive: true, CategoryID: ruleCat})

	outcome, err := f.importer().Run(f.ctx, ImportRequest{
		Filename: "explicit.csv",
		FileType: "csv",
		Rows: []RowRecord{
			{"date": "2026-03-01", "description": "WALMART GIFTCARD", "amount": "-25.00", "categoryId": explicitCat},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Imported)

	txns, err := f.txns.List(f.ctx, repository.TransactionFilters{ImportID: outcome.ImportID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].CategoryID)
	require.Equal(t, explicitCat, *txns[0].CategoryID)
}

func TestImportRejectsEmptyBatch(t *testing.T) {
	t.Parallel()
	f := setupServiceTest(t)

	_, err := f.importer().Run(f.ctx, ImportRequest{Filename: "empty.csv", FileType: "csv"})
	require.Error(t, err)
}
