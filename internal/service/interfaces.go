package service

import (
	"context"
	"time"

	"github.com/calw/pocketsort/internal/database/repository"
)

// RuleSource supplies the active rule set in evaluation order.
type RuleSource interface {
	ListActive(ctx context.Context) ([]repository.Rule, error)
}

// TransactionStore is the slice of the store the engine and importer need.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*repository.Transaction, error)
	Insert(ctx context.Context, t repository.Transaction) error
	UpdateCategory(ctx context.Context, id string, categoryID *string) error
	FindExact(ctx context.Context, date time.Time, description string, amountCents int64) (*repository.Transaction, error)
}

// ImportStore tracks import record lifecycle.
type ImportStore interface {
	Create(ctx context.Context, imp repository.TransactionImport) error
	Get(ctx context.Context, id string) (*repository.TransactionImport, error)
	Update(ctx context.Context, id string, u repository.ImportUpdate) error
}
