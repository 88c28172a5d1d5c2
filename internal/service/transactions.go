package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/calw/pocketsort/internal/database/repository"
)

// TransactionService covers transaction creation with inline
// categorization. General CRUD lives in the repository.
type TransactionService struct {
	Transactions TransactionStore
	Engine       *RuleEngine
	Log          zerolog.Logger
}

// CreateTransactionInput carries a manually-entered transaction.
type CreateTransactionInput struct {
	Date        time.Time
	Description string
	AmountCents int64
	Merchant    *string
	Notes       *string
	CategoryID  *string
}

// Create inserts a transaction, running rule evaluation when no
// explicit category was supplied. No match leaves it uncategorized,
// which is a valid terminal state.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*repository.Transaction, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("description required")
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("date required")
	}

	categoryID := in.CategoryID
	if categoryID == nil {
		match, err := s.Engine.Evaluate(ctx, Subject{Description: in.Description, Merchant: deref(in.Merchant)})
		if err != nil {
			return nil, err
		}
		if match != nil {
			id := match.CategoryID
			categoryID = &id
		}
	}

	txn := repository.Transaction{
		ID:          uuid.NewString(),
		Date:        in.Date,
		Description: in.Description,
		AmountCents: in.AmountCents,
		Merchant:    in.Merchant,
		Notes:       in.Notes,
		CategoryID:  categoryID,
	}
	if err := s.Transactions.Insert(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &txn, nil
}
