package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Rule fields.
const (
	FieldDescription = "description"
	FieldMerchant    = "merchant"
)

// Rule operators.
const (
	OpContains   = "contains"
	OpEquals     = "equals"
	OpStartsWith = "startsWith"
)

// Import statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// Category represents a category row.
type Category struct {
	ID        string
	Name      string
	Color     *string
	Icon      *string
	IsSystem  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rule represents a categorization rule row. Value is persisted
// lower-cased. Category is populated on joined reads (ListActive).
type Rule struct {
	ID         string
	Name       string
	Field      string
	Operator   string
	Value      string
	Priority   int
	IsActive   bool
	IsSystem   bool
	CategoryID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Category   *Category
}

// Transaction represents a transaction row. Amount is signed cents;
// negative is an expense by convention.
type Transaction struct {
	ID          string
	Date        time.Time
	Description string
	AmountCents int64
	Merchant    *string
	Notes       *string
	CategoryID  *string
	ImportID    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionImport tracks one file-import operation.
type TransactionImport struct {
	ID            string
	Filename      string
	FileType      string
	Status        string
	TotalRows     int
	ValidRows     int
	ImportedCount int
	SkippedCount  int
	ErrorCount    int
	ErrorDetails  *string
	ColumnMapping *string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}
