package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// TransactionFilters defines list filters.
type TransactionFilters struct {
	CategoryID string
	ImportID   string
	Search     string
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, date, description, amount, merchant, notes, category_id, import_id, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`, t.ID, t.Date, t.Description, t.AmountCents, t.Merchant, t.Notes, t.CategoryID, t.ImportID)
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, date, description, amount, merchant, notes, category_id, import_id, created_at, updated_at
	FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET category_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, categoryID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// FindExact returns the first persisted transaction matching the
// duplicate key (date, description, amount), or nil.
func (r *TransactionRepo) FindExact(ctx context.Context, date time.Time, description string, amountCents int64) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, date, description, amount, merchant, notes, category_id, import_id, created_at, updated_at
	FROM transactions WHERE date = ? AND description = ? AND amount = ?
	ORDER BY created_at ASC LIMIT 1`, date, description, amountCents)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}

	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.ImportID != "" {
		where = append(where, "import_id = ?")
		args = append(args, f.ImportID)
	}
	if f.Search != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	query := "SELECT id, date, description, amount, merchant, notes, category_id, import_id, created_at, updated_at FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteByImport removes every transaction created by an import batch.
func (r *TransactionRepo) DeleteByImport(ctx context.Context, importID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE import_id = ?`, importID)
	return err
}

// UnlinkImport detaches an import batch's transactions without deleting them.
func (r *TransactionRepo) UnlinkImport(ctx context.Context, importID string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET import_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE import_id = ?`, importID)
	return err
}

// CountByImport returns how many transactions an import batch owns.
func (r *TransactionRepo) CountByImport(ctx context.Context, importID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE import_id = ?`, importID).Scan(&n)
	return n, err
}

// scanTransaction handles nullable fields for both Row and Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var merchant, notes, category, importID sql.NullString
	if err := row.Scan(&t.ID, &t.Date, &t.Description, &t.AmountCents,
		&merchant, &notes, &category, &importID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	if merchant.Valid {
		t.Merchant = &merchant.String
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	if category.Valid {
		t.CategoryID = &category.String
	}
	if importID.Valid {
		t.ImportID = &importID.String
	}
	return t, nil
}
