package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ImportRepo tracks transaction import records.
type ImportRepo struct{ db *sql.DB }

func NewImportRepo(db *sql.DB) *ImportRepo { return &ImportRepo{db: db} }

func (r *ImportRepo) Create(ctx context.Context, imp TransactionImport) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transaction_imports(
	 id, filename, file_type, status, total_rows, valid_rows, column_mapping)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	`, imp.ID, imp.Filename, imp.FileType, imp.Status, imp.TotalRows, imp.ValidRows, imp.ColumnMapping)
	return err
}

func (r *ImportRepo) Get(ctx context.Context, id string) (*TransactionImport, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, filename, file_type, status, total_rows, valid_rows, imported_count,
	       skipped_count, error_count, error_details, column_mapping, created_at, completed_at
	FROM transaction_imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &imp, nil
}

// List returns import records newest first, optionally filtered by status.
func (r *ImportRepo) List(ctx context.Context, status string) ([]TransactionImport, error) {
	query := `
	SELECT id, filename, file_type, status, total_rows, valid_rows, imported_count,
	       skipped_count, error_count, error_details, column_mapping, created_at, completed_at
	FROM transaction_imports`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TransactionImport
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// ImportUpdate carries the fields an update touches; nil means leave as is.
type ImportUpdate struct {
	Status        *string
	TotalRows     *int
	ValidRows     *int
	ImportedCount *int
	SkippedCount  *int
	ErrorCount    *int
	ErrorDetails  *string
	CompletedAt   *time.Time
}

func (r *ImportRepo) Update(ctx context.Context, id string, u ImportUpdate) error {
	var set []string
	var args []interface{}
	if u.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *u.Status)
	}
	if u.TotalRows != nil {
		set = append(set, "total_rows = ?")
		args = append(args, *u.TotalRows)
	}
	if u.ValidRows != nil {
		set = append(set, "valid_rows = ?")
		args = append(args, *u.ValidRows)
	}
	if u.ImportedCount != nil {
		set = append(set, "imported_count = ?")
		args = append(args, *u.ImportedCount)
	}
	if u.SkippedCount != nil {
		set = append(set, "skipped_count = ?")
		args = append(args, *u.SkippedCount)
	}
	if u.ErrorCount != nil {
		set = append(set, "error_count = ?")
		args = append(args, *u.ErrorCount)
	}
	if u.ErrorDetails != nil {
		set = append(set, "error_details = ?")
		args = append(args, *u.ErrorDetails)
	}
	if u.CompletedAt != nil {
		set = append(set, "completed_at = ?")
		args = append(args, *u.CompletedAt)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE transaction_imports SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes an import record. With deleteTransactions the batch's
// transactions go with it; otherwise they are unlinked and kept.
func (r *ImportRepo) Delete(ctx context.Context, id string, deleteTransactions bool) error {
	if deleteTransactions {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE import_id = ?`, id); err != nil {
			return err
		}
	} else {
		if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET import_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE import_id = ?`, id); err != nil {
			return err
		}
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM transaction_imports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanImport(row scanner) (TransactionImport, error) {
	var imp TransactionImport
	var details, mapping sql.NullString
	var completed sql.NullTime
	if err := row.Scan(&imp.ID, &imp.Filename, &imp.FileType, &imp.Status,
		&imp.TotalRows, &imp.ValidRows, &imp.ImportedCount, &imp.SkippedCount,
		&imp.ErrorCount, &details, &mapping, &imp.CreatedAt, &completed); err != nil {
		return TransactionImport{}, err
	}
	if details.Valid {
		imp.ErrorDetails = &details.String
	}
	if mapping.Valid {
		imp.ColumnMapping = &mapping.String
	}
	if completed.Valid {
		imp.CompletedAt = &completed.Time
	}
	return imp, nil
}
