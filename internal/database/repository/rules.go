package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RuleRepo stores categorization rules. Create and Update are the rule
// authoring boundary: field and operator enums are closed here and the
// match value is persisted lower-cased.
type RuleRepo struct{ db *sql.DB }

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// RuleFilters defines list filters.
type RuleFilters struct {
	IsActive   *bool
	IsSystem   *bool
	CategoryID string
}

func validField(f string) bool {
	return f == FieldDescription || f == FieldMerchant
}

func validOperator(op string) bool {
	return op == OpContains || op == OpEquals || op == OpStartsWith
}

func (r *RuleRepo) Create(ctx context.Context, rule Rule) error {
	if !validField(rule.Field) {
		return fmt.Errorf("invalid rule field %q", rule.Field)
	}
	if !validOperator(rule.Operator) {
		return fmt.Errorf("invalid rule operator %q", rule.Operator)
	}
	if strings.TrimSpace(rule.Value) == "" {
		return fmt.Errorf("rule value required")
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO rules(id, name, field, operator, value, priority, is_active, is_system, category_id)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.Name, rule.Field, rule.Operator, strings.ToLower(rule.Value),
		rule.Priority, rule.IsActive, rule.IsSystem, rule.CategoryID)
	return err
}

func (r *RuleRepo) Update(ctx context.Context, rule Rule) error {
	if !validField(rule.Field) {
		return fmt.Errorf("invalid rule field %q", rule.Field)
	}
	if !validOperator(rule.Operator) {
		return fmt.Errorf("invalid rule operator %q", rule.Operator)
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET name = ?, field = ?, operator = ?, value = ?, priority = ?,
	 is_active = ?, category_id = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
	`, rule.Name, rule.Field, rule.Operator, strings.ToLower(rule.Value),
		rule.Priority, rule.IsActive, rule.CategoryID, rule.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Toggle flips a rule's active flag.
func (r *RuleRepo) Toggle(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET is_active = NOT is_active, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*Rule, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, name, field, operator, value, priority, is_active, is_system, category_id, created_at, updated_at
	FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// List returns rules in evaluation order with optional filters.
func (r *RuleRepo) List(ctx context.Context, f RuleFilters) ([]Rule, error) {
	var where []string
	var args []interface{}
	if f.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.IsSystem != nil {
		where = append(where, "is_system = ?")
		args = append(args, *f.IsSystem)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}

	query := `SELECT id, name, field, operator, value, priority, is_active, is_system, category_id, created_at, updated_at FROM rules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListActive returns active rules with their category joined, in
// evaluation order: priority descending, earlier-created rule first on
// ties (rowid breaks same-second creation ties deterministically).
func (r *RuleRepo) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT r.id, r.name, r.field, r.operator, r.value, r.priority, r.is_active, r.is_system,
	       r.category_id, r.created_at, r.updated_at,
	       c.id, c.name, c.color, c.icon, c.is_system, c.created_at, c.updated_at
	FROM rules r
	JOIN categories c ON c.id = r.category_id
	WHERE r.is_active = 1
	ORDER BY r.priority DESC, r.created_at ASC, r.rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var rule Rule
		var cat Category
		var color, icon sql.NullString
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Field, &rule.Operator, &rule.Value,
			&rule.Priority, &rule.IsActive, &rule.IsSystem, &rule.CategoryID,
			&rule.CreatedAt, &rule.UpdatedAt,
			&cat.ID, &cat.Name, &color, &icon, &cat.IsSystem, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, err
		}
		if color.Valid {
			cat.Color = &color.String
		}
		if icon.Valid {
			cat.Icon = &icon.String
		}
		rule.Category = &cat
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row scanner) (Rule, error) {
	var rule Rule
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Field, &rule.Operator, &rule.Value,
		&rule.Priority, &rule.IsActive, &rule.IsSystem, &rule.CategoryID,
		&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
