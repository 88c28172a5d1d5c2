package repository

import (
	"context"
	"database/sql"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, color, icon, is_system)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 color=excluded.color,
	 icon=excluded.icon,
	 is_system=excluded.is_system,
	 updated_at=CURRENT_TIMESTAMP;
	`, c.ID, c.Name, c.Color, c.Icon, c.IsSystem)
	return err
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, name, color, icon, is_system, created_at, updated_at
	FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) GetByName(ctx context.Context, name string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, name, color, icon, is_system, created_at, updated_at
	FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, color, icon, is_system, created_at, updated_at
	FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a category. Owned rules cascade; transactions that
// referenced it keep running with category set to null.
func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCategory(row scanner) (Category, error) {
	var c Category
	var color, icon sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &color, &icon, &c.IsSystem, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Category{}, err
	}
	if color.Valid {
		c.Color = &color.String
	}
	if icon.Valid {
		c.Icon = &icon.String
	}
	return c, nil
}
