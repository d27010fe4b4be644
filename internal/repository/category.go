package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	createCategorySQL = `INSERT INTO categories (id, name, description, created_at) VALUES ($1, $2, $3, $4)`

	getCategorySQL = `SELECT id, name, description, created_at FROM categories WHERE id = $1`

	listCategoriesSQL = `SELECT id, name, description, created_at FROM categories ORDER BY name`

	updateCategorySQL = `UPDATE categories SET name = $2, description = $3 WHERE id = $1`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	querier
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool txn.DB) *CategoryRepository {
	return &CategoryRepository{querier{pool: pool}}
}

func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	_, err := r.db(ctx).Exec(ctx, createCategorySQL, c.ID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return catalog.ErrCategoryExists
		}
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

func (r *CategoryRepository) Get(ctx context.Context, id string) (*catalog.Category, error) {
	rows, err := r.db(ctx).Query(ctx, getCategorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Category])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	return &c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Category])
}

func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	tag, err := r.db(ctx).Exec(ctx, updateCategorySQL, c.ID, c.Name, c.Description)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return catalog.ErrCategoryExists
		}
		return fmt.Errorf("updating category %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category. Categories still referenced by products are
// rejected with ErrCategoryInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db(ctx).Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return catalog.ErrCategoryInUse
		}
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}
