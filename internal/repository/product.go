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
	productColumns = `p.id, p.name, p.category_id, c.name, p.base_price, p.available, p.image, p.created_at`

	productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

	createProductSQL = `INSERT INTO products (id, name, category_id, base_price, available, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getProductSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.id = $1`

	listProductsSQL = `SELECT ` + productColumns + productFrom + ` ORDER BY p.name`

	listProductsByCategorySQL = `SELECT ` + productColumns + productFrom +
		` WHERE p.category_id = $1 ORDER BY p.name`

	updateProductSQL = `UPDATE products SET name = $2, category_id = $3, base_price = $4,
		available = $5, image = $6 WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool txn.DB) *ProductRepository {
	return &ProductRepository{querier{pool: pool}}
}

func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.db(ctx).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.CategoryID, p.BasePrice, p.Available, p.Image, p.CreatedAt,
	)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return catalog.ErrCategoryNotFound
		}
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.db(ctx).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.db(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Product])
}

func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID string) ([]catalog.Product, error) {
	rows, err := r.db(ctx).Query(ctx, listProductsByCategorySQL, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing products of category %q: %w", categoryID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Product])
}

func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.db(ctx).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.CategoryID, p.BasePrice, p.Available, p.Image,
	)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return catalog.ErrCategoryNotFound
		}
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db(ctx).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}
