package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	createDiscountSQL = `INSERT INTO discounts (id, name, percentage, requires_verification)
		VALUES ($1, $2, $3, $4)`

	getDiscountSQL = `SELECT id, name, percentage, requires_verification FROM discounts WHERE id = $1`

	listDiscountsSQL = `SELECT id, name, percentage, requires_verification FROM discounts ORDER BY name`

	updateDiscountSQL = `UPDATE discounts SET name = $2, percentage = $3, requires_verification = $4
		WHERE id = $1`

	deleteDiscountSQL = `DELETE FROM discounts WHERE id = $1`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	querier
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool txn.DB) *DiscountRepository {
	return &DiscountRepository{querier{pool: pool}}
}

func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.db(ctx).Exec(ctx, createDiscountSQL, d.ID, d.Name, d.Percentage, d.RequiresVerification)
	if err != nil {
		return fmt.Errorf("creating discount %q: %w", d.Name, err)
	}
	return nil
}

func (r *DiscountRepository) Get(ctx context.Context, id string) (*discount.Discount, error) {
	rows, err := r.db(ctx).Query(ctx, getDiscountSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}
	return &d, nil
}

func (r *DiscountRepository) List(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.db(ctx).Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

func (r *DiscountRepository) Update(ctx context.Context, d *discount.Discount) error {
	tag, err := r.db(ctx).Exec(ctx, updateDiscountSQL, d.ID, d.Name, d.Percentage, d.RequiresVerification)
	if err != nil {
		return fmt.Errorf("updating discount %q: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Delete removes a discount. Orders that referenced it keep their snapshot.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db(ctx).Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return fmt.Errorf("deleting discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var d discount.Discount
	err := row.Scan(&d.ID, &d.Name, &d.Percentage, &d.RequiresVerification)
	return d, err
}
