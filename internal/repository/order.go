package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	orderColumns = `o.id, o.user_id, u.name, u.email, o.items, o.discount_id, o.discount_name,
		o.discount_percentage, o.discount_applied, o.total, o.status, o.qr_code, o.created_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, items, discount_id, discount_name,
		discount_percentage, discount_applied, total, status, qr_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id WHERE o.id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE OF o`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id ORDER BY o.created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	updateOrderTotalSQL = `UPDATE orders SET total = $2, discount_applied = $3 WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	orderIDsSQL = `SELECT id FROM orders`

	existingOrderIDsSQL = `SELECT id FROM orders WHERE id = ANY($1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// are stored as a JSONB snapshot.
type OrderRepository struct {
	querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool txn.DB) *OrderRepository {
	return &OrderRepository{querier{pool: pool}}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return err
	}

	var (
		discountName *string
		discountPct  decimal.NullDecimal
	)
	if d := o.DiscountDetails; d != nil {
		discountName = &d.Name
		discountPct = decimal.NewNullDecimal(d.Percentage)
	}

	_, err = r.db(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.DiscountID, discountName,
		discountPct, o.DiscountApplied, o.Total, string(o.Status), o.QRCode, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order joined with its customer.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

// GetForUpdate is Get with the order row locked until the transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, id string) (*order.Order, error) {
	rows, err := r.db(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db(ctx).Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus overwrites an order's status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.db(ctx).Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateTotal sets an order's total and discount flag.
func (r *OrderRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal, applied bool) error {
	tag, err := r.db(ctx).Exec(ctx, updateOrderTotalSQL, id, total, applied)
	if err != nil {
		return fmt.Errorf("updating total of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db(ctx).Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ScanIDs calls fn with the id of every stored order.
func (r *OrderRepository) ScanIDs(ctx context.Context, fn func(id string)) error {
	rows, err := r.db(ctx).Query(ctx, orderIDsSQL)
	if err != nil {
		return fmt.Errorf("scanning order ids: %w", err)
	}
	var id string
	_, err = pgx.ForEachRow(rows, []any{&id}, func() error {
		fn(id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning order ids: %w", err)
	}
	return nil
}

// Existing returns the subset of ids that are already stored.
func (r *OrderRepository) Existing(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.db(ctx).Query(ctx, existingOrderIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("checking order ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("checking order ids: %w", err)
	}
	return found, nil
}

// marshalItems encodes items with an empty addon list where none were given,
// so aggregation queries always see a JSON array.
func marshalItems(items []order.Item) ([]byte, error) {
	out := make([]order.Item, len(items))
	for i, item := range items {
		if item.Addons == nil {
			item.Addons = []order.Addon{}
		}
		out[i] = item
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling order items: %w", err)
	}
	return data, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		userName     *string
		userEmail    *string
		itemsJSON    []byte
		discountName *string
		discountPct  decimal.NullDecimal
		status       string
		createdAt    time.Time
	)
	err := row.Scan(
		&o.ID, &o.UserID, &userName, &userEmail, &itemsJSON, &o.DiscountID, &discountName,
		&discountPct, &o.DiscountApplied, &o.Total, &status, &o.QRCode, &createdAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	if userName != nil {
		o.Customer = &order.Customer{ID: o.UserID, Name: *userName}
		if userEmail != nil {
			o.Customer.Email = *userEmail
		}
	}
	if discountName != nil {
		o.DiscountDetails = &order.DiscountDetails{Name: *discountName, Percentage: discountPct.Decimal}
	}
	o.Status = order.Status(status)
	o.CreatedAt = createdAt.UTC()
	return o, nil
}
