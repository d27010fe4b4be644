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
	addonColumns = `id, name, price, is_global, applicable_categories, available`

	createAddonSQL = `INSERT INTO addons (` + addonColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	getAddonSQL = `SELECT ` + addonColumns + ` FROM addons WHERE id = $1`

	listAddonsSQL = `SELECT ` + addonColumns + ` FROM addons ORDER BY name`

	listGlobalAddonsSQL = `SELECT ` + addonColumns + ` FROM addons
		WHERE is_global AND available ORDER BY name`

	listCategoryAddonsSQL = `SELECT ` + addonColumns + ` FROM addons
		WHERE NOT is_global AND available AND $1 = ANY (applicable_categories) ORDER BY name`

	updateAddonSQL = `UPDATE addons SET name = $2, price = $3, is_global = $4,
		applicable_categories = $5, available = $6 WHERE id = $1`

	deleteAddonSQL = `DELETE FROM addons WHERE id = $1`
)

var _ catalog.AddonRepository = (*AddonRepository)(nil)

// AddonRepository implements catalog.AddonRepository backed by PostgreSQL.
type AddonRepository struct {
	querier
}

// NewAddonRepository returns an AddonRepository that uses the given pool.
func NewAddonRepository(pool txn.DB) *AddonRepository {
	return &AddonRepository{querier{pool: pool}}
}

func (r *AddonRepository) Create(ctx context.Context, a *catalog.Addon) error {
	_, err := r.db(ctx).Exec(ctx, createAddonSQL,
		a.ID, a.Name, a.Price, a.IsGlobal, scopeOf(a), a.Available,
	)
	if err != nil {
		return fmt.Errorf("creating addon %q: %w", a.Name, err)
	}
	return nil
}

func (r *AddonRepository) Get(ctx context.Context, id string) (*catalog.Addon, error) {
	rows, err := r.db(ctx).Query(ctx, getAddonSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting addon %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Addon])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrAddonNotFound
		}
		return nil, fmt.Errorf("getting addon %q: %w", id, err)
	}
	return &a, nil
}

func (r *AddonRepository) List(ctx context.Context) ([]catalog.Addon, error) {
	return r.list(ctx, listAddonsSQL)
}

func (r *AddonRepository) ListGlobal(ctx context.Context) ([]catalog.Addon, error) {
	return r.list(ctx, listGlobalAddonsSQL)
}

func (r *AddonRepository) ListForCategory(ctx context.Context, categoryID string) ([]catalog.Addon, error) {
	return r.list(ctx, listCategoryAddonsSQL, categoryID)
}

func (r *AddonRepository) list(ctx context.Context, sql string, args ...any) ([]catalog.Addon, error) {
	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing addons: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Addon])
}

func (r *AddonRepository) Update(ctx context.Context, a *catalog.Addon) error {
	tag, err := r.db(ctx).Exec(ctx, updateAddonSQL,
		a.ID, a.Name, a.Price, a.IsGlobal, scopeOf(a), a.Available,
	)
	if err != nil {
		return fmt.Errorf("updating addon %q: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrAddonNotFound
	}
	return nil
}

func (r *AddonRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db(ctx).Exec(ctx, deleteAddonSQL, id)
	if err != nil {
		return fmt.Errorf("deleting addon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrAddonNotFound
	}
	return nil
}

// scopeOf never returns nil so the NOT NULL array column gets '{}'.
func scopeOf(a *catalog.Addon) []string {
	if a.ApplicableCategories == nil {
		return []string{}
	}
	return a.ApplicableCategories
}
