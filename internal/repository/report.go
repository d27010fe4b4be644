package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	orderTotalsSQL = `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders
		WHERE created_at >= $1 AND created_at < $2`

	countByStatusSQL = `SELECT COUNT(*) FROM orders WHERE status = $1`

	salesBucketsSQL = `SELECT date_trunc($1::text, created_at AT TIME ZONE $2::text) AS bucket,
		COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE created_at >= $3 AND created_at < $4
		GROUP BY bucket
		ORDER BY bucket`

	// orderLines expands every order into its item lines, each with the
	// line's addon list and revenue including addons.
	orderLines = ` FROM orders o
		CROSS JOIN LATERAL jsonb_array_elements(o.items) AS item
		CROSS JOIN LATERAL (
			SELECT CASE jsonb_typeof(item->'addons') WHEN 'array' THEN item->'addons' ELSE '[]'::jsonb END AS addons
		) sel
		CROSS JOIN LATERAL (
			SELECT COALESCE(SUM((a->>'price')::numeric), 0) AS addon_total
			FROM jsonb_array_elements(sel.addons) AS a
		) addon_sum`

	topProductsSQL = `SELECT item->>'productName' AS product_name,
		COUNT(*) AS total_sold,
		SUM((item->>'price')::numeric + addon_sum.addon_total) AS total_revenue,
		to_jsonb((array_agg(sel.addons ORDER BY o.created_at))[1:3])` + orderLines + `
		WHERE o.created_at >= $1 AND o.created_at < $2
		GROUP BY product_name
		ORDER BY total_sold DESC
		LIMIT $3` // equal totals come back in no particular order

	productDailySQL = `SELECT date_trunc('day', o.created_at AT TIME ZONE $4::text) AS bucket,
		COUNT(*),
		SUM((item->>'price')::numeric + addon_sum.addon_total),
		to_jsonb((array_agg(sel.addons ORDER BY o.created_at))[1:3])` + orderLines + `
		WHERE item->>'productName' = $1 AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY bucket
		ORDER BY bucket`
)

var _ report.Reader = (*ReportRepository)(nil)

// ReportRepository implements report.Reader with SQL aggregations over the
// orders table.
type ReportRepository struct {
	querier
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool txn.DB) *ReportRepository {
	return &ReportRepository{querier{pool: pool}}
}

func (r *ReportRepository) Totals(ctx context.Context, from, to time.Time) (report.Totals, error) {
	var t report.Totals
	err := r.db(ctx).QueryRow(ctx, orderTotalsSQL, from, to).Scan(&t.OrderCount, &t.TotalSales)
	if err != nil {
		return t, fmt.Errorf("summing orders: %w", err)
	}
	return t, nil
}

func (r *ReportRepository) CountByStatus(ctx context.Context, status order.Status) (int64, error) {
	var n int64
	if err := r.db(ctx).QueryRow(ctx, countByStatusSQL, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s orders: %w", status, err)
	}
	return n, nil
}

func (r *ReportRepository) SalesBuckets(ctx context.Context, unit report.Unit, from, to time.Time, loc *time.Location) ([]report.Bucket, error) {
	rows, err := r.db(ctx).Query(ctx, salesBucketsSQL, string(unit), loc.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("bucketing sales by %s: %w", unit, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.Bucket, error) {
		var b report.Bucket
		err := row.Scan(&b.Start, &b.TotalSales, &b.OrderCount)
		b.Start = wallClock(b.Start)
		return b, err
	})
}

func (r *ReportRepository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]report.ProductSales, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db(ctx).Query(ctx, topProductsSQL, from, to, lim)
	if err != nil {
		return nil, fmt.Errorf("ranking products: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.ProductSales, error) {
		var (
			p      report.ProductSales
			addons []byte
		)
		if err := row.Scan(&p.ProductName, &p.TotalSold, &p.TotalRevenue, &addons); err != nil {
			return p, err
		}
		sets, err := decodeAddonSets(addons)
		p.PopularAddons = sets
		return p, err
	})
}

func (r *ReportRepository) ProductDaily(ctx context.Context, productName string, from, to time.Time, loc *time.Location) ([]report.ProductDay, error) {
	rows, err := r.db(ctx).Query(ctx, productDailySQL, productName, from, to, loc.String())
	if err != nil {
		return nil, fmt.Errorf("bucketing sales of %q: %w", productName, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.ProductDay, error) {
		var (
			d       report.ProductDay
			revenue decimal.Decimal
			addons  []byte
		)
		if err := row.Scan(&d.Start, &d.TotalSold, &revenue, &addons); err != nil {
			return d, err
		}
		d.Start = wallClock(d.Start)
		d.TotalRevenue = revenue
		sets, err := decodeAddonSets(addons)
		d.AddonExamples = sets
		return d, err
	})
}

// wallClock reinterprets a timestamp without time zone as UTC.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func decodeAddonSets(data []byte) ([][]order.Addon, error) {
	if len(data) == 0 {
		return [][]order.Addon{}, nil
	}
	var sets [][]order.Addon
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("decoding addon sets: %w", err)
	}
	if sets == nil {
		sets = [][]order.Addon{}
	}
	return sets, nil
}
