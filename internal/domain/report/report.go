// Package report derives sales analytics from stored orders: time-bucketed
// revenue and order counts, and product rankings by units sold.
//
// Buckets follow calendar boundaries in one reference time zone. Products are
// grouped by the name captured on each order line, so a renamed product
// reports under both names. Products with equal units sold have no defined
// relative order.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
)

// Unit is a time bucket granularity.
type Unit string

const (
	Day   Unit = "day"
	Week  Unit = "week" // ISO week, starting Monday
	Month Unit = "month"
)

// Bucket is the aggregate of orders created within one time bucket. Start
// holds the bucket's wall-clock start in the reference zone, as UTC.
type Bucket struct {
	Start      time.Time
	TotalSales decimal.Decimal
	OrderCount int64
}

// Totals aggregates orders in a range.
type Totals struct {
	OrderCount int64
	TotalSales decimal.Decimal
}

// ProductSales ranks one product name. Revenue includes addon prices.
type ProductSales struct {
	ProductName  string
	TotalSold    int64
	TotalRevenue decimal.Decimal
	// PopularAddons holds up to three addon selections seen with the product.
	PopularAddons [][]order.Addon
}

// ProductDay is one product's sales within one day bucket.
type ProductDay struct {
	Start         time.Time
	TotalSold     int64
	TotalRevenue  decimal.Decimal
	AddonExamples [][]order.Addon
}

// Reader runs the aggregation queries. Ranges are half-open [from, to).
type Reader interface {
	Totals(ctx context.Context, from, to time.Time) (Totals, error)
	CountByStatus(ctx context.Context, status order.Status) (int64, error)
	SalesBuckets(ctx context.Context, unit Unit, from, to time.Time, loc *time.Location) ([]Bucket, error)
	// TopProducts returns products sorted by units sold, descending. A
	// limit of zero means no limit.
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	ProductDaily(ctx context.Context, productName string, from, to time.Time, loc *time.Location) ([]ProductDay, error)
}

// UserCounter counts accounts.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Summary is the dashboard overview.
type Summary struct {
	TotalOrdersToday int64
	TotalSalesToday  decimal.Decimal
	PendingOrders    int64
	CompletedOrders  int64
	TotalUsers       int64
	TopProductsToday []ProductSales
}

// DaySales is one day of a month.
type DaySales struct {
	Day        int
	Date       string
	TotalSales decimal.Decimal
	OrderCount int64
}

// DailySales covers every day of one month.
type DailySales struct {
	Year  int
	Month int
	Days  []DaySales
}

// WeekSales is one ISO week.
type WeekSales struct {
	Week       int
	Label      string
	TotalSales decimal.Decimal
	OrderCount int64
}

// WeeklySales covers every ISO week of one ISO week-year.
type WeeklySales struct {
	Year  int
	Weeks []WeekSales
}

// MonthSales is one calendar month.
type MonthSales struct {
	Month      int
	Name       string
	TotalSales decimal.Decimal
	OrderCount int64
}

// MonthlySales covers all twelve months of one year.
type MonthlySales struct {
	Year   int
	Months []MonthSales
}

// DayRanking ranks products sold on one day.
type DayRanking struct {
	Date     string
	Limit    int
	Products []ProductSales
}

// PeriodRanking ranks every product sold in a month or year. Month is zero
// for a whole year.
type PeriodRanking struct {
	Year     int
	Month    int
	Products []ProductSales
}

// TrendDay is one day of a product trend.
type TrendDay struct {
	Date          string
	TotalSold     int64
	TotalRevenue  decimal.Decimal
	AddonExamples [][]order.Addon
}

// Trend is a product's daily sales over the most recent days, oldest first.
type Trend struct {
	ProductName string
	Days        []TrendDay
}
