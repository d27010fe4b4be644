package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
)

const (
	dateLayout = "2006-01-02"

	DefaultTopLimit  = 5
	MaxTopLimit      = 100
	DefaultTrendDays = 7
	MaxTrendDays     = 366
	summaryTopLimit  = 5
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for "now" defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.clock = now }
}

// Service answers dashboard queries in a fixed reference zone.
type Service struct {
	reader Reader
	users  UserCounter
	loc    *time.Location
	clock  func() time.Time
}

// NewService creates a report Service. A nil loc means UTC.
func NewService(reader Reader, users UserCounter, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{reader: reader, users: users, loc: loc, clock: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) now() time.Time { return s.clock().In(s.loc) }

// Summary returns today's totals, order status counts, the user count and
// today's best sellers.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	now := s.now()
	from := startOfDay(now)
	to := from.AddDate(0, 0, 1)

	var (
		out    Summary
		totals Totals
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.reader.Totals(ctx, from, to)
		return errors.Wrap(err, "today totals")
	})
	g.Go(func() (err error) {
		out.PendingOrders, err = s.reader.CountByStatus(ctx, order.StatusPending)
		return errors.Wrap(err, "pending orders")
	})
	g.Go(func() (err error) {
		out.CompletedOrders, err = s.reader.CountByStatus(ctx, order.StatusCompleted)
		return errors.Wrap(err, "completed orders")
	})
	g.Go(func() (err error) {
		out.TotalUsers, err = s.users.Count(ctx)
		return errors.Wrap(err, "users")
	})
	g.Go(func() (err error) {
		out.TopProductsToday, err = s.reader.TopProducts(ctx, from, to, summaryTopLimit)
		return errors.Wrap(err, "top products")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.TotalOrdersToday = totals.OrderCount
	out.TotalSalesToday = totals.TotalSales
	return &out, nil
}

// DailySales returns every day of a month. Zero year or month means the
// current one.
func (s *Service) DailySales(ctx context.Context, year, month int) (*DailySales, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}
	month, err = s.month(month)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)
	byDay, err := s.buckets(ctx, Day, from, to)
	if err != nil {
		return nil, err
	}

	n := daysIn(year, time.Month(month))
	out := &DailySales{Year: year, Month: month, Days: make([]DaySales, n)}
	for i := range n {
		date := time.Date(year, time.Month(month), i+1, 0, 0, 0, 0, s.loc).Format(dateLayout)
		b := byDay[date]
		out.Days[i] = DaySales{
			Day:        i + 1,
			Date:       date,
			TotalSales: b.TotalSales,
			OrderCount: b.OrderCount,
		}
	}
	return out, nil
}

// WeeklySales returns every ISO week of an ISO week-year, 52 or 53 entries.
// Zero year means the current ISO week-year.
func (s *Service) WeeklySales(ctx context.Context, year int) (*WeeklySales, error) {
	if year == 0 {
		year, _ = s.now().ISOWeek()
	}
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}

	from := isoYearStart(year, s.loc)
	to := isoYearStart(year+1, s.loc)
	byWeek, err := s.buckets(ctx, Week, from, to)
	if err != nil {
		return nil, err
	}

	out := &WeeklySales{Year: year}
	for i := 0; ; i++ {
		monday := time.Date(from.Year(), from.Month(), from.Day()+7*i, 0, 0, 0, 0, s.loc)
		if !monday.Before(to) {
			break
		}
		b := byWeek[monday.Format(dateLayout)]
		out.Weeks = append(out.Weeks, WeekSales{
			Week:       i + 1,
			Label:      fmt.Sprintf("Week %d", i+1),
			TotalSales: b.TotalSales,
			OrderCount: b.OrderCount,
		})
	}
	return out, nil
}

// MonthlySales returns all twelve months of a year in calendar order. Zero
// year means the current one.
func (s *Service) MonthlySales(ctx context.Context, year int) (*MonthlySales, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(1, 0, 0)
	byMonth, err := s.buckets(ctx, Month, from, to)
	if err != nil {
		return nil, err
	}

	out := &MonthlySales{Year: year, Months: make([]MonthSales, 12)}
	for i := range 12 {
		m := time.Month(i + 1)
		b := byMonth[time.Date(year, m, 1, 0, 0, 0, 0, s.loc).Format(dateLayout)]
		out.Months[i] = MonthSales{
			Month:      i + 1,
			Name:       m.String()[:3],
			TotalSales: b.TotalSales,
			OrderCount: b.OrderCount,
		}
	}
	return out, nil
}

// TopProductsByDay ranks the products sold on date (YYYY-MM-DD, empty for
// today). Zero limit means DefaultTopLimit.
func (s *Service) TopProductsByDay(ctx context.Context, date string, limit int) (*DayRanking, error) {
	day, err := s.day(date)
	if err != nil {
		return nil, err
	}
	switch {
	case limit == 0:
		limit = DefaultTopLimit
	case limit < 1 || limit > MaxTopLimit:
		return nil, apperr.Validationf("limit must be between 1 and %d", MaxTopLimit)
	}

	products, err := s.reader.TopProducts(ctx, day, day.AddDate(0, 0, 1), limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products by day")
	}
	return &DayRanking{Date: day.Format(dateLayout), Limit: limit, Products: nonNil(products)}, nil
}

// TopProductsByMonth ranks every product sold in a month.
func (s *Service) TopProductsByMonth(ctx context.Context, year, month int) (*PeriodRanking, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}
	month, err = s.month(month)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	products, err := s.reader.TopProducts(ctx, from, from.AddDate(0, 1, 0), 0)
	if err != nil {
		return nil, errors.Wrap(err, "top products by month")
	}
	return &PeriodRanking{Year: year, Month: month, Products: nonNil(products)}, nil
}

// TopProductsByYear ranks every product sold in a year.
func (s *Service) TopProductsByYear(ctx context.Context, year int) (*PeriodRanking, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	products, err := s.reader.TopProducts(ctx, from, from.AddDate(1, 0, 0), 0)
	if err != nil {
		return nil, errors.Wrap(err, "top products by year")
	}
	return &PeriodRanking{Year: year, Products: nonNil(products)}, nil
}

// ProductTrend returns one entry per day for the last days days including
// today, oldest first. Zero days means DefaultTrendDays.
func (s *Service) ProductTrend(ctx context.Context, productName string, days int) (*Trend, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return nil, apperr.New(apperr.Validation, "Product name is required")
	}
	switch {
	case days == 0:
		days = DefaultTrendDays
	case days < 1 || days > MaxTrendDays:
		return nil, apperr.Validationf("days must be between 1 and %d", MaxTrendDays)
	}

	today := startOfDay(s.now())
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	rows, err := s.reader.ProductDaily(ctx, productName, from, to, s.loc)
	if err != nil {
		return nil, errors.Wrap(err, "product trend")
	}
	byDay := make(map[string]ProductDay, len(rows))
	for _, r := range rows {
		byDay[r.Start.Format(dateLayout)] = r
	}

	out := &Trend{ProductName: productName, Days: make([]TrendDay, days)}
	for i := range days {
		date := from.AddDate(0, 0, i).Format(dateLayout)
		r := byDay[date]
		examples := r.AddonExamples
		if examples == nil {
			examples = [][]order.Addon{}
		}
		out.Days[i] = TrendDay{
			Date:          date,
			TotalSold:     r.TotalSold,
			TotalRevenue:  r.TotalRevenue,
			AddonExamples: examples,
		}
	}
	return out, nil
}

// buckets indexes aggregated buckets by their start date.
func (s *Service) buckets(ctx context.Context, unit Unit, from, to time.Time) (map[string]Bucket, error) {
	rows, err := s.reader.SalesBuckets(ctx, unit, from, to, s.loc)
	if err != nil {
		return nil, errors.Wrapf(err, "sales by %s", unit)
	}
	out := make(map[string]Bucket, len(rows))
	for _, b := range rows {
		out[b.Start.Format(dateLayout)] = b
	}
	return out, nil
}

func (s *Service) year(year int) (int, error) {
	switch {
	case year == 0:
		return s.now().Year(), nil
	case year < 1 || year > 9999:
		return 0, apperr.New(apperr.Validation, "year must be between 1 and 9999")
	default:
		return year, nil
	}
}

func (s *Service) month(month int) (int, error) {
	switch {
	case month == 0:
		return int(s.now().Month()), nil
	case month < 1 || month > 12:
		return 0, apperr.New(apperr.Validation, "month must be between 1 and 12")
	default:
		return month, nil
	}
}

func (s *Service) day(date string) (time.Time, error) {
	if date == "" {
		return startOfDay(s.now()), nil
	}
	d, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, apperr.New(apperr.Validation, "date must be formatted as YYYY-MM-DD")
	}
	return d, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isoYearStart returns the Monday that starts ISO week 1 of year, which is
// the week containing January 4th.
func isoYearStart(year int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset)
}

func nonNil(p []ProductSales) []ProductSales {
	if p == nil {
		return []ProductSales{}
	}
	return p
}
