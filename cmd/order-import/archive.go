package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/pricing"
)

const maxLineBytes = 4 << 20

// record is one archived order, one JSON object per line.
type record struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"userId"`
	Items              []order.Item        `json:"items"`
	DiscountID         *string             `json:"discountId"`
	DiscountName       *string             `json:"discountName"`
	DiscountPercentage decimal.NullDecimal `json:"discountPercentage"`
	DiscountApplied    bool                `json:"discountApplied"`
	Total              *decimal.Decimal    `json:"total"`
	Status             order.Status        `json:"status"`
	QRCode             string              `json:"qrCode"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// toOrder validates r and converts it. A missing total is recomputed from the
// items, reduced by the discount when it was applied.
func (r *record) toOrder() (order.Order, error) {
	switch {
	case r.ID == "":
		return order.Order{}, errors.New("missing id")
	case r.UserID == "":
		return order.Order{}, errors.New("missing userId")
	case len(r.Items) == 0:
		return order.Order{}, errors.New("no items")
	case r.CreatedAt.IsZero():
		return order.Order{}, errors.New("missing createdAt")
	}
	for i, it := range r.Items {
		if !pricing.InRange(it.Price) {
			return order.Order{}, errors.Errorf("items[%d]: price out of range", i)
		}
		for j, a := range it.Addons {
			if !pricing.InRange(a.Price) {
				return order.Order{}, errors.Errorf("items[%d].addons[%d]: price out of range", i, j)
			}
		}
	}
	if r.Total != nil && !pricing.InRange(*r.Total) {
		return order.Order{}, errors.New("total out of range")
	}
	if r.Status == "" {
		r.Status = order.StatusPending
	}
	if !r.Status.Valid() {
		return order.Order{}, errors.Errorf("invalid status %q", r.Status)
	}

	o := order.Order{
		ID:              r.ID,
		UserID:          r.UserID,
		Items:           r.Items,
		DiscountID:      r.DiscountID,
		DiscountApplied: r.DiscountApplied,
		Status:          r.Status,
		QRCode:          r.QRCode,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.DiscountName != nil {
		o.DiscountDetails = &order.DiscountDetails{Name: *r.DiscountName, Percentage: r.DiscountPercentage.Decimal}
	}

	if r.Total != nil {
		o.Total = *r.Total
		return o, nil
	}
	lines := make([]pricing.Line, len(r.Items))
	for i, it := range r.Items {
		lines[i] = it.Line()
	}
	o.Total = pricing.Compute(lines, nil).Total
	if o.DiscountApplied && r.DiscountPercentage.Valid {
		o.Total = pricing.ApplyPercentage(o.Total, r.DiscountPercentage.Decimal)
	}
	return o, nil
}

// readArchive streams a gzip-compressed JSON lines file and calls fn for
// every valid order. Invalid lines are logged and counted, not fatal.
func readArchive(ctx context.Context, path string, fn func(order.Order) error) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	var line int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			skipped++
			slog.Warn("skipping malformed line", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		o, err := r.toOrder()
		if err != nil {
			skipped++
			slog.Warn("skipping invalid order", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if err := fn(o); err != nil {
			return skipped, err
		}
	}

	if err := scanner.Err(); err != nil {
		return skipped, errors.Wrapf(err, "scan %s", path)
	}
	return skipped, nil
}
