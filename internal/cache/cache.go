// Package cache puts a Redis read-through cache in front of the report
// queries.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
)

const keyPrefix = "cafe:report:"

// Store is the subset of *redis.Client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

var _ report.Reader = (*Reports)(nil)

// Reports caches report.Reader results for a fixed TTL. Redis failures fall
// through to the underlying reader.
type Reports struct {
	next  report.Reader
	store Store
	ttl   time.Duration
}

// NewReports wraps next with a cache stored in store.
func NewReports(next report.Reader, store Store, ttl time.Duration) *Reports {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Reports{next: next, store: store, ttl: ttl}
}

func (c *Reports) Totals(ctx context.Context, from, to time.Time) (report.Totals, error) {
	key := fmt.Sprintf("totals:%d:%d", from.Unix(), to.Unix())
	return cached(ctx, c, key, func(ctx context.Context) (report.Totals, error) {
		return c.next.Totals(ctx, from, to)
	})
}

func (c *Reports) CountByStatus(ctx context.Context, status order.Status) (int64, error) {
	key := "status:" + string(status)
	return cached(ctx, c, key, func(ctx context.Context) (int64, error) {
		return c.next.CountByStatus(ctx, status)
	})
}

func (c *Reports) SalesBuckets(ctx context.Context, unit report.Unit, from, to time.Time, loc *time.Location) ([]report.Bucket, error) {
	key := fmt.Sprintf("buckets:%s:%d:%d:%s", unit, from.Unix(), to.Unix(), loc)
	return cached(ctx, c, key, func(ctx context.Context) ([]report.Bucket, error) {
		return c.next.SalesBuckets(ctx, unit, from, to, loc)
	})
}

func (c *Reports) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]report.ProductSales, error) {
	key := fmt.Sprintf("top:%d:%d:%d", from.Unix(), to.Unix(), limit)
	return cached(ctx, c, key, func(ctx context.Context) ([]report.ProductSales, error) {
		return c.next.TopProducts(ctx, from, to, limit)
	})
}

func (c *Reports) ProductDaily(ctx context.Context, productName string, from, to time.Time, loc *time.Location) ([]report.ProductDay, error) {
	key := fmt.Sprintf("trend:%q:%d:%d:%s", productName, from.Unix(), to.Unix(), loc)
	return cached(ctx, c, key, func(ctx context.Context) ([]report.ProductDay, error) {
		return c.next.ProductDaily(ctx, productName, from, to, loc)
	})
}

func cached[T any](ctx context.Context, c *Reports, key string, load func(ctx context.Context) (T, error)) (T, error) {
	key = keyPrefix + key
	lg := zctx.From(ctx)

	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		lg.Warn("Dropping undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		lg.Warn("Report cache encode failed", zap.String("key", key), zap.Error(err))
		return v, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl).Err(); err != nil {
		lg.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
