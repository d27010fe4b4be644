package main

import (
	"context"
	"log/slog"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

// store is the order persistence used by the importer.
type store interface {
	Create(ctx context.Context, o *order.Order) error
	Existing(ctx context.Context, ids []string) ([]string, error)
}

type stats struct {
	inserted   int
	duplicates int
}

// importer writes orders in batches, skipping ids that are already stored or
// seen earlier in the run. The bloom filter holds every known id; only its
// positives are confirmed against the store.
type importer struct {
	store     store
	tx        txn.Runner
	filter    *bloom.BloomFilter
	batchSize int

	batch    []order.Order
	suspects []order.Order
	stats    stats
}

func newImporter(s store, tx txn.Runner, filter *bloom.BloomFilter, batchSize int) *importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &importer{store: s, tx: tx, filter: filter, batchSize: batchSize}
}

func (im *importer) add(ctx context.Context, o order.Order) error {
	if !im.filter.TestAndAddString(o.ID) {
		im.batch = append(im.batch, o)
		if len(im.batch) >= im.batchSize {
			return im.flush(ctx)
		}
		return nil
	}

	im.suspects = append(im.suspects, o)
	if len(im.suspects) >= im.batchSize {
		return im.resolve(ctx)
	}
	return nil
}

// resolve confirms possible duplicates. The pending batch is written first so
// that ids seen earlier in the run are visible to the lookup.
func (im *importer) resolve(ctx context.Context) error {
	if len(im.suspects) == 0 {
		return nil
	}
	if err := im.flush(ctx); err != nil {
		return err
	}

	ids := make([]string, len(im.suspects))
	for i, o := range im.suspects {
		ids[i] = o.ID
	}
	existing, err := im.store.Existing(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "check existing orders")
	}

	known := make(map[string]struct{}, len(existing)+len(im.suspects))
	for _, id := range existing {
		known[id] = struct{}{}
	}
	for _, o := range im.suspects {
		if _, ok := known[o.ID]; ok {
			im.stats.duplicates++
			continue
		}
		known[o.ID] = struct{}{}
		im.batch = append(im.batch, o)
	}
	im.suspects = im.suspects[:0]
	return im.flush(ctx)
}

func (im *importer) flush(ctx context.Context) error {
	if len(im.batch) == 0 {
		return nil
	}
	err := im.tx.Run(ctx, func(ctx context.Context) error {
		for i := range im.batch {
			if err := im.store.Create(ctx, &im.batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "insert batch of %d", len(im.batch))
	}

	im.stats.inserted += len(im.batch)
	slog.Info("batch written", slog.Int("orders", len(im.batch)), slog.Int("inserted_total", im.stats.inserted))
	im.batch = im.batch[:0]
	return nil
}

// finish writes everything still buffered.
func (im *importer) finish(ctx context.Context) error {
	if err := im.resolve(ctx); err != nil {
		return err
	}
	return im.flush(ctx)
}
