package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/repository"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

type options struct {
	dataDir       string
	databaseURL   string
	workers       int
	batchSize     int
	bloomCapacity uint
	bloomFPR      float64
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.jsonl.gz order archives")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.workers, "workers", 4, "archives decoded concurrently")
	flag.IntVar(&opts.batchSize, "batch-size", 500, "orders inserted per transaction")
	flag.UintVar(&opts.bloomCapacity, "bloom-capacity", 10_000_000, "expected number of distinct order ids")
	flag.Float64Var(&opts.bloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("order import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list archives")
	}
	if len(files) == 0 {
		slog.Info("no archives found", slog.String("dir", opts.dataDir))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	orders := repository.NewOrderRepository(pool)

	slog.Info("loading existing order ids")

	filter := bloom.NewWithEstimates(opts.bloomCapacity, opts.bloomFPR)
	var existing int
	if err := orders.ScanIDs(ctx, func(id string) {
		filter.AddString(id)
		existing++
	}); err != nil {
		return errors.Wrap(err, "load existing ids")
	}
	slog.Info("existing ids loaded", slog.Int("count", existing))

	im := newImporter(orders, txn.NewManager(pool), filter, opts.batchSize)
	skipped, err := importArchives(ctx, files, opts.workers, im)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("inserted", im.stats.inserted),
		slog.Int("duplicates", im.stats.duplicates),
		slog.Int64("skipped", skipped),
	)
	return nil
}

// importArchives decodes files concurrently and feeds a single writer.
func importArchives(ctx context.Context, files []string, workers int, im *importer) (int64, error) {
	g, ctx := errgroup.WithContext(ctx)
	recs := make(chan order.Order, 1024)
	var skipped atomic.Int64

	g.Go(func() error {
		for o := range recs {
			if err := im.add(ctx, o); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return im.finish(ctx)
	})
	g.Go(func() error {
		defer close(recs)

		readers := new(errgroup.Group)
		readers.SetLimit(max(workers, 1))
		for _, path := range files {
			readers.Go(func() error {
				slog.Info("reading archive", slog.String("file", path))
				n, err := readArchive(ctx, path, func(o order.Order) error {
					select {
					case recs <- o:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				})
				skipped.Add(int64(n))
				return err
			})
		}
		return readers.Wait()
	})

	if err := g.Wait(); err != nil {
		return skipped.Load(), errors.Wrap(err, "import archives")
	}
	return skipped.Load(), nil
}
