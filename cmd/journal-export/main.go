// Command journal-export dumps checkout attempts from the journal database
// as gzip-compressed JSON lines, one attempt per line, for reconciliation
// against the order backend.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		out         string
		since       time.Duration
		migrate     bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "attempts.jsonl.gz", "output file, - for stdout")
	flag.DurationVar(&since, "since", 24*time.Hour, "export attempts newer than this")
	flag.BoolVar(&migrate, "migrate", false, "apply journal migrations before exporting")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	from := time.Now().Add(-since).UTC()
	n, err := run(ctx, lg, databaseURL, out, from, migrate)
	if err != nil {
		lg.Fatal("Export failed", zap.Error(err))
	}
	lg.Info("Export completed", zap.Int("attempts", n), zap.Time("since", from), zap.String("out", out))
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, out string, since time.Time, migrate bool) (int, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if migrate {
		lg.Info("Applying migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return 0, errors.Wrap(err, "run migrations")
		}
	}

	f := os.Stdout
	if out != "-" {
		if f, err = os.Create(out); err != nil {
			return 0, errors.Wrapf(err, "create %s", out)
		}
		defer func() { _ = f.Close() }()
	}

	journal := postgres.NewJournal(pool)
	attempts := make(chan checkout.Attempt, 256)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(attempts)
		return journal.Export(ctx, since, func(a checkout.Attempt) error {
			select {
			case attempts <- a:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var written int
	g.Go(func() error {
		n, err := writeAttempts(f, attempts, func(n int) {
			lg.Info("Export progress", zap.Int("attempts", n))
		})
		written = n
		return err
	})

	if err := g.Wait(); err != nil {
		return written, err
	}
	if f != os.Stdout {
		if err := f.Sync(); err != nil {
			return written, errors.Wrapf(err, "sync %s", out)
		}
	}
	return written, nil
}
