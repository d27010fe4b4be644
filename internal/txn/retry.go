package txn

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Policy bounds retries of a unit of work that hit a write conflict.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
}

// DefaultPolicy makes three attempts with 100ms, then 200ms of waiting.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 100 * time.Millisecond}

// Retry runs fn and repeats it while it fails with a write conflict, up to
// p.Attempts times. Other errors are returned immediately. Waiting between
// attempts stops early when ctx is done.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsConflict(err) || attempt == attempts {
			return err
		}

		wait := p.Backoff * time.Duration(attempt)
		zctx.From(ctx).Debug("Retrying after write conflict",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
