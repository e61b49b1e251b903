// Package retryx wraps sethvargo/go-retry into the single combinator the
// client needs: run an operation under a fixed per-attempt timeout and retry
// only timeouts, a bounded number of times, with no inter-attempt delay
// beyond the timeout window itself.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ilyakarpov/paycodes/internal/common"
)

// Do runs op up to maxAttempts times. Each attempt gets its own context with
// the given timeout (timeout <= 0 disables the per-attempt deadline). An
// attempt that exceeds its deadline is retried; any other error aborts
// immediately and is returned as-is. When every attempt times out, the
// returned error matches common.ErrTimeout.
func Do(ctx context.Context, maxAttempts int, timeout time.Duration, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(time.Millisecond))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err == nil {
			return nil
		}

		// Retry only when the attempt deadline fired; a cancelled parent
		// context means the caller gave up, not that the server was slow.
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, common.ErrTimeout)) {
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrTimeout, err))
		}
		return err
	})
}
