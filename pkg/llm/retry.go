package llm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sentinelops/sentinel/internal/errors"
)

// Retry policy per §4.5: up to 3 attempts, exponential backoff floor 2s,
// cap 10s, retrying any transient error.
const (
	maxAttempts  = 3
	backoffFloor = 2 * time.Second
	backoffCap   = 10 * time.Second
)

// RetryCall runs fn under the §4.5 retry policy, retrying only errors that
// IsRetryable classifies as transient.
func RetryCall(ctx context.Context, fn func(ctx context.Context) (Response, error)) (Response, error) {
	backoff := retry.NewExponential(backoffFloor)
	backoff = retry.WithCappedDuration(backoffCap, backoff)
	backoff = retry.WithMaxRetries(maxAttempts-1, backoff)

	var resp Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := fn(ctx)
		if err != nil {
			if errors.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}
