package retry

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"

	"github.com/g960059/timersvc/internal/store"
)

// retry-go's exponential DelayType doubles Backoff on each attempt.
const DefaultBackoff = 100 * time.Millisecond
const DefaultMaxRetries = 3

type Policy struct {
	Backoff    time.Duration
	MaxRetries int
}

func DefaultPolicy() Policy {
	return Policy{Backoff: DefaultBackoff, MaxRetries: DefaultMaxRetries}
}

// Command retries only *store.PersistenceError; any other error (malformed
// command, absurd state) returns immediately on first failure.
func Command(ctx context.Context, policy Policy, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxRetries)+1),
		retry.Delay(policy.Backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
}

func isTransient(err error) bool {
	var persistErr *store.PersistenceError
	return errors.As(err, &persistErr)
}
