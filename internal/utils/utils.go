package utils

import (
	"context"
	"time"
)

var after = time.After

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(d):
		return nil
	}
}

// LinearBackoff returns the delay before the given retry attempt (1-based).
func LinearBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}
	return time.Duration(attempt) * base
}
