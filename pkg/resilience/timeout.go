package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline. The error distinguishes fn's own
// failure, the deadline firing, and the parent context being cancelled.
// A non-positive limit disables the deadline.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != context.DeadlineExceeded {
			return fmt.Errorf("%s cancelled: %w", name, cause)
		}
		return fmt.Errorf("%s exceeded %v: %w", name, limit, context.DeadlineExceeded)
	}
}
