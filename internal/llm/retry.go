package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobsync/internal/logging"
)

// Retrier re-runs a call after rate-limit errors on a fixed delay schedule.
// One delay per retry: with three delays a call is attempted at most four times.
type Retrier struct {
	Delays []time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

func NewRetrier(delays []time.Duration, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retrier{
		Delays: append([]time.Duration(nil), delays...),
		Sleep:  sleepContext,
		Logger: logger,
	}
}

// Call runs fn, retrying only rate-limited failures. Any other error is
// returned as is on the first occurrence.
func Call[T any](ctx context.Context, r *Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := len(r.Delays) + 1
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("%s: gave up after %d attempts: %w", op, attempts, err)
		}

		delay := r.Delays[attempt-1]
		r.logger().Warn("rate limited, retrying", "op", op, "attempt", attempt, "of", attempts, "wait", delay)
		if err := r.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func (r *Retrier) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return r.Sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
