package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
}

// DefaultConfig returns the retry configuration used for external AI calls:
// three attempts with 2s, 4s, 8s backoff and a 120s per-attempt budget.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       8 * time.Second,
		BackoffFactor:  2.0,
		AttemptTimeout: 120 * time.Second,
	}
}

// Permanent wraps an error to mark it as non-retryable.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// NewPermanent marks err so Do bubbles it on first failure.
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do executes fn with exponential backoff retry logic. Each attempt runs
// under its own timeout derived from cfg.AttemptTimeout. A retry is skipped
// when the remaining time on ctx is shorter than the attempt timeout, so a
// cumulative deadline on ctx is respected.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt-1, ctx.Err(), lastErr)
			}
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		default:
		}

		if cfg.AttemptTimeout > 0 {
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < cfg.AttemptTimeout && attempt > 1 {
				return fmt.Errorf("retry abandoned before attempt %d: insufficient time remaining: %w", attempt, lastErr)
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}

		if perm, ok := err.(*Permanent); ok {
			return perm.Err
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max retry attempts exceeded: %w", lastErr)
}

// DoWithLog executes fn with retry and invokes logFn before every backoff
// sleep, letting callers log each failed attempt.
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func(ctx context.Context) error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	wrapped := fn
	if logFn != nil {
		attempt := 0
		wrapped = func(ctx context.Context) error {
			attempt++
			err := fn(ctx)
			if err != nil {
				if _, ok := err.(*Permanent); !ok && attempt < cfg.MaxAttempts {
					logFn(attempt, err, backoffDelay(cfg, attempt))
				}
			}
			return err
		}
	}
	if err := Do(ctx, cfg, wrapped); err != nil {
		return fmt.Errorf("%s: %w", serviceName, err)
	}
	return nil
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return delay
}
