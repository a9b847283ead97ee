package secretstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// writeAttempts bounds silent retries of a failed write to a single retry.
const writeAttempts = 2

const defaultRetryDelay = 50 * time.Millisecond

// RetryingStore retries a failed write once before surfacing the StoreError.
// Reads pass straight through.
type RetryingStore struct {
	Store
	clock  clock.Clock
	delay  time.Duration
	logger *slog.Logger
}

var _ Store = (*RetryingStore)(nil)

// RetryOption configures a RetryingStore.
type RetryOption func(*RetryingStore)

// WithRetryDelay sets the pause between the two write attempts.
func WithRetryDelay(d time.Duration) RetryOption {
	return func(s *RetryingStore) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithRetryLogger sets the logger used to report retried writes.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(s *RetryingStore) {
		s.logger = logger
	}
}

// WithRetry wraps store so that Set, Delete and Create are attempted at most
// twice. A nil clock uses the wall clock.
func WithRetry(store Store, clk clock.Clock, opts ...RetryOption) *RetryingStore {
	if clk == nil {
		clk = clock.WallClock
	}
	s := &RetryingStore{
		Store:  store,
		clock:  clk,
		delay:  defaultRetryDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "secretstore")
	return s
}

func (s *RetryingStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	return s.call(ctx, "set", func() error {
		return s.Store.Set(ctx, namespace, key, value)
	})
}

func (s *RetryingStore) Delete(ctx context.Context, namespace, key string) error {
	return s.call(ctx, "delete", func() error {
		return s.Store.Delete(ctx, namespace, key)
	})
}

func (s *RetryingStore) Create(ctx context.Context, namespace, key string, value []byte) error {
	return s.call(ctx, "create", func() error {
		return s.Store.Create(ctx, namespace, key, value)
	})
}

func (s *RetryingStore) call(ctx context.Context, op string, fn func() error) error {
	var last error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			last = fn()
			return last
		},
		IsFatalError: func(err error) bool {
			// Only storage failures are worth a second attempt.
			return !errors.Is(err, ErrStore)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt < writeAttempts {
				s.logger.Debug("retrying secret store write", "op", op, "attempt", attempt)
			}
		},
		Attempts: writeAttempts,
		Delay:    s.delay,
		Clock:    s.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	return err
}
