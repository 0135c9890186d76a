package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
)

func fastPolicy(attempts int) runtime.RetryPolicy {
	return runtime.RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")

	t.Run("Succeeds After Transient Failures", func(t *testing.T) {
		calls := 0
		n, err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Gives Up", func(t *testing.T) {
		n, err := fastPolicy(2).Do(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, n)
	})

	t.Run("Permanent Errors Are Not Retried", func(t *testing.T) {
		for _, perm := range []error{domain.ErrSolverIncomplete, domain.ErrInvalidOutput, runtime.ErrNotConfigured} {
			n, err := fastPolicy(5).Do(context.Background(), func(context.Context) error { return perm })
			assert.ErrorIs(t, err, perm)
			assert.Equal(t, 1, n)
		}
	})

	t.Run("Cancellation Is Not Retried", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		n, err := fastPolicy(5).Do(ctx, func(context.Context) error {
			cancel()
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, n)
	})

	t.Run("Cancelled Before First Attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n, err := fastPolicy(5).Do(ctx, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, n)
	})
}
