package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// RetryPolicy bounds the attempts made for one collaborator call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes three attempts with exponential backoff starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// backoff returns the wait before attempt n+1, n starting at 1.
func (p RetryPolicy) backoff(n int) time.Duration {
	shift := n - 1
	if shift > 30 {
		shift = 30
	}
	wait := p.BaseDelay * time.Duration(1<<uint(shift))
	if p.MaxDelay > 0 && (wait > p.MaxDelay || wait < 0) {
		return p.MaxDelay
	}
	return wait
}

// Do calls fn until it succeeds, fails permanently or the attempts run out.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var err error
	for n := 1; ; n++ {
		if cerr := ctx.Err(); cerr != nil {
			return n - 1, cerr
		}
		err = fn(ctx)
		if err == nil || !retryable(ctx, err) || n == max {
			return n, err
		}

		timer := time.NewTimer(p.backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryable reports whether another attempt could succeed.
func retryable(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrSolverIncomplete), errors.Is(err, ErrNotConfigured):
		return false
	case errors.Is(err, domain.ErrInvalidOutput):
		// Re-asking is the caller's decision; synthesis has its own attempt budget.
		return false
	}
	return true
}
