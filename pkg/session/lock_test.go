package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, domain.NewExecutionState(sid, "task"))
		_ = mgr.Delete(ctx, sid)
	}

	assert.Empty(t, mgr.locks, "lock entries must be released after use")
}

// fakeLocker records lock calls and can refuse them.
type fakeLocker struct {
	keys     []string
	ttls     []time.Duration
	released int
	err      error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	f.ttls = append(f.ttls, ttl)
	return func(ctx context.Context) error {
		f.released++
		return ctx.Err()
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &fakeLocker{}
	mgr := NewManager(memory.NewStore(), WithLocker(locker), WithLockTTL(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	err := mgr.WithLock(ctx, "s1", func(ctx context.Context) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, locker.keys)
	assert.Equal(t, []time.Duration{time.Minute}, locker.ttls)
	assert.Equal(t, 1, locker.released, "unlock must survive a cancelled caller context")
}

func TestManager_DistributedLockFailure(t *testing.T) {
	boom := errors.New("redis down")
	mgr := NewManager(memory.NewStore(), WithLocker(&fakeLocker{err: boom}))

	called := false
	err := mgr.WithLock(context.Background(), "s1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
	assert.Empty(t, mgr.locks)
}
