package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "inst-1")
	require.NoError(t, err)

	acquired := make(chan struct{})

	go func() {
		second, err := locker.Acquire(ctx, "inst-1")
		assert.NoError(t, err)

		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should proceed after release")
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	unlockA, err := locker.Acquire(ctx, "inst-a")
	require.NoError(t, err)

	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	unlockB, err := locker.Acquire(ctxB, "inst-b")
	require.NoError(t, err)
	unlockB()
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, err := locker.Acquire(context.Background(), "inst-1")
	require.NoError(t, err)

	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "inst-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, err := locker.Acquire(context.Background(), "inst-1")
	require.NoError(t, err)

	unlock()
	unlock()

	again, err := locker.Acquire(context.Background(), "inst-1")
	require.NoError(t, err)
	again()
}
