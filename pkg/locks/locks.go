// Package locks serializes mutations of a single process instance.
// Advances of distinct instances run concurrently; two advances of the
// same instance are queued behind the same key.
package locks

import (
	"context"
	"sync"
)

// UnlockFunc releases a held lock. Safe to call once.
type UnlockFunc func()

// Locker acquires an exclusive lock for a key. Acquire blocks until the
// lock is held or the context is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (UnlockFunc, error)
}

// MemoryLocker is an in-process Locker backed by per-key mutexes.
// It is the default for single-node deployments and for tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates a new in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string) (UnlockFunc, error) {
	m.mu.Lock()

	entry, ok := m.locks[key]
	if !ok {
		entry = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}

	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry, false)

		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			m.release(key, entry, true)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, entry *keyLock, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held {
		<-entry.ch
	}

	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
}
