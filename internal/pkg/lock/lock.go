// Package lock provides keyed mutual exclusion.
// Every mutating operation on a game runs while holding that game's key, so
// draws, reveals and participant edits on one game never interleave while
// operations on different games proceed in parallel.
package lock

import (
	"context"
	"sync"
)

// keyMutex is a one-slot semaphore with a reference count so idle keys can
// be dropped from the table.
type keyMutex struct {
	sem  chan struct{}
	refs int
}

// KeyLock provides per-key locking.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// acquire registers interest in key and returns its mutex.
func (kl *KeyLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{sem: make(chan struct{}, 1)}
		kl.locks[key] = km
	}
	km.refs++
	return km
}

// release drops interest in key and forgets it once nobody holds or waits on it.
func (kl *KeyLock) release(key string, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km.refs--
	if km.refs == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key.
func (kl *KeyLock) Lock(key string) {
	km := kl.acquire(key)
	km.sem <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-km.sem:
		kl.release(key, km)
	default:
	}
}

// TryLock attempts to acquire the lock without blocking.
func (kl *KeyLock) TryLock(key string) bool {
	km := kl.acquire(key)
	select {
	case km.sem <- struct{}{}:
		return true
	default:
		kl.release(key, km)
		return false
	}
}

// LockContext acquires the lock for key or gives up when ctx is done.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	km := kl.acquire(key)
	select {
	case km.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.release(key, km)
		return ErrLockTimeout
	}
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the lock for key, waiting for the
// lock no longer than ctx allows.
func (kl *KeyLock) WithLockContext(ctx context.Context, key string, fn func() error) error {
	if err := kl.LockContext(ctx, key); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held.
// Note: This is a point-in-time check and may change immediately after.
func (kl *KeyLock) IsLocked(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	km, ok := kl.locks[key]
	return ok && len(km.sem) == 1
}

// Len returns the number of keys currently tracked.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
