// Package keylock serializes work on the same (profile, transaction) pair so
// the dedup check and the audit insert behave as one step.
package keylock

import (
	"context"
	"fmt"
	"sync"
)

// Locker acquires an exclusive lock on key until unlock is called or ctx ends.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Key builds the lock key for a profile transaction.
func Key(profileID int64, txID string) string {
	return fmt.Sprintf("%d:%s", profileID, txID)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker creates an empty lock table.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*entry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size is the number of keys currently held or awaited.
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
