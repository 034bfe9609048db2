// Package keylock serializes work per key. Each key gets its own mutex, created
// on first use and released once no goroutine holds or waits for it.
package keylock

import (
	"context"
	"sync"

	"github.com/vinicius-lino-figueiredo/docdb/pkg/ctxsync"
)

// Map holds one lock per key.
type Map struct {
	mu    sync.Mutex
	locks map[uint64]*entry
}

type entry struct {
	mu   *ctxsync.Mutex
	refs int
}

// New returns an empty [Map].
func New() *Map {
	return &Map{locks: make(map[uint64]*entry)}
}

// Lock blocks until the lock of key is acquired or ctx is done. The returned
// function releases it and can be called more than once.
func (m *Map) Lock(ctx context.Context, key uint64) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{mu: ctxsync.NewMutex()}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	if err := e.mu.LockWithContext(ctx); err != nil {
		m.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.release(key, e)
		})
	}, nil
}

func (m *Map) release(key uint64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or waited for.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
