package domain

import (
	"context"
	"sync"
	"time"
)

// LockKey identifies the (tenant, resource, date) combination a write competes for.
type LockKey struct {
	TenantID   string
	ResourceID string
	Date       time.Time
}

func (k LockKey) String() string {
	return k.TenantID + "/" + k.ResourceID + "/" + CivilDate(k.Date).Format(time.DateOnly)
}

// Locker serialises read-compute-persist sequences for one LockKey.
type Locker interface {
	Lock(ctx context.Context, key LockKey) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock blocks until the key is free or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key LockKey) (func(), error) {
	name := key.String()

	m.mu.Lock()
	entry, ok := m.entries[name]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		m.entries[name] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(name, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.release(name, entry)
		})
	}, nil
}

func (m *KeyedMutex) release(name string, entry *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, name)
	}
}

