package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	created time.Time
}

// MemoryStore keeps fixed playlists in process memory. Contents are lost on
// restart.
type MemoryStore struct {
	entries sync.Map // id -> memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Put implements FixStore.
func (m *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	return put(ctx, m, data)
}

// Save implements FixStore.
func (m *MemoryStore) Save(_ context.Context, id string, data []byte) error {
	if _, err := ParseID(id); err != nil {
		return err
	}

	entry := memoryEntry{data: append([]byte(nil), data...), created: m.now()}
	if _, loaded := m.entries.LoadOrStore(id, entry); loaded {
		return ErrExists
	}
	return nil
}

// Get implements FixStore.
func (m *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	v, ok := m.entries.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v.(memoryEntry).data...), nil
}

// Purge implements FixStore.
func (m *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	m.entries.Range(func(key, value any) bool {
		if ctx.Err() != nil {
			return false
		}
		if value.(memoryEntry).created.Before(olderThan) {
			m.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, ctx.Err()
}

// Len returns the number of stored playlists.
func (m *MemoryStore) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
