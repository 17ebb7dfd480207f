package store

import (
	"context"
	"sync"
)

// MemoryStore provides an in-memory implementation of Store.
//
// This implementation is suitable for single-instance deployments and tests
// where ledger state doesn't need to outlive the process. Use the Redis or
// SQLite backend when state must be shared or persisted.
//
// Features:
//   - Thread-safe; Update holds the write lock for the whole transaction
//   - Failed transactions are rolled back from an undo journal
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// memoryKV records the prior value of each key on first write.
type memoryKV struct {
	data    map[string]string
	journal map[string]*string
}

func (m *memoryKV) get(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) put(key, value string) error {
	if m.journal != nil {
		if _, seen := m.journal[key]; !seen {
			if prev, ok := m.data[key]; ok {
				m.journal[key] = &prev
			} else {
				m.journal[key] = nil
			}
		}
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) rollback() {
	for key, prev := range m.journal {
		if prev == nil {
			delete(m.data, key)
		} else {
			m.data[key] = *prev
		}
	}
}

// Update runs fn under the write lock and undoes its writes if it fails.
func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backend := &memoryKV{data: s.data, journal: make(map[string]*string)}
	if err := fn(newLedgerTx(backend, false)); err != nil {
		backend.rollback()
		return err
	}
	return nil
}

// View runs fn under the read lock.
func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newLedgerTx(&memoryKV{data: s.data}, true))
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
