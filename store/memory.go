package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	records map[string]Entry
	closed  bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Entry)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key []byte) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Entry{}, ErrClosed
	}
	e, ok := m.records[string(key)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: append([]byte(nil), e.Value...), Version: e.Version}, nil
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, key, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if _, ok := m.records[string(key)]; ok {
		return 0, ErrExists
	}
	m.records[string(key)] = Entry{Value: append([]byte(nil), value...), Version: 1}
	return 1, nil
}

// CompareAndCommit implements Store.
func (m *Memory) CompareAndCommit(ctx context.Context, key []byte, expected uint64, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	e, ok := m.records[string(key)]
	if !ok {
		return 0, ErrNotFound
	}
	if e.Version != expected {
		return 0, ErrVersionMismatch
	}
	next := Entry{Value: append([]byte(nil), value...), Version: e.Version + 1}
	m.records[string(key)] = next
	return next.Version, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
