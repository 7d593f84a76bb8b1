// Package store provides the versioned key-value records vaults are kept
// in. Every write names the version it was computed from, so concurrent
// writers serialize through compare-and-commit instead of overwriting
// each other.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no record.
	ErrNotFound = errors.New("store: not found")

	// ErrExists is returned by Create when the key already has a record.
	ErrExists = errors.New("store: already exists")

	// ErrVersionMismatch is returned by CompareAndCommit when the record
	// changed since the expected version was read.
	ErrVersionMismatch = errors.New("store: version mismatch")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Entry is a record and the version it was read at. Versions start at 1
// and increase by one on every commit.
type Entry struct {
	Value   []byte
	Version uint64
}

// Store is a versioned key-value store.
type Store interface {
	// Get returns the current record for key.
	Get(ctx context.Context, key []byte) (Entry, error)
	// Create writes the first version of key and returns it.
	Create(ctx context.Context, key, value []byte) (uint64, error)
	// CompareAndCommit replaces the record for key only if its version
	// is still expected, and returns the new version.
	CompareAndCommit(ctx context.Context, key []byte, expected uint64, value []byte) (uint64, error)
	// Close releases the store.
	Close() error
}
