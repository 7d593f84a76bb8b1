// Package badgerstore implements store.Store on BadgerDB. Records are
// written inside optimistic transactions, so a concurrent commit to the
// same key surfaces as store.ErrVersionMismatch.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/store"
)

const versionSize = 8

// Store is a BadgerDB-backed store.Store.
type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
	closed int32
}

var _ store.Store = (*Store)(nil)

// Open opens or creates a store in dir.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("badgerstore: create data dir: %w", err)
	}
	opts := badgerdb.DefaultOptions(dir)
	opts.SyncWrites = true
	opts.ValueLogFileSize = 64 << 20
	opts.BlockCacheSize = 32 << 20
	opts.IndexCacheSize = 16 << 20
	return open(opts, logger)
}

// OpenInMemory opens a store that keeps everything in memory.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return open(badgerdb.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badgerdb.Options, logger *zap.Logger) (*Store, error) {
	opts.Logger = newBadgerLogger(logger)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	logger.Debug("badger store opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, logger: logger}, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key []byte) (store.Entry, error) {
	if err := s.check(ctx); err != nil {
		return store.Entry{}, err
	}
	var entry store.Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		entry, err = readEntry(txn, key)
		return err
	})
	if err != nil {
		return store.Entry{}, wrap(err)
	}
	return entry, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, key, value []byte) (uint64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return store.ErrExists
		case !errors.Is(err, badgerdb.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, encode(1, value))
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		// Another transaction wrote the key after we saw it missing.
		return 0, store.ErrExists
	}
	if err != nil {
		return 0, wrap(err)
	}
	return 1, nil
}

// CompareAndCommit implements store.Store.
func (s *Store) CompareAndCommit(ctx context.Context, key []byte, expected uint64, value []byte) (uint64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	next := expected + 1
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		current, err := readEntry(txn, key)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return store.ErrVersionMismatch
		}
		return txn.Set(key, encode(next, value))
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		s.logger.Debug("badger transaction conflict", zap.ByteString("key", key))
		return 0, store.ErrVersionMismatch
	}
	if err != nil {
		return 0, wrap(err)
	}
	return next, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badgerstore: close: %w", err)
	}
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if atomic.LoadInt32(&s.closed) == 1 {
		return store.ErrClosed
	}
	return nil
}

func readEntry(txn *badgerdb.Txn, key []byte) (store.Entry, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return store.Entry{}, store.ErrNotFound
	}
	if err != nil {
		return store.Entry{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return store.Entry{}, err
	}
	return decode(raw)
}

// Records are stored as an 8-byte big-endian version followed by the value.
func encode(version uint64, value []byte) []byte {
	out := make([]byte, versionSize+len(value))
	binary.BigEndian.PutUint64(out, version)
	copy(out[versionSize:], value)
	return out
}

func decode(raw []byte) (store.Entry, error) {
	if len(raw) < versionSize {
		return store.Entry{}, fmt.Errorf("badgerstore: corrupt record of %d bytes", len(raw))
	}
	return store.Entry{
		Version: binary.BigEndian.Uint64(raw[:versionSize]),
		Value:   raw[versionSize:],
	}, nil
}

func wrap(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExists) || errors.Is(err, store.ErrVersionMismatch) {
		return err
	}
	return fmt.Errorf("badgerstore: %w", err)
}
