package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := []byte("vault/a")

	if _, err := m.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() missing error = %v, want ErrNotFound", err)
	}

	v, err := m.Create(ctx, key, []byte("one"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if v != 1 {
		t.Errorf("Create() version = %d, want 1", v)
	}
	if _, err := m.Create(ctx, key, []byte("again")); !errors.Is(err, ErrExists) {
		t.Errorf("Create() duplicate error = %v, want ErrExists", err)
	}

	v, err = m.CompareAndCommit(ctx, key, 1, []byte("two"))
	if err != nil {
		t.Fatalf("CompareAndCommit() error = %v", err)
	}
	if v != 2 {
		t.Errorf("CompareAndCommit() version = %d, want 2", v)
	}

	if _, err := m.CompareAndCommit(ctx, key, 1, []byte("stale")); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("stale CompareAndCommit() error = %v, want ErrVersionMismatch", err)
	}
	if _, err := m.CompareAndCommit(ctx, []byte("vault/b"), 1, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing CompareAndCommit() error = %v, want ErrNotFound", err)
	}

	e, err := m.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Value) != "two" || e.Version != 2 {
		t.Errorf("Get() = %q@%d, want two@2", e.Value, e.Version)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, key); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	value := []byte("abc")
	if _, err := m.Create(ctx, []byte("k"), value); err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'

	e, _ := m.Get(ctx, []byte("k"))
	e.Value[1] = 'Y'

	again, _ := m.Get(ctx, []byte("k"))
	if string(again.Value) != "abc" {
		t.Errorf("stored value = %q, want abc", again.Value)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	if _, err := m.Create(ctx, []byte("k"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
}

func TestMemory_ConcurrentCommitsSerialize(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := []byte("counter")
	if _, err := m.Create(ctx, key, []byte{0}); err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := m.Get(ctx, key)
				if err != nil {
					t.Error(err)
					return
				}
				_, err = m.CompareAndCommit(ctx, key, e.Version, []byte{e.Value[0] + 1})
				if errors.Is(err, ErrVersionMismatch) {
					continue
				}
				if err != nil {
					t.Error(err)
				}
				return
			}
		}()
	}
	wg.Wait()

	e, _ := m.Get(ctx, key)
	if e.Value[0] != workers || e.Version != workers+1 {
		t.Errorf("final = %d@%d, want %d@%d", e.Value[0], e.Version, workers, workers+1)
	}
}
