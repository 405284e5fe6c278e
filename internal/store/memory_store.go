package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps every bucket in process memory. Transactions work on a
// private copy of the committed state which replaces it on Commit.
type MemoryStore struct {
	mu        sync.Mutex
	committed map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{committed: emptyBuckets()}
}

func emptyBuckets() map[string]map[string][]byte {
	m := make(map[string]map[string][]byte, len(Buckets))
	for _, name := range Buckets {
		m[name] = make(map[string][]byte)
	}
	return m
}

func (s *MemoryStore) Path() string { return "" }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Compact(context.Context) error { return nil }

func (s *MemoryStore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = emptyBuckets()
	return nil
}

func (s *MemoryStore) Begin(context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Values are never mutated in place, so copying the maps is enough.
	work := make(map[string]map[string][]byte, len(s.committed))
	for name, bucket := range s.committed {
		cp := make(map[string][]byte, len(bucket))
		for k, v := range bucket {
			cp[k] = v
		}
		work[name] = cp
	}
	return &memoryTx{store: s, work: work}, nil
}

type memoryTx struct {
	store *MemoryStore
	work  map[string]map[string][]byte
	done  bool
}

func (t *memoryTx) Bucket(name string) Bucket {
	if !validBucket(name) {
		return unknownBucket(name)
	}
	return &memoryBucket{tx: t, name: name}
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	t.store.committed = t.work
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.work = nil
	return nil
}

type memoryBucket struct {
	tx   *memoryTx
	name string
}

func (b *memoryBucket) data() (map[string][]byte, error) {
	if b.tx.done {
		return nil, ErrTxDone
	}
	return b.tx.work[b.name], nil
}

func (b *memoryBucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	m, err := b.data()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (b *memoryBucket) Put(_ context.Context, key string, value []byte) error {
	m, err := b.data()
	if err != nil {
		return err
	}
	m[key] = slices.Clone(value)
	return nil
}

func (b *memoryBucket) Delete(_ context.Context, key string) (bool, error) {
	m, err := b.data()
	if err != nil {
		return false, err
	}
	_, ok := m[key]
	delete(m, key)
	return ok, nil
}

func (b *memoryBucket) Has(_ context.Context, key string) (bool, error) {
	m, err := b.data()
	if err != nil {
		return false, err
	}
	_, ok := m[key]
	return ok, nil
}

func (b *memoryBucket) Count(context.Context) (int, error) {
	m, err := b.data()
	if err != nil {
		return 0, err
	}
	return len(m), nil
}

func (b *memoryBucket) Scan(ctx context.Context, fn func(key string, value []byte) error) error {
	m, err := b.data()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := m[k]
		if !ok {
			// Deleted by fn during the scan.
			continue
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
