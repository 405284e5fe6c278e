// Package store provides the persisted key/value layout of a library: one
// file holding four named buckets, mutated inside a single session
// transaction that is committed on flush.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Bucket names. Every store holds exactly these four.
const (
	Tracks      = "tracks"
	BrowseCache = "browse_cache"
	SearchCache = "search_cache"
	AnswerCache = "answer_cache"
)

// Buckets lists every bucket a store must provide.
var Buckets = []string{Tracks, BrowseCache, SearchCache, AnswerCache}

var (
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrTxDone        = errors.New("transaction already committed or rolled back")
	ErrUnknownStore  = errors.New("unknown store backend")
)

// Store is the interface that any backend must implement.
type Store interface {
	// Begin starts the session transaction. All reads and writes go through
	// the returned Tx until it is committed or rolled back.
	Begin(ctx context.Context) (Tx, error)

	// Compact reclaims space. It must not be called while a Tx is open.
	Compact(ctx context.Context) error

	// Close cleans up resources.
	Close() error

	// Destroy closes the store and removes its backing file.
	Destroy() error

	// Path returns the backing file, or "" for in-memory stores.
	Path() string
}

// Tx is an open session transaction.
type Tx interface {
	Bucket(name string) Bucket
	Commit() error
	Rollback() error
}

// Bucket is an ordered key/value mapping. Values are opaque encoded bytes;
// callers must not retain or mutate slices passed to or returned from it.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context) (int, error)

	// Scan calls fn for every entry in ascending key order. Returning an
	// error from fn stops the scan and is returned as is.
	Scan(ctx context.Context, fn func(key string, value []byte) error) error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the named backend and initializes it at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		s := &SQLiteStore{}
		if err := s.Initialize(path); err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, backend)
	}
}

func validBucket(name string) bool {
	for _, b := range Buckets {
		if b == name {
			return true
		}
	}
	return false
}

// errBucket is returned for unknown bucket names so misuse surfaces on the
// first call instead of as a nil dereference.
type errBucket struct{ err error }

func (b errBucket) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b errBucket) Put(context.Context, string, []byte) error        { return b.err }
func (b errBucket) Delete(context.Context, string) (bool, error)     { return false, b.err }
func (b errBucket) Has(context.Context, string) (bool, error)        { return false, b.err }
func (b errBucket) Count(context.Context) (int, error)               { return 0, b.err }
func (b errBucket) Scan(context.Context, func(string, []byte) error) error {
	return b.err
}

func unknownBucket(name string) Bucket {
	return errBucket{err: fmt.Errorf("%w: %q", ErrUnknownBucket, name)}
}
