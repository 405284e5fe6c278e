//go:build !cgo

package store

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("SQLite backend is not available in non-CGO builds. Please use --store memory or rebuild with CGO_ENABLED=1")

type SQLiteStore struct{}

func (s *SQLiteStore) Initialize(path string) error { return errNoCGO }

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) { return nil, errNoCGO }

func (s *SQLiteStore) Compact(ctx context.Context) error { return nil }

func (s *SQLiteStore) Close() error { return nil }

func (s *SQLiteStore) Destroy() error { return nil }

func (s *SQLiteStore) Path() string { return "" }
