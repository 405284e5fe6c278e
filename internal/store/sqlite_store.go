//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// scanPage bounds how many rows Scan holds open at once, so fn can issue
// further queries on the same transaction.
const scanPage = 256

type SQLiteStore struct {
	db   *sql.DB
	path string
}

func (s *SQLiteStore) Initialize(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	// The session transaction pins the only connection; a second one would
	// just contend for the file lock.
	db.SetMaxOpenConns(1)

	for _, name := range Buckets {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		) WITHOUT ROWID;`, name)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("create %s: %w", name, err)
		}
	}
	s.db = db
	s.path = path
	return nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLiteStore) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	for _, p := range []string{s.path, s.path + "-journal", s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Compact(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	// The session outlives the caller's context; cancellation must not
	// silently roll it back.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Bucket(name string) Bucket {
	if !validBucket(name) {
		return unknownBucket(name)
	}
	return &sqliteBucket{tx: t.tx, table: name}
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

type sqliteBucket struct {
	tx    *sql.Tx
	table string
}

func (b *sqliteBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.tx.QueryRowContext(ctx, "SELECT value FROM "+b.table+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *sqliteBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.tx.ExecContext(ctx, "INSERT OR REPLACE INTO "+b.table+" (key, value) VALUES (?, ?)", key, value)
	return err
}

func (b *sqliteBucket) Delete(ctx context.Context, key string) (bool, error) {
	res, err := b.tx.ExecContext(ctx, "DELETE FROM "+b.table+" WHERE key = ?", key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *sqliteBucket) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := b.tx.QueryRowContext(ctx, "SELECT 1 FROM "+b.table+" WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (b *sqliteBucket) Count(ctx context.Context) (int, error) {
	var count int
	err := b.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+b.table).Scan(&count)
	return count, err
}

type row struct {
	key   string
	value []byte
}

func (b *sqliteBucket) Scan(ctx context.Context, fn func(key string, value []byte) error) error {
	after := ""
	first := true
	for {
		page, err := b.page(ctx, after, first)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r.key, r.value); err != nil {
				return err
			}
		}
		if len(page) < scanPage {
			return nil
		}
		after = page[len(page)-1].key
		first = false
	}
}

func (b *sqliteBucket) page(ctx context.Context, after string, first bool) ([]row, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if first {
		rows, err = b.tx.QueryContext(ctx, "SELECT key, value FROM "+b.table+" ORDER BY key LIMIT ?", scanPage)
	} else {
		rows, err = b.tx.QueryContext(ctx, "SELECT key, value FROM "+b.table+" WHERE key > ? ORDER BY key LIMIT ?", after, scanPage)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]row, 0, scanPage)
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.value); err != nil {
			return nil, err
		}
		page = append(page, r)
	}
	return page, rows.Err()
}
