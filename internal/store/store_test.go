package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore exercises the Store contract against any backend.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("commit makes writes visible", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		b := tx.Bucket(Tracks)
		require.NoError(t, b.Put(ctx, "b", []byte("2")))
		require.NoError(t, b.Put(ctx, "a", []byte("1")))
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		v, ok, err := tx.Bucket(Tracks).Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)

		n, err := tx.Bucket(Tracks).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Bucket(SearchCache).Put(ctx, "k", []byte("v")))
		has, err := tx.Bucket(SearchCache).Has(ctx, "k")
		require.NoError(t, err)
		assert.True(t, has, "writes are visible inside the transaction")
		require.NoError(t, tx.Rollback())

		tx, err = s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		has, err = tx.Bucket(SearchCache).Has(ctx, "k")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("buckets are independent", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		require.NoError(t, tx.Bucket(BrowseCache).Put(ctx, "a", []byte("dir")))
		v, _, err := tx.Bucket(Tracks).Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
	})

	t.Run("delete reports presence", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		ok, err := tx.Bucket(Tracks).Delete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.Bucket(Tracks).Delete(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("scan is ordered and spans pages", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		b := tx.Bucket(AnswerCache)
		for i := 600; i > 0; i-- {
			require.NoError(t, b.Put(ctx, fmt.Sprintf("k%04d", i), []byte{byte(i)}))
		}
		var keys []string
		require.NoError(t, b.Scan(ctx, func(key string, _ []byte) error {
			keys = append(keys, key)
			return nil
		}))
		require.Len(t, keys, 600)
		assert.Equal(t, "k0001", keys[0])
		assert.Equal(t, "k0600", keys[599])
		assert.IsIncreasing(t, keys)
	})

	t.Run("scan stops on callback error", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		stop := errors.New("stop")
		seen := 0
		err = tx.Bucket(Tracks).Scan(ctx, func(string, []byte) error {
			seen++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, seen)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		_, _, err = tx.Bucket("nope").Get(ctx, "a")
		assert.ErrorIs(t, err, ErrUnknownBucket)
	})

	t.Run("finished transaction", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
		assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreDestroy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Bucket(Tracks).Put(ctx, "a", []byte("1")))
	require.NoError(t, tx.Commit())

	require.NoError(t, s.Destroy())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.Bucket(Tracks).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.ErrorIs(t, err, ErrUnknownStore)
}
