//go:build cgo

package library

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smj-library/internal/search"
	"smj-library/internal/store"
	"smj-library/internal/translator"
)

func TestSQLiteLibraryPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{DataDir: dir, Backend: store.BackendSQLite, CacheAnswers: true, CompressionLevel: 3}

	l, err := Open(opts)
	require.NoError(t, err)
	n, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, l.Add(ctx, newTrack("abba/arrival/01.flac", "Dancing Queen", "ABBA", "Arrival")))
	require.NoError(t, l.Close(ctx))

	l, err = Open(opts)
	require.NoError(t, err)
	n, err = l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	root, err := l.Browse(ctx, translator.RootDirectoryURI)
	require.NoError(t, err)
	assert.Equal(t, []string{"abba"}, refNames(root))

	_, hit, err := l.searchCache().Lookup(ctx, search.Query{search.FieldArtist: {"ABBA"}}, true)
	require.NoError(t, err)
	assert.True(t, hit)

	ok, err := l.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	n, err = l.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(l.Path())
	assert.NoError(t, err, "clear starts over with a fresh file")
	require.NoError(t, l.Close(ctx))
}
