package searchcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smj-library/internal/model"
	"smj-library/internal/search"
	"smj-library/internal/store"
)

func newCache(t *testing.T, level int) *Cache {
	t.Helper()
	tx, err := store.NewMemoryStore().Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	codec, err := store.NewCodec(level)
	require.NoError(t, err)
	t.Cleanup(codec.Close)
	return New(tx.Bucket(store.SearchCache), codec)
}

func snapshot(t *testing.T, tracks ...model.Track) search.Snapshot {
	t.Helper()
	snap, err := search.MatchEngine{}.Index(context.Background(), tracks)
	require.NoError(t, err)
	return snap
}

var found = model.Track{
	URI:     "local:track:found.mp3",
	Name:    "Track",
	Artists: []model.Artist{{Name: "Found"}},
}

func TestKey(t *testing.T) {
	q := search.Query{"artist": {"A"}}
	assert.Equal(t, "artist=A 1", Key(q, true))
	assert.Equal(t, "artist=A 0", Key(q, false))
	assert.Equal(t, " 1", Key(search.Query{}, true))
}

func TestRefreshAndLookup(t *testing.T) {
	for _, level := range []int{0, 3} {
		ctx := context.Background()
		c := newCache(t, level)
		q := search.Query{search.FieldArtist: {"Found"}}

		_, ok, err := c.Lookup(ctx, q, true)
		require.NoError(t, err)
		assert.False(t, ok, "miss before refresh")

		require.NoError(t, c.Refresh(ctx, snapshot(t, found), q))

		res, ok, err := c.Lookup(ctx, q, true)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []model.Track{found}, res.Tracks)
		assert.Equal(t, "local:search?artist=Found", res.URI)

		res, ok, err = c.Lookup(ctx, q, false)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []model.Track{found}, res.Tracks)

		miss := search.Query{search.FieldArtist: {"Not found"}}
		require.NoError(t, c.Refresh(ctx, snapshot(t, found), miss))
		res, ok, err = c.Lookup(ctx, miss, true)
		require.NoError(t, err)
		require.True(t, ok, "an empty result is still a hit")
		assert.NotNil(t, res.Tracks)
		assert.Empty(t, res.Tracks)
	}
}

func TestRefreshReplaces(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 0)
	q := search.Query{}

	require.NoError(t, c.Refresh(ctx, snapshot(t, found), q))
	require.NoError(t, c.Refresh(ctx, snapshot(t), q))

	res, ok, err := c.Lookup(ctx, q, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, res.Tracks)
}

func TestLookupReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 0)
	q := search.Query{}
	require.NoError(t, c.Refresh(ctx, snapshot(t, found), q))

	res, _, err := c.Lookup(ctx, q, true)
	require.NoError(t, err)
	res.Tracks[0].Artists[0].Name = "changed"

	again, _, err := c.Lookup(ctx, q, true)
	require.NoError(t, err)
	assert.Equal(t, "Found", again.Tracks[0].Artists[0].Name)
	assert.Equal(t, "Found", found.Artists[0].Name)
}

func TestRefreshRejectsInvalidQuery(t *testing.T) {
	c := newCache(t, 0)
	err := c.Refresh(context.Background(), snapshot(t, found), search.Query{"bogus": {"x"}})
	assert.ErrorIs(t, err, search.ErrInvalidField)
}
