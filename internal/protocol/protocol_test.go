package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smj-library/internal/model"
	"smj-library/internal/search"
)

type snapshotContext struct {
	snap    search.Snapshot
	queries []search.Query
}

func (c *snapshotContext) FindExact(ctx context.Context, q search.Query) (search.Result, error) {
	c.queries = append(c.queries, q)
	return c.snap.Find(ctx, q, true)
}

func newContext(t *testing.T) *snapshotContext {
	t.Helper()
	beatles := []model.Artist{{Name: "The Beatles"}}
	tracks := []model.Track{
		{
			URI: "local:track:abbey/01.mp3", Name: "Come Together", Artists: beatles,
			Album:   &model.Album{Name: "Abbey Road", Artists: beatles, NumTracks: 17},
			TrackNo: 1, Length: 259000, Date: "1969", Genre: "Rock",
		},
		{
			URI: "local:track:abbey/02.mp3", Name: "Something", Artists: beatles,
			Album:     &model.Album{Name: "Abbey Road", Artists: beatles, NumTracks: 17},
			Composers: []model.Artist{{Name: "George Harrison"}},
			TrackNo:   2, Length: 182500, Date: "1969", Genre: "Rock",
		},
		{
			URI: "local:track:help/01.mp3", Name: "Help!", Artists: beatles,
			Album:   &model.Album{Name: "Help!", Artists: beatles},
			TrackNo: 1, Length: 139000, Date: "1965",
		},
		{URI: "local:track:loose.ogg", Name: "Loose"},
	}
	snap, err := search.MatchEngine{}.Index(context.Background(), tracks)
	require.NoError(t, err)
	return &snapshotContext{snap: snap}
}

func TestCount(t *testing.T) {
	pc := newContext(t)
	ans, err := Count(context.Background(), pc, []string{"album", "Abbey Road", "albumartist", "The Beatles"})
	require.NoError(t, err)
	assert.Equal(t, Answer{{"songs", "2"}, {"playtime", "441"}}, ans)

	ans, err = Count(context.Background(), pc, []string{"artist", "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, Answer{{"songs", "0"}, {"playtime", "0"}}, ans)

	_, err = Count(context.Background(), pc, []string{"artist"})
	var argErr *ArgError
	assert.ErrorAs(t, err, &argErr)
}

func TestFind(t *testing.T) {
	pc := newContext(t)
	ans, err := Find(context.Background(), pc, []string{"albumartist", "The Beatles", "album", "Abbey Road", "track", "01"})
	require.NoError(t, err)
	assert.Equal(t, Answer{
		{"file", "local:track:abbey/01.mp3"},
		{"Time", "259"},
		{"Artist", "The Beatles"},
		{"Title", "Come Together"},
		{"Album", "Abbey Road"},
		{"Date", "1969"},
		{"Track", "1/17"},
		{"AlbumArtist", "The Beatles"},
		{"Genre", "Rock"},
	}, ans)
	assert.Equal(t, search.Query{
		search.FieldAlbumArtist: {"The Beatles"},
		search.FieldAlbum:       {"Abbey Road"},
		search.FieldTrackNo:     {"01"},
	}, pc.queries[0])
}

func TestFindEdgeCases(t *testing.T) {
	pc := newContext(t)
	ctx := context.Background()

	ans, err := Find(ctx, pc, []string{"artist"})
	require.NoError(t, err)
	assert.Nil(t, ans, "tag without value produces no output")

	_, err = Find(ctx, pc, []string{"bogus", "x"})
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "find", argErr.Command)

	ans, err = Find(ctx, pc, []string{"Artist", "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, Answer{}, ans)

	// blank values are dropped from the query
	ans, err = Find(ctx, pc, []string{"title", "Loose", "artist", "  "})
	require.NoError(t, err)
	assert.Equal(t, "local:track:loose.ogg", ans[0].Value)
}

func TestList(t *testing.T) {
	pc := newContext(t)
	ctx := context.Background()
	tests := []struct {
		args []string
		want Answer
	}{
		{[]string{"album"}, Answer{{"Album", "Abbey Road"}, {"Album", "Help!"}}},
		{[]string{"Artist"}, Answer{{"Artist", "The Beatles"}}},
		{[]string{"albumartist"}, Answer{{"AlbumArtist", "The Beatles"}}},
		{[]string{"date"}, Answer{{"Date", "1965"}, {"Date", "1969"}}},
		{[]string{"album", "artist", "The Beatles"}, Answer{{"Album", "Abbey Road"}, {"Album", "Help!"}}},
		{[]string{"album", "The Beatles"}, Answer{{"Album", "Abbey Road"}, {"Album", "Help!"}}},
		{[]string{"album", "Nobody"}, Answer{}},
		{[]string{"albumartist", "artist", "The Beatles", "album", "Help!"}, Answer{{"AlbumArtist", "The Beatles"}}},
		{[]string{"composer"}, Answer{{"Composer", "George Harrison"}}},
		{[]string{"album", "artist", "X", "genre"}, nil},
	}
	for _, tt := range tests {
		ans, err := List(ctx, pc, tt.args)
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, ans, "%v", tt.args)
	}
}

func TestListErrors(t *testing.T) {
	pc := newContext(t)
	ctx := context.Background()
	for _, args := range [][]string{nil, {"title"}, {"artist", "x"}, {"album", "bogus", "x"}} {
		_, err := List(ctx, pc, args)
		var argErr *ArgError
		assert.ErrorAs(t, err, &argErr, "%v", args)
	}
}

func TestRegistry(t *testing.T) {
	r := NewMusicDBRegistry()
	assert.Equal(t, []string{"count", "find", "list"}, r.Names())

	_, err := r.Call(context.Background(), newContext(t), "play", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	var calls int
	orig, err := r.Wrap("list", func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, pc Context, args []string) (Answer, error) {
			calls++
			return next.Serve(ctx, pc, args)
		})
	})
	require.NoError(t, err)

	pc := newContext(t)
	wrapped, err := r.Call(context.Background(), pc, "list", []string{"artist"})
	require.NoError(t, err)
	direct, err := orig.Serve(context.Background(), pc, []string{"artist"})
	require.NoError(t, err)
	assert.Equal(t, direct, wrapped)
	assert.Equal(t, 1, calls)

	_, err = r.Wrap("play", func(h Handler) Handler { return h })
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestHandlerErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	pc := failingContext{err: boom}
	for name, h := range map[string]HandlerFunc{"count": Count, "find": Find, "list": List} {
		_, err := h(context.Background(), pc, []string{"album", "x"})
		assert.ErrorIs(t, err, boom, name)
	}
}

type failingContext struct{ err error }

func (f failingContext) FindExact(context.Context, search.Query) (search.Result, error) {
	return search.Result{}, f.err
}

func TestAnswerString(t *testing.T) {
	assert.Equal(t, "songs: 2\nplaytime: 10\n", Answer{{"songs", "2"}, {"playtime", "10"}}.String())
}
