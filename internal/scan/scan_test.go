package scan

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dhowden/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smj-library/internal/library"
	"smj-library/internal/model"
	"smj-library/internal/store"
	"smj-library/internal/translator"
)

var exts = []string{".mp3", ".flac"}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func titleFromName(path string) (model.Track, error) {
	return model.Track{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}, nil
}

func openLibrary(t *testing.T) *library.Library {
	t.Helper()
	l, err := library.Open(library.Options{DataDir: t.TempDir(), Backend: store.BackendMemory})
	require.NoError(t, err)
	_, err = l.Load(context.Background())
	require.NoError(t, err)
	return l
}

func uris(t *testing.T, l *library.Library) []string {
	t.Helper()
	var out []string
	for track, err := range l.Begin(context.Background()) {
		require.NoError(t, err)
		out = append(out, track.URI)
	}
	return out
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	touch(t, root, "a/x.mp3")
	touch(t, root, "a/y.flac")
	touch(t, root, "b/Z.MP3")
	touch(t, root, "b/notes.txt")
	touch(t, root, "cover.jpg")

	l := openLibrary(t)
	opts := Options{MediaDir: root, Extensions: exts, Workers: 2, Parse: titleFromName}

	sum, err := Scan(ctx, l, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Added)
	assert.Zero(t, sum.Unchanged)
	assert.Equal(t, []string{
		translator.PathToTrackURI("a/x.mp3"),
		translator.PathToTrackURI("a/y.flac"),
		translator.PathToTrackURI("b/Z.MP3"),
	}, uris(t, l))

	track, ok, err := l.Lookup(ctx, translator.PathToTrackURI("a/x.mp3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", track.Name)
	assert.NotZero(t, track.LastModified)

	sum, err = Scan(ctx, l, opts)
	require.NoError(t, err)
	assert.Zero(t, sum.Added)
	assert.Equal(t, 3, sum.Unchanged)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a/y.flac"), later, later))
	require.NoError(t, os.Remove(filepath.Join(root, "b/Z.MP3")))

	sum, err = Scan(ctx, l, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Removed)
	assert.Len(t, uris(t, l), 2)
}

func TestScanCountsParseFailures(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "good.mp3")
	touch(t, root, "bad.mp3")

	l := openLibrary(t)
	parse := func(path string) (model.Track, error) {
		if filepath.Base(path) == "bad.mp3" {
			return model.Track{}, tag.ErrNoTagsFound
		}
		return titleFromName(path)
	}
	sum, err := Scan(context.Background(), l, Options{MediaDir: root, Extensions: exts, Parse: parse})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{translator.PathToTrackURI("good.mp3")}, uris(t, l))
}

func TestScanMissingDir(t *testing.T) {
	l := openLibrary(t)
	_, err := Scan(context.Background(), l, Options{MediaDir: filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type brokenLibrary struct{}

func (brokenLibrary) Begin(context.Context) iter.Seq2[model.Track, error] {
	return func(func(model.Track, error) bool) {}
}

func (brokenLibrary) Add(context.Context, model.Track) error { return errors.New("read-only") }

func (brokenLibrary) Remove(context.Context, string) (bool, error) { return false, nil }

func TestScanStopsOnWriteError(t *testing.T) {
	root := t.TempDir()
	for i := range 50 {
		touch(t, root, filepath.Join("d", strings.Repeat("t", i+1)+".mp3"))
	}
	_, err := Scan(context.Background(), brokenLibrary{}, Options{
		MediaDir: root, Extensions: exts, Workers: 4, Parse: titleFromName,
	})
	assert.ErrorContains(t, err, "read-only")
}

func TestWalkSkipsOtherFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "x.FLAC")
	touch(t, root, "x.wav")
	touch(t, root, "sub/y.mp3")

	var got []string
	err := walk(context.Background(), root, exts, func(f file) error {
		got = append(got, f.uri)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{
		translator.PathToTrackURI("sub/y.mp3"),
		translator.PathToTrackURI("x.FLAC"),
	}, got)
}

type fakeMetadata struct {
	tag.Metadata
	title, album, artist, albumArtist, composer, genre, comment string
	year, track, tracks, disc, discs                          int
}

func (m fakeMetadata) Title() string       { return m.title }
func (m fakeMetadata) Album() string       { return m.album }
func (m fakeMetadata) Artist() string      { return m.artist }
func (m fakeMetadata) AlbumArtist() string { return m.albumArtist }
func (m fakeMetadata) Composer() string    { return m.composer }
func (m fakeMetadata) Genre() string       { return m.genre }
func (m fakeMetadata) Comment() string     { return m.comment }
func (m fakeMetadata) Year() int           { return m.year }
func (m fakeMetadata) Track() (int, int)   { return m.track, m.tracks }
func (m fakeMetadata) Disc() (int, int)    { return m.disc, m.discs }

func TestFromMetadata(t *testing.T) {
	got := fromMetadata(fakeMetadata{
		title:       "Dancing Queen",
		album:       "Arrival",
		artist:      "ABBA",
		albumArtist: "ABBA",
		composer:    "Benny Andersson; Björn Ulvaeus",
		genre:       " Pop ",
		year:        1976,
		track:       2,
		tracks:      10,
		disc:        1,
		discs:       1,
	}, "/music/abba/02.flac")

	assert.Equal(t, model.Track{
		Name:      "Dancing Queen",
		Artists:   []model.Artist{{Name: "ABBA"}},
		Composers: []model.Artist{{Name: "Benny Andersson"}, {Name: "Björn Ulvaeus"}},
		Genre:     "Pop",
		TrackNo:   2,
		DiscNo:    1,
		Date:      "1976",
		Album: &model.Album{
			Name:      "Arrival",
			Artists:   []model.Artist{{Name: "ABBA"}},
			NumTracks: 10,
			NumDiscs:  1,
			Date:      "1976",
		},
	}, got)

	bare := fromMetadata(fakeMetadata{}, "/music/loose track.ogg")
	assert.Equal(t, model.Track{Name: "loose track"}, bare)
}
