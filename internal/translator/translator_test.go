package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathToTrackURI(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"Test.mp3", "local:track:Test.mp3"},
		{"a/b c/x.mp3", "local:track:a/b%20c/x.mp3"},
		{"Miðvikudags.mp3", "local:track:Mi%C3%B0vikudags.mp3"},
		{"rock&roll/01 - a+b.flac", "local:track:rock%26roll/01%20-%20a%2Bb.flac"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PathToTrackURI(tt.path), tt.path)
	}
}

func TestTrackURIRoundTrip(t *testing.T) {
	for _, p := range []string{"Test.mp3", "a/b c/x.mp3", "Miðvikudags.mp3", "x/a+b%.ogg"} {
		got, err := TrackURIToPath(PathToTrackURI(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestTrackURIToPathRejectsOtherSchemes(t *testing.T) {
	_, err := TrackURIToPath("local:directory:a")
	assert.ErrorIs(t, err, ErrNotTrackURI)

	_, err = TrackURIToPath("file:///a.mp3")
	assert.ErrorIs(t, err, ErrNotTrackURI)
}

func TestTrackURIToFileStaysInsideMediaDir(t *testing.T) {
	got, err := TrackURIToFile("/music", "local:track:../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/music/etc/passwd", got)
}

func TestPathToDirectoryURI(t *testing.T) {
	assert.Equal(t, "local:directory:a/b", PathToDirectoryURI("a/b"))
	assert.Equal(t, "local:directory:a%20b", PathToDirectoryURI("a b"))
}
