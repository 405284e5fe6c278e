// Package translator converts between media paths and library URIs.
//
// Track URIs have the form "local:track:<quoted relative path>" and directory
// URIs "local:directory:<quoted relative path>". Quoting escapes every byte
// outside [A-Za-z0-9_.~/-] as %XX so that URIs stay stable across platforms.
package translator

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	TrackPrefix     = "local:track:"
	DirectoryPrefix = "local:directory:"
	// RootDirectoryURI is the browse root as seen by clients.
	RootDirectoryURI = "local:directory"
)

// ErrNotTrackURI is returned when a URI is not a local track URI.
var ErrNotTrackURI = errors.New("not a local track uri")

// PathToTrackURI turns a path relative to the media dir into a track URI.
func PathToTrackURI(relpath string) string {
	return TrackPrefix + quote(filepath.ToSlash(relpath))
}

// PathToDirectoryURI turns a relative directory path into a directory URI.
func PathToDirectoryURI(relpath string) string {
	return DirectoryPrefix + quote(filepath.ToSlash(relpath))
}

// TrackURIToPath returns the slash-separated relative path of a track URI.
func TrackURIToPath(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, TrackPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotTrackURI, uri)
	}
	p, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("unquote %q: %w", uri, err)
	}
	return p, nil
}

// TrackURIToFile resolves a track URI against the media directory.
func TrackURIToFile(mediaDir, uri string) (string, error) {
	p, err := TrackURIToPath(uri)
	if err != nil {
		return "", err
	}
	return filepath.Join(mediaDir, filepath.FromSlash(path.Clean("/"+p))), nil
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func safe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}
