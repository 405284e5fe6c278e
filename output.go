package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"smj-library/internal/library"
	"smj-library/internal/model"
)

const (
	unknownArtist = "unknown artist"
	unknownAlbum  = "unknown album"
)

func artistOf(t model.Track) string {
	if artists := t.AlbumArtists(); len(artists) > 0 && artists[0].Name != "" {
		return artists[0].Name
	}
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		return t.Artists[0].Name
	}
	return unknownArtist
}

func albumOf(t model.Track) string {
	if name := t.AlbumName(); name != "" {
		return name
	}
	return unknownAlbum
}

// jsonizer renders tracks as an artist -> album -> tracks hierarchy. With
// showURIs every track is an object carrying its URI, otherwise just the
// title.
func jsonizer(tracks []model.Track, indent int, showURIs bool) (string, error) {
	type albumMap map[string][]any
	type artistMap map[string]albumMap

	hierarchy := make(artistMap)
	for _, t := range tracks {
		artist, album := artistOf(t), albumOf(t)
		if _, ok := hierarchy[artist]; !ok {
			hierarchy[artist] = make(albumMap)
		}
		var entry any = t.Name
		if showURIs {
			entry = map[string]string{"title": t.Name, "uri": t.URI}
		}
		hierarchy[artist][album] = append(hierarchy[artist][album], entry)
	}

	var b []byte
	var err error
	if indent > 0 {
		b, err = json.MarshalIndent(hierarchy, "", strings.Repeat(" ", indent))
	} else {
		b, err = json.Marshal(hierarchy)
	}
	return string(b), err
}

// printTracks lists tracks numbered from 1, with a heading whenever the
// artist or album changes.
func printTracks(w io.Writer, tracks []model.Track) {
	if len(tracks) == 0 {
		return
	}
	width := int(math.Log10(float64(len(tracks)))) + 1
	var lastArtist, lastAlbum string
	for i, t := range tracks {
		artist, album := artistOf(t), albumOf(t)
		if i == 0 || artist != lastArtist {
			fmt.Fprintf(w, "\n %s\n%s\n", artist, strings.Repeat("=", len(artist)+1))
			fmt.Fprintf(w, "\n  %s\n   %s\n", album, strings.Repeat("-", len(album)))
		} else if album != lastAlbum {
			fmt.Fprintf(w, "\n  %s\n   %s\n", album, strings.Repeat("-", len(album)))
		}
		fmt.Fprintf(w, "    [ %*d ] %s\n", width, i+1, t.Name)
		lastArtist, lastAlbum = artist, album
	}
}

func printRefs(w io.Writer, refs []model.Ref) {
	for _, r := range refs {
		kind := "d"
		if r.Type == model.RefTrack {
			kind = "t"
		}
		fmt.Fprintf(w, "%s  %-40s  %s\n", kind, r.Name, r.URI)
	}
}

func printStats(w io.Writer, st library.Stats) {
	path := st.Path
	if path == "" {
		path = "(memory)"
	}
	rows := []struct {
		label string
		n     int
	}{
		{"Tracks", st.Tracks},
		{"Directories", st.Directories},
		{"Cached searches", st.SearchEntries},
		{"Cached answers", st.Answers},
	}
	fmt.Fprintf(w, "%-17s %s\n", "Library:", path)
	for _, r := range rows {
		fmt.Fprintf(w, "%-17s %s\n", r.label+":", humanize.Comma(int64(r.n)))
	}
	if st.Pending > 0 {
		fmt.Fprintf(w, "%-17s %s\n", "Pending:", humanize.Comma(int64(st.Pending)))
	}
}
