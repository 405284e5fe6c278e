package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"smj-library/internal/model"
)

// TrackPairs renders a track the way MPD lists songs.
func TrackPairs(t model.Track) Answer {
	out := Answer{
		{"file", t.URI},
		{"Time", strconv.Itoa(t.Length / 1000)},
		{"Artist", joinNames(t.Artists)},
		{"Title", t.Name},
		{"Album", t.AlbumName()},
	}
	if t.Date != "" {
		out = append(out, Pair{"Date", t.Date})
	}
	if t.Album != nil && t.Album.NumTracks > 0 {
		out = append(out, Pair{"Track", fmt.Sprintf("%d/%d", t.TrackNo, t.Album.NumTracks)})
	} else {
		out = append(out, Pair{"Track", strconv.Itoa(t.TrackNo)})
	}
	if t.Album != nil && t.Album.URI != "" {
		out = append(out, Pair{"X-AlbumUri", t.Album.URI})
	}
	if len(t.AlbumArtists()) > 0 {
		out = append(out, Pair{"AlbumArtist", joinNames(t.AlbumArtists())})
	}
	if len(t.Composers) > 0 {
		out = append(out, Pair{"Composer", joinNames(t.Composers)})
	}
	if len(t.Performers) > 0 {
		out = append(out, Pair{"Performer", joinNames(t.Performers)})
	}
	if t.Genre != "" {
		out = append(out, Pair{"Genre", t.Genre})
	}
	if t.DiscNo != 0 {
		out = append(out, Pair{"Disc", strconv.Itoa(t.DiscNo)})
	}
	if t.LastModified != 0 {
		out = append(out, Pair{"Last-Modified", time.UnixMilli(t.LastModified).UTC().Format(time.RFC3339)})
	}
	if t.Comment != "" {
		out = append(out, Pair{"Comment", t.Comment})
	}
	return out
}

func joinNames(artists []model.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ";")
}

// String renders the answer as "Key: Value" lines.
func (a Answer) String() string {
	var b strings.Builder
	for _, p := range a {
		b.WriteString(p.Key)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}
	return b.String()
}
