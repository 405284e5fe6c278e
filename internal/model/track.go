// Package model holds the library's value types.
package model

// Artist is a performer or creator credited on a track or album.
type Artist struct {
	URI  string `json:"uri,omitempty"`
	Name string `json:"name"`
}

// Album groups tracks released together.
type Album struct {
	URI       string   `json:"uri,omitempty"`
	Name      string   `json:"name"`
	Artists   []Artist `json:"artists"`
	NumTracks int      `json:"num_tracks,omitempty"`
	NumDiscs  int      `json:"num_discs,omitempty"`
	Date      string   `json:"date,omitempty"`
}

// Track represents a single media file and its metadata. The URI is the
// primary key in the track store.
type Track struct {
	URI          string   `json:"uri"`
	Name         string   `json:"name"`
	Artists      []Artist `json:"artists"`
	Album        *Album   `json:"album"`
	Composers    []Artist `json:"composers"`
	Performers   []Artist `json:"performers"`
	Genre        string   `json:"genre,omitempty"`
	TrackNo      int      `json:"track_no,omitempty"`
	DiscNo       int      `json:"disc_no,omitempty"`
	Date         string   `json:"date,omitempty"`
	Length       int      `json:"length,omitempty"`
	Bitrate      int      `json:"bitrate,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	LastModified int64    `json:"last_modified,omitempty"`
}

// AlbumName returns the album name or "" when the track has no album.
func (t Track) AlbumName() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Name
}

// AlbumArtists returns the album's artists, if any.
func (t Track) AlbumArtists() []Artist {
	if t.Album == nil {
		return nil
	}
	return t.Album.Artists
}

// Clone returns a copy of t that shares no slices or pointers with it.
func (t Track) Clone() Track {
	c := t
	c.Artists = cloneArtists(t.Artists)
	c.Composers = cloneArtists(t.Composers)
	c.Performers = cloneArtists(t.Performers)
	if t.Album != nil {
		a := *t.Album
		a.Artists = cloneArtists(t.Album.Artists)
		c.Album = &a
	}
	return c
}

func cloneArtists(in []Artist) []Artist {
	if in == nil {
		return nil
	}
	out := make([]Artist, len(in))
	copy(out, in)
	return out
}
