package model

// RefType tells a browse reference apart as a directory or a track.
type RefType string

const (
	RefDirectory RefType = "directory"
	RefTrack     RefType = "track"
)

// Ref is a lightweight pointer to a track or directory, used by the browse
// tree. It never carries track metadata beyond the display name.
type Ref struct {
	Type RefType `json:"type"`
	URI  string  `json:"uri"`
	Name string  `json:"name"`
}

// TrackRef builds a track reference.
func TrackRef(uri, name string) Ref {
	return Ref{Type: RefTrack, URI: uri, Name: name}
}

// DirectoryRef builds a directory reference.
func DirectoryRef(uri, name string) Ref {
	return Ref{Type: RefDirectory, URI: uri, Name: name}
}
