// Package search finds tracks matching a field query, either exactly or by
// case-insensitive substring.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"smj-library/internal/model"
)

// Query fields.
const (
	FieldURI         = "uri"
	FieldTrackName   = "track_name"
	FieldAlbum       = "album"
	FieldArtist      = "artist"
	FieldAlbumArtist = "albumartist"
	FieldComposer    = "composer"
	FieldPerformer   = "performer"
	FieldTrackNo     = "track_no"
	FieldGenre       = "genre"
	FieldDate        = "date"
	FieldComment     = "comment"
	FieldAny         = "any"
)

var fields = map[string]bool{
	FieldURI: true, FieldTrackName: true, FieldAlbum: true, FieldArtist: true,
	FieldAlbumArtist: true, FieldComposer: true, FieldPerformer: true,
	FieldTrackNo: true, FieldGenre: true, FieldDate: true, FieldComment: true,
	FieldAny: true,
}

// ResultPrefix starts every result URI.
const ResultPrefix = "local:search?"

var ErrInvalidField = errors.New("invalid search field")

// Query maps a field to the values a track must match. Every value of every
// field must match.
type Query map[string][]string

// Validate reports the first unknown field.
func (q Query) Validate() error {
	for _, f := range q.sortedFields() {
		if !fields[f] {
			return fmt.Errorf("%w: %s", ErrInvalidField, f)
		}
	}
	return nil
}

// String is the canonical descriptor of q: fields sorted, values in order,
// URL encoded. Equal queries always produce equal descriptors.
func (q Query) String() string {
	v := url.Values{}
	for field, values := range q {
		v[field] = values
	}
	return v.Encode()
}

func (q Query) sortedFields() []string {
	out := make([]string, 0, len(q))
	for f := range q {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Result is an ordered set of matching tracks.
type Result struct {
	URI    string        `json:"uri"`
	Tracks []model.Track `json:"tracks"`
}

// NewResult builds a result for q holding tracks.
func NewResult(q Query, tracks []model.Track) Result {
	if tracks == nil {
		tracks = []model.Track{}
	}
	return Result{URI: ResultPrefix + q.String(), Tracks: tracks}
}
