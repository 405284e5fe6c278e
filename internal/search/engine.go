package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"smj-library/internal/model"
)

// Engine indexes a full track collection for querying.
type Engine interface {
	Index(ctx context.Context, tracks []model.Track) (Snapshot, error)
}

// Snapshot answers queries against the collection it was built from.
type Snapshot interface {
	Find(ctx context.Context, q Query, exact bool) (Result, error)
	Close() error
}

// Engine names accepted by NewEngine.
const (
	EngineMatch = "match"
	EngineBleve = "bleve"
)

// NewEngine returns the named engine.
func NewEngine(name string) (Engine, error) {
	switch name {
	case EngineMatch, "":
		return MatchEngine{}, nil
	case EngineBleve:
		return BleveEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown search engine %q", name)
	}
}

// MatchEngine filters tracks in memory by walking them in order.
type MatchEngine struct{}

func (MatchEngine) Index(_ context.Context, tracks []model.Track) (Snapshot, error) {
	return &matchSnapshot{tracks: tracks}, nil
}

type matchSnapshot struct {
	tracks []model.Track
}

func (s *matchSnapshot) Close() error { return nil }

func (s *matchSnapshot) Find(_ context.Context, q Query, exact bool) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	out := make([]model.Track, 0)
	for _, t := range s.tracks {
		if Matches(t, q, exact) {
			out = append(out, t.Clone())
		}
	}
	return NewResult(q, out), nil
}

// Matches reports whether t satisfies every value of every field of q.
// Empty track fields never match.
func Matches(t model.Track, q Query, exact bool) bool {
	for field, values := range q {
		for _, value := range values {
			var ok bool
			if exact {
				ok = matchExact(t, field, strings.TrimSpace(value))
			} else {
				ok = matchSubstring(t, field, strings.ToLower(strings.TrimSpace(value)))
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

func matchExact(t model.Track, field, q string) bool {
	eq := func(s string) bool { return s != "" && s == q }
	switch field {
	case FieldURI:
		return eq(t.URI)
	case FieldTrackName:
		return eq(t.Name)
	case FieldAlbum:
		return eq(t.AlbumName())
	case FieldArtist:
		return anyArtist(t.Artists, eq)
	case FieldAlbumArtist:
		return anyArtist(t.AlbumArtists(), eq)
	case FieldComposer:
		return anyArtist(t.Composers, eq)
	case FieldPerformer:
		return anyArtist(t.Performers, eq)
	case FieldTrackNo:
		return matchTrackNo(t, q)
	case FieldGenre:
		return eq(t.Genre)
	case FieldDate:
		return eq(t.Date)
	case FieldComment:
		return eq(t.Comment)
	case FieldAny:
		for _, f := range anyFields {
			if matchExact(t, f, q) {
				return true
			}
		}
	}
	return false
}

func matchSubstring(t model.Track, field, q string) bool {
	in := func(s string) bool { return s != "" && strings.Contains(strings.ToLower(s), q) }
	switch field {
	case FieldURI:
		return in(t.URI)
	case FieldTrackName:
		return in(t.Name)
	case FieldAlbum:
		return in(t.AlbumName())
	case FieldArtist:
		return anyArtist(t.Artists, in)
	case FieldAlbumArtist:
		return anyArtist(t.AlbumArtists(), in)
	case FieldComposer:
		return anyArtist(t.Composers, in)
	case FieldPerformer:
		return anyArtist(t.Performers, in)
	case FieldTrackNo:
		return matchTrackNo(t, q)
	case FieldGenre:
		return in(t.Genre)
	case FieldDate:
		return t.Date != "" && strings.HasPrefix(t.Date, q)
	case FieldComment:
		return in(t.Comment)
	case FieldAny:
		for _, f := range anyFields {
			if matchSubstring(t, f, q) {
				return true
			}
		}
	}
	return false
}

// anyFields are the fields searched by FieldAny. Track numbers are compared
// as integers and never match a free-text value.
var anyFields = []string{
	FieldURI, FieldTrackName, FieldAlbum, FieldArtist, FieldAlbumArtist,
	FieldComposer, FieldPerformer, FieldGenre, FieldDate, FieldComment,
}

func matchTrackNo(t model.Track, q string) bool {
	n, err := strconv.Atoi(q)
	if err != nil {
		return false
	}
	return t.TrackNo != 0 && t.TrackNo == n
}

func anyArtist(artists []model.Artist, match func(string) bool) bool {
	for _, a := range artists {
		if match(a.Name) {
			return true
		}
	}
	return false
}
