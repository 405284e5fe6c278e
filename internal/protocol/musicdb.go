package protocol

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"smj-library/internal/model"
	"smj-library/internal/search"
)

// searchFields maps protocol tag names to search fields.
var searchFields = map[string]string{
	"album":       search.FieldAlbum,
	"albumartist": search.FieldAlbumArtist,
	"any":         search.FieldAny,
	"artist":      search.FieldArtist,
	"comment":     search.FieldComment,
	"composer":    search.FieldComposer,
	"date":        search.FieldDate,
	"file":        search.FieldURI,
	"filename":    search.FieldURI,
	"genre":       search.FieldGenre,
	"performer":   search.FieldPerformer,
	"title":       search.FieldTrackName,
	"track":       search.FieldTrackNo,
}

// listFields maps the tag names list accepts to the tag written back.
var listFields = map[string]string{
	"album":       "Album",
	"albumartist": "AlbumArtist",
	"artist":      "Artist",
	"composer":    "Composer",
	"date":        "Date",
	"genre":       "Genre",
	"performer":   "Performer",
}

// errMissingValue marks a tag without a value.
var errMissingValue = errors.New("tag without value")

func parseQuery(command string, args []string) (search.Query, error) {
	q := search.Query{}
	for i := 0; i < len(args); i += 2 {
		field, ok := searchFields[strings.ToLower(args[i])]
		if !ok {
			return nil, &ArgError{Command: command, Message: "incorrect arguments"}
		}
		if i+1 == len(args) {
			return nil, errMissingValue
		}
		if value := args[i+1]; strings.TrimSpace(value) != "" {
			q[field] = append(q[field], value)
		}
	}
	return q, nil
}

// Count answers "count TAG VALUE ..." with the number of matching songs and
// their total play time in seconds.
func Count(ctx context.Context, pc Context, args []string) (Answer, error) {
	q, err := parseQuery("count", args)
	if errors.Is(err, errMissingValue) {
		return nil, &ArgError{Command: "count", Message: "incorrect arguments"}
	}
	if err != nil {
		return nil, err
	}
	res, err := pc.FindExact(ctx, q)
	if err != nil {
		return nil, err
	}
	playtime := 0
	for _, t := range res.Tracks {
		playtime += t.Length
	}
	return Answer{
		{"songs", strconv.Itoa(len(res.Tracks))},
		{"playtime", strconv.Itoa(playtime / 1000)},
	}, nil
}

// Find answers "find TAG VALUE ..." with every exactly matching track. A tag
// without a value produces no output.
func Find(ctx context.Context, pc Context, args []string) (Answer, error) {
	q, err := parseQuery("find", args)
	if errors.Is(err, errMissingValue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res, err := pc.FindExact(ctx, q)
	if err != nil {
		return nil, err
	}
	out := Answer{}
	for _, t := range res.Tracks {
		out = append(out, TrackPairs(t)...)
	}
	return out, nil
}

// List answers "list TYPE [TAG VALUE ...]" with the sorted distinct values
// of TYPE among matching tracks. The legacy form "list album ARTIST" filters
// by artist.
func List(ctx context.Context, pc Context, args []string) (Answer, error) {
	if len(args) == 0 {
		return nil, &ArgError{Command: "list", Message: "incorrect arguments"}
	}
	field := strings.ToLower(args[0])
	name, ok := listFields[field]
	if !ok {
		return nil, &ArgError{Command: "list", Message: "incorrect arguments"}
	}

	params := args[1:]
	q := search.Query{}
	if len(params) == 1 {
		if field != "album" {
			return nil, &ArgError{Command: "list", Message: `should be "Album" for 3 arguments`}
		}
		if strings.TrimSpace(params[0]) != "" {
			q[search.FieldArtist] = []string{params[0]}
		}
	} else {
		var err error
		q, err = parseQuery("list", params)
		if errors.Is(err, errMissingValue) {
			return nil, nil
		}
		var argErr *ArgError
		if errors.As(err, &argErr) {
			return nil, &ArgError{Command: "list", Message: "not able to parse args"}
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := pc.FindExact(ctx, q)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, t := range res.Tracks {
		for _, v := range distinctValues(t, field) {
			if v != "" {
				seen[v] = struct{}{}
			}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	out := make(Answer, 0, len(values))
	for _, v := range values {
		out = append(out, Pair{name, v})
	}
	return out, nil
}

func distinctValues(t model.Track, field string) []string {
	switch field {
	case "album":
		return []string{t.AlbumName()}
	case "albumartist":
		return artistNames(t.AlbumArtists())
	case "artist":
		return artistNames(t.Artists)
	case "composer":
		return artistNames(t.Composers)
	case "performer":
		return artistNames(t.Performers)
	case "date":
		return []string{t.Date}
	case "genre":
		return []string{t.Genre}
	}
	return nil
}

func artistNames(artists []model.Artist) []string {
	out := make([]string, 0, len(artists))
	for _, a := range artists {
		out = append(out, a.Name)
	}
	return out
}
