package search

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"smj-library/internal/model"
)

// lowerKeyword indexes a whole field value as one lower-cased term, which
// turns substring search into a regexp over terms.
const lowerKeyword = "lowercase_keyword"

// lowerSuffix names the lower-cased twin of every indexed field.
const lowerSuffix = "_lc"

var indexedFields = []string{
	FieldURI, FieldTrackName, FieldAlbum, FieldArtist, FieldAlbumArtist,
	FieldComposer, FieldPerformer, FieldTrackNo, FieldGenre, FieldDate, FieldComment,
}

// BleveEngine builds an in-memory Bleve index per snapshot. It returns the
// same tracks as MatchEngine, in the same order.
type BleveEngine struct{}

func (BleveEngine) Index(ctx context.Context, tracks []model.Track) (Snapshot, error) {
	im, err := newTrackMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, err
	}

	batch := index.NewBatch()
	for i, t := range tracks {
		// Use the position as ID so hits map straight back to tracks
		if err := batch.Index(strconv.Itoa(i), trackDocument(t)); err != nil {
			index.Close()
			return nil, fmt.Errorf("index %s: %w", t.URI, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, err
	}
	return &bleveSnapshot{index: index, tracks: tracks}, nil
}

func newTrackMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(lowerKeyword, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range indexedFields {
		exact := bleve.NewKeywordFieldMapping()
		exact.Store = false
		exact.IncludeInAll = false
		doc.AddFieldMappingsAt(f, exact)

		lower := bleve.NewTextFieldMapping()
		lower.Analyzer = lowerKeyword
		lower.Store = false
		lower.IncludeInAll = false
		doc.AddFieldMappingsAt(f+lowerSuffix, lower)
	}
	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	return im, nil
}

func trackDocument(t model.Track) map[string]interface{} {
	doc := make(map[string]interface{})
	set := func(field string, values ...string) {
		var nonEmpty []string
		for _, v := range values {
			if v != "" {
				nonEmpty = append(nonEmpty, v)
			}
		}
		if len(nonEmpty) == 0 {
			return
		}
		doc[field] = nonEmpty
		doc[field+lowerSuffix] = nonEmpty
	}
	names := func(artists []model.Artist) []string {
		out := make([]string, 0, len(artists))
		for _, a := range artists {
			out = append(out, a.Name)
		}
		return out
	}

	set(FieldURI, t.URI)
	set(FieldTrackName, t.Name)
	set(FieldAlbum, t.AlbumName())
	set(FieldArtist, names(t.Artists)...)
	set(FieldAlbumArtist, names(t.AlbumArtists())...)
	set(FieldComposer, names(t.Composers)...)
	set(FieldPerformer, names(t.Performers)...)
	if t.TrackNo != 0 {
		set(FieldTrackNo, strconv.Itoa(t.TrackNo))
	}
	set(FieldGenre, t.Genre)
	set(FieldDate, t.Date)
	set(FieldComment, t.Comment)
	return doc
}

type bleveSnapshot struct {
	index  bleve.Index
	tracks []model.Track
}

func (s *bleveSnapshot) Close() error {
	return s.index.Close()
}

func (s *bleveSnapshot) Find(ctx context.Context, q Query, exact bool) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	if len(s.tracks) == 0 {
		return NewResult(q, nil), nil
	}

	var clauses []bleveQuery.Query
	for _, field := range q.sortedFields() {
		for _, value := range q[field] {
			clauses = append(clauses, fieldQuery(field, strings.TrimSpace(value), exact))
		}
	}
	var root bleveQuery.Query = bleve.NewMatchAllQuery()
	if len(clauses) > 0 {
		root = bleve.NewConjunctionQuery(clauses...)
	}

	req := bleve.NewSearchRequestOptions(root, len(s.tracks), 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return Result{}, err
	}

	positions := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			return Result{}, fmt.Errorf("unexpected document id %q", hit.ID)
		}
		positions = append(positions, pos)
	}
	slices.Sort(positions)

	out := make([]model.Track, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.tracks[pos].Clone())
	}
	return NewResult(q, out), nil
}

func fieldQuery(field, value string, exact bool) bleveQuery.Query {
	switch field {
	case FieldAny:
		sub := make([]bleveQuery.Query, 0, len(anyFields))
		for _, f := range anyFields {
			sub = append(sub, fieldQuery(f, value, exact))
		}
		return bleve.NewDisjunctionQuery(sub...)
	case FieldTrackNo:
		n, err := strconv.Atoi(value)
		if err != nil || n == 0 {
			return bleve.NewMatchNoneQuery()
		}
		tq := bleve.NewTermQuery(strconv.Itoa(n))
		tq.SetField(FieldTrackNo)
		return tq
	}

	if exact {
		if value == "" {
			return bleve.NewMatchNoneQuery()
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		return tq
	}

	lower := strings.ToLower(value)
	if field == FieldDate {
		pq := bleve.NewPrefixQuery(lower)
		pq.SetField(field + lowerSuffix)
		return pq
	}
	rq := bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(lower) + ".*")
	rq.SetField(field + lowerSuffix)
	return rq
}
