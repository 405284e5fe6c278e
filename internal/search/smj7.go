package search

import "strings"

// SyntaxGuide describes the SMJ7-style query syntax accepted by ParseSMJ7.
const SyntaxGuide = `SMJ7-style syntax

Terms are separated by commas. A prefix restricts a term to one field:

  !genre     genre
  @artist    artist
  #album     album
  $track     track name
  plain      any field

Every term must match. Example: "@beatles,#abbey road,something"`

// ParseSMJ7 turns an SMJ7-style input into a query. An empty input yields
// an empty query, which matches every track.
func ParseSMJ7(input string) Query {
	q := Query{}
	for _, word := range strings.Split(input, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		field := FieldAny
		switch word[0] {
		case '!':
			field = FieldGenre
		case '@':
			field = FieldArtist
		case '#':
			field = FieldAlbum
		case '$':
			field = FieldTrackName
		}
		if field != FieldAny {
			word = strings.TrimSpace(word[1:])
			if word == "" {
				continue
			}
		}
		q[field] = append(q[field], word)
	}
	return q
}
