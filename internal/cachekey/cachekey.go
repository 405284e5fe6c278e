// Package cachekey builds the canonical keys under which command answers
// are cached.
package cachekey

import (
	"strconv"
	"strings"
)

// DefaultFolded are the argument names whose values compare case-insensitively.
var DefaultFolded = []string{"artist", "album", "albumartist"}

// Normalizer maps a command and its arguments to a cache key. The same
// Normalizer must be used to populate and to look up a cache.
type Normalizer struct {
	folded map[string]struct{}
}

// NewNormalizer returns a Normalizer folding the values of the given
// argument names, or of DefaultFolded when none are given.
func NewNormalizer(names ...string) *Normalizer {
	if len(names) == 0 {
		names = DefaultFolded
	}
	n := &Normalizer{folded: make(map[string]struct{}, len(names))}
	for _, name := range names {
		n.folded[strings.ToLower(name)] = struct{}{}
	}
	return n
}

// Key returns the quoted tuple ("command" "arg" ...). Arguments are read as
// name/value pairs; for list the first argument is the listed type, so pairs
// start after it. Values following a folded name are lower-cased.
func (n *Normalizer) Key(command string, args []string) string {
	start := 0
	if command == "list" {
		start = 1
	}

	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(strconv.Quote(command))
	for i, arg := range args {
		if i > start && (i-start)%2 == 1 && n.folds(args[i-1]) {
			arg = strings.ToLower(arg)
		}
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(arg))
	}
	b.WriteByte(')')
	return b.String()
}

func (n *Normalizer) folds(name string) bool {
	_, ok := n.folded[strings.ToLower(name)]
	return ok
}
