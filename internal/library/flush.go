package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"smj-library/internal/answercache"
	"smj-library/internal/metrics"
	"smj-library/internal/model"
	"smj-library/internal/search"
	"smj-library/internal/store"
)

// Pair is an (artist, album) combination touched by a pending change.
// Either side may be empty.
type Pair struct {
	Artist string
	Album  string
}

// Workload returns the deduplicated pairs of a batch of changes in the
// order they are first seen. A track contributes one pair per distinct
// track or album artist, or a single pair with an empty artist when it has
// none.
func Workload(changes []Change) []Pair {
	seen := make(map[Pair]struct{})
	var out []Pair
	add := func(p Pair) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, c := range changes {
		album := c.Track.AlbumName()
		names := artistNames(c.Track)
		if len(names) == 0 {
			add(Pair{Album: album})
		}
		for _, name := range names {
			add(Pair{Artist: name, Album: album})
		}
	}
	return out
}

func artistNames(t model.Track) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, group := range [][]model.Artist{t.Artists, t.AlbumArtists()} {
		for _, a := range group {
			if _, ok := seen[a.Name]; ok {
				continue
			}
			seen[a.Name] = struct{}{}
			names = append(names, a.Name)
		}
	}
	return names
}

// command is a protocol command refreshed into the answer cache.
type command struct {
	name string
	args []string
}

func cmd(name string, args ...string) command {
	return command{name: name, args: args}
}

// shapes returns the searches and commands refreshed for one pair.
func (p Pair) shapes() ([]search.Query, []command) {
	var queries []search.Query
	var commands []command
	a, b := p.Artist, p.Album
	if a != "" {
		queries = append(queries,
			search.Query{search.FieldAlbumArtist: {a}},
			search.Query{search.FieldArtist: {a}},
		)
		commands = append(commands,
			cmd("list", "album", "artist", a),
			cmd("list", "album", "albumartist", a),
			cmd("find", "artist", a),
			cmd("find", "albumartist", a),
			// legacy form used by some clients
			cmd("list", "album", a),
		)
	}
	if b != "" {
		queries = append(queries, search.Query{search.FieldAlbum: {b}})
		commands = append(commands,
			cmd("list", "album", b),
			cmd("find", "album", b),
		)
	}
	if a != "" && b != "" {
		queries = append(queries,
			search.Query{search.FieldAlbum: {b}, search.FieldArtist: {a}},
			search.Query{search.FieldAlbum: {b}, search.FieldAlbumArtist: {a}},
		)
		commands = append(commands,
			cmd("find", "albumartist", a, "album", b),
			cmd("find", "album", b, "albumartist", a),
			cmd("find", "artist", a, "album", b),
			cmd("count", "albumartist", a, "album", b),
			cmd("count", "album", b, "albumartist", a),
			cmd("list", "albumartist", "artist", a, "album", b),
			cmd("count", "artist", a, "album", b),
			cmd("find", "albumartist", a, "album", b, "track", "1"),
			cmd("find", "albumartist", a, "album", b, "track", "01"),
		)
	}
	return queries, commands
}

// alwaysCommands are refreshed on every flush so full listings never go
// stale.
var alwaysCommands = []command{
	cmd("list", "artist"),
	cmd("list", "album"),
	cmd("list", "albumartist"),
}

// Flush applies the pending changes to the browse tree, refreshes the
// cache entries they affect and commits everything in one transaction. On
// failure nothing is committed, the pending changes are kept and replayed
// into a fresh transaction, and Flush returns false with the error. When
// the commit succeeds but no new transaction can be started, Flush returns
// true with the error and the library must be loaded again.
func (l *Library) Flush(ctx context.Context) (bool, error) {
	if err := l.loaded(); err != nil {
		return false, err
	}
	start := time.Now()
	workload := Workload(l.pending)

	err := l.refresh(ctx, workload)
	if err == nil {
		if err = l.tx.Commit(); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	}
	if err != nil {
		metrics.RecordFlush(len(workload), time.Since(start), false)
		l.logger.Error("flush failed", zap.Int("pending", len(l.pending)), zap.Error(err))
		if rerr := l.replay(ctx); rerr != nil {
			return false, errors.Join(err, rerr)
		}
		return false, err
	}

	changes := len(l.pending)
	l.pending = nil
	l.tx = nil
	if err := l.begin(ctx); err != nil {
		// Committed, but the session is gone until the next Load.
		l.discard()
		l.logger.Error("flushed library but could not start a new session", zap.Error(err))
		return true, fmt.Errorf("begin after commit: %w", err)
	}
	n, err := l.tx.Bucket(store.Tracks).Count(ctx)
	if err == nil {
		metrics.SetTracks(n)
	}
	metrics.SetPending(0)
	metrics.RecordFlush(len(workload), time.Since(start), true)
	l.logger.Info("flushed library",
		zap.Int("changes", changes),
		zap.Int("pairs", len(workload)),
		zap.Duration("took", time.Since(start)))
	return true, nil
}

func (l *Library) refresh(ctx context.Context, workload []Pair) error {
	nodes := l.nodes()
	for _, c := range l.pending {
		var err error
		switch c.Op {
		case OpAdd:
			err = l.builder.Insert(ctx, nodes, c.Track.URI)
		case OpRemove:
			err = l.builder.Prune(ctx, nodes, c.Track.URI)
		}
		if err != nil {
			return fmt.Errorf("browse %s %s: %w", c.Op, c.Track.URI, err)
		}
	}

	snap, err := l.snapshot(ctx)
	if err != nil {
		return err
	}
	searches := l.searchCache()
	pc := answercache.SnapshotContext{Snapshot: snap}

	refreshAnswer := func(c command) error {
		if l.answers == nil {
			return nil
		}
		return l.answers.Refresh(ctx, pc, c.name, c.args...)
	}

	for _, p := range workload {
		queries, commands := p.shapes()
		for _, q := range queries {
			if err := searches.Refresh(ctx, snap, q); err != nil {
				return err
			}
		}
		for _, c := range commands {
			if err := refreshAnswer(c); err != nil {
				return err
			}
		}
	}

	if err := searches.Refresh(ctx, snap, search.Query{}); err != nil {
		return err
	}
	for _, c := range alwaysCommands {
		if err := refreshAnswer(c); err != nil {
			return err
		}
	}
	return nil
}

// replay discards the failed transaction and replays the pending primary
// mutations into a new one, so the session state matches what it was
// before Flush.
func (l *Library) replay(ctx context.Context) error {
	l.discard()
	if err := l.begin(ctx); err != nil {
		return err
	}
	tracks := l.tx.Bucket(store.Tracks)
	for _, c := range l.pending {
		switch c.Op {
		case OpAdd:
			data, err := l.codec.Marshal(c.Track)
			if err != nil {
				return err
			}
			if err := tracks.Put(ctx, c.Track.URI, data); err != nil {
				return fmt.Errorf("replay add %s: %w", c.Track.URI, err)
			}
		case OpRemove:
			if _, err := tracks.Delete(ctx, c.Track.URI); err != nil {
				return fmt.Errorf("replay remove %s: %w", c.Track.URI, err)
			}
		}
	}
	return nil
}
