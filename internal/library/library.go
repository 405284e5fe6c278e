// Package library keeps a persisted track collection together with the
// caches derived from it: the browse tree, the search cache and the
// protocol answer cache. Mutations only touch the track store and a pending
// buffer; Flush brings every cache up to date and commits.
package library

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"smj-library/internal/answercache"
	"smj-library/internal/browse"
	"smj-library/internal/cachekey"
	"smj-library/internal/logging"
	"smj-library/internal/metrics"
	"smj-library/internal/model"
	"smj-library/internal/protocol"
	"smj-library/internal/search"
	"smj-library/internal/searchcache"
	"smj-library/internal/store"
)

// FileName is the store file inside the data directory.
const FileName = "library.db"

// DefaultLimit is the only search limit supported besides 0.
const DefaultLimit = 100

var (
	ErrNotLoaded         = errors.New("library is not loaded")
	ErrUnsupportedSearch = errors.New("unsupported search parameters")
)

// Options configure a Library.
type Options struct {
	DataDir string

	// Backend names the store backend. OpenStore, when set, replaces it.
	Backend   string
	OpenStore func(path string) (store.Store, error)

	// Engine answers uncached searches. Defaults to search.MatchEngine.
	Engine search.Engine

	CacheAnswers     bool
	CompressionLevel int

	Logger *zap.Logger
}

// Op is the kind of a pending change.
type Op int

const (
	OpAdd Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "add"
}

// Change is one entry of the pending buffer.
type Change struct {
	Op    Op
	Track model.Track
}

// Library is a single session over one store file. It is not safe for
// concurrent use.
type Library struct {
	opts   Options
	path   string
	logger *zap.Logger

	codec      *store.Codec
	builder    *browse.Builder
	normalizer *cachekey.Normalizer
	registry   *protocol.Registry
	answers    *answercache.Cache
	engine     search.Engine

	store   store.Store
	tx      store.Tx
	snap    search.Snapshot
	pending []Change
}

// Open prepares a library. The store is opened by Load.
func Open(opts Options) (*Library, error) {
	codec, err := store.NewCodec(opts.CompressionLevel)
	if err != nil {
		return nil, err
	}
	l := &Library{
		opts:       opts,
		path:       filepath.Join(opts.DataDir, FileName),
		logger:     opts.Logger,
		codec:      codec,
		builder:    browse.NewBuilder(),
		normalizer: cachekey.NewNormalizer(),
		registry:   protocol.NewMusicDBRegistry(),
		engine:     opts.Engine,
	}
	if l.logger == nil {
		l.logger = logging.L()
	}
	if l.engine == nil {
		l.engine = search.MatchEngine{}
	}
	if opts.CacheAnswers {
		l.answers = answercache.New(codec, l.normalizer, l.logger)
		if err := l.answers.Install(l.registry, answercache.Commands...); err != nil {
			codec.Close()
			return nil, err
		}
	}
	return l, nil
}

// Path returns the store file.
func (l *Library) Path() string {
	return l.path
}

// Registry returns the command registry, with cached handlers installed
// when answer caching is enabled.
func (l *Library) Registry() *protocol.Registry {
	return l.registry
}

// Load opens the store, or discards uncommitted changes if it is already
// open, and returns the number of tracks.
func (l *Library) Load(ctx context.Context) (int, error) {
	if l.store == nil {
		s, err := l.openStore()
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", l.path, err)
		}
		l.store = s
	} else {
		l.discard()
	}
	l.pending = nil
	if err := l.begin(ctx); err != nil {
		return 0, err
	}

	n, err := l.tx.Bucket(store.Tracks).Count(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetTracks(n)
	metrics.SetPending(0)
	l.logger.Debug("library loaded", zap.String("path", l.path), zap.Int("tracks", n))
	return n, nil
}

func (l *Library) openStore() (store.Store, error) {
	if l.opts.OpenStore != nil {
		return l.opts.OpenStore(l.path)
	}
	if l.opts.Backend != store.BackendMemory {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return nil, err
		}
	}
	return store.Open(l.opts.Backend, l.path)
}

// begin starts the session transaction and makes sure the browse root exists.
func (l *Library) begin(ctx context.Context) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	l.tx = tx
	if l.answers != nil {
		l.answers.Bind(tx.Bucket(store.AnswerCache))
	}
	return l.builder.EnsureRoot(ctx, l.nodes())
}

// discard rolls back the session transaction and drops the snapshot.
func (l *Library) discard() {
	if l.tx != nil {
		if err := l.tx.Rollback(); err != nil && !errors.Is(err, store.ErrTxDone) {
			l.logger.Warn("rollback failed", zap.Error(err))
		}
		l.tx = nil
	}
	if l.answers != nil {
		l.answers.Bind(nil)
	}
	l.invalidate()
}

func (l *Library) invalidate() {
	if l.snap != nil {
		if err := l.snap.Close(); err != nil {
			l.logger.Warn("close search snapshot", zap.Error(err))
		}
		l.snap = nil
	}
}

func (l *Library) nodes() browse.NodeStore {
	return browse.BucketNodes{Bucket: l.tx.Bucket(store.BrowseCache), Codec: l.codec}
}

func (l *Library) searchCache() *searchcache.Cache {
	return searchcache.New(l.tx.Bucket(store.SearchCache), l.codec)
}

func (l *Library) loaded() error {
	if l.tx == nil {
		return ErrNotLoaded
	}
	return nil
}

// errStop ends a scan early without reporting an error.
var errStop = errors.New("stop")

// Begin returns every track in URI order. Iteration stops at the first
// error, which is yielded with a zero track.
func (l *Library) Begin(ctx context.Context) iter.Seq2[model.Track, error] {
	return func(yield func(model.Track, error) bool) {
		if err := l.loaded(); err != nil {
			yield(model.Track{}, err)
			return
		}
		err := l.tx.Bucket(store.Tracks).Scan(ctx, func(key string, value []byte) error {
			var t model.Track
			if err := l.codec.Unmarshal(value, &t); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if !yield(t, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(model.Track{}, err)
		}
	}
}

// Add stores track, replacing any track with the same URI. A replaced
// track is recorded as removed first, so Flush refreshes the caches it
// appeared in.
func (l *Library) Add(ctx context.Context, track model.Track) error {
	old, replaced, err := l.Lookup(ctx, track.URI)
	if err != nil {
		return err
	}
	data, err := l.codec.Marshal(track)
	if err != nil {
		return err
	}
	if err := l.tx.Bucket(store.Tracks).Put(ctx, track.URI, data); err != nil {
		return err
	}
	if replaced {
		l.record(Change{Op: OpRemove, Track: old})
	}
	l.record(Change{Op: OpAdd, Track: track.Clone()})
	return nil
}

// Remove deletes the track stored under uri and reports whether it existed.
func (l *Library) Remove(ctx context.Context, uri string) (bool, error) {
	track, ok, err := l.Lookup(ctx, uri)
	if err != nil || !ok {
		return false, err
	}
	if _, err := l.tx.Bucket(store.Tracks).Delete(ctx, uri); err != nil {
		return false, err
	}
	l.record(Change{Op: OpRemove, Track: track})
	return true, nil
}

func (l *Library) record(c Change) {
	l.pending = append(l.pending, c)
	l.invalidate()
	metrics.SetPending(len(l.pending))
}

// Pending returns the number of changes since the last successful flush.
func (l *Library) Pending() int {
	return len(l.pending)
}

// Lookup returns the track stored under uri.
func (l *Library) Lookup(ctx context.Context, uri string) (model.Track, bool, error) {
	if err := l.loaded(); err != nil {
		return model.Track{}, false, err
	}
	data, ok, err := l.tx.Bucket(store.Tracks).Get(ctx, uri)
	if err != nil || !ok {
		return model.Track{}, false, err
	}
	var t model.Track
	if err := l.codec.Unmarshal(data, &t); err != nil {
		return model.Track{}, false, fmt.Errorf("decode %s: %w", uri, err)
	}
	return t, true, nil
}

// Browse lists the children of a directory URI. Unknown URIs have none.
func (l *Library) Browse(ctx context.Context, uri string) ([]model.Ref, error) {
	if err := l.loaded(); err != nil {
		return nil, err
	}
	return l.builder.Children(ctx, l.nodes(), uri)
}

// SearchOptions are the parameters of Search beyond the query. Limit must
// be 0 or DefaultLimit, Offset 0 and URIs empty.
type SearchOptions struct {
	Exact  bool
	Limit  int
	Offset int
	URIs   []string
}

func (o SearchOptions) validate() error {
	if o.Limit != 0 && o.Limit != DefaultLimit {
		return fmt.Errorf("%w: limit %d", ErrUnsupportedSearch, o.Limit)
	}
	if o.Offset != 0 {
		return fmt.Errorf("%w: offset %d", ErrUnsupportedSearch, o.Offset)
	}
	if len(o.URIs) > 0 {
		return fmt.Errorf("%w: uris", ErrUnsupportedSearch)
	}
	return nil
}

// Search answers q from the search cache, or by searching every track when
// the query was never cached.
func (l *Library) Search(ctx context.Context, q search.Query, opts SearchOptions) (search.Result, error) {
	if err := opts.validate(); err != nil {
		return search.Result{}, err
	}
	if err := l.loaded(); err != nil {
		return search.Result{}, err
	}
	if q == nil {
		q = search.Query{}
	}
	if err := q.Validate(); err != nil {
		return search.Result{}, err
	}

	res, ok, err := l.searchCache().Lookup(ctx, q, opts.Exact)
	if err != nil {
		l.logger.Warn("search cache lookup failed", zap.String("query", q.String()), zap.Error(err))
	}
	metrics.RecordCacheLookup(metrics.CacheSearch, ok)
	if ok {
		return res, nil
	}

	snap, err := l.snapshot(ctx)
	if err != nil {
		return search.Result{}, err
	}
	return snap.Find(ctx, q, opts.Exact)
}

// snapshot indexes the current tracks, reusing the last snapshot until the
// next mutation.
func (l *Library) snapshot(ctx context.Context) (search.Snapshot, error) {
	if l.snap != nil {
		return l.snap, nil
	}
	var tracks []model.Track
	for t, err := range l.Begin(ctx) {
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	snap, err := l.engine.Index(ctx, tracks)
	if err != nil {
		return nil, fmt.Errorf("index tracks: %w", err)
	}
	l.snap = snap
	return snap, nil
}

// Execute runs a protocol command against the library.
func (l *Library) Execute(ctx context.Context, command string, args ...string) (protocol.Answer, error) {
	if err := l.loaded(); err != nil {
		return nil, err
	}
	return l.registry.Call(ctx, libraryContext{l}, command, args)
}

// libraryContext serves handler reads through Search, so protocol commands
// benefit from the search cache.
type libraryContext struct {
	l *Library
}

func (c libraryContext) FindExact(ctx context.Context, q search.Query) (search.Result, error) {
	return c.l.Search(ctx, q, SearchOptions{Exact: true})
}

// Stats describes the persisted layout.
type Stats struct {
	Path          string `json:"path"`
	Tracks        int    `json:"tracks"`
	Directories   int    `json:"directories"`
	SearchEntries int    `json:"search_entries"`
	Answers       int    `json:"answers"`
	Pending       int    `json:"pending"`
}

// Stats counts the entries of every bucket.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	if err := l.loaded(); err != nil {
		return Stats{}, err
	}
	st := Stats{Path: l.store.Path(), Pending: len(l.pending)}
	counts := map[string]*int{
		store.Tracks:      &st.Tracks,
		store.BrowseCache: &st.Directories,
		store.SearchCache: &st.SearchEntries,
		store.AnswerCache: &st.Answers,
	}
	for name, dst := range counts {
		n, err := l.tx.Bucket(name).Count(ctx)
		if err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", name, err)
		}
		*dst = n
	}
	return st, nil
}

// Close flushes, compacts and closes the store. The store is closed even
// when the flush fails.
func (l *Library) Close(ctx context.Context) error {
	defer l.codec.Close()
	if l.store == nil {
		return nil
	}

	var errs []error
	if l.tx != nil {
		if _, err := l.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	l.discard()
	if len(errs) == 0 {
		if err := l.store.Compact(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compact: %w", err))
		}
	}
	if err := l.store.Close(); err != nil {
		errs = append(errs, err)
	}
	l.store = nil
	return errors.Join(errs...)
}

// Clear destroys the store and starts over with an empty one. It reports
// false, with the previous state reloaded, when the store file could not be
// removed.
func (l *Library) Clear(ctx context.Context) (bool, error) {
	if l.store == nil {
		if _, err := l.Load(ctx); err != nil {
			return false, err
		}
	}
	l.discard()
	l.pending = nil

	destroyErr := l.store.Destroy()
	l.store = nil
	if destroyErr != nil {
		l.logger.Warn("could not remove library", zap.String("path", l.path), zap.Error(destroyErr))
	}
	if _, err := l.Load(ctx); err != nil {
		return false, err
	}
	return destroyErr == nil, nil
}
