// Package scan keeps a library in step with the media files on disk.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smj-library/internal/logging"
	"smj-library/internal/metrics"
	"smj-library/internal/model"
	"smj-library/internal/translator"
)

// Library is the part of library.Library the scanner writes to.
type Library interface {
	Begin(ctx context.Context) iter.Seq2[model.Track, error]
	Add(ctx context.Context, track model.Track) error
	Remove(ctx context.Context, uri string) (bool, error)
}

// ParseFunc reads the metadata of one media file.
type ParseFunc func(path string) (model.Track, error)

// Options configure a scan.
type Options struct {
	MediaDir   string
	Extensions []string
	// Workers parse files concurrently. Defaults to the number of CPUs.
	Workers int
	// Parse defaults to ReadTrack.
	Parse  ParseFunc
	Logger *zap.Logger
}

// Summary counts what a scan did.
type Summary struct {
	Added     int           `json:"added"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"`
	Took      time.Duration `json:"took"`
}

type file struct {
	path  string
	uri   string
	mtime int64
}

type parsed struct {
	file  file
	track model.Track
	err   error
}

// Scan walks the media directory, adds files that are new or modified since
// they were last stored and removes tracks whose file is gone. Files are
// parsed by a pool of workers; all writes happen on the calling goroutine.
// The caller flushes the library afterwards.
func Scan(ctx context.Context, lib Library, opts Options) (Summary, error) {
	start := time.Now()
	if opts.Parse == nil {
		opts.Parse = ReadTrack
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	if info, err := os.Stat(opts.MediaDir); err != nil {
		return Summary{}, fmt.Errorf("cannot scan %q: %w", opts.MediaDir, err)
	} else if !info.IsDir() {
		return Summary{}, fmt.Errorf("cannot scan %q: not a directory", opts.MediaDir)
	}

	known := make(map[string]int64)
	for t, err := range lib.Begin(ctx) {
		if err != nil {
			return Summary{}, err
		}
		known[t.URI] = t.LastModified
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	files := make(chan file, 100)
	results := make(chan parsed, 100)
	seen := make(map[string]struct{})
	var unchanged int

	// Discovery
	g.Go(func() error {
		defer close(files)
		return walk(gctx, opts.MediaDir, opts.Extensions, func(f file) error {
			seen[f.uri] = struct{}{}
			if mtime, ok := known[f.uri]; ok && mtime == f.mtime {
				unchanged++
				metrics.RecordScannedFile("unchanged")
				return nil
			}
			select {
			case files <- f:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	// Workers
	workers, wctx := errgroup.WithContext(gctx)
	for range opts.Workers {
		workers.Go(func() error {
			for f := range files {
				track, err := opts.Parse(f.path)
				select {
				case results <- parsed{file: f, track: track, err: err}:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	// Writer
	var sum Summary
	var writeErr error
	for r := range results {
		if writeErr != nil {
			continue
		}
		if r.err != nil {
			sum.Failed++
			metrics.RecordScannedFile("failed")
			logger.Warn("could not parse media file", zap.String("path", r.file.path), zap.Error(r.err))
			continue
		}
		track := r.track
		track.URI = r.file.uri
		track.LastModified = r.file.mtime
		if err := lib.Add(ctx, track); err != nil {
			writeErr = fmt.Errorf("add %s: %w", track.URI, err)
			cancel()
			continue
		}
		sum.Added++
		metrics.RecordScannedFile("added")
	}
	err := <-done
	if writeErr != nil {
		return sum, writeErr
	}
	if err != nil {
		return sum, err
	}
	sum.Unchanged = unchanged

	for uri := range known {
		if _, ok := seen[uri]; ok {
			continue
		}
		removed, err := lib.Remove(ctx, uri)
		if err != nil {
			return sum, fmt.Errorf("remove %s: %w", uri, err)
		}
		if removed {
			sum.Removed++
		}
	}

	sum.Took = time.Since(start)
	logger.Info("scan finished",
		zap.String("media_dir", opts.MediaDir),
		zap.Int("added", sum.Added),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed),
		zap.Int("removed", sum.Removed),
		zap.Duration("took", sum.Took))
	return sum, nil
}

// walk calls fn for every regular file under root with one of the given
// extensions. Unreadable entries are skipped.
func walk(ctx context.Context, root string, extensions []string, fn func(file) error) error {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(file{
			path:  path,
			uri:   translator.PathToTrackURI(rel),
			mtime: info.ModTime().UnixMilli(),
		})
	})
}
