package browse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"smj-library/internal/model"
	"smj-library/internal/translator"
)

var ErrMalformedURI = errors.New("malformed track uri")

// Builder inserts track URIs into a browse tree and prunes them again.
// Insertions must be applied one at a time, in order: the walk stops at the
// first ancestor that already exists and trusts that everything above it is
// linked.
type Builder struct {
	splitter    *regexp.Regexp
	replacement string
}

// NewBuilder returns a Builder splitting paths on "/" and replacing invalid
// UTF-8 with U+FFFD.
func NewBuilder() *Builder {
	return &Builder{
		splitter:    regexp.MustCompile(`[^/]+`),
		replacement: "\uFFFD",
	}
}

// split returns the ancestor directory URIs, shallowest first, and the path
// segments. The last segment is the track's display name.
func (b *Builder) split(trackURI string) ([]string, []string, error) {
	p, err := translator.TrackURIToPath(trackURI)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	parts := b.splitter.FindAllString(strings.ToValidUTF8(p, b.replacement), -1)
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("%w: %q has no path segments", ErrMalformedURI, trackURI)
	}
	dirs := make([]string, len(parts)-1)
	for i := range dirs {
		dirs[i] = translator.PathToDirectoryURI(strings.Join(parts[:i+1], "/"))
	}
	return dirs, parts, nil
}

// EnsureRoot creates the root node if it is missing.
func (b *Builder) EnsureRoot(ctx context.Context, nodes NodeStore) error {
	_, ok, err := nodes.Get(ctx, RootKey)
	if err != nil || ok {
		return err
	}
	return nodes.Put(ctx, Node{URI: RootKey})
}

// Insert links trackURI into the tree, creating missing ancestors. Walking
// from the deepest ancestor upward, each missing directory is created and
// becomes the pending child of the next one; the first existing directory
// receives the pending child and ends the walk. If no ancestor exists the
// pending child is attached to the root.
func (b *Builder) Insert(ctx context.Context, nodes NodeStore, trackURI string) error {
	dirs, parts, err := b.split(trackURI)
	if err != nil {
		return err
	}

	parent := RootKey
	if len(dirs) > 0 {
		parent = dirs[len(dirs)-1]
	}

	var child *model.Ref
	found := false
	for i := len(dirs) - 1; i >= 0; i-- {
		node, ok, err := nodes.Get(ctx, dirs[i])
		if err != nil {
			return err
		}
		if ok {
			if child != nil {
				node.Set(*child)
				if err := nodes.Put(ctx, node); err != nil {
					return err
				}
			}
			found = true
			break
		}

		node = Node{URI: dirs[i], Name: parts[i]}
		if child != nil {
			node.Set(*child)
		}
		if err := nodes.Put(ctx, node); err != nil {
			return err
		}
		ref := model.DirectoryRef(dirs[i], parts[i])
		child = &ref
	}
	if !found && child != nil {
		if err := b.attach(ctx, nodes, RootKey, *child); err != nil {
			return err
		}
	}

	return b.attach(ctx, nodes, parent, model.TrackRef(trackURI, parts[len(parts)-1]))
}

func (b *Builder) attach(ctx context.Context, nodes NodeStore, uri string, ref model.Ref) error {
	node, ok, err := nodes.Get(ctx, uri)
	if err != nil {
		return err
	}
	if !ok {
		node = Node{URI: uri}
	}
	node.Set(ref)
	return nodes.Put(ctx, node)
}

// Prune removes trackURI from its parent and deletes every ancestor left
// empty, unlinking each from its own parent. The root is never deleted.
func (b *Builder) Prune(ctx context.Context, nodes NodeStore, trackURI string) error {
	dirs, _, err := b.split(trackURI)
	if err != nil {
		return err
	}

	target := trackURI
	for i := len(dirs) - 1; i >= -1; i-- {
		uri := RootKey
		if i >= 0 {
			uri = dirs[i]
		}
		node, ok, err := nodes.Get(ctx, uri)
		if err != nil {
			return err
		}
		if !ok || !node.Remove(target) {
			return nil
		}
		if len(node.Children) > 0 || uri == RootKey {
			return nodes.Put(ctx, node)
		}
		if err := nodes.Delete(ctx, uri); err != nil {
			return err
		}
		target = uri
	}
	return nil
}

// Children lists the references under uri. The translator's root directory
// URI is an alias for the root. Unknown URIs have no children.
func (b *Builder) Children(ctx context.Context, nodes NodeStore, uri string) ([]model.Ref, error) {
	if uri == translator.RootDirectoryURI || uri == translator.DirectoryPrefix {
		uri = RootKey
	}
	node, ok, err := nodes.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !ok || node.Children == nil {
		return []model.Ref{}, nil
	}
	return node.Children, nil
}
