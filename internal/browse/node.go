// Package browse maintains the directory tree clients walk to browse the
// library. The tree is derived from flat track URIs and persisted one node
// per key.
package browse

import (
	"context"
	"slices"

	"smj-library/internal/model"
	"smj-library/internal/store"
)

// RootKey is the key of the root node.
const RootKey = "root"

// Node is a directory holding child references in insertion order.
type Node struct {
	URI      string      `json:"uri"`
	Name     string      `json:"name,omitempty"`
	Children []model.Ref `json:"children"`
}

// Set adds ref as a child, replacing in place any child with the same URI.
func (n *Node) Set(ref model.Ref) {
	for i, c := range n.Children {
		if c.URI == ref.URI {
			n.Children[i] = ref
			return
		}
	}
	n.Children = append(n.Children, ref)
}

// Remove drops the child with the given URI and reports whether it existed.
func (n *Node) Remove(uri string) bool {
	i := slices.IndexFunc(n.Children, func(r model.Ref) bool { return r.URI == uri })
	if i < 0 {
		return false
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	return true
}

// NodeStore persists nodes by URI.
type NodeStore interface {
	Get(ctx context.Context, uri string) (Node, bool, error)
	Put(ctx context.Context, node Node) error
	Delete(ctx context.Context, uri string) error
}

// BucketNodes stores nodes as encoded values in a store bucket.
type BucketNodes struct {
	Bucket store.Bucket
	Codec  *store.Codec
}

func (b BucketNodes) Get(ctx context.Context, uri string) (Node, bool, error) {
	data, ok, err := b.Bucket.Get(ctx, uri)
	if err != nil || !ok {
		return Node{}, false, err
	}
	var n Node
	if err := b.Codec.Unmarshal(data, &n); err != nil {
		return Node{}, false, err
	}
	return n, true, nil
}

func (b BucketNodes) Put(ctx context.Context, node Node) error {
	data, err := b.Codec.Marshal(node)
	if err != nil {
		return err
	}
	return b.Bucket.Put(ctx, node.URI, data)
}

func (b BucketNodes) Delete(ctx context.Context, uri string) error {
	_, err := b.Bucket.Delete(ctx, uri)
	return err
}
