// Package fsops implements the mutating filesystem operations — write,
// mkdir, rm, mv, cp, rewrite — over the immutable CAS tree (spec.md §4.5).
// Every operation returns a new root without touching the root it started
// from. Grounded on the teacher's FileSystem method-on-struct style
// (fs.go's OpenFile/Mkdir/Remove), generalized from a mutable boltdb tree
// to copy-on-write operations over tree.Ops.
package fsops

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/nodestore"
	"github.com/shazhou-ww/casfa-sub002/tree"
)

// MaxInlineFileSize is the single-block fast path ceiling for Write
// (spec.md §4.5): bytes beyond this must go through WriteStream.
const MaxInlineFileSize = 4 * 1024 * 1024

// MaxRewriteEntries bounds a single Rewrite batch (spec.md §4.5 "Total size
// limit FS_MAX_REWRITE_ENTRIES").
const MaxRewriteEntries = 10000

// Hook is invoked for every newly serialized node during an FS operation
// (spec.md §4.5 "onNodeStored"). It must be idempotent: a re-upload of an
// already-present key still fires (so ownership gets recorded for the
// acting chain) even though the backing bytes didn't change.
type Hook func(ctx context.Context, key codec.Key, data []byte, logicalSize int64, kind codec.Kind)

// FS bundles the tree operations and registered hooks used by every
// filesystem mutation.
type FS struct {
	tree  *tree.Ops
	store nodestore.Store
}

// New builds an FS over store, firing hooks for every node newly written by
// any operation performed through it.
func New(store nodestore.Store, hooks ...Hook) *FS {
	hooked := &hookedStore{inner: store, hooks: hooks}
	return &FS{tree: tree.New(hooked), store: hooked}
}

// hookedStore decorates a nodestore.Store so every successful Put fires the
// registered onNodeStored hooks, regardless of which layer (tree.Ops,
// WriteStream's leaf placement, ...) issued the write.
type hookedStore struct {
	inner nodestore.Store
	hooks []Hook
}

func (s *hookedStore) Put(ctx context.Context, key codec.Key, data []byte) error {
	if err := s.inner.Put(ctx, key, data); err != nil {
		return err
	}
	if len(s.hooks) == 0 {
		return nil
	}
	node, err := codec.Decode(data)
	if err != nil {
		return nil // hooks are best-effort bookkeeping, never fail the write
	}
	logicalSize := int64(len(data))
	if node.Kind == codec.KindFile {
		logicalSize = int64(node.FileInfo.FileSize)
	}
	for _, h := range s.hooks {
		h(ctx, key, data, logicalSize, node.Kind)
	}
	return nil
}

func (s *hookedStore) Get(ctx context.Context, key codec.Key) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s *hookedStore) Has(ctx context.Context, key codec.Key) (bool, error) {
	return s.inner.Has(ctx, key)
}

// WriteResult is returned by Write.
type WriteResult struct {
	NewRoot codec.Key
	Created bool // false when an existing file was overwritten
}

// Write stores bytes at path under root, creating missing parent
// directories (spec.md §4.5). Overwrites an existing file in place;
// fails with NOT_A_FILE if path names an existing directory.
func (fs *FS) Write(ctx context.Context, root codec.Key, path []string, data []byte, contentType string) (WriteResult, error) {
	if len(data) > MaxInlineFileSize {
		return WriteResult{}, casfaerr.ErrFileTooLarge.Withf("%d bytes exceeds single-block limit %d", len(data), MaxInlineFileSize)
	}
	if len(path) == 0 {
		return WriteResult{}, casfaerr.ErrInvalidRoot.Withf("root replacement via write is not allowed")
	}

	dirSegments, name := path[:len(path)-1], path[len(path)-1]

	rootAfterDirs, parent, err := fs.tree.EnsureParentDirs(ctx, root, dirSegments)
	if err != nil {
		return WriteResult{}, err
	}

	fileData, fileKey, err := codec.EncodeFile(data, contentType, uint64(len(data)), nil)
	if err != nil {
		return WriteResult{}, err
	}
	if err := fs.store.Put(ctx, fileKey, fileData); err != nil {
		return WriteResult{}, err
	}

	idx := indexOfName(parent.Node.Names, name)
	var newParentKey codec.Key
	created := idx < 0

	if idx >= 0 {
		existingChild, err := fs.loadNode(ctx, parent.Node.Children[idx])
		if err != nil {
			return WriteResult{}, err
		}
		if existingChild.Kind == codec.KindDict {
			return WriteResult{}, casfaerr.ErrNotAFile.Withf("%q is a directory", name)
		}
		newParentKey, err = fs.tree.ReplaceChild(ctx, parent.Node, idx, fileKey)
		if err != nil {
			return WriteResult{}, err
		}
	} else {
		newParentKey, err = fs.tree.InsertChild(ctx, parent.Node, name, fileKey)
		if err != nil {
			return WriteResult{}, err
		}
	}

	newRoot, err := fs.tree.RebuildMerklePath(ctx, parent.Ancestors, newParentKey)
	if err != nil {
		return WriteResult{}, err
	}
	_ = rootAfterDirs // already folded into parent.Ancestors/newParentKey chain
	return WriteResult{NewRoot: newRoot, Created: created}, nil
}

// Mkdir creates an empty directory at path, idempotently (spec.md §4.5).
func (fs *FS) Mkdir(ctx context.Context, root codec.Key, path []string) (codec.Key, bool, error) {
	if len(path) == 0 {
		return root, false, nil
	}

	resolved, err := fs.tree.ResolvePath(ctx, root, path, nil)
	if err == nil {
		if resolved.Node.Kind != codec.KindDict {
			return codec.Key{}, false, casfaerr.ErrExistsAsFile.Withf("%q exists as a file", tree.JoinPath(path))
		}
		return root, false, nil
	}
	if !isCode(err, "PATH_NOT_FOUND") {
		return codec.Key{}, false, err
	}

	dirSegments, name := path[:len(path)-1], path[len(path)-1]
	_, parent, err := fs.tree.EnsureParentDirs(ctx, root, dirSegments)
	if err != nil {
		return codec.Key{}, false, err
	}

	newParentKey, err := fs.tree.InsertChild(ctx, parent.Node, name, codec.EmptyDictKey)
	if err != nil {
		return codec.Key{}, false, err
	}
	newRoot, err := fs.tree.RebuildMerklePath(ctx, parent.Ancestors, newParentKey)
	if err != nil {
		return codec.Key{}, false, err
	}
	return newRoot, true, nil
}

// RemoveResult describes what Rm removed.
type RemoveResult struct {
	NewRoot codec.Key
	Kind    codec.Kind
	Key     codec.Key
}

// Rm removes the node at path or indexPath (spec.md §4.5). Removing the
// root is disallowed.
func (fs *FS) Rm(ctx context.Context, root codec.Key, path []string, indexPath []int) (RemoveResult, error) {
	if len(path) == 0 && len(indexPath) == 0 {
		return RemoveResult{}, casfaerr.ErrCannotRemoveRoot
	}

	resolved, err := fs.tree.ResolvePath(ctx, root, path, indexPath)
	if err != nil {
		return RemoveResult{}, err
	}
	if len(resolved.Ancestors) == 0 {
		return RemoveResult{}, casfaerr.ErrCannotRemoveRoot
	}

	parent := resolved.Ancestors[len(resolved.Ancestors)-1]
	newParentKey, err := fs.tree.RemoveChild(ctx, parent.Node, parent.ChildIndex)
	if err != nil {
		return RemoveResult{}, err
	}

	newRoot, err := fs.tree.RebuildMerklePath(ctx, resolved.Ancestors[:len(resolved.Ancestors)-1], newParentKey)
	if err != nil {
		return RemoveResult{}, err
	}

	return RemoveResult{NewRoot: newRoot, Kind: resolved.Node.Kind, Key: resolved.Hash}, nil
}

func (fs *FS) loadNode(ctx context.Context, key codec.Key) (codec.Node, error) {
	if key == codec.EmptyDictKey {
		return codec.Decode(codec.EmptyDictBytes)
	}
	data, err := fs.store.Get(ctx, key)
	if err != nil {
		return codec.Node{}, casfaerr.ErrNodeNotFound.Withf("failed to load node %x: %v", key, err)
	}
	return codec.Decode(data)
}

func indexOfName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func isCode(err error, code string) bool {
	e, ok := err.(*casfaerr.Error)
	return ok && e.Code == code
}
