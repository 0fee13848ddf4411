package tree

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
)

// InsertChild inserts (name, newChildHash) into parentNode, a d-node,
// maintaining sort order (EncodeDict canonicalizes). It fails with
// TARGET_EXISTS if name is already present — callers that want replace
// semantics (e.g. fsops.Write overwriting an existing file) use
// ReplaceChild instead (spec.md §4.4).
func (o *Ops) InsertChild(ctx context.Context, parentNode codec.Node, name string, newChildHash codec.Key) (codec.Key, error) {
	if parentNode.Kind != codec.KindDict {
		return codec.Key{}, casfaerr.ErrNotADirectory.Withf("cannot insert into a non-directory node")
	}
	if findName(parentNode.Names, name) >= 0 {
		return codec.Key{}, casfaerr.ErrTargetExists.Withf("child %q already exists", name)
	}

	children := append(append([]codec.Key{}, parentNode.Children...), newChildHash)
	names := append(append([]string{}, parentNode.Names...), name)

	data, key, err := codec.EncodeDict(children, names)
	if err != nil {
		return codec.Key{}, err
	}
	if err := o.Store.Put(ctx, key, data); err != nil {
		return codec.Key{}, err
	}
	return key, nil
}

// RemoveChild removes the child at childIndex from parentNode, a d-node,
// and writes the rebuilt node (spec.md §4.4).
func (o *Ops) RemoveChild(ctx context.Context, parentNode codec.Node, childIndex int) (codec.Key, error) {
	if parentNode.Kind != codec.KindDict {
		return codec.Key{}, casfaerr.ErrNotADirectory.Withf("cannot remove from a non-directory node")
	}
	if childIndex < 0 || childIndex >= len(parentNode.Children) {
		return codec.Key{}, casfaerr.ErrIndexOutOfBounds.Withf("child index %d out of bounds", childIndex)
	}

	children := make([]codec.Key, 0, len(parentNode.Children)-1)
	names := make([]string, 0, len(parentNode.Names)-1)
	for i := range parentNode.Children {
		if i == childIndex {
			continue
		}
		children = append(children, parentNode.Children[i])
		names = append(names, parentNode.Names[i])
	}

	data, key, err := codec.EncodeDict(children, names)
	if err != nil {
		return codec.Key{}, err
	}
	if err := o.Store.Put(ctx, key, data); err != nil {
		return codec.Key{}, err
	}
	return key, nil
}

// ReplaceChild swaps the child at childIndex for newChildHash without
// otherwise touching the d-node's entries (used when overwriting an
// existing file in place, keeping the same name).
func (o *Ops) ReplaceChild(ctx context.Context, parentNode codec.Node, childIndex int, newChildHash codec.Key) (codec.Key, error) {
	if parentNode.Kind != codec.KindDict {
		return codec.Key{}, casfaerr.ErrNotADirectory.Withf("cannot replace a child of a non-directory node")
	}
	if childIndex < 0 || childIndex >= len(parentNode.Children) {
		return codec.Key{}, casfaerr.ErrIndexOutOfBounds.Withf("child index %d out of bounds", childIndex)
	}

	children := append([]codec.Key{}, parentNode.Children...)
	children[childIndex] = newChildHash

	data, key, err := codec.EncodeDict(children, parentNode.Names)
	if err != nil {
		return codec.Key{}, err
	}
	if err := o.Store.Put(ctx, key, data); err != nil {
		return codec.Key{}, err
	}
	return key, nil
}

// RebuildMerklePath re-encodes each ancestor d-node from parentPath with
// the updated child hash, walking bottom to root, and returns the new root
// key (spec.md §4.4). ancestors must be ordered root-first, as produced by
// ResolvePath.
func (o *Ops) RebuildMerklePath(ctx context.Context, ancestors []Ancestor, newLeafHash codec.Key) (codec.Key, error) {
	current := newLeafHash
	for i := len(ancestors) - 1; i >= 0; i-- {
		a := ancestors[i]
		if a.Node.Kind != codec.KindDict {
			return codec.Key{}, casfaerr.ErrNotADirectory.Withf("ancestor at depth %d is not a directory", i)
		}

		children := append([]codec.Key{}, a.Node.Children...)
		children[a.ChildIndex] = current

		data, key, err := codec.EncodeDict(children, a.Node.Names)
		if err != nil {
			return codec.Key{}, err
		}
		if err := o.Store.Put(ctx, key, data); err != nil {
			return codec.Key{}, err
		}
		current = key
	}
	return current, nil
}

// EnsureParentDirs walks root along segments, creating missing intermediate
// directories with the well-known empty d-node as each new leaf, and
// returns the new root plus a freshly resolved context for the final
// (possibly newly created) directory (spec.md §4.4).
func (o *Ops) EnsureParentDirs(ctx context.Context, root codec.Key, segments []string) (codec.Key, Resolved, error) {
	newRoot, err := o.ensureDirsRoot(ctx, root, segments)
	if err != nil {
		return codec.Key{}, Resolved{}, err
	}
	parent, err := o.ResolvePath(ctx, newRoot, segments, nil)
	if err != nil {
		return codec.Key{}, Resolved{}, err
	}
	return newRoot, parent, nil
}

func (o *Ops) ensureDirsRoot(ctx context.Context, curKey codec.Key, segments []string) (codec.Key, error) {
	if len(segments) == 0 {
		return curKey, nil
	}

	curNode, err := o.load(ctx, curKey)
	if err != nil {
		return codec.Key{}, err
	}
	if curNode.Kind != codec.KindDict {
		return codec.Key{}, casfaerr.ErrNotADirectory.Withf("path segment %q requires a directory parent", segments[0])
	}

	name := segments[0]
	idx := findName(curNode.Names, name)

	childKey := codec.EmptyDictKey
	if idx >= 0 {
		childKey = curNode.Children[idx]
	}

	newChildKey, err := o.ensureDirsRoot(ctx, childKey, segments[1:])
	if err != nil {
		return codec.Key{}, err
	}

	if idx >= 0 && newChildKey == childKey {
		return curKey, nil // nothing below this level changed
	}

	children := append([]codec.Key{}, curNode.Children...)
	names := append([]string{}, curNode.Names...)
	if idx >= 0 {
		children[idx] = newChildKey
	} else {
		children = append(children, newChildKey)
		names = append(names, name)
	}

	data, key, err := codec.EncodeDict(children, names)
	if err != nil {
		return codec.Key{}, err
	}
	if err := o.Store.Put(ctx, key, data); err != nil {
		return codec.Key{}, err
	}
	return key, nil
}
