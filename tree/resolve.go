package tree

import (
	"context"
	"sort"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/nodestore"
)

// Ancestor records one step taken while resolving a path: the node visited
// and the index of the child followed from it, so RebuildMerklePath can
// walk the same chain bottom-up after a leaf changes.
type Ancestor struct {
	Hash       codec.Key
	Node       codec.Node
	ChildIndex int
}

// Resolved is the result of a successful ResolvePath (spec.md §4.4).
type Resolved struct {
	Hash       codec.Key
	Node       codec.Node
	Name       string // the final path/index component, empty at the root
	Ancestors  []Ancestor
	ParentPath []string // name-path of the parent, empty at the root
}

// Ops bundles the node store ResolvePath and the mutation primitives need.
type Ops struct {
	Store nodestore.Store
}

// New builds tree Ops over the given node store.
func New(store nodestore.Store) *Ops {
	return &Ops{Store: store}
}

func (o *Ops) load(ctx context.Context, key codec.Key) (codec.Node, error) {
	if key == codec.EmptyDictKey {
		n, err := codec.Decode(codec.EmptyDictBytes)
		return n, err
	}
	data, err := o.Store.Get(ctx, key)
	if err != nil {
		return codec.Node{}, casfaerr.ErrNodeNotFound.Withf("failed to load node %x: %v", key, err)
	}
	return codec.Decode(data)
}

// ResolvePath walks root along path (name components) or indexPath (child
// indices) — exactly one must be non-nil, except when both are empty,
// which resolves to the root itself (spec.md §4.4).
func (o *Ops) ResolvePath(ctx context.Context, root codec.Key, path []string, indexPath []int) (Resolved, error) {
	if len(path) > 0 && len(indexPath) > 0 {
		return Resolved{}, casfaerr.ErrInvalidPath.Withf("exactly one of path or indexPath must be provided")
	}

	rootNode, err := o.load(ctx, root)
	if err != nil {
		return Resolved{}, err
	}

	resolved := Resolved{Hash: root, Node: rootNode}

	if len(path) > 0 {
		return o.walkByName(ctx, resolved, path)
	}
	if len(indexPath) > 0 {
		return o.walkByIndex(ctx, resolved, indexPath)
	}
	return resolved, nil
}

func (o *Ops) walkByName(ctx context.Context, cur Resolved, path []string) (Resolved, error) {
	for i, name := range path {
		if cur.Node.Kind != codec.KindDict {
			return Resolved{}, casfaerr.ErrNotADirectory.Withf("path segment %q requires a directory parent", name)
		}

		idx := findName(cur.Node.Names, name)
		if idx < 0 {
			return Resolved{}, casfaerr.ErrPathNotFound.WithDetails(map[string]any{"path": JoinPath(path[:i+1])}).
				Withf("no such path: %s", JoinPath(path[:i+1]))
		}

		ancestor := Ancestor{Hash: cur.Hash, Node: cur.Node, ChildIndex: idx}
		childKey := cur.Node.Children[idx]
		childNode, err := o.load(ctx, childKey)
		if err != nil {
			return Resolved{}, err
		}

		cur = Resolved{
			Hash:       childKey,
			Node:       childNode,
			Name:       name,
			Ancestors:  append(append([]Ancestor{}, cur.Ancestors...), ancestor),
			ParentPath: path[:i],
		}
	}
	return cur, nil
}

func (o *Ops) walkByIndex(ctx context.Context, cur Resolved, indexPath []int) (Resolved, error) {
	for _, idx := range indexPath {
		if idx < 0 || idx >= len(cur.Node.Children) {
			return Resolved{}, casfaerr.ErrIndexOutOfBounds.Withf("child index %d out of bounds (have %d)", idx, len(cur.Node.Children))
		}

		ancestor := Ancestor{Hash: cur.Hash, Node: cur.Node, ChildIndex: idx}
		childKey := cur.Node.Children[idx]
		childNode, err := o.load(ctx, childKey)
		if err != nil {
			return Resolved{}, err
		}

		cur = Resolved{
			Hash:      childKey,
			Node:      childNode,
			Ancestors: append(append([]Ancestor{}, cur.Ancestors...), ancestor),
		}
	}
	return cur, nil
}

// findName returns the index of name in a sorted, unique Names slice, or -1.
func findName(names []string, name string) int {
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return i
	}
	return -1
}
