// Package scope implements the proof engine that lets a delegate reference
// a node outside its ownership records by walking from one of its scope
// roots (spec.md §4.9). Grounded on the teacher's path-as-index-sequence
// model (path.go), generalized from "walk a tree by name" to "walk a tree
// by child index, starting from a bound scope root instead of a
// filesystem root".
package scope

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/depot"
	"github.com/shazhou-ww/casfa-sub002/nodestore"
)

// Word is the kind of a ProofWord (spec.md §4.9).
type Word string

const (
	WordIPath Word = "ipath"
	WordDepot Word = "depot"
)

// ProofWord is a tagged union of the two proof forms.
type ProofWord struct {
	Word Word

	// ipath fields
	ScopeIndex int
	Path       []int

	// depot fields
	DepotID string
	Version int
	// Path is shared between the two forms (the index-path walk after the
	// root is located).
}

// Engine verifies proofs and resolves scope roots. It composes a node
// store (to walk child indices) and a depot registry (to resolve depot
// versions to roots).
type Engine struct {
	Store  nodestore.Store
	Depots depot.Registry
}

// New builds a proof Engine.
func New(store nodestore.Store, depots depot.Registry) *Engine {
	return &Engine{Store: store, Depots: depots}
}

// ScopeRoots returns the list of root hashes a delegate's scope binding
// makes available for ipath scopeIndex lookups: a single-element list for
// a plain scopeNodeHash, or the (unpacked) children of a scopeSetNodeId.
func (e *Engine) ScopeRoots(ctx context.Context, d *delegate.Delegate) ([]codec.Key, error) {
	switch {
	case d.ScopeNodeHash != nil:
		return []codec.Key{*d.ScopeNodeHash}, nil
	case d.ScopeSetNodeID != nil:
		data, err := e.Store.Get(ctx, *d.ScopeSetNodeID)
		if err != nil {
			return nil, casfaerr.ErrNodeNotFound.Withf("scope set-node %x: %v", *d.ScopeSetNodeID, err)
		}
		node, err := codec.Decode(data)
		if err != nil {
			return nil, err
		}
		if node.Kind != codec.KindSet {
			return nil, casfaerr.ErrScopeRootOOB.Withf("scopeSetNodeId %x is not a set-node", *d.ScopeSetNodeID)
		}
		return node.Children, nil
	default:
		return nil, nil
	}
}

// Verify checks that word resolves to nodeHash under d's authority
// (spec.md §4.9).
func (e *Engine) Verify(ctx context.Context, d *delegate.Delegate, nodeHash codec.Key, word ProofWord) error {
	var root codec.Key
	switch word.Word {
	case WordIPath:
		roots, err := e.ScopeRoots(ctx, d)
		if err != nil {
			return err
		}
		if word.ScopeIndex < 0 || word.ScopeIndex >= len(roots) {
			return casfaerr.ErrScopeRootOOB.Withf("scope index %d out of bounds (have %d)", word.ScopeIndex, len(roots))
		}
		root = roots[word.ScopeIndex]

	case WordDepot:
		if !d.CanManageDepot {
			return casfaerr.ErrDepotAccessDenied.Withf("delegate %q cannot manage depots", d.ID)
		}
		dep, err := e.Depots.Get(ctx, d.Realm, word.DepotID)
		if err != nil {
			return err
		}
		r, err := resolveDepotVersion(dep, word.Version)
		if err != nil {
			return err
		}
		root = r

	default:
		return casfaerr.ErrInvalidProofWord.Withf("unknown proof word %q", word.Word)
	}

	return e.walkIndexPath(ctx, root, word.Path, nodeHash)
}

// walkIndexPath descends root along path and checks the final hash matches
// target (spec.md §4.9 "the final hash MUST equal the claimed target hash").
func (e *Engine) walkIndexPath(ctx context.Context, root codec.Key, path []int, target codec.Key) error {
	cur := root
	for _, idx := range path {
		data, err := e.Store.Get(ctx, cur)
		if err != nil {
			return casfaerr.ErrNodeNotFound.Withf("node %x: %v", cur, err)
		}
		node, err := codec.Decode(data)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(node.Children) {
			return casfaerr.ErrChildIndexOOB.Withf("child index %d out of bounds (have %d)", idx, len(node.Children))
		}
		cur = node.Children[idx]
	}
	if cur != target {
		return casfaerr.ErrPathMismatch.Withf("resolved hash %x != claimed %x", cur, target)
	}
	return nil
}

// resolveDepotVersion finds the history entry for version (0 = current,
// 1 = one commit back, ...), or fails DEPOT_VERSION_NOT_FOUND.
func resolveDepotVersion(d *depot.Depot, version int) (codec.Key, error) {
	if version < 0 || version >= len(d.History) {
		return codec.Key{}, casfaerr.ErrDepotVersionMissing.Withf("depot %q has no version %d", d.DepotID, version)
	}
	return d.History[version].Root, nil
}
