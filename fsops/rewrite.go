package fsops

import (
	"context"
	"sort"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/tree"
)

// RewriteEntry describes one target path in a declarative Rewrite batch
// (spec.md §4.5). Exactly one of From, Dir, Link should be set.
type RewriteEntry struct {
	From string    // "{from}" — copy an existing node from its path in the pre-batch root
	Dir  bool      // "{dir}" — place a fresh empty directory
	Link *codec.Key // "{link}" — place an already-materialized node by key

	// Authorize is consulted only for Link entries, right before the key is
	// spliced in (spec.md §4.8 applies to cross-scope link references). Nil
	// means the caller has already authorized it (or authorization doesn't
	// apply at this layer).
	Authorize func(ctx context.Context, linkKey codec.Key) error
}

// Rewrite applies deletes then entries as one declarative batch (spec.md
// §4.5). Deletes run first against the rolling root and silently skip
// already-missing targets; entries then run against the rolling root, with
// {from} sources resolved against the root as it stood before any deletes.
// Target paths are processed in lexicographic order for determinism.
func (fs *FS) Rewrite(ctx context.Context, root codec.Key, entries map[string]RewriteEntry, deletes []string) (codec.Key, error) {
	if len(entries)+len(deletes) == 0 {
		return codec.Key{}, casfaerr.ErrEmptyRewrite
	}
	if len(entries)+len(deletes) > MaxRewriteEntries {
		return codec.Key{}, casfaerr.ErrTooManyEntries.Withf("%d entries exceeds limit %d", len(entries)+len(deletes), MaxRewriteEntries)
	}

	originalRoot := root
	rolling := root

	sortedDeletes := append([]string{}, deletes...)
	sort.Strings(sortedDeletes)

	for _, raw := range sortedDeletes {
		path, err := tree.ParsePath(raw)
		if err != nil {
			return codec.Key{}, err
		}
		if len(path) == 0 {
			return codec.Key{}, casfaerr.ErrCannotRemoveRoot
		}

		resolved, err := fs.tree.ResolvePath(ctx, rolling, path, nil)
		if err != nil {
			if isCode(err, "PATH_NOT_FOUND") {
				continue // non-existent delete targets are silently skipped
			}
			return codec.Key{}, err
		}

		parent := resolved.Ancestors[len(resolved.Ancestors)-1]
		newParentKey, err := fs.tree.RemoveChild(ctx, parent.Node, parent.ChildIndex)
		if err != nil {
			return codec.Key{}, err
		}
		rolling, err = fs.tree.RebuildMerklePath(ctx, resolved.Ancestors[:len(resolved.Ancestors)-1], newParentKey)
		if err != nil {
			return codec.Key{}, err
		}
	}

	targets := make([]string, 0, len(entries))
	for t := range entries {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	for _, raw := range targets {
		spec := entries[raw]
		path, err := tree.ParsePath(raw)
		if err != nil {
			return codec.Key{}, err
		}
		if len(path) == 0 {
			return codec.Key{}, casfaerr.ErrInvalidRoot.Withf("rewrite entry path must not be empty")
		}

		childKey, err := fs.resolveEntryKey(ctx, originalRoot, raw, spec)
		if err != nil {
			return codec.Key{}, err
		}

		dirSegments, name := path[:len(path)-1], path[len(path)-1]
		_, parent, err := fs.tree.EnsureParentDirs(ctx, rolling, dirSegments)
		if err != nil {
			return codec.Key{}, err
		}

		var newParentKey codec.Key
		if idx := indexOfName(parent.Node.Names, name); idx >= 0 {
			newParentKey, err = fs.tree.ReplaceChild(ctx, parent.Node, idx, childKey)
		} else {
			newParentKey, err = fs.tree.InsertChild(ctx, parent.Node, name, childKey)
		}
		if err != nil {
			return codec.Key{}, err
		}

		rolling, err = fs.tree.RebuildMerklePath(ctx, parent.Ancestors, newParentKey)
		if err != nil {
			return codec.Key{}, err
		}
	}

	return rolling, nil
}

func (fs *FS) resolveEntryKey(ctx context.Context, originalRoot codec.Key, targetPath string, spec RewriteEntry) (codec.Key, error) {
	switch {
	case spec.Dir:
		return codec.EmptyDictKey, nil
	case spec.From != "":
		fromPath, err := tree.ParsePath(spec.From)
		if err != nil {
			return codec.Key{}, err
		}
		resolved, err := fs.tree.ResolvePath(ctx, originalRoot, fromPath, nil)
		if err != nil {
			if isCode(err, "PATH_NOT_FOUND") {
				return codec.Key{}, casfaerr.ErrPathNotFound.WithDetails(map[string]any{"target": targetPath, "from": spec.From}).
					Withf("rewrite source %q not found", spec.From)
			}
			return codec.Key{}, err
		}
		return resolved.Hash, nil
	case spec.Link != nil:
		if spec.Authorize != nil {
			if err := spec.Authorize(ctx, *spec.Link); err != nil {
				return codec.Key{}, err
			}
		}
		return *spec.Link, nil
	default:
		return codec.Key{}, casfaerr.ErrInvalidPath.Withf("rewrite entry %q names none of from/dir/link", targetPath)
	}
}
