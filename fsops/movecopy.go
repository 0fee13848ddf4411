package fsops

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
)

// Mv relocates the node at from to to (spec.md §4.5). Implemented as a
// delete against root followed by an insert against the intermediate root
// the delete produced — if to names an existing directory, the source lands
// underneath it keeping its own base name; otherwise to is the exact target
// path and must not already exist.
func (fs *FS) Mv(ctx context.Context, root codec.Key, from, to []string) (codec.Key, error) {
	if len(from) == 0 {
		return codec.Key{}, casfaerr.ErrCannotMoveRoot
	}
	if isWithin(from, to) {
		return codec.Key{}, casfaerr.ErrMoveIntoSelf.Withf("cannot move %q into its own subtree", joinPath(from))
	}

	resolvedFrom, err := fs.tree.ResolvePath(ctx, root, from, nil)
	if err != nil {
		return codec.Key{}, err
	}

	rm, err := fs.Rm(ctx, root, from, nil)
	if err != nil {
		return codec.Key{}, err
	}

	finalPath, err := fs.resolveTargetPath(ctx, rm.NewRoot, to, from[len(from)-1])
	if err != nil {
		return codec.Key{}, err
	}

	return fs.placeExisting(ctx, rm.NewRoot, finalPath, resolvedFrom.Hash)
}

// Cp creates a second reference to the node at from under to (spec.md §4.5).
// No bytes are copied: the existing content key is reused and only the
// directory path to the new location is rewritten.
func (fs *FS) Cp(ctx context.Context, root codec.Key, from, to []string) (codec.Key, error) {
	resolvedFrom, err := fs.tree.ResolvePath(ctx, root, from, nil)
	if err != nil {
		return codec.Key{}, err
	}

	baseName := ""
	if len(from) > 0 {
		baseName = from[len(from)-1]
	}
	finalPath, err := fs.resolveTargetPath(ctx, root, to, baseName)
	if err != nil {
		return codec.Key{}, err
	}

	return fs.placeExisting(ctx, root, finalPath, resolvedFrom.Hash)
}

// resolveTargetPath decides the effective destination path for a Mv/Cp:
// if to already names a directory, the source's base name is appended;
// if to doesn't exist, it is the literal destination; any other outcome
// (to names an existing file) is a conflict.
func (fs *FS) resolveTargetPath(ctx context.Context, root codec.Key, to []string, baseName string) ([]string, error) {
	resolvedTo, err := fs.tree.ResolvePath(ctx, root, to, nil)
	switch {
	case err == nil:
		if resolvedTo.Node.Kind == codec.KindDict {
			return append(append([]string{}, to...), baseName), nil
		}
		return nil, casfaerr.ErrTargetExists.Withf("%q already exists", joinPath(to))
	case isCode(err, "PATH_NOT_FOUND"):
		return to, nil
	default:
		return nil, err
	}
}

// placeExisting inserts an already-materialized node key at path under
// root, creating missing parent directories along the way.
func (fs *FS) placeExisting(ctx context.Context, root codec.Key, path []string, childKey codec.Key) (codec.Key, error) {
	if len(path) == 0 {
		return codec.Key{}, casfaerr.ErrInvalidPath.Withf("destination path must not be empty")
	}
	dirSegments, name := path[:len(path)-1], path[len(path)-1]

	_, parent, err := fs.tree.EnsureParentDirs(ctx, root, dirSegments)
	if err != nil {
		return codec.Key{}, err
	}
	if indexOfName(parent.Node.Names, name) >= 0 {
		return codec.Key{}, casfaerr.ErrTargetExists.Withf("%q already exists", joinPath(path))
	}

	newParentKey, err := fs.tree.InsertChild(ctx, parent.Node, name, childKey)
	if err != nil {
		return codec.Key{}, err
	}
	return fs.tree.RebuildMerklePath(ctx, parent.Ancestors, newParentKey)
}

// isWithin reports whether to names a location inside (or equal to) the
// from subtree — a disallowed move target (spec.md §4.5 MOVE_INTO_SELF).
func isWithin(from, to []string) bool {
	if len(to) < len(from) {
		return false
	}
	for i, seg := range from {
		if to[i] != seg {
			return false
		}
	}
	return true
}

func joinPath(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
