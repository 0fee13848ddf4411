// Package tree implements immutable path/index-based navigation over CAS
// trees and the persistent-data-structure mutations (insert/remove/rebuild)
// that produce new roots without mutating old ones (spec.md §4.4).
// Grounded on the teacher's path.go component-slice model and layerfs.cow's
// copy-on-write merge, generalized from "merge a map of children" to
// "resolve, then insert/remove a single named or indexed child".
package tree

import (
	"strconv"
	"strings"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

// ParsePath splits a UTF-8 "/"-joined path into validated name components
// (spec.md §4.4 "path is a sequence of UTF-8 names"). A leading "/" marks
// the (rejected) absolute form; empty segments and ".." are also rejected.
func ParsePath(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "/") {
		return nil, casfaerr.ErrInvalidPath.Withf("absolute paths are not allowed: %q", raw)
	}

	segments := strings.Split(raw, "/")
	for _, s := range segments {
		if s == "" {
			return nil, casfaerr.ErrInvalidPath.Withf("empty path segment in %q", raw)
		}
		if s == ".." {
			return nil, casfaerr.ErrInvalidPath.Withf("'..' is not allowed in %q", raw)
		}
	}
	return segments, nil
}

// ParseIndexPath splits a ":"-separated sequence of non-negative child
// indices (spec.md §4.4 "indexPath is a ':'-separated sequence").
func ParseIndexPath(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ":")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, casfaerr.ErrInvalidPath.Withf("invalid index segment %q in %q", p, raw)
		}
		out[i] = n
	}
	return out, nil
}

// JoinPath renders components back into a "/"-joined string, the inverse of
// ParsePath for names that don't themselves contain "/".
func JoinPath(segments []string) string {
	return strings.Join(segments, "/")
}
