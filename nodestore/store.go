// Package nodestore persists CAS node bytes under their content key
// (spec.md §4.3). Store is the pluggable contract; BoltStore is the
// default embedded-KV implementation, grounded on the teacher's
// layerfs.New bucket setup. WellKnownStore decorates any Store so the
// well-known empty directory never touches the backend.
package nodestore

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

// Store is the pluggable node-persistence contract (spec.md §4.3). Put is
// idempotent: re-putting the same key with the same bytes is a no-op at
// the storage level (implementations may still run full validation).
type Store interface {
	Put(ctx context.Context, key codec.Key, data []byte) error
	Get(ctx context.Context, key codec.Key) ([]byte, error)
	Has(ctx context.Context, key codec.Key) (bool, error)
}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "nodestore: key not found" }
