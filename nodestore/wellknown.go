package nodestore

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

// WellKnownStore decorates a Store so the well-known empty directory short-
// circuits Put/Get/Has without ever reaching the backend (spec.md §4.3,
// §3 "Well-known nodes"). Keeping this as a wrapper rather than baking the
// special case into BoltStore mirrors the teacher's layered-wrapper split
// between layerfs (low-level) and simplefs (policy on top).
type WellKnownStore struct {
	inner Store
}

// NewWellKnownStore wraps inner with well-known-node short-circuiting.
func NewWellKnownStore(inner Store) *WellKnownStore {
	return &WellKnownStore{inner: inner}
}

func (s *WellKnownStore) Put(ctx context.Context, key codec.Key, data []byte) error {
	if codec.IsWellKnown(key) {
		return nil
	}
	return s.inner.Put(ctx, key, data)
}

func (s *WellKnownStore) Get(ctx context.Context, key codec.Key) ([]byte, error) {
	if key == codec.EmptyDictKey {
		return codec.EmptyDictBytes, nil
	}
	return s.inner.Get(ctx, key)
}

func (s *WellKnownStore) Has(ctx context.Context, key codec.Key) (bool, error) {
	if codec.IsWellKnown(key) {
		return true, nil
	}
	return s.inner.Has(ctx, key)
}
