// Package metastore defines the metadata-store collaborator contract
// (spec.md §6 "Metadata-store interface"): conditional writes keyed by a
// primary key, used by depot.Registry for optimistic-concurrency commits
// and by delegate token rotation. BoltStore is the default implementation;
// because a single bolt.Tx is fully ACID, it closes the read-then-write
// TOCTOU gap spec.md §4.7 calls out simply by doing the compare-and-swap
// inside one transaction, without needing a separate "attribute_not_exists"
// trick the way a real DynamoDB-backed implementation would.
package metastore

import (
	"context"
	"errors"
)

// ErrConditionFailed is returned by PutIfAbsent/PutIfMatch when the
// precondition does not hold; callers (depot.Registry, delegate token
// rotation) translate this into the domain-specific conflict error.
var ErrConditionFailed = errors.New("metastore: condition failed")

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = errors.New("metastore: key not found")

// Item is one row returned by List.
type Item struct {
	Key   string
	Value []byte
}

// Page is one cursor-paginated batch of List results.
type Page struct {
	Items      []Item
	NextCursor string // empty when there are no more pages
}

// Store is the pluggable metadata-store contract (spec.md §6).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent writes value at key only if no value currently exists
	// ("write if not exists"); returns ErrConditionFailed otherwise.
	PutIfAbsent(ctx context.Context, key string, value []byte) error

	// PutIfMatch writes value at key only if the current value equals
	// expected byte-for-byte ("write if attribute = expected value");
	// returns ErrConditionFailed (with the actual current value attached
	// via ConditionFailedError.Current) otherwise.
	PutIfMatch(ctx context.Context, key string, value, expected []byte) error

	Delete(ctx context.Context, key string) error

	// List returns up to limit items with keys having the given prefix,
	// resuming after cursor (empty cursor starts from the beginning).
	List(ctx context.Context, prefix, cursor string, limit int) (Page, error)
}

// ConditionFailedError carries the current value observed at the time a
// PutIfMatch/PutIfAbsent precondition failed. depot.Commit does not read it:
// it reloads the depot and retries instead.
type ConditionFailedError struct {
	Current []byte
}

func (e *ConditionFailedError) Error() string { return ErrConditionFailed.Error() }
func (e *ConditionFailedError) Unwrap() error { return ErrConditionFailed }
