// Package ownership implements the full-chain ownership index (spec.md
// §3 "Ownership record", §4.6): one record per chain element per upload,
// giving O(1) positive authorization answers for anything any ancestor
// delegate uploaded. Grounded on the teacher's bucket-scan-by-prefix
// pattern in simplefs/node.go, generalized from "children of one node" to
// "owners of one content key".
package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/metastore"
)

// Record is the value stored per (nodeHash, subject delegateId) pair.
type Record struct {
	UploadedBy  string    `json:"uploadedBy"`
	Kind        codec.Kind `json:"kind"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Index is the ownership contract (spec.md §4.6).
type Index interface {
	AddOwnership(ctx context.Context, nodeHash codec.Key, chain []string, uploadedBy string, contentType string, size int64, kind codec.Kind) error
	HasOwnership(ctx context.Context, nodeHash codec.Key, delegateID string) (bool, error)
	HasAnyOwnership(ctx context.Context, nodeHash codec.Key) (bool, error)
	ListOwners(ctx context.Context, nodeHash codec.Key) ([]string, error)
	HasOwnershipBatch(ctx context.Context, nodeHash codec.Key, delegateIDs []string) (string, bool, error)
}

// MetaIndex is the default Index implementation, backed by metastore.Store.
type MetaIndex struct {
	meta metastore.Store
}

// NewMetaIndex builds an Index over meta.
func NewMetaIndex(meta metastore.Store) *MetaIndex {
	return &MetaIndex{meta: meta}
}

func ownerKey(nodeHash codec.Key, delegateID string) string {
	return fmt.Sprintf("owner/%x/%s", nodeHash, delegateID)
}

func ownerPrefix(nodeHash codec.Key) string {
	return fmt.Sprintf("owner/%x/", nodeHash)
}

// AddOwnership writes one record per chain element in a single logical
// batch (bounded by depth <= 16, spec.md §4.6). Idempotent: re-uploads of
// an existing key still (re-)write each record, which is harmless since
// the value is the same for a given (nodeHash, uploadedBy) pair within one
// call.
func (idx *MetaIndex) AddOwnership(ctx context.Context, nodeHash codec.Key, chain []string, uploadedBy string, contentType string, size int64, kind codec.Kind) error {
	rec := Record{
		UploadedBy:  uploadedBy,
		Kind:        kind,
		Size:        size,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return casfaerr.ErrInternal.Withf("failed to marshal ownership record: %v", err)
	}

	for _, subject := range chain {
		if err := idx.meta.Put(ctx, ownerKey(nodeHash, subject), raw); err != nil {
			return err
		}
	}
	return nil
}

// HasOwnership is an O(1) point lookup.
func (idx *MetaIndex) HasOwnership(ctx context.Context, nodeHash codec.Key, delegateID string) (bool, error) {
	_, err := idx.meta.Get(ctx, ownerKey(nodeHash, delegateID))
	if err == metastore.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasAnyOwnership reports whether any record exists for nodeHash.
func (idx *MetaIndex) HasAnyOwnership(ctx context.Context, nodeHash codec.Key) (bool, error) {
	page, err := idx.meta.List(ctx, ownerPrefix(nodeHash), "", 1)
	if err != nil {
		return false, err
	}
	return len(page.Items) > 0, nil
}

// ListOwners returns every subject delegateId that owns nodeHash.
func (idx *MetaIndex) ListOwners(ctx context.Context, nodeHash codec.Key) ([]string, error) {
	prefix := ownerPrefix(nodeHash)
	var owners []string
	cursor := ""
	for {
		page, err := idx.meta.List(ctx, prefix, cursor, 256)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			owners = append(owners, item.Key[len(prefix):])
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	sort.Strings(owners)
	return owners, nil
}

// HasOwnershipBatch returns the first delegateID (in the given order) that
// owns nodeHash, bounded by chain length (spec.md §5 "Rate of fan-out").
// Fan-out is small (<=16) and bounded, so it uses a plain goroutine +
// sync.WaitGroup instead of a pooled-worker dependency (see DESIGN.md).
func (idx *MetaIndex) HasOwnershipBatch(ctx context.Context, nodeHash codec.Key, delegateIDs []string) (string, bool, error) {
	return hasOwnershipBatchFanOut(ctx, idx, nodeHash, delegateIDs)
}
