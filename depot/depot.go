// Package depot implements named, versioned CAS roots with optimistic
// concurrency commits and a bounded history ring buffer (spec.md §3
// "Depot", §4.7). Grounded on the teacher's Layer concept (layerfs/layer.go
// — "a point-in-time snapshot of a node tree to which new data can be
// written"), generalized from a single current layer key to a named depot
// whose history is a bounded, deduplicated ring buffer.
package depot

import (
	"context"
	"time"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

// HistoryEntry records one past commit.
type HistoryEntry struct {
	Root       codec.Key `json:"root"`
	ParentRoot codec.Key `json:"parentRoot"`
	Diff       []byte    `json:"diff,omitempty"` // optional compact diff, opaque to this package
	CommittedAt time.Time `json:"committedAt"`
}

// Depot is a named mutable pointer into the CAS graph.
type Depot struct {
	Realm           string         `json:"realm"`
	DepotID         string         `json:"depotId"`
	Name            string         `json:"name"`
	Root            codec.Key      `json:"root"`
	MaxHistory      int            `json:"maxHistory"`
	History         []HistoryEntry `json:"history"` // history[0] is the most recent commit
	CreatorIssuerID string         `json:"creatorIssuerId"`
	CreatorTokenID  string         `json:"creatorTokenId"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Registry is the depot contract (spec.md §4.7).
type Registry interface {
	Create(ctx context.Context, realm, name string, initialRoot codec.Key, maxHistory int, creatorIssuerID, creatorTokenID string) (*Depot, error)
	Get(ctx context.Context, realm, depotID string) (*Depot, error)
	GetByName(ctx context.Context, realm, name string) (*Depot, error)
	Commit(ctx context.Context, realm, depotID string, newRoot codec.Key, expectedRoot *codec.Key, diff []byte) (*Depot, error)
	Update(ctx context.Context, realm, depotID string, name *string, maxHistory *int) (*Depot, error)
	Delete(ctx context.Context, realm, depotID string) error
}
