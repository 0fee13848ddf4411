// Package stack is the composition root: it wires the storage, ownership,
// scope, and authorization layers into one ready-to-use instance, the way
// cmd/casd's main would otherwise have to inline (spec.md §6 "cmd/casd
// provides a minimal [composition root] wiring nodestore.BoltStore +
// metastore.BoltStore + cache.LRU, with no HTTP server"). Kept as its own
// package so both cmd/casd and tests can build a Stack without duplicating
// the wiring order.
package stack

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/shazhou-ww/casfa-sub002/authz"
	"github.com/shazhou-ww/casfa-sub002/cache"
	"github.com/shazhou-ww/casfa-sub002/claim"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/config"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/depot"
	"github.com/shazhou-ww/casfa-sub002/fsops"
	"github.com/shazhou-ww/casfa-sub002/metastore"
	"github.com/shazhou-ww/casfa-sub002/nodestore"
	"github.com/shazhou-ww/casfa-sub002/ownership"
	"github.com/shazhou-ww/casfa-sub002/scope"
)

// Stack is every collaborator a request handler needs, already wired
// together against one underlying *bolt.DB.
type Stack struct {
	Config config.Config

	db *bolt.DB

	Nodes nodestore.Store
	Meta  metastore.Store
	Cache cache.Cache

	Delegates *delegate.Store
	Ownership ownership.Index
	Depots    *depot.Store
	Scope     *scope.Engine
	Authz     *authz.Gate
	Claims    *claim.Service
	FS        *fsops.FS
}

// New opens cfg.BoltPath and wires every layer on top of it, in dependency
// order: stores first, then the indices/registries built on them, then the
// composing authz/claim/fsops layers.
func New(cfg config.Config) (*Stack, error) {
	db, err := bolt.Open(cfg.BoltPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("stack: failed to open bolt db %q: %w", cfg.BoltPath, err)
	}

	nodeOpts := []nodestore.Option{nodestore.WithLogger(cfg.Logger)}
	if cfg.VerifiedPuts {
		nodeOpts = append(nodeOpts, nodestore.WithVerifiedMode())
	}
	boltNodes, err := nodestore.NewBoltStore(db, nodeOpts...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stack: failed to prepare node store: %w", err)
	}
	nodes := nodestore.NewWellKnownStore(boltNodes)

	metaStore, err := metastore.NewBoltStore(db, metastore.WithLogger(cfg.Logger))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stack: failed to prepare metadata store: %w", err)
	}

	lru, err := cache.NewLRU(cfg.OwnershipCacheCapacity)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stack: failed to build ownership cache: %w", err)
	}

	delegates := delegate.NewStore(metaStore, delegate.WithLogger(cfg.Logger))
	ownershipIdx := ownership.NewCachedIndex(ownership.NewMetaIndex(metaStore), lru)
	depots := depot.NewStore(metaStore, depot.WithLogger(cfg.Logger))
	scopeEngine := scope.New(nodes, depots)
	gate := authz.New(ownershipIdx, scopeEngine)
	claims := claim.New(nodes, ownershipIdx)

	return &Stack{
		Config:    cfg,
		db:        db,
		Nodes:     nodes,
		Meta:      metaStore,
		Cache:     lru,
		Delegates: delegates,
		Ownership: ownershipIdx,
		Depots:    depots,
		Scope:     scopeEngine,
		Authz:     gate,
		Claims:    claims,
		FS:        fsops.New(nodes),
	}, nil
}

// Close releases the underlying database handle.
func (s *Stack) Close() error {
	return s.db.Close()
}

// FSForUpload builds an *fsops.FS whose every successfully stored node
// records ownership for uploader's chain (spec.md §4.5 "onNodeStored"),
// so a single Write/Mkdir/Rewrite/WriteStream call both mutates the tree
// and grants the acting delegate (and its ancestors) ownership of every
// node it newly wrote.
func (s *Stack) FSForUpload(uploader *delegate.Delegate) *fsops.FS {
	return fsops.New(s.Nodes, func(ctx context.Context, key codec.Key, data []byte, logicalSize int64, kind codec.Kind) {
		_ = data
		_ = s.Ownership.AddOwnership(ctx, key, uploader.Chain, uploader.ID, "application/octet-stream", logicalSize, kind)
	})
}
