// Package config holds the plain structs a cmd/casd composition root needs
// to construct the storage/authorization stack (spec.md §4 "construction
// happens once at the composition root"). Grounded on the teacher's
// preference for explicit constructors (NewFileSystem, layerfs.New) over a
// reflection-based config loader: no file/env parsing library is wired
// because nothing here needs dynamic reload.
package config

import "go.uber.org/zap"

// Config is the fully-resolved set of knobs a casd instance runs with.
// Built via New plus functional options, never by unmarshaling a file.
type Config struct {
	// BoltPath is the path to the single embedded database file backing
	// both the node store and the metadata store (separate buckets).
	BoltPath string

	// NodeSizeLimit is the default node size limit (spec.md §3
	// "nodeLimit"). stack.New does not read it: topology.ComputeLayout and
	// fsops.WriteStream take the limit as an argument, and codec.Decode
	// does not check node sizes.
	NodeSizeLimit uint32

	// OwnershipCacheCapacity is the entry capacity of the in-process LRU
	// fronting ownership.MetaIndex (spec.md §4.6/§9 cache transparency).
	OwnershipCacheCapacity int

	// VerifiedPuts makes the node store recompute and check a node's
	// content key on every Put (spec.md §4.3).
	VerifiedPuts bool

	// DefaultMaxHistory is the depot history length cmd/casd passes to
	// depot.Create when it bootstraps a depot; depot.Create has no default.
	DefaultMaxHistory int

	Logger *zap.Logger
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithBoltPath overrides the default database path.
func WithBoltPath(path string) Option {
	return func(c *Config) { c.BoltPath = path }
}

// WithNodeSizeLimit overrides the default node size limit.
func WithNodeSizeLimit(limit uint32) Option {
	return func(c *Config) { c.NodeSizeLimit = limit }
}

// WithOwnershipCacheCapacity overrides the default ownership cache capacity.
func WithOwnershipCacheCapacity(n int) Option {
	return func(c *Config) { c.OwnershipCacheCapacity = n }
}

// WithVerifiedPuts enables recompute-and-check on every node store Put.
func WithVerifiedPuts() Option {
	return func(c *Config) { c.VerifiedPuts = true }
}

// WithDefaultMaxHistory overrides the default per-depot history length.
func WithDefaultMaxHistory(n int) Option {
	return func(c *Config) { c.DefaultMaxHistory = n }
}

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// New builds a Config with the defaults used throughout the test suite and
// the reference cmd/casd binary, then applies opts in order.
func New(opts ...Option) Config {
	c := Config{
		BoltPath:               "casfa.db",
		NodeSizeLimit:          64 * 1024,
		OwnershipCacheCapacity: 100_000,
		VerifiedPuts:           false,
		DefaultMaxHistory:      32,
		Logger:                 zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
