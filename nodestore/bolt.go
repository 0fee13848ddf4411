package nodestore

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

// NodeBucketName is the bolt bucket holding raw node bytes keyed by their
// 16-byte content key, grounded on layerfs.New's bucket-per-concern setup.
var NodeBucketName = []byte("Node")

// BoltStore is the default Store implementation, backed by a single
// embedded boltdb database shared by one or more logical node stores
// (distinguished by bucket, not by database file, matching the teacher's
// single-db-many-buckets layout).
type BoltStore struct {
	db       *bolt.DB
	log      *zap.Logger
	verified bool // when true, Put rejects keys that disagree with DeriveKey
}

// Option configures a BoltStore at construction time.
type Option func(*BoltStore)

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *BoltStore) { s.log = l }
}

// WithVerifiedMode makes Put recompute the content key from the provided
// bytes and reject the call if it disagrees with the caller-supplied key
// (spec.md §4.3 "Store MUST reject put whose computed key disagrees").
func WithVerifiedMode() Option {
	return func(s *BoltStore) { s.verified = true }
}

// NewBoltStore opens (or reuses) db and ensures the node bucket exists.
func NewBoltStore(db *bolt.DB, opts ...Option) (*BoltStore, error) {
	s := &BoltStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(NodeBucketName)
		return err
	}); err != nil {
		return nil, fmt.Errorf("nodestore: failed to prepare bucket: %w", err)
	}

	return s, nil
}

func (s *BoltStore) Put(ctx context.Context, key codec.Key, data []byte) error {
	if s.verified {
		if got := codec.DeriveKey(data); got != key {
			return fmt.Errorf("nodestore: verified put rejected: key %x disagrees with derived %x", key, got)
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(NodeBucketName)
		existing := b.Get(key[:])
		if existing != nil {
			s.log.Debug("node put is idempotent no-op", zap.String("key", fmt.Sprintf("%x", key)))
			return nil
		}
		return b.Put(key[:], data)
	})
}

func (s *BoltStore) Get(ctx context.Context, key codec.Key) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(NodeBucketName).Get(key[:])
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Has(ctx context.Context, key codec.Key) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(NodeBucketName).Get(key[:]) != nil
		return nil
	})
	return found, err
}
