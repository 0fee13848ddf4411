package metastore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// MetaBucketName is the bolt bucket holding metadata rows, separate from
// nodestore.NodeBucketName so the two stores can safely share one
// underlying *bolt.DB (or not — BoltStore takes its own *bolt.DB handle).
var MetaBucketName = []byte("Meta")

// BoltStore is the default metastore.Store implementation.
type BoltStore struct {
	db  *bolt.DB
	log *zap.Logger
}

// Option configures a BoltStore at construction time.
type Option func(*BoltStore)

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *BoltStore) { s.log = l }
}

// NewBoltStore opens (or reuses) db and ensures the metadata bucket exists.
func NewBoltStore(db *bolt.DB, opts ...Option) (*BoltStore, error) {
	s := &BoltStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(MetaBucketName)
		return err
	}); err != nil {
		return nil, fmt.Errorf("metastore: failed to prepare bucket: %w", err)
	}
	return s, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(MetaBucketName).Get([]byte(key))
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

func (s *BoltStore) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(MetaBucketName).Put([]byte(key), value)
	})
}

func (s *BoltStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(MetaBucketName)
		if existing := b.Get([]byte(key)); existing != nil {
			return &ConditionFailedError{Current: append([]byte(nil), existing...)}
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		s.log.Debug("putIfAbsent condition failed", zap.String("key", key))
	}
	return err
}

func (s *BoltStore) PutIfMatch(ctx context.Context, key string, value, expected []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(MetaBucketName)
		current := b.Get([]byte(key))
		if !bytes.Equal(current, expected) {
			return &ConditionFailedError{Current: append([]byte(nil), current...)}
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		s.log.Debug("putIfMatch condition failed", zap.String("key", key))
	}
	return err
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(MetaBucketName).Delete([]byte(key))
	})
}

func (s *BoltStore) List(ctx context.Context, prefix, cursor string, limit int) (Page, error) {
	var page Page
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(MetaBucketName).Cursor()
		prefixBytes := []byte(prefix)

		var k, v []byte
		if cursor != "" {
			k, v = c.Seek([]byte(cursor))
			if k != nil && string(k) == cursor {
				k, v = c.Next() // resume strictly after cursor
			}
		} else {
			k, v = c.Seek(prefixBytes)
		}

		for ; k != nil && bytes.HasPrefix(k, prefixBytes); k, v = c.Next() {
			if len(page.Items) >= limit {
				if n := len(page.Items); n > 0 {
					page.NextCursor = page.Items[n-1].Key
				}
				return nil
			}
			page.Items = append(page.Items, Item{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return page, err
}
