package depot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/require"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/metastore"
)

func testDepotStore(t *testing.T) *Store {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "depot.bolt"), 0666, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	meta, err := metastore.NewBoltStore(db)
	require.NoError(t, err)
	return NewStore(meta)
}

func TestStoreCreateAndGet(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)
	require.Equal(t, codec.EmptyDictKey, d.Root)
	require.Len(t, d.History, 1)

	got, err := s.Get(ctx, "r1", d.DepotID)
	require.NoError(t, err)
	require.Equal(t, d.DepotID, got.DepotID)

	byName, err := s.GetByName(ctx, "r1", "main")
	require.NoError(t, err)
	require.Equal(t, d.DepotID, byName.DepotID)
}

func TestStoreCreateRejectsDuplicateName(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)

	_, err = s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.Error(t, err)
}

func TestStoreCommitUpdatesRootAndHistory(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)

	var newRoot codec.Key
	newRoot[0] = 1

	updated, err := s.Commit(ctx, "r1", d.DepotID, newRoot, &d.Root, nil)
	require.NoError(t, err)
	require.Equal(t, newRoot, updated.Root)
	require.Len(t, updated.History, 2)
	require.Equal(t, newRoot, updated.History[0].Root)
}

func TestStoreCommitRejectsStaleExpectedRoot(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)

	var staleRoot, newRoot codec.Key
	staleRoot[0] = 0xaa
	newRoot[0] = 1

	_, err = s.Commit(ctx, "r1", d.DepotID, newRoot, &staleRoot, nil)
	require.Error(t, err)
	var cerr *casfaerr.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, casfaerr.KindConflict, cerr.Kind)
}

func TestStoreCommitHistoryDedupesAndTruncates(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 2, "root", "")
	require.NoError(t, err)

	var r1, r2, r3 codec.Key
	r1[0], r2[0], r3[0] = 1, 2, 3

	d, err = s.Commit(ctx, "r1", d.DepotID, r1, nil, nil)
	require.NoError(t, err)
	d, err = s.Commit(ctx, "r1", d.DepotID, r2, nil, nil)
	require.NoError(t, err)
	d, err = s.Commit(ctx, "r1", d.DepotID, r3, nil, nil)
	require.NoError(t, err)

	require.LessOrEqual(t, len(d.History), 2)
	require.Equal(t, r3, d.History[0].Root)
}

func TestStoreUpdateRename(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)

	newName := "renamed"
	updated, err := s.Update(ctx, "r1", d.DepotID, &newName, nil)
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	_, err = s.GetByName(ctx, "r1", "main")
	require.Error(t, err)

	byName, err := s.GetByName(ctx, "r1", "renamed")
	require.NoError(t, err)
	require.Equal(t, d.DepotID, byName.DepotID)
}

func TestStoreDelete(t *testing.T) {
	s := testDepotStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "r1", "main", codec.EmptyDictKey, 32, "root", "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "r1", d.DepotID))

	_, err = s.Get(ctx, "r1", d.DepotID)
	require.Error(t, err)
	_, err = s.GetByName(ctx, "r1", "main")
	require.Error(t, err)
}
