package claim

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/casid"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/metastore"
	"github.com/shazhou-ww/casfa-sub002/ownership"
)

type memStore struct {
	mu    sync.Mutex
	nodes map[codec.Key][]byte
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[codec.Key][]byte)}
}

func (s *memStore) Put(ctx context.Context, key codec.Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Get(ctx context.Context, key codec.Key) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.nodes[key]
	if !ok {
		return nil, casfaerr.ErrNodeNotFound
	}
	return data, nil
}

func (s *memStore) Has(ctx context.Context, key codec.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[key]
	return ok, nil
}

func newFixture(t *testing.T) (*Service, *memStore) {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "claim.bolt"), 0666, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	meta, err := metastore.NewBoltStore(db)
	require.NoError(t, err)

	store := newMemStore()
	own := ownership.NewMetaIndex(meta)
	return New(store, own), store
}

func popFor(content, accessTokenBytes []byte) string {
	keySum := blake3.Sum256(accessTokenBytes)
	h := blake3.New(16, keySum[:])
	h.Write(content)
	var digest [16]byte
	copy(digest[:], h.Sum(nil))
	return casid.Encode(casid.PrefixRequest, digest)
}

func TestClaimRejectsRefreshToken(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", CanUpload: true}

	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: false})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrAccessTokenRequired.Code, cerr.Code)
}

func TestClaimRejectsDelegateWithoutUpload(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", CanUpload: false}

	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: true})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrUploadNotAllowed.Code, cerr.Code)
}

func TestClaimRejectsRealmMismatch(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{ID: "leaf", Realm: "other", CanUpload: true}

	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: true})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrRealmMismatch.Code, cerr.Code)
}

func TestClaimRejectsRevokedDelegate(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true, IsRevoked: true}

	var key codec.Key
	key[0] = 5
	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: true, NodeHash: key})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrDelegateRevoked.Code, cerr.Code)
}

func TestClaimRejectsExpiredDelegate(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{
		ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true,
		ATExpiresAt: time.Now().Add(-time.Minute),
	}

	var key codec.Key
	key[0] = 7
	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: true, NodeHash: key})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrDelegateExpired.Code, cerr.Code)
}

func TestClaimShortCircuitsWhenAlreadyOwned(t *testing.T) {
	s, _ := newFixture(t)
	ctx := context.Background()
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true}

	var key codec.Key
	key[0] = 1
	require.NoError(t, s.Ownership.AddOwnership(ctx, key, d.Chain, d.ID, "", 1, codec.KindFile))

	res, err := s.Claim(ctx, "r1", Request{Delegate: d, IsAccessToken: true, NodeHash: key})
	require.NoError(t, err)
	require.True(t, res.AlreadyOwned)
}

func TestClaimRejectsMissingNode(t *testing.T) {
	s, _ := newFixture(t)
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true}

	var key codec.Key
	key[0] = 2
	_, err := s.Claim(context.Background(), "r1", Request{Delegate: d, IsAccessToken: true, NodeHash: key})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.KindNotFound, cerr.Kind)
}

func TestClaimRejectsBadPoP(t *testing.T) {
	s, store := newFixture(t)
	ctx := context.Background()
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true}

	data, key, err := codec.EncodeSuccessor([]byte("payload"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, data))

	_, err = s.Claim(ctx, "r1", Request{Delegate: d, IsAccessToken: true, NodeHash: key, PoP: "bogus"})
	var cerr *casfaerr.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, casfaerr.ErrInvalidPoP.Code, cerr.Code)
}

func TestClaimSucceedsWithValidPoP(t *testing.T) {
	s, store := newFixture(t)
	ctx := context.Background()
	d := &delegate.Delegate{ID: "leaf", Realm: "r1", Chain: []string{"root", "leaf"}, CanUpload: true}

	data, key, err := codec.EncodeSuccessor([]byte("payload"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, data))

	accessTokenBytes := []byte("at-secret")
	pop := popFor(data, accessTokenBytes)

	res, err := s.Claim(ctx, "r1", Request{
		Delegate:         d,
		IsAccessToken:    true,
		NodeHash:         key,
		AccessTokenBytes: accessTokenBytes,
		PoP:              pop,
	})
	require.NoError(t, err)
	require.False(t, res.AlreadyOwned)

	owned, err := s.Ownership.HasOwnership(ctx, key, d.ID)
	require.NoError(t, err)
	require.True(t, owned)
}
