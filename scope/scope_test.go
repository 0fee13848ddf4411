package scope

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/boltdb/bolt"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/depot"
	"github.com/shazhou-ww/casfa-sub002/metastore"
)

// memStore is a minimal in-memory nodestore.Store for exercising the
// proof engine without a bolt-backed fixture.
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

func testDepotRegistry(t *testing.T) *depot.Store {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "scope.bolt"), 0666, nil)
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	meta, err := metastore.NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	return depot.NewStore(meta)
}

func TestScopeRootsSingleNode(t *testing.T) {
	e := New(newMemStore(), testDepotRegistry(t))
	var scopeHash codec.Key
	scopeHash[0] = 7
	d := &delegate.Delegate{ScopeNodeHash: &scopeHash}

	roots, err := e.ScopeRoots(context.Background(), d)
	if err != nil {
		t.Fatalf("ScopeRoots: %v", err)
	}
	if len(roots) != 1 || roots[0] != scopeHash {
		t.Errorf("roots = %v, want [%v]", roots, scopeHash)
	}
}

func TestScopeRootsSetNode(t *testing.T) {
	store := newMemStore()
	e := New(store, testDepotRegistry(t))
	ctx := context.Background()

	a, b := codec.Key{}, codec.Key{}
	a[0], b[0] = 1, 2
	setData, setKey, err := codec.EncodeSet([]codec.Key{a, b})
	if err != nil {
		t.Fatalf("EncodeSet: %v", err)
	}
	store.Put(ctx, setKey, setData)

	d := &delegate.Delegate{ScopeSetNodeID: &setKey}
	roots, err := e.ScopeRoots(ctx, d)
	if err != nil {
		t.Fatalf("ScopeRoots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("roots = %v, want 2 entries", roots)
	}
}

func TestVerifyIPathWalksToTarget(t *testing.T) {
	store := newMemStore()
	e := New(store, testDepotRegistry(t))
	ctx := context.Background()

	leafData, leafKey, _ := codec.EncodeSuccessor([]byte("leaf"), nil)
	store.Put(ctx, leafKey, leafData)
	rootData, rootKey, _ := codec.EncodeSuccessor(nil, []codec.Key{leafKey})
	store.Put(ctx, rootKey, rootData)

	d := &delegate.Delegate{ScopeNodeHash: &rootKey}
	proof := ProofWord{Word: WordIPath, ScopeIndex: 0, Path: []int{0}}

	if err := e.Verify(ctx, d, leafKey, proof); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyIPathRejectsWrongTarget(t *testing.T) {
	store := newMemStore()
	e := New(store, testDepotRegistry(t))
	ctx := context.Background()

	leafData, leafKey, _ := codec.EncodeSuccessor([]byte("leaf"), nil)
	store.Put(ctx, leafKey, leafData)
	rootData, rootKey, _ := codec.EncodeSuccessor(nil, []codec.Key{leafKey})
	store.Put(ctx, rootKey, rootData)

	d := &delegate.Delegate{ScopeNodeHash: &rootKey}
	proof := ProofWord{Word: WordIPath, ScopeIndex: 0, Path: []int{0}}

	var wrongTarget codec.Key
	wrongTarget[0] = 0xff
	if err := e.Verify(ctx, d, wrongTarget, proof); err == nil {
		t.Error("expected PATH_MISMATCH verifying against the wrong target hash")
	}
}

func TestVerifyIPathRejectsOutOfBoundsScopeIndex(t *testing.T) {
	store := newMemStore()
	e := New(store, testDepotRegistry(t))
	ctx := context.Background()

	var scopeHash codec.Key
	scopeHash[0] = 1
	d := &delegate.Delegate{ScopeNodeHash: &scopeHash}
	proof := ProofWord{Word: WordIPath, ScopeIndex: 5}

	if err := e.Verify(ctx, d, scopeHash, proof); err == nil {
		t.Error("expected SCOPE_ROOT_OUT_OF_BOUNDS for an out-of-range scope index")
	}
}

func TestVerifyDepotRequiresManageCapability(t *testing.T) {
	reg := testDepotRegistry(t)
	e := New(newMemStore(), reg)
	ctx := context.Background()

	dep, err := reg.Create(ctx, "r1", "main", codec.EmptyDictKey, 8, "root", "")
	if err != nil {
		t.Fatalf("Create depot: %v", err)
	}

	d := &delegate.Delegate{Realm: "r1", CanManageDepot: false}
	proof := ProofWord{Word: WordDepot, DepotID: dep.DepotID, Version: 0}
	if err := e.Verify(ctx, d, codec.EmptyDictKey, proof); err == nil {
		t.Error("expected DEPOT_ACCESS_DENIED without CanManageDepot")
	}
}

func TestVerifyDepotResolvesCurrentVersion(t *testing.T) {
	reg := testDepotRegistry(t)
	e := New(newMemStore(), reg)
	ctx := context.Background()

	dep, err := reg.Create(ctx, "r1", "main", codec.EmptyDictKey, 8, "root", "")
	if err != nil {
		t.Fatalf("Create depot: %v", err)
	}

	d := &delegate.Delegate{Realm: "r1", CanManageDepot: true}
	proof := ProofWord{Word: WordDepot, DepotID: dep.DepotID, Version: 0}
	if err := e.Verify(ctx, d, codec.EmptyDictKey, proof); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
