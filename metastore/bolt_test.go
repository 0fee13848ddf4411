package metastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/boltdb/bolt"
)

func testStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "meta.bolt"), 0666, nil)
	if err != nil {
		t.Fatalf("failed to open bolt db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	return s
}

func TestBoltStoreGetMissing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on missing key: err = %v, want ErrNotFound", err)
	}
}

func TestBoltStorePutGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want %q", got, "v1")
	}

	if err := s.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get after overwrite = %q, want %q", got, "v2")
	}
}

func TestBoltStorePutIfAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutIfAbsent(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("first PutIfAbsent: %v", err)
	}

	err := s.PutIfAbsent(ctx, "k", []byte("v2"))
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("second PutIfAbsent: err = %v, want ErrConditionFailed", err)
	}
	var cfe *ConditionFailedError
	if !errors.As(err, &cfe) {
		t.Fatalf("expected *ConditionFailedError, got %T", err)
	}
	if string(cfe.Current) != "v1" {
		t.Errorf("Current = %q, want %q", cfe.Current, "v1")
	}
}

func TestBoltStorePutIfMatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.PutIfMatch(ctx, "k", []byte("v2"), []byte("v1")); err != nil {
		t.Fatalf("PutIfMatch with correct expected: %v", err)
	}

	err := s.PutIfMatch(ctx, "k", []byte("v3"), []byte("stale"))
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("PutIfMatch with stale expected: err = %v, want ErrConditionFailed", err)
	}
}

func TestBoltStoreDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestBoltStoreListPagination(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	page, err := s.List(ctx, "a/", "", 2)
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("page 1 len = %d, want 2", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a non-empty NextCursor for a truncated page")
	}

	page2, err := s.List(ctx, "a/", page.NextCursor, 2)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2.Items) != 1 {
		t.Fatalf("page 2 len = %d, want 1", len(page2.Items))
	}
	if page2.NextCursor != "" {
		t.Errorf("expected empty NextCursor on the last page, got %q", page2.NextCursor)
	}
	if page2.Items[0].Key != "a/3" {
		t.Errorf("page 2 item = %q, want %q", page2.Items[0].Key, "a/3")
	}
}
