package fsops

import (
	"bytes"
	"context"
	"testing"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

func TestWriteStreamRoundTripsSmallFile(t *testing.T) {
	store := newMemStore()
	fs := New(store)
	ctx := context.Background()

	content := bytes.Repeat([]byte("x"), 500)
	result, err := fs.WriteStream(ctx, codec.EmptyDictKey, []string{"big.bin"}, bytes.NewReader(content), int64(len(content)), "application/octet-stream", 1024)
	if err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	if !result.Created {
		t.Error("expected Created = true for a new streamed file")
	}

	resolved, err := fs.tree.ResolvePath(ctx, result.NewRoot, []string{"big.bin"}, nil)
	if err != nil {
		t.Fatalf("ResolvePath after WriteStream: %v", err)
	}
	if resolved.Node.FileInfo.FileSize != uint64(len(content)) {
		t.Errorf("FileSize = %d, want %d", resolved.Node.FileInfo.FileSize, len(content))
	}
}

func TestWriteStreamSpansMultipleNodesForLargeFile(t *testing.T) {
	store := newMemStore()
	fs := New(store)
	ctx := context.Background()

	// Small node limit forces a multi-level tree for this size.
	const nodeLimit = 256
	content := bytes.Repeat([]byte("y"), 100_000)
	result, err := fs.WriteStream(ctx, codec.EmptyDictKey, []string{"big.bin"}, bytes.NewReader(content), int64(len(content)), "", nodeLimit)
	if err != nil {
		t.Fatalf("WriteStream: %v", err)
	}

	resolved, err := fs.tree.ResolvePath(ctx, result.NewRoot, []string{"big.bin"}, nil)
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if len(resolved.Node.Children) == 0 {
		t.Error("expected the streamed root f-node to have child s-nodes for a large file")
	}
}

func TestWriteStreamRejectsNegativeSize(t *testing.T) {
	store := newMemStore()
	fs := New(store)

	if _, err := fs.WriteStream(context.Background(), codec.EmptyDictKey, []string{"f"}, bytes.NewReader(nil), -1, "", 1024); err == nil {
		t.Error("expected an error for a negative declared size")
	}
}

func TestWriteStreamRejectsEmptyPath(t *testing.T) {
	store := newMemStore()
	fs := New(store)

	if _, err := fs.WriteStream(context.Background(), codec.EmptyDictKey, nil, bytes.NewReader(nil), 0, "", 1024); err == nil {
		t.Error("expected an error writing to an empty path")
	}
}
