package fsops

import (
	"context"
	"io"

	"github.com/restic/chunker"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/topology"
)

// streamPolynomial is the same rolling-hash polynomial the teacher's
// ChunkBuf used (simplefs/chunks.go) — kept so boundary statistics stay
// comparable, even though WriteStream slices leaf content at the exact
// byte offsets topology.ComputeLayout dictates rather than at chunk edges.
const streamPolynomial = chunker.Pol(0x3DA3358B4DC173)

const (
	streamChunkMinSize = 256 * 1024
	streamChunkMaxSize = 1024 * 1024
)

// chunkedReader buffers an io.Reader through a content-defined chunker so
// WriteStream can pull arbitrarily-sized exact byte windows (the layout's
// per-node capacities) without holding the whole upload in memory at once.
// Grounded on simplefs/chunks.go's chunking loop — Next reuses its scratch
// buffer, so each chunk's bytes are copied out before the next call.
type chunkedReader struct {
	ckr     *chunker.Chunker
	scratch []byte
	pending []byte
}

func newChunkedReader(r io.Reader) *chunkedReader {
	ckr := chunker.NewWithBoundaries(r, streamPolynomial, streamChunkMinSize, streamChunkMaxSize)
	return &chunkedReader{
		ckr:     ckr,
		scratch: make([]byte, ckr.MaxSize),
	}
}

// readExact fills out completely from the chunk stream, pulling fresh
// chunks as needed. Returns io.ErrUnexpectedEOF if the source is shorter
// than the caller's declared size.
func (c *chunkedReader) readExact(out []byte) error {
	n := 0
	for n < len(out) {
		if len(c.pending) == 0 {
			chunk, err := c.ckr.Next(c.scratch)
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			if err != nil {
				return err
			}
			c.pending = append([]byte(nil), chunk.Data...)
		}
		take := len(out) - n
		if take > len(c.pending) {
			take = len(c.pending)
		}
		copy(out[n:], c.pending[:take])
		c.pending = c.pending[take:]
		n += take
	}
	return nil
}

// WriteStream is the non-inline counterpart to Write (spec.md §4.5
// "(expansion) streaming write"): it computes the Merkle B-Tree layout for
// size bytes up front, then streams r through nodeLimit-sized leaves and
// s-nodes bottom-up, never buffering more than one content-defined chunk at
// a time.
func (fs *FS) WriteStream(ctx context.Context, root codec.Key, path []string, r io.Reader, size int64, contentType string, nodeLimit uint32) (WriteResult, error) {
	if size < 0 {
		return WriteResult{}, casfaerr.ErrInvalidRoot.Withf("negative size %d", size)
	}
	if len(path) == 0 {
		return WriteResult{}, casfaerr.ErrInvalidRoot.Withf("root replacement via write is not allowed")
	}

	layout, err := topology.ComputeLayout(uint64(size), nodeLimit)
	if err != nil {
		return WriteResult{}, err
	}

	cr := newChunkedReader(r)
	fileInfo := codec.FileInfo{FileSize: uint64(size), ContentType: contentType}

	rootKey, err := fs.buildStreamNode(ctx, layout, cr, fileInfo, true)
	if err != nil {
		return WriteResult{}, err
	}

	dirSegments, name := path[:len(path)-1], path[len(path)-1]
	rootAfterDirs, parent, err := fs.tree.EnsureParentDirs(ctx, root, dirSegments)
	if err != nil {
		return WriteResult{}, err
	}
	_ = rootAfterDirs

	idx := indexOfName(parent.Node.Names, name)
	var newParentKey codec.Key
	created := idx < 0
	if idx >= 0 {
		newParentKey, err = fs.tree.ReplaceChild(ctx, parent.Node, idx, rootKey)
	} else {
		newParentKey, err = fs.tree.InsertChild(ctx, parent.Node, name, rootKey)
	}
	if err != nil {
		return WriteResult{}, err
	}

	newRoot, err := fs.tree.RebuildMerklePath(ctx, parent.Ancestors, newParentKey)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{NewRoot: newRoot, Created: created}, nil
}

// buildStreamNode materializes layout bottom-up: children first (each an
// s-node, or an f-node's FileInfo payload at the true root), then the node
// that owns them.
func (fs *FS) buildStreamNode(ctx context.Context, layout *topology.Layout, cr *chunkedReader, fileInfo codec.FileInfo, isRoot bool) (codec.Key, error) {
	own := make([]byte, layout.OwnData)
	if err := cr.readExact(own); err != nil {
		return codec.Key{}, err
	}

	children := make([]codec.Key, 0, len(layout.Children))
	for _, childLayout := range layout.Children {
		childKey, err := fs.buildStreamNode(ctx, childLayout, cr, codec.FileInfo{}, false)
		if err != nil {
			return codec.Key{}, err
		}
		children = append(children, childKey)
	}

	var data []byte
	var key codec.Key
	var err error
	if isRoot {
		data, key, err = codec.EncodeFile(own, fileInfo.ContentType, fileInfo.FileSize, children)
	} else {
		data, key, err = codec.EncodeSuccessor(own, children)
	}
	if err != nil {
		return codec.Key{}, err
	}
	if err := fs.store.Put(ctx, key, data); err != nil {
		return codec.Key{}, err
	}
	return key, nil
}
