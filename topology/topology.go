// Package topology computes the B-Tree layout a file of a given size takes
// when encoded into fixed-size content-addressed nodes (spec.md §3 "B-Tree
// invariant", §4.2). It is a pure function of (fileSize, nodeLimit); the
// layout decides how many children each level has and how much of a node's
// own space holds data versus child pointers, independent of any node
// store. Grounded on the teacher's recursive chunk-boundary math in
// simplefs/chunks.go, generalized from a rolling content hash to the
// deterministic capacity recursion the CAS format requires.
package topology

import "github.com/shazhou-ww/casfa-sub002/casfaerr"

const keySize = 16 // bytes per child pointer
const headerSize = 16

// Layout describes one node in the computed tree: how many of its own bytes
// hold file data, and the sub-layouts of its children in left-to-right
// order. A leaf Layout has no Children.
type Layout struct {
	OwnData  uint64
	Children []*Layout
}

// TotalDataSize sums OwnData across this node and all descendants; used by
// tests to check the layout accounts for exactly fileSize bytes.
func (l *Layout) TotalDataSize() uint64 {
	total := l.OwnData
	for _, c := range l.Children {
		total += c.TotalDataSize()
	}
	return total
}

// Capacity returns C(d), the maximum file size representable by a subtree
// of depth d at the given usable space L = nodeLimit - headerSize:
// C(d) = L^d / 16^(d-1) for d >= 1, and C(0) = 0.
func Capacity(depth int, nodeLimit uint32) uint64 {
	if depth <= 0 {
		return 0
	}
	l := uint64(nodeLimit) - headerSize
	capacity := l
	for i := 1; i < depth; i++ {
		capacity = capacity * l / keySize
	}
	return capacity
}

// ComputeLayout produces the unique layout tree for fileSize bytes under
// nodeLimit, per the greedy leftmost-fill algorithm in spec.md §4.2.
func ComputeLayout(fileSize uint64, nodeLimit uint32) (*Layout, error) {
	if nodeLimit <= headerSize+keySize {
		return nil, casfaerr.ErrInvalidRoot.Withf("nodeLimit %d too small to hold any child pointer", nodeLimit)
	}
	l := uint64(nodeLimit) - headerSize

	if fileSize <= l {
		return &Layout{OwnData: fileSize}, nil
	}

	depth := minDepth(fileSize, nodeLimit)
	return fill(fileSize, depth, nodeLimit), nil
}

// minDepth finds the smallest d such that Capacity(d, nodeLimit) >= fileSize.
func minDepth(fileSize uint64, nodeLimit uint32) int {
	depth := 1
	for Capacity(depth, nodeLimit) < fileSize {
		depth++
	}
	return depth
}

// fill recursively builds the layout for `remaining` bytes at the given
// depth, per spec.md §4.2 step 3: childCount = ceil((R-L)/(C(d-1)-16)),
// ownData = L - 16*childCount, and the rest is distributed greedily
// leftmost-first into children of capacity C(d-1).
func fill(remaining uint64, depth int, nodeLimit uint32) *Layout {
	l := uint64(nodeLimit) - headerSize

	if depth == 1 {
		return &Layout{OwnData: remaining}
	}

	childCapacity := Capacity(depth-1, nodeLimit)
	childCount := ceilDiv(remaining-l, childCapacity-headerSize)
	ownData := l - keySize*childCount

	layout := &Layout{OwnData: ownData}
	left := remaining - ownData
	for i := uint64(0); i < childCount; i++ {
		take := childCapacity
		if left < take {
			take = left
		}
		layout.Children = append(layout.Children, fill(take, depth-1, nodeLimit))
		left -= take
	}

	return layout
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
