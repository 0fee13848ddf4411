// Package codec implements the CAS binary node format: encoding and
// decoding of the four node variants (f-node, s-node, d-node, set-node)
// and the derivation of a node's content key from its serialized bytes
// (spec.md §3, §4.1). Grounded on the teacher's checksum-then-serialize
// pattern in layerfs/node.go and simplefs/node.go's low-level record
// layout, generalized from a single JSON-tagged struct per node to a
// tagged variant with a binary, size-prefixed wire format.
package codec

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

// Node is the decoded, in-memory form of any of the four CAS node kinds.
// Only the fields relevant to Kind are populated by Decode.
type Node struct {
	Kind     Kind
	Children []Key    // s-node, d-node, set-node, and f-node (sub-block pointers)
	Data     []byte   // f-node, s-node: this node's own payload bytes
	FileInfo FileInfo // f-node only
	Names    []string // d-node only, parallel to Children, sorted+unique
}

// EncodeFile serializes an f-node (a file's root) and returns its bytes and
// derived key. children may be nil/empty for a file small enough to embed
// entirely inline.
func EncodeFile(data []byte, contentType string, fileSize uint64, children []Key) ([]byte, Key, error) {
	fi := FileInfo{FileSize: fileSize, ContentType: contentType}
	fiBytes, err := fi.encode()
	if err != nil {
		return nil, Key{}, err
	}

	h := header{
		kind:        KindFile,
		hashAlg:     HashBlake3_128,
		payloadSize: uint32(fileInfoLen + len(data)),
		childCount:  uint32(len(children)),
	}

	buf := new(bytes.Buffer)
	buf.Write(h.encode())
	buf.Write(fiBytes)
	for _, c := range children {
		buf.Write(c[:])
	}
	buf.Write(data)

	encoded := buf.Bytes()
	return encoded, DeriveKey(encoded), nil
}

// EncodeSuccessor serializes an s-node (internal or file-successor node).
func EncodeSuccessor(data []byte, children []Key) ([]byte, Key, error) {
	h := header{
		kind:        KindSuccessor,
		hashAlg:     HashBlake3_128,
		payloadSize: uint32(len(data)),
		childCount:  uint32(len(children)),
	}

	buf := new(bytes.Buffer)
	buf.Write(h.encode())
	for _, c := range children {
		buf.Write(c[:])
	}
	buf.Write(data)

	encoded := buf.Bytes()
	return encoded, DeriveKey(encoded), nil
}

// EncodeDict serializes a d-node (directory). Entries are canonicalized by
// sorting (name, child) pairs by the UTF-8 bytes of name before encoding,
// so callers never need to pre-sort; this mirrors the sort-at-encode-time
// rule in spec.md §4.1/§9.
func EncodeDict(children []Key, names []string) ([]byte, Key, error) {
	if len(children) != len(names) {
		return nil, Key{}, casfaerr.New(casfaerr.KindValidation, "FAIL_NAMES_DUPLICATE").
			Withf("children/names length mismatch: %d vs %d", len(children), len(names))
	}

	type entry struct {
		name  string
		child Key
	}
	entries := make([]entry, len(names))
	for i := range names {
		entries[i] = entry{name: names[i], child: children[i]}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for i := 1; i < len(entries); i++ {
		if entries[i-1].name == entries[i].name {
			return nil, Key{}, casfaerr.New(casfaerr.KindValidation, "FAIL_NAMES_DUPLICATE").
				Withf("duplicate child name %q", entries[i].name)
		}
	}

	namesBuf := new(bytes.Buffer)
	for _, e := range entries {
		nameBytes := []byte(e.name)
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(nameBytes)))
		namesBuf.Write(lenBuf[:])
		namesBuf.Write(nameBytes)
	}

	h := header{
		kind:        KindDict,
		hashAlg:     HashBlake3_128,
		payloadSize: uint32(namesBuf.Len()),
		childCount:  uint32(len(entries)),
	}

	buf := new(bytes.Buffer)
	buf.Write(h.encode())
	for _, e := range entries {
		buf.Write(e.child[:])
	}
	buf.Write(namesBuf.Bytes())

	encoded := buf.Bytes()
	return encoded, DeriveKey(encoded), nil
}

// EncodeSet serializes a set-node (authorization scope set): children
// sorted ascending by key bytes, unique, at least 2.
func EncodeSet(children []Key) ([]byte, Key, error) {
	if len(children) < 2 {
		return nil, Key{}, casfaerr.New(casfaerr.KindValidation, "FAIL_SET_TOO_SMALL").
			Withf("set-node requires >=2 children, got %d", len(children))
	}

	sorted := make([]Key, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] == sorted[i] {
			return nil, Key{}, casfaerr.New(casfaerr.KindValidation, "FAIL_SET_UNSORTED_OR_DUP").
				Withf("duplicate child key in set-node")
		}
	}

	h := header{
		kind:        KindSet,
		hashAlg:     HashBlake3_128,
		payloadSize: 0,
		childCount:  uint32(len(sorted)),
	}

	buf := new(bytes.Buffer)
	buf.Write(h.encode())
	for _, c := range sorted {
		buf.Write(c[:])
	}

	encoded := buf.Bytes()
	return encoded, DeriveKey(encoded), nil
}

// Decode parses and fully validates a serialized node, per spec.md §4.1:
// magic, reserved bits, declared-vs-actual length, and kind-specific
// payload constraints (FileInfo shape, name sortedness/uniqueness, set
// sortedness/uniqueness/min-size).
func Decode(buf []byte) (Node, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return Node{}, err
	}

	if h.totalLen() != uint64(len(buf)) {
		return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
			WithDetails(map[string]any{"offset": headerLen}).
			Withf("declared length %d != actual %d", h.totalLen(), len(buf))
	}

	childStart := headerLen
	childEnd := childStart + 16*int(h.childCount)
	children := make([]Key, h.childCount)
	for i := 0; i < int(h.childCount); i++ {
		copy(children[i][:], buf[childStart+16*i:childStart+16*(i+1)])
	}

	switch h.kind {
	case KindFile:
		if h.payloadSize < fileInfoLen {
			return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_BAD_FILEINFO").
				WithDetails(map[string]any{"offset": childEnd}).
				Withf("f-node payload shorter than FileInfo block")
		}
		fi, err := decodeFileInfo(buf, childEnd)
		if err != nil {
			return Node{}, err
		}
		data := buf[childEnd+fileInfoLen:]
		return Node{Kind: KindFile, Children: children, FileInfo: fi, Data: data}, nil

	case KindSuccessor:
		data := buf[childEnd:]
		return Node{Kind: KindSuccessor, Children: children, Data: data}, nil

	case KindDict:
		names, err := decodeNames(buf[childEnd:], int(h.childCount), childEnd)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindDict, Children: children, Names: names}, nil

	case KindSet:
		if h.payloadSize != 0 {
			return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_SET_TOO_SMALL").
				WithDetails(map[string]any{"offset": childEnd}).
				Withf("set-node payload size must be 0, got %d", h.payloadSize)
		}
		if h.childCount < 2 {
			return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_SET_TOO_SMALL").
				WithDetails(map[string]any{"offset": childStart}).
				Withf("set-node requires >=2 children, got %d", h.childCount)
		}
		for i := 1; i < len(children); i++ {
			if bytes.Compare(children[i-1][:], children[i][:]) >= 0 {
				return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_SET_UNSORTED_OR_DUP").
					WithDetails(map[string]any{"offset": childStart + 16*i}).
					Withf("set-node children not strictly sorted at index %d", i)
			}
		}
		return Node{Kind: KindSet, Children: children}, nil

	default:
		return Node{}, casfaerr.New(casfaerr.KindValidation, "FAIL_RESERVED_BITS").
			WithDetails(map[string]any{"offset": 4}).
			Withf("unknown node kind %d", h.kind)
	}
}

// decodeNames parses the length-prefixed UTF-8 name section of a d-node and
// validates strict UTF-8-byte-order sortedness and uniqueness.
func decodeNames(buf []byte, count int, baseOffset int) ([]string, error) {
	names := make([]string, count)
	pos := 0
	for i := 0; i < count; i++ {
		if pos+2 > len(buf) {
			return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
				WithDetails(map[string]any{"offset": baseOffset + pos}).
				Withf("truncated name length prefix")
		}
		nameLen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+nameLen > len(buf) {
			return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
				WithDetails(map[string]any{"offset": baseOffset + pos}).
				Withf("truncated name bytes")
		}
		names[i] = string(buf[pos : pos+nameLen])
		pos += nameLen
	}
	if pos != len(buf) {
		return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
			WithDetails(map[string]any{"offset": baseOffset + pos}).
			Withf("trailing bytes after names section")
	}

	for i := 1; i < len(names); i++ {
		if names[i-1] == names[i] {
			return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_NAMES_DUPLICATE").
				WithDetails(map[string]any{"offset": baseOffset}).
				Withf("duplicate child name %q", names[i])
		}
		if names[i-1] > names[i] {
			return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_NAMES_UNSORTED").
				WithDetails(map[string]any{"offset": baseOffset}).
				Withf("names not sorted at index %d (%q > %q)", i, names[i-1], names[i])
		}
	}

	return names, nil
}
