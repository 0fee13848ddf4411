package codec

import (
	"encoding/binary"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

// Magic identifies a CAS node's first four bytes: "CAS\x01" read little-endian.
const Magic uint32 = 0x01534143

// headerLen is the fixed 16-byte header size shared by every node kind.
const headerLen = 16

// Kind distinguishes the four CAS node variants (spec.md §3), encoded in
// the low two bits of the header's flags word.
type Kind uint8

const (
	KindFile      Kind = 0 // f-node: file root, carries FileInfo
	KindSuccessor Kind = 1 // s-node: file successor / internal node
	KindDict      Kind = 2 // d-node: directory
	KindSet       Kind = 3 // set-node: authorization scope set
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSuccessor:
		return "successor"
	case KindDict:
		return "dict"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// HashAlgorithm identifies the key-derivation hash recorded in the header's
// flags word (bits 8-15). Only BLAKE3-128 is specified today.
type HashAlgorithm uint8

const (
	HashBlake3_128 HashAlgorithm = 0
)

// header is the decoded form of a node's 16-byte binary header.
type header struct {
	kind        Kind
	extCount    uint8 // header extension count (bits 2-3); always 0 today
	blockClass  uint8 // block-size class (bits 4-7); reserved for future use
	hashAlg     HashAlgorithm
	payloadSize uint32
	childCount  uint32
}

func (h header) encode() []byte {
	buf := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)

	flags := uint32(h.kind) & 0x3
	flags |= (uint32(h.extCount) & 0x3) << 2
	flags |= (uint32(h.blockClass) & 0xf) << 4
	flags |= (uint32(h.hashAlg) & 0xff) << 8
	binary.LittleEndian.PutUint32(buf[4:8], flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.payloadSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.childCount)
	return buf
}

// decodeHeader parses and validates the fixed 16-byte header at the start
// of buf. It does not validate total length against payload/children; the
// caller does that once the kind-specific layout is known.
func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerLen {
		return header{}, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
			WithDetails(map[string]any{"offset": 0}).
			Withf("buffer shorter than header (%d bytes)", len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return header{}, casfaerr.New(casfaerr.KindValidation, "FAIL_MAGIC").
			WithDetails(map[string]any{"offset": 0}).
			Withf("bad magic %#x", magic)
	}

	flags := binary.LittleEndian.Uint32(buf[4:8])
	if flags&0xffff0000 != 0 {
		return header{}, casfaerr.New(casfaerr.KindValidation, "FAIL_RESERVED_BITS").
			WithDetails(map[string]any{"offset": 4}).
			Withf("reserved bits set in flags %#x", flags)
	}

	h := header{
		kind:        Kind(flags & 0x3),
		extCount:    uint8((flags >> 2) & 0x3),
		blockClass:  uint8((flags >> 4) & 0xf),
		hashAlg:     HashAlgorithm((flags >> 8) & 0xff),
		payloadSize: binary.LittleEndian.Uint32(buf[8:12]),
		childCount:  binary.LittleEndian.Uint32(buf[12:16]),
	}
	return h, nil
}

// totalLen returns the declared total node length: header + children + payload.
func (h header) totalLen() uint64 {
	return headerLen + 16*uint64(h.childCount) + uint64(h.payloadSize)
}
