package codec

import "lukechampine.com/blake3"

// Key is a node's 16-byte content address (spec.md §3 "Node key"), with the
// first byte possibly overwritten by the monotonic size-class flag (§4.1).
type Key [16]byte

// ZeroKey is the conventional absence-of-key value; real keys never equal it
// because the flag byte of a real node is never simultaneously the all-zero
// hash that would be required to collide with it.
var ZeroKey = Key{}

// sizeFlag returns the smallest flag byte (H<<4)|L, L in [1,15], H in
// [0,15], such that L*16^H >= s. Flag bytes increase monotonically with the
// size they cover and each is tight (no smaller flag byte covers the same
// size) because, for fixed ordering of flag values 0x01.. 0xFF, the covered
// capacity L*16^H is itself non-decreasing: within a block of fixed H it
// grows with L (1..15), and crossing to H+1 at L=1 (16*16^H) always exceeds
// the prior block's ceiling (15*16^H). s == 0 is the reserved 0x00 flag.
func sizeFlag(s uint64) byte {
	if s == 0 {
		return 0x00
	}
	for flag := 1; flag <= 0xff; flag++ {
		l := flag & 0xf
		h := flag >> 4
		if l == 0 {
			continue
		}
		capacity := capacityFor(uint8(h), uint8(l))
		if capacity >= s {
			return byte(flag)
		}
	}
	// s falls in [15*16^15+1, ...]; out of the representable range. Saturate
	// at the maximum flag rather than panic — callers are expected to keep
	// node sizes within the B-Tree's designed bounds.
	return 0xff
}

// capacityFor returns L*16^H, the size covered by a given (H, L) pair.
func capacityFor(h, l uint8) uint64 {
	capacity := uint64(l)
	for i := uint8(0); i < h; i++ {
		capacity *= 16
	}
	return capacity
}

// flagCapacity returns the capacity covered by a previously computed flag
// byte, the inverse of sizeFlag: flagCapacity(sizeFlag(s)) >= s.
func flagCapacity(flag byte) uint64 {
	if flag == 0 {
		return 0
	}
	return capacityFor(uint8(flag>>4), uint8(flag&0xf))
}

// DeriveKey computes a node's content key from its fully serialized bytes:
// BLAKE3-128 of the bytes, then the first byte replaced by the monotonic
// size-class flag for len(encoded).
func DeriveKey(encoded []byte) Key {
	h := blake3.New(16, nil)
	_, _ = h.Write(encoded)
	sum := h.Sum(nil)

	var k Key
	copy(k[:], sum)
	k[0] = sizeFlag(uint64(len(encoded)))
	return k
}
