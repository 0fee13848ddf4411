package codec

// EmptyDictBytes is the exact serialized form of the well-known empty
// directory: a bare 16-byte header with kind=dict, count=0, size=0
// (spec.md §3 "Well-known nodes").
var EmptyDictBytes = header{kind: KindDict, hashAlg: HashBlake3_128}.encode()

// EmptyDictKey is the content key of EmptyDictBytes, computed once and
// recognized system-wide without ever touching the node store.
var EmptyDictKey = DeriveKey(EmptyDictBytes)

// IsWellKnown reports whether k is a key the system recognizes without a
// node-store lookup.
func IsWellKnown(k Key) bool {
	return k == EmptyDictKey
}
