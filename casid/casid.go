// Package casid renders 16-byte content keys and other domain identifiers
// as prefixed Crockford Base32 strings at the API boundary (spec.md §6).
//
// Crockford's alphabet excludes I, L, O and U to avoid visual confusion and
// accidental profanity; no library in the retrieved corpus implements this
// specific variant (they implement RFC 4648 standard/hex alphabets), so it
// is hand-rolled here — see DESIGN.md.
package casid

import (
	"strings"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const encodedLen = 26 // ceil(16*8/5) Crockford chars for a 16-byte value, unpadded

var decodeMap [256]int8

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i, c := range alphabet {
		decodeMap[c] = int8(i)
	}
	// Crockford allows these common misreadings as decode aliases.
	decodeMap['O'] = decodeMap['0']
	decodeMap['o'] = decodeMap['0']
	decodeMap['I'] = decodeMap['1']
	decodeMap['i'] = decodeMap['1']
	decodeMap['L'] = decodeMap['1']
	decodeMap['l'] = decodeMap['1']
}

// Prefix is a namespace tag rendered before the Base32 body, one per domain
// identifier kind (spec.md §6).
type Prefix string

const (
	PrefixNode     Prefix = "nod_"
	PrefixDepot    Prefix = "dpt_"
	PrefixDelegate Prefix = "dlt_"
	PrefixDlg      Prefix = "dlg_"
	PrefixRequest  Prefix = "req_"
	PrefixTicket   Prefix = "tkt_"
)

// Encode renders a 16-byte value as PREFIX + 26-char uppercase Crockford Base32.
func Encode(prefix Prefix, raw [16]byte) string {
	return string(prefix) + encode32(raw[:])
}

// Decode strips prefix and decodes the Base32 body back to 16 bytes. It
// accepts the expected prefix only; a mismatched prefix is a format error.
func Decode(prefix Prefix, s string) ([16]byte, error) {
	var out [16]byte
	if !strings.HasPrefix(s, string(prefix)) {
		return out, casfaerr.ErrInvalidRoot.Withf("expected prefix %q in %q", prefix, s)
	}
	body := s[len(prefix):]
	if len(body) != encodedLen {
		return out, casfaerr.ErrInvalidRoot.Withf("bad id length in %q", s)
	}
	decoded, err := decode32(body)
	if err != nil {
		return out, casfaerr.ErrInvalidRoot.Withf("bad id encoding in %q: %v", s, err)
	}
	copy(out[:], decoded)
	return out, nil
}

// encode32 encodes arbitrary bytes to Crockford Base32 without padding, 5
// bits at a time, most significant bit first.
func encode32(data []byte) string {
	var sb strings.Builder
	var buf uint64
	bits := 0
	for _, b := range data {
		buf = (buf << 8) | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			idx := (buf >> uint(bits)) & 0x1f
			sb.WriteByte(alphabet[idx])
		}
	}
	if bits > 0 {
		idx := (buf << uint(5-bits)) & 0x1f
		sb.WriteByte(alphabet[idx])
	}
	return sb.String()
}

// decode32 is the inverse of encode32 for a body known to encode exactly 16
// bytes (the only size casid ever decodes).
func decode32(s string) ([]byte, error) {
	var buf uint64
	bits := 0
	out := make([]byte, 0, 16)
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, casfaerr.ErrInvalidRoot.Withf("invalid base32 char %q", s[i])
		}
		buf = (buf << 5) | uint64(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte((buf>>uint(bits))&0xff))
		}
	}
	if len(out) < 16 {
		return nil, casfaerr.ErrInvalidRoot.Withf("truncated id")
	}
	return out[:16], nil
}
