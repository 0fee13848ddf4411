package scope

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
)

// String renders w in the textual grammar from spec.md §4.9/§6:
//   ipath#<scopeIndex>[:<idx>…]
//   depot:<depotId>@<version>#<idx>[:<idx>…]
func (w ProofWord) String() string {
	pathPart := formatIndexPath(w.Path)
	switch w.Word {
	case WordIPath:
		return "ipath#" + strconv.Itoa(w.ScopeIndex) + pathSuffix(pathPart)
	case WordDepot:
		return "depot:" + w.DepotID + "@" + strconv.Itoa(w.Version) + "#" + pathPart
	default:
		return ""
	}
}

func pathSuffix(pathPart string) string {
	if pathPart == "" {
		return ""
	}
	return ":" + pathPart
}

func formatIndexPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ":")
}

// ParseProof parses one textual proof word (spec.md §4.9).
func ParseProof(raw string) (ProofWord, error) {
	switch {
	case strings.HasPrefix(raw, "ipath#"):
		return parseIPath(raw[len("ipath#"):])
	case strings.HasPrefix(raw, "depot:"):
		return parseDepot(raw[len("depot:"):])
	default:
		return ProofWord{}, casfaerr.ErrInvalidProofWord.Withf("unrecognized proof word %q", raw)
	}
}

func parseIPath(rest string) (ProofWord, error) {
	parts := strings.Split(rest, ":")
	scopeIndex, err := strconv.Atoi(parts[0])
	if err != nil || scopeIndex < 0 {
		return ProofWord{}, casfaerr.ErrInvalidProofFormat.Withf("bad scope index in %q", rest)
	}
	path, err := parseIndexPath(parts[1:])
	if err != nil {
		return ProofWord{}, err
	}
	return ProofWord{Word: WordIPath, ScopeIndex: scopeIndex, Path: path}, nil
}

func parseDepot(rest string) (ProofWord, error) {
	atIdx := strings.IndexByte(rest, '@')
	hashIdx := strings.IndexByte(rest, '#')
	if atIdx < 0 || hashIdx < 0 || hashIdx < atIdx {
		return ProofWord{}, casfaerr.ErrInvalidProofFormat.Withf("bad depot proof %q", rest)
	}
	depotID := rest[:atIdx]
	version, err := strconv.Atoi(rest[atIdx+1 : hashIdx])
	if err != nil || version < 0 {
		return ProofWord{}, casfaerr.ErrInvalidProofFormat.Withf("bad depot version in %q", rest)
	}
	pathParts := strings.Split(rest[hashIdx+1:], ":")
	path, err := parseIndexPath(pathParts)
	if err != nil {
		return ProofWord{}, err
	}
	return ProofWord{Word: WordDepot, DepotID: depotID, Version: version, Path: path}, nil
}

func parseIndexPath(parts []string) ([]int, error) {
	if len(parts) == 1 && parts[0] == "" {
		return nil, nil
	}
	path := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, casfaerr.ErrInvalidProofFormat.Withf("bad child index %q", p)
		}
		path[i] = n
	}
	return path, nil
}

// ParseProofHeader parses the X-CAS-Proof JSON object { "<nodeHashHex>":
// "<word>" } into a map keyed by decoded node hash (spec.md §6). An empty
// or missing header is equivalent to an empty object.
func ParseProofHeader(raw string) (map[codec.Key]ProofWord, error) {
	if raw == "" {
		return nil, nil
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, casfaerr.ErrInvalidProofFormat.Withf("malformed proof header: %v", err)
	}

	out := make(map[codec.Key]ProofWord, len(fields))
	for hexHash, word := range fields {
		decoded, err := hex.DecodeString(hexHash)
		if err != nil || len(decoded) != 16 {
			return nil, casfaerr.ErrInvalidProofFormat.Withf("bad node hash %q in proof header", hexHash)
		}
		var key codec.Key
		copy(key[:], decoded)

		parsed, err := ParseProof(word)
		if err != nil {
			return nil, err
		}
		out[key] = parsed
	}
	return out, nil
}
