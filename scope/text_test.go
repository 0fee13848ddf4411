package scope

import (
	"reflect"
	"strings"
	"testing"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

func TestProofWordStringAndParseRoundTripIPath(t *testing.T) {
	w := ProofWord{Word: WordIPath, ScopeIndex: 2, Path: []int{0, 5}}
	s := w.String()
	if s != "ipath#2:0:5" {
		t.Fatalf("String() = %q", s)
	}

	parsed, err := ParseProof(s)
	if err != nil {
		t.Fatalf("ParseProof: %v", err)
	}
	if !reflect.DeepEqual(parsed, w) {
		t.Errorf("parsed = %+v, want %+v", parsed, w)
	}
}

func TestProofWordStringAndParseRoundTripIPathNoPath(t *testing.T) {
	w := ProofWord{Word: WordIPath, ScopeIndex: 0}
	s := w.String()
	if s != "ipath#0" {
		t.Fatalf("String() = %q", s)
	}
	parsed, err := ParseProof(s)
	if err != nil {
		t.Fatalf("ParseProof: %v", err)
	}
	if parsed.Word != WordIPath || parsed.ScopeIndex != 0 || len(parsed.Path) != 0 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestProofWordStringAndParseRoundTripDepot(t *testing.T) {
	w := ProofWord{Word: WordDepot, DepotID: "dpt_abc", Version: 3, Path: []int{1}}
	s := w.String()
	if s != "depot:dpt_abc@3#1" {
		t.Fatalf("String() = %q", s)
	}

	parsed, err := ParseProof(s)
	if err != nil {
		t.Fatalf("ParseProof: %v", err)
	}
	if !reflect.DeepEqual(parsed, w) {
		t.Errorf("parsed = %+v, want %+v", parsed, w)
	}
}

func TestParseProofRejectsUnrecognized(t *testing.T) {
	if _, err := ParseProof("bogus#0"); err == nil {
		t.Error("expected error for an unrecognized proof word")
	}
}

func TestParseProofRejectsMalformedIndices(t *testing.T) {
	cases := []string{"ipath#-1", "ipath#0:x", "depot:d@-1#0", "depot:d@0#x"}
	for _, c := range cases {
		if _, err := ParseProof(c); err == nil {
			t.Errorf("ParseProof(%q): expected error", c)
		}
	}
}

func TestParseProofHeader(t *testing.T) {
	var key codec.Key
	key[0] = 0xab
	hexHash := "ab" + strings.Repeat("00", 15)

	raw := `{"` + hexHash + `":"ipath#0"}`
	parsed, err := ParseProofHeader(raw)
	if err != nil {
		t.Fatalf("ParseProofHeader: %v", err)
	}
	word, ok := parsed[key]
	if !ok {
		t.Fatalf("expected an entry for key %x", key)
	}
	if word.Word != WordIPath || word.ScopeIndex != 0 {
		t.Errorf("word = %+v", word)
	}
}

func TestParseProofHeaderEmpty(t *testing.T) {
	parsed, err := ParseProofHeader("")
	if err != nil {
		t.Fatalf("ParseProofHeader(\"\"): %v", err)
	}
	if parsed != nil {
		t.Errorf("expected nil map for an empty header, got %+v", parsed)
	}
}

func TestParseProofHeaderRejectsMalformedHash(t *testing.T) {
	if _, err := ParseProofHeader(`{"notahexhash":"ipath#0"}`); err == nil {
		t.Error("expected error for a malformed node hash in the proof header")
	}
}
