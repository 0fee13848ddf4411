package tree

import (
	"reflect"
	"testing"
)

func TestParsePath(t *testing.T) {
	segments, err := ParsePath("a/b/c")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if !reflect.DeepEqual(segments, []string{"a", "b", "c"}) {
		t.Errorf("segments = %v", segments)
	}

	empty, err := ParsePath("")
	if err != nil || empty != nil {
		t.Errorf("ParsePath(\"\") = %v, %v, want nil, nil", empty, err)
	}
}

func TestParsePathRejectsAbsolute(t *testing.T) {
	if _, err := ParsePath("/a/b"); err == nil {
		t.Error("expected error for an absolute path")
	}
}

func TestParsePathRejectsEmptySegment(t *testing.T) {
	if _, err := ParsePath("a//b"); err == nil {
		t.Error("expected error for an empty path segment")
	}
}

func TestParsePathRejectsDotDot(t *testing.T) {
	if _, err := ParsePath("a/../b"); err == nil {
		t.Error("expected error for '..' in a path")
	}
}

func TestParseIndexPath(t *testing.T) {
	indices, err := ParseIndexPath("0:3:12")
	if err != nil {
		t.Fatalf("ParseIndexPath: %v", err)
	}
	if !reflect.DeepEqual(indices, []int{0, 3, 12}) {
		t.Errorf("indices = %v", indices)
	}
}

func TestParseIndexPathRejectsNegative(t *testing.T) {
	if _, err := ParseIndexPath("0:-1"); err == nil {
		t.Error("expected error for a negative index")
	}
}

func TestJoinPath(t *testing.T) {
	if got := JoinPath([]string{"a", "b"}); got != "a/b" {
		t.Errorf("JoinPath = %q, want %q", got, "a/b")
	}
}
