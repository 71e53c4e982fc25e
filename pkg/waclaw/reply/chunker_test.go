package reply

import (
	"strings"
	"testing"
)

func TestChunk_UnderLimit(t *testing.T) {
	got := Chunk("hello world", 100)
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("Chunk() = %v, want [\"hello world\"]", got)
	}
}

func TestChunk_Empty(t *testing.T) {
	if got := Chunk("", 100); got != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", got)
	}
}

func TestChunk_NeverExceedsCap(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	for _, cap := range []int{10, 50, 1600, 4000} {
		chunks := Chunk(text, cap)
		for i, c := range chunks {
			if len(c) > cap {
				t.Errorf("cap=%d chunk[%d] length = %d, exceeds cap", cap, i, len(c))
			}
			if c == "" {
				t.Errorf("cap=%d chunk[%d] is empty", cap, i)
			}
		}
	}
}

func TestChunk_PreservesContentInOrder(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog repeatedly and then some more words follow after that"
	chunks := Chunk(text, 20)
	rejoined := strings.Join(chunks, "")
	if rejoined != text {
		t.Errorf("rejoined chunks = %q, want %q", rejoined, text)
	}
}

func TestChunk_SplitsOnNewlineFirst(t *testing.T) {
	text := "line one\nline two\nline three"
	chunks := Chunk(text, 9)
	for _, c := range chunks {
		if len(c) > 9 {
			t.Errorf("chunk %q exceeds cap 9", c)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Errorf("rejoined = %q, want %q", strings.Join(chunks, ""), text)
	}
}

func TestChunk_LongWordHardSplit(t *testing.T) {
	text := strings.Repeat("x", 50)
	chunks := Chunk(text, 10)
	if strings.Join(chunks, "") != text {
		t.Fatalf("rejoined = %q, want %q", strings.Join(chunks, ""), text)
	}
	for _, c := range chunks {
		if len(c) > 10 {
			t.Errorf("chunk %q exceeds cap 10", c)
		}
	}
}
