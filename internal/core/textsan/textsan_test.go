package textsan

import "testing"

func TestClean_StripsControlBytesButKeepsNewlines(t *testing.T) {
	s := New()
	in := "title\x00 with\x01 junk\nand a newline\tand a tab"
	got := s.Clean(in)
	want := "title with junk\nand a newline and a tab"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestClean_PreservesCaseAndDiacritics(t *testing.T) {
	s := New()
	in := "Café JavaScript Naïve"
	got := s.Clean(in)
	if got != in {
		t.Fatalf("expected diacritics and case preserved, got %q", got)
	}
}

func TestClean_FoldsFullwidthToASCII(t *testing.T) {
	s := New()
	in := "Ｈｅｌｌｏ" // fullwidth "Hello"
	got := s.Clean(in)
	if got != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}

func TestClean_CollapsesRepeatedWhitespace(t *testing.T) {
	s := New()
	got := s.Clean("  too    many     spaces   ")
	if got != "too many spaces" {
		t.Fatalf("got %q", got)
	}
}

func TestClean_EmptyStringIsEmpty(t *testing.T) {
	s := New()
	if got := s.Clean(""); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
