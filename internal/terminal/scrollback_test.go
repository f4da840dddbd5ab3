package terminal

import "testing"

func lineOf(s string) *Line {
	l := NewLine(len(s))
	for i, r := range s {
		l.Cells[i].Rune = r
	}
	return l
}

func TestScrollback_KeepsNewest(t *testing.T) {
	sb := NewScrollback(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		sb.Push(lineOf(s))
	}

	if sb.Len() != 3 {
		t.Fatalf("expected 3 lines, got %d", sb.Len())
	}
	want := []string{"c", "d", "e"}
	for i, w := range want {
		if got := sb.Line(i).Text(); got != w {
			t.Errorf("Line(%d): expected %q, got %q", i, w, got)
		}
	}
}

func TestScrollback_PushReportsEviction(t *testing.T) {
	sb := NewScrollback(1)
	if sb.Push(lineOf("a")) {
		t.Error("first push should not evict")
	}
	if !sb.Push(lineOf("b")) {
		t.Error("second push should evict")
	}
}

func TestScrollback_ZeroCapacity(t *testing.T) {
	sb := NewScrollback(0)
	sb.Push(lineOf("a"))
	if sb.Len() != 0 {
		t.Errorf("expected no history, got %d", sb.Len())
	}
	if sb.PopNewest() != nil {
		t.Error("expected nil from empty scrollback")
	}
}

func TestScrollback_PopNewest(t *testing.T) {
	sb := NewScrollback(4)
	sb.Push(lineOf("a"))
	sb.Push(lineOf("b"))

	if got := sb.PopNewest().Text(); got != "b" {
		t.Errorf("expected b, got %q", got)
	}
	if sb.Len() != 1 {
		t.Errorf("expected 1 line, got %d", sb.Len())
	}
}

func TestScrollback_SetCap(t *testing.T) {
	sb := NewScrollback(5)
	for _, s := range []string{"a", "b", "c", "d"} {
		sb.Push(lineOf(s))
	}

	dropped := sb.SetCap(2)
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
	if sb.Line(0).Text() != "c" || sb.Line(1).Text() != "d" {
		t.Errorf("expected [c d], got [%s %s]", sb.Line(0).Text(), sb.Line(1).Text())
	}

	sb.Push(lineOf("e"))
	if sb.Line(1).Text() != "e" {
		t.Errorf("expected e newest, got %q", sb.Line(1).Text())
	}
}
