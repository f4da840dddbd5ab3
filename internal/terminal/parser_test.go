package terminal

import (
	"strings"
	"testing"
)

func newTestParser(cols, rows int) (*Grid, *Parser) {
	g := NewGrid(cols, rows, 100)
	return g, NewParser(g)
}

func rowText(g *Grid, y int) string {
	l := &Line{Cells: g.Line(y)}
	return l.Text()
}

func TestParserPlainText(t *testing.T) {
	g, p := newTestParser(80, 24)

	p.Parse([]byte("Hello"))

	if text := rowText(g, 0); text != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", text)
	}
	if c := g.Cursor(); c.X != 5 || c.Y != 0 {
		t.Errorf("expected cursor (5,0), got (%d,%d)", c.X, c.Y)
	}
}

func TestParserControls(t *testing.T) {
	tests := []struct {
		name  string
		input string
		row0  string
		row1  string
	}{
		{"crlf", "A\r\nB", "A", "B"},
		{"lf keeps column", "A\nB", "A", " B"},
		{"carriage return", "ABC\rX", "XBC", ""},
		{"tab", "A\tB", "A       B", ""},
		{"backspace", "AB\bC", "AC", ""},
		{"bell is not printed", "A\aB", "AB", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p := newTestParser(80, 24)
			p.ParseString(tt.input)
			if got := rowText(g, 0); got != tt.row0 {
				t.Errorf("row 0: expected %q, got %q", tt.row0, got)
			}
			if got := rowText(g, 1); got != tt.row1 {
				t.Errorf("row 1: expected %q, got %q", tt.row1, got)
			}
		})
	}
}

func TestParserCursorMovement(t *testing.T) {
	tests := []struct {
		name  string
		input string
		x, y  int
	}{
		{"CUP", "\x1b[5;10H", 9, 4},
		{"CUP default", "\x1b[5;10H\x1b[H", 0, 0},
		{"CUP clamps", "\x1b[500;500H", 79, 23},
		{"CUU", "\x1b[10;10H\x1b[3A", 9, 6},
		{"CUD", "\x1b[10;10H\x1b[3B", 9, 12},
		{"CUF", "\x1b[10;10H\x1b[3C", 12, 9},
		{"CUB", "\x1b[10;10H\x1b[3D", 6, 9},
		{"CUB clamps", "\x1b[10;10H\x1b[99D", 0, 9},
		{"CNL", "\x1b[10;10H\x1b[2E", 0, 11},
		{"CPL", "\x1b[10;10H\x1b[2F", 0, 7},
		{"CHA", "\x1b[10;10H\x1b[20G", 19, 9},
		{"HPA", "\x1b[10;10H\x1b[20`", 19, 9},
		{"VPA", "\x1b[10;10H\x1b[3d", 9, 2},
		{"VPR", "\x1b[10;10H\x1b[2e", 9, 11},
		{"HPR", "\x1b[10;10H\x1b[2a", 11, 9},
		{"CHT", "\x1b[2I", 16, 0},
		{"CBT", "\x1b[1;20H\x1b[Z", 16, 0},
		{"colon separators", "\x1b[5:10H", 9, 4},
		{"empty first param", "\x1b[;10H", 9, 0},
		{"NEL", "AB\x1bE", 0, 1},
		{"RI at top", "\x1bM", 0, 0},
		{"save and restore", "\x1b[5;5H\x1b7\x1b[H\x1b8", 4, 4},
		{"SCOSC and SCORC", "\x1b[6;6H\x1b[s\x1b[H\x1b[u", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p := newTestParser(80, 24)
			p.ParseString(tt.input)
			c := g.Cursor()
			if c.X != tt.x || c.Y != tt.y {
				t.Errorf("expected cursor (%d,%d), got (%d,%d)", tt.x, tt.y, c.X, c.Y)
			}
		})
	}
}

func TestParserEraseDisplay(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		expect []string
	}{
		{"below", "", []string{"AAAA", "B", "", ""}},
		{"above", "1", []string{"", "  BB", "CCCC", "DDDD"}},
		{"all", "2", []string{"", "", "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p := newTestParser(4, 4)
			p.ParseString("AAAABBBBCCCCDDDD")
			p.ParseString("\x1b[2;2H\x1b[" + tt.mode + "J")
			for y, want := range tt.expect {
				if got := rowText(g, y); got != want {
					t.Errorf("row %d: expected %q, got %q", y, want, got)
				}
			}
		})
	}
}

func TestParserEraseScrollback(t *testing.T) {
	g, p := newTestParser(10, 2)
	p.ParseString("1\r\n2\r\n3\r\n4")
	if g.ScrollbackLen() != 2 {
		t.Fatalf("expected 2 history lines, got %d", g.ScrollbackLen())
	}
	p.ParseString("\x1b[3J")
	if g.ScrollbackLen() != 0 {
		t.Errorf("expected history cleared, got %d lines", g.ScrollbackLen())
	}
}

func TestParserEraseLine(t *testing.T) {
	tests := []struct {
		mode   string
		expect string
	}{
		{"", "AB"},
		{"0", "AB"},
		{"1", "   DE"},
		{"2", ""},
	}

	for _, tt := range tests {
		g, p := newTestParser(10, 2)
		p.ParseString("ABCDE\x1b[1;3H\x1b[" + tt.mode + "K")
		if got := rowText(g, 0); got != tt.expect {
			t.Errorf("EL %q: expected %q, got %q", tt.mode, tt.expect, got)
		}
	}
}

func TestParserEraseUsesPenBackground(t *testing.T) {
	g, p := newTestParser(10, 2)
	p.ParseString("\x1b[41m\x1b[2K")
	if c := g.Cell(5, 0); c.Background != Indexed(1) {
		t.Errorf("expected red erase background, got %+v", c.Background)
	}
}

func TestParserSGR(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(Cell) bool
	}{
		{"bold", "\x1b[1mX", func(c Cell) bool { return c.Attributes.Has(AttrBold) }},
		{"dim", "\x1b[2mX", func(c Cell) bool { return c.Attributes.Has(AttrDim) }},
		{"italic", "\x1b[3mX", func(c Cell) bool { return c.Attributes.Has(AttrItalic) }},
		{"underline", "\x1b[4mX", func(c Cell) bool { return c.Attributes.Has(AttrUnderline) }},
		{"blink", "\x1b[5mX", func(c Cell) bool { return c.Attributes.Has(AttrBlink) }},
		{"reverse", "\x1b[7mX", func(c Cell) bool { return c.Attributes.Has(AttrReverse) }},
		{"hidden", "\x1b[8mX", func(c Cell) bool { return c.Attributes.Has(AttrHidden) }},
		{"strike", "\x1b[9mX", func(c Cell) bool { return c.Attributes.Has(AttrStrike) }},
		{"reset", "\x1b[1;31m\x1b[0mX", func(c Cell) bool {
			return c.Attributes == AttrNone && c.Foreground.Default
		}},
		{"empty reset", "\x1b[1m\x1b[mX", func(c Cell) bool { return c.Attributes == AttrNone }},
		{"bold off", "\x1b[1m\x1b[22mX", func(c Cell) bool { return !c.Attributes.Has(AttrBold) }},
		{"foreground", "\x1b[31mX", func(c Cell) bool { return c.Foreground == Indexed(1) }},
		{"background", "\x1b[42mX", func(c Cell) bool { return c.Background == Indexed(2) }},
		{"bright foreground", "\x1b[91mX", func(c Cell) bool { return c.Foreground == Indexed(9) }},
		{"bright background", "\x1b[104mX", func(c Cell) bool { return c.Background == Indexed(12) }},
		{"default foreground", "\x1b[31m\x1b[39mX", func(c Cell) bool { return c.Foreground.Default }},
		{"default background", "\x1b[41m\x1b[49mX", func(c Cell) bool { return c.Background.Default }},
		{"256 foreground", "\x1b[38;5;196mX", func(c Cell) bool { return c.Foreground.Index == 196 }},
		{"256 background", "\x1b[48;5;21mX", func(c Cell) bool { return c.Background.Index == 21 }},
		{"256 low index", "\x1b[38;5;1mX", func(c Cell) bool { return c.Foreground == Indexed(1) }},
		{"rgb foreground", "\x1b[38;2;10;20;30mX", func(c Cell) bool {
			return c.Foreground.R == 10 && c.Foreground.G == 20 && c.Foreground.B == 30 && c.Foreground.Index == -1
		}},
		{"rgb background", "\x1b[48;2;1;2;3mX", func(c Cell) bool {
			return c.Background.R == 1 && c.Background.G == 2 && c.Background.B == 3
		}},
		{"rgb colon form", "\x1b[38:2:10:20:30mX", func(c Cell) bool { return c.Foreground.R == 10 }},
		{"rgb clamps", "\x1b[38;2;999;0;0mX", func(c Cell) bool { return c.Foreground.R == 255 }},
		{"truncated rgb", "\x1b[38;2;10mX", func(c Cell) bool { return c.Foreground.Default }},
		{"underline color ignored", "\x1b[58;5;3;1mX", func(c Cell) bool { return c.Attributes.Has(AttrBold) }},
		{"multiple", "\x1b[1;4;31;42mX", func(c Cell) bool {
			return c.Attributes.Has(AttrBold) && c.Attributes.Has(AttrUnderline) &&
				c.Foreground == Indexed(1) && c.Background == Indexed(2)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p := newTestParser(10, 2)
			p.ParseString(tt.input)
			if c := g.Cell(0, 0); !tt.check(c) {
				t.Errorf("unexpected cell %+v", c)
			}
		})
	}
}

func TestParserOSC(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  EventKind
		title string
		body  string
	}{
		{"title BEL", "\x1b]0;hello\a", EventTitle, "hello", ""},
		{"title ST", "\x1b]2;world\x1b\\", EventTitle, "world", ""},
		{"cwd url", "\x1b]7;file://host/home/me\a", EventWorkingDir, "", "/home/me"},
		{"cwd plain", "\x1b]7;/tmp\a", EventWorkingDir, "", "/tmp"},
		{"notify 9", "\x1b]9;build done\a", EventNotify, "", "build done"},
		{"notify 777", "\x1b]777;notify;Title;Body text\a", EventNotify, "Title", "Body text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newTestParser(10, 2)
			var got []Event
			p.SetEventCallback(func(ev Event) { got = append(got, ev) })
			p.ParseString(tt.input)
			if len(got) != 1 {
				t.Fatalf("expected 1 event, got %d", len(got))
			}
			if got[0].Kind != tt.kind || got[0].Title != tt.title || got[0].Body != tt.body {
				t.Errorf("expected {%d %q %q}, got %+v", tt.kind, tt.title, tt.body, got[0])
			}
		})
	}
}

func TestParserOSCState(t *testing.T) {
	g, p := newTestParser(10, 2)
	p.ParseString("\x1b]0;my title\a\x1b]7;file:///srv\a")
	if g.Title() != "my title" {
		t.Errorf("expected title 'my title', got %q", g.Title())
	}
	if g.WorkingDirectory() != "/srv" {
		t.Errorf("expected cwd /srv, got %q", g.WorkingDirectory())
	}
}

func TestParserOSCIgnored(t *testing.T) {
	g, p := newTestParser(20, 2)
	var events int
	p.SetEventCallback(func(Event) { events++ })
	p.ParseString("\x1b]9;4;1;50\a\x1b]52;c;aGk=\a\x1b]8;;http://x\aA")
	if events != 0 {
		t.Errorf("expected no events, got %d", events)
	}
	if got := rowText(g, 0); got != "A" {
		t.Errorf("expected 'A', got %q", got)
	}
}

func TestParserOSCTooLong(t *testing.T) {
	g, p := newTestParser(10, 2)
	p.ParseString("\x1b]0;" + strings.Repeat("x", 10000) + "\aZ")
	if len(g.Title()) > maxOSC {
		t.Errorf("expected title capped at %d bytes, got %d", maxOSC, len(g.Title()))
	}
	if got := rowText(g, 0); got != "Z" {
		t.Errorf("expected 'Z' after OSC, got %q", got)
	}
}

func TestParserBell(t *testing.T) {
	_, p := newTestParser(10, 2)
	var got []Event
	p.SetEventCallback(func(ev Event) { got = append(got, ev) })
	p.ParseString("\a")
	if len(got) != 1 || got[0].Kind != EventBell {
		t.Errorf("expected one bell event, got %+v", got)
	}
}

func TestParserReplies(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"status", "\x1b[5n", "\x1b[0n"},
		{"cursor position", "\x1b[3;7H\x1b[6n", "\x1b[3;7R"},
		{"primary DA", "\x1b[c", "\x1b[?62;22c"},
		{"secondary DA", "\x1b[>c", "\x1b[>0;10;1c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newTestParser(80, 24)
			var got []byte
			p.SetReplyCallback(func(b []byte) { got = append(got, b...) })
			p.ParseString(tt.input)
			if string(got) != tt.expect {
				t.Errorf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestParserScrollRegion(t *testing.T) {
	g, p := newTestParser(10, 5)
	p.ParseString("0\r\n1\r\n2\r\n3\r\n4")
	// Region rows 2..4 (1-based), scroll it up once.
	p.ParseString("\x1b[2;4r\x1b[S")

	expect := []string{"0", "2", "3", "", "4"}
	for y, want := range expect {
		if got := rowText(g, y); got != want {
			t.Errorf("row %d: expected %q, got %q", y, want, got)
		}
	}
	if g.ScrollbackLen() != 0 {
		t.Errorf("region scroll must not feed scrollback, got %d", g.ScrollbackLen())
	}
}

func TestParserScrollDown(t *testing.T) {
	g, p := newTestParser(10, 3)
	p.ParseString("A\r\nB\r\nC\x1b[T")
	expect := []string{"", "A", "B"}
	for y, want := range expect {
		if got := rowText(g, y); got != want {
			t.Errorf("row %d: expected %q, got %q", y, want, got)
		}
	}
}

func TestParserInsertDeleteLines(t *testing.T) {
	g, p := newTestParser(10, 4)
	p.ParseString("A\r\nB\r\nC\r\nD")
	p.ParseString("\x1b[2H\x1b[L")
	expect := []string{"A", "", "B", "C"}
	for y, want := range expect {
		if got := rowText(g, y); got != want {
			t.Errorf("after IL row %d: expected %q, got %q", y, want, got)
		}
	}

	p.ParseString("\x1b[2M")
	expect = []string{"A", "C", "", ""}
	for y, want := range expect {
		if got := rowText(g, y); got != want {
			t.Errorf("after DL row %d: expected %q, got %q", y, want, got)
		}
	}
}

func TestParserCharEditing(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"ICH", "ABCDE\x1b[1;2H\x1b[2@", "A  BCDE"},
		{"DCH", "ABCDE\x1b[1;2H\x1b[2P", "ADE"},
		{"ECH", "ABCDE\x1b[1;2H\x1b[2X", "A  DE"},
		{"REP", "x\x1b[4b", "xxxxx"},
		{"IRM", "ABC\x1b[1;1H\x1b[4hZ\x1b[4l", "ZABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p := newTestParser(10, 2)
			p.ParseString(tt.input)
			if got := rowText(g, 0); got != tt.expect {
				t.Errorf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestParserModes(t *testing.T) {
	g, p := newTestParser(10, 2)

	p.ParseString("\x1b[?25l")
	if g.Cursor().Visible {
		t.Error("expected cursor hidden")
	}
	p.ParseString("\x1b[?25h")
	if !g.Cursor().Visible {
		t.Error("expected cursor visible")
	}

	p.ParseString("\x1b[?1h\x1b[?2004h")
	m := g.Modes()
	if !m.AppCursor || !m.BracketedPaste {
		t.Errorf("expected app cursor and bracketed paste, got %+v", m)
	}
	p.ParseString("\x1b[?1;2004l")
	m = g.Modes()
	if m.AppCursor || m.BracketedPaste {
		t.Errorf("expected modes reset, got %+v", m)
	}
}

func TestParserAutoWrapOff(t *testing.T) {
	g, p := newTestParser(5, 2)
	p.ParseString("\x1b[?7lABCDEFG")
	if got := rowText(g, 0); got != "ABCDG" {
		t.Errorf("expected 'ABCDG', got %q", got)
	}
	if got := rowText(g, 1); got != "" {
		t.Errorf("expected empty row 1, got %q", got)
	}
}

func TestParserCursorStyle(t *testing.T) {
	tests := []struct {
		input  string
		expect CursorStyle
	}{
		{"\x1b[2 q", CursorBlock},
		{"\x1b[4 q", CursorUnderline},
		{"\x1b[6 q", CursorBar},
	}
	for _, tt := range tests {
		g, p := newTestParser(10, 2)
		p.ParseString(tt.input)
		if got := g.Cursor().Style; got != tt.expect {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expect, got)
		}
	}
}

func TestParserAltScreen(t *testing.T) {
	g, p := newTestParser(10, 3)
	p.ParseString("main\x1b[?1049h")
	if !g.Modes().AltScreen {
		t.Fatal("expected alternate screen")
	}
	if got := rowText(g, 0); got != "" {
		t.Errorf("expected cleared alternate screen, got %q", got)
	}
	p.ParseString("\x1b[Halt")
	p.ParseString("\x1b[?1049l")
	if got := rowText(g, 0); got != "main" {
		t.Errorf("expected primary content restored, got %q", got)
	}
	if c := g.Cursor(); c.X != 4 || c.Y != 0 {
		t.Errorf("expected cursor restored to (4,0), got (%d,%d)", c.X, c.Y)
	}
}

func TestParserUTF8(t *testing.T) {
	g, p := newTestParser(10, 2)
	p.ParseString("héllo")
	if got := rowText(g, 0); got != "héllo" {
		t.Errorf("expected 'héllo', got %q", got)
	}
}

func TestParserUTF8Split(t *testing.T) {
	g, p := newTestParser(10, 2)
	b := []byte("€")
	p.Parse(b[:1])
	p.Parse(b[1:])
	if c := g.Cell(0, 0); c.Rune != '€' {
		t.Errorf("expected '€', got %q", c.Rune)
	}
}

func TestParserSplitSequence(t *testing.T) {
	g, p := newTestParser(80, 24)
	p.ParseString("\x1b[1")
	p.ParseString("0;2")
	p.ParseString("0H")
	if c := g.Cursor(); c.X != 19 || c.Y != 9 {
		t.Errorf("expected cursor (19,9), got (%d,%d)", c.X, c.Y)
	}
}

func TestParserWideRunes(t *testing.T) {
	g, p := newTestParser(6, 2)
	p.ParseString("a世b")
	if c := g.Cell(1, 0); c.Rune != '世' || c.Width != 2 {
		t.Errorf("expected wide cell at 1, got %+v", c)
	}
	if c := g.Cell(2, 0); c.Width != 0 {
		t.Errorf("expected spacer at 2, got %+v", c)
	}
	if got := rowText(g, 0); got != "a世b" {
		t.Errorf("expected 'a世b', got %q", got)
	}

	// Overwriting the spacer blanks the wide rune's head.
	p.ParseString("\x1b[1;3Hx")
	if c := g.Cell(1, 0); c.Rune != ' ' || c.Width != 1 {
		t.Errorf("expected blanked head, got %+v", c)
	}
}

func TestParserWideRuneWrapsAtEdge(t *testing.T) {
	g, p := newTestParser(4, 2)
	p.ParseString("abc世")
	if got := rowText(g, 0); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
	if c := g.Cell(0, 1); c.Rune != '世' {
		t.Errorf("expected wide rune wrapped to row 1, got %+v", c)
	}
}

func TestParserPendingWrap(t *testing.T) {
	g, p := newTestParser(3, 3)
	p.ParseString("abc")
	if c := g.Cursor(); c.Y != 0 {
		t.Errorf("expected wrap to stay pending on row 0, got row %d", c.Y)
	}
	p.ParseString("d")
	if got := rowText(g, 1); got != "d" {
		t.Errorf("expected 'd' on row 1, got %q", got)
	}
}

func TestParserMalformedInput(t *testing.T) {
	inputs := []string{
		"\x1b[999999999999999999999H",
		"\x1b[" + strings.Repeat("1;", 100) + "m",
		"\x1b[?1;?2h",
		"\x1b[1\x18X",
		"\x1bP1$r\x1b\\",
		"\x1b_app\x1b\\",
		"\xff\xfe\xc0",
		"\x1b[1 2 3m",
		"\x1b(B\x1b)0",
	}

	for _, in := range inputs {
		g, p := newTestParser(10, 3)
		p.ParseString(in)
		p.ParseString("ok")
		c := g.Cursor()
		if c.X < 0 || c.X > 10 || c.Y < 0 || c.Y >= 3 {
			t.Errorf("%q: cursor out of bounds (%d,%d)", in, c.X, c.Y)
		}
		found := false
		for y := 0; y < 3; y++ {
			if strings.Contains(rowText(g, y), "ok") {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: parser did not resume in ground state", in)
		}
	}
}

func TestParserControlInsideCSI(t *testing.T) {
	g, p := newTestParser(10, 3)
	p.ParseString("ABCD\x1b[\r2CZ")
	if got := rowText(g, 0); got != "ABZD" {
		t.Errorf("expected CR executed inside CSI, got %q", got)
	}
}

func TestParserUnknownCallback(t *testing.T) {
	_, p := newTestParser(10, 2)
	var seqs []string
	p.SetUnknownCallback(func(s string) { seqs = append(seqs, s) })
	p.ParseString("\x1b[?9999h\x1b[5y")
	if len(seqs) != 2 {
		t.Errorf("expected 2 unknown sequences, got %v", seqs)
	}
}

func TestParserReset(t *testing.T) {
	g, p := newTestParser(10, 3)
	p.ParseString("\x1b[1;31mhello\x1b[?25l\x1bc")
	if got := rowText(g, 0); got != "" {
		t.Errorf("expected cleared screen, got %q", got)
	}
	c := g.Cursor()
	if c.X != 0 || c.Y != 0 || !c.Visible {
		t.Errorf("expected home visible cursor, got %+v", c)
	}
}

func TestParserMarksDirty(t *testing.T) {
	g, p := newTestParser(10, 5)
	g.Dirty().Snapshot()

	p.ParseString("\x1b[3;1Hx")
	snap, ok := g.Dirty().Snapshot()
	if !ok {
		t.Fatal("expected dirty rows")
	}
	if len(snap.Rows) != 1 || snap.Rows[0] != 2 {
		t.Errorf("expected row 2 dirty, got %v", snap.Rows)
	}
}
