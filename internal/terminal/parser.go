package terminal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EventKind identifies a side effect reported by the parser.
type EventKind int

const (
	// EventTitle reports a title change (OSC 0/2).
	EventTitle EventKind = iota
	// EventWorkingDir reports a working directory change (OSC 7).
	EventWorkingDir
	// EventBell reports BEL in ground state.
	EventBell
	// EventNotify reports a desktop notification request (OSC 9, OSC 777).
	EventNotify
)

// Event is a parser side effect. Events are delivered after the grid lock
// is released.
type Event struct {
	Kind  EventKind
	Title string
	Body  string
}

const (
	maxParams = 32
	maxParam  = 65535
	maxOSC    = 4096
)

// Parser interprets a VT byte stream and applies it to a Grid.
//
// Parser state lives in the struct, so a sequence split across reads is
// resumed on the next call to Parse.
type Parser struct {
	grid *Grid

	// Parser state
	state   parserState
	params  []int
	inter   []byte // intermediate bytes
	private byte   // CSI private marker ('?', '>', '=', '<') or 0
	osc     []byte // OSC data

	// UTF-8 decoding state
	utf8Buf   [4]byte // buffer for UTF-8 sequence
	utf8Len   int     // expected length of current UTF-8 sequence
	utf8Count int     // bytes collected so far

	lastRune rune

	events  []Event
	replies []byte

	// Callbacks
	onEvent   func(Event)
	onReply   func([]byte)
	onUnknown func(seq string)
}

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeInter
	stateCSI
	stateCSIParam
	stateCSIInter
	stateCSIIgnore
	stateOSC
	stateOSCEscape
	stateString // DCS, SOS, PM, APC payloads
	stateStringEscape
)

// NewParser creates a new parser for the given grid.
func NewParser(grid *Grid) *Parser {
	return &Parser{
		grid:   grid,
		state:  stateGround,
		params: make([]int, 0, 16),
		inter:  make([]byte, 0, 4),
		osc:    make([]byte, 0, 256),
	}
}

// SetEventCallback sets the callback for title, bell and notification events.
func (p *Parser) SetEventCallback(fn func(Event)) {
	p.onEvent = fn
}

// SetReplyCallback sets the callback receiving bytes the terminal must send
// back to the child (device status and attribute reports).
func (p *Parser) SetReplyCallback(fn func([]byte)) {
	p.onReply = fn
}

// SetUnknownCallback sets the callback for unsupported sequences.
func (p *Parser) SetUnknownCallback(fn func(seq string)) {
	p.onUnknown = fn
}

// Parse applies data to the grid under the grid's write lock, then delivers
// any events and replies produced.
func (p *Parser) Parse(data []byte) {
	p.grid.mu.Lock()
	p.feed(data)
	events := p.events
	replies := p.replies
	p.events = nil
	p.replies = nil
	p.grid.mu.Unlock()

	if p.onEvent != nil {
		for _, ev := range events {
			p.onEvent(ev)
		}
	}
	if p.onReply != nil && len(replies) > 0 {
		p.onReply(replies)
	}
}

// ParseString parses the given string.
func (p *Parser) ParseString(s string) {
	p.Parse([]byte(s))
}

func (p *Parser) feed(data []byte) {
	for i := 0; i < len(data); {
		i = p.feedFrom(data, i)
	}
}

// feedFrom processes data starting at i. A panic while handling a byte
// resets the parser to ground and resumes after that byte.
func (p *Parser) feedFrom(data []byte, i int) (next int) {
	defer func() {
		if r := recover(); r != nil {
			p.resetState()
			p.unknown(fmt.Sprintf("recovered: %v", r))
			next = i + 1
		}
	}()
	for ; i < len(data); i++ {
		p.processByte(data[i])
	}
	return i
}

func (p *Parser) resetState() {
	p.state = stateGround
	p.params = p.params[:0]
	p.inter = p.inter[:0]
	p.private = 0
	p.utf8Len = 0
	p.utf8Count = 0
}

func (p *Parser) unknown(seq string) {
	if p.onUnknown != nil {
		p.onUnknown(seq)
	}
}

func (p *Parser) emit(ev Event) {
	p.events = append(p.events, ev)
}

func (p *Parser) reply(s string) {
	p.replies = append(p.replies, s...)
}

func (p *Parser) processByte(b byte) {
	switch p.state {
	case stateGround:
		p.processGround(b)
	case stateEscape:
		p.processEscape(b)
	case stateEscapeInter:
		p.processEscapeInter(b)
	case stateCSI:
		p.processCSI(b)
	case stateCSIParam:
		p.processCSIParam(b)
	case stateCSIInter:
		p.processCSIInter(b)
	case stateCSIIgnore:
		p.processCSIIgnore(b)
	case stateOSC:
		p.processOSC(b)
	case stateOSCEscape:
		p.processOSCEscape(b)
	case stateString:
		p.processString(b)
	case stateStringEscape:
		p.processStringEscape(b)
	}
}

// execute runs a C0 control. It returns false when b is not one.
func (p *Parser) execute(b byte) bool {
	g := p.grid
	switch b {
	case 0x07: // BEL
		p.emit(Event{Kind: EventBell})
	case 0x08: // BS
		g.backspace()
	case 0x09: // HT
		p.tabForward(1)
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		g.lineFeed()
	case 0x0D: // CR
		g.carriageReturn()
	case 0x0E, 0x0F: // SO, SI (charset shifts, ignored)
	default:
		return b < 0x20 || b == 0x7F
	}
	return true
}

func (p *Parser) processGround(b byte) {
	// If we're in the middle of a UTF-8 sequence, continue collecting
	if p.utf8Len > 0 {
		p.processUTF8Continuation(b)
		return
	}

	switch {
	case b == 0x1B: // ESC
		p.enterEscape()
	case b < 0x20 || b == 0x7F:
		p.execute(b)
	case b < 0x7F: // Printable ASCII
		p.print(rune(b))
	case b >= 0xC2 && b < 0xE0: // 2-byte UTF-8 start
		p.utf8Buf[0] = b
		p.utf8Len = 2
		p.utf8Count = 1
	case b >= 0xE0 && b < 0xF0: // 3-byte UTF-8 start
		p.utf8Buf[0] = b
		p.utf8Len = 3
		p.utf8Count = 1
	case b >= 0xF0 && b < 0xF5: // 4-byte UTF-8 start
		p.utf8Buf[0] = b
		p.utf8Len = 4
		p.utf8Count = 1
	default:
		// Stray continuation byte or invalid lead byte
		p.print('�')
	}
}

func (p *Parser) print(r rune) {
	p.grid.writeRune(r)
	p.lastRune = r
}

func (p *Parser) enterEscape() {
	if p.utf8Len > 0 {
		p.print('�')
		p.utf8Len = 0
		p.utf8Count = 0
	}
	p.state = stateEscape
	p.params = p.params[:0]
	p.inter = p.inter[:0]
	p.private = 0
}

// processUTF8Continuation handles continuation bytes of a multi-byte UTF-8 sequence.
func (p *Parser) processUTF8Continuation(b byte) {
	// Check if this is a valid continuation byte
	if b < 0x80 || b >= 0xC0 {
		// Invalid continuation - reset and process byte normally
		p.utf8Len = 0
		p.utf8Count = 0
		p.print('�')
		p.processGround(b)
		return
	}

	p.utf8Buf[p.utf8Count] = b
	p.utf8Count++

	if p.utf8Count == p.utf8Len {
		r := p.decodeUTF8()
		p.utf8Len = 0
		p.utf8Count = 0
		p.print(r)
	}
}

// decodeUTF8 decodes the collected UTF-8 bytes into a rune.
func (p *Parser) decodeUTF8() rune {
	switch p.utf8Len {
	case 2:
		return rune(p.utf8Buf[0]&0x1F)<<6 |
			rune(p.utf8Buf[1]&0x3F)
	case 3:
		r := rune(p.utf8Buf[0]&0x0F)<<12 |
			rune(p.utf8Buf[1]&0x3F)<<6 |
			rune(p.utf8Buf[2]&0x3F)
		// Validate: must be >= 0x800 and not surrogate
		if r < 0x800 || (r >= 0xD800 && r <= 0xDFFF) {
			return '�'
		}
		return r
	case 4:
		r := rune(p.utf8Buf[0]&0x07)<<18 |
			rune(p.utf8Buf[1]&0x3F)<<12 |
			rune(p.utf8Buf[2]&0x3F)<<6 |
			rune(p.utf8Buf[3]&0x3F)
		if r < 0x10000 || r > 0x10FFFF {
			return '�'
		}
		return r
	default:
		return '�'
	}
}

func (p *Parser) processEscape(b byte) {
	g := p.grid
	p.state = stateGround
	switch {
	case b == '[': // CSI
		p.state = stateCSI
	case b == ']': // OSC
		p.state = stateOSC
		p.osc = p.osc[:0]
	case b == 'P', b == 'X', b == '^', b == '_': // DCS, SOS, PM, APC
		p.state = stateString
	case b == '7': // DECSC
		g.saveCursor()
	case b == '8': // DECRC
		g.restoreCursor()
	case b == 'D': // IND
		g.lineFeed()
	case b == 'E': // NEL
		g.carriageReturn()
		g.lineFeed()
	case b == 'M': // RI
		g.reverseLineFeed()
	case b == 'c': // RIS
		g.reset()
	case b == 'H', b == '=', b == '>': // HTS, DECKPAM, DECKPNM
	case b == '\\': // ST with nothing open
	case b == 0x1B:
		p.enterEscape()
	case b >= 0x20 && b <= 0x2F: // Intermediate
		p.inter = append(p.inter, b)
		p.state = stateEscapeInter
	case b >= 0x30 && b <= 0x7E: // Final
		p.unknown("ESC " + string(b))
	default:
		// C0 controls are executed even inside an escape.
		if p.execute(b) {
			p.state = stateEscape
		}
	}
}

func (p *Parser) processEscapeInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
	case b >= 0x30 && b <= 0x7E:
		// Charset designation (ESC ( B and friends) and DEC tests; ignored.
		if len(p.inter) == 0 || !strings.ContainsRune("()*+-./", rune(p.inter[0])) {
			p.unknown("ESC " + string(p.inter) + string(b))
		}
		p.state = stateGround
	case b == 0x1B:
		p.enterEscape()
	default:
		if !p.execute(b) {
			p.state = stateGround
		}
	}
}

func (p *Parser) processCSI(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.params = append(p.params, int(b-'0'))
		p.state = stateCSIParam
	case b == ';' || b == ':':
		p.params = append(p.params, 0, 0)
		p.state = stateCSIParam
	case b == '?' || b == '>' || b == '=' || b == '<':
		p.private = b
		p.state = stateCSIParam
	default:
		p.csiCommon(b)
	}
}

func (p *Parser) processCSIParam(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if len(p.params) == 0 {
			p.params = append(p.params, 0)
		}
		last := &p.params[len(p.params)-1]
		if *last < maxParam {
			*last = *last*10 + int(b-'0')
			if *last > maxParam {
				*last = maxParam
			}
		}
	case b == ';' || b == ':':
		if len(p.params) == 0 {
			p.params = append(p.params, 0)
		}
		if len(p.params) >= maxParams {
			p.state = stateCSIIgnore
			return
		}
		p.params = append(p.params, 0)
	case b == '?' || b == '>' || b == '=' || b == '<':
		// Private marker after parameters is malformed.
		p.state = stateCSIIgnore
	default:
		p.csiCommon(b)
	}
}

// csiCommon handles bytes shared by the CSI entry and parameter states.
func (p *Parser) csiCommon(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
		p.state = stateCSIInter
	case b >= 0x40 && b <= 0x7E:
		p.state = stateGround
		p.handleCSI(b)
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A: // CAN, SUB abort the sequence
		p.state = stateGround
	default:
		if !p.execute(b) {
			p.state = stateCSIIgnore
		}
	}
}

func (p *Parser) processCSIInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
	case b >= 0x30 && b <= 0x3F:
		p.state = stateCSIIgnore
	default:
		p.csiCommon(b)
	}
}

// processCSIIgnore swallows a malformed CSI sequence through its final byte.
func (p *Parser) processCSIIgnore(b byte) {
	switch {
	case b >= 0x40 && b <= 0x7E:
		p.state = stateGround
		p.unknown("CSI malformed " + string(b))
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	default:
		p.execute(b)
	}
}

func (p *Parser) processOSC(b byte) {
	switch b {
	case 0x07: // BEL terminates OSC
		p.handleOSC()
		p.state = stateGround
	case 0x1B: // ESC might start ST
		p.state = stateOSCEscape
	case 0x18, 0x1A:
		p.state = stateGround
	default:
		if len(p.osc) < maxOSC {
			p.osc = append(p.osc, b)
		}
	}
}

func (p *Parser) processOSCEscape(b byte) {
	p.handleOSC()
	if b == '\\' {
		p.state = stateGround
		return
	}
	// ESC followed by anything else terminates the OSC and starts a new escape.
	p.enterEscape()
	p.processEscape(b)
}

func (p *Parser) processString(b byte) {
	switch b {
	case 0x1B:
		p.state = stateStringEscape
	case 0x07, 0x18, 0x1A:
		p.state = stateGround
	}
}

func (p *Parser) processStringEscape(b byte) {
	if b == '\\' {
		p.state = stateGround
		return
	}
	p.state = stateString
}

// tabForward moves to the nth next tab stop (every 8 columns).
func (p *Parser) tabForward(n int) {
	g := p.grid
	x := g.cx
	if x >= g.cols {
		return
	}
	for ; n > 0; n-- {
		x = ((x / 8) + 1) * 8
	}
	if x >= g.cols {
		x = g.cols - 1
	}
	g.cx = x
}

func (p *Parser) tabBackward(n int) {
	g := p.grid
	x := g.cx
	if x >= g.cols {
		x = g.cols - 1
	}
	for ; n > 0 && x > 0; n-- {
		x = ((x - 1) / 8) * 8
	}
	g.cx = x
}

func (p *Parser) handleCSI(final byte) {
	g := p.grid

	if p.private != 0 {
		p.handlePrivateCSI(final)
		return
	}

	if len(p.inter) > 0 {
		if p.inter[0] == ' ' && final == 'q' { // DECSCUSR
			switch p.param(0, 1) {
			case 0, 1, 2:
				g.cursorStyle = CursorBlock
			case 3, 4:
				g.cursorStyle = CursorUnderline
			case 5, 6:
				g.cursorStyle = CursorBar
			}
			return
		}
		if p.inter[0] == '!' && final == 'p' { // DECSTR soft reset
			g.pen = pen{fg: DefaultColor, bg: DefaultColor}
			g.insertMode = false
			g.originMode = false
			g.autoWrap = true
			g.cursorVisible = true
			g.top, g.bottom = 0, g.rows-1
			return
		}
		p.unknown("CSI " + formatParams(p.params) + string(p.inter) + string(final))
		return
	}

	switch final {
	case 'A': // CUU
		g.moveCursorRelative(0, -p.param(0, 1))
	case 'B', 'e': // CUD, VPR
		g.moveCursorRelative(0, p.param(0, 1))
	case 'C', 'a': // CUF, HPR
		g.moveCursorRelative(p.param(0, 1), 0)
	case 'D': // CUB
		g.moveCursorRelative(-p.param(0, 1), 0)
	case 'E': // CNL
		g.moveCursorRelative(0, p.param(0, 1))
		g.carriageReturn()
	case 'F': // CPL
		g.moveCursorRelative(0, -p.param(0, 1))
		g.carriageReturn()
	case 'G', '`': // CHA, HPA
		g.cx = clamp(p.param(0, 1)-1, 0, g.cols-1)
	case 'H', 'f': // CUP, HVP
		g.moveCursor(p.param(1, 1)-1, p.param(0, 1)-1)
	case 'I': // CHT
		p.tabForward(p.param(0, 1))
	case 'Z': // CBT
		p.tabBackward(p.param(0, 1))
	case 'J': // ED
		switch p.param(0, 0) {
		case 0:
			g.clearScreenBelow()
		case 1:
			g.clearScreenAbove()
		case 2:
			g.clearScreen()
		case 3:
			g.clearScrollback()
		}
	case 'K': // EL
		switch p.param(0, 0) {
		case 0:
			g.clearLineRight()
		case 1:
			g.clearLineLeft()
		case 2:
			g.clearLine()
		}
	case 'L': // IL
		g.insertLines(p.param(0, 1))
	case 'M': // DL
		g.deleteLines(p.param(0, 1))
	case 'P': // DCH
		g.deleteChars(p.param(0, 1))
	case 'S': // SU
		g.scrollUp(p.param(0, 1))
	case 'T': // SD
		g.scrollDown(p.param(0, 1))
	case 'X': // ECH
		g.eraseChars(p.param(0, 1))
	case '@': // ICH
		g.insertChars(p.param(0, 1))
	case 'b': // REP
		if p.lastRune != 0 {
			for n := p.param(0, 1); n > 0; n-- {
				g.writeRune(p.lastRune)
			}
		}
	case 'd': // VPA
		y := p.param(0, 1) - 1
		if g.originMode {
			g.cy = clamp(y+g.top, g.top, g.bottom)
		} else {
			g.cy = clamp(y, 0, g.rows-1)
		}
	case 'h': // SM
		p.setANSIMode(true)
	case 'l': // RM
		p.setANSIMode(false)
	case 'm': // SGR
		p.handleSGR()
	case 'r': // DECSTBM
		g.setScrollRegion(p.param(0, 1)-1, p.param(1, g.rows)-1)
	case 's': // SCOSC
		g.saveCursor()
	case 'u': // SCORC
		g.restoreCursor()
	case 'n': // DSR
		switch p.param(0, 0) {
		case 5:
			p.reply("\x1b[0n")
		case 6:
			row := g.cy + 1
			if g.originMode {
				row -= g.top
			}
			col := g.cx + 1
			if col > g.cols {
				col = g.cols
			}
			p.reply(fmt.Sprintf("\x1b[%d;%dR", row, col))
		}
	case 'c': // DA
		if p.param(0, 0) == 0 {
			p.reply("\x1b[?62;22c")
		}
	case 't': // window manipulation
	case 'g': // TBC, tab stops are fixed
	default:
		p.unknown("CSI " + formatParams(p.params) + string(final))
	}
}

func (p *Parser) handlePrivateCSI(final byte) {
	switch {
	case p.private == '?' && (final == 'h' || final == 'l'):
		p.handlePrivateMode(final == 'h')
	case p.private == '>' && final == 'c': // Secondary DA
		p.reply("\x1b[>0;10;1c")
	case p.private == '?' && final == 'n': // DEC DSR
		if p.param(0, 0) == 6 {
			g := p.grid
			p.reply(fmt.Sprintf("\x1b[?%d;%dR", g.cy+1, clamp(g.cx+1, 1, g.cols)))
		}
	default:
		p.unknown("CSI " + string(p.private) + formatParams(p.params) + string(final))
	}
}

func (p *Parser) setANSIMode(set bool) {
	for _, mode := range p.params {
		switch mode {
		case 4: // IRM
			p.grid.insertMode = set
		case 20: // LNM, not supported
		}
	}
}

func (p *Parser) handlePrivateMode(set bool) {
	g := p.grid
	for _, mode := range p.params {
		switch mode {
		case 1: // DECCKM
			g.appCursor = set
		case 6: // DECOM
			g.originMode = set
			g.moveCursor(0, 0)
		case 7: // DECAWM
			g.autoWrap = set
		case 12: // Cursor blinking, driven by configuration
		case 25: // DECTCEM
			g.cursorVisible = set
		case 47, 1047:
			if set {
				g.enterAltScreen(false)
			} else {
				g.exitAltScreen(false)
			}
		case 1048:
			if set {
				g.saveCursor()
			} else {
				g.restoreCursor()
			}
		case 1049:
			if set {
				g.enterAltScreen(true)
			} else {
				g.exitAltScreen(true)
			}
		case 2004:
			g.bracketedPaste = set
		case 1000, 1002, 1003, 1004, 1005, 1006, 1015:
			// Mouse reporting belongs to the input layer.
		default:
			p.unknown(fmt.Sprintf("DECSET %d", mode))
		}
	}
}

func (p *Parser) handleSGR() {
	g := p.grid
	if len(p.params) == 0 {
		g.pen = pen{fg: DefaultColor, bg: DefaultColor}
		return
	}

	for i := 0; i < len(p.params); i++ {
		switch param := p.params[i]; {
		case param == 0:
			g.pen = pen{fg: DefaultColor, bg: DefaultColor}
		case param == 1:
			g.pen.attrs |= AttrBold
		case param == 2:
			g.pen.attrs |= AttrDim
		case param == 3:
			g.pen.attrs |= AttrItalic
		case param == 4, param == 21:
			g.pen.attrs |= AttrUnderline
		case param == 5, param == 6:
			g.pen.attrs |= AttrBlink
		case param == 7:
			g.pen.attrs |= AttrReverse
		case param == 8:
			g.pen.attrs |= AttrHidden
		case param == 9:
			g.pen.attrs |= AttrStrike
		case param == 22:
			g.pen.attrs &^= AttrBold | AttrDim
		case param == 23:
			g.pen.attrs &^= AttrItalic
		case param == 24:
			g.pen.attrs &^= AttrUnderline
		case param == 25:
			g.pen.attrs &^= AttrBlink
		case param == 27:
			g.pen.attrs &^= AttrReverse
		case param == 28:
			g.pen.attrs &^= AttrHidden
		case param == 29:
			g.pen.attrs &^= AttrStrike
		case param >= 30 && param <= 37:
			g.pen.fg = Indexed(param-30)
		case param == 38:
			var c Color
			if c, i = p.parseExtendedColor(i); !c.Default {
				g.pen.fg = c
			}
		case param == 39:
			g.pen.fg = DefaultColor
		case param >= 40 && param <= 47:
			g.pen.bg = Indexed(param-40)
		case param == 48:
			var c Color
			if c, i = p.parseExtendedColor(i); !c.Default {
				g.pen.bg = c
			}
		case param == 49:
			g.pen.bg = DefaultColor
		case param == 58:
			// Underline color is parsed and dropped.
			_, i = p.parseExtendedColor(i)
		case param >= 90 && param <= 97:
			g.pen.fg = Indexed(param-90+8)
		case param >= 100 && param <= 107:
			g.pen.bg = Indexed(param-100+8)
		}
	}
}

// parseExtendedColor parses 38/48/58 arguments starting at index i and
// returns the color and the index of the last consumed parameter. A color
// with Default set means nothing usable was found.
func (p *Parser) parseExtendedColor(i int) (Color, int) {
	if i+1 >= len(p.params) {
		return DefaultColor, i
	}

	switch p.params[i+1] {
	case 5: // 256-color
		if i+2 < len(p.params) {
			idx := clamp(p.params[i+2], 0, 255)
			return Indexed(idx), i + 2
		}
		return DefaultColor, len(p.params) - 1
	case 2: // RGB
		if i+4 < len(p.params) {
			r := clampColorValue(p.params[i+2])
			g := clampColorValue(p.params[i+3])
			b := clampColorValue(p.params[i+4])
			return RGB(r, g, b), i + 4
		}
		return DefaultColor, len(p.params) - 1
	}
	return DefaultColor, i + 1
}

// clampColorValue clamps an integer to valid RGB range (0-255).
func clampColorValue(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}

func (p *Parser) handleOSC() {
	data := string(p.osc)
	p.osc = p.osc[:0]

	cmdStr, value, _ := strings.Cut(data, ";")
	cmd, err := strconv.Atoi(cmdStr)
	if err != nil {
		p.unknown("OSC " + data)
		return
	}

	g := p.grid
	switch cmd {
	case 0, 2: // Icon name and window title, window title
		g.title = value
		p.emit(Event{Kind: EventTitle, Title: value})
	case 1: // Icon name
	case 7: // Working directory, file://host/path
		dir := value
		if u, err := url.Parse(value); err == nil && u.Scheme == "file" {
			dir = u.Path
		}
		g.cwd = dir
		p.emit(Event{Kind: EventWorkingDir, Body: dir})
	case 9: // iTerm2 style notification; "9;4;..." is ConEmu progress
		if strings.HasPrefix(value, "4;") {
			return
		}
		p.emit(Event{Kind: EventNotify, Body: value})
	case 777: // notify;title;body
		kind, rest, _ := strings.Cut(value, ";")
		if kind != "notify" {
			return
		}
		title, body, _ := strings.Cut(rest, ";")
		p.emit(Event{Kind: EventNotify, Title: title, Body: body})
	case 8, 52, 104, 110, 111, 112:
		// Hyperlinks, clipboard and palette resets are not supported.
	default:
		p.unknown("OSC " + cmdStr)
	}
}

// param returns parameter index, or defaultValue when absent or zero.
func (p *Parser) param(index, defaultValue int) int {
	if index < len(p.params) && p.params[index] > 0 {
		return p.params[index]
	}
	return defaultValue
}

func formatParams(params []int) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ";")
}
