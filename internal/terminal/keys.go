package terminal

import (
	"fmt"
	"strconv"
	"strings"
)

var namedKeys = map[string]string{
	"enter":     "\r",
	"return":    "\r",
	"tab":       "\t",
	"btab":      "\x1b[Z",
	"backspace": "\x7f",
	"bspace":    "\x7f",
	"escape":    "\x1b",
	"esc":       "\x1b",
	"space":     " ",
	"pageup":    "\x1b[5~",
	"pgup":      "\x1b[5~",
	"pagedown":  "\x1b[6~",
	"pgdn":      "\x1b[6~",
	"delete":    "\x1b[3~",
	"del":       "\x1b[3~",
	"insert":    "\x1b[2~",
	"ins":       "\x1b[2~",
}

// cursorKeys holds the final byte of each cursor key; DECCKM picks the
// SS3 or CSI introducer.
var cursorKeys = map[string]byte{
	"up":    'A',
	"down":  'B',
	"right": 'C',
	"left":  'D',
	"home":  'H',
	"end":   'F',
}

var functionKeys = [...]string{
	"\x1bOP", "\x1bOQ", "\x1bOR", "\x1bOS",
	"\x1b[15~", "\x1b[17~", "\x1b[18~", "\x1b[19~",
	"\x1b[20~", "\x1b[21~", "\x1b[23~", "\x1b[24~",
}

// EncodeKey converts a key name to the bytes a terminal sends for it.
//
// Recognized forms are named keys ("Enter", "Up", "PageDown", "F5"),
// control combinations ("C-c", "Ctrl+C") and meta combinations ("M-x",
// "Alt+x"). Any other string is sent as literal text. appCursor selects
// application cursor key encoding.
func EncodeKey(key string, appCursor bool) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	if mod, rest, ok := splitModifier(key); ok {
		switch mod {
		case 'C':
			return encodeControl(rest)
		case 'M':
			inner, err := EncodeKey(rest, appCursor)
			if err != nil {
				return nil, err
			}
			return append([]byte{0x1b}, inner...), nil
		}
	}

	name := strings.ToLower(key)
	if s, ok := namedKeys[name]; ok {
		return []byte(s), nil
	}
	if final, ok := cursorKeys[name]; ok {
		if appCursor {
			return []byte{0x1b, 'O', final}, nil
		}
		return []byte{0x1b, '[', final}, nil
	}
	if len(name) >= 2 && name[0] == 'f' {
		if n, err := strconv.Atoi(name[1:]); err == nil {
			if n < 1 || n > len(functionKeys) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
			}
			return []byte(functionKeys[n-1]), nil
		}
	}
	return []byte(key), nil
}

// EncodeKeys encodes a sequence of keys into one byte string.
func EncodeKeys(keys []string, appCursor bool) ([]byte, error) {
	var out []byte
	for _, k := range keys {
		b, err := EncodeKey(k, appCursor)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// splitModifier recognizes "C-x", "ctrl+x", "M-x", "alt+x" and "meta+x".
func splitModifier(key string) (byte, string, bool) {
	if len(key) > 2 && key[1] == '-' {
		switch key[0] {
		case 'C', 'c':
			return 'C', key[2:], true
		case 'M', 'm':
			return 'M', key[2:], true
		}
	}
	lower := strings.ToLower(key)
	for _, p := range []struct {
		prefix string
		mod    byte
	}{
		{"ctrl+", 'C'},
		{"ctrl-", 'C'},
		{"alt+", 'M'},
		{"alt-", 'M'},
		{"meta+", 'M'},
	} {
		if strings.HasPrefix(lower, p.prefix) && len(key) > len(p.prefix) {
			return p.mod, key[len(p.prefix):], true
		}
	}
	return 0, "", false
}

func encodeControl(rest string) ([]byte, error) {
	if len(rest) != 1 {
		switch strings.ToLower(rest) {
		case "space":
			return []byte{0}, nil
		}
		return nil, fmt.Errorf("%w: C-%s", ErrUnknownKey, rest)
	}
	c := rest[0]
	switch {
	case c >= 'a' && c <= 'z':
		return []byte{c - 'a' + 1}, nil
	case c >= 'A' && c <= 'Z':
		return []byte{c - 'A' + 1}, nil
	case c >= '@' && c <= '_':
		return []byte{c - '@'}, nil
	case c == '?':
		return []byte{0x7f}, nil
	case c == ' ':
		return []byte{0}, nil
	}
	return nil, fmt.Errorf("%w: C-%s", ErrUnknownKey, rest)
}
