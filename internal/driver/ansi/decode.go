package ansi

import (
	"unicode/utf8"

	"github.com/atomicstack/tuikit/internal/driver"
)

const esc = 0x1b

// longest CSI sequence we wait for before giving up on it
const maxCSI = 32

// decode parses as many complete events from buf as it can and returns them
// with the number of bytes consumed. Incomplete trailing sequences are left
// in place. With flush set, a lone trailing ESC is reported as the escape
// key and any other incomplete tail is dropped.
func decode(buf []byte, flush bool) ([]driver.Event, int) {
	var out []driver.Event
	i := 0
	for i < len(buf) {
		b := buf[i]
		switch {
		case b == esc:
			n, ev := decodeEscape(buf[i:])
			if n == 0 {
				if !flush {
					return out, i
				}
				if i == len(buf)-1 {
					out = append(out, driver.KeyEvent{Key: driver.KeyEsc})
				}
				return out, len(buf)
			}
			if ev != nil {
				out = append(out, ev)
			}
			i += n
		case b < 0x20 || b == 0x7f:
			out = append(out, control(b))
			i++
		case b < 0x80:
			out = append(out, driver.Rune(rune(b)))
			i++
		default:
			if !utf8.FullRune(buf[i:]) {
				if !flush {
					return out, i
				}
				return out, len(buf)
			}
			r, size := utf8.DecodeRune(buf[i:])
			out = append(out, driver.Rune(r))
			i += size
		}
	}
	return out, i
}

func control(b byte) driver.KeyEvent {
	switch b {
	case 0x00:
		return driver.KeyEvent{Key: driver.KeySpace, Rune: ' ', Mod: driver.ModCtrl}
	case '\r', '\n':
		return driver.KeyEvent{Key: driver.KeyEnter}
	case '\t':
		return driver.KeyEvent{Key: driver.KeyTab}
	case 0x08, 0x7f:
		return driver.KeyEvent{Key: driver.KeyBackspace}
	case esc:
		return driver.KeyEvent{Key: driver.KeyEsc}
	}
	if b <= 0x1a {
		return driver.Ctrl(rune('a' + b - 1))
	}
	return driver.KeyEvent{Key: driver.KeyRune, Rune: rune(b + 0x40), Mod: driver.ModCtrl}
}

// decodeEscape handles a sequence starting with ESC. It returns 0 when more
// bytes are needed, and a nil event for sequences that are consumed but not
// reported.
func decodeEscape(buf []byte) (int, driver.Event) {
	if len(buf) < 2 {
		return 0, nil
	}
	switch c := buf[1]; {
	case c == '[':
		return decodeCSI(buf)
	case c == 'O':
		if len(buf) < 3 {
			return 0, nil
		}
		if k, ok := ss3Keys[buf[2]]; ok {
			return 3, driver.KeyEvent{Key: k}
		}
		return 3, nil
	case c == esc:
		return 2, driver.KeyEvent{Key: driver.KeyEsc, Mod: driver.ModAlt}
	case c < 0x20 || c == 0x7f:
		ev := control(c)
		ev.Mod |= driver.ModAlt
		return 2, ev
	case c < 0x80:
		return 2, driver.KeyEvent{Key: driver.KeyRune, Rune: rune(c), Mod: driver.ModAlt}
	}
	return 1, driver.KeyEvent{Key: driver.KeyEsc}
}

var ss3Keys = map[byte]driver.Key{
	'A': driver.KeyUp,
	'B': driver.KeyDown,
	'C': driver.KeyRight,
	'D': driver.KeyLeft,
	'H': driver.KeyHome,
	'F': driver.KeyEnd,
	'P': driver.KeyF1,
	'Q': driver.KeyF2,
	'R': driver.KeyF3,
	'S': driver.KeyF4,
}

var csiFinalKeys = map[byte]driver.Key{
	'A': driver.KeyUp,
	'B': driver.KeyDown,
	'C': driver.KeyRight,
	'D': driver.KeyLeft,
	'H': driver.KeyHome,
	'F': driver.KeyEnd,
	'P': driver.KeyF1,
	'Q': driver.KeyF2,
	'R': driver.KeyF3,
	'S': driver.KeyF4,
}

var csiTildeKeys = map[int]driver.Key{
	1:  driver.KeyHome,
	2:  driver.KeyInsert,
	3:  driver.KeyDelete,
	4:  driver.KeyEnd,
	5:  driver.KeyPgUp,
	6:  driver.KeyPgDown,
	7:  driver.KeyHome,
	8:  driver.KeyEnd,
	11: driver.KeyF1,
	12: driver.KeyF2,
	13: driver.KeyF3,
	14: driver.KeyF4,
	15: driver.KeyF5,
	17: driver.KeyF6,
	18: driver.KeyF7,
	19: driver.KeyF8,
	20: driver.KeyF9,
	21: driver.KeyF10,
	23: driver.KeyF11,
	24: driver.KeyF12,
}

func decodeCSI(buf []byte) (int, driver.Event) {
	if len(buf) < 3 {
		return 0, nil
	}
	if buf[2] == '<' {
		return decodeSGRMouse(buf)
	}
	end := 2
	for ; end < len(buf); end++ {
		b := buf[end]
		if b >= 0x40 && b <= 0x7e {
			break
		}
		if b < 0x20 || b > 0x3f {
			// not a CSI parameter byte; drop the introducer
			return 2, nil
		}
		if end-2 >= maxCSI {
			return end, nil
		}
	}
	if end == len(buf) {
		return 0, nil
	}
	final := buf[end]
	params := parseParams(buf[2:end])
	n := end + 1

	if final == 'Z' {
		return n, driver.KeyEvent{Key: driver.KeyBacktab}
	}
	var k driver.Key
	var ok bool
	if final == '~' {
		if len(params) == 0 {
			return n, nil
		}
		k, ok = csiTildeKeys[params[0]]
	} else {
		k, ok = csiFinalKeys[final]
	}
	if !ok {
		return n, nil
	}
	ev := driver.KeyEvent{Key: k}
	if len(params) > 1 {
		ev.Mod = modifiers(params[1])
	}
	return n, ev
}

// modifiers decodes the xterm "1 + bits" modifier parameter.
func modifiers(p int) driver.Mod {
	if p <= 1 {
		return 0
	}
	bits := p - 1
	var m driver.Mod
	if bits&1 != 0 {
		m |= driver.ModShift
	}
	if bits&2 != 0 {
		m |= driver.ModAlt
	}
	if bits&4 != 0 {
		m |= driver.ModCtrl
	}
	return m
}

func parseParams(b []byte) []int {
	if len(b) == 0 {
		return nil
	}
	params := []int{0}
	for _, c := range b {
		switch {
		case c == ';':
			params = append(params, 0)
		case c >= '0' && c <= '9':
			last := len(params) - 1
			if params[last] < 1<<16 {
				params[last] = params[last]*10 + int(c-'0')
			}
		}
	}
	return params
}

// decodeSGRMouse parses ESC [ < btn ; x ; y (M|m).
func decodeSGRMouse(buf []byte) (int, driver.Event) {
	end := 3
	for ; end < len(buf); end++ {
		c := buf[end]
		if c == 'M' || c == 'm' {
			break
		}
		if (c < '0' || c > '9') && c != ';' {
			return end, nil
		}
		if end-3 >= maxCSI {
			return end, nil
		}
	}
	if end == len(buf) {
		return 0, nil
	}
	params := parseParams(buf[3:end])
	n := end + 1
	if len(params) != 3 {
		return n, nil
	}
	btn, x, y := params[0], params[1], params[2]

	ev := driver.MouseEvent{X: x - 1, Y: y - 1}
	switch {
	case btn&64 != 0:
		ev.Button = driver.MouseWheelUp
		if btn&1 != 0 {
			ev.Button = driver.MouseWheelDown
		}
	default:
		switch btn & 3 {
		case 0:
			ev.Button = driver.MouseLeft
		case 1:
			ev.Button = driver.MouseMiddle
		case 2:
			ev.Button = driver.MouseRight
		}
		switch {
		case buf[end] == 'm':
			ev.Action = driver.MouseRelease
		case btn&32 != 0:
			ev.Action = driver.MouseMotion
		}
	}
	if btn&4 != 0 {
		ev.Mod |= driver.ModShift
	}
	if btn&8 != 0 {
		ev.Mod |= driver.ModAlt
	}
	if btn&16 != 0 {
		ev.Mod |= driver.ModCtrl
	}
	return n, ev
}
