package driver

import "strings"

// Event is anything a driver emits on its event channel.
type Event interface {
	isEvent()
}

// Key identifies a non-printable key, or KeyRune for printable input.
type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyEsc
	KeyTab
	KeyBacktab
	KeyBackspace
	KeyDelete
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDown
	KeyInsert
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[Key]string{
	KeyEnter:     "enter",
	KeyEsc:       "esc",
	KeyTab:       "tab",
	KeyBacktab:   "shift+tab",
	KeyBackspace: "backspace",
	KeyDelete:    "delete",
	KeySpace:     "space",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPgUp:      "pgup",
	KeyPgDown:    "pgdown",
	KeyInsert:    "insert",
	KeyF1:        "f1",
	KeyF2:        "f2",
	KeyF3:        "f3",
	KeyF4:        "f4",
	KeyF5:        "f5",
	KeyF6:        "f6",
	KeyF7:        "f7",
	KeyF8:        "f8",
	KeyF9:        "f9",
	KeyF10:       "f10",
	KeyF11:       "f11",
	KeyF12:       "f12",
}

// Mod is a bit set of keyboard modifiers.
type Mod uint8

const (
	ModShift Mod = 1 << iota
	ModAlt
	ModCtrl
)

// KeyEvent is a key press (KeyDown) or, for drivers that report it, a key
// release (Up set).
type KeyEvent struct {
	Key  Key
	Rune rune
	Mod  Mod
	Up   bool
}

// String renders the key the way bubbles/key bindings spell keys, for
// example "ctrl+q", "enter", "shift+tab" or "y".
func (k KeyEvent) String() string {
	var b strings.Builder
	if k.Mod&ModCtrl != 0 {
		b.WriteString("ctrl+")
	}
	if k.Mod&ModAlt != 0 {
		b.WriteString("alt+")
	}
	if k.Key == KeyRune {
		if k.Mod&ModCtrl != 0 {
			b.WriteRune(toLower(k.Rune))
		} else {
			b.WriteRune(k.Rune)
		}
		return b.String()
	}
	if k.Mod&ModShift != 0 && k.Key != KeyBacktab {
		b.WriteString("shift+")
	}
	b.WriteString(keyNames[k.Key])
	return b.String()
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Rune builds a KeyEvent for a printable rune.
func Rune(r rune) KeyEvent {
	if r == ' ' {
		return KeyEvent{Key: KeySpace, Rune: ' '}
	}
	return KeyEvent{Key: KeyRune, Rune: r}
}

// Ctrl builds a KeyEvent for ctrl plus a letter.
func Ctrl(r rune) KeyEvent {
	return KeyEvent{Key: KeyRune, Rune: toLower(r), Mod: ModCtrl}
}

// ResizeEvent reports a new screen geometry.
type ResizeEvent struct {
	Width  int
	Height int
}

// MouseButton identifies the button involved in a pointer event.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// MouseAction distinguishes presses, releases and motion.
type MouseAction int

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMotion
)

// MouseEvent is a pointer event in cell coordinates.
type MouseEvent struct {
	X, Y   int
	Button MouseButton
	Action MouseAction
	Mod    Mod
}

// ErrorEvent carries an I/O failure from the driver. A fatal error ends the
// run context that observes it.
type ErrorEvent struct {
	Err   error
	Fatal bool
}

func (KeyEvent) isEvent()    {}
func (ResizeEvent) isEvent() {}
func (MouseEvent) isEvent()  {}
func (ErrorEvent) isEvent()  {}
