// Package driver defines the contract a terminal backend implements, the
// events it raises, and the registry sessions use to pick one by name.
//
// Concrete drivers live in sub-packages and register themselves from init:
//
//	internal/driver/ansi     raw ANSI on golang.org/x/term
//	internal/driver/curses   terminfo via tcell
//	internal/driver/tea      Bubble Tea program as event source and renderer
//	internal/driver/windows  Windows console (windows builds only)
//	internal/driver/fake     in-memory, for tests and headless runs
//
// Importing internal/driver/all registers every driver available on the
// current platform.
package driver

import "fmt"

// Driver is a terminal backend. A driver is owned by exactly one session,
// which calls Init once, reads Events until the channel closes, and calls
// Fini once during shutdown.
type Driver interface {
	// Name returns the short registry name.
	Name() string
	// Init acquires the terminal. Failures to acquire it should be reported
	// with Unavailable so callers can tell them apart from programming errors.
	Init() error
	// Fini releases the terminal and closes the event channel. It must be
	// safe to call more than once.
	Fini() error
	// Size returns the current screen geometry in cells.
	Size() (width, height int)
	// Capabilities reports what the attached terminal supports. Only valid
	// after a successful Init.
	Capabilities() Capabilities
	// Events returns the stream of input, resize and error events in arrival
	// order.
	Events() <-chan Event
	// Render replaces the visible screen with frame, one line per row.
	Render(frame string) error
}

// ColorDepth is the number of colors a terminal can show.
type ColorDepth int

const (
	ColorsMono ColorDepth = iota
	Colors16
	Colors256
	ColorsTrue
)

func (c ColorDepth) String() string {
	switch c {
	case ColorsMono:
		return "mono"
	case Colors16:
		return "16"
	case Colors256:
		return "256"
	case ColorsTrue:
		return "truecolor"
	default:
		return fmt.Sprintf("ColorDepth(%d)", int(c))
	}
}

// Capabilities summarises the terminal a driver is attached to.
type Capabilities struct {
	Colors ColorDepth
	Mouse  bool
	// KeyUp is true when the driver reports key releases.
	KeyUp bool
}
