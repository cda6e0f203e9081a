// Package windows drives the Windows console through tcell's console
// screen. The driver registers itself on Windows builds only; elsewhere Init
// reports the console as unavailable.
package windows

import (
	"github.com/gdamore/tcell/v2"

	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/driver/curses"
)

// Name is the registry name of the Windows console driver.
const Name = "windows"

// New returns an uninitialized console driver.
func New() driver.Driver {
	return curses.New(
		curses.WithName(Name),
		curses.WithScreenFactory(tcell.NewConsoleScreen),
	)
}
