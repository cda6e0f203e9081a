// Package all registers every driver available on the current platform.
package all

import (
	_ "github.com/atomicstack/tuikit/internal/driver/ansi"
	_ "github.com/atomicstack/tuikit/internal/driver/curses"
	_ "github.com/atomicstack/tuikit/internal/driver/fake"
	_ "github.com/atomicstack/tuikit/internal/driver/tea"
	_ "github.com/atomicstack/tuikit/internal/driver/windows"
)
