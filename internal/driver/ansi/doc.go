// Package ansi is a driver that talks to the terminal directly: it puts the
// tty into raw mode with golang.org/x/term, decodes xterm-style input
// sequences itself and paints frames with plain ANSI control sequences.
//
// The driver is only built on unix platforms.
package ansi

// Name is the registry name of the ansi driver.
const Name = "ansi"
