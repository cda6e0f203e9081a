package view

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/theme"
)

type windowBinding struct {
	keys key.Binding
	fn   func() error
}

// Window is a full-screen application surface: a title, body lines and a
// status line, with key bindings mapped to callbacks.
type Window struct {
	Title  string
	Status string

	lines    []string
	bindings []windowBinding
	styles   *theme.Styles
	released int
}

// NewWindow returns an empty window.
func NewWindow(title string) *Window {
	return &Window{Title: title, styles: theme.Default()}
}

// SetStyles replaces the style set used by View.
func (w *Window) SetStyles(s *theme.Styles) {
	if s != nil {
		w.styles = s
	}
}

// Bind runs fn whenever a key in b is pressed. Earlier bindings win.
func (w *Window) Bind(b key.Binding, fn func() error) {
	w.bindings = append(w.bindings, windowBinding{keys: b, fn: fn})
}

// SetLines replaces the body.
func (w *Window) SetLines(lines ...string) {
	w.lines = append(w.lines[:0], lines...)
}

// Lines returns a copy of the body.
func (w *Window) Lines() []string {
	return append([]string(nil), w.lines...)
}

// Help lists the enabled bindings as "key desc" pairs.
func (w *Window) Help() string {
	var parts []string
	for _, b := range w.bindings {
		if !b.keys.Enabled() {
			continue
		}
		h := b.keys.Help()
		if h.Key == "" {
			continue
		}
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// HandleEvent implements loop.Toplevel.
func (w *Window) HandleEvent(ev driver.Event) error {
	k, ok := ev.(driver.KeyEvent)
	if !ok || k.Up {
		return nil
	}
	for _, b := range w.bindings {
		if key.Matches(k, b.keys) {
			if b.fn == nil {
				return nil
			}
			return b.fn()
		}
	}
	return nil
}

// Layout implements loop.Toplevel.
func (w *Window) Layout() error { return nil }

// View renders the window filling width x height.
func (w *Window) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	rows := make([]string, 0, height)
	rows = append(rows, w.styles.WindowTitle.Render(ansi.Truncate(w.Title, width, "…")))

	footer := w.Status
	if help := w.Help(); help != "" {
		if footer != "" {
			footer += "  "
		}
		footer += help
	}

	body := height - 1
	if footer != "" {
		body--
	}
	for i := 0; i < body; i++ {
		line := ""
		if i < len(w.lines) {
			line = w.styles.WindowBody.Render(ansi.Truncate(w.lines[i], width, "…"))
		}
		rows = append(rows, line)
	}
	if footer != "" {
		rows = append(rows, w.styles.Status.Render(ansi.Truncate(footer, width, "…")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Release implements loop.Releaser.
func (w *Window) Release() { w.released++ }

// Released returns how many times Release was called.
func (w *Window) Released() int { return w.released }

func (w *Window) String() string { return "window " + w.Title }
