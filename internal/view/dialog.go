// Package view holds the surfaces the demo and the modal protocol put on
// screen: a Dialog with Buttons, and a plain application Window.
package view

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/event"
	"github.com/atomicstack/tuikit/internal/theme"
)

const (
	buttonPadding = 1
	buttonGap     = 1
	// chrome is the border plus horizontal padding around dialog content.
	chromeWidth  = 4
	chromeHeight = 2
)

type dialogKeys struct {
	Next     key.Binding
	Prev     key.Binding
	Activate key.Binding
	Cancel   key.Binding
}

func defaultDialogKeys() dialogKeys {
	return dialogKeys{
		Next:     key.NewBinding(key.WithKeys("tab", "right", "down")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab", "left", "up")),
		Activate: key.NewBinding(key.WithKeys("enter", "space")),
		Cancel:   key.NewBinding(key.WithKeys("esc")),
	}
}

// Dialog is a bordered box with a title, a message and a row of buttons.
type Dialog struct {
	Title   string
	Message string
	Buttons []*Button

	// LayoutCompleted fires after the first Layout of each run.
	LayoutCompleted event.Signal[*Dialog]
	// Cancelled fires when a cancel key is pressed.
	Cancelled event.Signal[*Dialog]

	width, height int
	focus         int
	laidOut       bool
	released      int
	keys          dialogKeys
	styles        *theme.Styles
}

// NewDialog builds a dialog with one button per label. Focus starts on the
// first button.
func NewDialog(title, message string, labels ...string) *Dialog {
	d := &Dialog{
		Title:   title,
		Message: message,
		keys:    defaultDialogKeys(),
		styles:  theme.Default(),
	}
	for _, label := range labels {
		d.AddButton(NewButton(label))
	}
	return d
}

// AddButton appends b and takes ownership of its focus state.
func (d *Dialog) AddButton(b *Button) {
	b.owner = d
	b.index = len(d.Buttons)
	d.Buttons = append(d.Buttons, b)
}

// SetDefault flags button i as the default and focuses it.
func (d *Dialog) SetDefault(i int) bool {
	if i < 0 || i >= len(d.Buttons) {
		return false
	}
	for j, b := range d.Buttons {
		b.IsDefault = j == i
	}
	d.setFocus(i)
	return true
}

// SetCancelKeys replaces the keys that fire Cancelled. The default is esc.
func (d *Dialog) SetCancelKeys(b key.Binding) {
	d.keys.Cancel = b
}

// SetStyles replaces the style set used by View.
func (d *Dialog) SetStyles(s *theme.Styles) {
	if s != nil {
		d.styles = s
	}
}

// SetSize fixes the outer size of the box. Zero values fall back to Measure.
func (d *Dialog) SetSize(width, height int) {
	d.width, d.height = width, height
}

// Size returns the outer size the box is drawn at.
func (d *Dialog) Size() (width, height int) {
	mw, mh := d.Measure()
	width, height = d.width, d.height
	if width <= 0 {
		width = mw
	}
	if height <= 0 {
		height = mh
	}
	return width, height
}

// Focused returns the index of the focused button, or -1.
func (d *Dialog) Focused() int {
	if len(d.Buttons) == 0 {
		return -1
	}
	return d.focus
}

// FocusNext moves focus right, wrapping at the end.
func (d *Dialog) FocusNext() bool {
	return d.moveFocusBy(1)
}

// FocusPrev moves focus left, wrapping at the start.
func (d *Dialog) FocusPrev() bool {
	return d.moveFocusBy(-1)
}

func (d *Dialog) moveFocusBy(delta int) bool {
	n := len(d.Buttons)
	if n == 0 {
		d.focus = 0
		return false
	}
	old := d.focus
	d.focus = ((d.focus+delta)%n + n) % n
	return d.focus != old
}

func (d *Dialog) setFocus(i int) {
	if i < 0 || i >= len(d.Buttons) {
		return
	}
	d.focus = i
}

// Measure returns the smallest outer size that shows the title, the
// message and the button row without wrapping.
func (d *Dialog) Measure() (width, height int) {
	content := ansi.StringWidth(d.Title)
	lines := messageLines(d.Message)
	for _, line := range lines {
		if w := ansi.StringWidth(line); w > content {
			content = w
		}
	}
	if w := d.buttonRowWidth(); w > content {
		content = w
	}
	height = len(lines) + chromeHeight
	if d.Title != "" {
		height += 2
	}
	if len(d.Buttons) > 0 {
		height += 2
	}
	return content + chromeWidth, height
}

func (d *Dialog) buttonRowWidth() int {
	if len(d.Buttons) == 0 {
		return 0
	}
	w := buttonGap * (len(d.Buttons) - 1)
	for _, b := range d.Buttons {
		w += b.width()
	}
	return w
}

func messageLines(msg string) []string {
	if msg == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
}

// HandleEvent implements loop.Toplevel.
func (d *Dialog) HandleEvent(ev driver.Event) error {
	k, ok := ev.(driver.KeyEvent)
	if !ok || k.Up {
		return nil
	}
	switch {
	case key.Matches(k, d.keys.Cancel):
		return d.Cancelled.Emit(d)
	case key.Matches(k, d.keys.Next):
		d.FocusNext()
		return nil
	case key.Matches(k, d.keys.Prev):
		d.FocusPrev()
		return nil
	case key.Matches(k, d.keys.Activate):
		if b := d.focused(); b != nil {
			return b.Activate()
		}
		return nil
	}
	if k.Key == driver.KeyRune && k.Mod&(driver.ModCtrl|driver.ModAlt) == 0 {
		r := unicode.ToLower(k.Rune)
		for _, b := range d.Buttons {
			if b.Hotkey() != 0 && b.Hotkey() == r {
				b.SetFocus()
				return b.Activate()
			}
		}
	}
	return nil
}

func (d *Dialog) focused() *Button {
	if len(d.Buttons) == 0 {
		return nil
	}
	return d.Buttons[d.focus]
}

// Layout implements loop.Toplevel. The first call fires LayoutCompleted.
func (d *Dialog) Layout() error {
	if d.laidOut {
		return nil
	}
	d.laidOut = true
	return d.LayoutCompleted.Emit(d)
}

// View renders the box centred in a width x height screen.
func (d *Dialog) View(width, height int) string {
	w, h := d.Size()
	inner := w - 2
	if inner < 1 {
		inner = 1
	}
	textWidth := inner - (chromeWidth - 2)
	if textWidth < 1 {
		textWidth = 1
	}

	var parts []string
	if d.Title != "" {
		parts = append(parts, d.styles.DialogTitle.Render(ansi.Truncate(d.Title, textWidth, "…")), "")
	}
	if d.Message != "" {
		parts = append(parts, d.styles.DialogMessage.Width(textWidth).Render(d.Message))
	}
	if len(d.Buttons) > 0 {
		parts = append(parts, "", d.renderButtons(textWidth))
	}

	box := d.styles.DialogBorder.Width(inner).Height(h - 2).Render(strings.Join(parts, "\n"))
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (d *Dialog) renderButtons(width int) string {
	rendered := make([]string, 0, len(d.Buttons))
	for i, b := range d.Buttons {
		style := d.styles.Button
		if i == d.focus {
			style = d.styles.FocusedButton
		}
		rendered = append(rendered, style.Render(b.label()))
	}
	row := strings.Join(rendered, strings.Repeat(" ", buttonGap))
	if ansi.StringWidth(row) > width {
		return ansi.Truncate(row, width, "")
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, row)
}

// Release implements loop.Releaser. It drops per-run layout state so a
// dialog shown again fires LayoutCompleted again.
func (d *Dialog) Release() {
	d.released++
	d.laidOut = false
}

// Released returns how many times Release was called.
func (d *Dialog) Released() int { return d.released }

func (d *Dialog) String() string { return "dialog " + d.Title }
