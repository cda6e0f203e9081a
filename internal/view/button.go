package view

import (
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/atomicstack/tuikit/internal/event"
)

// Button is a selectable option inside a Dialog.
type Button struct {
	Text      string
	IsDefault bool

	// Activated fires on the loop goroutine when the button is pressed.
	Activated event.Signal[*Button]

	index int
	owner *Dialog
}

// NewButton returns a button labelled text.
func NewButton(text string) *Button {
	return &Button{Text: text, index: -1}
}

// Index returns the button's position in its dialog, or -1.
func (b *Button) Index() int { return b.index }

// HasFocus reports whether the button is the focused one in its dialog.
func (b *Button) HasFocus() bool {
	return b.owner != nil && b.owner.focus == b.index
}

// SetFocus moves the dialog's focus to b.
func (b *Button) SetFocus() {
	if b.owner != nil {
		b.owner.setFocus(b.index)
	}
}

// Activate fires Activated.
func (b *Button) Activate() error {
	return b.Activated.Emit(b)
}

// Hotkey is the lower-cased first letter of the label, or 0.
func (b *Button) Hotkey() rune {
	r, _ := utf8.DecodeRuneInString(ansi.Strip(b.Text))
	if r == utf8.RuneError || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
		return 0
	}
	return unicode.ToLower(r)
}

// label renders the bracketed text. The default button uses angle brackets.
func (b *Button) label() string {
	if b.IsDefault {
		return "<" + b.Text + ">"
	}
	return "[" + b.Text + "]"
}

// width is the display width of the rendered button including padding.
func (b *Button) width() int {
	return ansi.StringWidth(b.label()) + 2*buttonPadding
}
