// Package modal runs a dialog in a nested loop context and returns the
// button the user chose.
//
// Query blocks the calling handler until the dialog's context unwinds, while
// the engine keeps iterating underneath it. Only one modal may be open per
// engine at a time.
package modal

import (
	"errors"
	"sync"

	"github.com/charmbracelet/bubbles/key"

	"github.com/atomicstack/tuikit/internal/logging/events"
	"github.com/atomicstack/tuikit/internal/loop"
	"github.com/atomicstack/tuikit/internal/theme"
	"github.com/atomicstack/tuikit/internal/view"
)

// NoSelection is returned when the modal unwound without a button press.
const NoSelection = -1

// maxWidthFraction caps auto-sized dialogs relative to the screen width.
const maxWidthFraction = 0.9

var (
	// ErrModalActive is returned when a modal is already open on the engine.
	ErrModalActive = errors.New("modal: another modal is active")
	// ErrNoButtons is returned when Options has no buttons.
	ErrNoButtons = errors.New("modal: no buttons")
)

var (
	activeMu sync.Mutex
	active   = map[*loop.Engine]bool{}
)

// Options describes a modal dialog.
type Options struct {
	Title   string
	Message string
	Buttons []string
	// Default is the index of the initially focused button.
	Default int
	// Width and Height fix the outer size. Zero means measure the content.
	Width  int
	Height int
	// CancelKeys close the modal with NoSelection. Defaults to esc.
	CancelKeys key.Binding
	Styles     *theme.Styles
	// Prepare, when set, is called with the dialog before it is shown.
	Prepare func(*view.Dialog) error
}

// Confirm asks a Yes/No/Cancel question with No as the default.
func Confirm(eng *loop.Engine, title, message string) (int, error) {
	return Query(eng, Options{
		Title:   title,
		Message: message,
		Buttons: []string{"Yes", "No", "Cancel"},
		Default: 1,
	})
}

// Query shows a dialog in a nested run and returns the index of the button
// that was activated, or NoSelection. The dialog is released exactly once
// before Query returns, whatever ended the run.
func Query(eng *loop.Engine, opts Options) (int, error) {
	if len(opts.Buttons) == 0 {
		return NoSelection, ErrNoButtons
	}
	if !acquire(eng) {
		return NoSelection, ErrModalActive
	}
	defer release(eng)

	d := view.NewDialog(opts.Title, opts.Message, opts.Buttons...)
	d.SetStyles(opts.Styles)
	if len(opts.CancelKeys.Keys()) > 0 {
		d.SetCancelKeys(opts.CancelKeys)
	}
	def := opts.Default
	if def < 0 || def >= len(d.Buttons) {
		def = 0
	}
	d.SetDefault(def)
	if opts.Prepare != nil {
		if err := opts.Prepare(d); err != nil {
			return NoSelection, err
		}
	}

	resize := func() {
		w, h := fit(eng, d, opts.Width, opts.Height)
		d.SetSize(w, h)
	}
	resize()

	result := NoSelection
	var ctx *loop.Context
	for _, b := range d.Buttons {
		b.Activated.Listen(func(b *view.Button) {
			result = b.Index()
			eng.RequestStop(ctx)
		})
	}
	d.Cancelled.Listen(func(*view.Dialog) {
		eng.RequestStop(ctx)
	})
	// Re-measure once the dialog has been laid out for the first time.
	unsubscribe := d.LayoutCompleted.Listen(func(*view.Dialog) { resize() })
	defer unsubscribe()

	w, h := d.Size()
	events.Modal.Open(opts.Title, opts.Buttons, w, h)

	ctx = eng.Begin(d)
	err := func() error {
		defer eng.End(ctx)
		return eng.RunContext(ctx)
	}()
	if err != nil {
		return NoSelection, err
	}
	events.Modal.Result(opts.Title, result)
	return result, nil
}

// fit returns the dialog size. Unset dimensions are measured; measured
// widths are clamped to a fraction of the screen.
func fit(eng *loop.Engine, d *view.Dialog, width, height int) (int, int) {
	mw, mh := d.Measure()
	sw, sh := eng.Size()
	if width <= 0 {
		width = mw
		if limit := int(float64(sw) * maxWidthFraction); sw > 0 && width > limit {
			width = limit
		}
	}
	if height <= 0 {
		height = mh
		if sh > 0 && height > sh {
			height = sh
		}
	}
	return width, height
}

func acquire(eng *loop.Engine) bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active[eng] {
		return false
	}
	active[eng] = true
	return true
}

func release(eng *loop.Engine) {
	activeMu.Lock()
	defer activeMu.Unlock()
	delete(active, eng)
}
