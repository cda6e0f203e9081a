package modal

import (
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/google/go-cmp/cmp"

	"github.com/atomicstack/tuikit/internal/bridge"
	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/driver/fake"
	"github.com/atomicstack/tuikit/internal/loop"
	"github.com/atomicstack/tuikit/internal/view"
)

func newEngine(t *testing.T, opts ...fake.Option) (*loop.Engine, *fake.Driver) {
	t.Helper()
	drv := fake.New(opts...)
	if err := drv.Init(); err != nil {
		t.Fatalf("init fake driver: %v", err)
	}
	t.Cleanup(func() { _ = drv.Fini() })
	eng := loop.New(drv, bridge.New(), loop.Options{
		NonBlocking: true,
		StopKeys:    key.NewBinding(key.WithKeys("ctrl+q")),
	})
	return eng, drv
}

func yesNoCancel(captured **view.Dialog) Options {
	return Options{
		Title:   "Quit",
		Message: "Are you sure?",
		Buttons: []string{"Yes", "No", "Cancel"},
		Default: 1,
		Prepare: func(d *view.Dialog) error {
			*captured = d
			return nil
		},
	}
}

func TestQueryActivatingFirstOptionReturnsZero(t *testing.T) {
	eng, drv := newEngine(t)
	var d *view.Dialog
	drv.Inject(driver.KeyEvent{Key: driver.KeyBacktab}, driver.KeyEvent{Key: driver.KeyEnter})
	got, err := Query(eng, yesNoCancel(&d))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if d.Released() != 1 {
		t.Fatalf("expected dialog released once, got %d", d.Released())
	}
	if eng.Depth() != 0 {
		t.Fatalf("expected modal context popped, depth %d", eng.Depth())
	}
}

func TestQueryEnterPicksDefault(t *testing.T) {
	eng, drv := newEngine(t)
	var d *view.Dialog
	drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})
	got, err := Query(eng, yesNoCancel(&d))
	if err != nil || got != 1 {
		t.Fatalf("expected default 1, got %d (%v)", got, err)
	}
	if !d.Buttons[1].IsDefault {
		t.Fatalf("expected button 1 flagged default")
	}
}

func TestQueryCancelYieldsNoSelection(t *testing.T) {
	cases := map[string]driver.Event{
		"esc":      driver.KeyEvent{Key: driver.KeyEsc},
		"stop key": driver.Ctrl('q'),
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			eng, drv := newEngine(t)
			var d *view.Dialog
			drv.Inject(ev)
			got, err := Query(eng, yesNoCancel(&d))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != NoSelection {
				t.Fatalf("expected NoSelection, got %d", got)
			}
			if d.Released() != 1 {
				t.Fatalf("expected dialog released once, got %d", d.Released())
			}
		})
	}
}

func TestQueryCustomCancelKeys(t *testing.T) {
	eng, drv := newEngine(t)
	var d *view.Dialog
	opts := yesNoCancel(&d)
	opts.CancelKeys = key.NewBinding(key.WithKeys("x"))
	drv.Inject(driver.KeyEvent{Key: driver.KeyEsc}, driver.Rune('x'))
	got, err := Query(eng, opts)
	if err != nil || got != NoSelection {
		t.Fatalf("expected NoSelection, got %d (%v)", got, err)
	}
}

func TestQueryNestedRestoresOuterContext(t *testing.T) {
	eng, drv := newEngine(t)
	var results []int
	var outerCtx *loop.Context
	w := view.NewWindow("outer")
	var seen []string
	w.Bind(key.NewBinding(key.WithKeys("c")), func() error {
		got, err := Confirm(eng, "Confirm", "Continue?")
		if err != nil {
			return err
		}
		results = append(results, got)
		if eng.Current() != outerCtx {
			t.Fatalf("expected outer context restored")
		}
		return nil
	})
	w.Bind(key.NewBinding(key.WithKeys("z")), func() error {
		seen = append(seen, "z")
		return nil
	})
	w.Bind(key.NewBinding(key.WithKeys("q")), func() error {
		eng.RequestStop(outerCtx)
		return nil
	})

	drv.Inject(
		driver.Rune('c'), driver.Rune('y'),
		driver.Rune('z'),
		driver.Rune('c'), driver.KeyEvent{Key: driver.KeyEsc},
		driver.Rune('q'),
	)
	outerCtx = eng.Begin(w)
	err := eng.RunContext(outerCtx)
	eng.End(outerCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0] != 0 || results[1] != NoSelection {
		t.Fatalf("expected results [0 -1], got %v", results)
	}
	if len(seen) != 1 {
		t.Fatalf("expected z dispatched to the outer window once, got %v", seen)
	}
}

func TestQueryHandlerErrorReleasesAndPops(t *testing.T) {
	eng, drv := newEngine(t)
	boom := errors.New("boom")
	var d *view.Dialog
	opts := yesNoCancel(&d)
	opts.Prepare = func(dd *view.Dialog) error {
		d = dd
		dd.Buttons[0].Activated.Subscribe(func(*view.Button) error { return boom })
		return nil
	}
	drv.Inject(driver.Rune('y'))
	got, err := Query(eng, opts)
	if !errors.Is(err, boom) || got != NoSelection {
		t.Fatalf("expected boom and NoSelection, got %d (%v)", got, err)
	}
	if d.Released() != 1 || eng.Depth() != 0 {
		t.Fatalf("expected release and pop, released=%d depth=%d", d.Released(), eng.Depth())
	}

	// The engine is usable again afterwards.
	drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})
	if got, err := Confirm(eng, "again", "?"); err != nil || got != 1 {
		t.Fatalf("expected follow-up modal to succeed, got %d (%v)", got, err)
	}
}

func TestQueryRejectsSecondModal(t *testing.T) {
	eng, drv := newEngine(t)
	var inner error
	drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})
	_, err := Query(eng, Options{
		Buttons: []string{"Ok"},
		Prepare: func(*view.Dialog) error {
			_, inner = Query(eng, Options{Buttons: []string{"Ok"}})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(inner, ErrModalActive) {
		t.Fatalf("expected ErrModalActive, got %v", inner)
	}
}

func TestQueryFromBridgeItemKeepsSubmissionOrder(t *testing.T) {
	eng, drv := newEngine(t)
	br := eng.Bridge()
	var order []int
	var choice int
	var qerr error
	br.PostFunc("worker", func() {
		order = append(order, 1)
		br.PostFunc("worker", func() { order = append(order, 3) })
		choice, qerr = Query(eng, Options{Buttons: []string{"Ok"}})
	})
	br.PostFunc("worker", func() { order = append(order, 2) })
	drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})

	if err := br.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qerr != nil || choice != 0 {
		t.Fatalf("expected choice 0, got %d (%v)", choice, qerr)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, order); diff != "" {
		t.Fatalf("unexpected run order (-want +got):\n%s", diff)
	}
}

func TestQueryWithoutButtons(t *testing.T) {
	eng, _ := newEngine(t)
	if _, err := Query(eng, Options{Title: "empty"}); !errors.Is(err, ErrNoButtons) {
		t.Fatalf("expected ErrNoButtons, got %v", err)
	}
}

func TestAutoSizeFitsButtonsAndTitle(t *testing.T) {
	eng, drv := newEngine(t)
	var d *view.Dialog
	drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})
	_, err := Query(eng, Options{
		Title:   "0123456789",
		Message: "Are you sure?",
		Buttons: []string{"Yes", "No"},
		Prepare: func(dd *view.Dialog) error {
			d = dd
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, _ := d.Size()
	mw, _ := d.Measure()
	if w != mw {
		t.Fatalf("expected measured width %d, got %d", mw, w)
	}
	if w < len("0123456789") || w < len("[Yes] [No]") {
		t.Fatalf("width %d too narrow for title and buttons", w)
	}
	if w > 72 {
		t.Fatalf("width %d exceeds 90%% of 80 columns", w)
	}
}

func TestAutoSizeClampsToScreen(t *testing.T) {
	eng, _ := newEngine(t, fake.WithSize(20, 10))
	d := view.NewDialog("a rather long dialog title", "msg", "Yes", "No")
	w, h := fit(eng, d, 0, 0)
	if w != 18 {
		t.Fatalf("expected width clamped to 18, got %d", w)
	}
	if h > 10 {
		t.Fatalf("expected height within screen, got %d", h)
	}

	w, h = fit(eng, d, 40, 3)
	if w != 40 || h != 3 {
		t.Fatalf("expected explicit size kept, got %dx%d", w, h)
	}
}

func TestResizeBeforeLayoutIsRemeasured(t *testing.T) {
	eng, drv := newEngine(t, fake.WithSize(100, 30))
	var d *view.Dialog
	drv.Resize(20, 10)
	_, err := Query(eng, Options{
		Title:   "a rather long dialog title",
		Buttons: []string{"Ok"},
		Prepare: func(dd *view.Dialog) error {
			d = dd
			if w, _ := dd.Size(); w <= 18 {
				t.Fatalf("expected the initial measure to use the old screen, got %d", w)
			}
			dd.LayoutCompleted.Listen(func(*view.Dialog) {
				drv.Inject(driver.KeyEvent{Key: driver.KeyEnter})
			})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w, _ := d.Size(); w != 18 {
		t.Fatalf("expected width re-measured against the new screen, got %d", w)
	}
}
