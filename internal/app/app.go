package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"

	"github.com/atomicstack/tuikit/internal/bridge"
	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/logging/events"
	"github.com/atomicstack/tuikit/internal/modal"
	"github.com/atomicstack/tuikit/internal/session"
	"github.com/atomicstack/tuikit/internal/view"
)

// Config describes user-provided application options.
type Config struct {
	// Driver is the requested driver name; empty lets the session decide.
	Driver string
	// Session defaults to the process-wide session.
	Session *session.Session
	// Tick is the clock refresh interval.
	Tick time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

var answerLabels = []string{"Yes", "No", "Cancel"}

// Demo is the main window of the demo program: session details, a clock fed
// from a background goroutine through the bridge, and key bindings that
// open modal dialogs.
type Demo struct {
	cfg     Config
	s       *session.Session
	win     *view.Window
	clock   string
	answers []string
	watch   *bridge.Task
	unsub   []func()
}

// NewDemo builds the window. Nothing is shown until Run.
func NewDemo(cfg Config) *Demo {
	if cfg.Session == nil {
		cfg.Session = session.Default()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := &Demo{cfg: cfg, s: cfg.Session, win: view.NewWindow("tuikit")}
	d.win.Bind(key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "confirm")), d.confirm)
	d.win.Bind(key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "about")), d.about)
	d.win.Bind(key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")), d.quit)
	return d
}

// Run starts the session, shows the window until it is closed and shuts the
// session down again.
func Run(cfg Config) error {
	return NewDemo(cfg).Run()
}

// Run shows the window.
func (d *Demo) Run() error {
	unsubscribe := d.s.OnLifecycleChanged(d.lifecycle)
	defer unsubscribe()
	err := d.s.RunApp(d.win, session.StartOptions{DriverName: d.cfg.Driver})
	events.App.Exit(err)
	return err
}

// Window returns the demo's window.
func (d *Demo) Window() *view.Window { return d.win }

// Answers lists the confirm results in the order they were given.
func (d *Demo) Answers() []string { return append([]string(nil), d.answers...) }

func (d *Demo) lifecycle(up bool) {
	if !up {
		if d.watch != nil {
			d.watch.Stop()
			d.watch.Wait()
			d.watch = nil
		}
		for _, fn := range d.unsub {
			fn()
		}
		d.unsub = nil
		return
	}
	d.win.SetStyles(d.s.Styles())
	d.unsub = append(d.unsub, d.s.Engine().Pointer.Listen(func(ev driver.MouseEvent) {
		d.win.Status = fmt.Sprintf("pointer at %d,%d", ev.X, ev.Y)
	}))
	d.watch = bridge.Watch(context.Background(), d.s.Bridge(), "clock", d.cfg.Tick,
		func(context.Context) (time.Time, error) { return d.cfg.Now(), nil },
		func(now time.Time, err error) error {
			if err != nil {
				return err
			}
			d.clock = now.Format("15:04:05")
			d.refresh()
			return nil
		})
	d.refresh()
}

func (d *Demo) refresh() {
	drv := d.s.Driver()
	if drv == nil {
		return
	}
	caps := drv.Capabilities()
	mouse := "off"
	if caps.Mouse && d.s.Settings().Mouse {
		mouse = "on"
	}
	answers := "none yet"
	if len(d.answers) > 0 {
		answers = strings.Join(d.answers, ", ")
	}
	d.win.SetLines(
		fmt.Sprintf("session  %s", d.s.ID()),
		fmt.Sprintf("driver   %s (%s, mouse %s)", drv.Name(), caps.Colors, mouse),
		fmt.Sprintf("locales  %s", strings.Join(d.s.Locales(), ", ")),
		fmt.Sprintf("theme    %s", d.s.Settings().Theme),
		fmt.Sprintf("clock    %s", d.clock),
		fmt.Sprintf("answers  %s", answers),
	)
}

func (d *Demo) confirm() error {
	choice, err := modal.Confirm(d.s.Engine(), "Confirm", "Record an answer?")
	if err != nil {
		return err
	}
	answer := "dismissed"
	if choice >= 0 && choice < len(answerLabels) {
		answer = answerLabels[choice]
	}
	d.answers = append(d.answers, answer)
	d.win.Status = "answered " + answer
	d.refresh()
	return nil
}

func (d *Demo) about() error {
	eng := d.s.Engine()
	_, err := modal.Query(eng, modal.Options{
		Title:   "About",
		Message: fmt.Sprintf("tuikit demo\nrun depth %d", eng.Depth()+1),
		Buttons: []string{"OK"},
		Styles:  d.s.Styles(),
	})
	return err
}

func (d *Demo) quit() error {
	d.s.Engine().RequestStop(nil)
	return nil
}
