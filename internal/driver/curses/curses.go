// Package curses is a terminfo-based driver built on tcell. It is the
// default driver on unix platforms.
package curses

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"

	"github.com/atomicstack/tuikit/internal/driver"
)

// Name is the registry name of the curses driver.
const Name = "curses"

func init() {
	driver.Register(Name, "terminfo terminal via tcell", func() driver.Driver { return New() })
}

// Driver adapts a tcell.Screen.
type Driver struct {
	name      string
	newScreen func() (tcell.Screen, error)

	mu     sync.Mutex
	screen tcell.Screen
	caps   driver.Capabilities
	inited bool
	closed bool

	events chan driver.Event
	stop   chan struct{}
	group  errgroup.Group
}

// Option configures a Driver.
type Option func(*Driver)

// WithName changes the name the driver reports.
func WithName(name string) Option {
	return func(d *Driver) { d.name = name }
}

// WithScreen uses scr instead of opening the controlling terminal. Tests
// pass a tcell.SimulationScreen.
func WithScreen(scr tcell.Screen) Option {
	return WithScreenFactory(func() (tcell.Screen, error) { return scr, nil })
}

// WithScreenFactory replaces tcell.NewScreen.
func WithScreenFactory(fn func() (tcell.Screen, error)) Option {
	return func(d *Driver) { d.newScreen = fn }
}

// New returns an uninitialized driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		name:      Name,
		newScreen: tcell.NewScreen,
		events:    make(chan driver.Event, 256),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("curses: driver already finalized")
	}
	if d.inited {
		return nil
	}
	scr, err := d.newScreen()
	if err != nil {
		// tcell fails here when there is no tty or no terminfo entry
		return driver.Unavailable(d.name, err)
	}
	if err := scr.Init(); err != nil {
		return fmt.Errorf("%s: %w", d.name, err)
	}
	scr.EnableMouse()
	scr.HideCursor()
	scr.Clear()

	d.screen = scr
	d.caps = driver.Capabilities{
		Colors: colorDepth(scr.Colors()),
		Mouse:  scr.HasMouse(),
	}
	d.group.Go(d.pollLoop)
	d.inited = true
	return nil
}

func (d *Driver) Fini() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	scr := d.screen
	d.mu.Unlock()

	close(d.stop)
	if scr != nil {
		// Fini stops PollEvent, which ends pollLoop.
		scr.Fini()
	}
	err := d.group.Wait()
	close(d.events)
	return err
}

func (d *Driver) Size() (int, int) {
	d.mu.Lock()
	scr := d.screen
	d.mu.Unlock()
	if scr == nil {
		return 80, 24
	}
	return scr.Size()
}

func (d *Driver) Capabilities() driver.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *Driver) Events() <-chan driver.Event { return d.events }

// Render draws frame as plain text. Styling escapes are stripped since tcell
// owns the terminal's attributes.
func (d *Driver) Render(frame string) error {
	d.mu.Lock()
	scr := d.screen
	d.mu.Unlock()
	if scr == nil {
		return errors.New("curses: not initialized")
	}
	width, height := scr.Size()
	scr.Clear()
	for y, line := range strings.Split(xansi.Strip(frame), "\n") {
		if y >= height {
			break
		}
		x := 0
		for _, r := range line {
			w := runewidth.RuneWidth(r)
			if x+w > width {
				break
			}
			scr.SetContent(x, y, r, nil, tcell.StyleDefault)
			x += w
		}
	}
	scr.Show()
	return nil
}

func (d *Driver) pollLoop() error {
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return nil
		}
		out, ok := translate(ev)
		if !ok {
			continue
		}
		select {
		case d.events <- out:
		case <-d.stop:
			return nil
		}
	}
}

func translate(ev tcell.Event) (driver.Event, bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return translateKey(ev)
	case *tcell.EventResize:
		w, h := ev.Size()
		return driver.ResizeEvent{Width: w, Height: h}, true
	case *tcell.EventMouse:
		return translateMouse(ev), true
	case *tcell.EventError:
		return driver.ErrorEvent{Err: ev}, true
	}
	return nil, false
}

var specialKeys = map[tcell.Key]driver.Key{
	tcell.KeyEnter:     driver.KeyEnter,
	tcell.KeyLF:        driver.KeyEnter,
	tcell.KeyEscape:    driver.KeyEsc,
	tcell.KeyTab:       driver.KeyTab,
	tcell.KeyBacktab:   driver.KeyBacktab,
	tcell.KeyBackspace: driver.KeyBackspace,
	tcell.KeyDEL:       driver.KeyBackspace,
	tcell.KeyDelete:    driver.KeyDelete,
	tcell.KeyUp:        driver.KeyUp,
	tcell.KeyDown:      driver.KeyDown,
	tcell.KeyLeft:      driver.KeyLeft,
	tcell.KeyRight:     driver.KeyRight,
	tcell.KeyHome:      driver.KeyHome,
	tcell.KeyEnd:       driver.KeyEnd,
	tcell.KeyPgUp:      driver.KeyPgUp,
	tcell.KeyPgDn:      driver.KeyPgDown,
	tcell.KeyInsert:    driver.KeyInsert,
	tcell.KeyF1:        driver.KeyF1,
	tcell.KeyF2:        driver.KeyF2,
	tcell.KeyF3:        driver.KeyF3,
	tcell.KeyF4:        driver.KeyF4,
	tcell.KeyF5:        driver.KeyF5,
	tcell.KeyF6:        driver.KeyF6,
	tcell.KeyF7:        driver.KeyF7,
	tcell.KeyF8:        driver.KeyF8,
	tcell.KeyF9:        driver.KeyF9,
	tcell.KeyF10:       driver.KeyF10,
	tcell.KeyF11:       driver.KeyF11,
	tcell.KeyF12:       driver.KeyF12,
}

func translateKey(ev *tcell.EventKey) (driver.Event, bool) {
	mod := translateMod(ev.Modifiers())
	k := ev.Key()
	switch {
	case k == tcell.KeyRune:
		if ev.Rune() == ' ' {
			return driver.KeyEvent{Key: driver.KeySpace, Rune: ' ', Mod: mod}, true
		}
		// the shift state is already folded into the rune
		return driver.KeyEvent{Key: driver.KeyRune, Rune: ev.Rune(), Mod: mod &^ driver.ModShift}, true
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ && k != tcell.KeyTab && k != tcell.KeyEnter &&
		k != tcell.KeyBackspace && k != tcell.KeyLF:
		return driver.KeyEvent{Key: driver.KeyRune, Rune: rune('a' + k - tcell.KeyCtrlA), Mod: mod | driver.ModCtrl}, true
	}
	if dk, ok := specialKeys[k]; ok {
		return driver.KeyEvent{Key: dk, Mod: mod &^ driver.ModCtrl}, true
	}
	return nil, false
}

func translateMod(m tcell.ModMask) driver.Mod {
	var out driver.Mod
	if m&tcell.ModShift != 0 {
		out |= driver.ModShift
	}
	if m&tcell.ModAlt != 0 || m&tcell.ModMeta != 0 {
		out |= driver.ModAlt
	}
	if m&tcell.ModCtrl != 0 {
		out |= driver.ModCtrl
	}
	return out
}

func translateMouse(ev *tcell.EventMouse) driver.MouseEvent {
	x, y := ev.Position()
	out := driver.MouseEvent{X: x, Y: y, Mod: translateMod(ev.Modifiers())}
	b := ev.Buttons()
	switch {
	case b&tcell.WheelUp != 0:
		out.Button = driver.MouseWheelUp
	case b&tcell.WheelDown != 0:
		out.Button = driver.MouseWheelDown
	case b&tcell.ButtonPrimary != 0:
		out.Button = driver.MouseLeft
	case b&tcell.ButtonMiddle != 0:
		out.Button = driver.MouseMiddle
	case b&tcell.ButtonSecondary != 0:
		out.Button = driver.MouseRight
	default:
		// tcell reports a release as an event with no buttons held
		out.Action = driver.MouseRelease
	}
	return out
}

func colorDepth(n int) driver.ColorDepth {
	switch {
	case n >= 1<<24:
		return driver.ColorsTrue
	case n >= 256:
		return driver.Colors256
	case n >= 8:
		return driver.Colors16
	default:
		return driver.ColorsMono
	}
}
