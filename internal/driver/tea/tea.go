// Package tea is a driver that runs a Bubble Tea program underneath the
// run loop. Bubble Tea owns the terminal, decodes input and paints frames;
// the driver forwards its messages as driver events and hands it each frame
// the engine renders.
package tea

import (
	"errors"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/atomicstack/tuikit/internal/driver"
)

// Name is the registry name of the tea driver.
const Name = "tea"

func init() {
	driver.Register(Name, "Bubble Tea program as event source and renderer", func() driver.Driver { return New() })
}

type frameMsg string

type model struct {
	d     *Driver
	frame string
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = string(msg)
	case tea.KeyMsg:
		for _, ev := range translateKey(msg) {
			m.d.send(ev)
		}
	case tea.MouseMsg:
		m.d.send(translateMouse(msg))
	case tea.WindowSizeMsg:
		m.d.setSize(msg.Width, msg.Height)
		m.d.send(driver.ResizeEvent{Width: msg.Width, Height: msg.Height})
	}
	return m, nil
}

func (m model) View() string { return m.frame }

// Driver runs a tea.Program.
type Driver struct {
	in      io.Reader
	out     io.Writer
	altScr  bool
	program *tea.Program

	mu     sync.Mutex
	width  int
	height int
	inited bool
	closed bool

	events chan driver.Event
	stop   chan struct{}
	group  errgroup.Group
}

// Option configures a Driver.
type Option func(*Driver)

// WithIO runs the program on in and out instead of stdin and stdout.
// Readers and writers that are not terminals skip the terminal check.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(d *Driver) {
		d.in = in
		d.out = out
	}
}

// WithAltScreen controls whether the program switches to the alternate
// screen. It is on by default.
func WithAltScreen(enabled bool) Option {
	return func(d *Driver) { d.altScr = enabled }
}

// New returns an uninitialized driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		in:     os.Stdin,
		out:    os.Stdout,
		altScr: true,
		width:  80,
		height: 24,
		events: make(chan driver.Event, 256),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("tea: driver already finalized")
	}
	if d.inited {
		return nil
	}
	if f, ok := d.in.(*os.File); ok {
		if err := driver.RequireTerminal(Name, f); err != nil {
			return err
		}
	}
	if f, ok := d.out.(*os.File); ok {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
			d.width, d.height = w, h
		}
	}

	opts := []tea.ProgramOption{
		tea.WithInput(d.in),
		tea.WithOutput(d.out),
		tea.WithMouseCellMotion(),
		tea.WithoutSignalHandler(),
	}
	if d.altScr {
		opts = append(opts, tea.WithAltScreen())
	}
	d.program = tea.NewProgram(model{d: d}, opts...)
	d.group.Go(d.run)
	d.inited = true
	return nil
}

func (d *Driver) run() error {
	_, err := d.program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		d.send(driver.ErrorEvent{Err: err, Fatal: true})
		return err
	}
	return nil
}

func (d *Driver) Fini() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	inited := d.inited
	d.mu.Unlock()

	close(d.stop)
	var err error
	if inited {
		d.program.Quit()
		err = d.group.Wait()
	}
	close(d.events)
	return err
}

func (d *Driver) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *Driver) setSize(w, h int) {
	d.mu.Lock()
	d.width, d.height = w, h
	d.mu.Unlock()
}

// Capabilities reports true color and mouse support. The renderer
// downsamples colors for the attached terminal itself.
func (d *Driver) Capabilities() driver.Capabilities {
	return driver.Capabilities{Colors: driver.ColorsTrue, Mouse: true}
}

func (d *Driver) Events() <-chan driver.Event { return d.events }

func (d *Driver) Render(frame string) error {
	d.mu.Lock()
	p, ok := d.program, d.inited && !d.closed
	d.mu.Unlock()
	if !ok {
		return errors.New("tea: not running")
	}
	p.Send(frameMsg(frame))
	return nil
}

func (d *Driver) send(ev driver.Event) {
	select {
	case d.events <- ev:
	case <-d.stop:
	}
}

var keys = map[tea.KeyType]driver.KeyEvent{
	tea.KeyEnter:          {Key: driver.KeyEnter},
	tea.KeyTab:            {Key: driver.KeyTab},
	tea.KeyShiftTab:       {Key: driver.KeyBacktab},
	tea.KeyEsc:            {Key: driver.KeyEsc},
	tea.KeyBackspace:      {Key: driver.KeyBackspace},
	tea.KeyDelete:         {Key: driver.KeyDelete},
	tea.KeySpace:          {Key: driver.KeySpace, Rune: ' '},
	tea.KeyUp:             {Key: driver.KeyUp},
	tea.KeyDown:           {Key: driver.KeyDown},
	tea.KeyLeft:           {Key: driver.KeyLeft},
	tea.KeyRight:          {Key: driver.KeyRight},
	tea.KeyHome:           {Key: driver.KeyHome},
	tea.KeyEnd:            {Key: driver.KeyEnd},
	tea.KeyPgUp:           {Key: driver.KeyPgUp},
	tea.KeyPgDown:         {Key: driver.KeyPgDown},
	tea.KeyInsert:         {Key: driver.KeyInsert},
	tea.KeyShiftUp:        {Key: driver.KeyUp, Mod: driver.ModShift},
	tea.KeyShiftDown:      {Key: driver.KeyDown, Mod: driver.ModShift},
	tea.KeyShiftLeft:      {Key: driver.KeyLeft, Mod: driver.ModShift},
	tea.KeyShiftRight:     {Key: driver.KeyRight, Mod: driver.ModShift},
	tea.KeyCtrlUp:         {Key: driver.KeyUp, Mod: driver.ModCtrl},
	tea.KeyCtrlDown:       {Key: driver.KeyDown, Mod: driver.ModCtrl},
	tea.KeyCtrlLeft:       {Key: driver.KeyLeft, Mod: driver.ModCtrl},
	tea.KeyCtrlRight:      {Key: driver.KeyRight, Mod: driver.ModCtrl},
	tea.KeyF1:             {Key: driver.KeyF1},
	tea.KeyF2:             {Key: driver.KeyF2},
	tea.KeyF3:             {Key: driver.KeyF3},
	tea.KeyF4:             {Key: driver.KeyF4},
	tea.KeyF5:             {Key: driver.KeyF5},
	tea.KeyF6:             {Key: driver.KeyF6},
	tea.KeyF7:             {Key: driver.KeyF7},
	tea.KeyF8:             {Key: driver.KeyF8},
	tea.KeyF9:             {Key: driver.KeyF9},
	tea.KeyF10:            {Key: driver.KeyF10},
	tea.KeyF11:            {Key: driver.KeyF11},
	tea.KeyF12:            {Key: driver.KeyF12},
	tea.KeyCtrlBackslash:  {Key: driver.KeyRune, Rune: '\\', Mod: driver.ModCtrl},
	tea.KeyCtrlUnderscore: {Key: driver.KeyRune, Rune: '_', Mod: driver.ModCtrl},
}

// translateKey turns a key message into events. Pasted text arrives as one
// message and becomes one event per rune.
func translateKey(k tea.KeyMsg) []driver.Event {
	var alt driver.Mod
	if k.Alt {
		alt = driver.ModAlt
	}
	if k.Type == tea.KeyRunes {
		out := make([]driver.Event, 0, len(k.Runes))
		for _, r := range k.Runes {
			ev := driver.Rune(r)
			ev.Mod |= alt
			out = append(out, ev)
		}
		return out
	}
	if ev, ok := keys[k.Type]; ok {
		ev.Mod |= alt
		return []driver.Event{ev}
	}
	if k.Type >= tea.KeyCtrlA && k.Type <= tea.KeyCtrlZ {
		ev := driver.Ctrl(rune('a' + k.Type - tea.KeyCtrlA))
		ev.Mod |= alt
		return []driver.Event{ev}
	}
	return nil
}

var mouseButtons = map[tea.MouseButton]driver.MouseButton{
	tea.MouseButtonLeft:      driver.MouseLeft,
	tea.MouseButtonMiddle:    driver.MouseMiddle,
	tea.MouseButtonRight:     driver.MouseRight,
	tea.MouseButtonWheelUp:   driver.MouseWheelUp,
	tea.MouseButtonWheelDown: driver.MouseWheelDown,
}

func translateMouse(m tea.MouseMsg) driver.MouseEvent {
	ev := driver.MouseEvent{X: m.X, Y: m.Y, Button: mouseButtons[m.Button]}
	switch m.Action {
	case tea.MouseActionRelease:
		ev.Action = driver.MouseRelease
	case tea.MouseActionMotion:
		ev.Action = driver.MouseMotion
	}
	if m.Shift {
		ev.Mod |= driver.ModShift
	}
	if m.Alt {
		ev.Mod |= driver.ModAlt
	}
	if m.Ctrl {
		ev.Mod |= driver.ModCtrl
	}
	return ev
}
