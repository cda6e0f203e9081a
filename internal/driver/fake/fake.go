// Package fake provides an in-memory driver. It never touches a terminal, so
// sessions can start under automated tests and in headless environments.
package fake

import (
	"errors"
	"strings"
	"sync"

	"github.com/atomicstack/tuikit/internal/driver"
)

// Name is the registry name of the fake driver.
const Name = "fake"

func init() {
	driver.Register(Name, "in-memory driver for tests and headless runs", func() driver.Driver { return New() })
}

// Driver is an in-memory driver. Tests feed it events with Inject and read
// back what was rendered with Frames.
type Driver struct {
	mu       sync.Mutex
	width    int
	height   int
	caps     driver.Capabilities
	initErr  error
	events   chan driver.Event
	frames   []string

	// sendMu guards the event channel against closing while Inject sends;
	// done wakes senders blocked on a full channel.
	sendMu sync.RWMutex
	done   chan struct{}

	inited   bool
	closed   bool
	initRuns int
	finiRuns int
}

// Option configures a fake driver.
type Option func(*Driver)

// WithSize sets the initial screen size.
func WithSize(width, height int) Option {
	return func(d *Driver) {
		d.width = width
		d.height = height
	}
}

// WithCapabilities sets the reported capabilities.
func WithCapabilities(caps driver.Capabilities) Option {
	return func(d *Driver) { d.caps = caps }
}

// WithInitError makes Init fail with err.
func WithInitError(err error) Option {
	return func(d *Driver) { d.initErr = err }
}

// New returns an 80x25 fake driver with true-color and mouse support.
func New(opts ...Option) *Driver {
	d := &Driver{
		width:  80,
		height: 25,
		caps:   driver.Capabilities{Colors: driver.ColorsTrue, Mouse: true, KeyUp: true},
		events: make(chan driver.Event, 256),
		done:   make(chan struct{}),
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
	d.initRuns++
	if d.initErr != nil {
		return d.initErr
	}
	if d.closed {
		return errors.New("fake driver already finalized")
	}
	d.inited = true
	return nil
}

func (d *Driver) Fini() error {
	d.mu.Lock()
	d.finiRuns++
	d.mu.Unlock()
	d.close()
	return nil
}

func (d *Driver) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.sendMu.Lock()
	close(d.events)
	d.sendMu.Unlock()
}

func (d *Driver) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *Driver) Capabilities() driver.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *Driver) Events() <-chan driver.Event { return d.events }

func (d *Driver) Render(frame string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
	return nil
}

// Inject queues events as if the terminal had produced them. It is safe to
// call from any goroutine. A full channel blocks until the loop reads or the
// driver is finalized; it reports false once finalized.
func (d *Driver) Inject(evs ...driver.Event) bool {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	select {
	case <-d.done:
		return false
	default:
	}
	for _, ev := range evs {
		select {
		case d.events <- ev:
		case <-d.done:
			return false
		}
	}
	return true
}

// Type injects one key event per rune of s.
func (d *Driver) Type(s string) bool {
	evs := make([]driver.Event, 0, len(s))
	for _, r := range s {
		evs = append(evs, driver.Rune(r))
	}
	return d.Inject(evs...)
}

// Resize changes the screen size and injects the matching resize event.
func (d *Driver) Resize(width, height int) bool {
	d.mu.Lock()
	d.width, d.height = width, height
	d.mu.Unlock()
	return d.Inject(driver.ResizeEvent{Width: width, Height: height})
}

// Close closes the event stream without a Fini, as a lost terminal would.
func (d *Driver) Close() {
	d.close()
}

// Frames returns every frame rendered so far.
func (d *Driver) Frames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.frames...)
}

// LastFrame returns the most recent frame, or "".
func (d *Driver) LastFrame() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return ""
	}
	return d.frames[len(d.frames)-1]
}

// Contains reports whether the last frame contains s.
func (d *Driver) Contains(s string) bool {
	return strings.Contains(d.LastFrame(), s)
}

// Initialized reports whether Init succeeded and Fini has not run.
func (d *Driver) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inited && !d.closed
}

// Calls returns how many times Init and Fini ran.
func (d *Driver) Calls() (initRuns, finiRuns int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initRuns, d.finiRuns
}
