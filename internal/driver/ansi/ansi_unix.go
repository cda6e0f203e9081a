//go:build unix

package ansi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/atomicstack/tuikit/internal/driver"
)

func init() {
	driver.Register(Name, "raw ANSI terminal via golang.org/x/term", func() driver.Driver { return New() })
}

// how long a lone ESC waits for the rest of a sequence
const escapeTimeout = 50 * time.Millisecond

// Driver drives a unix tty.
type Driver struct {
	in, out *os.File
	mouse   bool

	mu     sync.Mutex
	width  int
	height int
	caps   driver.Capabilities
	saved  *term.State
	inited bool
	closed bool

	events chan driver.Event
	stop   chan struct{}
	group  *errgroup.Group
}

// Option configures a Driver.
type Option func(*Driver)

// WithFiles uses in and out instead of the process's stdin and stdout.
func WithFiles(in, out *os.File) Option {
	return func(d *Driver) {
		d.in = in
		d.out = out
	}
}

// WithMouse enables or disables mouse reporting. It is on by default.
func WithMouse(enabled bool) Option {
	return func(d *Driver) { d.mouse = enabled }
}

// New returns an uninitialized driver on stdin and stdout.
func New(opts ...Option) *Driver {
	d := &Driver{
		in:     os.Stdin,
		out:    os.Stdout,
		mouse:  true,
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
		return errors.New("ansi: driver already finalized")
	}
	if d.inited {
		return nil
	}
	if err := driver.RequireTerminal(Name, d.in); err != nil {
		return err
	}
	saved, err := term.MakeRaw(int(d.in.Fd()))
	if err != nil {
		return fmt.Errorf("ansi: raw mode: %w", err)
	}
	d.saved = saved
	d.width, d.height = windowSize(int(d.out.Fd()))
	d.caps = driver.Capabilities{
		Colors: colorDepth(termenv.NewOutput(d.out).EnvColorProfile()),
		Mouse:  d.mouse,
	}

	setup := xansi.SetModeAltScreenSaveCursor + xansi.ResetModeTextCursorEnable + xansi.EraseEntireScreen
	if d.mouse {
		setup += xansi.SetModeMouseButtonEvent + xansi.SetModeMouseExtSgr
	}
	if _, err := io.WriteString(d.out, setup); err != nil {
		_ = term.Restore(int(d.in.Fd()), saved)
		return fmt.Errorf("ansi: setup: %w", err)
	}

	d.group = new(errgroup.Group)
	d.group.Go(d.readLoop)
	d.group.Go(d.resizeLoop)
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
	inited := d.inited
	d.mu.Unlock()

	close(d.stop)
	if !inited {
		close(d.events)
		return nil
	}
	err := d.group.Wait()

	teardown := xansi.SetModeTextCursorEnable + xansi.ResetModeAltScreenSaveCursor
	if d.mouse {
		teardown = xansi.ResetModeMouseExtSgr + xansi.ResetModeMouseButtonEvent + teardown
	}
	_, werr := io.WriteString(d.out, teardown)
	rerr := term.Restore(int(d.in.Fd()), d.saved)
	close(d.events)
	return errors.Join(err, werr, rerr)
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

// Render repaints the screen from the top-left corner. Lines are clipped to
// the screen width and rows past the frame are cleared.
func (d *Driver) Render(frame string) error {
	width, height := d.Size()
	var b strings.Builder
	b.WriteString(xansi.CursorHomePosition)
	for i, line := range strings.Split(frame, "\n") {
		if i >= height {
			break
		}
		if i > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString(xansi.Truncate(line, width, ""))
		b.WriteString(xansi.EraseLineRight)
	}
	b.WriteString(xansi.EraseScreenBelow)
	_, err := io.WriteString(d.out, b.String())
	return err
}

func (d *Driver) send(ev driver.Event) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.stop:
		return false
	}
}

// readLoop polls the input fd so it can notice stop without a pending read.
func (d *Driver) readLoop() error {
	fd := int(d.in.Fd())
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		select {
		case <-d.stop:
			return nil
		default:
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(escapeTimeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			d.send(driver.ErrorEvent{Err: fmt.Errorf("ansi: poll: %w", err), Fatal: true})
			return nil
		}
		if n == 0 {
			if len(buf) > 0 {
				evs, _ := decode(buf, true)
				buf = buf[:0]
				for _, ev := range evs {
					if !d.send(ev) {
						return nil
					}
				}
			}
			continue
		}

		rn, err := unix.Read(fd, chunk)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			d.send(driver.ErrorEvent{Err: fmt.Errorf("ansi: read: %w", err), Fatal: true})
			return nil
		}
		if rn == 0 {
			d.send(driver.ErrorEvent{Err: io.EOF, Fatal: true})
			return nil
		}
		buf = append(buf, chunk[:rn]...)
		evs, consumed := decode(buf, false)
		buf = append(buf[:0], buf[consumed:]...)
		for _, ev := range evs {
			if !d.send(ev) {
				return nil
			}
		}
	}
}

func (d *Driver) resizeLoop() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)
	defer signal.Stop(sig)
	for {
		select {
		case <-d.stop:
			return nil
		case <-sig:
			w, h := windowSize(int(d.out.Fd()))
			d.mu.Lock()
			changed := w != d.width || h != d.height
			d.width, d.height = w, h
			d.mu.Unlock()
			if changed && !d.send(driver.ResizeEvent{Width: w, Height: h}) {
				return nil
			}
		}
	}
}

func windowSize(fd int) (int, int) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return 80, 24
	}
	return int(ws.Col), int(ws.Row)
}

func colorDepth(p termenv.Profile) driver.ColorDepth {
	switch p {
	case termenv.TrueColor:
		return driver.ColorsTrue
	case termenv.ANSI256:
		return driver.Colors256
	case termenv.ANSI:
		return driver.Colors16
	default:
		return driver.ColorsMono
	}
}
