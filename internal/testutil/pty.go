//go:build unix

package testutil

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
)

// Terminal is the controlling side of a pseudo-terminal. Everything written
// to the other side is collected and can be searched with ANSI escapes
// stripped.
type Terminal struct {
	ptmx *os.File
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	buf bytes.Buffer
}

// OpenPTY returns a terminal of the given size and its tty side, for driving
// in-process code. Both are closed when the test ends.
func OpenPTY(t *testing.T, cols, rows int) (*Terminal, *os.File) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("skipping: pty unavailable: %v", err)
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		t.Fatalf("failed to size pty: %v", err)
	}
	term := newTerminal(ptmx)
	t.Cleanup(func() {
		_ = tty.Close()
		_ = ptmx.Close()
	})
	return term, tty
}

// StartPTY runs cmd with a pseudo-terminal as its stdio. The process is
// killed when the test ends if it is still running.
func StartPTY(t *testing.T, cmd *exec.Cmd, cols, rows int) *Terminal {
	t.Helper()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		t.Skipf("skipping: failed to start %s on a pty: %v", cmd.Path, err)
	}
	term := newTerminal(ptmx)
	term.cmd = cmd
	t.Cleanup(func() {
		if !term.Exited() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		_ = ptmx.Close()
	})
	return term
}

func newTerminal(ptmx *os.File) *Terminal {
	term := &Terminal{ptmx: ptmx, done: make(chan struct{})}
	go term.copyOutput()
	return term
}

func (term *Terminal) copyOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := term.ptmx.Read(buf)
		if n > 0 {
			term.mu.Lock()
			term.buf.Write(buf[:n])
			term.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Send writes keys as if typed.
func (term *Terminal) Send(keys string) error {
	_, err := term.ptmx.WriteString(keys)
	return err
}

// Raw returns everything received so far.
func (term *Terminal) Raw() string {
	term.mu.Lock()
	defer term.mu.Unlock()
	return term.buf.String()
}

// Text returns everything received so far with escape sequences removed.
func (term *Terminal) Text() string {
	return xansi.Strip(term.Raw())
}

// Reset forgets the output collected so far.
func (term *Terminal) Reset() {
	term.mu.Lock()
	term.buf.Reset()
	term.mu.Unlock()
}

// WaitForText waits until s shows up in the stripped output.
func (term *Terminal) WaitForText(t *testing.T, ctx context.Context, s string) {
	t.Helper()
	WaitFor(t, ctx, "output "+strings.TrimSpace(s), func() bool {
		return strings.Contains(term.Text(), s)
	})
}

// WaitForRaw waits until s shows up in the raw output.
func (term *Terminal) WaitForRaw(t *testing.T, ctx context.Context, s string) {
	t.Helper()
	WaitFor(t, ctx, "raw output", func() bool {
		return strings.Contains(term.Raw(), s)
	})
}

// Wait waits for the started process to exit.
func (term *Terminal) Wait(ctx context.Context) error {
	if term.cmd == nil {
		return errors.New("testutil: no process attached")
	}
	errc := make(chan error, 1)
	go func() { errc <- term.cmd.Wait() }()
	select {
	case err := <-errc:
		close(term.done)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exited reports whether Wait observed the process exit.
func (term *Terminal) Exited() bool {
	select {
	case <-term.done:
		return true
	default:
		return false
	}
}

// Context returns a context that expires after d and is cancelled with the
// test.
func Context(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
