package driver

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
)

var (
	// ErrConsoleUnavailable reports that a driver could not acquire a
	// terminal: none is attached, or another process owns it.
	ErrConsoleUnavailable = errors.New("console unavailable")
	// ErrInit reports any other driver initialisation failure.
	ErrInit = errors.New("driver init failed")
	// ErrUnknownName reports a driver name that is not registered.
	ErrUnknownName = errors.New("unknown driver name")
)

// ConsoleUnavailableError wraps the driver's own failure to acquire the
// terminal. errors.Is(err, ErrConsoleUnavailable) holds for it.
type ConsoleUnavailableError struct {
	Driver string
	Err    error
}

func (e *ConsoleUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("driver %s: no usable terminal in this environment", e.Driver)
	}
	return fmt.Sprintf("driver %s: no usable terminal in this environment: %v", e.Driver, e.Err)
}

func (e *ConsoleUnavailableError) Unwrap() error { return e.Err }

func (e *ConsoleUnavailableError) Is(target error) bool { return target == ErrConsoleUnavailable }

// InitError wraps a driver initialisation failure that is not about
// terminal availability.
type InitError struct {
	Driver string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("driver %s: init: %v", e.Driver, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }

// UnknownNameError is returned by Registry.Lookup.
type UnknownNameError struct {
	Name        string
	Valid       []string
	Suggestions []string
}

func (e *UnknownNameError) Error() string {
	msg := fmt.Sprintf("unknown driver %q; valid drivers: %s", e.Name, strings.Join(e.Valid, ", "))
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestions[0])
	}
	return msg
}

func (e *UnknownNameError) Is(target error) bool { return target == ErrUnknownName }

// Unavailable marks err as a console acquisition failure. Drivers use it
// when they know the cause, e.g. stdin is not a terminal.
func Unavailable(name string, err error) error {
	return &ConsoleUnavailableError{Driver: name, Err: err}
}

// Classify wraps an Init failure. Failures that mean "no terminal here"
// become *ConsoleUnavailableError; everything else becomes *InitError. The
// original error is kept as the cause in both cases.
func Classify(name string, err error) error {
	if err == nil {
		return nil
	}
	var cu *ConsoleUnavailableError
	if errors.As(err, &cu) {
		return err
	}
	if errors.Is(err, ErrConsoleUnavailable) || isConsoleErrno(err) {
		return &ConsoleUnavailableError{Driver: name, Err: err}
	}
	var ie *InitError
	if errors.As(err, &ie) {
		return err
	}
	return &InitError{Driver: name, Err: err}
}

func isConsoleErrno(err error) bool {
	for _, errno := range []error{syscall.ENOTTY, syscall.EBUSY, syscall.ENXIO, syscall.ENODEV} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// RequireTerminal fails with a console-unavailable error unless f is a
// terminal (including Cygwin/MSYS ptys).
func RequireTerminal(name string, f *os.File) error {
	if f == nil {
		return Unavailable(name, errors.New("no file"))
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return Unavailable(name, fmt.Errorf("%s is not a terminal", f.Name()))
}
