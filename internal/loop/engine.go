// Package loop implements the cooperative, re-entrant run loop.
//
// An Engine owns a stack of Contexts. The innermost context is the dispatch
// target for every driver event; starting a nested Run from inside an event
// handler pushes a new context that shadows its parent until it stops. Each
// iteration polls one batch of events, dispatches them in arrival order,
// drains the bridge, lets the surface lay itself out and renders it.
package loop

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/charmbracelet/bubbles/key"

	"github.com/atomicstack/tuikit/internal/bridge"
	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/event"
	"github.com/atomicstack/tuikit/internal/logging/events"
)

const defaultMaxBatch = 64

var (
	// ErrDriverClosed is returned when the driver's event stream ends.
	ErrDriverClosed = errors.New("loop: driver event stream closed")
	// ErrNoContext is returned when an operation needs a context and none
	// was given or is active.
	ErrNoContext = errors.New("loop: no active context")
)

// Toplevel is a surface that can be the dispatch target of a context.
type Toplevel interface {
	HandleEvent(ev driver.Event) error
	// Layout performs any pending relayout. It runs once per iteration,
	// after the bridge is drained.
	Layout() error
}

// Viewer is implemented by surfaces that render themselves.
type Viewer interface {
	View(width, height int) string
}

// Releaser is implemented by surfaces holding run-time resources that must
// be freed when their context is popped.
type Releaser interface {
	Release()
}

// Options configures an Engine.
type Options struct {
	// NonBlocking makes an iteration return immediately when no input is
	// pending instead of waiting for the driver or a bridge wake.
	NonBlocking bool
	// StopKeys stop the innermost context. Matching key events are not
	// dispatched.
	StopKeys key.Binding
	// Owner, when set, is called by every entry point that touches loop
	// state and must fail when the caller is on the wrong goroutine.
	Owner func() error
	// MaxBatch bounds the number of events handled per iteration.
	MaxBatch int
}

// Engine drives a driver and a bridge for a stack of contexts.
type Engine struct {
	drv  driver.Driver
	br   *bridge.Bridge
	opts Options

	stack   []*Context
	pending []driver.Event
	closed  bool

	width, height int
	lastFrame     string

	// Subscribers run before the event reaches the active surface.
	Resized event.Signal[driver.ResizeEvent]
	KeyDown event.Signal[driver.KeyEvent]
	KeyUp   event.Signal[driver.KeyEvent]
	Pointer event.Signal[driver.MouseEvent]
}

// New returns an engine reading drv's events and draining br.
func New(drv driver.Driver, br *bridge.Bridge, opts Options) *Engine {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if br == nil {
		br = bridge.New()
	}
	e := &Engine{drv: drv, br: br, opts: opts}
	e.width, e.height = drv.Size()
	return e
}

// Driver returns the driver the engine reads from.
func (e *Engine) Driver() driver.Driver { return e.drv }

// Bridge returns the bridge drained by every iteration.
func (e *Engine) Bridge() *bridge.Bridge { return e.br }

// Size returns the most recently reported screen size.
func (e *Engine) Size() (width, height int) { return e.width, e.height }

// Depth returns the number of active contexts.
func (e *Engine) Depth() int { return len(e.stack) }

// Current returns the innermost context, or nil.
func (e *Engine) Current() *Context {
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

// Begin pushes a running context for top. The caller must End it.
func (e *Engine) Begin(top Toplevel) *Context {
	c := &Context{
		Top:    top,
		parent: e.Current(),
		state:  Running,
		depth:  len(e.stack) + 1,
	}
	e.stack = append(e.stack, c)
	events.Loop.Push(c.depth, describeTop(top))
	return c
}

// End pops c, and any context still stacked above it, releasing each
// surface once. Ending a context that is not on the stack does nothing.
func (e *Engine) End(c *Context) {
	idx := -1
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i] == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for i := len(e.stack) - 1; i >= idx; i-- {
		popped := e.stack[i]
		e.stack[i] = nil
		e.stack = e.stack[:i]
		popped.state = Unwound
		if r, ok := popped.Top.(Releaser); ok {
			r.Release()
		}
		events.Loop.Pop(popped.depth, describeTop(popped.Top))
	}
}

// Run pushes a context for top and iterates until it stops. The context is
// popped before Run returns, whatever the outcome.
func (e *Engine) Run(top Toplevel) error {
	if top == nil {
		return ErrNoContext
	}
	if err := e.checkOwner(); err != nil {
		return err
	}
	c := e.Begin(top)
	defer e.End(c)
	return e.RunContext(c)
}

// RunContext iterates c until it stops. It does not pop c.
func (e *Engine) RunContext(c *Context) error {
	if c == nil {
		return ErrNoContext
	}
	for c.Running() {
		if err := e.RunIteration(c); err != nil {
			return err
		}
	}
	return nil
}

// RequestStop asks c to stop at the next iteration boundary. A nil c targets
// the innermost context. In-flight dispatch always completes.
func (e *Engine) RequestStop(c *Context) {
	if c == nil {
		c = e.Current()
	}
	e.stop(c, "request")
}

// StopAll requests a stop on every active context.
func (e *Engine) StopAll() {
	for i := len(e.stack) - 1; i >= 0; i-- {
		e.stop(e.stack[i], "stop all")
	}
}

func (e *Engine) stop(c *Context, reason string) {
	if c == nil || c.state != Running {
		return
	}
	c.state = StopRequested
	events.Loop.Stop(c.depth, reason)
}

// RunIteration performs one poll, dispatch, drain, layout and render pass
// for c. Handler errors are returned as they are; the engine never swallows
// them.
func (e *Engine) RunIteration(c *Context) error {
	if c == nil {
		return ErrNoContext
	}
	if err := e.checkOwner(); err != nil {
		return err
	}
	if err := e.poll(); err != nil {
		return err
	}

	// Events are consumed one at a time from the shared queue so that a
	// nested run started by a handler sees the rest of the batch first.
	for n := len(e.pending); n > 0 && len(e.pending) > 0 && c.Running(); n-- {
		ev := e.pending[0]
		e.pending[0] = nil
		e.pending = e.pending[1:]
		if err := e.dispatch(c, ev); err != nil {
			events.Loop.HandlerError(c.depth, err)
			return err
		}
	}

	if err := e.br.DrainOnce(); err != nil {
		events.Loop.HandlerError(c.depth, err)
		return err
	}
	if !c.Running() {
		return nil
	}
	if err := c.Top.Layout(); err != nil {
		return err
	}
	return e.render(c)
}

// poll fills the pending queue with at most one batch of events.
func (e *Engine) poll() error {
	if len(e.pending) > 0 {
		return nil
	}
	if e.closed {
		e.StopAll()
		return ErrDriverClosed
	}

	ch := e.drv.Events()
	if !e.opts.NonBlocking && e.br.Pending() == 0 {
		select {
		case ev, ok := <-ch:
			if !ok {
				return e.streamClosed()
			}
			e.pending = append(e.pending, ev)
		case <-e.br.Wake():
			return nil
		}
	}

	for len(e.pending) < e.opts.MaxBatch {
		select {
		case ev, ok := <-ch:
			if !ok {
				if len(e.pending) > 0 {
					e.closed = true
					return nil
				}
				return e.streamClosed()
			}
			e.pending = append(e.pending, ev)
		default:
			return nil
		}
	}
	return nil
}

func (e *Engine) streamClosed() error {
	e.closed = true
	events.Loop.DriverClosed(len(e.stack))
	e.StopAll()
	return ErrDriverClosed
}

func (e *Engine) dispatch(c *Context, ev driver.Event) error {
	switch ev := ev.(type) {
	case driver.ResizeEvent:
		e.width, e.height = ev.Width, ev.Height
		if err := e.Resized.Emit(ev); err != nil {
			return err
		}
	case driver.KeyEvent:
		if ev.Up {
			if err := e.KeyUp.Emit(ev); err != nil {
				return err
			}
			break
		}
		if err := e.KeyDown.Emit(ev); err != nil {
			return err
		}
		if key.Matches(ev, e.opts.StopKeys) {
			e.stop(c, "stop key "+ev.String())
			return nil
		}
	case driver.MouseEvent:
		if err := e.Pointer.Emit(ev); err != nil {
			return err
		}
	case driver.ErrorEvent:
		if ev.Fatal {
			e.stop(c, "fatal driver error")
			return fmt.Errorf("loop: driver %s: %w", e.drv.Name(), ev.Err)
		}
	}
	return c.Top.HandleEvent(ev)
}

func (e *Engine) render(c *Context) error {
	v, ok := c.Top.(Viewer)
	if !ok {
		return nil
	}
	frame := v.View(e.width, e.height)
	if frame == e.lastFrame {
		return nil
	}
	if err := e.drv.Render(frame); err != nil {
		return fmt.Errorf("loop: render: %w", err)
	}
	e.lastFrame = frame
	return nil
}

func (e *Engine) checkOwner() error {
	if e.opts.Owner == nil {
		return nil
	}
	return e.opts.Owner()
}

func describeTop(top Toplevel) string {
	if s, ok := top.(fmt.Stringer); ok {
		return s.String()
	}
	if top == nil {
		return "<nil>"
	}
	return reflect.TypeOf(top).String()
}
