package loop

// State is the lifecycle position of a Context.
type State int

const (
	Idle State = iota
	Running
	StopRequested
	Unwound
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StopRequested:
		return "stop-requested"
	case Unwound:
		return "unwound"
	default:
		return "unknown"
	}
}

// Context is one nesting level of the run loop.
type Context struct {
	// Top receives every event dispatched while this context is innermost.
	Top Toplevel

	parent *Context
	state  State
	depth  int
}

// Running reports whether the context has not been asked to stop.
func (c *Context) Running() bool {
	return c != nil && c.state == Running
}

// State returns the context's lifecycle state.
func (c *Context) State() State {
	if c == nil {
		return Idle
	}
	return c.state
}

// Parent returns the enclosing context, or nil for the outermost one.
func (c *Context) Parent() *Context {
	if c == nil {
		return nil
	}
	return c.parent
}

// Depth returns the nesting level, starting at 1.
func (c *Context) Depth() int {
	if c == nil {
		return 0
	}
	return c.depth
}
