package loop

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/google/go-cmp/cmp"

	"github.com/atomicstack/tuikit/internal/bridge"
	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/driver/fake"
)

type recorder struct {
	name     string
	log      *[]string
	onKey    func(driver.KeyEvent) error
	view     string
	layouts  int
	released int
}

func (r *recorder) HandleEvent(ev driver.Event) error {
	k, ok := ev.(driver.KeyEvent)
	if !ok {
		return nil
	}
	if r.log != nil {
		*r.log = append(*r.log, r.name+":"+k.String())
	}
	if r.onKey != nil {
		return r.onKey(k)
	}
	return nil
}

func (r *recorder) Layout() error {
	r.layouts++
	return nil
}

func (r *recorder) Release() { r.released++ }

type viewRecorder struct {
	recorder
}

func (v *viewRecorder) View(width, height int) string {
	return v.view
}

func newEngine(t *testing.T, opts Options) (*Engine, *fake.Driver) {
	t.Helper()
	drv := fake.New()
	if err := drv.Init(); err != nil {
		t.Fatalf("init fake driver: %v", err)
	}
	t.Cleanup(func() { _ = drv.Fini() })
	opts.NonBlocking = true
	return New(drv, bridge.New(), opts), drv
}

func TestInputDispatchedBeforeBridgeDrain(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	var log []string
	top := &recorder{name: "top", log: &log}

	eng.Bridge().PostFunc("worker", func() { log = append(log, "worker") })
	drv.Type("a")

	c := eng.Begin(top)
	defer eng.End(c)
	if err := eng.RunIteration(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"top:a", "worker"}, log); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if top.layouts != 1 {
		t.Fatalf("expected one layout pass, got %d", top.layouts)
	}
}

func TestNestedRunShadowsParent(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	var log []string
	var outerCtx *Context
	inner := &recorder{name: "inner", log: &log}
	inner.onKey = func(k driver.KeyEvent) error {
		if k.Rune == 'x' {
			eng.RequestStop(nil)
		}
		return nil
	}
	outer := &recorder{name: "outer", log: &log}
	outer.onKey = func(k driver.KeyEvent) error {
		switch k.Rune {
		case 'm':
			if err := eng.Run(inner); err != nil {
				return err
			}
			if !outerCtx.Running() {
				t.Fatalf("expected outer context to keep running")
			}
			if eng.Current() != outerCtx {
				t.Fatalf("expected dispatch target restored to outer context")
			}
		case 'q':
			eng.RequestStop(outerCtx)
		}
		return nil
	}

	drv.Type("maxbq")
	outerCtx = eng.Begin(outer)
	if err := eng.RunContext(outerCtx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng.End(outerCtx)

	want := []string{"outer:m", "inner:a", "inner:x", "outer:b", "outer:q"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("unexpected dispatch (-want +got):\n%s", diff)
	}
	if inner.released != 1 || outer.released != 1 {
		t.Fatalf("expected one release each, got inner=%d outer=%d", inner.released, outer.released)
	}
	if eng.Depth() != 0 {
		t.Fatalf("expected empty stack, got depth %d", eng.Depth())
	}
	if outerCtx.State() != Unwound {
		t.Fatalf("expected unwound, got %s", outerCtx.State())
	}
}

func TestHandlerErrorPopsContextAndOuterResumes(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	boom := errors.New("boom")
	inner := &recorder{name: "inner"}
	inner.onKey = func(driver.KeyEvent) error { return boom }

	var innerErr error
	var depthAfter int
	outer := &recorder{name: "outer"}
	outer.onKey = func(k driver.KeyEvent) error {
		switch k.Rune {
		case 'm':
			innerErr = eng.Run(inner)
			depthAfter = eng.Depth()
		case 'q':
			eng.RequestStop(nil)
		}
		return nil
	}

	drv.Type("mxq")
	if err := eng.Run(outer); err != nil {
		t.Fatalf("expected outer run to finish cleanly, got %v", err)
	}
	if !errors.Is(innerErr, boom) {
		t.Fatalf("expected boom from nested run, got %v", innerErr)
	}
	if depthAfter != 1 {
		t.Fatalf("expected nested context popped before error returned, depth %d", depthAfter)
	}
	if inner.released != 1 {
		t.Fatalf("expected inner released once, got %d", inner.released)
	}
}

func TestHandlerErrorEndsRun(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	boom := errors.New("boom")
	top := &recorder{onKey: func(driver.KeyEvent) error { return boom }}
	drv.Type("a")
	if err := eng.Run(top); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if eng.Depth() != 0 || top.released != 1 {
		t.Fatalf("expected context popped, depth=%d released=%d", eng.Depth(), top.released)
	}
}

func TestFatalDriverErrorStopsRun(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	lost := errors.New("terminal lost")
	drv.Inject(driver.ErrorEvent{Err: lost, Fatal: true})
	if err := eng.Run(&recorder{}); !errors.Is(err, lost) {
		t.Fatalf("expected terminal lost, got %v", err)
	}
}

func TestNonFatalDriverErrorReachesSurface(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	var seen []driver.Event
	top := &funcTop{handle: func(ev driver.Event) error {
		seen = append(seen, ev)
		eng.RequestStop(nil)
		return nil
	}}
	drv.Inject(driver.ErrorEvent{Err: errors.New("short read")})
	if err := eng.Run(top); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected error event dispatched, got %v", seen)
	}
}

func TestClosedDriverEndsEveryContext(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	var innerErr error
	outer := &recorder{}
	outer.onKey = func(driver.KeyEvent) error {
		innerErr = eng.Run(&recorder{})
		return innerErr
	}
	drv.Type("m")
	drv.Close()
	if err := eng.Run(outer); !errors.Is(err, ErrDriverClosed) {
		t.Fatalf("expected ErrDriverClosed, got %v", err)
	}
	if !errors.Is(innerErr, ErrDriverClosed) {
		t.Fatalf("expected nested run to see ErrDriverClosed, got %v", innerErr)
	}
	if eng.Depth() != 0 {
		t.Fatalf("expected empty stack, got %d", eng.Depth())
	}
}

func TestStopKeyStopsInnermostWithoutDispatch(t *testing.T) {
	eng, drv := newEngine(t, Options{StopKeys: key.NewBinding(key.WithKeys("ctrl+q"))})
	var log []string
	top := &recorder{name: "top", log: &log}
	drv.Inject(driver.Ctrl('q'), driver.Rune('z'))
	if err := eng.Run(top); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("expected stop key not to be dispatched, got %v", log)
	}

	// The event after the stop key is still queued for the next context.
	second := &recorder{name: "second", log: &log}
	second.onKey = func(driver.KeyEvent) error {
		eng.RequestStop(nil)
		return nil
	}
	if err := eng.Run(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"second:z"}, log); diff != "" {
		t.Fatalf("unexpected dispatch (-want +got):\n%s", diff)
	}
}

func TestSubscribersRunBeforeSurface(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	var log []string
	eng.KeyDown.Listen(func(k driver.KeyEvent) { log = append(log, "down:"+k.String()) })
	eng.KeyUp.Listen(func(k driver.KeyEvent) { log = append(log, "up:"+k.String()) })
	eng.Resized.Listen(func(r driver.ResizeEvent) { log = append(log, "resize") })
	eng.Pointer.Listen(func(driver.MouseEvent) { log = append(log, "pointer") })

	top := &recorder{name: "top", log: &log}
	drv.Inject(
		driver.Rune('a'),
		driver.KeyEvent{Key: driver.KeyRune, Rune: 'a', Up: true},
		driver.MouseEvent{X: 1, Y: 2, Button: driver.MouseLeft},
	)
	drv.Resize(100, 40)

	c := eng.Begin(top)
	defer eng.End(c)
	if err := eng.RunIteration(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"down:a", "top:a", "up:a", "top:a", "pointer", "resize"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if w, h := eng.Size(); w != 100 || h != 40 {
		t.Fatalf("expected size 100x40, got %dx%d", w, h)
	}
}

func TestSubscriberErrorPropagates(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	boom := errors.New("boom")
	eng.KeyDown.Subscribe(func(driver.KeyEvent) error { return boom })
	drv.Type("a")
	if err := eng.Run(&recorder{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRenderSkipsUnchangedFrames(t *testing.T) {
	eng, drv := newEngine(t, Options{})
	top := &viewRecorder{}
	top.view = "hello"
	c := eng.Begin(top)
	defer eng.End(c)
	for i := 0; i < 3; i++ {
		if err := eng.RunIteration(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := drv.Frames(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected a single hello frame, got %q", got)
	}
	top.view = "world"
	if err := eng.RunIteration(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !drv.Contains("world") {
		t.Fatalf("expected world frame, got %q", drv.LastFrame())
	}
}

func TestBlockingPollWokenByBridge(t *testing.T) {
	drv := fake.New()
	if err := drv.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer drv.Fini()
	eng := New(drv, bridge.New(), Options{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		eng.Bridge().PostFunc("worker", func() { eng.RequestStop(nil) })
	}()

	done := make(chan error, 1)
	go func() { done <- eng.Run(&recorder{}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not wake for bridge work")
	}
}

func TestRunKeepsRenderingWhileInputFloods(t *testing.T) {
	const total = 2000
	eng, drv := newEngine(t, Options{})
	top := &viewRecorder{}
	seen := 0
	top.onKey = func(driver.KeyEvent) error {
		seen++
		top.view = fmt.Sprintf("seen %d", seen)
		if seen == total {
			eng.RequestStop(nil)
		}
		return nil
	}

	go func() {
		for i := 0; i < total; i++ {
			if !drv.Inject(driver.Rune('x')) {
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- eng.Run(top) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run stalled after %d frames", len(drv.Frames()))
	}
	if len(drv.Frames()) == 0 {
		t.Fatalf("expected frames while input was queued")
	}
}

func TestOwnerCheckRejectsIteration(t *testing.T) {
	wrong := errors.New("wrong goroutine")
	eng, _ := newEngine(t, Options{Owner: func() error { return wrong }})
	if err := eng.Run(&recorder{}); !errors.Is(err, wrong) {
		t.Fatalf("expected owner error, got %v", err)
	}
	if eng.Depth() != 0 {
		t.Fatalf("expected no context pushed, got %d", eng.Depth())
	}
}

func TestEndUnwindsContextsAbove(t *testing.T) {
	eng, _ := newEngine(t, Options{})
	a, b := &recorder{}, &recorder{}
	ca := eng.Begin(a)
	cb := eng.Begin(b)
	if cb.Parent() != ca || cb.Depth() != 2 {
		t.Fatalf("expected b nested in a")
	}
	eng.End(ca)
	if eng.Depth() != 0 || a.released != 1 || b.released != 1 {
		t.Fatalf("expected both popped and released, depth=%d a=%d b=%d", eng.Depth(), a.released, b.released)
	}
	eng.End(ca)
	if a.released != 1 {
		t.Fatalf("expected ending twice to release once, got %d", a.released)
	}
}

func TestNilContextErrors(t *testing.T) {
	eng, _ := newEngine(t, Options{})
	if err := eng.RunIteration(nil); !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
	if err := eng.Run(nil); !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
	eng.RequestStop(nil)
}

type funcTop struct {
	handle func(driver.Event) error
}

func (f *funcTop) HandleEvent(ev driver.Event) error { return f.handle(ev) }
func (f *funcTop) Layout() error                     { return nil }
