// Package session owns the process-wide UI session: it picks and starts a
// driver, wires it into a run-loop engine, installs the bridge foreign
// goroutines post through, and tears everything down again.
//
// At most one Session is initialized per process. Apart from Post, every
// method must be called from the goroutine that started the session.
package session

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/key"
	"github.com/google/uuid"

	"github.com/atomicstack/tuikit/internal/bridge"
	"github.com/atomicstack/tuikit/internal/config"
	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/event"
	"github.com/atomicstack/tuikit/internal/logging"
	"github.com/atomicstack/tuikit/internal/logging/events"
	"github.com/atomicstack/tuikit/internal/loop"
	"github.com/atomicstack/tuikit/internal/theme"
)

var (
	// ErrAlreadyInitialized is returned when a driver is supplied to Start
	// while a session is live.
	ErrAlreadyInitialized = errors.New("session: already initialized")
	// ErrNotInitialized is returned by operations that need a live session.
	ErrNotInitialized = errors.New("session: not initialized")
	// ErrWrongGoroutine is returned when loop state is touched from a
	// goroutine other than the one that started the session.
	ErrWrongGoroutine = errors.New("session: wrong goroutine")
)

// the one live session in this process
var slot struct {
	mu   sync.Mutex
	live *Session
}

func claim(s *Session) bool {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.live != nil && slot.live != s {
		return false
	}
	slot.live = s
	return true
}

func unclaim(s *Session) {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.live == s {
		slot.live = nil
	}
}

// StartOptions selects the driver for Start. Driver takes precedence over
// DriverName.
type StartOptions struct {
	Driver     driver.Driver
	DriverName string
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry resolves driver names against r instead of the process-wide
// registry.
func WithRegistry(r *driver.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithLoader supplies settings. The default loader reads the user's
// settings files and the process environment.
func WithLoader(l config.Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithEnviron replaces the environment used for locale detection.
func WithEnviron(environ []string) Option {
	return func(s *Session) { s.environ = append([]string(nil), environ...) }
}

// WithDefaultDriver replaces the platform default driver name.
func WithDefaultDriver(name string) Option {
	return func(s *Session) { s.defaultDriver = name }
}

// WithNonBlockingPoll makes loop iterations return when no input is pending.
func WithNonBlockingPoll(enabled bool) Option {
	return func(s *Session) { s.nonBlocking = enabled }
}

// WithStopKeys replaces the global stop keys from the settings.
func WithStopKeys(b key.Binding) Option {
	return func(s *Session) { s.stopKeys = &b }
}

// Session is the lifecycle manager.
type Session struct {
	registry      *driver.Registry
	loader        config.Loader
	environ       []string
	defaultDriver string
	nonBlocking   bool
	stopKeys      *key.Binding

	initialized  bool
	preserve     bool
	configured   bool
	id           string
	drv          driver.Driver
	owner        uint64
	forcedDriver string
	locales      []string
	settings     config.Settings
	engine       *loop.Engine
	bridge       atomic.Pointer[bridge.Bridge]

	lifecycle event.Signal[bool]
}

// New returns an uninitialized session.
func New(opts ...Option) *Session {
	s := &Session{
		registry: driver.Default(),
		environ:  os.Environ(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = config.NewLayered(s.environ, "")
	}
	return s
}

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the lazily created process-wide session.
func Default() *Session {
	defaultOnce.Do(func() { defaultSession = New() })
	return defaultSession
}

// PlatformDefault is the driver started when nothing else selects one.
func PlatformDefault() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "curses"
}

// Configure presets settings. They survive into RunApp; a plain Start
// resets the session and reloads settings from the loader. While the
// session is running only the owner goroutine may call it.
func (s *Session) Configure(settings config.Settings) error {
	if err := s.CheckOwner(); err != nil {
		return err
	}
	s.settings = settings
	s.configured = true
	return nil
}

// Start initializes the session. Starting an initialized session without a
// driver is a no-op; supplying a driver while initialized fails with
// ErrAlreadyInitialized and leaves the session untouched.
func (s *Session) Start(opts StartOptions) error {
	if s.initialized {
		if err := s.CheckOwner(); err != nil {
			return err
		}
		if opts.Driver != nil {
			return ErrAlreadyInitialized
		}
		events.Session.Reenter(s.id)
		return nil
	}
	if !claim(s) {
		return ErrAlreadyInitialized
	}

	preserve := s.preserve
	s.preserve = false
	if !preserve {
		s.reset()
	}

	ok := false
	defer func() {
		if !ok {
			s.abort()
		}
	}()

	early, err := s.loader.Load(config.PhaseEarly, driver.Capabilities{})
	if err != nil {
		return fmt.Errorf("session: load settings: %w", err)
	}
	s.forcedDriver = early.Driver
	if early.Trace {
		logging.SetTraceEnabled(true)
	}

	drv, err := s.resolve(opts)
	if err != nil {
		return err
	}
	if err := drv.Init(); err != nil {
		err = driver.Classify(drv.Name(), err)
		events.Driver.InitFailed(drv.Name(), err)
		return err
	}
	s.drv = drv

	caps := drv.Capabilities()
	events.Driver.Capabilities(drv.Name(), caps.Colors.String(), caps.Mouse)
	if preserve && s.configured {
		var notes []string
		s.settings, notes = config.ValidateSettings(s.settings, caps)
		for _, note := range notes {
			logging.Defer("config: %s", note)
		}
	} else {
		settings, err := s.loader.Load(config.PhaseDriver, caps)
		if err != nil {
			return fmt.Errorf("session: load settings: %w", err)
		}
		s.settings = settings
		s.configured = true
	}

	s.owner = goroutineID()
	br := bridge.New()
	s.bridge.Store(br)
	s.engine = loop.New(drv, br, loop.Options{
		NonBlocking: s.nonBlocking,
		StopKeys:    s.stopBinding(),
		Owner:       s.CheckOwner,
	})
	s.locales = deriveLocales(s.settings.Locale, s.environ)
	s.id = uuid.NewString()
	s.initialized = true
	ok = true

	events.Session.Start(s.id, drv.Name(), preserve)
	events.Session.Locales(s.id, s.locales)
	_ = s.lifecycle.Emit(true)
	return nil
}

func (s *Session) resolve(opts StartOptions) (driver.Driver, error) {
	if opts.Driver != nil {
		events.Driver.Resolve("", opts.Driver.Name(), "instance")
		return opts.Driver, nil
	}
	name, via := opts.DriverName, "argument"
	switch {
	case name != "":
	case s.forcedDriver != "":
		name, via = s.forcedDriver, "config"
	case s.defaultDriver != "":
		name, via = s.defaultDriver, "default"
	default:
		name, via = PlatformDefault(), "platform"
	}
	drv, err := s.registry.New(name)
	if err != nil {
		return nil, err
	}
	events.Driver.Resolve(name, drv.Name(), via)
	return drv, nil
}

func (s *Session) stopBinding() key.Binding {
	if s.stopKeys != nil {
		return *s.stopKeys
	}
	if len(s.settings.StopKeys) == 0 {
		return key.NewBinding(key.WithDisabled())
	}
	return key.NewBinding(key.WithKeys(s.settings.StopKeys...))
}

// abort undoes a partial Start.
func (s *Session) abort() {
	if s.drv != nil {
		_ = s.drv.Fini()
	}
	s.reset()
	unclaim(s)
}

// reset returns every field to its uninitialized value.
func (s *Session) reset() {
	if br := s.bridge.Swap(nil); br != nil {
		br.Close()
	}
	s.initialized = false
	s.configured = false
	s.id = ""
	s.drv = nil
	s.owner = 0
	s.forcedDriver = ""
	s.locales = nil
	s.settings = config.Settings{}
	s.engine = nil
}

// Shutdown stops every run context, discards queued bridge work, releases
// the driver and resets the session. It is safe to call at any time and
// always fires the lifecycle notification. While the session is running,
// calls from a goroutine other than the owner fail with ErrWrongGoroutine
// and change nothing.
func (s *Session) Shutdown() error {
	if err := s.CheckOwner(); err != nil {
		return err
	}
	var err error
	discarded := 0
	id := s.id
	if s.initialized {
		s.engine.StopAll()
		if br := s.bridge.Load(); br != nil {
			discarded = br.Close()
		}
		if ferr := s.drv.Fini(); ferr != nil {
			err = fmt.Errorf("session: finalize %s: %w", s.drv.Name(), ferr)
		}
	}
	s.preserve = false
	s.reset()
	unclaim(s)
	logging.FlushDeferred()
	events.Session.Shutdown(id, discarded)
	_ = s.lifecycle.Emit(false)
	return err
}

// Run runs top as the outermost, or a nested, loop context.
func (s *Session) Run(top loop.Toplevel) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.engine.Run(top)
}

// RunApp starts the session, runs top and shuts down again. Settings given
// to Configure are kept. When the session is already running, top runs
// nested and the session is left running.
func (s *Session) RunApp(top loop.Toplevel, opts StartOptions) (err error) {
	if s.initialized {
		if err := s.Start(opts); err != nil {
			return err
		}
		return s.Run(top)
	}
	s.preserve = true
	if err := s.Start(opts); err != nil {
		return err
	}
	defer func() {
		if serr := s.Shutdown(); err == nil {
			err = serr
		}
	}()
	return s.Run(top)
}

// CheckOwner fails with ErrWrongGoroutine when called from a goroutine
// other than the one that started the session.
func (s *Session) CheckOwner() error {
	if s.owner == 0 {
		return nil
	}
	if id := goroutineID(); id != s.owner {
		return fmt.Errorf("%w: owner %d, caller %d", ErrWrongGoroutine, s.owner, id)
	}
	return nil
}

// OnLifecycleChanged subscribes fn to start and shutdown notifications.
func (s *Session) OnLifecycleChanged(fn func(initialized bool)) (unsubscribe func()) {
	return s.lifecycle.Listen(fn)
}

// Post queues fn to run on the loop goroutine. It is safe to call from any
// goroutine and reports false when no session is running.
func (s *Session) Post(source string, fn func()) bool {
	br := s.bridge.Load()
	if br == nil || br.Closed() {
		return false
	}
	br.PostFunc(source, fn)
	return true
}

// Bridge returns the bridge foreign goroutines post through, or nil.
func (s *Session) Bridge() *bridge.Bridge { return s.bridge.Load() }

// Engine returns the run-loop engine, or nil.
func (s *Session) Engine() *loop.Engine { return s.engine }

// Driver returns the active driver, or nil.
func (s *Session) Driver() driver.Driver { return s.drv }

// Initialized reports whether the session is live.
func (s *Session) Initialized() bool { return s.initialized }

// ID identifies the current session in traces.
func (s *Session) ID() string { return s.id }

// ForcedDriver is the driver name the settings asked for, if any.
func (s *Session) ForcedDriver() string { return s.forcedDriver }

// Locales returns the preferred locales derived at start.
func (s *Session) Locales() []string { return append([]string(nil), s.locales...) }

// Settings returns the settings validated against the active driver.
func (s *Session) Settings() config.Settings { return s.settings }

// Styles returns the style set named by the settings.
func (s *Session) Styles() *theme.Styles {
	if st, ok := theme.Named(s.settings.Theme); ok {
		return st
	}
	return theme.Default()
}
