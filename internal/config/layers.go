package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/atomicstack/tuikit/internal/driver"
	"github.com/atomicstack/tuikit/internal/logging"
	"github.com/atomicstack/tuikit/internal/theme"
)

// Phase selects which keys a load may resolve.
type Phase int

const (
	// PhaseEarly runs before a driver exists and resolves only keys that do
	// not depend on terminal capabilities.
	PhaseEarly Phase = iota
	// PhaseDriver runs after the driver started and validates every key
	// against its capabilities.
	PhaseDriver
)

func (p Phase) String() string {
	if p == PhaseEarly {
		return "early"
	}
	return "driver"
}

// Settings is the merged result of every configuration layer.
type Settings struct {
	Driver   string   `toml:"driver" yaml:"driver"`
	Locale   string   `toml:"locale" yaml:"locale"`
	Trace    bool     `toml:"trace" yaml:"trace"`
	Theme    string   `toml:"theme" yaml:"theme"`
	Mouse    bool     `toml:"mouse" yaml:"mouse"`
	StopKeys []string `toml:"stop_keys" yaml:"stop_keys"`
}

// Defaults returns the lowest layer.
func Defaults() Settings {
	return Settings{
		Theme:    "default",
		Mouse:    true,
		StopKeys: []string{"ctrl+q"},
	}
}

// Loader produces settings for a phase. caps is the zero value during
// PhaseEarly.
type Loader interface {
	Load(phase Phase, caps driver.Capabilities) (Settings, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(Phase, driver.Capabilities) (Settings, error)

func (f LoaderFunc) Load(phase Phase, caps driver.Capabilities) (Settings, error) {
	return f(phase, caps)
}

// Layer is a partial set of settings. Nil fields leave lower layers alone.
type Layer struct {
	Driver   *string  `toml:"driver" yaml:"driver"`
	Locale   *string  `toml:"locale" yaml:"locale"`
	Trace    *bool    `toml:"trace" yaml:"trace"`
	Theme    *string  `toml:"theme" yaml:"theme"`
	Mouse    *bool    `toml:"mouse" yaml:"mouse"`
	StopKeys []string `toml:"stop_keys" yaml:"stop_keys"`
}

func (l Layer) apply(s *Settings) {
	if l.Driver != nil {
		s.Driver = strings.TrimSpace(*l.Driver)
	}
	if l.Locale != nil {
		s.Locale = strings.TrimSpace(*l.Locale)
	}
	if l.Trace != nil {
		s.Trace = *l.Trace
	}
	if l.Theme != nil {
		s.Theme = strings.TrimSpace(*l.Theme)
	}
	if l.Mouse != nil {
		s.Mouse = *l.Mouse
	}
	if len(l.StopKeys) > 0 {
		s.StopKeys = append([]string(nil), l.StopKeys...)
	}
}

// Layered merges defaults, settings files, the environment and explicit
// overrides, in that order of increasing precedence.
type Layered struct {
	// SearchPaths are read in order when they exist.
	SearchPaths []string
	// Explicit must exist when set. It is read after SearchPaths.
	Explicit  string
	Environ   []string
	Overrides Layer
}

// NewLayered returns a loader searching the user's config directory.
func NewLayered(environ []string, explicit string) *Layered {
	return &Layered{
		SearchPaths: DefaultPaths(environ),
		Explicit:    explicit,
		Environ:     environ,
	}
}

// DefaultPaths lists the per-user settings files, lowest precedence first.
func DefaultPaths(environ []string) []string {
	env := parseEnv(environ)
	dir := env["XDG_CONFIG_HOME"]
	if dir == "" {
		home := env["HOME"]
		if home == "" {
			return nil
		}
		dir = filepath.Join(home, ".config")
	}
	base := filepath.Join(dir, "tuikit")
	return []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.toml"),
	}
}

// Load implements Loader.
func (l *Layered) Load(phase Phase, caps driver.Capabilities) (Settings, error) {
	s := Defaults()
	for _, path := range l.SearchPaths {
		layer, err := readLayer(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Settings{}, err
		}
		layer.apply(&s)
	}
	if l.Explicit != "" {
		layer, err := readLayer(l.Explicit)
		if err != nil {
			return Settings{}, err
		}
		layer.apply(&s)
	}
	envLayer(l.Environ).apply(&s)
	l.Overrides.apply(&s)

	if phase == PhaseEarly {
		early := Defaults()
		early.Driver = s.Driver
		early.Locale = s.Locale
		early.Trace = s.Trace
		return early, nil
	}
	valid, notes := ValidateSettings(s, caps)
	for _, note := range notes {
		logging.Defer("config: %s", note)
	}
	return valid, nil
}

// ValidateSettings drops values the driver cannot honour and reports each one.
func ValidateSettings(s Settings, caps driver.Capabilities) (Settings, []string) {
	var notes []string
	if s.Theme == "" {
		s.Theme = "default"
	}
	if _, ok := theme.Named(s.Theme); !ok {
		notes = append(notes, fmt.Sprintf("unknown theme %q, using default", s.Theme))
		s.Theme = "default"
	}
	if theme.NeedsTrueColor(s.Theme) && caps.Colors < driver.ColorsTrue {
		notes = append(notes, fmt.Sprintf("theme %q needs a true-color terminal (have %s), using default", s.Theme, caps.Colors))
		s.Theme = "default"
	}
	if s.Mouse && !caps.Mouse {
		notes = append(notes, "mouse enabled but the driver reports no pointer support")
		s.Mouse = false
	}
	if len(s.StopKeys) == 0 {
		s.StopKeys = Defaults().StopKeys
	}
	return s, notes
}

func readLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layer{}, fmt.Errorf("settings %s: %w", path, err)
	}
	var layer Layer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&layer); err != nil && !errors.Is(err, io.EOF) {
			return Layer{}, fmt.Errorf("settings %s: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &layer)
		if err != nil {
			return Layer{}, fmt.Errorf("settings %s: %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			logging.Defer("config: %s: unknown key %q ignored", path, key.String())
		}
	}
	return layer, nil
}

func envLayer(environ []string) Layer {
	env := parseEnv(environ)
	var layer Layer
	if v, ok := env[envDriver]; ok && strings.TrimSpace(v) != "" {
		layer.Driver = ptr(v)
	}
	if v, ok := env[envLocale]; ok && strings.TrimSpace(v) != "" {
		layer.Locale = ptr(v)
	}
	if v, ok := env[envTheme]; ok && strings.TrimSpace(v) != "" {
		layer.Theme = ptr(v)
	}
	if v, ok := env[envTrace]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			layer.Trace = ptr(b)
		}
	}
	if v, ok := env[envMouse]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			layer.Mouse = ptr(b)
		}
	}
	return layer
}
