package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atomicstack/tuikit/internal/theme"
)

// Config captures runtime configuration for the demo command.
type Config struct {
	Session     SessionFlags
	Logging     Logging
	ConfigFile  string
	ListDrivers bool
	Flags       map[string]string
	Args        []string

	environ []string
	set     map[string]bool
}

// SessionFlags are the command-line settings that feed the session.
type SessionFlags struct {
	Driver      string
	Locale      string
	Theme       string
	NonBlocking bool
}

type Logging struct {
	FilePath string
	Trace    bool
}

const (
	envDriver  = "TUIKIT_DRIVER"
	envTrace   = "TUIKIT_TRACE"
	envLogFile = "TUIKIT_LOG_FILE"
	envConfig  = "TUIKIT_CONFIG"
	envLocale  = "TUIKIT_LOCALE"
	envTheme   = "TUIKIT_THEME"
	envMouse   = "TUIKIT_MOUSE"
)

// Load parses configuration from CLI arguments and environment variables.
func Load() (Config, error) {
	return LoadArgs(os.Args[1:], os.Environ())
}

// LoadArgs allows tests to supply specific args/environment.
func LoadArgs(args []string, environ []string) (Config, error) {
	env := parseEnv(environ)

	fs := flag.NewFlagSet("tuikit", flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))

	driverName := fs.String("driver", "", "driver to start (overrides "+envDriver+" and the settings file)")
	locale := fs.String("locale", "", "preferred locale, e.g. de-DE")
	themeName := fs.String("theme", "", "style set: "+strings.Join(theme.Names(), ", "))
	nonBlocking := fs.Bool("nonblocking", false, "poll the driver without blocking")
	configFile := fs.String("config", envOrDefault(env, envConfig, ""), "settings file (TOML or YAML)")
	listDrivers := fs.Bool("list-drivers", false, "print the registered drivers and exit")
	trace := fs.Bool("trace", envOrBool(env, envTrace, false), "enable verbose JSON trace logging")
	logFile := fs.String("log-file", envOrDefault(env, envLogFile, ""), "path to the log file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := Config{
		Session: SessionFlags{
			Driver:      *driverName,
			Locale:      *locale,
			Theme:       *themeName,
			NonBlocking: *nonBlocking,
		},
		Logging: Logging{
			FilePath: *logFile,
			Trace:    *trace,
		},
		ConfigFile:  *configFile,
		ListDrivers: *listDrivers,
		Flags: map[string]string{
			"driver":      *driverName,
			"locale":      *locale,
			"theme":       *themeName,
			"nonblocking": strconv.FormatBool(*nonBlocking),
			"config":      *configFile,
			"trace":       strconv.FormatBool(*trace),
			"logFile":     *logFile,
		},
		Args:    append([]string(nil), args...),
		environ: append([]string(nil), environ...),
		set:     set,
	}

	return cfg, nil
}

// Loader returns the layered settings loader for cfg. Flags given on the
// command line override every other layer.
func (c Config) Loader() *Layered {
	l := NewLayered(c.environ, c.ConfigFile)
	if c.set["driver"] {
		l.Overrides.Driver = ptr(c.Session.Driver)
	}
	if c.set["locale"] {
		l.Overrides.Locale = ptr(c.Session.Locale)
	}
	if c.set["theme"] {
		l.Overrides.Theme = ptr(c.Session.Theme)
	}
	if c.set["trace"] {
		l.Overrides.Trace = ptr(c.Logging.Trace)
	}
	return l
}

// Environ returns the environment the configuration was read from.
func (c Config) Environ() []string {
	return append([]string(nil), c.environ...)
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok {
		return v
	}
	return fallback
}

func envOrBool(env map[string]string, key string, fallback bool) bool {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad returns configuration or exits.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// Validate checks values that can be rejected before any session starts.
func Validate(cfg Config) error {
	if name := cfg.Session.Theme; name != "" {
		if _, ok := theme.Named(name); !ok {
			return fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(theme.Names(), ", "))
		}
	}
	if cfg.ConfigFile != "" {
		info, err := os.Stat(cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("settings file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("settings file %s is a directory", cfg.ConfigFile)
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
