package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/atomicstack/tuikit/internal/app"
	"github.com/atomicstack/tuikit/internal/config"
	"github.com/atomicstack/tuikit/internal/driver"
	_ "github.com/atomicstack/tuikit/internal/driver/all"
	"github.com/atomicstack/tuikit/internal/format/table"
	"github.com/atomicstack/tuikit/internal/logging"
	"github.com/atomicstack/tuikit/internal/logging/events"
	"github.com/atomicstack/tuikit/internal/session"
)

func main() {
	runtimeCfg := config.MustLoad()
	if err := config.Validate(runtimeCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if runtimeCfg.ListDrivers {
		listDrivers(os.Stdout, driver.Default())
		return
	}
	logging.Configure(runtimeCfg.Logging.FilePath)
	logging.SetTraceEnabled(runtimeCfg.Logging.Trace)

	traceStartup(runtimeCfg)

	s := session.New(
		session.WithLoader(runtimeCfg.Loader()),
		session.WithEnviron(runtimeCfg.Environ()),
		session.WithNonBlockingPoll(runtimeCfg.Session.NonBlocking),
	)
	defer traceSession(s)()
	if err := app.Run(app.Config{Driver: runtimeCfg.Session.Driver, Session: s}); err != nil {
		logging.Error(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func traceStartup(cfg config.Config) {
	events.App.Start(startupTracePayload(cfg))
}

// listDrivers prints the registered drivers as a table.
func listDrivers(w io.Writer, reg *driver.Registry) {
	rows := [][]string{{"DRIVER", "DESCRIPTION"}}
	for _, e := range reg.Describe() {
		rows = append(rows, []string{e.Name, e.Description})
	}
	lines := table.Format(rows, []table.Alignment{table.AlignLeft, table.AlignLeft})
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// startupTracePayload bundles runtime context for trace logging.
func startupTracePayload(cfg config.Config) map[string]interface{} {
	flags := make(map[string]interface{}, len(cfg.Flags))
	for k, v := range cfg.Flags {
		flags[k] = v
	}
	flags["trace"] = cfg.Logging.Trace
	flags["logFile"] = cfg.Logging.FilePath
	payload := map[string]interface{}{
		"argv":           cfg.Args,
		"flags":          flags,
		"config":         cfg,
		"settingsFiles":  config.DefaultPaths(cfg.Environ()),
		"drivers":        driver.Default().Names(),
		"platformDriver": session.PlatformDefault(),
	}
	if exe, err := os.Executable(); err == nil {
		payload["executable"] = exe
	} else {
		payload["executableError"] = err.Error()
	}
	payload["tty"] = collectTTYDetails()
	return payload
}

// traceSession records what the session resolved each time it starts.
func traceSession(s *session.Session) (unsubscribe func()) {
	return s.OnLifecycleChanged(func(up bool) {
		if up {
			events.App.Session(sessionTracePayload(s))
		}
	})
}

func sessionTracePayload(s *session.Session) map[string]interface{} {
	payload := map[string]interface{}{
		"id":       s.ID(),
		"forced":   s.ForcedDriver(),
		"locales":  s.Locales(),
		"settings": s.Settings(),
	}
	if drv := s.Driver(); drv != nil {
		caps := drv.Capabilities()
		w, h := drv.Size()
		payload["driver"] = drv.Name()
		payload["colors"] = caps.Colors.String()
		payload["mouse"] = caps.Mouse
		payload["size"] = fmt.Sprintf("%dx%d", w, h)
	}
	return payload
}

type ttyDetails struct {
	Probes []ttyProbe `json:"probes"`
	// Colors is the color depth the environment advertises for stdout.
	Colors string `json:"colors"`
}

type ttyProbe struct {
	Name     string `json:"name"`
	Terminal bool   `json:"terminal"`
	Cygwin   bool   `json:"cygwin,omitempty"`
	Size     string `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// collectTTYDetails reports which standard descriptors are terminals and
// what the environment claims about color support.
func collectTTYDetails() ttyDetails {
	files := []struct {
		name string
		f    *os.File
	}{
		{"stdin", os.Stdin},
		{"stdout", os.Stdout},
		{"stderr", os.Stderr},
	}
	details := ttyDetails{Probes: make([]ttyProbe, 0, len(files))}
	for _, file := range files {
		fd := file.f.Fd()
		probe := ttyProbe{
			Name:     file.name,
			Terminal: isatty.IsTerminal(fd),
			Cygwin:   isatty.IsCygwinTerminal(fd),
		}
		if probe.Terminal {
			if w, h, err := term.GetSize(int(fd)); err == nil {
				probe.Size = fmt.Sprintf("%dx%d", w, h)
			} else {
				probe.Error = err.Error()
			}
		}
		details.Probes = append(details.Probes, probe)
	}
	switch termenv.NewOutput(os.Stdout).EnvColorProfile() {
	case termenv.TrueColor:
		details.Colors = driver.ColorsTrue.String()
	case termenv.ANSI256:
		details.Colors = driver.Colors256.String()
	case termenv.ANSI:
		details.Colors = driver.Colors16.String()
	default:
		details.Colors = driver.ColorsMono.String()
	}
	return details
}
