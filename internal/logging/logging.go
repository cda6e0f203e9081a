package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultLogFile = "tuikit.log"

var (
	traceMu      sync.Mutex
	traceEnabled bool
	logPath      = defaultLogFile
	logExplicit  bool

	deferredMu  sync.Mutex
	deferred    []string
	deferredOut io.Writer = os.Stderr
)

// Error writes errors to the shared log file.
func Error(err error) {
	if err == nil {
		return
	}

	f, ferr := os.OpenFile(currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "logging failed: %v\n", ferr)
		return
	}
	defer f.Close()

	log.SetOutput(f)
	log.Println(err)
}

// SetTraceEnabled toggles emission of structured trace entries.
func SetTraceEnabled(enabled bool) {
	traceMu.Lock()
	traceEnabled = enabled
	traceMu.Unlock()
}

// TraceEnabled reports whether tracing is on.
func TraceEnabled() bool {
	traceMu.Lock()
	defer traceMu.Unlock()
	return traceEnabled
}

// Trace appends a structured JSON entry to the shared log when tracing is enabled.
func Trace(event string, payload interface{}) {
	traceMu.Lock()
	enabled := traceEnabled
	path := logPath
	traceMu.Unlock()
	if !enabled {
		return
	}

	entry := struct {
		Time    time.Time   `json:"time"`
		Event   string      `json:"event"`
		Payload interface{} `json:"payload,omitempty"`
	}{
		Time:    time.Now().UTC(),
		Event:   event,
		Payload: payload,
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace logging failed: %v\n", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(entry); err != nil {
		fmt.Fprintf(os.Stderr, "trace encoding failed: %v\n", err)
	}
}

// Configure sets the log destination. Empty values fall back to the default
// path. Directories are created automatically when missing.
func Configure(path string) {
	traceMu.Lock()
	defer traceMu.Unlock()
	if strings.TrimSpace(path) == "" {
		logPath = defaultLogFile
		logExplicit = false
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "unable to create log directory: %v\n", err)
		logPath = defaultLogFile
		logExplicit = false
		return
	}
	logPath = path
	logExplicit = true
}

func currentPath() string {
	traceMu.Lock()
	defer traceMu.Unlock()
	return logPath
}

// Defer records a diagnostic that is held back while the terminal is owned
// by a driver, since writing it immediately would corrupt the screen.
func Defer(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	deferredMu.Lock()
	deferred = append(deferred, msg)
	deferredMu.Unlock()
	Trace("deferred", map[string]interface{}{"message": msg})
}

// Deferred returns the diagnostics recorded since the last flush.
func Deferred() []string {
	deferredMu.Lock()
	defer deferredMu.Unlock()
	return append([]string(nil), deferred...)
}

// SetDeferredOutput redirects FlushDeferred. A nil writer silences it.
func SetDeferredOutput(w io.Writer) {
	deferredMu.Lock()
	deferredOut = w
	deferredMu.Unlock()
}

// FlushDeferred writes and clears the held-back diagnostics. When a log file
// was configured explicitly they are appended there as well.
func FlushDeferred() int {
	deferredMu.Lock()
	msgs := deferred
	deferred = nil
	out := deferredOut
	deferredMu.Unlock()
	if len(msgs) == 0 {
		return 0
	}

	if out != nil {
		for _, msg := range msgs {
			fmt.Fprintln(out, msg)
		}
	}

	traceMu.Lock()
	explicit, path := logExplicit, logPath
	traceMu.Unlock()
	if explicit {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging failed: %v\n", err)
			return len(msgs)
		}
		defer f.Close()
		logger := log.New(f, "", log.LstdFlags)
		for _, msg := range msgs {
			logger.Println(msg)
		}
	}
	return len(msgs)
}
