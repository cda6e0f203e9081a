package events

import "github.com/atomicstack/tuikit/internal/logging"

type AppTracer struct{}

var App = AppTracer{}

func (AppTracer) Start(payload map[string]interface{}) {
	logging.Trace("app.start", payload)
}

func (AppTracer) Exit(err error) {
	payload := map[string]interface{}{}
	if err != nil {
		payload["error"] = err.Error()
	}
	logging.Trace("app.exit", payload)
}

// Session records what a session resolved when it started.
func (AppTracer) Session(payload map[string]interface{}) {
	logging.Trace("app.session", payload)
}
