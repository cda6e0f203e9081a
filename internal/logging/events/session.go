package events

import "github.com/atomicstack/tuikit/internal/logging"

type SessionTracer struct{}

type DriverTracer struct{}

var (
	Session = SessionTracer{}
	Driver  = DriverTracer{}
)

func (SessionTracer) Start(id, driver string, preserve bool) {
	logging.Trace("session.start", map[string]interface{}{
		"session":  id,
		"driver":   driver,
		"preserve": preserve,
	})
}

func (SessionTracer) Reenter(id string) {
	logging.Trace("session.reenter", map[string]interface{}{"session": id})
}

func (SessionTracer) Shutdown(id string, discarded int) {
	logging.Trace("session.shutdown", map[string]interface{}{"session": id, "discarded": discarded})
}

func (SessionTracer) Locales(id string, locales []string) {
	logging.Trace("session.locales", map[string]interface{}{"session": id, "locales": locales})
}

func (DriverTracer) Resolve(requested, resolved, via string) {
	logging.Trace("driver.resolve", map[string]interface{}{
		"requested": requested,
		"resolved":  resolved,
		"via":       via,
	})
}

func (DriverTracer) InitFailed(name string, err error) {
	if err == nil {
		return
	}
	logging.Trace("driver.init.error", map[string]interface{}{"driver": name, "error": err.Error()})
}

func (DriverTracer) Capabilities(name, colors string, mouse bool) {
	logging.Trace("driver.capabilities", map[string]interface{}{
		"driver": name,
		"colors": colors,
		"mouse":  mouse,
	})
}
