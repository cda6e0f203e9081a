package events

import "github.com/atomicstack/tuikit/internal/logging"

type BridgeTracer struct{}

var Bridge = BridgeTracer{}

func (BridgeTracer) Post(source, label string, seq uint64) {
	logging.Trace("bridge.post", map[string]interface{}{"source": source, "label": label, "seq": seq})
}

func (BridgeTracer) Drain(count int) {
	logging.Trace("bridge.drain", map[string]interface{}{"count": count})
}

func (BridgeTracer) Error(source, label string, err error) {
	if err == nil {
		return
	}
	logging.Trace("bridge.error", map[string]interface{}{"source": source, "label": label, "error": err.Error()})
}

func (BridgeTracer) Discard(source, label string) {
	logging.Trace("bridge.discard", map[string]interface{}{"source": source, "label": label})
}

func (BridgeTracer) Closed(discarded int) {
	logging.Trace("bridge.closed", map[string]interface{}{"discarded": discarded})
}
