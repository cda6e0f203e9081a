package events

import "github.com/atomicstack/tuikit/internal/logging"

type LoopTracer struct{}

var Loop = LoopTracer{}

func (LoopTracer) Push(depth int, top string) {
	logging.Trace("loop.push", map[string]interface{}{"depth": depth, "top": top})
}

func (LoopTracer) Pop(depth int, top string) {
	logging.Trace("loop.pop", map[string]interface{}{"depth": depth, "top": top})
}

func (LoopTracer) Stop(depth int, reason string) {
	logging.Trace("loop.stop", map[string]interface{}{"depth": depth, "reason": reason})
}

func (LoopTracer) HandlerError(depth int, err error) {
	if err == nil {
		return
	}
	logging.Trace("loop.handler.error", map[string]interface{}{"depth": depth, "error": err.Error()})
}

func (LoopTracer) DriverClosed(depth int) {
	logging.Trace("loop.driver.closed", map[string]interface{}{"depth": depth})
}
