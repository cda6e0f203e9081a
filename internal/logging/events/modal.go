package events

import "github.com/atomicstack/tuikit/internal/logging"

type ModalTracer struct{}

var Modal = ModalTracer{}

func (ModalTracer) Open(title string, buttons []string, width, height int) {
	logging.Trace("modal.open", map[string]interface{}{
		"title":   title,
		"buttons": buttons,
		"width":   width,
		"height":  height,
	})
}

func (ModalTracer) Result(title string, index int) {
	logging.Trace("modal.result", map[string]interface{}{"title": title, "index": index})
}
