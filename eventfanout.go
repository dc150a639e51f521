package termdeck

import (
	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

func fanout(sinks ...core.EventSink) core.EventSink {
	out := make([]core.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return eventFanout{sinks: out}
	}
}
