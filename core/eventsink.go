package core

import "pkt.systems/termdeck/schema"

// EventSink receives tab and output events from the workspace core.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
	OnOutput(event schema.OutputEvent)
}
