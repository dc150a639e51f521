package eventbus

import (
	"context"
	"sync"

	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries payloads accepted for a pane.
	EventOutput EventType = "output"
	// EventTab carries tab lifecycle and layout updates.
	EventTab EventType = "tab"
)

// AllTabs subscribes to the events of every tab.
const AllTabs schema.TabID = ""

// Event represents a rendering-facing event emitted by the workspace core.
type Event struct {
	Type   EventType
	Output schema.OutputEvent
	Tab    schema.TabEvent
}

// Bus fans events out to per-tab subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.TabID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.TabID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for a tab, or for every tab with AllTabs,
// and returns a channel + cancel. Events are dropped for a subscriber whose
// channel is full; it has to re-read state from the store and output views.
func (b *Bus) Subscribe(tabID schema.TabID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	tabSubs := b.subs[tabID]
	if tabSubs == nil {
		tabSubs = make(map[chan Event]struct{})
		b.subs[tabID] = tabSubs
	}
	tabSubs[ch] = struct{}{}
	count := len(tabSubs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "tab", tabID, "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[tabID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, tabID)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.Debug("eventbus unsubscribe", "tab", tabID)
		})
	}
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(event.TabID, Event{Type: EventOutput, Output: event})
}

// OnTabEvent publishes a tab event.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(event.Tab.ID, Event{Type: EventTab, Tab: event})
}

func (b *Bus) publish(tabID schema.TabID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	tabSubs := b.subs[tabID]
	wildcard := b.subs[AllTabs]
	subs := make([]chan Event, 0, len(tabSubs)+len(wildcard))
	for sub := range tabSubs {
		subs = append(subs, sub)
	}
	if tabID != AllTabs {
		for sub := range wildcard {
			subs = append(subs, sub)
		}
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Warn("eventbus event dropped", "tab", tabID, "type", event.Type, "subscribers", dropped)
	}
}
