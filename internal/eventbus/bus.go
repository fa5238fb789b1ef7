package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventIcon carries a recomputed tab status.
	EventIcon EventType = "icon"
	// EventNotice announces that a notice is pending.
	EventNotice EventType = "notice"
)

// Event represents a UI-facing event emitted by the coordinator.
type Event struct {
	Type   EventType         `json:"type"`
	Icon   *schema.IconEvent `json:"icon,omitempty"`
	Notice *schema.Notice    `json:"notice,omitempty"`
}

// Bus fans out events to subscribers. Subscribers that fall behind lose events.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	last  map[schema.TabID]schema.IconEvent
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		last:  make(map[schema.TabID]schema.IconEvent),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnIcon publishes an icon event and remembers it as the tab's last status.
func (b *Bus) OnIcon(event schema.IconEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.last[event.TabID] = event
	b.mu.Unlock()
	b.publish(Event{Type: EventIcon, Icon: &event})
}

// OnNotice publishes a pending notice.
func (b *Bus) OnNotice(notice schema.Notice) {
	b.publish(Event{Type: EventNotice, Notice: &notice})
}

// LastIcon returns the last icon event published for the tab.
func (b *Bus) LastIcon(tabID schema.TabID) (schema.IconEvent, bool) {
	if b == nil {
		return schema.IconEvent{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	event, ok := b.last[tabID]
	return event, ok
}

// Forget drops the remembered status of a closed tab.
func (b *Bus) Forget(tabID schema.TabID) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.last, tabID)
	b.mu.Unlock()
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
