package tabnap

import (
	"context"

	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/internal/chromehost"
	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnIcon(event schema.IconEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnIcon(event)
	}
}

// hostEvents forwards host events to the coordinator and drops the remembered
// icon state of closed tabs.
type hostEvents struct {
	next chromehost.EventHandler
	bus  *eventbus.Bus
}

func (h hostEvents) HandleEvent(ctx context.Context, ev schema.HostEvent) {
	h.next.HandleEvent(ctx, ev)
	if ev.Type == schema.EventTabRemoved {
		h.bus.Forget(ev.TabID)
	}
}
