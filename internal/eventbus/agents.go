package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// DefaultReplyTimeout bounds a single request/reply exchange with an agent.
const DefaultReplyTimeout = 5 * time.Second

// Handler answers coordinator messages for one tab.
type Handler interface {
	Handle(ctx context.Context, msg schema.AgentMessage) (schema.TabInfo, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg schema.AgentMessage) (schema.TabInfo, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg schema.AgentMessage) (schema.TabInfo, error) {
	return f(ctx, msg)
}

type registration struct {
	handler Handler
	seq     uint64
}

// Router delivers coordinator messages to the agent registered for a tab.
// A tab has at most one handler; registering again replaces the previous one.
type Router struct {
	mu      sync.Mutex
	inboxes map[schema.TabID]registration
	seq     uint64
	timeout time.Duration
	log     pslog.Logger
}

// NewRouter constructs a Router. A non-positive timeout uses DefaultReplyTimeout.
func NewRouter(logger pslog.Logger, timeout time.Duration) *Router {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	return &Router{
		inboxes: make(map[schema.TabID]registration),
		timeout: timeout,
		log:     logger,
	}
}

// Register installs the handler for tabID and returns a cancel that only
// removes this registration.
func (r *Router) Register(tabID schema.TabID, handler Handler) func() {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.inboxes[tabID] = registration{handler: handler, seq: seq}
	count := len(r.inboxes)
	r.mu.Unlock()
	r.log.With("tab", int(tabID)).Debug("eventbus agent registered", "agents", count)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.inboxes[tabID]; ok && current.seq == seq {
			delete(r.inboxes, tabID)
			return
		}
		// The registration may have been moved to a replacement id.
		for id, current := range r.inboxes {
			if current.seq == seq {
				delete(r.inboxes, id)
				return
			}
		}
	}
}

// Move re-keys the handler of oldID under newID. The cancel returned by
// Register keeps working after a move.
func (r *Router) Move(oldID, newID schema.TabID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.inboxes[oldID]
	if !ok {
		return
	}
	delete(r.inboxes, oldID)
	r.inboxes[newID] = reg
}

// Len returns the number of registered agents.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inboxes)
}

func (r *Router) lookup(tabID schema.TabID) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inboxes[tabID].handler
}

// Send delivers msg to the agent of tabID and waits for its reply.
func (r *Router) Send(ctx context.Context, tabID schema.TabID, msg schema.AgentMessage) (schema.TabInfo, error) {
	handler := r.lookup(tabID)
	if handler == nil {
		return schema.TabInfo{}, fmt.Errorf("%w: tab %d", schema.ErrAgentUnreachable, tabID)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type reply struct {
		info schema.TabInfo
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		info, err := handler.Handle(ctx, msg)
		done <- reply{info: info, err: err}
	}()
	select {
	case res := <-done:
		return res.info, res.err
	case <-ctx.Done():
		logx.WithTab(ctx, tabID).Debug("eventbus agent reply timed out", "action", msg.Action)
		return schema.TabInfo{}, ctx.Err()
	}
}

// Broadcast delivers msg to every registered agent without waiting for replies.
func (r *Router) Broadcast(ctx context.Context, msg schema.AgentMessage) {
	r.mu.Lock()
	targets := make(map[schema.TabID]Handler, len(r.inboxes))
	for tabID, reg := range r.inboxes {
		targets[tabID] = reg.handler
	}
	r.mu.Unlock()
	log := r.log
	if ctx != nil {
		log = pslog.Ctx(ctx)
	}
	log.Debug("eventbus broadcast", "action", msg.Action, "agents", len(targets))
	for tabID := range targets {
		go func(tabID schema.TabID) {
			sendCtx := context.Background()
			if ctx != nil {
				sendCtx = pslog.ContextWithLogger(sendCtx, pslog.Ctx(ctx))
			}
			if _, err := r.Send(sendCtx, tabID, msg); err != nil {
				logx.WithTab(sendCtx, tabID).Trace("eventbus broadcast delivery failed", "action", msg.Action, "err", err)
			}
		}(tabID)
	}
}
