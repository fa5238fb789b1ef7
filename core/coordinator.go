package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// Coordinator owns cross-tab state and the suspend/unsuspend state machine.
// Handlers run on the caller goroutine. Shared state is only touched through
// single atomic steps and no lock is held across host or agent calls.
type Coordinator struct {
	cfg       schema.CoordinatorConfig
	host      Host
	settings  Settings
	whitelist Whitelist
	codec     URLCodec
	queue     SuspendQueue
	session   SessionRecorder
	agents    AgentMessenger
	tabInfo   TabInfoStore
	history   History
	hotkeys   Hotkeys
	sink      EventSink
	now       func() time.Time
	logger    pslog.Logger
	baseCtx   context.Context

	flags *FlagStore
	focus *FocusTracker

	// replaceMu orders tab id replacement against focus promotion, so a
	// promotion never records an id that a replacement already retired.
	replaceMu sync.Mutex

	windowFocusTimer *debouncer
	tabFocusTimer    *debouncer
	sessionTimer     *debouncer

	env    environment
	notice noticeState
	hotkey hotkeyState
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(cfg schema.CoordinatorConfig, deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Host == nil {
		return nil, errors.New("coordinator host is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("coordinator settings are required")
	}
	if deps.Codec == nil {
		return nil, errors.New("coordinator url codec is required")
	}
	if deps.Agents == nil {
		return nil, errors.New("coordinator agent messenger is required")
	}
	if deps.Whitelist == nil {
		deps.Whitelist = noopWhitelist{}
	}
	if deps.Queue == nil {
		deps.Queue = noopQueue{}
	}
	if deps.Session == nil {
		deps.Session = noopSession{}
	}
	if deps.TabInfo == nil {
		deps.TabInfo = noopTabInfo{}
	}
	if deps.History == nil {
		deps.History = noopHistory{}
	}
	if deps.Hotkeys == nil {
		deps.Hotkeys = noopHotkeys{}
	}
	if deps.EventSink == nil {
		deps.EventSink = noopSink{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = realScheduler{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Coordinator{
		cfg:              cfg.Normalize(),
		host:             deps.Host,
		settings:         deps.Settings,
		whitelist:        deps.Whitelist,
		codec:            deps.Codec,
		queue:            deps.Queue,
		session:          deps.Session,
		agents:           deps.Agents,
		tabInfo:          deps.TabInfo,
		history:          deps.History,
		hotkeys:          deps.Hotkeys,
		sink:             deps.EventSink,
		now:              deps.Now,
		logger:           logger,
		baseCtx:          pslog.ContextWithLogger(context.Background(), logger),
		flags:            NewFlagStore(),
		focus:            NewFocusTracker(),
		windowFocusTimer: newDebouncer(deps.Scheduler),
		tabFocusTimer:    newDebouncer(deps.Scheduler),
		sessionTimer:     newDebouncer(deps.Scheduler),
	}
	c.env.online = true
	return c, nil
}

// Flags exposes the tab flag store.
func (c *Coordinator) Flags() *FlagStore {
	return c.flags
}

// Focus exposes the focus tracker.
func (c *Coordinator) Focus() *FocusTracker {
	return c.focus
}

// Config returns the normalized configuration.
func (c *Coordinator) Config() schema.CoordinatorConfig {
	return c.cfg
}

// Init seeds focus tracking from the currently active tab.
func (c *Coordinator) Init(ctx context.Context) {
	log := c.log(ctx)
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		log.Warn("coordinator init without active tab", "err", err)
		return
	}
	c.focus.Seed(tab)
	log.Info("coordinator initialized", "tab", tab.ID, "window", tab.WindowID)
}

// Close stops pending timers.
func (c *Coordinator) Close() {
	c.windowFocusTimer.Stop()
	c.tabFocusTimer.Stop()
	c.sessionTimer.Stop()
}

// HandleEvent dispatches a host event.
func (c *Coordinator) HandleEvent(ctx context.Context, ev schema.HostEvent) {
	switch ev.Type {
	case schema.EventTabCreated:
		logx.WithTab(c.ctx(ctx), ev.TabID).Debug("coordinator tab created", "url", tabURL(ev.Tab))
		c.queueSessionSave()
	case schema.EventTabRemoved:
		logx.WithTab(c.ctx(ctx), ev.TabID).Debug("coordinator tab removed")
		c.queueSessionSave()
		c.flags.Clear(ev.TabID)
		c.focus.ForgetTab(ev.TabID)
	case schema.EventTabUpdated:
		c.handleTabUpdated(ctx, ev.TabID, ev.Change, ev.Tab)
	case schema.EventTabActivated:
		c.handleTabFocusChanged(ctx, ev.TabID, ev.WindowID)
	case schema.EventTabReplaced:
		c.ReplaceTabID(ctx, ev.OldTabID, ev.TabID)
	case schema.EventWindowCreated:
		c.handleWindowCreated(ctx, ev.WindowID)
	case schema.EventWindowRemoved:
		logx.WithWindow(c.log(ctx), ev.WindowID).Debug("coordinator window removed")
		c.queueSessionSave()
		c.focus.ForgetWindow(ev.WindowID)
	case schema.EventWindowFocusChanged:
		c.handleWindowFocusChanged(ctx, ev.WindowID)
	case schema.EventHistoryVisited:
		c.handleHistoryVisited(ctx, ev.URL)
	default:
		c.log(ctx).Debug("coordinator event ignored", "type", ev.Type)
	}
}

// ReplaceTabID moves flags, focus references and the agent registration
// from oldID to newID. Pending focus work resolves to newID when it runs.
func (c *Coordinator) ReplaceTabID(ctx context.Context, oldID, newID schema.TabID) {
	c.replaceMu.Lock()
	c.flags.Migrate(oldID, newID)
	c.focus.ReplaceTabID(oldID, newID)
	c.agents.Move(oldID, newID)
	c.replaceMu.Unlock()
	logx.WithTab(c.ctx(ctx), newID).Debug("coordinator tab replaced", "old_tab", oldID)
}

func (c *Coordinator) ctx(ctx context.Context) context.Context {
	if ctx == nil {
		return c.baseCtx
	}
	return ctx
}

func (c *Coordinator) log(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return c.logger
	}
	return pslog.Ctx(ctx)
}

// detached returns a context for work that outlives the triggering call.
func (c *Coordinator) detached(ctx context.Context) context.Context {
	out := c.baseCtx
	if ctx != nil {
		out = pslog.ContextWithLogger(out, pslog.Ctx(ctx))
		out = logx.CopyContextFields(out, ctx)
	}
	return out
}

func (c *Coordinator) send(ctx context.Context, tabID schema.TabID, msg schema.AgentMessage) (schema.TabInfo, error) {
	info, err := c.agents.Send(ctx, tabID, msg)
	if err != nil {
		aerr := NewAgentError(msg.Action, tabID, err)
		logx.WithTab(ctx, tabID).Debug("coordinator agent message failed", "action", msg.Action, "kind", aerr.Kind, "err", err)
		return info, aerr
	}
	return info, nil
}

func (c *Coordinator) setIconStatus(ctx context.Context, tabID schema.TabID, status schema.Status) {
	logx.WithTab(ctx, tabID).Trace("coordinator icon status", "status", status)
	c.sink.OnIcon(schema.IconEvent{TabID: tabID, Status: status, Icon: status.Icon()})
}

func (c *Coordinator) currentlyActiveTab(ctx context.Context) (schema.Tab, error) {
	tabs, err := c.host.QueryTabs(ctx, schema.TabQuery{Active: schema.Bool(true), CurrentWindow: true})
	if err != nil {
		return schema.Tab{}, err
	}
	if len(tabs) == 0 {
		return schema.Tab{}, schema.ErrNoActiveTab
	}
	return tabs[0], nil
}

func tabURL(tab *schema.Tab) string {
	if tab == nil {
		return ""
	}
	return tab.URL
}

type environment struct {
	mu       sync.Mutex
	charging bool
	online   bool
}

type hotkeyState struct {
	mu            sync.Mutex
	label         string
	resolved      bool
	triggerUpdate bool
}
