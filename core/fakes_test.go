package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

func quietLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

type navigation struct {
	tabID schema.TabID
	url   string
}

type fakeHost struct {
	mu            sync.Mutex
	tabs          map[schema.TabID]schema.Tab
	currentWindow schema.WindowID
	nextID        schema.TabID
	navigated     []navigation
	reloaded      []schema.TabID
	created       []CreateTabOptions
}

func newFakeHost(tabs ...schema.Tab) *fakeHost {
	h := &fakeHost{tabs: make(map[schema.TabID]schema.Tab), currentWindow: 1, nextID: 100}
	for _, tab := range tabs {
		h.tabs[tab.ID] = tab
	}
	return h
}

func (h *fakeHost) put(tab schema.Tab) {
	h.mu.Lock()
	h.tabs[tab.ID] = tab
	h.mu.Unlock()
}

func (h *fakeHost) sorted() []schema.Tab {
	out := make([]schema.Tab, 0, len(h.tabs))
	for _, tab := range h.tabs {
		out = append(out, tab)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowID != out[j].WindowID {
			return out[i].WindowID < out[j].WindowID
		}
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (h *fakeHost) GetTab(_ context.Context, id schema.TabID) (schema.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tab, ok := h.tabs[id]
	if !ok {
		return schema.Tab{}, schema.ErrTabNotFound
	}
	return tab, nil
}

func (h *fakeHost) QueryTabs(_ context.Context, query schema.TabQuery) ([]schema.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []schema.Tab
	for _, tab := range h.sorted() {
		if query.CurrentWindow && tab.WindowID != h.currentWindow {
			continue
		}
		if query.Matches(tab) {
			out = append(out, tab)
		}
	}
	return out, nil
}

func (h *fakeHost) windowLocked(id schema.WindowID) (schema.Window, bool) {
	window := schema.Window{ID: id, Focused: id == h.currentWindow}
	for _, tab := range h.sorted() {
		if tab.WindowID == id {
			window.Tabs = append(window.Tabs, tab)
		}
	}
	return window, len(window.Tabs) > 0
}

func (h *fakeHost) CurrentWindow(context.Context) (schema.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	window, _ := h.windowLocked(h.currentWindow)
	return window, nil
}

func (h *fakeHost) GetWindow(_ context.Context, id schema.WindowID) (schema.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	window, ok := h.windowLocked(id)
	if !ok {
		return schema.Window{}, schema.ErrWindowNotFound
	}
	return window, nil
}

func (h *fakeHost) Windows(context.Context) ([]schema.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[schema.WindowID]bool{}
	var out []schema.Window
	for _, tab := range h.sorted() {
		if seen[tab.WindowID] {
			continue
		}
		seen[tab.WindowID] = true
		window, _ := h.windowLocked(tab.WindowID)
		out = append(out, window)
	}
	return out, nil
}

func (h *fakeHost) CreateTab(_ context.Context, opts CreateTabOptions) (schema.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	tab := schema.Tab{
		ID:          h.nextID,
		WindowID:    opts.WindowID,
		Index:       opts.Index,
		OpenerTabID: opts.OpenerTabID,
		URL:         opts.URL,
		Active:      opts.Active,
		Status:      schema.LoadStatusLoading,
	}
	h.tabs[tab.ID] = tab
	h.created = append(h.created, opts)
	return tab, nil
}

func (h *fakeHost) NavigateTab(_ context.Context, id schema.TabID, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.navigated = append(h.navigated, navigation{tabID: id, url: url})
	return nil
}

func (h *fakeHost) ReloadTab(_ context.Context, id schema.TabID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloaded = append(h.reloaded, id)
	return nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values schema.Settings
}

func newFakeSettings(overrides schema.Settings) *fakeSettings {
	values := schema.DefaultSettings()
	for k, v := range overrides {
		values[k] = v
	}
	return &fakeSettings{values: values}
}

func (s *fakeSettings) Option(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

func (s *fakeSettings) SetOption(_ context.Context, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

func (s *fakeSettings) Snapshot() schema.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(schema.Settings, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

const fakeSuspendedPrefix = "http://tabnap.test/suspended.html#"

type fakeCodec struct{}

func (fakeCodec) IsSuspendedURL(url string) bool {
	return strings.HasPrefix(url, fakeSuspendedPrefix)
}

func (fakeCodec) parse(url string) (title, pos, original string) {
	rest := strings.TrimPrefix(url, fakeSuspendedPrefix)
	head, original, _ := strings.Cut(rest, "&uri=")
	for _, part := range strings.Split(head, "&") {
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "ttl":
			title = value
		case "pos":
			pos = value
		}
	}
	return title, pos, original
}

func (c fakeCodec) OriginalURL(url string) string {
	_, _, original := c.parse(url)
	return original
}

func (fakeCodec) Encode(url, title, scrollPos string) string {
	return fmt.Sprintf("%sttl=%s&pos=%s&uri=%s", fakeSuspendedPrefix, title, scrollPos, url)
}

func (c fakeCodec) ScrollPosition(url string) string {
	_, pos, _ := c.parse(url)
	return pos
}

func (c fakeCodec) Title(url string) string {
	title, _, _ := c.parse(url)
	return title
}

type sentMessage struct {
	tabID schema.TabID
	msg   schema.AgentMessage
}

type fakeAgents struct {
	mu         sync.Mutex
	handlers   map[schema.TabID]func(schema.AgentMessage) (schema.TabInfo, error)
	sent       []sentMessage
	broadcasts []schema.AgentMessage
}

func newFakeAgents() *fakeAgents {
	return &fakeAgents{handlers: make(map[schema.TabID]func(schema.AgentMessage) (schema.TabInfo, error))}
}

// reply registers an agent for the tab that always reports status.
func (a *fakeAgents) reply(tabID schema.TabID, status schema.Status) {
	a.handle(tabID, func(schema.AgentMessage) (schema.TabInfo, error) {
		return schema.TabInfo{Status: status}, nil
	})
}

func (a *fakeAgents) handle(tabID schema.TabID, fn func(schema.AgentMessage) (schema.TabInfo, error)) {
	a.mu.Lock()
	a.handlers[tabID] = fn
	a.mu.Unlock()
}

func (a *fakeAgents) Send(_ context.Context, tabID schema.TabID, msg schema.AgentMessage) (schema.TabInfo, error) {
	a.mu.Lock()
	a.sent = append(a.sent, sentMessage{tabID: tabID, msg: msg})
	fn := a.handlers[tabID]
	a.mu.Unlock()
	if fn == nil {
		return schema.TabInfo{}, schema.ErrAgentUnreachable
	}
	return fn(msg)
}

func (a *fakeAgents) Broadcast(_ context.Context, msg schema.AgentMessage) {
	a.mu.Lock()
	a.broadcasts = append(a.broadcasts, msg)
	a.mu.Unlock()
}

func (a *fakeAgents) Move(oldID, newID schema.TabID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fn, ok := a.handlers[oldID]; ok {
		delete(a.handlers, oldID)
		a.handlers[newID] = fn
	}
}

func (a *fakeAgents) actions(tabID schema.TabID) []schema.AgentAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []schema.AgentAction
	for _, sent := range a.sent {
		if sent.tabID == tabID {
			out = append(out, sent.msg.Action)
		}
	}
	return out
}

func (a *fakeAgents) last(tabID schema.TabID, action schema.AgentAction) (schema.AgentMessage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.sent) - 1; i >= 0; i-- {
		if a.sent[i].tabID == tabID && a.sent[i].msg.Action == action {
			return a.sent[i].msg, true
		}
	}
	return schema.AgentMessage{}, false
}

func (a *fakeAgents) count(tabID schema.TabID, action schema.AgentAction) int {
	n := 0
	for _, got := range a.actions(tabID) {
		if got == action {
			n++
		}
	}
	return n
}

type queueCall struct {
	op    string
	tabID schema.TabID
	level int
	url   string
}

type fakeQueue struct {
	mu    sync.Mutex
	calls []queueCall
}

func (q *fakeQueue) record(call queueCall) {
	q.mu.Lock()
	q.calls = append(q.calls, call)
	q.mu.Unlock()
}

func (q *fakeQueue) Queue(_ context.Context, tab schema.Tab, level int) {
	q.record(queueCall{op: "queue", tabID: tab.ID, level: level})
}

func (q *fakeQueue) Unqueue(_ context.Context, tab schema.Tab) {
	q.record(queueCall{op: "unqueue", tabID: tab.ID})
}

func (q *fakeQueue) Execute(_ context.Context, tab schema.Tab) {
	q.record(queueCall{op: "execute", tabID: tab.ID})
}

func (q *fakeQueue) ForceSuspend(_ context.Context, tab schema.Tab, url string) {
	q.record(queueCall{op: "forceSuspend", tabID: tab.ID, url: url})
}

func (q *fakeQueue) ForceDiscard(_ context.Context, tab schema.Tab) {
	q.record(queueCall{op: "forceDiscard", tabID: tab.ID})
}

func (q *fakeQueue) MarkSuspended(_ context.Context, tab schema.Tab) {
	q.record(queueCall{op: "markSuspended", tabID: tab.ID})
}

func (q *fakeQueue) ops(tabID schema.TabID) []queueCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queueCall
	for _, call := range q.calls {
		if call.tabID == tabID {
			out = append(out, call)
		}
	}
	return out
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return &manualHandle{sched: s, timer: t}
}

type manualHandle struct {
	sched *manualScheduler
	timer *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()
	pending := !h.timer.stopped && !h.timer.fired
	h.timer.stopped = true
	return pending
}

// fire runs every pending task outside the scheduler lock.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeSink struct {
	mu     sync.Mutex
	events []schema.IconEvent
}

func (s *fakeSink) OnIcon(event schema.IconEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *fakeSink) last(tabID schema.TabID) (schema.IconEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].TabID == tabID {
			return s.events[i], true
		}
	}
	return schema.IconEvent{}, false
}

type fakeWhitelist struct {
	mu      sync.Mutex
	entries []string
}

func (w *fakeWhitelist) Match(url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.entries {
		if strings.Contains(url, entry) {
			return true
		}
	}
	return false
}

func (w *fakeWhitelist) SaveRootURL(_ context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, url)
	return nil
}

func (w *fakeWhitelist) Remove(_ context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if !strings.Contains(url, entry) {
			kept = append(kept, entry)
		}
	}
	w.entries = kept
	return nil
}

type fakeTabInfo struct {
	mu       sync.Mutex
	props    map[string]TabProperties
	previews map[string]string
}

func newFakeTabInfo() *fakeTabInfo {
	return &fakeTabInfo{props: map[string]TabProperties{}, previews: map[string]string{}}
}

func (s *fakeTabInfo) TabInfo(_ context.Context, url string) (TabProperties, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.props[url]
	return props, ok, nil
}

func (s *fakeTabInfo) SaveTabInfo(_ context.Context, props TabProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[props.URL] = props
	return nil
}

func (s *fakeTabInfo) Preview(_ context.Context, url string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preview, ok := s.previews[url]
	return preview, ok, nil
}

func (s *fakeTabInfo) SavePreview(_ context.Context, url, dataURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews[url] = dataURL
	return nil
}

type fakeSession struct {
	mu       sync.Mutex
	saves    int
	recovery bool
	recover  []schema.TabID
}

func (s *fakeSession) SessionID() string { return "session-1" }

func (s *fakeSession) SaveWindows(context.Context, string, []schema.Window) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) IsRecoveryMode() bool { return s.recovery }

func (s *fakeSession) TabRecovered(_ context.Context, tab schema.Tab) {
	s.mu.Lock()
	s.recover = append(s.recover, tab.ID)
	s.mu.Unlock()
}

type fakeHistory struct {
	deleted []string
	added   []string
}

func (h *fakeHistory) DeleteURL(_ context.Context, url string) error {
	h.deleted = append(h.deleted, url)
	return nil
}

func (h *fakeHistory) AddURL(_ context.Context, url string) error {
	h.added = append(h.added, url)
	return nil
}

type fakeHotkeys struct {
	label string
}

func (h *fakeHotkeys) SuspendToggleLabel(context.Context) (string, error) {
	return h.label, nil
}

type harness struct {
	c         *Coordinator
	host      *fakeHost
	settings  *fakeSettings
	agents    *fakeAgents
	queue     *fakeQueue
	sched     *manualScheduler
	sink      *fakeSink
	whitelist *fakeWhitelist
	tabInfo   *fakeTabInfo
	session   *fakeSession
	history   *fakeHistory
	hotkeys   *fakeHotkeys
	now       time.Time
}

func newHarness(t *testing.T, overrides schema.Settings, tabs ...schema.Tab) *harness {
	t.Helper()
	h := &harness{
		host:      newFakeHost(tabs...),
		settings:  newFakeSettings(overrides),
		agents:    newFakeAgents(),
		queue:     &fakeQueue{},
		sched:     &manualScheduler{},
		sink:      &fakeSink{},
		whitelist: &fakeWhitelist{},
		tabInfo:   newFakeTabInfo(),
		session:   &fakeSession{},
		history:   &fakeHistory{},
		hotkeys:   &fakeHotkeys{label: "Ctrl+Shift+S"},
		now:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	c, err := NewCoordinator(schema.CoordinatorConfig{
		ExtensionVersion: "7.1.8",
		InternalBaseURL:  "http://tabnap.test/",
		OptionsURL:       "http://tabnap.test/options.html",
		NoticeURL:        "http://tabnap.test/notice.html",
		LocalThanksURL:   "http://tabnap.test/thanks.html",
	}, CoordinatorDeps{
		Host:      h.host,
		Settings:  h.settings,
		Whitelist: h.whitelist,
		Codec:     fakeCodec{},
		Queue:     h.queue,
		Session:   h.session,
		Agents:    h.agents,
		TabInfo:   h.tabInfo,
		History:   h.history,
		Hotkeys:   h.hotkeys,
		EventSink: h.sink,
		Scheduler: h.sched,
		Now:       func() time.Time { return h.now },
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func pageTab(id schema.TabID, window schema.WindowID, index int, url string) schema.Tab {
	return schema.Tab{
		ID:       id,
		WindowID: window,
		Index:    index,
		URL:      url,
		Title:    fmt.Sprintf("Tab %d", id),
		Status:   schema.LoadStatusComplete,
	}
}
