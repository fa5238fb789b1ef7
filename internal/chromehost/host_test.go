package chromehost

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"

	"pkt.systems/tabnap/agent"
	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/schema"
)

func TestHostCreatedTabAnnouncesWindowFirst(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/page"))

	got := events.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %+v", got)
	}
	if got[0].Type != schema.EventWindowCreated || got[1].Type != schema.EventTabCreated {
		t.Fatalf("unexpected order %s, %s", got[0].Type, got[1].Type)
	}
	if got[1].Tab == nil || got[1].Tab.FavIconURL != "https://a.example/favicon.ico" {
		t.Fatalf("expected favicon on created tab, got %+v", got[1].Tab)
	}
}

func TestHostCompleteRegistersAgentBeforeAnnouncing(t *testing.T) {
	h, events, router := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	events.onEvent = func(ev schema.HostEvent) {
		if ev.Change.Status == schema.LoadStatusComplete && router.Len() != 1 {
			t.Errorf("agent not registered when complete was announced")
		}
	}
	h.process(ctx, signal{kind: sigComplete, target: "t1"})

	last := events.last()
	if last.Type != schema.EventTabUpdated || last.Change.Status != schema.LoadStatusComplete {
		t.Fatalf("expected complete update, got %+v", last)
	}
	info, err := router.Send(ctx, last.TabID, schema.AgentMessage{Action: schema.ActionRequestInfo})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if info.Status != schema.StatusNormal {
		t.Fatalf("expected normal agent, got %s", info.Status)
	}

	count := len(events.all())
	h.process(ctx, signal{kind: sigComplete, target: "t1"})
	if len(events.all()) != count {
		t.Fatalf("expected duplicate load to be ignored")
	}
}

func TestHostSuspendedPageGetsPlaceholder(t *testing.T) {
	h, events, router := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "http://127.0.0.1/suspended.html#uri=https://a.example/"))
	h.process(ctx, signal{kind: sigComplete, target: "t1"})

	info, err := router.Send(ctx, events.last().TabID, schema.AgentMessage{Action: schema.ActionRequestInfo})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if info.Status != schema.StatusSuspended {
		t.Fatalf("expected placeholder status, got %s", info.Status)
	}
}

func TestHostLoadingDropsAgent(t *testing.T) {
	h, events, router := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	h.process(ctx, signal{kind: sigComplete, target: "t1"})
	h.process(ctx, signal{kind: sigLoading, target: "t1"})

	if router.Len() != 0 {
		t.Fatalf("expected agent to be unregistered, got %d", router.Len())
	}
	last := events.last()
	if last.Change.Status != schema.LoadStatusLoading {
		t.Fatalf("expected loading update, got %+v", last)
	}
}

func TestHostDestroyedTabActivatesNeighbour(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	h.process(ctx, createdSignal("t2", "https://b.example/"))
	first, _ := h.reg.tabID("t1")
	second, _ := h.reg.tabID("t2")

	h.process(ctx, signal{kind: sigTargetDestroyed, target: "t1"})
	got := events.all()
	removed, activated := got[len(got)-2], got[len(got)-1]
	if removed.Type != schema.EventTabRemoved || removed.TabID != first {
		t.Fatalf("expected removal of %d, got %+v", first, removed)
	}
	if activated.Type != schema.EventTabActivated || activated.TabID != second {
		t.Fatalf("expected activation of %d, got %+v", second, activated)
	}

	h.process(ctx, signal{kind: sigTargetDestroyed, target: "t2"})
	got = events.all()
	if got[len(got)-2].Type != schema.EventWindowRemoved {
		t.Fatalf("expected window removal, got %+v", got[len(got)-2])
	}
	focus := got[len(got)-1]
	if focus.Type != schema.EventWindowFocusChanged || focus.WindowID != schema.WindowIDNone {
		t.Fatalf("expected focus to leave all windows, got %+v", focus)
	}
}

func TestHostPageFocusActivatesTab(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	h.process(ctx, createdSignal("t2", "https://b.example/"))
	second, _ := h.reg.tabID("t2")

	h.process(ctx, signal{kind: sigPageEvent, target: "t2", payload: `{"type":"focus","visible":true}`})
	last := events.last()
	if last.Type != schema.EventTabActivated || last.TabID != second || last.WindowID != 1 {
		t.Fatalf("expected activation of tab %d, got %+v", second, last)
	}
	count := len(events.all())
	h.process(ctx, signal{kind: sigPageEvent, target: "t2", payload: `{"type":"focus","visible":false}`})
	if len(events.all()) != count {
		t.Fatalf("did not expect events for hidden page")
	}
}

func TestHostMediaEventTogglesAudible(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	h.process(ctx, signal{kind: sigPageEvent, target: "t1", payload: `{"type":"media","playing":true}`})

	last := events.last()
	if last.Change.Audible == nil || !*last.Change.Audible || !last.Tab.Audible {
		t.Fatalf("expected audible change, got %+v", last)
	}
	count := len(events.all())
	h.process(ctx, signal{kind: sigPageEvent, target: "t1", payload: `{"type":"media","playing":true}`})
	if len(events.all()) != count {
		t.Fatalf("did not expect repeated audible event")
	}
}

func TestHostKeyEventReachesAgent(t *testing.T) {
	reports := make(chan schema.AgentReport, 4)
	h, _, router := newTestHost(t, withReporter(func(_ context.Context, report schema.AgentReport) error {
		reports <- report
		return nil
	}))
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	h.process(ctx, signal{kind: sigComplete, target: "t1"})
	tabID, _ := h.reg.tabID("t1")
	if _, err := router.Send(ctx, tabID, schema.AgentMessage{Action: schema.ActionInitTab, IgnoreForms: schema.Bool(true)}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	h.process(ctx, signal{kind: sigPageEvent, target: "t1", payload: `{"type":"key","keyCode":65,"tag":"INPUT","marker":"1"}`})
	select {
	case report := <-reports:
		if report.Action != schema.ReportTabState || report.Status != schema.StatusFormInput {
			t.Fatalf("expected form input report, got %+v", report)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected agent report")
	}
}

func TestHostInfoChangeReportsURLOnly(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	count := len(events.all())

	h.process(ctx, signal{kind: sigTargetChanged, target: "t1", info: &target.Info{TargetID: "t1", Type: "page", URL: "https://a.example/", Title: "New title"}})
	if len(events.all()) != count {
		t.Fatalf("did not expect event for title change")
	}
	tab, _ := h.GetTab(ctx, events.last().TabID)
	if tab.Title != "New title" {
		t.Fatalf("expected title update, got %q", tab.Title)
	}

	h.process(ctx, signal{kind: sigTargetChanged, target: "t1", info: &target.Info{TargetID: "t1", Type: "page", URL: "https://b.example/x"}})
	last := events.last()
	if url, ok := last.Change.URLChanged(); !ok || url != "https://b.example/x" {
		t.Fatalf("expected url change, got %+v", last.Change)
	}
	if last.Tab.FavIconURL != "https://b.example/favicon.ico" {
		t.Fatalf("expected favicon to follow url, got %q", last.Tab.FavIconURL)
	}
}

func TestHostNavigationRecordsHistoryForWebPages(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx := context.Background()
	h.process(ctx, createdSignal("t1", "about:blank"))
	count := len(events.all())

	h.process(ctx, signal{kind: sigNavigated, target: "t1", url: "chrome://settings"})
	if len(events.all()) != count {
		t.Fatalf("did not expect history event for internal page")
	}
	h.process(ctx, signal{kind: sigNavigated, target: "t1", url: "https://a.example/"})
	last := events.last()
	if last.Type != schema.EventHistoryVisited || last.URL != "https://a.example/" {
		t.Fatalf("expected history event, got %+v", last)
	}
}

func TestHostPinnedAndSync(t *testing.T) {
	h, events, _ := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.pump(ctx)
	h.signals.push(createdSignal("t1", "https://a.example/"))
	if err := h.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	tabID, _ := h.reg.tabID("t1")
	if err := h.SetPinned(ctx, tabID, true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}
	if err := h.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	last := events.last()
	if last.Change.Pinned == nil || !*last.Change.Pinned {
		t.Fatalf("expected pinned change, got %+v", last)
	}
	if err := h.SetPinned(ctx, 99, true); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestHostLookups(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	if _, err := h.CurrentWindow(ctx); !errors.Is(err, schema.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	if _, err := h.GetTab(ctx, 1); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	h.process(ctx, createdSignal("t1", "https://a.example/"))
	window, err := h.CurrentWindow(ctx)
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if !window.Focused || len(window.Tabs) != 1 {
		t.Fatalf("unexpected window %+v", window)
	}
	if err := h.NavigateTab(ctx, 42, "https://b.example/"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestFaviconURL(t *testing.T) {
	cases := map[string]string{
		"https://a.example/x?y=1": "https://a.example/favicon.ico",
		"http://b.example:8080/":  "http://b.example:8080/favicon.ico",
		"chrome://settings":       "",
		"about:blank":             "",
	}
	for raw, want := range cases {
		if got := faviconURL(raw); got != want {
			t.Fatalf("faviconURL(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseFlag(t *testing.T) {
	name, value, ok := parseFlag("--proxy-server=socks5://127.0.0.1:1080")
	if !ok || name != "proxy-server" || value != "socks5://127.0.0.1:1080" {
		t.Fatalf("unexpected parse %q %v %v", name, value, ok)
	}
	name, value, ok = parseFlag("mute-audio")
	if !ok || name != "mute-audio" || value != true {
		t.Fatalf("unexpected bare flag %q %v", name, value)
	}
	if _, value, _ = parseFlag("enable-gpu=false"); value != false {
		t.Fatalf("expected boolean false, got %v", value)
	}
	if _, _, ok = parseFlag("  --  "); ok {
		t.Fatalf("expected empty flag to be rejected")
	}
}

type hostOption func(*Options)

func withReporter(fn agent.ReporterFunc) hostOption {
	return func(o *Options) { o.Reporter = fn }
}

func newTestHost(t *testing.T, opts ...hostOption) (*Host, *recordingHandler, *eventbus.Router) {
	t.Helper()
	router := eventbus.NewRouter(nil, time.Second)
	options := Options{
		Router: router,
		Codec:  prefixCodec{prefix: "http://127.0.0.1/suspended.html"},
		Reporter: agent.ReporterFunc(func(context.Context, schema.AgentReport) error {
			return nil
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}
	h, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.connect = func(context.Context, target.ID) *tabConn {
		return &tabConn{page: &fakePage{}}
	}
	events := &recordingHandler{}
	h.SetHandler(events)
	t.Cleanup(h.Close)
	return h, events, router
}

func createdSignal(id target.ID, url string) signal {
	return signal{kind: sigTargetCreated, target: id, info: &target.Info{TargetID: id, Type: "page", URL: url}}
}

type prefixCodec struct {
	prefix string
}

func (c prefixCodec) IsSuspendedURL(url string) bool {
	return strings.HasPrefix(url, c.prefix)
}

type recordingHandler struct {
	mu      sync.Mutex
	events  []schema.HostEvent
	onEvent func(schema.HostEvent)
}

func (r *recordingHandler) HandleEvent(_ context.Context, ev schema.HostEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recordingHandler) all() []schema.HostEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.HostEvent(nil), r.events...)
}

func (r *recordingHandler) last() schema.HostEvent {
	all := r.all()
	if len(all) == 0 {
		return schema.HostEvent{}
	}
	return all[len(all)-1]
}

type fakePage struct{}

func (*fakePage) ScrollPosition(context.Context) (string, error)  { return "0", nil }
func (*fakePage) SetScrollPosition(context.Context, string) error { return nil }
func (*fakePage) ElementCount(context.Context) (int, error)       { return 1, nil }
func (*fakePage) CaptureScreenshot(context.Context, bool) (string, error) {
	return "data:image/png;base64,AA==", nil
}
func (*fakePage) Navigate(context.Context, string) error { return nil }
func (*fakePage) element(marker string) agent.Element    { return nil }
