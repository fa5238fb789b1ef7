package chromehost

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/agent"
	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// DefaultCreateTimeout bounds waiting for a freshly created tab to be discovered.
const DefaultCreateTimeout = 10 * time.Second

// EventHandler receives translated host events in browser order.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev schema.HostEvent)
}

// Codec recognises suspended placeholder urls.
type Codec interface {
	IsSuspendedURL(url string) bool
}

// Options configures a Host.
type Options struct {
	Browser       BrowserOptions
	Router        *eventbus.Router
	Codec         Codec
	Reporter      agent.Reporter
	AgentOptions  agent.Options
	CreateTimeout time.Duration
	Logger        pslog.Logger
}

// tabPage is the page surface agents and the host use.
type tabPage interface {
	agent.Page
	element(marker string) agent.Element
}

// tabConn is the live attachment to one page target.
type tabConn struct {
	page   tabPage
	cancel context.CancelFunc

	mu         sync.Mutex
	agent      *agent.Agent
	handler    eventbus.Handler
	unregister func()
}

func (c *tabConn) dropAgent() {
	c.mu.Lock()
	a, unregister := c.agent, c.unregister
	c.agent, c.handler, c.unregister = nil, nil, nil
	c.mu.Unlock()
	if a != nil {
		a.Close()
	}
	if unregister != nil {
		unregister()
	}
}

func (c *tabConn) hasHandler() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// Host drives a Chromium browser over the DevTools protocol and exposes it
// as the tab platform of the coordinator.
type Host struct {
	opts     Options
	log      pslog.Logger
	reg      *registry
	signals  *signalQueue
	router   *eventbus.Router
	codec    Codec
	reporter agent.Reporter
	connect  func(ctx context.Context, id target.ID) *tabConn

	mu         sync.Mutex
	handler    EventHandler
	conns      map[target.ID]*tabConn
	browserCtx context.Context
	stop       func()
	started    bool
}

var _ core.Host = (*Host)(nil)

// New constructs a Host. Start attaches it to a browser.
func New(opts Options) (*Host, error) {
	if opts.Router == nil {
		return nil, errors.New("chrome host agent router is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("chrome host url codec is required")
	}
	if opts.Reporter == nil {
		return nil, errors.New("chrome host agent reporter is required")
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = DefaultCreateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if opts.AgentOptions.Logger == nil {
		opts.AgentOptions.Logger = logger
	}
	h := &Host{
		opts:     opts,
		log:      logger,
		reg:      newRegistry(),
		signals:  newSignalQueue(),
		router:   opts.Router,
		codec:    opts.Codec,
		reporter: opts.Reporter,
		conns:    make(map[target.ID]*tabConn),
	}
	h.connect = h.connectTarget
	return h, nil
}

// SetHandler installs the event handler. Call before Start.
func (h *Host) SetHandler(handler EventHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Start connects to the browser, discovers existing tabs and begins
// dispatching events. It returns once the existing tabs are registered.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New("chrome host already started")
	}
	h.started = true
	h.mu.Unlock()

	log := h.log
	allocCtx, cancelAlloc, err := newAllocator(context.WithoutCancel(ctx), h.opts.Browser)
	if err != nil {
		return err
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	chromedp.ListenBrowser(browserCtx, h.onBrowserEvent)
	if _, err := chromedp.Targets(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("connect browser: %w", err)
	}
	pumpCtx, cancelPump := context.WithCancel(pslog.ContextWithLogger(context.Background(), log))
	h.mu.Lock()
	h.browserCtx = browserCtx
	h.stop = func() {
		cancelPump()
		if h.opts.Browser.Mode == ModeRemote {
			cancelBrowser()
		} else {
			closeCtx, cancel := context.WithTimeout(browserCtx, 5*time.Second)
			if err := chromedp.Cancel(closeCtx); err != nil {
				log.Debug("chrome host browser close failed", "err", err)
			}
			cancel()
		}
		cancelAlloc()
	}
	h.mu.Unlock()
	go h.pump(pumpCtx)

	if err := target.SetDiscoverTargets(true).Do(h.browserExec(ctx)); err != nil {
		h.Close()
		return fmt.Errorf("discover targets: %w", err)
	}
	log.Info("chrome host started", "mode", h.opts.Browser.Mode, "remote_url", h.opts.Browser.RemoteURL)
	return h.Sync(ctx)
}

// Sync waits until every signal queued before the call has been processed.
func (h *Host) Sync(ctx context.Context) error {
	done := make(chan struct{})
	h.signals.push(signal{kind: sigBarrier, done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches agents and releases the browser. A launched browser is
// shut down; a remote browser keeps its tabs.
func (h *Host) Close() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	conns := h.conns
	h.conns = make(map[target.ID]*tabConn)
	h.mu.Unlock()
	for _, conn := range conns {
		conn.dropAgent()
		if h.opts.Browser.Mode != ModeRemote && conn.cancel != nil {
			conn.cancel()
		}
	}
	if stop != nil {
		stop()
		h.log.Info("chrome host stopped")
	}
}

func (h *Host) browserExec(ctx context.Context) context.Context {
	h.mu.Lock()
	browserCtx := h.browserCtx
	h.mu.Unlock()
	if browserCtx == nil {
		return ctx
	}
	return cdp.WithExecutor(ctx, chromedp.FromContext(browserCtx).Browser)
}

func (h *Host) onBrowserEvent(ev any) {
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		if ev.TargetInfo != nil && ev.TargetInfo.Type == "page" {
			h.signals.push(signal{kind: sigTargetCreated, target: ev.TargetInfo.TargetID, info: ev.TargetInfo})
		}
	case *target.EventTargetInfoChanged:
		if ev.TargetInfo != nil && ev.TargetInfo.Type == "page" {
			h.signals.push(signal{kind: sigTargetChanged, target: ev.TargetInfo.TargetID, info: ev.TargetInfo})
		}
	case *target.EventTargetDestroyed:
		h.signals.push(signal{kind: sigTargetDestroyed, target: ev.TargetID})
	}
}

func (h *Host) onTargetEvent(id target.ID) func(ev any) {
	mainFrame := cdp.FrameID(id)
	return func(ev any) {
		switch ev := ev.(type) {
		case *page.EventFrameStartedLoading:
			if ev.FrameID == mainFrame {
				h.signals.push(signal{kind: sigLoading, target: id})
			}
		case *page.EventLoadEventFired:
			h.signals.push(signal{kind: sigComplete, target: id})
		case *page.EventFrameNavigated:
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				h.signals.push(signal{kind: sigNavigated, target: id, url: ev.Frame.URL + ev.Frame.URLFragment})
			}
		case *page.EventNavigatedWithinDocument:
			if ev.FrameID == mainFrame {
				h.signals.push(signal{kind: sigNavigated, target: id, url: ev.URL})
			}
		case *runtime.EventBindingCalled:
			if ev.Name == bindingName {
				h.signals.push(signal{kind: sigPageEvent, target: id, payload: ev.Payload})
			}
		}
	}
}

// connectTarget attaches a chromedp context to the target. Tab contexts are
// detached from the browser context so shutting down never closes user tabs.
func (h *Host) connectTarget(ctx context.Context, id target.ID) *tabConn {
	h.mu.Lock()
	browserCtx := h.browserCtx
	h.mu.Unlock()
	tabCtx, cancel := chromedp.NewContext(context.WithoutCancel(browserCtx), chromedp.WithTargetID(id))
	chromedp.ListenTarget(tabCtx, h.onTargetEvent(id))
	conn := &tabConn{page: &cdpPage{ctx: tabCtx}, cancel: cancel}
	log := pslog.Ctx(ctx).With("target", string(id))
	go func() {
		var state string
		err := chromedp.Run(tabCtx,
			runtime.AddBinding(bindingName),
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(pageScript).Do(ctx)
				return err
			}),
			chromedp.Evaluate(pageScript, nil),
			chromedp.Evaluate(`document.readyState`, &state),
		)
		if err != nil {
			log.Debug("chrome host attach failed", "err", err)
			return
		}
		if state == "complete" {
			h.signals.push(signal{kind: sigComplete, target: id})
		}
	}()
	return conn
}

func (h *Host) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.signals.ready:
			for _, sig := range h.signals.drain() {
				h.process(ctx, sig)
			}
		}
	}
}

func (h *Host) process(ctx context.Context, sig signal) {
	switch sig.kind {
	case sigTargetCreated:
		h.handleCreated(ctx, sig.info)
	case sigTargetChanged:
		h.handleChanged(ctx, sig.info)
	case sigTargetDestroyed:
		h.handleDestroyed(ctx, sig.target)
	case sigLoading:
		h.handleLoading(ctx, sig.target)
	case sigComplete:
		h.handleComplete(ctx, sig.target)
	case sigNavigated:
		h.handleNavigated(ctx, sig.target, sig.url)
	case sigPageEvent:
		h.handlePageEvent(ctx, sig.target, sig.payload)
	case sigDiscarded:
		h.handleFlag(ctx, sig.target, func(tab *schema.Tab, change *schema.ChangeInfo) {
			if tab.Discarded != sig.flag {
				tab.Discarded = sig.flag
				change.Discarded = schema.Bool(sig.flag)
			}
		})
	case sigPinned:
		h.handleFlag(ctx, sig.target, func(tab *schema.Tab, change *schema.ChangeInfo) {
			if tab.Pinned != sig.flag {
				tab.Pinned = sig.flag
				change.Pinned = schema.Bool(sig.flag)
			}
		})
	case sigActivate:
		h.activate(ctx, sig.tabID)
	case sigBarrier:
		close(sig.done)
	}
}

func (h *Host) dispatch(ctx context.Context, ev schema.HostEvent) {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	if handler == nil {
		return
	}
	handler.HandleEvent(ctx, ev)
}

func (h *Host) windowFor(ctx context.Context, id target.ID) schema.WindowID {
	h.mu.Lock()
	started := h.browserCtx != nil
	h.mu.Unlock()
	if !started {
		return 1
	}
	windowID, _, err := browser.GetWindowForTarget().WithTargetID(id).Do(h.browserExec(ctx))
	if err != nil {
		pslog.Ctx(ctx).Debug("chrome host window lookup failed", "target", string(id), "err", err)
		if focused := h.reg.focusedWindow(); focused.Valid() {
			return focused
		}
		return 1
	}
	return schema.WindowID(windowID)
}

func (h *Host) handleCreated(ctx context.Context, info *target.Info) {
	windowID := h.windowFor(ctx, info.TargetID)
	tab, newWindow, existed := h.reg.add(info.TargetID, windowID, info.URL, info.Title)
	if existed {
		return
	}
	tab, _ = h.reg.update(info.TargetID, func(t *schema.Tab) { t.FavIconURL = faviconURL(t.URL) })
	conn := h.connect(ctx, info.TargetID)
	h.mu.Lock()
	h.conns[info.TargetID] = conn
	h.mu.Unlock()

	logx.WithTab(ctx, tab.ID).Debug("chrome host tab created", "target", string(info.TargetID), "window", windowID)
	if newWindow {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventWindowCreated, WindowID: windowID})
	}
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabCreated, TabID: tab.ID, WindowID: windowID, Tab: &tab})
}

func (h *Host) handleChanged(ctx context.Context, info *target.Info) {
	var change schema.ChangeInfo
	tab, ok := h.reg.update(info.TargetID, func(t *schema.Tab) {
		t.Title = info.Title
		if t.URL != info.URL {
			t.URL = info.URL
			t.FavIconURL = faviconURL(info.URL)
			change.URL = schema.String(info.URL)
		}
	})
	if !ok || change.URL == nil {
		return
	}
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: tab.ID, WindowID: tab.WindowID, Tab: &tab, Change: change})
}

func (h *Host) handleDestroyed(ctx context.Context, id target.ID) {
	h.mu.Lock()
	conn := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if conn != nil {
		conn.dropAgent()
		if conn.cancel != nil {
			go conn.cancel()
		}
	}
	before := h.reg.focusedWindow()
	rem, ok := h.reg.remove(id)
	if !ok {
		return
	}
	tab := rem.tab
	logx.WithTab(ctx, tab.ID).Debug("chrome host tab removed", "target", string(id))
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabRemoved, TabID: tab.ID, WindowID: tab.WindowID})
	if rem.activated.Valid() {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabActivated, TabID: rem.activated, WindowID: tab.WindowID})
	}
	if rem.windowRemoved {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventWindowRemoved, WindowID: tab.WindowID})
	}
	if after := h.reg.focusedWindow(); after != before {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventWindowFocusChanged, WindowID: after})
	}
}

func (h *Host) handleLoading(ctx context.Context, id target.ID) {
	if conn := h.conn(id); conn != nil {
		conn.dropAgent()
	}
	var change schema.ChangeInfo
	tab, ok := h.reg.update(id, func(t *schema.Tab) {
		if t.Status != schema.LoadStatusLoading {
			t.Status = schema.LoadStatusLoading
			change.Status = schema.LoadStatusLoading
		}
		if t.Discarded {
			t.Discarded = false
			change.Discarded = schema.Bool(false)
		}
	})
	if !ok || !change.Relevant() {
		return
	}
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: tab.ID, WindowID: tab.WindowID, Tab: &tab, Change: change})
}

// handleComplete installs the page agent before announcing the load so the
// coordinator can message it right away.
func (h *Host) handleComplete(ctx context.Context, id target.ID) {
	conn := h.conn(id)
	current, ok := h.reg.tabID(id)
	if !ok {
		return
	}
	tab, _ := h.reg.tab(current)
	if tab.Status == schema.LoadStatusComplete && conn != nil && conn.hasHandler() {
		return
	}
	if conn != nil {
		h.installAgent(ctx, conn, tab)
	}
	tab, ok = h.reg.update(id, func(t *schema.Tab) { t.Status = schema.LoadStatusComplete })
	if !ok {
		return
	}
	h.dispatch(ctx, schema.HostEvent{
		Type:     schema.EventTabUpdated,
		TabID:    tab.ID,
		WindowID: tab.WindowID,
		Tab:      &tab,
		Change:   schema.ChangeInfo{Status: schema.LoadStatusComplete},
	})
}

func (h *Host) installAgent(ctx context.Context, conn *tabConn, tab schema.Tab) {
	conn.dropAgent()
	log := logx.WithTab(ctx, tab.ID)
	var (
		handler eventbus.Handler
		a       *agent.Agent
	)
	if h.codec.IsSuspendedURL(tab.URL) {
		placeholder, err := agent.NewPlaceholder(tab.ID, tab.URL, conn.page, h.reporter)
		if err != nil {
			log.Warn("chrome host placeholder failed", "err", err)
			return
		}
		handler = placeholder
	} else {
		created, err := agent.New(tab.ID, conn.page, h.reporter, h.opts.AgentOptions)
		if err != nil {
			log.Warn("chrome host agent failed", "err", err)
			return
		}
		a, handler = created, created
	}
	unregister := h.router.Register(tab.ID, handler)
	conn.mu.Lock()
	conn.agent, conn.handler, conn.unregister = a, handler, unregister
	conn.mu.Unlock()
	log.Trace("chrome host agent installed", "placeholder", a == nil)
}

func (h *Host) handleNavigated(ctx context.Context, id target.ID, rawURL string) {
	if _, ok := h.reg.tabID(id); !ok {
		return
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return
	}
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventHistoryVisited, URL: rawURL})
}

func (h *Host) handlePageEvent(ctx context.Context, id target.ID, payload string) {
	tabID, ok := h.reg.tabID(id)
	if !ok {
		return
	}
	ev, err := parsePageEvent(payload)
	if err != nil {
		logx.WithTab(ctx, tabID).Debug("chrome host page event rejected", "err", err)
		return
	}
	switch ev.Type {
	case "key":
		conn := h.conn(id)
		if conn == nil {
			return
		}
		conn.mu.Lock()
		a := conn.agent
		conn.mu.Unlock()
		if a == nil {
			return
		}
		key := agent.KeyEvent{
			KeyCode:         ev.KeyCode,
			TagName:         ev.Tag,
			ContentEditable: ev.Editable,
			Target:          conn.page.element(ev.Marker),
		}
		go a.KeyDown(logx.ContextWithTab(ctx, tabID), key)
	case "media":
		h.handleFlag(ctx, id, func(tab *schema.Tab, change *schema.ChangeInfo) {
			if tab.Audible != ev.Playing {
				tab.Audible = ev.Playing
				change.Audible = schema.Bool(ev.Playing)
			}
		})
	case "focus":
		if ev.Visible {
			h.activate(ctx, tabID)
		}
	}
}

func (h *Host) handleFlag(ctx context.Context, id target.ID, apply func(tab *schema.Tab, change *schema.ChangeInfo)) {
	var change schema.ChangeInfo
	tab, ok := h.reg.update(id, func(t *schema.Tab) { apply(t, &change) })
	if !ok || !change.Relevant() {
		return
	}
	h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: tab.ID, WindowID: tab.WindowID, Tab: &tab, Change: change})
}

func (h *Host) activate(ctx context.Context, tabID schema.TabID) {
	act, ok := h.reg.activate(tabID)
	if !ok {
		return
	}
	if act.windowChanged {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventWindowFocusChanged, WindowID: act.windowID})
	}
	if act.tabChanged {
		h.dispatch(ctx, schema.HostEvent{Type: schema.EventTabActivated, TabID: tabID, WindowID: act.windowID})
	}
}

func (h *Host) conn(id target.ID) *tabConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[id]
}

func (h *Host) connFor(tabID schema.TabID) (target.ID, *tabConn, error) {
	id, ok := h.reg.targetOf(tabID)
	if !ok {
		return "", nil, fmt.Errorf("%w: %d", schema.ErrTabNotFound, tabID)
	}
	conn := h.conn(id)
	if conn == nil {
		return "", nil, fmt.Errorf("%w: %d not attached", schema.ErrTabNotFound, tabID)
	}
	return id, conn, nil
}

// GetTab returns a snapshot of the tab.
func (h *Host) GetTab(_ context.Context, id schema.TabID) (schema.Tab, error) {
	tab, ok := h.reg.tab(id)
	if !ok {
		return schema.Tab{}, fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	return tab, nil
}

// QueryTabs returns the tabs matching query.
func (h *Host) QueryTabs(_ context.Context, query schema.TabQuery) ([]schema.Tab, error) {
	return h.reg.query(query), nil
}

// CurrentWindow returns the focused window.
func (h *Host) CurrentWindow(ctx context.Context) (schema.Window, error) {
	focused := h.reg.focusedWindow()
	if !focused.Valid() {
		return schema.Window{}, fmt.Errorf("%w: no focused window", schema.ErrWindowNotFound)
	}
	return h.GetWindow(ctx, focused)
}

// GetWindow returns the window with its tabs.
func (h *Host) GetWindow(_ context.Context, id schema.WindowID) (schema.Window, error) {
	window, ok := h.reg.window(id)
	if !ok {
		return schema.Window{}, fmt.Errorf("%w: %d", schema.ErrWindowNotFound, id)
	}
	return window, nil
}

// Windows returns every window with its tabs.
func (h *Host) Windows(context.Context) ([]schema.Window, error) {
	return h.reg.allWindows(), nil
}

// CreateTab opens a tab and waits until it is registered. The browser picks
// the window; the requested index and opener are applied to the layout.
func (h *Host) CreateTab(ctx context.Context, opts core.CreateTabOptions) (schema.Tab, error) {
	id, err := target.CreateTarget(opts.URL).WithBackground(!opts.Active).Do(h.browserExec(ctx))
	if err != nil {
		return schema.Tab{}, fmt.Errorf("create tab: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, h.opts.CreateTimeout)
	defer cancel()
	tabID, err := h.reg.wait(waitCtx, id)
	if err != nil {
		return schema.Tab{}, fmt.Errorf("wait for tab %s: %w", id, err)
	}
	h.reg.place(tabID, opts.OpenerTabID, opts.Index)
	if opts.Active {
		if err := h.ActivateTab(ctx, tabID); err != nil {
			return schema.Tab{}, err
		}
	}
	return h.GetTab(ctx, tabID)
}

// NavigateTab loads url in the tab, thawing it first when discarded.
func (h *Host) NavigateTab(ctx context.Context, id schema.TabID, url string) error {
	targetID, conn, err := h.connFor(id)
	if err != nil {
		return err
	}
	if err := h.thaw(ctx, targetID, conn, id); err != nil {
		return err
	}
	return conn.page.Navigate(ctx, url)
}

// ReloadTab reloads the tab, thawing it first when discarded.
func (h *Host) ReloadTab(ctx context.Context, id schema.TabID) error {
	targetID, conn, err := h.connFor(id)
	if err != nil {
		return err
	}
	if err := h.thaw(ctx, targetID, conn, id); err != nil {
		return err
	}
	cp, ok := conn.page.(*cdpPage)
	if !ok {
		return errors.New("tab page does not support reload")
	}
	return cp.run(ctx, page.Reload())
}

// DiscardTab freezes the page so it stops using cpu while keeping its url.
func (h *Host) DiscardTab(ctx context.Context, id schema.TabID) error {
	targetID, conn, err := h.connFor(id)
	if err != nil {
		return err
	}
	if cp, ok := conn.page.(*cdpPage); ok {
		if err := cp.run(ctx, page.SetWebLifecycleState(page.SetWebLifecycleStateStateFrozen)); err != nil {
			return fmt.Errorf("freeze tab: %w", err)
		}
	}
	h.signals.push(signal{kind: sigDiscarded, target: targetID, flag: true})
	return nil
}

func (h *Host) thaw(ctx context.Context, targetID target.ID, conn *tabConn, id schema.TabID) error {
	tab, ok := h.reg.tab(id)
	if !ok || !tab.Discarded {
		return nil
	}
	if cp, ok := conn.page.(*cdpPage); ok {
		if err := cp.run(ctx, page.SetWebLifecycleState(page.SetWebLifecycleStateStateActive)); err != nil {
			return fmt.Errorf("thaw tab: %w", err)
		}
	}
	h.signals.push(signal{kind: sigDiscarded, target: targetID, flag: false})
	return nil
}

// ActivateTab brings the tab to front and focuses its window.
func (h *Host) ActivateTab(ctx context.Context, id schema.TabID) error {
	targetID, ok := h.reg.targetOf(id)
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	if err := target.ActivateTarget(targetID).Do(h.browserExec(ctx)); err != nil {
		return fmt.Errorf("activate tab: %w", err)
	}
	if tab, ok := h.reg.tab(id); ok && tab.Discarded {
		if err := h.ReloadTab(ctx, id); err != nil {
			return err
		}
	}
	h.signals.push(signal{kind: sigActivate, tabID: id})
	return nil
}

// CloseTab closes the tab.
func (h *Host) CloseTab(ctx context.Context, id schema.TabID) error {
	targetID, ok := h.reg.targetOf(id)
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	if err := target.CloseTarget(targetID).Do(h.browserExec(ctx)); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// SetPinned marks the tab pinned. Pinning is tracked by the host only.
func (h *Host) SetPinned(_ context.Context, id schema.TabID, pinned bool) error {
	targetID, ok := h.reg.targetOf(id)
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	h.signals.push(signal{kind: sigPinned, target: targetID, flag: pinned})
	return nil
}

func faviconURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/favicon.ico"
}
