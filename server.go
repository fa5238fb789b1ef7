package tabnap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/agent"
	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/httpapi"
	"pkt.systems/tabnap/internal/chromehost"
	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/internal/notice"
	"pkt.systems/tabnap/internal/persist"
	"pkt.systems/tabnap/internal/session"
	"pkt.systems/tabnap/internal/settings"
	"pkt.systems/tabnap/internal/suspendqueue"
	"pkt.systems/tabnap/internal/suspendurl"
	"pkt.systems/tabnap/internal/sysstate"
	"pkt.systems/tabnap/internal/tabstore"
	"pkt.systems/tabnap/internal/version"
	"pkt.systems/tabnap/internal/whitelist"
	"pkt.systems/tabnap/schema"
)

// Server composes the chrome host, the coordinator and the HTTP API.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Coordinator       schema.CoordinatorConfig
	Browser           chromehost.BrowserOptions
	HTTP              httpapi.Config
	Queue             suspendqueue.Options
	Settings          SettingsConfig
	StorePath         string
	AgentReplyTimeout time.Duration
	PreviewRetention  time.Duration
	Notice            NoticeConfig
	System            sysstate.Options
}

// SettingsConfig locates user option overrides.
type SettingsConfig struct {
	File        string
	Watch       bool
	HotkeyLabel string
}

// NoticeConfig configures the remote notice checker.
type NoticeConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// ServerDeps captures optional collaborators.
type ServerDeps struct {
	Logger pslog.Logger
	// EventSink receives icon events in addition to the UI event bus.
	EventSink core.EventSink
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP    bool
	enableNotice  bool
	enableSysstat bool
}

// WithHTTP enables the HTTP API and placeholder page.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithNotice enables the notice checker when a notice url is configured.
func WithNotice() ServerOption {
	return func(o *serverOptions) { o.enableNotice = true }
}

// WithSystemState enables charging and connectivity polling.
func WithSystemState() ServerOption {
	return func(o *serverOptions) { o.enableSysstat = true }
}

const (
	defaultAgentReplyTimeout = 5 * time.Second
	defaultPreviewRetention  = 30 * 24 * time.Hour
	maintenanceInterval      = 24 * time.Hour
)

// New constructs a tabnap server. Nothing touches the browser until Start.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return nil, errors.New("store path is required")
	}
	if strings.TrimSpace(cfg.Settings.File) == "" {
		return nil, errors.New("settings file is required")
	}
	if cfg.AgentReplyTimeout <= 0 {
		cfg.AgentReplyTimeout = defaultAgentReplyTimeout
	}
	if cfg.PreviewRetention <= 0 {
		cfg.PreviewRetention = defaultPreviewRetention
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	baseURL := resolveBaseURL(cfg.HTTP)
	cfg.HTTP.BaseURL = baseURL
	cfg.Coordinator = withInternalURLs(cfg.Coordinator, baseURL)

	s := &compositeServer{cfg: cfg, options: options, logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.closeAll()
		}
	}()

	store, err := tabstore.Open(cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.addCloser("tabstore", store.Close)

	settingsStore, err := persist.NewStoreWithLogger(cfg.Settings.File, logger)
	if err != nil {
		return nil, err
	}
	settingsMgr, err := settings.New(settingsStore, settings.Options{
		HotkeyLabel: cfg.Settings.HotkeyLabel,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.settings = settingsMgr

	codec := suspendurl.New(baseURL)
	s.codec = codec
	router := eventbus.NewRouter(logger, cfg.AgentReplyTimeout)
	bus := eventbus.New(logger)
	s.bus = bus

	recorder, err := session.New(store, session.Options{})
	if err != nil {
		return nil, err
	}
	s.session = recorder

	var coord *core.Coordinator
	host, err := chromehost.New(chromehost.Options{
		Browser: cfg.Browser,
		Router:  router,
		Codec:   codec,
		Reporter: agent.ReporterFunc(func(ctx context.Context, report schema.AgentReport) error {
			coord.HandleAgentReport(ctx, report)
			return nil
		}),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	s.host = host
	s.addCloser("chrome host", func() error { host.Close(); return nil })

	queueOpts := cfg.Queue
	queueOpts.Logger = logger
	queue, err := suspendqueue.New(host, queueOpts)
	if err != nil {
		return nil, err
	}
	s.queue = queue
	s.addCloser("suspend queue", func() error { queue.Close(); return nil })

	sinks := []core.EventSink{bus}
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	var sink core.EventSink = bus
	if len(sinks) > 1 {
		sink = eventFanout{sinks: sinks}
	}

	coord, err = core.NewCoordinator(cfg.Coordinator, core.CoordinatorDeps{
		Host:      host,
		Settings:  settingsMgr,
		Whitelist: whitelist.New(settingsMgr),
		Codec:     codec,
		Queue:     queue,
		Session:   recorder,
		Agents:    router,
		TabInfo:   store,
		History:   store,
		Hotkeys:   settingsMgr,
		EventSink: sink,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	s.coord = coord
	s.addCloser("coordinator", func() error { coord.Close(); return nil })
	queue.SetProcessor(coord)
	host.SetHandler(hostEvents{next: coord, bus: bus})
	settingsMgr.OnChange(coord.ApplySettingsChange)

	if options.enableHTTP {
		httpSrv, err := httpapi.NewServer(cfg.HTTP, httpapi.Deps{
			Coordinator: coord,
			Host:        host,
			Settings:    settingsMgr,
			Previews:    store,
			Queue:       queue,
			Events:      bus,
		})
		if err != nil {
			return nil, err
		}
		s.httpSrv = httpSrv
	}
	if options.enableNotice && strings.TrimSpace(cfg.Notice.URL) != "" {
		checker, err := notice.New(coord, notice.Options{
			URL:       cfg.Notice.URL,
			Interval:  cfg.Notice.Interval,
			Timeout:   cfg.Notice.Timeout,
			OnPending: bus.OnNotice,
		})
		if err != nil {
			return nil, err
		}
		s.notice = checker
	}
	if options.enableSysstat {
		monitor, err := sysstate.New(coord, cfg.System)
		if err != nil {
			return nil, err
		}
		s.monitor = monitor
	}
	ok = true
	return s, nil
}

// resolveBaseURL returns the external url of the HTTP API.
func resolveBaseURL(cfg httpapi.Config) string {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base != "" {
		return base
	}
	addr := strings.TrimSpace(cfg.Addr)
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func withInternalURLs(cfg schema.CoordinatorConfig, baseURL string) schema.CoordinatorConfig {
	if cfg.InternalBaseURL == "" {
		cfg.InternalBaseURL = baseURL
	}
	if cfg.NoticeURL == "" {
		cfg.NoticeURL = baseURL + "/api/notice"
	}
	if cfg.ExtensionVersion == "" {
		cfg.ExtensionVersion = version.Release()
	}
	return cfg
}

type closer struct {
	name string
	fn   func() error
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	logger  pslog.Logger

	store    *tabstore.Store
	settings *settings.Manager
	bus      *eventbus.Bus
	codec    *suspendurl.Codec
	session  *session.Recorder
	host     *chromehost.Host
	queue    *suspendqueue.Queue
	coord    *core.Coordinator
	httpSrv  *httpapi.Server
	notice   *notice.Checker
	monitor  *sysstate.Monitor
	closers  []closer

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	closed  bool
}

func (s *compositeServer) addCloser(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// closeAll releases components in reverse construction order.
func (s *compositeServer) closeAll() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	log := s.logger
	s.mu.Unlock()
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			log.Warn("server close failed", "component", closers[i].name, "err", err)
		}
	}
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 3)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"notice", s.notice != nil,
		"sysstate", s.monitor != nil,
		"browser_mode", s.cfg.Browser.Mode,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
	)
	if s.httpSrv != nil {
		s.httpSrv.SetBaseContext(s.ctx)
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if err := s.host.Start(s.ctx); err != nil {
		log.Error("chrome host start failed", "err", err)
		s.cancel()
		return err
	}
	s.coord.Init(s.ctx)
	if n, err := s.session.Recover(s.ctx, s.host, s.codec); err != nil {
		log.Warn("session recovery failed", "err", err)
	} else if n > 0 {
		log.Info("session recovery started", "tabs", n)
	}

	if s.cfg.Settings.Watch {
		go func() {
			if err := s.settings.Watch(s.ctx); err != nil {
				log.Warn("settings watch failed", "err", err)
			}
		}()
	}
	if s.notice != nil {
		go s.notice.Run(s.ctx)
	}
	if s.monitor != nil {
		go s.monitor.Run(s.ctx)
	}
	go s.maintain(s.ctx)
	return nil
}

// maintain prunes stale previews once at start and then daily.
func (s *compositeServer) maintain(ctx context.Context) {
	prune := func() {
		n, err := s.store.PrunePreviews(ctx, time.Now().Add(-s.cfg.PreviewRetention))
		if err != nil {
			if ctx.Err() == nil {
				pslog.Ctx(ctx).Warn("tabstore prune failed", "err", err)
			}
			return
		}
		if n > 0 {
			pslog.Ctx(ctx).Info("tabstore prune ok", "previews", n)
		}
	}
	prune()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		s.closeAll()
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.closeAll()
		close(done)
	}()
	if ctx == nil {
		<-done
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
