package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

const (
	// MaxCaptureElements is the element count at which capture is skipped unless forced.
	MaxCaptureElements = 10000
	// CaptureTimeout bounds a regular preview capture.
	CaptureTimeout = 30 * time.Second
	// ForcedCaptureTimeout bounds a forced preview capture.
	ForcedCaptureTimeout = 5 * time.Minute
	// MaxJitter is the upper bound of the random delay added to long timers.
	MaxJitter = time.Minute
)

// Timer is a cancellable scheduled task.
type Timer interface {
	Stop() bool
}

// Options tunes an Agent. Zero values use real time and randomness.
type Options struct {
	AfterFunc func(d time.Duration, f func()) Timer
	Now       func() time.Time
	// Jitter returns a value in [0, 1).
	Jitter func() float64
	Logger pslog.Logger
}

// Agent owns the idle timer, input tracking and capture handshake of one page.
type Agent struct {
	tabID    schema.TabID
	page     Page
	reporter Reporter

	afterFunc func(d time.Duration, f func()) Timer
	now       func() time.Time
	jitter    func() float64
	baseCtx   context.Context

	mu            sync.Mutex
	timer         Timer
	timerGen      uint64
	suspendAt     time.Time
	suspendDelay  time.Duration
	trackForms    bool
	inputState    bool
	tempWhitelist bool
	edited        []Element
	suspending    bool
	closed        bool
}

// New constructs an Agent for tabID.
func New(tabID schema.TabID, page Page, reporter Reporter, opts Options) (*Agent, error) {
	if page == nil {
		return nil, errors.New("agent page is required")
	}
	if reporter == nil {
		return nil, errors.New("agent reporter is required")
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	baseCtx := pslog.ContextWithLogger(context.Background(), logger)
	return &Agent{
		tabID:     tabID,
		page:      page,
		reporter:  reporter,
		afterFunc: opts.AfterFunc,
		now:       opts.Now,
		jitter:    opts.Jitter,
		baseCtx:   logx.ContextWithTab(baseCtx, tabID),
	}, nil
}

// TabID returns the tab the agent runs in.
func (a *Agent) TabID() schema.TabID {
	return a.tabID
}

// Handle processes one coordinator message and returns the agent state.
func (a *Agent) Handle(ctx context.Context, msg schema.AgentMessage) (schema.TabInfo, error) {
	if ctx == nil {
		ctx = a.baseCtx
	}
	log := logx.WithTab(ctx, a.tabID)
	log.Trace("agent message", "action", msg.Action)
	switch msg.Action {
	case schema.ActionInitTab:
		a.init(ctx, msg)
	case schema.ActionResetPreferences:
		a.resetPreferences(msg)
	case schema.ActionRequestInfo:
	case schema.ActionCancelTimer:
		a.mu.Lock()
		a.stopTimerLocked()
		a.mu.Unlock()
	case schema.ActionRestartTimer:
		a.mu.Lock()
		a.armLocked(a.suspendDelay)
		a.mu.Unlock()
	case schema.ActionTempWhitelist:
		a.mu.Lock()
		a.tempWhitelist = true
		a.mu.Unlock()
	case schema.ActionUndoTempWhitelist:
		a.mu.Lock()
		a.inputState = false
		a.tempWhitelist = false
		a.edited = nil
		a.mu.Unlock()
	case schema.ActionConfirmTabSuspend:
		if msg.SuspendedURL == "" {
			return a.Info(ctx), fmt.Errorf("%w: empty suspended url", schema.ErrInvalidSuspendedURL)
		}
		a.mu.Lock()
		busy := a.suspending
		a.suspending = true
		a.stopTimerLocked()
		a.mu.Unlock()
		if !busy {
			go a.suspend(a.detached(ctx), msg)
		}
	default:
		return a.Info(ctx), fmt.Errorf("%w: %s", schema.ErrUnknownCommand, msg.Action)
	}
	return a.Info(ctx), nil
}

// Info returns the current status, scroll offset and timer deadline.
func (a *Agent) Info(ctx context.Context) schema.TabInfo {
	a.mu.Lock()
	info := schema.TabInfo{Status: a.statusLocked(), TimerUp: a.suspendAt}
	a.mu.Unlock()
	if pos, err := a.page.ScrollPosition(ctx); err == nil {
		info.ScrollPos = pos
	}
	return info
}

func (a *Agent) statusLocked() schema.Status {
	switch {
	case a.inputState:
		return schema.StatusFormInput
	case a.tempWhitelist:
		return schema.StatusTempWhitelist
	default:
		return schema.StatusNormal
	}
}

func (a *Agent) init(ctx context.Context, msg schema.AgentMessage) {
	a.mu.Lock()
	if msg.SuspendTime != nil {
		a.suspendDelay = parseSuspendTime(*msg.SuspendTime)
		a.armLocked(a.suspendDelay)
	}
	if msg.IgnoreForms != nil {
		a.trackForms = *msg.IgnoreForms
	}
	if msg.TempWhitelist {
		a.tempWhitelist = true
	}
	a.mu.Unlock()

	if msg.ScrollPos != "" && msg.ScrollPos != "0" {
		if err := a.page.SetScrollPosition(ctx, msg.ScrollPos); err != nil {
			logx.WithTab(ctx, a.tabID).Debug("agent scroll restore failed", "err", err)
		}
	}
}

func (a *Agent) resetPreferences(msg schema.AgentMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if msg.SuspendTime != nil {
		a.suspendDelay = parseSuspendTime(*msg.SuspendTime)
		a.armLocked(a.suspendDelay)
	}
	if msg.IgnoreForms != nil {
		a.trackForms = *msg.IgnoreForms
		a.inputState = a.inputState && a.trackForms
		if !a.inputState {
			a.edited = nil
		}
	}
}

// parseSuspendTime converts a delay in minutes. Zero, negative and
// malformed values disable the timer.
func parseSuspendTime(value string) time.Duration {
	minutes, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes * float64(time.Minute))
}

// armLocked replaces the idle timer. A zero delay leaves the timer stopped.
func (a *Agent) armLocked(delay time.Duration) {
	a.stopTimerLocked()
	if delay <= 0 || a.closed {
		return
	}
	// Tabs opened together would otherwise all expire in the same instant.
	if delay > MaxJitter {
		delay += time.Duration(a.jitter() * float64(MaxJitter))
	}
	a.timerGen++
	gen := a.timerGen
	a.suspendAt = a.now().Add(delay)
	a.timer = a.afterFunc(delay, func() { a.expire(gen) })
}

func (a *Agent) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerGen++
	a.suspendAt = time.Time{}
}

func (a *Agent) expire(gen uint64) {
	ctx := a.baseCtx
	a.mu.Lock()
	if gen != a.timerGen || a.closed {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	checkInputs := a.inputState
	edited := append([]Element(nil), a.edited...)
	a.mu.Unlock()

	stateChanged := false
	if checkInputs {
		var dirty []Element
		for _, el := range edited {
			if el.Attached(ctx) && el.Value(ctx) != "" {
				dirty = append(dirty, el)
			}
		}
		a.mu.Lock()
		if a.inputState {
			a.edited = dirty
			if len(dirty) == 0 {
				a.inputState = false
				stateChanged = true
			}
		}
		a.mu.Unlock()
	}
	if stateChanged {
		a.reportState(ctx)
	}

	a.mu.Lock()
	request := !a.inputState && !a.tempWhitelist
	a.mu.Unlock()
	log := logx.WithTab(ctx, a.tabID)
	if !request {
		log.Debug("agent idle timer expired while held", "inputs", checkInputs)
		return
	}
	log.Debug("agent idle timer expired")
	if err := a.reporter.Report(ctx, schema.AgentReport{Action: schema.ReportSuspendTab, TabID: a.tabID}); err != nil {
		log.Warn("agent suspend request failed", "err", err)
	}
}

// KeyDown tracks printable key presses in editable controls.
func (a *Agent) KeyDown(ctx context.Context, ev KeyEvent) {
	if ctx == nil {
		ctx = a.baseCtx
	}
	if ev.KeyCode < 32 || ev.KeyCode > 126 || ev.TagName == "" {
		return
	}
	switch strings.ToUpper(ev.TagName) {
	case "INPUT", "TEXTAREA", "FORM":
	default:
		if !ev.ContentEditable {
			return
		}
	}
	a.mu.Lock()
	if !a.trackForms || a.inputState || a.tempWhitelist {
		a.mu.Unlock()
		return
	}
	a.inputState = true
	if ev.Target != nil {
		a.edited = append(a.edited, ev.Target)
	}
	a.mu.Unlock()
	logx.WithTab(ctx, a.tabID).Debug("agent form input detected", "tag", ev.TagName)
	a.reportState(ctx)
}

func (a *Agent) reportState(ctx context.Context) {
	info := a.Info(ctx)
	report := schema.AgentReport{
		Action:    schema.ReportTabState,
		TabID:     a.tabID,
		Status:    info.Status,
		ScrollPos: info.ScrollPos,
	}
	if err := a.reporter.Report(ctx, report); err != nil {
		logx.WithTab(ctx, a.tabID).Debug("agent state report failed", "err", err)
	}
}

// suspend captures an optional preview and navigates to the placeholder.
func (a *Agent) suspend(ctx context.Context, msg schema.AgentMessage) {
	log := logx.WithTab(ctx, a.tabID)
	defer func() {
		a.mu.Lock()
		a.suspending = false
		a.mu.Unlock()
	}()
	if msg.ScreenCapture != "" && msg.ScreenCapture != schema.ScreenCaptureOff {
		report := schema.AgentReport{Action: schema.ReportSavePreviewData, TabID: a.tabID}
		started := a.now()
		preview, err := a.capture(ctx, msg.ScreenCapture, msg.ForceScreenCapture)
		if err != nil {
			report.ErrorMsg = err.Error()
			log.Debug("agent preview capture failed", "err", err)
		} else {
			report.PreviewURL = preview
			report.Elapsed = a.now().Sub(started).Seconds()
		}
		if err := a.reporter.Report(ctx, report); err != nil {
			log.Warn("agent preview report failed", "err", err)
		}
	}
	if err := a.page.Navigate(ctx, msg.SuspendedURL); err != nil {
		log.Warn("agent navigation to placeholder failed", "err", err)
		return
	}
	log.Debug("agent navigated to placeholder")
}

type captureResult struct {
	dataURL string
	err     error
}

// capture renders the preview within the capture timeout. A page that does
// not honour cancellation is abandoned when the deadline passes.
func (a *Agent) capture(ctx context.Context, mode string, force bool) (string, error) {
	if !force {
		count, err := a.page.ElementCount(ctx)
		if err != nil {
			return "", fmt.Errorf("count elements: %w", err)
		}
		if count >= MaxCaptureElements {
			return "", schema.ErrCaptureSkipped
		}
	}
	timeout := CaptureTimeout
	if force {
		timeout = ForcedCaptureTimeout
	}
	captureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan captureResult, 1)
	go func() {
		dataURL, err := a.page.CaptureScreenshot(captureCtx, mode == schema.ScreenCaptureFullPage)
		done <- captureResult{dataURL: dataURL, err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: %dms timeout reached", schema.ErrCaptureTimeout, timeout.Milliseconds())
			}
			return "", res.err
		}
		if res.dataURL == "" || res.dataURL == "data:," {
			return "", errors.New("failed to generate data url")
		}
		return res.dataURL, nil
	case <-captureCtx.Done():
		return "", fmt.Errorf("%w: %dms timeout reached", schema.ErrCaptureTimeout, timeout.Milliseconds())
	}
}

func (a *Agent) detached(ctx context.Context) context.Context {
	if ctx == nil {
		return a.baseCtx
	}
	out := pslog.ContextWithLogger(context.Background(), pslog.Ctx(ctx))
	return logx.CopyContextFields(out, ctx)
}

// Close stops the idle timer. Messages after Close are still answered.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	a.closed = true
}
