package core

import (
	"context"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// queueSessionSave restarts the session snapshot debounce.
func (c *Coordinator) queueSessionSave() {
	c.sessionTimer.Reset(c.cfg.SessionSaveDelay, func() {
		c.SaveWindowHistory(c.baseCtx)
	})
}

// SaveWindowHistory snapshots every window into session history when any tab exists.
func (c *Coordinator) SaveWindowHistory(ctx context.Context) {
	log := c.log(ctx)
	windows, err := c.host.Windows(ctx)
	if err != nil {
		log.Warn("coordinator session windows lookup failed", "err", err)
		return
	}
	tabsExist := false
	for _, window := range windows {
		if len(window.Tabs) > 0 {
			tabsExist = true
			break
		}
	}
	if !tabsExist {
		return
	}
	sessionID := c.session.SessionID()
	if err := c.session.SaveWindows(ctx, sessionID, windows); err != nil {
		log.Warn("coordinator session save failed", "session", sessionID, "err", err)
		return
	}
	log.Trace("coordinator session saved", "session", sessionID, "windows", len(windows))
}

func (c *Coordinator) handleWindowCreated(ctx context.Context, windowID schema.WindowID) {
	ctx = c.ctx(ctx)
	logx.WithWindow(c.log(ctx), windowID).Debug("coordinator window created")
	c.queueSessionSave()

	if _, ok := c.RequestNotice(); ok && c.cfg.NoticeURL != "" {
		if _, err := c.host.CreateTab(ctx, CreateTabOptions{URL: c.cfg.NoticeURL, WindowID: windowID, Index: -1, Active: true}); err != nil {
			c.log(ctx).Warn("coordinator notice tab failed", "err", err)
		}
	}
}

// handleHistoryVisited rewrites suspended placeholder entries to the original url.
func (c *Coordinator) handleHistoryVisited(ctx context.Context, url string) {
	if !c.codec.IsSuspendedURL(url) {
		return
	}
	ctx = c.ctx(ctx)
	log := c.log(ctx)
	original := c.codec.OriginalURL(url)
	if err := c.history.DeleteURL(ctx, url); err != nil {
		log.Warn("coordinator history delete failed", "err", err)
	}
	if original == "" {
		return
	}
	if err := c.history.AddURL(ctx, original); err != nil {
		log.Warn("coordinator history add failed", "err", err)
	}
}
