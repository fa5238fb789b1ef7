package core

import (
	"context"
	"errors"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

func (c *Coordinator) handleWindowFocusChanged(ctx context.Context, windowID schema.WindowID) {
	if !windowID.Valid() {
		return
	}
	ctx = c.ctx(ctx)
	log := logx.WithWindow(c.log(ctx), windowID)
	log.Debug("coordinator window focused")
	c.focus.FocusWindow(windowID)

	tabs, err := c.host.QueryTabs(ctx, schema.TabQuery{Active: schema.Bool(true)})
	if err != nil {
		log.Warn("coordinator active tab query failed", "err", err)
		return
	}
	if len(tabs) == 0 {
		return
	}
	var (
		newTab           schema.Tab
		found            bool
		lastStationaryID schema.TabID
	)
	for _, tab := range tabs {
		if tab.WindowID == windowID {
			newTab = tab
			found = true
		}
		if c.focus.IsStationary(tab) {
			lastStationaryID = tab.ID
		}
	}
	if !found {
		log.Error("coordinator active tab missing for window")
		return
	}

	c.refreshIcon(ctx, newTab, "")

	// Users key through intermediate windows; only the one they settle on counts.
	timerCtx := c.detached(ctx)
	c.windowFocusTimer.Reset(c.cfg.FocusDelay, func() {
		c.replaceMu.Lock()
		c.focus.PromoteWindow(newTab.WindowID)
		tabID := c.focus.Resolve(newTab.ID)
		prevID := c.focus.Resolve(lastStationaryID)
		c.replaceMu.Unlock()
		tab, ok := c.refetchReplaced(timerCtx, newTab, tabID)
		if !ok {
			return
		}
		c.handleNewTabFocus(timerCtx, tabID, prevID, tab)
	})
}

func (c *Coordinator) handleTabFocusChanged(ctx context.Context, tabID schema.TabID, windowID schema.WindowID) {
	ctx = logx.ContextWithTab(c.ctx(ctx), tabID)
	log := logx.WithTab(ctx, tabID)
	log.Debug("coordinator tab focused", "window", windowID)
	c.focus.FocusTab(windowID, tabID)

	if c.takeHotkeyTrigger() {
		c.UpdateHotkey(ctx)
	}

	tab, err := c.host.GetTab(ctx, tabID)
	if err != nil {
		log.Warn("coordinator focused tab lookup failed", "err", err)
		return
	}

	c.refreshIcon(ctx, tab, "")

	// Users key through intermediate tabs; only the one they settle on counts.
	timerCtx := c.detached(ctx)
	c.tabFocusTimer.Reset(c.cfg.FocusDelay, func() {
		c.replaceMu.Lock()
		currentID := c.focus.Resolve(tabID)
		lastStationaryID := c.focus.PromoteTab(windowID, currentID)
		c.replaceMu.Unlock()
		current, ok := c.refetchReplaced(timerCtx, tab, currentID)
		if !ok {
			return
		}
		c.handleNewTabFocus(timerCtx, currentID, lastStationaryID, current)
	})

	if tab.URL == c.cfg.ShortcutsURL {
		c.armHotkeyTrigger()
	}
}

// refetchReplaced returns tab unchanged unless its id was replaced while a
// focus timer was pending, in which case the replacement is looked up.
func (c *Coordinator) refetchReplaced(ctx context.Context, tab schema.Tab, currentID schema.TabID) (schema.Tab, bool) {
	if currentID == tab.ID {
		return tab, true
	}
	replacement, err := c.host.GetTab(ctx, currentID)
	if err != nil {
		logx.WithTab(ctx, currentID).Debug("coordinator replaced tab lookup failed", "old_tab", tab.ID, "err", err)
		return schema.Tab{}, false
	}
	return replacement, true
}

// handleNewTabFocus runs once a tab has held focus for the focus delay.
func (c *Coordinator) handleNewTabFocus(ctx context.Context, tabID, lastStationaryID schema.TabID, newTab schema.Tab) {
	log := logx.WithTab(ctx, tabID)
	log.Debug("coordinator new tab focus handled", "previous", lastStationaryID)

	if _, ok := c.flags.Time(tabID, FlagSpawnedTabCreated); ok {
		c.flags.Set(tabID, FlagSpawnedTabCreated, false)
	}

	switch {
	case c.isSuspendedTab(newTab):
		if c.optionBool(schema.OptionUnsuspendOnFocus) {
			if c.IsOnline() {
				c.UnsuspendTab(ctx, newTab)
			} else {
				_, _ = c.send(ctx, newTab.ID, schema.AgentMessage{Action: schema.ActionNoConnectivity})
			}
		}
	case c.isNormalTab(newTab):
		if newTab.Status == schema.LoadStatusComplete && !newTab.Discarded {
			_, _ = c.send(ctx, tabID, schema.AgentMessage{Action: schema.ActionCancelTimer})
		}
		c.queue.Unqueue(ctx, newTab)
	case c.isOptionsTab(newTab):
		_, _ = c.send(ctx, newTab.ID, schema.AgentMessage{Action: schema.ActionReloadOptions})
	}

	if !lastStationaryID.Valid() || lastStationaryID == tabID {
		return
	}
	lastTab, err := c.host.GetTab(ctx, lastStationaryID)
	if err != nil {
		if !errors.Is(err, schema.ErrTabNotFound) {
			log.Debug("coordinator previous tab lookup failed", "previous", lastStationaryID, "err", err)
		}
		return
	}
	// The previous tab may still be active when focus moved to another window.
	if c.isNormalTab(lastTab) && !c.isProtectedActiveTab(lastTab) && !lastTab.Discarded {
		_, _ = c.send(ctx, lastTab.ID, schema.AgentMessage{Action: schema.ActionRestartTimer})
	}
	if c.isSuspendedTab(lastTab) {
		if c.optionBool(schema.OptionDiscardAfterSuspend) && !c.flags.Bool(lastStationaryID, FlagDiscardOnLoad) {
			c.queue.ForceDiscard(ctx, lastTab)
		}
	}
}
