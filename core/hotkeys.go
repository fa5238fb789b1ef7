package core

import (
	"context"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// HotkeyLabel returns the cached suspend toggle label, resolving it once.
func (c *Coordinator) HotkeyLabel(ctx context.Context) string {
	c.hotkey.mu.Lock()
	if c.hotkey.resolved {
		label := c.hotkey.label
		c.hotkey.mu.Unlock()
		return label
	}
	c.hotkey.mu.Unlock()
	label, _ := c.resetHotkey(ctx)
	return label
}

func (c *Coordinator) resetHotkey(ctx context.Context) (string, bool) {
	label, err := c.hotkeys.SuspendToggleLabel(ctx)
	if err != nil {
		c.log(ctx).Debug("coordinator hotkey lookup failed", "err", err)
	}
	c.hotkey.mu.Lock()
	defer c.hotkey.mu.Unlock()
	changed := !c.hotkey.resolved || c.hotkey.label != label
	c.hotkey.label = label
	c.hotkey.resolved = true
	return label, changed
}

// UpdateHotkey re-reads the hotkey label and refreshes every suspended tab when it changed.
func (c *Coordinator) UpdateHotkey(ctx context.Context) {
	ctx = c.ctx(ctx)
	label, changed := c.resetHotkey(ctx)
	if !changed {
		return
	}
	tabs, err := c.host.QueryTabs(ctx, schema.TabQuery{})
	if err != nil {
		c.log(ctx).Warn("coordinator hotkey refresh query failed", "err", err)
		return
	}
	for _, tab := range tabs {
		if !c.isSuspendedTab(tab) {
			continue
		}
		if _, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRefreshHotkey, Command: label}); err != nil {
			logx.WithTab(ctx, tab.ID).Trace("coordinator hotkey refresh skipped")
		}
	}
}

func (c *Coordinator) armHotkeyTrigger() {
	c.hotkey.mu.Lock()
	c.hotkey.triggerUpdate = true
	c.hotkey.mu.Unlock()
}

func (c *Coordinator) takeHotkeyTrigger() bool {
	c.hotkey.mu.Lock()
	defer c.hotkey.mu.Unlock()
	trigger := c.hotkey.triggerUpdate
	c.hotkey.triggerUpdate = false
	return trigger
}
