package core

import (
	"context"
	"fmt"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// ExecuteCommand runs a named command.
func (c *Coordinator) ExecuteCommand(ctx context.Context, name schema.CommandName) error {
	ctx = c.ctx(ctx)
	c.log(ctx).Info("coordinator command", "command", name)
	switch name {
	case schema.CommandToggleSuspend:
		return c.ToggleSuspendedStateOfActiveTab(ctx)
	case schema.CommandPauseTab:
		return c.TemporarilyWhitelistActiveTab(ctx)
	case schema.CommandUndoPauseTab:
		return c.UndoTemporarilyWhitelistActiveTab(ctx)
	case schema.CommandUnsuspendTab:
		return c.UnsuspendActiveTab(ctx)
	case schema.CommandSuspendActiveWindow:
		return c.SuspendAllTabsInWindow(ctx)
	case schema.CommandUnsuspendActiveWindow:
		return c.UnsuspendAllTabsInWindow(ctx)
	case schema.CommandSuspendAllWindows:
		return c.SuspendAllTabsInAllWindows(ctx)
	case schema.CommandUnsuspendAllWindows:
		return c.UnsuspendAllTabsInAllWindows(ctx)
	case schema.CommandSuspendSelected:
		return c.SuspendSelectedTabs(ctx)
	case schema.CommandUnsuspendSelected:
		return c.UnsuspendSelectedTabs(ctx)
	case schema.CommandWhitelistTab:
		return c.WhitelistActiveTab(ctx)
	case schema.CommandUnwhitelistTab:
		return c.UnwhitelistActiveTab(ctx)
	default:
		return fmt.Errorf("%w: %s", schema.ErrUnknownCommand, name)
	}
}

// ToggleSuspendedStateOfActiveTab unsuspends a suspended active tab, or queues it otherwise.
func (c *Coordinator) ToggleSuspendedStateOfActiveTab(ctx context.Context) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	if c.isSuspendedTab(tab) {
		c.UnsuspendTab(ctx, tab)
		return nil
	}
	c.queue.Queue(ctx, tab, ForceLevelAlways)
	return nil
}

// SuspendActiveTab queues the active tab regardless of protection settings.
func (c *Coordinator) SuspendActiveTab(ctx context.Context) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	c.queue.Queue(ctx, tab, ForceLevelAlways)
	return nil
}

// UnsuspendActiveTab unsuspends the active tab when it is suspended.
func (c *Coordinator) UnsuspendActiveTab(ctx context.Context) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	if !c.isSuspendedTab(tab) {
		return nil
	}
	c.UnsuspendTab(ctx, tab)
	return nil
}

// TemporarilyWhitelistActiveTab pauses suspension for the active tab.
func (c *Coordinator) TemporarilyWhitelistActiveTab(ctx context.Context) error {
	return c.sendToActiveTab(ctx, schema.ActionTempWhitelist)
}

// UndoTemporarilyWhitelistActiveTab resumes suspension for the active tab.
func (c *Coordinator) UndoTemporarilyWhitelistActiveTab(ctx context.Context) error {
	return c.sendToActiveTab(ctx, schema.ActionUndoTempWhitelist)
}

func (c *Coordinator) sendToActiveTab(ctx context.Context, action schema.AgentAction) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	info, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: action})
	known := schema.Status("")
	if err == nil {
		known = info.Status
	}
	c.refreshIcon(ctx, tab, known)
	return nil
}

// WhitelistActiveTab adds the root of the active tab url to the whitelist.
func (c *Coordinator) WhitelistActiveTab(ctx context.Context) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	url := tab.URL
	if c.isSuspendedTab(tab) {
		url = c.codec.OriginalURL(tab.URL)
	}
	if err := c.whitelist.SaveRootURL(ctx, url); err != nil {
		return err
	}
	if c.isSuspendedTab(tab) {
		c.UnsuspendTab(ctx, tab)
		return nil
	}
	c.refreshIcon(ctx, tab, "")
	return nil
}

// UnwhitelistActiveTab removes whitelist entries matching the active tab url.
func (c *Coordinator) UnwhitelistActiveTab(ctx context.Context) error {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return err
	}
	if err := c.whitelist.Remove(ctx, tab.URL); err != nil {
		return err
	}
	c.refreshIcon(ctx, tab, "")
	return nil
}

// SuspendAllTabsInWindow queues every tab of the current window.
func (c *Coordinator) SuspendAllTabsInWindow(ctx context.Context) error {
	window, err := c.activeWindow(ctx)
	if err != nil {
		return err
	}
	for _, tab := range window.Tabs {
		c.queue.Queue(ctx, tab, ForceLevelStandard)
	}
	return nil
}

// UnsuspendAllTabsInWindow unsuspends the current window and restarts timers on its live tabs.
func (c *Coordinator) UnsuspendAllTabsInWindow(ctx context.Context) error {
	window, err := c.activeWindow(ctx)
	if err != nil {
		return err
	}
	for _, tab := range window.Tabs {
		c.unsuspendOrRestart(ctx, tab)
	}
	return nil
}

// SuspendAllTabsInAllWindows queues every tab.
func (c *Coordinator) SuspendAllTabsInAllWindows(ctx context.Context) error {
	tabs, err := c.host.QueryTabs(ctx, schema.TabQuery{})
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		c.queue.Queue(ctx, tab, ForceLevelAlways)
	}
	return nil
}

// UnsuspendAllTabsInAllWindows unsuspends every tab. Tabs of the current
// window go last because unsuspending steals window focus.
func (c *Coordinator) UnsuspendAllTabsInAllWindows(ctx context.Context) error {
	current, err := c.host.CurrentWindow(ctx)
	if err != nil {
		return err
	}
	tabs, err := c.host.QueryTabs(ctx, schema.TabQuery{})
	if err != nil {
		return err
	}
	var deferred []schema.Tab
	for _, tab := range tabs {
		if c.isSuspendedTab(tab) && tab.WindowID == current.ID {
			deferred = append(deferred, tab)
			continue
		}
		c.unsuspendOrRestart(ctx, tab)
	}
	for _, tab := range deferred {
		c.UnsuspendTab(ctx, tab)
	}
	return nil
}

func (c *Coordinator) unsuspendOrRestart(ctx context.Context, tab schema.Tab) {
	switch {
	case c.isSuspendedTab(tab):
		c.UnsuspendTab(ctx, tab)
	case c.isNormalTab(tab) && !tab.Discarded:
		_, _ = c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRestartTimer})
	}
}

// SuspendSelectedTabs queues the highlighted tabs of the stationary window.
func (c *Coordinator) SuspendSelectedTabs(ctx context.Context) error {
	tabs, err := c.selectedTabs(ctx)
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		c.queue.Queue(ctx, tab, ForceLevelAlways)
	}
	return nil
}

// UnsuspendSelectedTabs unsuspends the highlighted tabs of the stationary window.
func (c *Coordinator) UnsuspendSelectedTabs(ctx context.Context) error {
	tabs, err := c.selectedTabs(ctx)
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		if c.isSuspendedTab(tab) {
			c.UnsuspendTab(ctx, tab)
		}
	}
	return nil
}

func (c *Coordinator) selectedTabs(ctx context.Context) ([]schema.Tab, error) {
	windowID := c.focus.StationaryWindow()
	query := schema.TabQuery{Highlighted: schema.Bool(true)}
	if windowID.Valid() {
		query.WindowID = &windowID
	} else {
		query.CurrentWindow = true
	}
	return c.host.QueryTabs(ctx, query)
}

func (c *Coordinator) activeWindow(ctx context.Context) (schema.Window, error) {
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return schema.Window{}, err
	}
	return c.host.GetWindow(ctx, tab.WindowID)
}

// OpenLinkInSuspendedTab opens url in a background tab next to parent and
// marks it for suspension as soon as it loads.
func (c *Coordinator) OpenLinkInSuspendedTab(ctx context.Context, parent schema.Tab, url string) (schema.Tab, error) {
	ctx = c.ctx(ctx)
	window, err := c.host.GetWindow(ctx, parent.WindowID)
	if err != nil {
		return schema.Tab{}, err
	}
	index := parent.Index + 1
	for index < len(window.Tabs) && window.Tabs[index].OpenerTabID == parent.ID {
		index++
	}
	tab, err := c.host.CreateTab(ctx, CreateTabOptions{
		URL:         url,
		WindowID:    parent.WindowID,
		Index:       index,
		OpenerTabID: parent.ID,
		Active:      false,
	})
	if err != nil {
		return schema.Tab{}, err
	}
	c.flags.Set(tab.ID, FlagSpawnedTabCreated, c.now())
	logx.WithTab(ctx, tab.ID).Debug("coordinator spawned tab", "parent", parent.ID, "index", index)
	return tab, nil
}

// ActiveTabStatus classifies the active tab. Without an active tab it is unknown.
func (c *Coordinator) ActiveTabStatus(ctx context.Context) schema.Status {
	ctx = c.ctx(ctx)
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return schema.StatusUnknown
	}
	return c.Classify(ctx, tab, "")
}

// ActiveWindowID returns the last focused window.
func (c *Coordinator) ActiveWindowID() schema.WindowID {
	return c.focus.FocusedWindow()
}

// DebugInfo reports the status and idle deadline of a tab.
func (c *Coordinator) DebugInfo(ctx context.Context, tabID schema.TabID) schema.DebugInfo {
	ctx = c.ctx(ctx)
	info := schema.DebugInfo{Status: schema.StatusUnknown, TimerUp: "-"}
	tab, err := c.host.GetTab(ctx, tabID)
	if err != nil {
		logx.WithTab(ctx, tabID).Debug("coordinator debug tab lookup failed", "err", err)
		return info
	}
	info.WindowID = tab.WindowID
	info.TabID = tab.ID
	if c.isNormalTab(tab) && !tab.Discarded {
		agentInfo, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRequestInfo})
		if err != nil {
			return info
		}
		info.TimerUp = agentInfo.TimerUpLabel()
		info.Status = c.Classify(ctx, tab, agentInfo.Status)
		return info
	}
	info.Status = c.Classify(ctx, tab, "")
	return info
}
