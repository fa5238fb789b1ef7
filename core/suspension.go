package core

import (
	"context"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// CheckEligibility reports whether tab may be suspended at forceLevel.
// Level 1 only refuses tabs that cannot be suspended at all, level 2 also
// honours protection settings and the whitelist, level 3 requires the tab
// to classify as normal.
func (c *Coordinator) CheckEligibility(ctx context.Context, tab schema.Tab, forceLevel int) bool {
	if c.isSuspendedTab(tab) || c.isSpecialTab(tab) {
		return false
	}
	if forceLevel >= ForceLevelStandard {
		if c.isProtectedActiveTab(tab) || c.whitelist.Match(tab.URL) ||
			c.isProtectedPinnedTab(tab) || c.isProtectedAudibleTab(tab) {
			return false
		}
	}
	if forceLevel >= ForceLevelIdleTimer {
		if c.Classify(ctx, tab, "") != schema.StatusNormal {
			return false
		}
	}
	return true
}

// ProcessSuspension runs one queued suspension. It re-reads the tab, checks
// eligibility and asks the agent to capture and navigate. An unreachable
// agent falls back to navigating the tab directly.
func (c *Coordinator) ProcessSuspension(ctx context.Context, tabID schema.TabID, forceLevel int) (schema.SuspendOutcome, error) {
	ctx = logx.ContextWithTab(c.ctx(ctx), tabID)
	log := logx.WithTab(ctx, tabID)
	tab, err := c.host.GetTab(ctx, tabID)
	if err != nil {
		log.Debug("coordinator suspension tab lookup failed", "err", err)
		return schema.SuspendSkipped, err
	}
	if !c.CheckEligibility(ctx, tab, forceLevel) {
		log.Debug("coordinator suspension skipped", "force_level", forceLevel)
		return schema.SuspendSkipped, nil
	}

	if tab.Discarded {
		c.queue.ForceSuspend(ctx, tab, c.codec.Encode(tab.URL, tab.Title, "0"))
		return schema.SuspendCompleted, nil
	}
	if c.optionBool(schema.OptionDiscardInPlaceOfSuspend) {
		c.queue.ForceDiscard(ctx, tab)
		return schema.SuspendCompleted, nil
	}

	if err := c.tabInfo.SaveTabInfo(ctx, TabProperties{URL: tab.URL, Title: tab.Title, Favicon: tab.FavIconURL}); err != nil {
		log.Debug("coordinator tab info save failed", "err", err)
	}

	scrollPos := "0"
	info, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRequestInfo})
	if err != nil {
		c.queue.ForceSuspend(ctx, tab, c.codec.Encode(tab.URL, tab.Title, scrollPos))
		return schema.SuspendCompleted, nil
	}
	if info.ScrollPos != "" {
		scrollPos = info.ScrollPos
	}
	suspendedURL := c.codec.Encode(tab.URL, tab.Title, scrollPos)

	options := c.settings.Snapshot()
	screenCapture := options.String(schema.OptionScreenCapture)
	msg := schema.AgentMessage{
		Action:       schema.ActionConfirmTabSuspend,
		SuspendedURL: suspendedURL,
	}
	if screenCapture != "" && screenCapture != schema.ScreenCaptureOff {
		msg.ScreenCapture = screenCapture
		msg.ForceScreenCapture = options.Bool(schema.OptionScreenCaptureForce)
	}
	if _, err := c.send(ctx, tab.ID, msg); err != nil {
		c.queue.ForceSuspend(ctx, tab, suspendedURL)
		return schema.SuspendCompleted, nil
	}
	log.Debug("coordinator suspension dispatched", "force_level", forceLevel, "capture", msg.ScreenCapture)
	return schema.SuspendDispatched, nil
}
