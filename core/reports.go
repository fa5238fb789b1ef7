package core

import (
	"context"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// HandleAgentReport processes a message sent by a tab agent or placeholder.
func (c *Coordinator) HandleAgentReport(ctx context.Context, report schema.AgentReport) {
	ctx = logx.ContextWithTab(c.ctx(ctx), report.TabID)
	log := logx.WithTab(ctx, report.TabID)
	log.Trace("coordinator agent report", "action", report.Action)

	if report.Action == schema.ReportUnsuspendOnReload {
		if report.URL == "" {
			c.flags.Set(report.TabID, FlagUnsuspendOnReloadURL, nil)
			return
		}
		c.flags.Set(report.TabID, FlagUnsuspendOnReloadURL, report.URL)
		return
	}

	tab, err := c.host.GetTab(ctx, report.TabID)
	if err != nil {
		log.Debug("coordinator report tab lookup failed", "action", report.Action, "err", err)
		return
	}

	switch report.Action {
	case schema.ReportTabState:
		if c.focus.IsFocused(tab) {
			c.refreshIcon(ctx, tab, report.Status)
		}
	case schema.ReportSuspendTab:
		c.queue.Queue(ctx, tab, ForceLevelIdleTimer)
	case schema.ReportSavePreviewData:
		if report.PreviewURL != "" {
			if err := c.tabInfo.SavePreview(ctx, tab.URL, report.PreviewURL); err != nil {
				log.Warn("coordinator preview save failed", "err", err)
			}
		} else {
			log.Debug("coordinator preview failed", "reason", report.ErrorMsg)
		}
		c.queue.Execute(ctx, tab)
	default:
		log.Debug("coordinator agent report ignored", "action", report.Action)
	}
}
