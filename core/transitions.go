package core

import (
	"context"
	"html"
	"strings"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// MinPreviewBytes is the smallest stored preview considered a real capture.
const MinPreviewBytes = 10000

func (c *Coordinator) handleTabUpdated(ctx context.Context, tabID schema.TabID, change schema.ChangeInfo, snapshot *schema.Tab) {
	if !change.Relevant() {
		return
	}
	ctx = logx.ContextWithTab(c.ctx(ctx), tabID)
	log := logx.WithTab(ctx, tabID)

	var tab schema.Tab
	if snapshot != nil {
		tab = *snapshot
	} else {
		fresh, err := c.host.GetTab(ctx, tabID)
		if err != nil {
			log.Debug("coordinator updated tab lookup failed", "err", err)
			return
		}
		tab = fresh
	}
	log.Debug("coordinator tab updated", "url", tab.URL, "status", change.Status)

	if url, ok := change.URLChanged(); ok {
		if url == c.cfg.ThanksURL {
			c.handleThanksPage(ctx, tab)
			return
		}
		c.queueSessionSave()
	}

	unsuspendOnReloadURL, _ := c.flags.Take(tab.ID, FlagUnsuspendOnReloadURL)
	target, _ := unsuspendOnReloadURL.(string)
	switch {
	case c.isSuspendedTab(tab):
		c.handleSuspendedTabChanged(ctx, tab, change, target)
	case c.isNormalTab(tab):
		c.handleUnsuspendedTabChanged(ctx, tab, change)
	}
}

func (c *Coordinator) handleThanksPage(ctx context.Context, tab schema.Tab) {
	if !c.optionBool(schema.OptionNoNag) {
		if err := c.settings.SetOption(ctx, schema.OptionNoNag, true); err != nil {
			logx.WithTab(ctx, tab.ID).Warn("coordinator hide nag save failed", "err", err)
		}
	}
	if c.cfg.LocalThanksURL == "" {
		return
	}
	if err := c.host.NavigateTab(ctx, tab.ID, c.cfg.LocalThanksURL); err != nil {
		logx.WithTab(ctx, tab.ID).Warn("coordinator thanks redirect failed", "err", err)
	}
}

func (c *Coordinator) handleUnsuspendedTabChanged(ctx context.Context, tab schema.Tab, change schema.ChangeInfo) {
	statusChanged := false

	if change.Discarded != nil && *change.Discarded {
		if c.optionBool(schema.OptionSuspendInPlaceOfDiscard) && !c.optionBool(schema.OptionDiscardInPlaceOfSuspend) {
			suspendedURL := c.codec.Encode(tab.URL, tab.Title, "0")
			c.queue.ForceSuspend(ctx, tab, suspendedURL)
			return
		}
	}

	if change.Audible != nil {
		// Audio finishing starts a fresh idle period.
		if !*change.Audible && c.optionBool(schema.OptionIgnoreAudio) {
			_, _ = c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRestartTimer})
		}
		statusChanged = true
	}
	if change.Pinned != nil {
		if !*change.Pinned && c.optionBool(schema.OptionIgnorePinned) {
			_, _ = c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionRestartTimer})
		}
		statusChanged = true
	}

	if change.Status == schema.LoadStatusComplete {
		if created, ok := c.flags.Time(tab.ID, FlagSpawnedTabCreated); ok && c.now().Sub(created) < c.cfg.SpawnedTabWindow {
			c.queue.Queue(ctx, tab, ForceLevelAlways)
			return
		}
		c.InitialiseUnsuspendedTab(ctx, tab)
		c.flags.Clear(tab.ID)
		statusChanged = true
	}

	if statusChanged && c.focus.IsFocused(tab) {
		c.refreshIcon(ctx, tab, "")
	}
}

// InitialiseUnsuspendedTab pushes the idle timer and form policy to the agent.
func (c *Coordinator) InitialiseUnsuspendedTab(ctx context.Context, tab schema.Tab) (schema.TabInfo, error) {
	ignoreForms := c.optionBool(schema.OptionIgnoreForms)
	suspendTime := c.optionString(schema.OptionSuspendTime)
	if c.isProtectedActiveTab(tab) {
		suspendTime = schema.SuspendTimeNever
	}
	return c.send(ctx, tab.ID, schema.AgentMessage{
		Action:        schema.ActionInitTab,
		IgnoreForms:   &ignoreForms,
		TempWhitelist: c.flags.Bool(tab.ID, FlagWhitelistOnReload),
		ScrollPos:     c.flags.String(tab.ID, FlagScrollPos),
		SuspendTime:   &suspendTime,
	})
}

func (c *Coordinator) handleSuspendedTabChanged(ctx context.Context, tab schema.Tab, change schema.ChangeInfo, unsuspendOnReloadURL string) {
	switch change.Status {
	case schema.LoadStatusLoading:
		// A reload of this exact url means the user wants the live page back.
		if unsuspendOnReloadURL != "" && unsuspendOnReloadURL == tab.URL {
			c.UnsuspendTab(ctx, tab)
		}
		if c.optionBool(schema.OptionDiscardAfterSuspend) {
			c.flags.Set(tab.ID, FlagDiscardOnLoad, true)
		}
	case schema.LoadStatusComplete:
		if err := c.InitialiseSuspendedTab(ctx, tab); err != nil {
			logx.WithTab(ctx, tab.ID).Debug("coordinator suspended tab init failed", "err", err)
		}
		discardOnLoad := c.flags.Bool(tab.ID, FlagDiscardOnLoad)
		c.flags.Clear(tab.ID)
		c.queue.MarkSuspended(ctx, tab)

		if c.focus.IsFocused(tab) {
			c.setIconStatus(ctx, tab.ID, schema.StatusSuspended)
		}
		if c.session.IsRecoveryMode() {
			c.session.TabRecovered(ctx, tab)
		}
		if c.optionBool(schema.OptionDiscardAfterSuspend) && !tab.Active && discardOnLoad {
			c.queue.ForceDiscard(ctx, tab)
		}
	}
}

// BuildSuspendedPayload assembles the placeholder display payload for a suspended tab.
func (c *Coordinator) BuildSuspendedPayload(ctx context.Context, tab schema.Tab) schema.SuspendedTabPayload {
	log := logx.WithTab(ctx, tab.ID)
	suspendedURL := tab.URL
	originalURL := c.codec.OriginalURL(suspendedURL)

	props, ok, err := c.tabInfo.TabInfo(ctx, originalURL)
	if err != nil {
		log.Debug("coordinator tab info lookup failed", "err", err)
	}
	favicon := "chrome://favicon/" + originalURL
	title := c.codec.Title(suspendedURL)
	if ok {
		if props.Favicon != "" {
			favicon = props.Favicon
		}
		if props.Title != "" {
			title = props.Title
		}
	}
	if strings.Contains(title, "<") {
		title = html.EscapeString(title)
	}

	previewURI := ""
	preview, ok, err := c.tabInfo.Preview(ctx, originalURL)
	if err != nil {
		log.Debug("coordinator preview lookup failed", "err", err)
	}
	if ok && acceptPreview(preview) {
		previewURI = preview
	}

	options := c.settings.Snapshot()
	return schema.SuspendedTabPayload{
		TabID:                    tab.ID,
		RequestUnsuspendOnReload: true,
		URL:                      originalURL,
		ScrollPosition:           c.codec.ScrollPosition(suspendedURL),
		Favicon:                  favicon,
		Title:                    title,
		Whitelisted:              c.whitelist.Match(originalURL),
		Theme:                    options.String(schema.OptionTheme),
		HideNag:                  options.Bool(schema.OptionNoNag),
		PreviewMode:              options.String(schema.OptionScreenCapture),
		PreviewURI:               previewURI,
		Command:                  c.HotkeyLabel(ctx),
	}
}

// acceptPreview filters empty, placeholder and undersized captures.
func acceptPreview(dataURL string) bool {
	return dataURL != "" && dataURL != "data:," && len(dataURL) > MinPreviewBytes
}

// InitialiseSuspendedTab sends the display payload to the placeholder.
func (c *Coordinator) InitialiseSuspendedTab(ctx context.Context, tab schema.Tab) error {
	payload := c.BuildSuspendedPayload(ctx, tab)
	_, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionInitSuspendedTab, Payload: &payload})
	return err
}

// UnsuspendTab restores a suspended tab. When the placeholder does not
// answer the tab is navigated straight to the original url.
func (c *Coordinator) UnsuspendTab(ctx context.Context, tab schema.Tab) {
	if !c.isSuspendedTab(tab) {
		return
	}
	log := logx.WithTab(ctx, tab.ID)
	if pos := c.codec.ScrollPosition(tab.URL); pos != "" && pos != "0" {
		c.flags.Set(tab.ID, FlagScrollPos, pos)
	}
	_, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionUnsuspend})
	if err == nil {
		log.Debug("coordinator tab unsuspended")
		return
	}
	url := c.codec.OriginalURL(tab.URL)
	if url == "" {
		return
	}
	log.Debug("coordinator unsuspend falls back to navigation")
	if err := c.host.NavigateTab(ctx, tab.ID, url); err != nil {
		log.Warn("coordinator unsuspend navigation failed", "err", err)
	}
}

// ResuspendTab reloads a suspended placeholder without unsuspending it.
func (c *Coordinator) ResuspendTab(ctx context.Context, tab schema.Tab) error {
	if _, err := c.send(ctx, tab.ID, schema.AgentMessage{Action: schema.ActionDisableUnsuspendOnReload}); err != nil {
		return err
	}
	return c.host.ReloadTab(ctx, tab.ID)
}
