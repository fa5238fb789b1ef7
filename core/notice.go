package core

import (
	"context"
	"strings"
	"sync"

	"pkt.systems/tabnap/schema"
)

type noticeState struct {
	mu      sync.Mutex
	pending *schema.Notice
}

// OfferNotice keeps notice for display when it is active, targets the
// running version and is newer than the last notice shown.
func (c *Coordinator) OfferNotice(ctx context.Context, notice schema.Notice) bool {
	ctx = c.ctx(ctx)
	if !notice.Active || strings.TrimSpace(notice.Text) == "" {
		return false
	}
	lastVersion := c.optionString(schema.OptionNoticeVersion)
	if notice.Target != c.cfg.ExtensionVersion || !notice.NewerThan(lastVersion) {
		c.log(ctx).Debug("coordinator notice skipped", "version", notice.Version, "target", notice.Target)
		return false
	}
	c.notice.mu.Lock()
	n := notice
	c.notice.pending = &n
	c.notice.mu.Unlock()
	c.log(ctx).Info("coordinator notice pending", "version", notice.Version)
	return true
}

// RequestNotice returns the pending notice.
func (c *Coordinator) RequestNotice() (schema.Notice, bool) {
	c.notice.mu.Lock()
	defer c.notice.mu.Unlock()
	if c.notice.pending == nil {
		return schema.Notice{}, false
	}
	return *c.notice.pending, true
}

// ClearNotice drops the pending notice and remembers its version as shown.
func (c *Coordinator) ClearNotice(ctx context.Context) {
	ctx = c.ctx(ctx)
	c.notice.mu.Lock()
	pending := c.notice.pending
	c.notice.pending = nil
	c.notice.mu.Unlock()
	if pending == nil {
		return
	}
	if err := c.settings.SetOption(ctx, schema.OptionNoticeVersion, pending.Version); err != nil {
		c.log(ctx).Warn("coordinator notice version save failed", "err", err)
	}
}
