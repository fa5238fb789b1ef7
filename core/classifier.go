package core

import (
	"context"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// classifyInput carries one classification. The agent status is fetched at
// most once and only when a rule needs it.
type classifyInput struct {
	c       *Coordinator
	ctx     context.Context
	tab     schema.Tab
	known   schema.Status
	fetched bool
}

func (in *classifyInput) agentStatus() schema.Status {
	if in.known != "" || in.fetched {
		return in.known
	}
	in.fetched = true
	info, err := in.c.send(in.ctx, in.tab.ID, schema.AgentMessage{Action: schema.ActionRequestInfo})
	if err != nil {
		return ""
	}
	if info.Status.Valid() {
		in.known = info.Status
	}
	return in.known
}

type statusRule struct {
	name  string
	match func(in *classifyInput) (schema.Status, bool)
}

func fixed(status schema.Status, pred func(in *classifyInput) bool) func(in *classifyInput) (schema.Status, bool) {
	return func(in *classifyInput) (schema.Status, bool) {
		return status, pred(in)
	}
}

// statusRules is evaluated in order and the first match wins.
var statusRules = []statusRule{
	{"loading", fixed(schema.StatusLoading, func(in *classifyInput) bool {
		return in.tab.Status == schema.LoadStatusLoading
	})},
	{"special", fixed(schema.StatusSpecial, func(in *classifyInput) bool {
		return in.c.isSpecialTab(in.tab)
	})},
	{"discarded", fixed(schema.StatusDiscarded, func(in *classifyInput) bool {
		return in.tab.Discarded
	})},
	{"suspended", fixed(schema.StatusSuspended, func(in *classifyInput) bool {
		return in.c.isSuspendedTab(in.tab)
	})},
	{"whitelisted", fixed(schema.StatusWhitelisted, func(in *classifyInput) bool {
		return in.c.whitelist.Match(in.tab.URL)
	})},
	{"never", fixed(schema.StatusNever, func(in *classifyInput) bool {
		return schema.OptionString(in.c.settings.Option(schema.OptionSuspendTime)) == schema.SuspendTimeNever
	})},
	{"agent", func(in *classifyInput) (schema.Status, bool) {
		status := in.agentStatus()
		return status, status != "" && status != schema.StatusNormal
	}},
	{"charging", fixed(schema.StatusCharging, func(in *classifyInput) bool {
		return in.c.optionBool(schema.OptionIgnoreWhenCharging) && in.c.IsCharging()
	})},
	{"noConnectivity", fixed(schema.StatusNoConnectivity, func(in *classifyInput) bool {
		return in.c.optionBool(schema.OptionIgnoreWhenOffline) && !in.c.IsOnline()
	})},
	{"pinned", fixed(schema.StatusPinned, func(in *classifyInput) bool {
		return in.c.isProtectedPinnedTab(in.tab)
	})},
	{"audible", fixed(schema.StatusAudible, func(in *classifyInput) bool {
		return in.c.isProtectedAudibleTab(in.tab)
	})},
	{"active", fixed(schema.StatusActive, func(in *classifyInput) bool {
		return in.c.optionBool(schema.OptionIgnoreActiveTabs) && in.c.isProtectedActiveTab(in.tab)
	})},
	{"normal", fixed(schema.StatusNormal, func(in *classifyInput) bool {
		return in.agentStatus() == schema.StatusNormal
	})},
}

// Classify returns the suspension status of tab. known is an agent status
// already in hand, or empty to ask the agent when a rule needs it.
// An unreachable agent never fails classification; it yields unknown when
// no other rule matches.
func (c *Coordinator) Classify(ctx context.Context, tab schema.Tab, known schema.Status) schema.Status {
	ctx = c.ctx(ctx)
	if !known.Valid() {
		known = ""
	}
	in := &classifyInput{c: c, ctx: ctx, tab: tab, known: known}
	for _, rule := range statusRules {
		if status, ok := rule.match(in); ok {
			logx.WithTab(ctx, tab.ID).Trace("coordinator tab classified", "status", status, "rule", rule.name)
			return status
		}
	}
	logx.WithTab(ctx, tab.ID).Debug("coordinator tab status unknown")
	return schema.StatusUnknown
}

func (c *Coordinator) refreshIcon(ctx context.Context, tab schema.Tab, known schema.Status) schema.Status {
	status := c.Classify(ctx, tab, known)
	c.setIconStatus(ctx, tab.ID, status)
	return status
}
