package core

import (
	"context"

	"pkt.systems/tabnap/schema"
)

// IsCharging reports the last known power state.
func (c *Coordinator) IsCharging() bool {
	c.env.mu.Lock()
	defer c.env.mu.Unlock()
	return c.env.charging
}

// IsOnline reports the last known connectivity state.
func (c *Coordinator) IsOnline() bool {
	c.env.mu.Lock()
	defer c.env.mu.Unlock()
	return c.env.online
}

// SetCharging records a power state change. Leaving the charger restarts
// idle timers on every agent when charging tabs were held back.
func (c *Coordinator) SetCharging(ctx context.Context, charging bool) {
	ctx = c.ctx(ctx)
	c.env.mu.Lock()
	changed := c.env.charging != charging
	c.env.charging = charging
	c.env.mu.Unlock()
	if !changed {
		return
	}
	c.log(ctx).Info("coordinator charging changed", "charging", charging)
	c.SetIconStatusForActiveTab(ctx)
	if !charging && c.optionBool(schema.OptionIgnoreWhenCharging) {
		c.agents.Broadcast(ctx, schema.AgentMessage{Action: schema.ActionRestartTimer})
	}
}

// SetOnline records a connectivity change. Coming online restarts idle
// timers on every agent when offline tabs were held back.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) {
	ctx = c.ctx(ctx)
	c.env.mu.Lock()
	changed := c.env.online != online
	c.env.online = online
	c.env.mu.Unlock()
	if !changed {
		return
	}
	c.log(ctx).Info("coordinator connectivity changed", "online", online)
	if online && c.optionBool(schema.OptionIgnoreWhenOffline) {
		c.agents.Broadcast(ctx, schema.AgentMessage{Action: schema.ActionRestartTimer})
	}
	c.SetIconStatusForActiveTab(ctx)
}

// SetIconStatusForActiveTab reclassifies the active tab and publishes its icon.
func (c *Coordinator) SetIconStatusForActiveTab(ctx context.Context) {
	ctx = c.ctx(ctx)
	tab, err := c.currentlyActiveTab(ctx)
	if err != nil {
		return
	}
	c.refreshIcon(ctx, tab, "")
}

// ApplySettingsChange pushes changed options to running agents.
func (c *Coordinator) ApplySettingsChange(ctx context.Context, changed schema.Settings) {
	ctx = c.ctx(ctx)
	if len(changed) == 0 {
		return
	}
	msg := schema.AgentMessage{Action: schema.ActionResetPreferences}
	reset := false
	if value, ok := changed[schema.OptionSuspendTime]; ok {
		suspendTime := schema.OptionString(value)
		msg.SuspendTime = &suspendTime
		reset = true
	}
	if value, ok := changed[schema.OptionIgnoreForms]; ok {
		ignoreForms := schema.OptionBool(value)
		msg.IgnoreForms = &ignoreForms
		reset = true
	}
	if reset {
		c.agents.Broadcast(ctx, msg)
	}
	c.log(ctx).Debug("coordinator settings applied", "changed", len(changed), "reset_agents", reset)
	c.SetIconStatusForActiveTab(ctx)
}
