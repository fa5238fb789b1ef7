package core

import (
	"context"

	"pkt.systems/tabnap/schema"
)

type noopWhitelist struct{}

func (noopWhitelist) Match(string) bool                         { return false }
func (noopWhitelist) SaveRootURL(context.Context, string) error { return nil }
func (noopWhitelist) Remove(context.Context, string) error      { return nil }

type noopQueue struct{}

func (noopQueue) Queue(context.Context, schema.Tab, int)           {}
func (noopQueue) Unqueue(context.Context, schema.Tab)              {}
func (noopQueue) Execute(context.Context, schema.Tab)              {}
func (noopQueue) ForceSuspend(context.Context, schema.Tab, string) {}
func (noopQueue) ForceDiscard(context.Context, schema.Tab)         {}
func (noopQueue) MarkSuspended(context.Context, schema.Tab)        {}

type noopSession struct{}

func (noopSession) SessionID() string                                          { return "" }
func (noopSession) SaveWindows(context.Context, string, []schema.Window) error { return nil }
func (noopSession) IsRecoveryMode() bool                                       { return false }
func (noopSession) TabRecovered(context.Context, schema.Tab)                   {}

type noopTabInfo struct{}

func (noopTabInfo) TabInfo(context.Context, string) (TabProperties, bool, error) {
	return TabProperties{}, false, nil
}
func (noopTabInfo) SaveTabInfo(context.Context, TabProperties) error { return nil }
func (noopTabInfo) Preview(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (noopTabInfo) SavePreview(context.Context, string, string) error { return nil }

type noopHistory struct{}

func (noopHistory) DeleteURL(context.Context, string) error { return nil }
func (noopHistory) AddURL(context.Context, string) error    { return nil }

type noopHotkeys struct{}

func (noopHotkeys) SuspendToggleLabel(context.Context) (string, error) { return "", nil }

type noopSink struct{}

func (noopSink) OnIcon(schema.IconEvent) {}
