package core

import (
	"context"

	"pkt.systems/tabnap/schema"
)

// Host is the tab platform the coordinator observes and drives.
type Host interface {
	// GetTab returns a fresh snapshot or schema.ErrTabNotFound.
	GetTab(ctx context.Context, id schema.TabID) (schema.Tab, error)
	// QueryTabs returns tabs matching the query across all windows.
	QueryTabs(ctx context.Context, query schema.TabQuery) ([]schema.Tab, error)
	// CurrentWindow returns the focused window populated with its tabs.
	CurrentWindow(ctx context.Context) (schema.Window, error)
	// GetWindow returns the window populated with its tabs or schema.ErrWindowNotFound.
	GetWindow(ctx context.Context, id schema.WindowID) (schema.Window, error)
	// Windows returns every window populated with its tabs.
	Windows(ctx context.Context) ([]schema.Window, error)
	CreateTab(ctx context.Context, opts CreateTabOptions) (schema.Tab, error)
	NavigateTab(ctx context.Context, id schema.TabID, url string) error
	ReloadTab(ctx context.Context, id schema.TabID) error
}

// CreateTabOptions describes a tab to open.
type CreateTabOptions struct {
	URL         string
	WindowID    schema.WindowID
	Index       int
	OpenerTabID schema.TabID
	Active      bool
}

// Settings exposes user options.
type Settings interface {
	Option(name string) any
	SetOption(ctx context.Context, name string, value any) error
	Snapshot() schema.Settings
}

// Whitelist matches urls that must never be suspended.
type Whitelist interface {
	Match(url string) bool
	SaveRootURL(ctx context.Context, url string) error
	Remove(ctx context.Context, url string) error
}

// URLCodec encodes and decodes suspended placeholder urls.
type URLCodec interface {
	IsSuspendedURL(url string) bool
	OriginalURL(suspendedURL string) string
	Encode(url, title, scrollPos string) string
	ScrollPosition(suspendedURL string) string
	Title(suspendedURL string) string
}

// Suspension force levels. Lower levels bypass more eligibility checks.
const (
	ForceLevelAlways    = 1
	ForceLevelStandard  = 2
	ForceLevelIdleTimer = 3
)

// SuspendQueue throttles suspension work.
type SuspendQueue interface {
	Queue(ctx context.Context, tab schema.Tab, forceLevel int)
	Unqueue(ctx context.Context, tab schema.Tab)
	// Execute completes the pending suspension job of the tab.
	Execute(ctx context.Context, tab schema.Tab)
	ForceSuspend(ctx context.Context, tab schema.Tab, suspendedURL string)
	ForceDiscard(ctx context.Context, tab schema.Tab)
	MarkSuspended(ctx context.Context, tab schema.Tab)
}

// SessionRecorder stores window snapshots and drives crash recovery.
type SessionRecorder interface {
	SessionID() string
	SaveWindows(ctx context.Context, sessionID string, windows []schema.Window) error
	IsRecoveryMode() bool
	TabRecovered(ctx context.Context, tab schema.Tab)
}

// AgentMessenger delivers messages to tab agents and suspended placeholders.
// Delivery is best effort. Missing recipients yield schema.ErrAgentUnreachable.
type AgentMessenger interface {
	Send(ctx context.Context, tabID schema.TabID, msg schema.AgentMessage) (schema.TabInfo, error)
	Broadcast(ctx context.Context, msg schema.AgentMessage)
	Move(oldID, newID schema.TabID)
}

// TabProperties is cached metadata for an original url.
type TabProperties struct {
	URL     string
	Title   string
	Favicon string
}

// TabInfoStore caches page metadata and preview images by original url.
type TabInfoStore interface {
	TabInfo(ctx context.Context, url string) (TabProperties, bool, error)
	SaveTabInfo(ctx context.Context, props TabProperties) error
	Preview(ctx context.Context, url string) (string, bool, error)
	SavePreview(ctx context.Context, url, dataURL string) error
}

// History records visited urls.
type History interface {
	DeleteURL(ctx context.Context, url string) error
	AddURL(ctx context.Context, url string) error
}

// Hotkeys resolves the label of the suspend toggle shortcut.
type Hotkeys interface {
	SuspendToggleLabel(ctx context.Context) (string, error)
}

// EventSink receives recomputed tab status events.
type EventSink interface {
	OnIcon(event schema.IconEvent)
}
