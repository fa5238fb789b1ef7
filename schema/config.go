package schema

import (
	"strings"
	"time"
)

// Default coordinator thresholds.
const (
	DefaultFocusDelay       = 500 * time.Millisecond
	DefaultSpawnedTabWindow = 300 * time.Second
	DefaultSessionSaveDelay = time.Second
	DefaultShortcutsURL     = "chrome://extensions/shortcuts"
	DefaultThanksURL        = "https://greatsuspender.github.io/thanks.html"
)

// CoordinatorConfig carries policy thresholds and well-known urls for the coordinator.
type CoordinatorConfig struct {
	// FocusDelay is how long a tab must hold focus before it counts as stationary.
	FocusDelay time.Duration
	// SpawnedTabWindow bounds how long after creation a spawned tab may auto-suspend.
	SpawnedTabWindow time.Duration
	// SessionSaveDelay debounces session history snapshots.
	SessionSaveDelay time.Duration
	// ExtensionVersion is matched against notice targets.
	ExtensionVersion string
	// InternalBaseURL prefixes pages served by tabnap itself. They are never suspended.
	InternalBaseURL string
	// OptionsURL is the settings page. Its agent is told to reload options on focus.
	OptionsURL string
	// ShortcutsURL is the host keyboard shortcut page.
	ShortcutsURL string
	// NoticeURL is opened in a new tab when a window opens with a pending notice.
	NoticeURL string
	// ThanksURL marks a completed donation when a tab navigates to it.
	ThanksURL string
	// LocalThanksURL replaces ThanksURL in the tab.
	LocalThanksURL string
}

// Normalize fills zero values with defaults.
func (c CoordinatorConfig) Normalize() CoordinatorConfig {
	if c.FocusDelay <= 0 {
		c.FocusDelay = DefaultFocusDelay
	}
	if c.SpawnedTabWindow <= 0 {
		c.SpawnedTabWindow = DefaultSpawnedTabWindow
	}
	if c.SessionSaveDelay <= 0 {
		c.SessionSaveDelay = DefaultSessionSaveDelay
	}
	if strings.TrimSpace(c.ShortcutsURL) == "" {
		c.ShortcutsURL = DefaultShortcutsURL
	}
	if strings.TrimSpace(c.ThanksURL) == "" {
		c.ThanksURL = DefaultThanksURL
	}
	return c
}
