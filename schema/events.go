package schema

// HostEventType identifies a host tab-platform event.
type HostEventType string

const (
	// EventTabCreated is emitted when a tab is opened.
	EventTabCreated HostEventType = "tab.created"
	// EventTabRemoved is emitted when a tab is closed.
	EventTabRemoved HostEventType = "tab.removed"
	// EventTabUpdated is emitted when tracked tab fields change.
	EventTabUpdated HostEventType = "tab.updated"
	// EventTabActivated is emitted when a tab becomes the active tab of its window.
	EventTabActivated HostEventType = "tab.activated"
	// EventTabReplaced is emitted when the host swaps a tab id for a new one.
	EventTabReplaced HostEventType = "tab.replaced"
	// EventWindowCreated is emitted when a window opens.
	EventWindowCreated HostEventType = "window.created"
	// EventWindowRemoved is emitted when a window closes.
	EventWindowRemoved HostEventType = "window.removed"
	// EventWindowFocusChanged is emitted when window focus moves. WindowIDNone means no window.
	EventWindowFocusChanged HostEventType = "window.focus_changed"
	// EventHistoryVisited is emitted when a url is added to browsing history.
	EventHistoryVisited HostEventType = "history.visited"
)

// HostEvent is a single event from the host tab platform.
type HostEvent struct {
	Type     HostEventType
	TabID    TabID
	OldTabID TabID
	WindowID WindowID
	Tab      *Tab
	Change   ChangeInfo
	URL      string
}

// IconEvent reports a recomputed status for a tab.
type IconEvent struct {
	TabID  TabID     `json:"tabId"`
	Status Status    `json:"status"`
	Icon   IconState `json:"icon"`
}
