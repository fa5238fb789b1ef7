package schema

// TabID identifies a browser tab. The host may reassign it (see TabReplaced).
type TabID int

// WindowID identifies a browser window.
type WindowID int

// WindowIDNone is the sentinel reported when no window holds focus.
const WindowIDNone WindowID = -1

// TabIDNone marks the absence of a tab reference.
const TabIDNone TabID = 0

// Valid reports whether the tab id refers to a tab.
func (id TabID) Valid() bool {
	return id > 0
}

// Valid reports whether the window id refers to a window.
func (id WindowID) Valid() bool {
	return id >= 0
}

// LoadStatus is the navigation state reported by the host.
type LoadStatus string

const (
	// LoadStatusLoading indicates the tab is navigating.
	LoadStatusLoading LoadStatus = "loading"
	// LoadStatusComplete indicates the tab finished loading.
	LoadStatusComplete LoadStatus = "complete"
)

// Tab is a host-owned snapshot of a tab.
type Tab struct {
	ID          TabID      `json:"id"`
	WindowID    WindowID   `json:"windowId"`
	Index       int        `json:"index"`
	OpenerTabID TabID      `json:"openerTabId,omitempty"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	FavIconURL  string     `json:"favIconUrl,omitempty"`
	Active      bool       `json:"active"`
	Highlighted bool       `json:"highlighted"`
	Audible     bool       `json:"audible"`
	Pinned      bool       `json:"pinned"`
	Discarded   bool       `json:"discarded"`
	Status      LoadStatus `json:"status"`
}

// Window is a host-owned snapshot of a window and optionally its tabs.
type Window struct {
	ID      WindowID `json:"id"`
	Focused bool     `json:"focused"`
	Tabs    []Tab    `json:"tabs,omitempty"`
}

// TabQuery filters tabs when querying the host. Nil fields match everything.
type TabQuery struct {
	Active        *bool
	Highlighted   *bool
	WindowID      *WindowID
	CurrentWindow bool
}

// Bool returns a pointer to v for use in queries and change descriptors.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v for use in change descriptors.
func String(v string) *string {
	return &v
}

// Matches reports whether the tab satisfies the static parts of the query.
// CurrentWindow must be resolved by the host.
func (q TabQuery) Matches(tab Tab) bool {
	if q.Active != nil && tab.Active != *q.Active {
		return false
	}
	if q.Highlighted != nil && tab.Highlighted != *q.Highlighted {
		return false
	}
	if q.WindowID != nil && tab.WindowID != *q.WindowID {
		return false
	}
	return true
}
