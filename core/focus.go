package core

import (
	"sync"

	"pkt.systems/tabnap/schema"
)

// FocusTracker records which tab each window last focused and which tab
// held focus long enough to count as stationary.
type FocusTracker struct {
	mu                   sync.Mutex
	focusedTab           map[schema.WindowID]schema.TabID
	stationaryTab        map[schema.WindowID]schema.TabID
	replaced             map[schema.TabID]schema.TabID
	lastFocusedWindow    schema.WindowID
	lastStationaryWindow schema.WindowID
}

// FocusSnapshot is a copy of the tracker state.
type FocusSnapshot struct {
	FocusedWindow    schema.WindowID                  `json:"focusedWindow"`
	StationaryWindow schema.WindowID                  `json:"stationaryWindow"`
	FocusedTabs      map[schema.WindowID]schema.TabID `json:"focusedTabs"`
	StationaryTabs   map[schema.WindowID]schema.TabID `json:"stationaryTabs"`
}

// NewFocusTracker constructs a tracker with no focused window.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{
		focusedTab:           make(map[schema.WindowID]schema.TabID),
		stationaryTab:        make(map[schema.WindowID]schema.TabID),
		replaced:             make(map[schema.TabID]schema.TabID),
		lastFocusedWindow:    schema.WindowIDNone,
		lastStationaryWindow: schema.WindowIDNone,
	}
}

// Seed marks tab as both focused and stationary in its window.
func (f *FocusTracker) Seed(tab schema.Tab) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFocusedWindow = tab.WindowID
	f.lastStationaryWindow = tab.WindowID
	f.focusedTab[tab.WindowID] = tab.ID
	f.stationaryTab[tab.WindowID] = tab.ID
}

// FocusWindow records the focused window.
func (f *FocusTracker) FocusWindow(windowID schema.WindowID) {
	f.mu.Lock()
	f.lastFocusedWindow = windowID
	f.mu.Unlock()
}

// FocusTab records the focused tab of a window.
func (f *FocusTracker) FocusTab(windowID schema.WindowID, tabID schema.TabID) {
	f.mu.Lock()
	f.focusedTab[windowID] = tabID
	f.mu.Unlock()
}

// PromoteWindow marks the window as stationary.
func (f *FocusTracker) PromoteWindow(windowID schema.WindowID) {
	f.mu.Lock()
	f.lastStationaryWindow = windowID
	f.mu.Unlock()
}

// PromoteTab marks the tab as stationary in its window and returns the
// previously stationary tab of that window.
func (f *FocusTracker) PromoteTab(windowID schema.WindowID, tabID schema.TabID) schema.TabID {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.stationaryTab[windowID]
	f.stationaryTab[windowID] = tabID
	return prev
}

// IsFocused reports whether tab is the focused tab of the focused window.
// Without a record for the window the host active flag decides.
func (f *FocusTracker) IsFocused(tab schema.Tab) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return matchTracked(tab, f.lastFocusedWindow, f.focusedTab)
}

// IsStationary reports whether tab is the stationary tab of the stationary window.
func (f *FocusTracker) IsStationary(tab schema.Tab) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return matchTracked(tab, f.lastStationaryWindow, f.stationaryTab)
}

func matchTracked(tab schema.Tab, windowID schema.WindowID, byWindow map[schema.WindowID]schema.TabID) bool {
	if tab.WindowID != windowID {
		return false
	}
	if tracked, ok := byWindow[tab.WindowID]; ok && tracked.Valid() {
		return tab.ID == tracked
	}
	return tab.Active
}

// FocusedWindow returns the last focused window.
func (f *FocusTracker) FocusedWindow() schema.WindowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFocusedWindow
}

// StationaryWindow returns the last stationary window.
func (f *FocusTracker) StationaryWindow() schema.WindowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastStationaryWindow
}

// ReplaceTabID rewrites every reference to oldID and remembers the
// replacement for Resolve.
func (f *FocusTracker) ReplaceTabID(oldID, newID schema.TabID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if oldID == newID {
		return
	}
	f.replaced[oldID] = newID
	for windowID, tabID := range f.focusedTab {
		if tabID == oldID {
			f.focusedTab[windowID] = newID
		}
	}
	for windowID, tabID := range f.stationaryTab {
		if tabID == oldID {
			f.stationaryTab[windowID] = newID
		}
	}
}

// Resolve follows recorded replacements from tabID to the current id.
func (f *FocusTracker) Resolve(tabID schema.TabID) schema.TabID {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range len(f.replaced) {
		next, ok := f.replaced[tabID]
		if !ok {
			break
		}
		tabID = next
	}
	return tabID
}

// ForgetTab drops the replacement records pointing at a removed tab.
func (f *FocusTracker) ForgetTab(tabID schema.TabID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for oldID, newID := range f.replaced {
		if newID == tabID {
			delete(f.replaced, oldID)
		}
	}
}

// ForgetWindow drops the records of a closed window.
func (f *FocusTracker) ForgetWindow(windowID schema.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.focusedTab, windowID)
	delete(f.stationaryTab, windowID)
}

// Snapshot copies the tracker state.
func (f *FocusTracker) Snapshot() FocusSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := FocusSnapshot{
		FocusedWindow:    f.lastFocusedWindow,
		StationaryWindow: f.lastStationaryWindow,
		FocusedTabs:      make(map[schema.WindowID]schema.TabID, len(f.focusedTab)),
		StationaryTabs:   make(map[schema.WindowID]schema.TabID, len(f.stationaryTab)),
	}
	for k, v := range f.focusedTab {
		snap.FocusedTabs[k] = v
	}
	for k, v := range f.stationaryTab {
		snap.StationaryTabs[k] = v
	}
	return snap
}
