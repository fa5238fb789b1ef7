package core

import (
	"sync"
	"time"

	"pkt.systems/tabnap/schema"
)

// TabFlag names an ephemeral per-tab hint carried across a navigation.
type TabFlag string

const (
	// FlagWhitelistOnReload asks the next load to start temporarily whitelisted.
	FlagWhitelistOnReload TabFlag = "whitelistOnReload"
	// FlagUnsuspendOnReloadURL unsuspends the tab when it reloads to this url.
	FlagUnsuspendOnReloadURL TabFlag = "unsuspendOnReloadUrl"
	// FlagDiscardOnLoad discards the placeholder once it finishes loading.
	FlagDiscardOnLoad TabFlag = "discardOnLoad"
	// FlagScrollPos restores the scroll offset after unsuspending.
	FlagScrollPos TabFlag = "scrollPos"
	// FlagSpawnedTabCreated marks a tab opened for immediate suspension.
	FlagSpawnedTabCreated TabFlag = "spawnedTabCreateTimestamp"
)

// FlagStore holds tab flags keyed by tab id. Every operation is a single
// atomic step and none blocks on I/O.
type FlagStore struct {
	mu    sync.Mutex
	flags map[schema.TabID]map[TabFlag]any
}

// NewFlagStore constructs an empty FlagStore.
func NewFlagStore() *FlagStore {
	return &FlagStore{flags: make(map[schema.TabID]map[TabFlag]any)}
}

// Get returns the flag value for the tab.
func (s *FlagStore) Get(tabID schema.TabID, flag TabFlag) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.flags[tabID][flag]
	return value, ok
}

// Set stores a flag value. A nil value stores an explicit null.
func (s *FlagStore) Set(tabID schema.TabID, flag TabFlag, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabFlags := s.flags[tabID]
	if tabFlags == nil {
		tabFlags = make(map[TabFlag]any)
		s.flags[tabID] = tabFlags
	}
	tabFlags[flag] = value
}

// Take returns the flag value and replaces it with null in one step.
func (s *FlagStore) Take(tabID schema.TabID, flag TabFlag) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabFlags := s.flags[tabID]
	if tabFlags == nil {
		tabFlags = make(map[TabFlag]any)
		s.flags[tabID] = tabFlags
	}
	value, ok := tabFlags[flag]
	tabFlags[flag] = nil
	return value, ok
}

// Clear removes every flag of the tab.
func (s *FlagStore) Clear(tabID schema.TabID) {
	s.mu.Lock()
	delete(s.flags, tabID)
	s.mu.Unlock()
}

// Migrate moves the whole flag set of oldID to newID, replacing any flags
// already stored for newID.
func (s *FlagStore) Migrate(oldID, newID schema.TabID) {
	if oldID == newID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tabFlags, ok := s.flags[oldID]
	if !ok {
		return
	}
	s.flags[newID] = tabFlags
	delete(s.flags, oldID)
}

// Len returns the number of tabs with flags.
func (s *FlagStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flags)
}

// Bool reads a boolean flag. Missing and null values are false.
func (s *FlagStore) Bool(tabID schema.TabID, flag TabFlag) bool {
	value, _ := s.Get(tabID, flag)
	v, _ := value.(bool)
	return v
}

// String reads a string flag.
func (s *FlagStore) String(tabID schema.TabID, flag TabFlag) string {
	value, _ := s.Get(tabID, flag)
	v, _ := value.(string)
	return v
}

// Time reads a timestamp flag.
func (s *FlagStore) Time(tabID schema.TabID, flag TabFlag) (time.Time, bool) {
	value, _ := s.Get(tabID, flag)
	v, ok := value.(time.Time)
	if !ok || v.IsZero() {
		return time.Time{}, false
	}
	return v, true
}
