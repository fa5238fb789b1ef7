package schema

// Status is the suspension status of a tab. It is derived on demand and never stored.
type Status string

const (
	// StatusLoading indicates the tab is still navigating.
	StatusLoading Status = "loading"
	// StatusSpecial indicates a privileged page that cannot be suspended.
	StatusSpecial Status = "special"
	// StatusDiscarded indicates the host discarded the tab's memory.
	StatusDiscarded Status = "discarded"
	// StatusSuspended indicates the tab shows the suspended placeholder.
	StatusSuspended Status = "suspended"
	// StatusWhitelisted indicates the url matches the whitelist.
	StatusWhitelisted Status = "whitelisted"
	// StatusNever indicates the suspend delay is set to never.
	StatusNever Status = "never"
	// StatusNormal indicates the tab will be suspended when its timer expires.
	StatusNormal Status = "normal"
	// StatusFormInput indicates unsaved form input in the page.
	StatusFormInput Status = "formInput"
	// StatusAudible indicates the tab plays audio and audio tabs are ignored.
	StatusAudible Status = "audible"
	// StatusActive indicates the tab is active and active tabs are ignored.
	StatusActive Status = "active"
	// StatusPinned indicates the tab is pinned and pinned tabs are ignored.
	StatusPinned Status = "pinned"
	// StatusTempWhitelist indicates the tab was paused by the user.
	StatusTempWhitelist Status = "tempWhitelist"
	// StatusCharging indicates the device is charging and charging is ignored.
	StatusCharging Status = "charging"
	// StatusNoConnectivity indicates the device is offline and offline is ignored.
	StatusNoConnectivity Status = "noConnectivity"
	// StatusUnknown indicates the status could not be determined.
	StatusUnknown Status = "unknown"
)

// AllStatuses lists the closed status set.
var AllStatuses = []Status{
	StatusLoading,
	StatusSpecial,
	StatusDiscarded,
	StatusSuspended,
	StatusWhitelisted,
	StatusNever,
	StatusNormal,
	StatusFormInput,
	StatusAudible,
	StatusActive,
	StatusPinned,
	StatusTempWhitelist,
	StatusCharging,
	StatusNoConnectivity,
	StatusUnknown,
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IconState is the toolbar icon variant for a tab.
type IconState string

const (
	// IconActive shows that suspension is armed for the tab.
	IconActive IconState = "active"
	// IconPaused shows that suspension is paused for the tab.
	IconPaused IconState = "paused"
)

// Icon maps a status to its icon variant.
func (s Status) Icon() IconState {
	if s == StatusNormal || s == StatusActive {
		return IconActive
	}
	return IconPaused
}
