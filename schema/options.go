package schema

import (
	"fmt"
	"strings"
)

// Option names recognized by the coordinator and agents.
const (
	OptionSuspendTime             = "suspendTime"
	OptionIgnoreAudio             = "ignoreAudio"
	OptionIgnorePinned            = "ignorePinned"
	OptionIgnoreActiveTabs        = "ignoreActiveTabs"
	OptionIgnoreForms             = "ignoreForms"
	OptionIgnoreWhenCharging      = "ignoreWhenCharging"
	OptionIgnoreWhenOffline       = "ignoreWhenOffline"
	OptionDiscardInPlaceOfSuspend = "discardInPlaceOfSuspend"
	OptionSuspendInPlaceOfDiscard = "suspendInPlaceOfDiscard"
	OptionDiscardAfterSuspend     = "discardAfterSuspend"
	OptionUnsuspendOnFocus        = "unsuspendOnFocus"
	OptionTheme                   = "theme"
	OptionNoNag                   = "hideNag"
	OptionScreenCapture           = "screenCapture"
	OptionScreenCaptureForce      = "screenCaptureForce"
	OptionWhitelist               = "whitelist"
	OptionNoticeVersion           = "noticeVersion"
)

// SuspendTimeNever is the suspend delay value that disables suspension.
const SuspendTimeNever = "0"

// Screen capture modes.
const (
	ScreenCaptureOff      = "0"
	ScreenCaptureViewport = "1"
	ScreenCaptureFullPage = "2"
)

// Settings is a snapshot of all options.
type Settings map[string]any

// Bool returns the option as a boolean. Missing or non-boolean values are false.
func (s Settings) Bool(name string) bool {
	return OptionBool(s[name])
}

// String returns the option as a string.
func (s Settings) String(name string) string {
	return OptionString(s[name])
}

// OptionBool coerces an option value to a boolean.
func OptionBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

// OptionString coerces an option value to a string.
func OptionString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// DefaultSettings returns the built-in option defaults.
func DefaultSettings() Settings {
	return Settings{
		OptionSuspendTime:             "60",
		OptionIgnoreAudio:             true,
		OptionIgnorePinned:            true,
		OptionIgnoreActiveTabs:        true,
		OptionIgnoreForms:             true,
		OptionIgnoreWhenCharging:      false,
		OptionIgnoreWhenOffline:       false,
		OptionDiscardInPlaceOfSuspend: false,
		OptionSuspendInPlaceOfDiscard: false,
		OptionDiscardAfterSuspend:     false,
		OptionUnsuspendOnFocus:        false,
		OptionTheme:                   "light",
		OptionNoNag:                   false,
		OptionScreenCapture:           ScreenCaptureOff,
		OptionScreenCaptureForce:      false,
		OptionWhitelist:               "",
		OptionNoticeVersion:           "0",
	}
}
