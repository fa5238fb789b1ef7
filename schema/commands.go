package schema

// CommandName is a named shortcut bound to a coordinator operation.
type CommandName string

const (
	CommandToggleSuspend         CommandName = "1-suspend-tab"
	CommandPauseTab              CommandName = "1b-pause-tab"
	CommandUnsuspendTab          CommandName = "2-unsuspend-tab"
	CommandSuspendActiveWindow   CommandName = "3-suspend-active-window"
	CommandUnsuspendActiveWindow CommandName = "4-unsuspend-active-window"
	CommandSuspendAllWindows     CommandName = "5-suspend-all-windows"
	CommandUnsuspendAllWindows   CommandName = "6-unsuspend-all-windows"

	// Operations reachable from menus rather than keyboard shortcuts.
	CommandSuspendSelected   CommandName = "suspend-selected"
	CommandUnsuspendSelected CommandName = "unsuspend-selected"
	CommandWhitelistTab      CommandName = "whitelist-tab"
	CommandUnwhitelistTab    CommandName = "unwhitelist-tab"
	CommandUndoPauseTab      CommandName = "undo-pause-tab"
)

// Commands lists every command in menu order.
var Commands = []CommandName{
	CommandToggleSuspend,
	CommandPauseTab,
	CommandUnsuspendTab,
	CommandSuspendActiveWindow,
	CommandUnsuspendActiveWindow,
	CommandSuspendAllWindows,
	CommandUnsuspendAllWindows,
	CommandSuspendSelected,
	CommandUnsuspendSelected,
	CommandWhitelistTab,
	CommandUnwhitelistTab,
	CommandUndoPauseTab,
}
