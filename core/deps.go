package core

import (
	"time"

	"pkt.systems/pslog"
)

// CoordinatorDeps captures the collaborators of the coordinator.
// Host, Settings, Codec and Agents are required; the rest default to no-ops.
type CoordinatorDeps struct {
	Host      Host
	Settings  Settings
	Whitelist Whitelist
	Codec     URLCodec
	Queue     SuspendQueue
	Session   SessionRecorder
	Agents    AgentMessenger
	TabInfo   TabInfoStore
	History   History
	Hotkeys   Hotkeys
	EventSink EventSink
	Scheduler Scheduler
	Now       func() time.Time
	Logger    pslog.Logger
}
