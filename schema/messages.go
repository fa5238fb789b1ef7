package schema

import "time"

// AgentAction names a coordinator to agent message.
type AgentAction string

const (
	// ActionInitTab pushes idle timer and form policy into a freshly loaded page.
	ActionInitTab AgentAction = "initTab"
	// ActionResetPreferences pushes changed options into a running agent.
	ActionResetPreferences AgentAction = "resetPreferences"
	// ActionRequestInfo asks the agent for its live status.
	ActionRequestInfo AgentAction = "requestInfo"
	// ActionCancelTimer stops the idle timer.
	ActionCancelTimer AgentAction = "cancelTimer"
	// ActionRestartTimer re-arms the idle timer from the current suspend delay.
	ActionRestartTimer AgentAction = "restartTimer"
	// ActionTempWhitelist pauses suspension for the page.
	ActionTempWhitelist AgentAction = "tempWhitelist"
	// ActionUndoTempWhitelist clears a pause and pending form input.
	ActionUndoTempWhitelist AgentAction = "undoTempWhitelist"
	// ActionConfirmTabSuspend instructs the agent to capture and navigate to the placeholder.
	ActionConfirmTabSuspend AgentAction = "confirmTabSuspend"
	// ActionReloadOptions asks the options page to reload its settings.
	ActionReloadOptions AgentAction = "reloadOptions"
	// ActionInitSuspendedTab delivers the placeholder display payload.
	ActionInitSuspendedTab AgentAction = "initSuspendedTab"
	// ActionUnsuspend asks the placeholder to restore the original page.
	ActionUnsuspend AgentAction = "requestUnsuspendTab"
	// ActionDisableUnsuspendOnReload stops the placeholder from unsuspending on its next reload.
	ActionDisableUnsuspendOnReload AgentAction = "disableUnsuspendOnReload"
	// ActionNoConnectivity shows the terminal offline notice on a placeholder.
	ActionNoConnectivity AgentAction = "showNoConnectivityMessage"
	// ActionRefreshHotkey updates the hotkey label shown by a placeholder.
	ActionRefreshHotkey AgentAction = "refreshHotkey"
)

// AgentMessage is a single coordinator to agent message.
type AgentMessage struct {
	Action             AgentAction          `json:"action"`
	IgnoreForms        *bool                `json:"ignoreForms,omitempty"`
	TempWhitelist      bool                 `json:"temporaryWhitelist,omitempty"`
	ScrollPos          string               `json:"scrollPos,omitempty"`
	SuspendTime        *string              `json:"suspendTime,omitempty"`
	SuspendedURL       string               `json:"suspendedUrl,omitempty"`
	ScreenCapture      string               `json:"screenCapture,omitempty"`
	ForceScreenCapture bool                 `json:"forceScreenCapture,omitempty"`
	Payload            *SuspendedTabPayload `json:"payload,omitempty"`
	Command            string               `json:"command,omitempty"`
}

// TabInfo is an agent's live view of its page.
type TabInfo struct {
	Status    Status `json:"status"`
	ScrollPos string `json:"scrollPos"`
	// TimerUp is the idle timer deadline. Zero when no timer is armed.
	TimerUp time.Time `json:"timerUp"`
}

// TimerUpLabel renders the timer deadline, "-" when unarmed.
func (i TabInfo) TimerUpLabel() string {
	if i.TimerUp.IsZero() {
		return "-"
	}
	return i.TimerUp.Format(time.RFC3339)
}

// ReportAction names an agent to coordinator message.
type ReportAction string

const (
	// ReportTabState reports a local status change.
	ReportTabState ReportAction = "reportTabState"
	// ReportSuspendTab asks the coordinator to queue the tab for suspension.
	ReportSuspendTab ReportAction = "suspendTab"
	// ReportSavePreviewData carries the captured preview or the capture failure.
	ReportSavePreviewData ReportAction = "savePreviewData"
	// ReportUnsuspendOnReload asks the coordinator to unsuspend when the placeholder reloads to URL.
	ReportUnsuspendOnReload ReportAction = "requestUnsuspendOnReload"
)

// AgentReport is a single agent to coordinator message.
type AgentReport struct {
	Action     ReportAction `json:"action"`
	TabID      TabID        `json:"tabId"`
	Status     Status       `json:"status,omitempty"`
	ScrollPos  string       `json:"scrollPos,omitempty"`
	PreviewURL string       `json:"previewUrl,omitempty"`
	ErrorMsg   string       `json:"errorMsg,omitempty"`
	URL        string       `json:"url,omitempty"`
	Elapsed    float64      `json:"timerMsg,omitempty"`
}

// SuspendedTabPayload is the display payload sent to a suspended placeholder.
type SuspendedTabPayload struct {
	TabID                    TabID  `json:"tabId"`
	RequestUnsuspendOnReload bool   `json:"requestUnsuspendOnReload"`
	URL                      string `json:"url"`
	ScrollPosition           string `json:"scrollPosition"`
	Favicon                  string `json:"favicon"`
	Title                    string `json:"title"`
	Whitelisted              bool   `json:"whitelisted"`
	Theme                    string `json:"theme"`
	HideNag                  bool   `json:"hideNag"`
	PreviewMode              string `json:"previewMode"`
	PreviewURI               string `json:"previewUri,omitempty"`
	Command                  string `json:"command"`
}

// DebugInfo summarizes a tab for diagnostics.
type DebugInfo struct {
	WindowID WindowID `json:"windowId"`
	TabID    TabID    `json:"tabId"`
	Status   Status   `json:"status"`
	TimerUp  string   `json:"timerUp"`
}

// SuspendOutcome is the result of processing a queued suspension.
type SuspendOutcome string

const (
	// SuspendSkipped means the tab was not eligible and the job is done.
	SuspendSkipped SuspendOutcome = "skipped"
	// SuspendDispatched means the agent is capturing or navigating; the job
	// completes when the placeholder loads or the preview is saved.
	SuspendDispatched SuspendOutcome = "dispatched"
	// SuspendCompleted means the tab was suspended or discarded directly.
	SuspendCompleted SuspendOutcome = "completed"
)
