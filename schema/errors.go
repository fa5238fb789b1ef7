package schema

import "errors"

var (
	// ErrTabNotFound indicates the host no longer knows the tab id.
	ErrTabNotFound = errors.New("tab not found")
	// ErrWindowNotFound indicates the host no longer knows the window id.
	ErrWindowNotFound = errors.New("window not found")
	// ErrNoActiveTab indicates no active tab could be resolved.
	ErrNoActiveTab = errors.New("no active tab")
	// ErrAgentUnreachable indicates the tab agent did not answer.
	ErrAgentUnreachable = errors.New("agent unreachable")
	// ErrUnknownCommand indicates an unrecognized command name.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotSuspended indicates an operation required a suspended tab.
	ErrNotSuspended = errors.New("tab is not suspended")
	// ErrInvalidSuspendedURL indicates a url that does not decode as a suspended url.
	ErrInvalidSuspendedURL = errors.New("invalid suspended url")
	// ErrCaptureTimeout indicates preview capture exceeded its deadline.
	ErrCaptureTimeout = errors.New("preview capture timed out")
	// ErrCaptureSkipped indicates preview capture was skipped for a large page.
	ErrCaptureSkipped = errors.New("element count > 10000")
)
