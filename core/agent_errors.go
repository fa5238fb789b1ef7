package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/tabnap/schema"
)

// AgentErrorKind classifies agent messaging failures.
type AgentErrorKind string

const (
	// AgentErrorUnknown is an uncategorized messaging failure.
	AgentErrorUnknown AgentErrorKind = "unknown"
	// AgentErrorUnreachable indicates no agent answered for the tab.
	AgentErrorUnreachable AgentErrorKind = "unreachable"
	// AgentErrorTimeout indicates the agent did not reply in time.
	AgentErrorTimeout AgentErrorKind = "timeout"
	// AgentErrorCanceled indicates the request was canceled.
	AgentErrorCanceled AgentErrorKind = "canceled"
)

// AgentError wraps agent messaging failures with a stable classification.
// Every AgentError is a soft failure.
type AgentError struct {
	Kind   AgentErrorKind
	Action schema.AgentAction
	TabID  schema.TabID
	Err    error
}

// NewAgentError classifies err for a message sent to tabID.
func NewAgentError(action schema.AgentAction, tabID schema.TabID, err error) *AgentError {
	kind := AgentErrorUnknown
	switch {
	case errors.Is(err, schema.ErrAgentUnreachable), errors.Is(err, schema.ErrTabNotFound):
		kind = AgentErrorUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		kind = AgentErrorTimeout
	case errors.Is(err, context.Canceled):
		kind = AgentErrorCanceled
	}
	return &AgentError{Kind: kind, Action: action, TabID: tabID, Err: err}
}

func (e *AgentError) Error() string {
	if e == nil {
		return "agent error"
	}
	if e.Err != nil {
		return fmt.Sprintf("agent %s for tab %d: %v", e.Action, e.TabID, e.Err)
	}
	return fmt.Sprintf("agent %s for tab %d failed", e.Action, e.TabID)
}

func (e *AgentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
