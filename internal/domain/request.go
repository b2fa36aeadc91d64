package domain

import (
	"errors"
	"time"
)

// RequestStatus is the action request's position in the plan lifecycle
// state machine: pending -> planned -> (approved|rejected) -> (executed|failed).
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestPlanned  RequestStatus = "planned"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestExecuted RequestStatus = "executed"
	RequestFailed   RequestStatus = "failed"
)

var (
	ErrInvalidTransition = errors.New("invalid action-request status transition")
	ErrTerminalStatus    = errors.New("action request is in a terminal status")
)

// nextAllowed enumerates the legal successor statuses for each status.
// rejected and failed are terminal — absent from the map means no
// successors.
var nextAllowed = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestPlanned},
	RequestPlanned:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestExecuted, RequestFailed},
}

// ActionInput is the agent-submitted intent: what capability, what
// operation, with what parameters.
type ActionInput struct {
	Type      CapabilityType         `json:"type"`
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params"`
}

// ActionRequest is an agent-submitted intent to perform a typed operation.
// It is not itself executable — a Plan is required for that.
type ActionRequest struct {
	ID             string        `json:"id"`
	AgentID        string        `json:"agent_id"`
	Status         RequestStatus `json:"status"`
	Summary        string        `json:"summary"`
	Input          ActionInput   `json:"input"`
	ReasoningTrace string        `json:"reasoning_trace,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CanTransitionTo reports whether moving from the request's current status
// to next is a legal state-machine edge.
func (r *ActionRequest) CanTransitionTo(next RequestStatus) error {
	for _, allowed := range nextAllowed[r.Status] {
		if allowed == next {
			return nil
		}
	}
	if _, ok := nextAllowed[r.Status]; !ok {
		return ErrTerminalStatus
	}
	return ErrInvalidTransition
}
