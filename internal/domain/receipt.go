package domain

import "time"

// ReceiptStatus summarizes how an executed plan went.
type ReceiptStatus string

const (
	ReceiptSuccess        ReceiptStatus = "success"
	ReceiptFailure        ReceiptStatus = "failure"
	ReceiptPartialFailure ReceiptStatus = "partial_failure"
)

// StepResult is one step's outcome from a plan execution.
type StepResult struct {
	StepID    string    `json:"stepId"`
	Status    string    `json:"status"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionReceipt is the permanent record of what actually happened when a
// plan ran. Once written it is never mutated.
type ExecutionReceipt struct {
	ID         string        `json:"id"`
	PlanID     string        `json:"plan_id"`
	Status     ReceiptStatus `json:"status"`
	Logs       []StepResult  `json:"logs"`
	ExecutedAt time.Time     `json:"executed_at"`
}
