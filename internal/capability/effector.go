// Package capability defines the effector plugin boundary: the interface
// every capability type implements, the registry that holds the
// single-instance set of built-ins, and the built-in effectors themselves.
package capability

import (
	"context"

	"github.com/actionhost/agentgate/internal/domain"
)

// Context carries everything an effector needs to validate, preview, or run
// a step, without reaching into global state.
type Context struct {
	AllowedRoots    []string
	ShellAllowList  []string
	SafeModeEnabled bool
	AgentID         string
	RequestID       string
}

// ValidationResult is the outcome of validateRequest.
type ValidationResult struct {
	Valid             bool
	Errors            []string
	NormalizedRequest map[string]interface{}
}

// DryRunResult is the outcome of dryRun: the concrete steps an execute
// would take, plus the plan-level risk score computed over them.
type DryRunResult struct {
	Steps     []domain.PlanStep
	RiskScore int
}

// Effector is the plugin contract every capability type implements.
type Effector interface {
	// Type identifies which CapabilityType this effector serves.
	Type() domain.CapabilityType

	// ValidateRequest checks a raw param map for structural validity and
	// returns a normalized copy free of the registry/store dependency.
	ValidateRequest(params map[string]interface{}) ValidationResult

	// DryRun produces the concrete steps that Execute would perform,
	// without performing any of the underlying side effects (beyond
	// read-only inspection needed to build a preview/diff).
	DryRun(ctx context.Context, ectx Context, normalized map[string]interface{}) (DryRunResult, error)

	// Execute carries out an already-approved, hash-verified set of steps.
	Execute(ctx context.Context, ectx Context, steps []domain.PlanStep) ([]domain.StepResult, error)

	// DefaultConfig returns the zero-value per-agent configuration for
	// this capability, used when an admin grants it without overrides.
	DefaultConfig() map[string]interface{}
}
