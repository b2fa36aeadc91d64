package capability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/actionhost/agentgate/internal/domain"
)

// EchoEffector is test-only scaffolding: it always produces a single
// zero-risk step that echoes back its input message.
type EchoEffector struct{}

// NewEchoEffector constructs the echo effector.
func NewEchoEffector() *EchoEffector { return &EchoEffector{} }

func (e *EchoEffector) Type() domain.CapabilityType { return domain.CapabilityEcho }

func (e *EchoEffector) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{}
}

func (e *EchoEffector) ValidateRequest(params map[string]interface{}) ValidationResult {
	message, ok := strParam(params, "message")
	if !ok {
		return ValidationResult{Valid: false, Errors: []string{"missing required field: message"}}
	}
	return ValidationResult{Valid: true, NormalizedRequest: map[string]interface{}{"message": message}}
}

func (e *EchoEffector) DryRun(_ context.Context, _ Context, req map[string]interface{}) (DryRunResult, error) {
	message, _ := req["message"].(string)
	step := domain.PlanStep{
		StepID:      uuid.NewString(),
		Type:        domain.StepEcho,
		Description: "echo " + message,
		Inputs:      map[string]interface{}{"message": message},
		RiskScore:   0,
	}
	return DryRunResult{Steps: []domain.PlanStep{step}}, nil
}

func (e *EchoEffector) Execute(_ context.Context, _ Context, steps []domain.PlanStep) ([]domain.StepResult, error) {
	now := time.Now().UTC()
	results := make([]domain.StepResult, 0, len(steps))
	for _, step := range steps {
		message, _ := step.Inputs["message"].(string)
		results = append(results, domain.StepResult{StepID: step.StepID, Status: "success", Output: message, Timestamp: now})
	}
	return results, nil
}
