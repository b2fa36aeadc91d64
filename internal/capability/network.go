package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/actionhost/agentgate/internal/domain"
)

// NetworkEffector implements `allow`: it records an intent to permit
// outbound traffic to a set of domains. It is advisory only — no firewall
// or network policy is actually changed, by explicit design.
type NetworkEffector struct{}

// NewNetworkEffector constructs the network effector.
func NewNetworkEffector() *NetworkEffector { return &NetworkEffector{} }

func (e *NetworkEffector) Type() domain.CapabilityType { return domain.CapabilityNetwork }

func (e *NetworkEffector) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{}
}

func (e *NetworkEffector) ValidateRequest(params map[string]interface{}) ValidationResult {
	domains, ok := stringSliceParam(params, "domains")
	if !ok || len(domains) == 0 {
		return ValidationResult{Valid: false, Errors: []string{"missing required field: domains"}}
	}
	purpose, _ := strParam(params, "purpose")
	return ValidationResult{
		Valid:             true,
		NormalizedRequest: map[string]interface{}{"domains": domains, "purpose": purpose},
	}
}

func (e *NetworkEffector) DryRun(_ context.Context, _ Context, req map[string]interface{}) (DryRunResult, error) {
	domains, _ := stringSliceParam(req, "domains")
	purpose, _ := req["purpose"].(string)

	step := domain.PlanStep{
		StepID:      uuid.NewString(),
		Type:        domain.StepNetAllow,
		Description: fmt.Sprintf("allow network access to %v", domains),
		Inputs:      map[string]interface{}{"domains": domains, "purpose": purpose},
	}
	return DryRunResult{Steps: []domain.PlanStep{step}}, nil
}

func (e *NetworkEffector) Execute(_ context.Context, _ Context, steps []domain.PlanStep) ([]domain.StepResult, error) {
	now := time.Now().UTC()
	results := make([]domain.StepResult, 0, len(steps))
	for _, step := range steps {
		domains := step.Inputs["domains"]
		results = append(results, domain.StepResult{
			StepID:    step.StepID,
			Status:    "success",
			Output:    fmt.Sprintf("recorded advisory network allow intent for %v (no firewall change made)", domains),
			Timestamp: now,
		})
	}
	return results, nil
}
