// Package orchestrator implements the six operations that move an
// ActionRequest through the plan lifecycle: createRequest, dryRun,
// approvePlan, executePlan, setSafeMode, and emergencyLockdown. It is the
// one place canon, risk, capability, audit, and store come together.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/apierr"
	"github.com/actionhost/agentgate/internal/audit"
	"github.com/actionhost/agentgate/internal/canon"
	"github.com/actionhost/agentgate/internal/capability"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/risk"
	"github.com/actionhost/agentgate/internal/store"
	"github.com/actionhost/agentgate/internal/telemetry"
)

// RateLimiter is the policy collaborator createRequest consults before
// persisting a new request.
type RateLimiter interface {
	Allow(agentID string) bool
}

// Orchestrator wires the store, effector registry, audit log, and rate
// limiter together behind the six domain operations.
type Orchestrator struct {
	store    store.Store
	registry *capability.Registry
	auditLog *audit.Log
	limiter  RateLimiter
	log      *zap.Logger
	metrics  *telemetry.Metrics
}

// New constructs an Orchestrator.
func New(st store.Store, registry *capability.Registry, auditLog *audit.Log, limiter RateLimiter, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: st, registry: registry, auditLog: auditLog, limiter: limiter, log: log}
}

// WithMetrics attaches the Prometheus metric bundle createRequest and dryRun
// record against. A nil Orchestrator metrics field is valid and simply skips
// recording, so tests can construct an Orchestrator without a registry.
func (o *Orchestrator) WithMetrics(metrics *telemetry.Metrics) *Orchestrator {
	o.metrics = metrics
	return o
}

// effectorContext builds a capability.Context from the currently persisted
// settings.
func (o *Orchestrator) effectorContext(ctx context.Context, agentID, requestID string) (capability.Context, error) {
	allowedRoots, err := o.settingStringSlice(ctx, domain.SettingAllowedRoots)
	if err != nil {
		return capability.Context{}, err
	}
	shellAllowList, err := o.settingStringSlice(ctx, domain.SettingShellAllowlist)
	if err != nil {
		return capability.Context{}, err
	}
	safeMode, err := o.settingBool(ctx, domain.SettingSafeMode)
	if err != nil {
		return capability.Context{}, err
	}
	return capability.Context{
		AllowedRoots:    allowedRoots,
		ShellAllowList:  shellAllowList,
		SafeModeEnabled: safeMode,
		AgentID:         agentID,
		RequestID:       requestID,
	}, nil
}

func (o *Orchestrator) settingStringSlice(ctx context.Context, key string) ([]string, error) {
	s, err := o.store.GetSetting(ctx, key)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.Internal, "load setting "+key, err)
	}
	raw, ok := s.Value.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func (o *Orchestrator) settingBool(ctx context.Context, key string) (bool, error) {
	s, err := o.store.GetSetting(ctx, key)
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, apierr.Wrap(apierr.Internal, "load setting "+key, err)
	}
	b, _ := s.Value.(bool)
	return b, nil
}

// CreateRequest implements createRequest(agentId, action).
func (o *Orchestrator) CreateRequest(ctx context.Context, agentID string, input domain.ActionInput) (string, error) {
	agentCap, err := o.store.GetCapability(ctx, agentID, input.Type)
	if err != nil || !agentCap.Enabled {
		return "", apierr.New(apierr.Authorization, fmt.Sprintf("capability %q is not enabled for this agent", input.Type))
	}

	plugin, ok := o.registry.Get(input.Type)
	if !ok {
		return "", apierr.New(apierr.Validation, fmt.Sprintf("no effector registered for capability %q", input.Type))
	}

	if o.limiter != nil && !o.limiter.Allow(agentID) {
		return "", apierr.New(apierr.RateLimit, "agent is rate-limited")
	}

	validation := plugin.ValidateRequest(withOperation(input.Params, input.Operation))
	if !validation.Valid {
		o.recordRequestMetric(input.Type, "rejected")
		return "", apierr.New(apierr.Validation, fmt.Sprintf("invalid action parameters: %v", validation.Errors))
	}

	now := time.Now().UTC()
	req := domain.ActionRequest{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Status:    domain.RequestPending,
		Summary:   fmt.Sprintf("%s %s", input.Type, input.Operation),
		Input:     input,
		CreatedAt: now,
	}
	if err := o.store.CreateRequest(ctx, req); err != nil {
		return "", apierr.Wrap(apierr.Internal, "persist request", err)
	}

	if _, err := o.auditLog.Append(ctx, audit.EventRequestCreated, map[string]interface{}{
		"requestId": req.ID, "agentId": agentID, "type": input.Type, "operation": input.Operation,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err), zap.String("requestId", req.ID))
	}

	o.recordRequestMetric(input.Type, "created")
	return req.ID, nil
}

func (o *Orchestrator) recordRequestMetric(capType domain.CapabilityType, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.RequestsTotal.WithLabelValues(string(capType), outcome).Inc()
}

// DryRun implements dryRun(agentId, requestId).
func (o *Orchestrator) DryRun(ctx context.Context, agentID, requestID string) (domain.Plan, risk.Summary, error) {
	req, err := o.store.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.New(apierr.NotFound, "request not found")
	}
	if req.AgentID != agentID {
		return domain.Plan{}, risk.Summary{}, apierr.New(apierr.Authorization, "request belongs to a different agent")
	}
	if err := req.CanTransitionTo(domain.RequestPlanned); err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.Wrap(apierr.State, "request cannot be dry-run from its current status", err)
	}

	plugin, ok := o.registry.Get(req.Input.Type)
	if !ok {
		return domain.Plan{}, risk.Summary{}, apierr.New(apierr.Validation, "no effector registered for this capability")
	}
	validation := plugin.ValidateRequest(withOperation(req.Input.Params, req.Input.Operation))
	if !validation.Valid {
		return domain.Plan{}, risk.Summary{}, apierr.New(apierr.Validation, fmt.Sprintf("invalid action parameters: %v", validation.Errors))
	}

	ectx, err := o.effectorContext(ctx, agentID, requestID)
	if err != nil {
		return domain.Plan{}, risk.Summary{}, err
	}

	dryRunResult, err := plugin.DryRun(ctx, ectx, validation.NormalizedRequest)
	if err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.Wrap(apierr.Validation, "dry run failed", err)
	}

	steps := make([]domain.PlanStep, len(dryRunResult.Steps))
	for i, step := range dryRunResult.Steps {
		if !hasOverrideFlag(step) {
			scored := risk.ScoreStep(step)
			step.RiskScore = scored.Score
			step.RiskFlags = append(step.RiskFlags, scored.Flags...)
		}
		steps[i] = step
	}

	planHash, err := hashSteps(steps)
	if err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.Wrap(apierr.Internal, "hash plan steps", err)
	}
	summary := risk.ScorePlan(steps)

	plan := domain.Plan{
		ID:        uuid.NewString(),
		RequestID: requestID,
		PlanHash:  planHash,
		Steps:     steps,
		RiskScore: summary.TotalRiskScore,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.CreatePlan(ctx, plan); err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.Wrap(apierr.Internal, "persist plan", err)
	}

	if ok, err := o.store.UpdateRequestStatus(ctx, requestID, domain.RequestPending, domain.RequestPlanned); err != nil {
		return domain.Plan{}, risk.Summary{}, apierr.Wrap(apierr.Internal, "transition request to planned", err)
	} else if !ok {
		return domain.Plan{}, risk.Summary{}, apierr.New(apierr.Conflict, "request status changed concurrently")
	}

	if _, err := o.auditLog.Append(ctx, audit.EventDryRunComplete, map[string]interface{}{
		"requestId": requestID, "planId": plan.ID, "riskScore": plan.RiskScore,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err), zap.String("planId", plan.ID))
	}

	if o.metrics != nil {
		o.metrics.RiskScoreHistogram.Observe(float64(plan.RiskScore))
	}

	return plan, summary, nil
}

// withOperation returns a copy of params with "operation" set, so effectors
// can switch on it without the caller having to remember to include it
// alongside the rest of the action's parameters.
func withOperation(params map[string]interface{}, operation string) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["operation"] = operation
	return out
}

// hashSteps is the one place sha256Hex(canonicalJSON(steps)) gets computed,
// so dryRun and executePlan can never drift from each other.
func hashSteps(steps []domain.PlanStep) (string, error) {
	return canon.HashJSON(steps)
}

// hasOverrideFlag reports whether the effector already assigned a final,
// fixed risk score for this step (path_denied, command_not_allowed) that
// scoreStep's table must not overwrite.
func hasOverrideFlag(step domain.PlanStep) bool {
	for _, f := range step.RiskFlags {
		if f == "path_denied" || f == "command_not_allowed" {
			return true
		}
	}
	return false
}

// ApprovePlan implements approvePlan(adminUserId, planId, decision).
func (o *Orchestrator) ApprovePlan(ctx context.Context, adminUserID, planID string, decision domain.Decision) error {
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return apierr.New(apierr.NotFound, "plan not found")
	}

	approval := domain.Approval{
		ID:         uuid.NewString(),
		PlanID:     planID,
		ApprovedBy: adminUserID,
		Decision:   decision,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateApproval(ctx, approval); err != nil {
		if err == domain.ErrAlreadyDecided {
			return apierr.New(apierr.Conflict, "plan already has a decision")
		}
		return apierr.Wrap(apierr.Internal, "persist approval", err)
	}

	next := domain.RequestApproved
	if decision == domain.DecisionRejected {
		next = domain.RequestRejected
	}
	if ok, err := o.store.UpdateRequestStatus(ctx, plan.RequestID, domain.RequestPlanned, next); err != nil {
		return apierr.Wrap(apierr.Internal, "transition request", err)
	} else if !ok {
		return apierr.New(apierr.Conflict, "request status changed concurrently")
	}

	if _, err := o.auditLog.Append(ctx, audit.EventPlanDecision, map[string]interface{}{
		"planId": planID, "decision": decision, "approvedBy": adminUserID,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err), zap.String("planId", planID))
	}
	return nil
}

// ExecutePlan implements executePlan(agentId, planId).
func (o *Orchestrator) ExecutePlan(ctx context.Context, agentID, planID string) (domain.ExecutionReceipt, error) {
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return domain.ExecutionReceipt{}, apierr.New(apierr.NotFound, "plan not found")
	}
	req, err := o.store.GetRequest(ctx, plan.RequestID)
	if err != nil {
		return domain.ExecutionReceipt{}, apierr.New(apierr.NotFound, "request not found")
	}
	if req.AgentID != agentID {
		return domain.ExecutionReceipt{}, apierr.New(apierr.Authorization, "plan belongs to a different agent")
	}
	if req.Status != domain.RequestApproved {
		return domain.ExecutionReceipt{}, apierr.New(apierr.State, "request is not approved")
	}

	recomputed, err := hashSteps(plan.Steps)
	if err != nil {
		return domain.ExecutionReceipt{}, apierr.Wrap(apierr.Internal, "hash plan steps", err)
	}
	if recomputed != plan.PlanHash {
		return domain.ExecutionReceipt{}, apierr.New(apierr.Integrity, "plan hash mismatch — steps were modified after approval")
	}

	plugin, ok := o.registry.Get(req.Input.Type)
	if !ok {
		return domain.ExecutionReceipt{}, apierr.New(apierr.Internal, "no effector registered for this capability")
	}
	ectx, err := o.effectorContext(ctx, agentID, req.ID)
	if err != nil {
		return domain.ExecutionReceipt{}, err
	}

	execStart := time.Now()
	results, execErr := o.safeExecute(ctx, plugin, ectx, plan.Steps)
	if o.metrics != nil {
		o.metrics.EffectorExecDuration.WithLabelValues(string(req.Input.Type)).Observe(time.Since(execStart).Seconds())
	}

	status := domain.ReceiptSuccess
	anySuccess := false
	for _, r := range results {
		if r.Status == "success" {
			anySuccess = true
		} else {
			status = domain.ReceiptPartialFailure
		}
	}
	if !anySuccess && len(results) > 0 {
		status = domain.ReceiptFailure
	}
	if execErr != nil {
		status = domain.ReceiptFailure
	}

	receipt := domain.ExecutionReceipt{
		ID:         uuid.NewString(),
		PlanID:     planID,
		Status:     status,
		Logs:       results,
		ExecutedAt: time.Now().UTC(),
	}
	if err := o.store.CreateReceipt(ctx, receipt); err != nil {
		return domain.ExecutionReceipt{}, apierr.Wrap(apierr.Internal, "persist receipt", err)
	}

	nextStatus := domain.RequestExecuted
	if status == domain.ReceiptFailure {
		nextStatus = domain.RequestFailed
	}
	if _, err := o.store.UpdateRequestStatus(ctx, req.ID, domain.RequestApproved, nextStatus); err != nil {
		o.log.Warn("failed to transition request after execution", zap.Error(err), zap.String("requestId", req.ID))
	}

	if _, err := o.auditLog.Append(ctx, audit.EventPlanExecuted, map[string]interface{}{
		"planId": planID, "requestId": req.ID, "status": status,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err), zap.String("planId", planID))
	}

	return receipt, nil
}

// safeExecute recovers from an effector panic and converts it into one
// failed StepResult per step, per the error-handling design's INTERNAL
// boundary, rather than letting it escape and take the process down.
func (o *Orchestrator) safeExecute(ctx context.Context, plugin capability.Effector, ectx capability.Context, steps []domain.PlanStep) (results []domain.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("effector panicked during execute", zap.Any("panic", r))
			now := time.Now().UTC()
			failed := make([]domain.StepResult, len(steps))
			for i, s := range steps {
				failed[i] = domain.StepResult{StepID: s.StepID, Status: "failed", Error: fmt.Sprintf("internal error: %v", r), Timestamp: now}
			}
			results, err = failed, apierr.New(apierr.Internal, "effector panicked")
		}
	}()
	results, err = plugin.Execute(ctx, ectx, steps)
	return results, err
}

// DefaultCapabilityConfig returns the zero-value per-agent configuration
// an effector would seed a capability grant with when the admin supplies
// no config of their own.
func (o *Orchestrator) DefaultCapabilityConfig(capType domain.CapabilityType) (map[string]interface{}, bool) {
	plugin, ok := o.registry.Get(capType)
	if !ok {
		return nil, false
	}
	return plugin.DefaultConfig(), true
}

// Audit records an event outside the six core lifecycle operations —
// admin login, agent provisioning, capability and setting edits — through
// the same single-writer hash chain those operations use, so the HTTP layer
// never touches auditLog directly.
func (o *Orchestrator) Audit(ctx context.Context, eventType string, data map[string]interface{}) (domain.AuditEvent, error) {
	event, err := o.auditLog.Append(ctx, eventType, data)
	if err != nil {
		o.log.Warn("audit append failed", zap.Error(err), zap.String("eventType", eventType))
	}
	return event, err
}

// SetSafeMode implements setSafeMode(adminUserId, enabled).
func (o *Orchestrator) SetSafeMode(ctx context.Context, adminUserID string, enabled bool) error {
	if err := o.store.SetSetting(ctx, domain.Setting{Key: domain.SettingSafeMode, Value: enabled}); err != nil {
		return apierr.Wrap(apierr.Internal, "persist safe_mode setting", err)
	}
	if _, err := o.auditLog.Append(ctx, audit.EventSafeModeChanged, map[string]interface{}{
		"enabled": enabled, "changedBy": adminUserID,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err))
	}
	return nil
}

// EmergencyLockdown implements emergencyLockdown(adminUserId).
func (o *Orchestrator) EmergencyLockdown(ctx context.Context, adminUserID string) (int, error) {
	if err := o.SetSafeMode(ctx, adminUserID, true); err != nil {
		return 0, err
	}

	agents, err := o.store.ListAgents(ctx)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "list agents", err)
	}

	affected := 0
	for _, a := range agents {
		newKey, err := generateAndHashKey()
		if err != nil {
			return affected, apierr.Wrap(apierr.Internal, "generate replacement key", err)
		}
		if err := o.store.UpdateAgentKeyHash(ctx, a.ID, newKey); err != nil {
			return affected, apierr.Wrap(apierr.Internal, "rotate agent key", err)
		}
		affected++
	}

	if _, err := o.auditLog.Append(ctx, audit.EventEmergencyLockdown, map[string]interface{}{
		"severity":       "critical",
		"agentsAffected": affected,
		"triggeredBy":    adminUserID,
	}); err != nil {
		o.log.Warn("audit append failed", zap.Error(err))
	}

	return affected, nil
}
