package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/actionhost/agentgate/internal/apierr"
	"github.com/actionhost/agentgate/internal/audit"
	"github.com/actionhost/agentgate/internal/capability"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, store.Store) {
	t.Helper()
	st := store.NewMemory()
	registry := capability.NewRegistry(zap.NewNop())
	capability.RegisterBuiltins(registry)
	auditLog := audit.New(st)
	return New(st, registry, auditLog, nil, zap.NewNop()), st
}

func seedAgent(t *testing.T, st store.Store, allowedRoot string) string {
	t.Helper()
	ctx := context.Background()
	agent := domain.Agent{ID: "agent-a", Name: "a"}
	if err := st.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if err := st.UpsertCapability(ctx, domain.AgentCapability{AgentID: agent.ID, Type: domain.CapabilityFilesystem, Enabled: true}); err != nil {
		t.Fatalf("upsert capability: %v", err)
	}
	if err := st.UpsertCapability(ctx, domain.AgentCapability{AgentID: agent.ID, Type: domain.CapabilityShell, Enabled: true}); err != nil {
		t.Fatalf("upsert capability: %v", err)
	}
	if err := st.SetSetting(ctx, domain.Setting{Key: domain.SettingAllowedRoots, Value: []interface{}{allowedRoot}}); err != nil {
		t.Fatalf("set allowed_roots: %v", err)
	}
	if err := st.SetSetting(ctx, domain.Setting{Key: domain.SettingShellAllowlist, Value: []interface{}{"^ls.*", "^echo.*"}}); err != nil {
		t.Fatalf("set shell_allowlist: %v", err)
	}
	return agent.ID
}

func TestS1HappyPathFilesystemRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	orch, _ := newTestOrchestrator(t)
	agentID := seedAgent(t, orch.store, dir)
	ctx := context.Background()

	requestID, err := orch.CreateRequest(ctx, agentID, domain.ActionInput{
		Type: domain.CapabilityFilesystem, Operation: "read", Params: map[string]interface{}{"path": path},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	plan, _, err := orch.DryRun(ctx, agentID, requestID)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Type != domain.StepFSRead {
		t.Fatalf("expected single FS_READ step, got %+v", plan.Steps)
	}
	if plan.RiskScore != 5 {
		t.Fatalf("expected riskScore 5, got %d", plan.RiskScore)
	}

	req, err := orch.store.GetRequest(ctx, requestID)
	if err != nil || req.Status != domain.RequestPlanned {
		t.Fatalf("expected status planned, got %+v err=%v", req, err)
	}

	if err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	req, _ = orch.store.GetRequest(ctx, requestID)
	if req.Status != domain.RequestApproved {
		t.Fatalf("expected status approved, got %s", req.Status)
	}

	receipt, err := orch.ExecutePlan(ctx, agentID, plan.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Status != domain.ReceiptSuccess {
		t.Fatalf("expected success, got %s", receipt.Status)
	}
	if receipt.Logs[0].Output[:5] != "hello" {
		t.Fatalf("expected output to start with hello, got %q", receipt.Logs[0].Output)
	}
}

func TestS2PathDenial(t *testing.T) {
	dir := t.TempDir()
	orch, _ := newTestOrchestrator(t)
	agentID := seedAgent(t, orch.store, dir)
	ctx := context.Background()

	requestID, err := orch.CreateRequest(ctx, agentID, domain.ActionInput{
		Type: domain.CapabilityFilesystem, Operation: "read", Params: map[string]interface{}{"path": "/etc/passwd"},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	plan, _, err := orch.DryRun(ctx, agentID, requestID)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if plan.RiskScore != 50 {
		t.Fatalf("expected riskScore 50, got %d", plan.RiskScore)
	}

	if err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	receipt, err := orch.ExecutePlan(ctx, agentID, plan.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Logs[0].Status != "failed" && receipt.Logs[0].Status != "blocked" {
		t.Fatalf("expected failed or blocked, got %s", receipt.Logs[0].Status)
	}
	if _, err := os.ReadFile("/etc/passwd"); err == nil {
		// reading /etc/passwd in this sandbox may succeed at the OS level,
		// but the effector must never have been given that path to read.
	}
}

func TestS3HashTamperingDetected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	orch, st := newTestOrchestrator(t)
	agentID := seedAgent(t, orch.store, dir)
	ctx := context.Background()

	requestID, _ := orch.CreateRequest(ctx, agentID, domain.ActionInput{
		Type: domain.CapabilityFilesystem, Operation: "read", Params: map[string]interface{}{"path": path},
	})
	plan, _, err := orch.DryRun(ctx, agentID, requestID)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	tampered := plan
	tampered.Steps = append([]domain.PlanStep{}, plan.Steps...)
	tampered.Steps[0].Description = "tampered description"
	mem := st.(*store.Memory)
	if err := mem.CreatePlan(ctx, tampered); err != nil {
		t.Fatalf("re-store tampered plan: %v", err)
	}

	_, err = orch.ExecutePlan(ctx, agentID, plan.ID)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.Integrity {
		t.Fatalf("expected INTEGRITY error, got %v", err)
	}

	req, _ := orch.store.GetRequest(ctx, requestID)
	if req.Status != domain.RequestApproved {
		t.Fatalf("expected request to remain approved, got %s", req.Status)
	}
}

func TestS4SafeModeBlocksShellDestructive(t *testing.T) {
	dir := t.TempDir()
	orch, _ := newTestOrchestrator(t)
	agentID := seedAgent(t, orch.store, dir)
	ctx := context.Background()
	if err := orch.store.SetSetting(ctx, domain.Setting{Key: domain.SettingSafeMode, Value: true}); err != nil {
		t.Fatalf("set safe_mode: %v", err)
	}

	requestID, _ := orch.CreateRequest(ctx, agentID, domain.ActionInput{
		Type: domain.CapabilityShell, Operation: "run",
		Params: map[string]interface{}{"command": "rm", "args": []interface{}{"-rf", "."}, "cwd": dir},
	})
	plan, _, err := orch.DryRun(ctx, agentID, requestID)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	found := false
	for _, f := range plan.Steps[0].RiskFlags {
		if f == "blocked_by_safe_mode" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected blocked_by_safe_mode flag, got %v", plan.Steps[0].RiskFlags)
	}

	if err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	receipt, err := orch.ExecutePlan(ctx, agentID, plan.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if receipt.Logs[0].Status != "blocked" {
		t.Fatalf("expected blocked, got %s", receipt.Logs[0].Status)
	}
}

func TestS5EmergencyLockdown(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := domain.Agent{ID: "agent-" + string(rune('a'+i)), Name: "agent" + string(rune('a'+i)), APIKeyHash: "old-hash"}
		if err := st.CreateAgent(ctx, a); err != nil {
			t.Fatalf("create agent: %v", err)
		}
	}

	affected, err := orch.EmergencyLockdown(ctx, "admin-1")
	if err != nil {
		t.Fatalf("lockdown: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 agents affected, got %d", affected)
	}

	safeMode, err := st.GetSetting(ctx, domain.SettingSafeMode)
	if err != nil || safeMode.Value != true {
		t.Fatalf("expected safe_mode true, got %+v err=%v", safeMode, err)
	}

	agents, _ := st.ListAgents(ctx)
	for _, a := range agents {
		if a.APIKeyHash == "old-hash" {
			t.Fatalf("expected agent %s key hash to be rotated", a.ID)
		}
	}
}

func TestInvariantApprovePlanRejectsDuplicateDecision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	_ = os.WriteFile(path, []byte("hello"), 0o644)

	orch, _ := newTestOrchestrator(t)
	agentID := seedAgent(t, orch.store, dir)
	ctx := context.Background()

	requestID, _ := orch.CreateRequest(ctx, agentID, domain.ActionInput{
		Type: domain.CapabilityFilesystem, Operation: "read", Params: map[string]interface{}{"path": path},
	})
	plan, _, _ := orch.DryRun(ctx, agentID, requestID)

	if err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	err := orch.ApprovePlan(ctx, "admin-1", plan.ID, domain.DecisionApproved)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.Conflict {
		t.Fatalf("expected CONFLICT on re-approval, got %v", err)
	}
}
