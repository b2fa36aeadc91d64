package capability

import (
	"context"
	"testing"
)

func TestShellDryRunAllowlisted(t *testing.T) {
	eff := NewShellEffector()
	ectx := Context{AllowedRoots: []string{"/tmp"}, ShellAllowList: []string{"^ls.*"}}

	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"command": "ls",
		"args":    []string{"-la"},
		"cwd":     "/tmp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	if hasFlag(result.Steps[0], "command_not_allowed") {
		t.Fatal("expected allowlisted command to not carry command_not_allowed")
	}
}

func TestShellDryRunRejectsCwdOutsideRoots(t *testing.T) {
	eff := NewShellEffector()
	ectx := Context{AllowedRoots: []string{"/tmp/sbx"}, ShellAllowList: []string{".*"}}

	_, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"command": "ls",
		"cwd":     "/etc",
	})
	if err == nil {
		t.Fatal("expected error for cwd outside allowed roots")
	}
}

func TestShellDryRunFlagsDisallowedCommand(t *testing.T) {
	eff := NewShellEffector()
	ectx := Context{AllowedRoots: []string{"/tmp"}, ShellAllowList: []string{"^ls.*"}}

	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"command": "rm",
		"args":    []string{"-rf", "/"},
		"cwd":     "/tmp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	step := result.Steps[0]
	if !hasFlag(step, "command_not_allowed") {
		t.Fatalf("expected command_not_allowed flag, got %v", step.RiskFlags)
	}
	if step.RiskScore < 80 || step.RiskScore > 100 {
		t.Fatalf("expected risk score in [80,100], got %d", step.RiskScore)
	}
}

func TestShellExecuteSuccess(t *testing.T) {
	eff := NewShellEffector()
	ectx := Context{AllowedRoots: []string{"/tmp"}, ShellAllowList: []string{"^echo.*"}}

	dr, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"command": "echo",
		"args":    []string{"hi"},
		"cwd":     "/tmp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := eff.Execute(context.Background(), ectx, dr.Steps)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if results[0].Status != "success" {
		t.Fatalf("expected success, got %s: %s", results[0].Status, results[0].Error)
	}
}
