package capability

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/reliability"
)

const (
	shellTimeout   = 30 * time.Second
	shellOutputCap = 1 << 20 // 1 MiB
	outputPreview  = 1000
)

var safeModeBaseline = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true,
	"echo": true, "pwd": true, "whoami": true, "date": true,
}

// ShellEffector implements the `run` operation: allowlisted subprocess
// execution under a wall-clock timeout and output cap. Execute runs inside
// a reliability.Wrapper (circuit breaker, one attempt by default). A
// command that fails is reported as a failed StepResult, not as an error,
// so it neither triggers a retry nor counts toward opening the breaker.
type ShellEffector struct {
	reliability *reliability.Wrapper
}

// NewShellEffector constructs the shell effector with its own breaker.
func NewShellEffector() *ShellEffector {
	return &ShellEffector{reliability: reliability.New("shell-effector")}
}

func (e *ShellEffector) Type() domain.CapabilityType { return domain.CapabilityShell }

func (e *ShellEffector) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{}
}

func (e *ShellEffector) ValidateRequest(params map[string]interface{}) ValidationResult {
	command, ok := strParam(params, "command")
	if !ok || command == "" {
		return ValidationResult{Valid: false, Errors: []string{"missing required field: command"}}
	}
	normalized := map[string]interface{}{
		"command": command,
		"args":    argsOf(params),
		"cwd":     cwdOf(params),
	}
	return ValidationResult{Valid: true, NormalizedRequest: normalized}
}

func argsOf(params map[string]interface{}) []string {
	if args, ok := stringSliceParam(params, "args"); ok {
		return args
	}
	return []string{}
}

func cwdOf(params map[string]interface{}) string {
	if cwd, ok := strParam(params, "cwd"); ok && cwd != "" {
		return cwd
	}
	wd, err := filepath.Abs(".")
	if err != nil {
		return "."
	}
	return wd
}

func stringSliceParam(params map[string]interface{}, key string) ([]string, bool) {
	v, ok := params[key]
	if !ok {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func fullCommand(command string, args []string) string {
	return strings.ToLower(strings.TrimSpace(command + " " + strings.Join(args, " ")))
}

func matchesAllowlist(fullCmd string, allowList []string) bool {
	for _, pattern := range allowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(fullCmd) {
			return true
		}
	}
	return false
}

func (e *ShellEffector) DryRun(_ context.Context, ectx Context, req map[string]interface{}) (DryRunResult, error) {
	command, _ := req["command"].(string)
	args, _ := stringSliceParam(req, "args")
	cwd, _ := req["cwd"].(string)

	if !isPathAllowed(cwd, ectx.AllowedRoots) {
		return DryRunResult{}, fmt.Errorf("cwd %q is outside allowed roots", cwd)
	}

	fullCmd := fullCommand(command, args)
	step := domain.PlanStep{
		StepID:      uuid.NewString(),
		Type:        domain.StepShellRun,
		Description: fullCmd,
		Inputs:      map[string]interface{}{"command": command, "args": args, "cwd": cwd},
	}

	base := filepath.Base(command)
	if ectx.SafeModeEnabled && !safeModeBaseline[base] {
		step.RiskFlags = append(step.RiskFlags, "blocked_by_safe_mode")
	}
	if !matchesAllowlist(fullCmd, ectx.ShellAllowList) {
		step.RiskFlags = append(step.RiskFlags, "command_not_allowed", "would_be_blocked")
		step.RiskScore = 90
	}

	return DryRunResult{Steps: []domain.PlanStep{step}}, nil
}

func (e *ShellEffector) Execute(ctx context.Context, ectx Context, steps []domain.PlanStep) ([]domain.StepResult, error) {
	return reliability.Do(e.reliability, func() ([]domain.StepResult, error) {
		return e.executeAll(ctx, ectx, steps), nil
	})
}

func (e *ShellEffector) executeAll(ctx context.Context, ectx Context, steps []domain.PlanStep) []domain.StepResult {
	results := make([]domain.StepResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, e.executeStep(ctx, step, ectx))
	}
	return results
}

func (e *ShellEffector) executeStep(ctx context.Context, step domain.PlanStep, ectx Context) domain.StepResult {
	now := time.Now().UTC()
	if isSafeModeBlocked(step) || hasFlag(step, "command_not_allowed") {
		return domain.StepResult{StepID: step.StepID, Status: "blocked", Error: "blocked by policy", Timestamp: now}
	}

	command, _ := step.Inputs["command"].(string)
	args, _ := stringSliceParam(step.Inputs, "args")
	cwd, _ := step.Inputs["cwd"].(string)

	runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &boundedWriter{buf: &stdout, limit: shellOutputCap}
	cmd.Stderr = &boundedWriter{buf: &stderr, limit: shellOutputCap}

	err := cmd.Run()
	outStr := truncate(stdout.String(), outputPreview)
	errStr := truncate(stderr.String(), outputPreview)

	if runCtx.Err() == context.DeadlineExceeded {
		return domain.StepResult{StepID: step.StepID, Status: "failed", Error: "command timed out after 30s", Stdout: outStr, Stderr: errStr, Timestamp: now}
	}
	if err != nil {
		return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Stdout: outStr, Stderr: errStr, Timestamp: now}
	}
	return domain.StepResult{StepID: step.StepID, Status: "success", Output: outStr, Stdout: outStr, Stderr: errStr, Timestamp: now}
}

func hasFlag(step domain.PlanStep, flag string) bool {
	for _, f := range step.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// boundedWriter caps how much a subprocess can write into buf; beyond the
// limit, further bytes are silently dropped rather than growing memory
// unbounded on a runaway process.
type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}
