package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/actionhost/agentgate/internal/domain"
)

const readPreviewCap = 1000

// FilesystemEffector implements read/write/delete/list/move, gated by an
// allowed-roots prefix check and, for destructive operations, safe mode.
type FilesystemEffector struct{}

// NewFilesystemEffector constructs the filesystem effector.
func NewFilesystemEffector() *FilesystemEffector { return &FilesystemEffector{} }

func (e *FilesystemEffector) Type() domain.CapabilityType { return domain.CapabilityFilesystem }

func (e *FilesystemEffector) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{}
}

func (e *FilesystemEffector) ValidateRequest(params map[string]interface{}) ValidationResult {
	op, _ := params["operation"].(string)
	var errs []string

	switch op {
	case "move":
		if _, ok := strParam(params, "from"); !ok {
			errs = append(errs, "missing required field: from")
		}
		if _, ok := strParam(params, "to"); !ok {
			errs = append(errs, "missing required field: to")
		}
	case "write":
		if _, ok := strParam(params, "path"); !ok {
			errs = append(errs, "missing required field: path")
		}
		if _, ok := strParam(params, "content"); !ok {
			errs = append(errs, "missing required field: content")
		}
	case "read", "delete", "list":
		if _, ok := strParam(params, "path"); !ok {
			errs = append(errs, "missing required field: path")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown filesystem operation: %q", op))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, NormalizedRequest: params}
}

// isPathAllowed reports whether p resolves, after following symlinks where
// possible, to a location under one of roots.
func isPathAllowed(p string, roots []string) bool {
	resolved := resolveAbsolute(p)
	for _, r := range roots {
		if withinRoot(resolved, resolveAbsolute(r)) {
			return true
		}
	}
	return false
}

func withinRoot(resolved, root string) bool {
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !hasDotDotPrefix(rel))
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// resolveAbsolute makes p absolute and resolves symlinks along the way,
// falling back to the plain absolute path (e.g. for not-yet-existing
// write/delete targets) when symlink evaluation fails.
func resolveAbsolute(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	// Target may not exist yet (write/delete of a new path); resolve the
	// parent directory instead and re-append the base name.
	parent := filepath.Dir(abs)
	if resolvedParent, err := filepath.EvalSymlinks(parent); err == nil {
		return filepath.Join(resolvedParent, filepath.Base(abs))
	}
	return abs
}

func deniedStep(op string, path string) domain.PlanStep {
	return domain.PlanStep{
		StepID:      uuid.NewString(),
		Type:        fsStepType(op),
		Description: fmt.Sprintf("%s %s", op, path),
		Inputs:      map[string]interface{}{"path": path},
		RiskFlags:   []string{"path_denied"},
		RiskScore:   50,
	}
}

func fsStepType(op string) domain.StepType {
	switch op {
	case "read":
		return domain.StepFSRead
	case "write":
		return domain.StepFSWrite
	case "delete":
		return domain.StepFSDelete
	case "list":
		return domain.StepFSList
	case "move":
		return domain.StepFSMove
	default:
		return domain.StepFSRead
	}
}

func (e *FilesystemEffector) DryRun(_ context.Context, ectx Context, req map[string]interface{}) (DryRunResult, error) {
	op, _ := req["operation"].(string)

	switch op {
	case "move":
		from, _ := strParam(req, "from")
		to, _ := strParam(req, "to")
		if !isPathAllowed(from, ectx.AllowedRoots) || !isPathAllowed(to, ectx.AllowedRoots) {
			path := from
			if isPathAllowed(from, ectx.AllowedRoots) {
				path = to
			}
			return DryRunResult{Steps: []domain.PlanStep{deniedStep("move", path)}}, nil
		}
		step := domain.PlanStep{
			StepID:      uuid.NewString(),
			Type:        domain.StepFSMove,
			Description: fmt.Sprintf("move %s -> %s", from, to),
			Inputs:      map[string]interface{}{"from": from, "to": to},
		}
		applySafeModeFlag(&step, ectx.SafeModeEnabled)
		return DryRunResult{Steps: []domain.PlanStep{step}}, nil

	case "write":
		path, _ := strParam(req, "path")
		content, _ := strParam(req, "content")
		if !isPathAllowed(path, ectx.AllowedRoots) {
			return DryRunResult{Steps: []domain.PlanStep{deniedStep("write", path)}}, nil
		}
		step := domain.PlanStep{
			StepID:      uuid.NewString(),
			Type:        domain.StepFSWrite,
			Description: fmt.Sprintf("write %s", path),
			Inputs:      map[string]interface{}{"path": path, "content": content},
			Diff:        buildDiff(path, content),
		}
		applySafeModeFlag(&step, ectx.SafeModeEnabled)
		return DryRunResult{Steps: []domain.PlanStep{step}}, nil

	case "delete":
		path, _ := strParam(req, "path")
		if !isPathAllowed(path, ectx.AllowedRoots) {
			return DryRunResult{Steps: []domain.PlanStep{deniedStep("delete", path)}}, nil
		}
		inputs := map[string]interface{}{"path": path}
		if fileCount, ok := countDeleteTargets(path); ok {
			inputs["fileCount"] = fileCount
		}
		step := domain.PlanStep{
			StepID:      uuid.NewString(),
			Type:        domain.StepFSDelete,
			Description: fmt.Sprintf("delete %s", path),
			Inputs:      inputs,
		}
		applySafeModeFlag(&step, ectx.SafeModeEnabled)
		return DryRunResult{Steps: []domain.PlanStep{step}}, nil

	case "read":
		path, _ := strParam(req, "path")
		if !isPathAllowed(path, ectx.AllowedRoots) {
			return DryRunResult{Steps: []domain.PlanStep{deniedStep("read", path)}}, nil
		}
		step := domain.PlanStep{
			StepID:      uuid.NewString(),
			Type:        domain.StepFSRead,
			Description: fmt.Sprintf("read %s", path),
			Inputs:      map[string]interface{}{"path": path},
		}
		return DryRunResult{Steps: []domain.PlanStep{step}}, nil

	case "list":
		path, _ := strParam(req, "path")
		if !isPathAllowed(path, ectx.AllowedRoots) {
			return DryRunResult{Steps: []domain.PlanStep{deniedStep("list", path)}}, nil
		}
		step := domain.PlanStep{
			StepID:      uuid.NewString(),
			Type:        domain.StepFSList,
			Description: fmt.Sprintf("list %s", path),
			Inputs:      map[string]interface{}{"path": path},
		}
		return DryRunResult{Steps: []domain.PlanStep{step}}, nil

	default:
		return DryRunResult{}, fmt.Errorf("unknown filesystem operation: %q", op)
	}
}

// countDeleteTargets reports how many filesystem entries a delete of path
// would remove: 1 for a regular file, the number of entries in the tree
// (including path itself) for a directory. Missing or unreadable paths
// report nothing (ok=false), and no fileCount is set for them.
func countDeleteTargets(path string) (int, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, false
	}
	if !info.IsDir() {
		return 1, true
	}
	count := 0
	err = filepath.WalkDir(path, func(_ string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, false
	}
	return count, true
}

func applySafeModeFlag(step *domain.PlanStep, safeMode bool) {
	if !safeMode {
		return
	}
	switch step.Type {
	case domain.StepFSWrite, domain.StepFSDelete, domain.StepFSMove:
		step.RiskFlags = append(step.RiskFlags, "blocked_by_safe_mode")
	}
}

func buildDiff(path, newContent string) string {
	existing, err := os.ReadFile(path)
	before := ""
	if err == nil {
		before = string(existing)
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(newContent),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func isSafeModeBlocked(step domain.PlanStep) bool {
	for _, f := range step.RiskFlags {
		if f == "blocked_by_safe_mode" {
			return true
		}
	}
	return false
}

func (e *FilesystemEffector) Execute(_ context.Context, ectx Context, steps []domain.PlanStep) ([]domain.StepResult, error) {
	results := make([]domain.StepResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, e.executeStep(step, ectx))
	}
	return results, nil
}

func (e *FilesystemEffector) executeStep(step domain.PlanStep, ectx Context) domain.StepResult {
	now := time.Now().UTC()
	if isSafeModeBlocked(step) {
		return domain.StepResult{StepID: step.StepID, Status: "blocked", Error: "blocked by safe mode", Timestamp: now}
	}
	if hasFlag(step, "path_denied") {
		return domain.StepResult{StepID: step.StepID, Status: "blocked", Error: "path outside allowed roots", Timestamp: now}
	}

	switch step.Type {
	case domain.StepFSRead:
		path, _ := step.Inputs["path"].(string)
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		output := string(data)
		if len(output) > readPreviewCap {
			output = output[:readPreviewCap]
		}
		return domain.StepResult{StepID: step.StepID, Status: "success", Output: output, Timestamp: now}

	case domain.StepFSWrite:
		path, _ := step.Inputs["path"].(string)
		content, _ := step.Inputs["content"].(string)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		return domain.StepResult{StepID: step.StepID, Status: "success", Output: fmt.Sprintf("wrote %d bytes", len(content)), Timestamp: now}

	case domain.StepFSDelete:
		path, _ := step.Inputs["path"].(string)
		if err := os.RemoveAll(path); err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		return domain.StepResult{StepID: step.StepID, Status: "success", Output: fmt.Sprintf("deleted %s", path), Timestamp: now}

	case domain.StepFSMove:
		from, _ := step.Inputs["from"].(string)
		to, _ := step.Inputs["to"].(string)
		if err := os.Rename(from, to); err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		return domain.StepResult{StepID: step.StepID, Status: "success", Output: fmt.Sprintf("moved %s -> %s", from, to), Timestamp: now}

	case domain.StepFSList:
		path, _ := step.Inputs["path"].(string)
		entries, err := os.ReadDir(path)
		if err != nil {
			return domain.StepResult{StepID: step.StepID, Status: "failed", Error: err.Error(), Timestamp: now}
		}
		names := make([]string, 0, len(entries))
		for _, ent := range entries {
			names = append(names, ent.Name())
		}
		return domain.StepResult{StepID: step.StepID, Status: "success", Output: fmt.Sprintf("%v", names), Timestamp: now}

	default:
		return domain.StepResult{StepID: step.StepID, Status: "failed", Error: "unsupported step type for filesystem effector", Timestamp: now}
	}
}

func strParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
