package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestIsPathAllowed(t *testing.T) {
	dir := t.TempDir()
	roots := []string{dir}

	if !isPathAllowed(filepath.Join(dir, "x.txt"), roots) {
		t.Fatal("expected path under root to be allowed")
	}
	if isPathAllowed("/etc/passwd", roots) {
		t.Fatal("expected path outside root to be denied")
	}
}

func TestFilesystemDryRunReadDenied(t *testing.T) {
	eff := NewFilesystemEffector()
	result, err := eff.DryRun(context.Background(), Context{AllowedRoots: []string{"/tmp/sbx"}}, map[string]interface{}{
		"operation": "read",
		"path":      "/etc/passwd",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	step := result.Steps[0]
	if step.RiskScore != 50 {
		t.Fatalf("expected riskScore 50 for denied path, got %d", step.RiskScore)
	}
	found := false
	for _, f := range step.RiskFlags {
		if f == "path_denied" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected path_denied flag, got %v", step.RiskFlags)
	}
}

func TestFilesystemExecuteReadSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	eff := NewFilesystemEffector()
	ectx := Context{AllowedRoots: []string{dir}}
	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{"operation": "read", "path": path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := eff.Execute(context.Background(), ectx, result.Steps)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != "success" {
		t.Fatalf("expected success, got %s: %s", results[0].Status, results[0].Error)
	}
	if results[0].Output != "hello" {
		t.Fatalf("expected output 'hello', got %q", results[0].Output)
	}
}

func TestFilesystemDryRunDeleteCountsDirectoryEntries(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bulk")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 12; i++ {
		path := filepath.Join(target, fmt.Sprintf("f%d.txt", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eff := NewFilesystemEffector()
	ectx := Context{AllowedRoots: []string{dir}}
	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"operation": "delete",
		"path":      target,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	fileCount, ok := result.Steps[0].Inputs["fileCount"]
	if !ok {
		t.Fatal("expected fileCount to be populated")
	}
	// target dir itself + 12 files = 13 entries.
	if fileCount != 13 {
		t.Fatalf("expected fileCount 13, got %v", fileCount)
	}
}

func TestFilesystemDryRunDeleteSingleFileCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	eff := NewFilesystemEffector()
	ectx := Context{AllowedRoots: []string{dir}}
	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"operation": "delete",
		"path":      path,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Steps[0].Inputs["fileCount"] != 1 {
		t.Fatalf("expected fileCount 1, got %v", result.Steps[0].Inputs["fileCount"])
	}
}

func TestFilesystemSafeModeBlocksWrite(t *testing.T) {
	dir := t.TempDir()
	eff := NewFilesystemEffector()
	ectx := Context{AllowedRoots: []string{dir}, SafeModeEnabled: true}

	result, err := eff.DryRun(context.Background(), ectx, map[string]interface{}{
		"operation": "write",
		"path":      filepath.Join(dir, "x.txt"),
		"content":   "data",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := eff.Execute(context.Background(), ectx, result.Steps)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if results[0].Status != "blocked" {
		t.Fatalf("expected blocked, got %s", results[0].Status)
	}
}
