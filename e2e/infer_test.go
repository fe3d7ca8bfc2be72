package e2e

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/usefulness/keeper/internal/classfile/classtest"
)

var (
	prodBase = classtest.Class{
		Name:    "prod/Base",
		Methods: []classtest.Method{{Name: "helper", Descriptor: "()V"}},
	}
	prodBar = classtest.Class{Name: "prod/Bar", Super: "prod/Base"}
	fooTest = classtest.Class{
		Name: "test/FooTest",
		Methods: []classtest.Method{{Name: "check", Descriptor: "()V", Code: []classtest.Insn{
			classtest.InvokeVirtual("prod/Bar", "helper", "()V"),
		}}},
	}
)

const expectedRules = `-keep class prod.Bar
-keep class prod.Base {
  void helper();
}
`

func TestInferWritesRulesAndVerifies(t *testing.T) {
	t.Parallel()

	repoRoot, binaryPath := buildCLIBinary(t, "")
	work := t.TempDir()
	roots := classtest.WriteJar(t, filepath.Join(work, "test.jar"), fooTest)
	targets := classtest.WriteJar(t, filepath.Join(work, "app.jar"), prodBase, prodBar)
	out := filepath.Join(work, "keeper.pro")

	stdout, _, err := runCLI(t, binaryPath, repoRoot,
		"infer", "--roots", roots, "--targets", targets, "--out", out, "-o", "json")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("rule file missing: %v", err)
	}
	if string(got) != expectedRules {
		t.Fatalf("unexpected rules:\n%s", got)
	}

	var summary struct {
		Output  string `json:"output"`
		Written bool   `json:"written"`
	}
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if !summary.Written || summary.Output != out {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	expected := filepath.Join(work, "expected.pro")
	if err := os.WriteFile(expected, []byte(expectedRules), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, binaryPath, repoRoot, "verify", "--expected", expected, "--actual", out); err != nil {
		t.Fatalf("verify should pass: %v", err)
	}

	if err := os.WriteFile(expected, []byte("-keep class prod.Other\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err = runCLI(t, binaryPath, repoRoot, "verify", "--expected", expected, "--actual", out)
	if err == nil {
		t.Fatal("verify should fail on differing rules")
	}
	if !strings.Contains(stdout, "+-keep class prod.Bar") || !strings.Contains(stdout, "--keep class prod.Other") {
		t.Fatalf("expected a unified diff, got:\n%s", stdout)
	}
}

func TestInferStrictFailsOnUnresolved(t *testing.T) {
	t.Parallel()

	repoRoot, binaryPath := buildCLIBinary(t, "")
	work := t.TempDir()
	roots := classtest.WriteDir(t, filepath.Join(work, "test-classes"), fooTest)
	targets := classtest.WriteJar(t, filepath.Join(work, "app.jar"), classtest.Class{Name: "prod/Base"}, prodBar)
	out := filepath.Join(work, "keeper.pro")

	stdout, stderr, err := runCLI(t, binaryPath, repoRoot,
		"infer", "--roots", roots, "--targets", targets, "--out", out, "--strict")
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected a non-zero exit, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("strict failure must not write %s", out)
	}
	if !strings.Contains(stdout+stderr, "prod.Bar#helper()") {
		t.Fatalf("unresolved symbol not reported:\n%s\n%s", stdout, stderr)
	}
}
