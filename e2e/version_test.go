package e2e

import (
	"fmt"
	"strings"
	"testing"
)

func TestVersionFlagOutputsInjectedVersion(t *testing.T) {
	t.Parallel()

	injectedVersion := "e2e-smoke"
	ldflags := fmt.Sprintf("-X github.com/usefulness/keeper/cmd.Version=%s", injectedVersion)
	repoRoot, binaryPath := buildCLIBinary(t, ldflags)

	for _, args := range [][]string{{"--version"}, {"version"}} {
		stdout, _, err := runCLI(t, binaryPath, repoRoot, args...)
		if err != nil {
			t.Fatalf("running %v failed: %v", args, err)
		}
		if !strings.Contains(stdout, injectedVersion) {
			t.Fatalf("expected %v output to contain %q, got: %q", args, injectedVersion, stdout)
		}
	}
}
