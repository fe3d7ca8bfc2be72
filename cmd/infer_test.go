package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usefulness/keeper/internal/config"
	"github.com/usefulness/keeper/internal/diagnostics"
)

func newInferCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "infer"}
	registerInferFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestSplitPathsExpandsListsAndAbsolutizes(t *testing.T) {
	list := strings.Join([]string{"a.jar", " ", "dir/b.jar"}, string(os.PathListSeparator))
	got, err := splitPaths([]string{list, "c.jar"})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(wd, "a.jar"),
		filepath.Join(wd, "dir", "b.jar"),
		filepath.Join(wd, "c.jar"),
	}, got)
}

func TestBuildRequestFlagsOverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Inference.Exclude = []string{"**/from-config/**"}
	cfg.Inference.Library = []string{"android.jar"}
	cfg.Inference.Workers = 2
	cfg.Inference.Timeout = time.Minute
	cfg.Output.ExtraRuleFiles = []string{"config.pro"}

	cmd := newInferCommand(t,
		"--roots", "test.jar", "--targets", "app.jar",
		"--exclude", "**/flag/**", "--strict", "--workers", "8",
		"--extra-rules", "flag.pro", "--allow-obfuscation")

	req, err := buildRequest(cmd, cfg)
	require.NoError(t, err)

	assert.Equal(t, diagnostics.PolicyStrict, req.Policy)
	assert.Equal(t, []string{"**/flag/**"}, req.Exclude)
	assert.Equal(t, 8, req.Workers)
	assert.True(t, req.AllowObfuscation)
	assert.Equal(t, []string{"config.pro", "flag.pro"}, req.ExtraRuleFiles)
	require.Len(t, req.Library, 1)
	assert.Equal(t, "android.jar", filepath.Base(req.Library[0]))
	assert.True(t, filepath.IsAbs(req.Roots[0]))
}

func TestBuildRequestUsesConfigDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.DebugDir = "build/keeper"

	req, err := buildRequest(newInferCommand(t, "--roots", "test.jar", "--targets", "app.jar"), cfg)
	require.NoError(t, err)
	assert.Equal(t, diagnostics.PolicyPermissive, req.Policy)
	assert.Equal(t, "build/keeper", req.DebugDir)
	assert.Empty(t, req.Library)
}

func TestBuildRequestRejectsBadInput(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := buildRequest(newInferCommand(t, "--roots", "test.jar"), cfg)
	assert.ErrorContains(t, err, "--targets")

	_, err = buildRequest(newInferCommand(t, "--roots", "test.jar", "--targets", "app.jar", "--policy", "lenient"), cfg)
	assert.ErrorContains(t, err, `unknown policy "lenient"`)
}
