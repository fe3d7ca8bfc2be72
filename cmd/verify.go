package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

// ErrRulesDiffer is returned when verify finds a difference.
var ErrRulesDiffer = errors.New("rule files differ")

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare an inferred rule file with an expected one",
	Long: `Verify prints a unified diff between the expected and the actual rule file and
fails when they differ. Use it to pin the rules a project is known to need.

Example usage:
  keeper verify --expected expectedRules.pro --actual build/keeper.pro`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("expected", "", "Rule file with the expected content")
	verifyCmd.Flags().String("actual", "", "Rule file produced by keeper infer")
	_ = verifyCmd.MarkFlagRequired("expected")
	_ = verifyCmd.MarkFlagRequired("actual")
}

func runVerify(cmd *cobra.Command, args []string) error {
	expectedPath, _ := cmd.Flags().GetString("expected")
	actualPath, _ := cmd.Flags().GetString("actual")

	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return fmt.Errorf("failed to read expected rules: %w", err)
	}
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		return fmt.Errorf("failed to read actual rules: %w", err)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expected)),
		B:        difflib.SplitLines(string(actual)),
		FromFile: expectedPath,
		ToFile:   actualPath,
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("failed to diff rules: %w", err)
	}
	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Rules match")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diff)
	return fmt.Errorf("%w: %s and %s", ErrRulesDiffer, expectedPath, actualPath)
}
