package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/usefulness/keeper/internal/config"
	"github.com/usefulness/keeper/internal/diagnostics"
	"github.com/usefulness/keeper/internal/inference"
	"github.com/usefulness/keeper/internal/logger"
	"github.com/usefulness/keeper/internal/output"
	"github.com/usefulness/keeper/internal/rules"
	"github.com/usefulness/keeper/internal/tracer"
	"github.com/usefulness/keeper/internal/ui"
)

// inferCmd represents the infer command
var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer keep rules for the symbols test classes reference",
	Long: `Infer traces every symbol referenced by the root (test) classes, resolves it
against the target (production) classes and writes the keep rules the shrinker
needs so those symbols survive minification.

Containers may be directories, .jar/.zip archives or .aar archives. Flags can be
repeated or given as path lists separated by the OS list separator.

Example usage:
  keeper infer --roots build/test-classes --targets app.jar --out keeper.pro
  keeper infer --roots test.jar --targets app.jar --strict --out keeper.pro
  keeper infer --roots test.jar --targets app.jar --debug-dir build/keeper --out keeper.pro`,
	Args: cobra.NoArgs,
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)
	registerInferFlags(inferCmd)
}

func registerInferFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("roots", nil, "Test class containers whose references must stay resolvable")
	cmd.Flags().StringSlice("targets", nil, "Production class containers that get shrunk")
	cmd.Flags().StringSlice("library", nil, "Containers used only to resolve class hierarchies (e.g. android.jar)")
	cmd.Flags().StringSlice("exclude", nil, "Doublestar patterns of root containers to skip")
	cmd.Flags().String("out", "", "Destination rule file")
	cmd.Flags().String("policy", "", "Unresolved reference policy (strict, permissive)")
	cmd.Flags().Bool("strict", false, "Shorthand for --policy strict")
	cmd.Flags().StringSlice("extra-rules", nil, "Rule files appended verbatim after the inferred rules")
	cmd.Flags().Bool("allow-obfuscation", false, "Emit -keep,allowobfuscation rules")
	cmd.Flags().Int("workers", 0, "Parallel workers (0 = all CPUs)")
	cmd.Flags().Duration("timeout", 0, "Abort the run after this duration (0 = no limit)")
	cmd.Flags().String("debug-dir", "", "Write inputs.txt, references.txt and unresolved.txt here")
	_ = cmd.MarkFlagRequired("out")
}

// splitPaths expands path lists and makes every entry absolute.
func splitPaths(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		for _, p := range filepath.SplitList(v) {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve path %s: %w", p, err)
			}
			out = append(out, abs)
		}
	}
	return out, nil
}

// buildRequest merges the config file with flags; flags win when set.
func buildRequest(cmd *cobra.Command, cfg *config.Config) (inference.Request, error) {
	flags := cmd.Flags()
	req := inference.Request{
		Policy:           diagnostics.Policy(cfg.Inference.Policy),
		Exclude:          cfg.Inference.Exclude,
		Workers:          cfg.Inference.Workers,
		AllowObfuscation: cfg.Output.AllowObfuscation,
		ExtraRules:       cfg.Output.ExtraRules,
		ExtraRuleFiles:   cfg.Output.ExtraRuleFiles,
		DebugDir:         cfg.Output.DebugDir,
	}

	var err error
	for _, list := range []struct {
		flag string
		into *[]string
	}{
		{"roots", &req.Roots},
		{"targets", &req.Targets},
		{"library", &req.Library},
	} {
		values, _ := flags.GetStringSlice(list.flag)
		if *list.into, err = splitPaths(values); err != nil {
			return req, err
		}
	}
	if len(req.Library) == 0 && len(cfg.Inference.Library) > 0 {
		if req.Library, err = splitPaths(cfg.Inference.Library); err != nil {
			return req, err
		}
	}
	if len(req.Roots) == 0 || len(req.Targets) == 0 {
		return req, fmt.Errorf("at least one --roots and one --targets container is required")
	}

	if flags.Changed("exclude") {
		req.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("policy") {
		policy, _ := flags.GetString("policy")
		req.Policy = diagnostics.Policy(policy)
	}
	if strict, _ := flags.GetBool("strict"); strict {
		req.Policy = diagnostics.PolicyStrict
	}
	switch req.Policy {
	case diagnostics.PolicyStrict, diagnostics.PolicyPermissive:
	default:
		return req, fmt.Errorf("unknown policy %q (want strict or permissive)", req.Policy)
	}
	if flags.Changed("extra-rules") {
		files, _ := flags.GetStringSlice("extra-rules")
		req.ExtraRuleFiles = append(append([]string(nil), req.ExtraRuleFiles...), files...)
	}
	if flags.Changed("allow-obfuscation") {
		req.AllowObfuscation, _ = flags.GetBool("allow-obfuscation")
	}
	if flags.Changed("workers") {
		req.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("debug-dir") {
		req.DebugDir, _ = flags.GetString("debug-dir")
	}
	return req, nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	app, err := appConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = app.Zap.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")
	if outPath, err = filepath.Abs(outPath); err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	outputFormat, _ := cmd.Flags().GetString("output")

	timeout := cfg.Inference.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sink := output.FileSink{Path: outPath}
	var res *inference.Result
	var runErr error
	if outputFormat == "text" && logger.IsInteractive() {
		spinErr := ui.RunSpinner(ctx, "Inferring keep rules", func(ctx context.Context, progress logger.Logger) error {
			res, runErr = inference.New(app.Zap, progress).Run(ctx, req, sink)
			return runErr
		})
		if runErr == nil {
			runErr = spinErr
		}
	} else {
		progress := app.Logger
		if outputFormat != "text" {
			progress = logger.Discard
		}
		res, runErr = inference.New(app.Zap, progress).Run(ctx, req, sink)
	}

	var symbols *diagnostics.UnresolvedSymbolsError
	if runErr != nil && !errors.As(runErr, &symbols) {
		return runErr
	}
	if err := printResult(cmd.OutOrStdout(), outputFormat, outPath, res); err != nil {
		return err
	}
	return runErr
}

type inferOutput struct {
	Output     string              `json:"output,omitempty" yaml:"output,omitempty"`
	Written    bool                `json:"written" yaml:"written"`
	Rules      []rules.KeepRule    `json:"rules" yaml:"rules"`
	Unresolved []diagnostics.Entry `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Stats      tracer.Stats        `json:"stats" yaml:"stats"`
}

func printResult(w io.Writer, format, outPath string, res *inference.Result) error {
	written := !res.Report.Failed()
	switch format {
	case "json", "yaml":
		out := inferOutput{Written: written, Rules: res.Rules, Unresolved: res.Report.Entries, Stats: res.Trace.Stats}
		if written {
			out.Output = outPath
		}
		if format == "json" {
			encoder := json.NewEncoder(w)
			encoder.SetIndent("", "  ")
			return encoder.Encode(out)
		}
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(out)
	default:
		_, err := fmt.Fprint(w, ui.RenderSummary(ui.Summary{
			Output:        outPath,
			Rules:         len(res.Rules),
			Members:       res.Members(),
			RootClasses:   res.RootClasses,
			TargetClasses: res.TargetClasses,
			References:    res.Trace.Stats.References,
			Resolved:      len(res.Trace.Resolved),
			Report:        res.Report,
			Elapsed:       res.Elapsed,
		}))
		return err
	}
}
