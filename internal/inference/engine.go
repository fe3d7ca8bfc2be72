// Package inference runs one keep-rule inference pass: load the containers,
// trace the roots against the targets, report unresolved references and write
// the rule file.
package inference

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/usefulness/keeper/internal/diagnostics"
	"github.com/usefulness/keeper/internal/loader"
	"github.com/usefulness/keeper/internal/logger"
	"github.com/usefulness/keeper/internal/output"
	"github.com/usefulness/keeper/internal/rules"
	"github.com/usefulness/keeper/internal/tracer"
)

// Request describes one run.
type Request struct {
	// Roots are the test containers whose references must stay resolvable.
	Roots []string
	// Targets are the production containers that get shrunk.
	Targets []string
	// Library containers only complete class hierarchies.
	Library []string
	// Exclude holds doublestar patterns for root containers to skip.
	Exclude []string

	Policy           diagnostics.Policy
	AllowObfuscation bool
	ExtraRules       []string
	ExtraRuleFiles   []string
	Workers          int
	// DebugDir receives inputs.txt, references.txt and unresolved.txt.
	DebugDir string
}

// Result is the outcome of a run. It is returned alongside an error when
// diagnostics fail the run, so callers can still show the report.
type Result struct {
	Rules   []rules.KeepRule
	Content []byte
	Report  *diagnostics.Report
	Trace   *tracer.Result

	RootClasses   int
	TargetClasses int
	Elapsed       time.Duration
}

// Members counts the kept members across all rules.
func (r *Result) Members() int {
	n := 0
	for _, rule := range r.Rules {
		n += len(rule.Members)
	}
	return n
}

type Engine struct {
	log      *zap.Logger
	progress logger.Logger
}

func New(log *zap.Logger, progress logger.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if progress == nil {
		progress = logger.Discard
	}
	return &Engine{log: log, progress: progress}
}

// Run executes the pipeline. Nothing reaches sink unless every stage succeeds
// and ctx is still live; debug files are written after tracing regardless of
// the diagnostics outcome.
func (e *Engine) Run(ctx context.Context, req Request, sink output.Sink) (*Result, error) {
	start := time.Now()

	extraFiles, err := rules.ReadExtraFiles(req.ExtraRuleFiles)
	if err != nil {
		return nil, err
	}
	extra := append(append([]string(nil), req.ExtraRules...), extraFiles...)

	e.progress.Log("Loading root classes")
	roots, err := loader.Load(ctx, req.Roots, loader.Options{Exclude: req.Exclude, Workers: req.Workers, Logger: e.log.Named("roots")})
	if err != nil {
		return nil, fmt.Errorf("load roots: %w", err)
	}
	e.progress.Log("Loading target classes")
	targets, err := loader.Load(ctx, req.Targets, loader.Options{Workers: req.Workers, Logger: e.log.Named("targets")})
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	var library *loader.Index
	if len(req.Library) > 0 {
		e.progress.Log("Loading library classes")
		library, err = loader.Load(ctx, req.Library, loader.Options{Workers: req.Workers, Logger: e.log.Named("library")})
		if err != nil {
			return nil, fmt.Errorf("load library: %w", err)
		}
	}

	e.progress.Logf("Tracing %d root classes against %d target classes", roots.Len(), targets.Len())
	traced, err := tracer.Trace(ctx, roots, targets, tracer.Options{Library: library, Workers: req.Workers, Logger: e.log})
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}

	res := &Result{Trace: traced, RootClasses: roots.Len(), TargetClasses: targets.Len()}
	if req.DebugDir != "" {
		err := output.WriteDebug(req.DebugDir, output.Debug{
			Roots:      roots.Containers(),
			Targets:    targets.Containers(),
			Library:    library.Containers(),
			Resolved:   traced.Resolved,
			Unresolved: traced.Unresolved,
			Stats:      traced.Stats,
		})
		if err != nil {
			return nil, err
		}
		e.log.Debug("debug information written", zap.String("dir", req.DebugDir))
	}

	report, err := diagnostics.NewReporter(req.Policy, e.log).Report(traced.Unresolved)
	res.Report = report
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}

	res.Rules = rules.Synthesize(traced.Resolved)
	res.Content = []byte(rules.NewRuleSet(res.Rules, extra, rules.Options{AllowObfuscation: req.AllowObfuscation}).Render())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.progress.Logf("Writing %d rules", len(res.Rules))
	if err := sink.WriteRules(ctx, res.Content); err != nil {
		return nil, fmt.Errorf("write rules: %w", err)
	}
	res.Elapsed = time.Since(start)
	e.log.Info("keep rules written",
		zap.Int("rules", len(res.Rules)),
		zap.Int("members", res.Members()),
		zap.Int("unresolved", len(traced.Unresolved)),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}
