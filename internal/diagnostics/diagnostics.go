// Package diagnostics reports references into the targets that could not be
// resolved.
package diagnostics

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/tracer"
)

// Policy decides whether unresolved references fail the run.
type Policy string

const (
	PolicyPermissive Policy = "permissive"
	PolicyStrict     Policy = "strict"
)

// Severity levels for a report
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Entry is one unresolved symbol and the root classes that reference it.
type Entry struct {
	Symbol    string                    `json:"symbol"`
	Reference classfile.SymbolReference `json:"reference"`
	Referrers []string                  `json:"referrers"`
}

type Report struct {
	Policy   Policy   `json:"policy"`
	Severity Severity `json:"severity"`
	Entries  []Entry  `json:"entries,omitempty"`
}

// Failed reports whether the run must stop without writing rules.
func (r *Report) Failed() bool {
	return r.Severity == SeverityError
}

// Text renders the listing, one symbol per line followed by its referrers.
func (r *Report) Text() string {
	if len(r.Entries) == 0 {
		return "no unresolved references\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d unresolved reference(s) (%s):\n", len(r.Entries), r.Policy)
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "  %s\n", e.Symbol)
		for _, ref := range e.Referrers {
			fmt.Fprintf(&b, "    referenced from %s\n", classfile.JavaClassName(ref))
		}
	}
	return b.String()
}

// UnresolvedReferenceWarning describes one unresolved symbol in permissive
// mode. It is logged, never returned.
type UnresolvedReferenceWarning struct {
	Entry Entry
}

func (w *UnresolvedReferenceWarning) Error() string {
	names := make([]string, 0, len(w.Entry.Referrers))
	for _, r := range w.Entry.Referrers {
		names = append(names, classfile.JavaClassName(r))
	}
	return fmt.Sprintf("unresolved reference %s from %s", w.Entry.Symbol, strings.Join(names, ", "))
}

// UnresolvedSymbolsError fails a strict run.
type UnresolvedSymbolsError struct {
	Entries []Entry
}

func (e *UnresolvedSymbolsError) Error() string {
	symbols := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		symbols = append(symbols, entry.Symbol)
	}
	return fmt.Sprintf("%d unresolved reference(s) in targets: %s", len(e.Entries), strings.Join(symbols, ", "))
}

type Reporter struct {
	policy Policy
	log    *zap.Logger
}

func NewReporter(policy Policy, log *zap.Logger) *Reporter {
	if policy == "" {
		policy = PolicyPermissive
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{policy: policy, log: log}
}

// Report lists the unresolved references. Permissive reporters log each entry
// as a warning and return a nil error; strict reporters return an
// UnresolvedSymbolsError when there is at least one entry.
func (r *Reporter) Report(unresolved []tracer.UnresolvedReference) (*Report, error) {
	rep := &Report{Policy: r.policy, Severity: SeverityInfo}
	for _, u := range unresolved {
		rep.Entries = append(rep.Entries, Entry{
			Symbol:    u.Reference.JavaString(),
			Reference: u.Reference,
			Referrers: u.Referrers,
		})
	}
	if len(rep.Entries) == 0 {
		return rep, nil
	}

	if r.policy == PolicyStrict {
		rep.Severity = SeverityError
		for _, e := range rep.Entries {
			r.log.Error("unresolved reference",
				zap.String("symbol", e.Symbol),
				zap.Strings("referrers", e.Referrers))
		}
		return rep, &UnresolvedSymbolsError{Entries: rep.Entries}
	}

	rep.Severity = SeverityWarning
	for _, e := range rep.Entries {
		r.log.Warn("unresolved reference",
			zap.String("symbol", e.Symbol),
			zap.Strings("referrers", e.Referrers),
			zap.Error(&UnresolvedReferenceWarning{Entry: e}))
	}
	return rep, nil
}
