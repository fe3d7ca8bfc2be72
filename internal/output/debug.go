package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/loader"
	"github.com/usefulness/keeper/internal/tracer"
)

// Debug is everything a run can dump for inspection.
type Debug struct {
	Roots      []loader.ContainerStats
	Targets    []loader.ContainerStats
	Library    []loader.ContainerStats
	Resolved   []tracer.ResolvedReference
	Unresolved []tracer.UnresolvedReference
	Stats      tracer.Stats
}

// Debug file names inside the debug directory.
const (
	InputsFile     = "inputs.txt"
	ReferencesFile = "references.txt"
	UnresolvedFile = "unresolved.txt"
)

// WriteDebug writes inputs.txt, references.txt and unresolved.txt into dir.
func WriteDebug(dir string, d Debug) error {
	files := []struct {
		name    string
		content string
	}{
		{InputsFile, renderInputs(d)},
		{ReferencesFile, renderReferences(d.Resolved)},
		{UnresolvedFile, renderUnresolved(d.Unresolved)},
	}
	for _, f := range files {
		if err := WriteFileAtomic(filepath.Join(dir, f.name), []byte(f.content)); err != nil {
			return fmt.Errorf("debug %s: %w", f.name, err)
		}
	}
	return nil
}

func renderInputs(d Debug) string {
	var b strings.Builder
	section := func(title string, stats []loader.ContainerStats) {
		fmt.Fprintf(&b, "# %s\n", title)
		for _, s := range stats {
			if s.Excluded {
				fmt.Fprintf(&b, "%s excluded\n", s.Path)
				continue
			}
			fmt.Fprintf(&b, "%s %s classes=%d", s.Path, s.Kind, s.Classes)
			if s.Shadowed > 0 {
				fmt.Fprintf(&b, " shadowed=%d", s.Shadowed)
			}
			fmt.Fprintf(&b, " size=%s xxh64=%016x\n", humanize.Bytes(uint64(s.Bytes)), s.Digest)
		}
	}
	section("roots", d.Roots)
	section("targets", d.Targets)
	if len(d.Library) > 0 {
		section("library", d.Library)
	}
	fmt.Fprintf(&b, "# trace\nroot classes=%s scanned=%s duplicates=%d references=%s dropped=%s\n",
		humanize.Comma(int64(d.Stats.RootClasses)),
		humanize.Comma(int64(d.Stats.Scanned)),
		d.Stats.Duplicates,
		humanize.Comma(int64(d.Stats.References)),
		humanize.Comma(int64(d.Stats.Dropped)))
	return b.String()
}

func renderReferences(resolved []tracer.ResolvedReference) string {
	var b strings.Builder
	for _, r := range resolved {
		if r.Reference.Owner == r.Declaring {
			fmt.Fprintf(&b, "%s\n", r.Reference)
			continue
		}
		fmt.Fprintf(&b, "%s -> %s\n", r.Reference, r.Declaring)
	}
	return b.String()
}

func renderUnresolved(unresolved []tracer.UnresolvedReference) string {
	var b strings.Builder
	for _, u := range unresolved {
		names := make([]string, 0, len(u.Referrers))
		for _, r := range u.Referrers {
			names = append(names, classfile.JavaClassName(r))
		}
		fmt.Fprintf(&b, "%s <- %s\n", u.Reference.JavaString(), strings.Join(names, ", "))
	}
	return b.String()
}
