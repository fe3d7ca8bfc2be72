// Package tracer resolves the symbols that root classes reference against a
// set of target classes.
package tracer

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/loader"
)

// chunkSize is the number of root classes one pool task scans.
const chunkSize = 64

type Options struct {
	// Library holds classes that take part in hierarchy walks but never
	// produce rules, such as the platform jar.
	Library *loader.Index
	// Workers bounds parallel scanning; zero means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

// ResolvedReference is a reference from a root class together with the target
// class that declares it. For type references Declaring equals the owner.
type ResolvedReference struct {
	Reference classfile.SymbolReference `json:"reference"`
	Declaring string                    `json:"declaring"`
}

// Declared returns the reference re-homed on its declaring class.
func (r ResolvedReference) Declared() classfile.SymbolReference {
	ref := r.Reference
	ref.Owner = r.Declaring
	return ref
}

// UnresolvedReference is an in-target reference whose member could not be
// located, with the root classes that emit it.
type UnresolvedReference struct {
	Reference classfile.SymbolReference `json:"reference"`
	Referrers []string                  `json:"referrers"`
}

type Stats struct {
	RootClasses int `json:"root_classes"`
	Scanned     int `json:"scanned"`
	// Duplicates counts root classes skipped because targets define them.
	Duplicates int `json:"duplicates"`
	References int `json:"references"`
	Dropped    int `json:"dropped"`
}

type Result struct {
	Resolved   []ResolvedReference   `json:"resolved"`
	Unresolved []UnresolvedReference `json:"unresolved"`
	Stats      Stats                 `json:"stats"`
}

// partial accumulates the findings of one pool task.
type partial struct {
	resolved   map[ResolvedReference]struct{}
	unresolved map[classfile.SymbolReference]map[string]struct{}
	memo       map[classfile.SymbolReference]walk
	stats      Stats
}

func newPartial() *partial {
	return &partial{
		resolved:   make(map[ResolvedReference]struct{}),
		unresolved: make(map[classfile.SymbolReference]map[string]struct{}),
		memo:       make(map[classfile.SymbolReference]walk),
	}
}

// Trace scans every root class once and resolves each reference it emits.
// Root classes that targets also define are skipped. The result is sorted and
// independent of worker scheduling.
func Trace(ctx context.Context, roots, targets *loader.Index, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cp := classpath{targets: targets, roots: roots, library: opts.Library}

	classes := roots.Classes()
	var chunks [][]*classfile.ClassDefinition
	for start := 0; start < len(classes); start += chunkSize {
		end := min(start+chunkSize, len(classes))
		chunks = append(chunks, classes[start:end])
	}

	parts := make([]*partial, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			p := newPartial()
			for _, def := range chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				if targets.Contains(def.Name) {
					p.stats.Duplicates++
					continue
				}
				p.scan(cp, def)
			}
			parts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := merge(parts)
	res.Stats.RootClasses = len(classes)
	log.Debug("trace finished",
		zap.Int("root_classes", res.Stats.RootClasses),
		zap.Int("scanned", res.Stats.Scanned),
		zap.Int("duplicates", res.Stats.Duplicates),
		zap.Int("references", res.Stats.References),
		zap.Int("resolved", len(res.Resolved)),
		zap.Int("unresolved", len(res.Unresolved)))
	return res, nil
}

func (p *partial) scan(cp classpath, def *classfile.ClassDefinition) {
	p.stats.Scanned++
	for _, ref := range def.References {
		p.stats.References++
		if ref.Kind == classfile.KindType {
			if cp.targets.Contains(ref.Owner) {
				p.resolved[ResolvedReference{Reference: ref, Declaring: ref.Owner}] = struct{}{}
			} else {
				p.stats.Dropped++
			}
			continue
		}

		switch _, origin := cp.lookup(ref.Owner); origin {
		case OriginTarget:
			owner := classfile.TypeRef(ref.Owner)
			p.resolved[ResolvedReference{Reference: owner, Declaring: ref.Owner}] = struct{}{}
		case OriginRoot:
		default:
			p.stats.Dropped++
			continue
		}

		w, ok := p.memo[ref]
		if !ok {
			w = cp.resolve(ref)
			p.memo[ref] = w
		}
		switch {
		case w.found() && w.origin == OriginTarget:
			p.resolved[ResolvedReference{Reference: ref, Declaring: w.declaring}] = struct{}{}
		case !w.found() && w.touchedTarget && !w.open:
			referrers := p.unresolved[ref]
			if referrers == nil {
				referrers = make(map[string]struct{})
				p.unresolved[ref] = referrers
			}
			referrers[def.Name] = struct{}{}
		default:
			p.stats.Dropped++
		}
	}
}

func merge(parts []*partial) *Result {
	resolved := make(map[ResolvedReference]struct{})
	unresolved := make(map[classfile.SymbolReference]map[string]struct{})
	var stats Stats
	for _, p := range parts {
		for r := range p.resolved {
			resolved[r] = struct{}{}
		}
		for ref, referrers := range p.unresolved {
			into := unresolved[ref]
			if into == nil {
				into = make(map[string]struct{})
				unresolved[ref] = into
			}
			for name := range referrers {
				into[name] = struct{}{}
			}
		}
		stats.Scanned += p.stats.Scanned
		stats.Duplicates += p.stats.Duplicates
		stats.References += p.stats.References
		stats.Dropped += p.stats.Dropped
	}

	res := &Result{Stats: stats}
	for r := range resolved {
		res.Resolved = append(res.Resolved, r)
	}
	sort.Slice(res.Resolved, func(i, j int) bool {
		a, b := res.Resolved[i], res.Resolved[j]
		if a.Declaring != b.Declaring {
			return a.Declaring < b.Declaring
		}
		return a.Reference.Less(b.Reference)
	})
	for ref, referrers := range unresolved {
		u := UnresolvedReference{Reference: ref}
		for name := range referrers {
			u.Referrers = append(u.Referrers, name)
		}
		sort.Strings(u.Referrers)
		res.Unresolved = append(res.Unresolved, u)
	}
	sort.Slice(res.Unresolved, func(i, j int) bool {
		return res.Unresolved[i].Reference.Less(res.Unresolved[j].Reference)
	})
	return res
}
