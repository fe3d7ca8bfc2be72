// Package loader reads class containers into a ClassIndex.
package loader

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usefulness/keeper/internal/classfile"
)

// Options tunes a Load call.
type Options struct {
	// Exclude holds doublestar patterns matched against slash-separated
	// container paths. Matching containers are recorded but not read.
	Exclude []string
	// Workers bounds parallel parsing; zero means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

type job struct {
	container int
	path      string
	entry     Entry
}

type parsed struct {
	def  *classfile.ClassDefinition
	hash uint64
	size int64
	err  error
}

// Load reads every container in paths, in order, and indexes their classes.
// A class defined in more than one place resolves to the first container that
// defines it, and within a container to the first entry.
func Load(ctx context.Context, paths []string, opts Options) (*Index, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	for _, pattern := range opts.Exclude {
		if _, err := doublestar.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}

	x := &Index{classes: make(map[string]*classfile.ClassDefinition)}
	var jobs []job
	var containers []Container
	defer func() {
		for _, c := range containers {
			_ = c.Close()
		}
	}()

	for _, p := range paths {
		if excluded(p, opts.Exclude) {
			log.Info("container excluded", zap.String("path", p))
			x.containers = append(x.containers, ContainerStats{Path: p, Excluded: true})
			continue
		}
		c, err := Open(p)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
		entries, err := c.Entries()
		if err != nil {
			return nil, err
		}
		idx := len(x.containers)
		x.containers = append(x.containers, ContainerStats{Path: p, Kind: c.Kind()})
		for _, e := range entries {
			jobs = append(jobs, job{container: idx, path: p, entry: e})
		}
	}

	results, err := parseAll(ctx, jobs, opts.Workers)
	if err != nil {
		return nil, err
	}

	digests := make([]*xxhash.Digest, len(x.containers))
	for i, j := range jobs {
		r := results[i]
		stats := &x.containers[j.container]
		if digests[j.container] == nil {
			digests[j.container] = xxhash.New()
		}
		d := digests[j.container]
		_, _ = d.WriteString(j.entry.Name)
		_, _ = d.Write(binary.BigEndian.AppendUint64(nil, r.hash))
		stats.Bytes += r.size
		if r.def == nil {
			continue
		}
		if x.add(r.def) {
			stats.Classes++
			continue
		}
		stats.Shadowed++
		winner, _ := x.Lookup(r.def.Name)
		log.Debug("class shadowed",
			zap.String("class", r.def.Name),
			zap.String("container", j.path),
			zap.String("entry", j.entry.Name),
			zap.String("winner", winner.Container))
	}
	for i := range x.containers {
		if digests[i] != nil {
			x.containers[i].Digest = digests[i].Sum64()
		}
		s := x.containers[i]
		if !s.Excluded {
			log.Debug("container loaded",
				zap.String("path", s.Path),
				zap.String("kind", string(s.Kind)),
				zap.Int("classes", s.Classes),
				zap.Int("shadowed", s.Shadowed))
		}
	}
	return x, nil
}

func excluded(p string, patterns []string) bool {
	slash := filepath.ToSlash(p)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, slash); ok {
			return true
		}
	}
	return false
}

// parseAll parses entries on a bounded pool. Results are positional so the
// caller can assemble them in input order. When several entries fail, the
// earliest one in input order is reported.
func parseAll(ctx context.Context, jobs []job, workers int) ([]parsed, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]parsed, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		i, j := i, j
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseEntry(j)
			return results[i].err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return results, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
	}
	return nil, err
}

func parseEntry(j job) parsed {
	data, err := j.entry.Read()
	if err != nil {
		return parsed{err: &UnreadableArtifactError{Path: j.path, Err: fmt.Errorf("entry %s: %w", j.entry.Name, err)}}
	}
	r := parsed{hash: xxhash.Sum64(data), size: int64(len(data))}
	def, err := classfile.Parse(data)
	switch {
	case errors.Is(err, classfile.ErrModuleDescriptor):
		return r
	case err != nil:
		r.err = &classfile.MalformedClassError{
			Container: j.path,
			Entry:     j.entry.Name,
			Class:     classfile.ClassNameOf(err),
			Err:       err,
		}
		return r
	}
	def.Container = j.path
	def.Entry = j.entry.Name
	r.def = def
	return r
}
