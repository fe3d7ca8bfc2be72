package loader

import (
	"sort"

	"github.com/usefulness/keeper/internal/classfile"
)

// ContainerStats summarizes what one container contributed to an Index.
type ContainerStats struct {
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Excluded bool   `json:"excluded,omitempty"`
	// Classes counts definitions that made it into the index.
	Classes int `json:"classes"`
	// Shadowed counts definitions hidden by an earlier container or entry.
	Shadowed int    `json:"shadowed,omitempty"`
	Bytes    int64  `json:"bytes"`
	Digest   uint64 `json:"digest"`
}

// Index maps internal class names to their definitions. When a name is defined
// more than once, the first definition in load order wins. An Index is
// read-only once built; a nil Index is empty.
type Index struct {
	classes    map[string]*classfile.ClassDefinition
	order      []*classfile.ClassDefinition
	containers []ContainerStats
}

// NewIndex builds an index from definitions in precedence order.
func NewIndex(defs ...*classfile.ClassDefinition) *Index {
	x := &Index{classes: make(map[string]*classfile.ClassDefinition, len(defs))}
	for _, def := range defs {
		x.add(def)
	}
	return x
}

func (x *Index) add(def *classfile.ClassDefinition) bool {
	if _, ok := x.classes[def.Name]; ok {
		return false
	}
	x.classes[def.Name] = def
	x.order = append(x.order, def)
	return true
}

func (x *Index) Lookup(name string) (*classfile.ClassDefinition, bool) {
	if x == nil {
		return nil, false
	}
	def, ok := x.classes[name]
	return def, ok
}

func (x *Index) Contains(name string) bool {
	_, ok := x.Lookup(name)
	return ok
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.order)
}

// Classes returns definitions in load order.
func (x *Index) Classes() []*classfile.ClassDefinition {
	if x == nil {
		return nil
	}
	return append([]*classfile.ClassDefinition(nil), x.order...)
}

// Names returns the sorted class names.
func (x *Index) Names() []string {
	if x == nil {
		return nil
	}
	names := make([]string, 0, len(x.order))
	for _, def := range x.order {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// Containers returns per-container statistics in load order.
func (x *Index) Containers() []ContainerStats {
	if x == nil {
		return nil
	}
	return append([]ContainerStats(nil), x.containers...)
}
