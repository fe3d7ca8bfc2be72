// Package rules turns resolved references into ProGuard keep rules.
package rules

import (
	"sort"
	"strings"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/tracer"
)

// Member is a field or method kept on a class.
type Member struct {
	Kind       classfile.Kind `json:"kind" yaml:"kind"`
	Name       string         `json:"name" yaml:"name"`
	Descriptor string         `json:"descriptor" yaml:"descriptor"`
}

func (m Member) less(o Member) bool {
	if m.Kind != o.Kind {
		return m.Kind < o.Kind
	}
	if m.Name != o.Name {
		return m.Name < o.Name
	}
	return m.Descriptor < o.Descriptor
}

// Render returns the member line body, e.g. "void helper(int)" or "int count".
func (m Member) Render() string {
	if m.Kind == classfile.KindField {
		return classfile.JavaTypeNameOrRaw(m.Descriptor) + " " + m.Name
	}
	params, ret, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return m.Name + m.Descriptor
	}
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, classfile.JavaTypeNameOrRaw(p))
	}
	sig := m.Name + "(" + strings.Join(names, ",") + ")"
	if m.Name == "<init>" || m.Name == "<clinit>" {
		return sig
	}
	return classfile.JavaTypeNameOrRaw(ret) + " " + sig
}

// KeepRule keeps one class and, optionally, some of its members. Class is an
// internal name.
type KeepRule struct {
	Class   string   `json:"class" yaml:"class"`
	Members []Member `json:"members,omitempty" yaml:"members,omitempty"`
}

// Synthesize groups resolved references into one rule per declaring class.
// Rules are sorted by class name and members by kind, name and descriptor.
func Synthesize(resolved []tracer.ResolvedReference) []KeepRule {
	byClass := make(map[string]map[Member]struct{})
	for _, r := range resolved {
		members := byClass[r.Declaring]
		if members == nil {
			members = make(map[Member]struct{})
			byClass[r.Declaring] = members
		}
		if !r.Reference.IsMember() {
			continue
		}
		members[Member{Kind: r.Reference.Kind, Name: r.Reference.Name, Descriptor: r.Reference.Descriptor}] = struct{}{}
	}

	out := make([]KeepRule, 0, len(byClass))
	for class, members := range byClass {
		rule := KeepRule{Class: class}
		for m := range members {
			rule.Members = append(rule.Members, m)
		}
		sort.Slice(rule.Members, func(i, j int) bool { return rule.Members[i].less(rule.Members[j]) })
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

type Options struct {
	// AllowObfuscation lets the shrinker rename kept symbols, for test APKs
	// that are obfuscated with the production mapping.
	AllowObfuscation bool
}

// Render writes the rule in ProGuard syntax with a trailing newline.
func (r KeepRule) Render(opts Options) string {
	var b strings.Builder
	b.WriteString("-keep")
	if opts.AllowObfuscation {
		b.WriteString(",allowobfuscation")
	}
	b.WriteString(" class ")
	b.WriteString(classfile.JavaClassName(r.Class))
	if len(r.Members) == 0 {
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(" {\n")
	for _, m := range r.Members {
		b.WriteString("  ")
		b.WriteString(m.Render())
		b.WriteString(";\n")
	}
	b.WriteString("}\n")
	return b.String()
}
