package classfile

import "strings"

// Kind identifies what a SymbolReference points at.
type Kind uint8

const (
	KindType Kind = iota
	KindField
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// SymbolReference is a symbol usage emitted by a class. Owner is an internal
// class name (slash separated). Type references leave Name and Descriptor empty.
// The struct is comparable, so it can be used directly as a map key.
type SymbolReference struct {
	Kind       Kind   `json:"kind"`
	Owner      string `json:"owner"`
	Name       string `json:"name,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
}

// TypeRef returns a reference to the class itself.
func TypeRef(name string) SymbolReference {
	return SymbolReference{Kind: KindType, Owner: name}
}

// MethodRef returns a reference to a method by owner, name and descriptor.
func MethodRef(owner, name, descriptor string) SymbolReference {
	return SymbolReference{Kind: KindMethod, Owner: owner, Name: name, Descriptor: descriptor}
}

// FieldRef returns a reference to a field by owner, name and descriptor.
func FieldRef(owner, name, descriptor string) SymbolReference {
	return SymbolReference{Kind: KindField, Owner: owner, Name: name, Descriptor: descriptor}
}

// IsMember reports whether the reference names a field or method.
func (r SymbolReference) IsMember() bool {
	return r.Kind == KindField || r.Kind == KindMethod
}

// String renders the reference in JVM notation, e.g. "prod/Bar.helper()V".
func (r SymbolReference) String() string {
	switch r.Kind {
	case KindMethod:
		return r.Owner + "." + r.Name + r.Descriptor
	case KindField:
		return r.Owner + "." + r.Name + ":" + r.Descriptor
	default:
		return r.Owner
	}
}

// JavaString renders the reference with Java source names, e.g.
// "prod.Bar#helper()" or "prod.Bar#count".
func (r SymbolReference) JavaString() string {
	owner := JavaClassName(r.Owner)
	switch r.Kind {
	case KindMethod:
		params, _, err := ParseMethodDescriptor(r.Descriptor)
		if err != nil {
			return owner + "#" + r.Name + r.Descriptor
		}
		names := make([]string, 0, len(params))
		for _, p := range params {
			names = append(names, JavaTypeNameOrRaw(p))
		}
		return owner + "#" + r.Name + "(" + strings.Join(names, ", ") + ")"
	case KindField:
		return owner + "#" + r.Name
	default:
		return owner
	}
}

// Less orders references by owner, kind, name and descriptor.
func (r SymbolReference) Less(o SymbolReference) bool {
	if r.Owner != o.Owner {
		return r.Owner < o.Owner
	}
	if r.Kind != o.Kind {
		return r.Kind < o.Kind
	}
	if r.Name != o.Name {
		return r.Name < o.Name
	}
	return r.Descriptor < o.Descriptor
}

// referenceSet collects references in first-seen order without duplicates.
type referenceSet struct {
	seen  map[SymbolReference]struct{}
	order []SymbolReference
}

func newReferenceSet() *referenceSet {
	return &referenceSet{seen: make(map[SymbolReference]struct{})}
}

func (s *referenceSet) add(ref SymbolReference) {
	if ref.Owner == "" {
		return
	}
	if _, ok := s.seen[ref]; ok {
		return
	}
	s.seen[ref] = struct{}{}
	s.order = append(s.order, ref)
}

func (s *referenceSet) merge(other *referenceSet) {
	for _, ref := range other.order {
		s.add(ref)
	}
}
