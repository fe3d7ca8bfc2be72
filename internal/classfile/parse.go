package classfile

import (
	"errors"
	"fmt"
)

const classMagic = 0xCAFEBABE

// ErrModuleDescriptor is returned for module-info classes, which declare no type.
var ErrModuleDescriptor = errors.New("module descriptor is not a class")

// Parse decodes class file bytes into a ClassDefinition, including every
// symbol reference the class emits.
func Parse(data []byte) (*ClassDefinition, error) {
	r := &reader{buf: data}
	if magic := r.u4(); r.err == nil && magic != classMagic {
		return nil, fmt.Errorf("bad magic 0x%08x", magic)
	}
	r.u2() // minor version
	major := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	cp, err := readConstantPool(r)
	if err != nil {
		return nil, fmt.Errorf("constant pool: %w", err)
	}

	access := r.u2()
	thisIdx := r.u2()
	superIdx := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	if access&AccModule != 0 {
		return nil, ErrModuleDescriptor
	}
	name, err := cp.className(thisIdx)
	if err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}

	def, err := parseBody(r, cp, name, access, superIdx)
	if err != nil {
		return nil, &partialNameError{class: name, err: err}
	}
	def.Major = major
	return def, nil
}

func parseBody(r *reader, cp constantPool, name string, access, superIdx uint16) (*ClassDefinition, error) {
	def := &ClassDefinition{Name: name, Access: access}
	x := newExtractor(cp)

	if superIdx == 0 {
		if name != ObjectClass {
			return nil, fmt.Errorf("missing superclass")
		}
	} else {
		super, err := cp.className(superIdx)
		if err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
		def.Super = super
		if err := x.addClass(super); err != nil {
			return nil, err
		}
	}

	count := int(r.u2())
	for i := 0; i < count; i++ {
		iface, err := cp.className(r.u2())
		if r.err != nil {
			return nil, r.err
		}
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		def.Interfaces = append(def.Interfaces, iface)
		if err := x.addClass(iface); err != nil {
			return nil, err
		}
	}

	fields, err := x.members(r, false)
	if err != nil {
		return nil, err
	}
	def.Fields = fields
	methods, err := x.members(r, true)
	if err != nil {
		return nil, err
	}
	def.Methods = methods

	if err := x.attributes(r, x.classAttribute); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if r.err != nil {
		return nil, r.err
	}
	if n := r.remaining(); n != 0 {
		return nil, fmt.Errorf("%d trailing bytes after class structure", n)
	}

	def.References = x.refs.order
	def.index()
	return def, nil
}

// members reads the fields or methods table.
func (x *extractor) members(r *reader, methods bool) ([]Member, error) {
	kind := "field"
	if methods {
		kind = "method"
	}
	count := int(r.u2())
	out := make([]Member, 0, count)
	for i := 0; i < count; i++ {
		access := r.u2()
		nameIdx := r.u2()
		descIdx := r.u2()
		if r.err != nil {
			return nil, r.err
		}
		name, err := x.cp.utf8(nameIdx)
		if err != nil {
			return nil, fmt.Errorf("%s %d name: %w", kind, i, err)
		}
		desc, err := x.cp.utf8(descIdx)
		if err != nil {
			return nil, fmt.Errorf("%s %s descriptor: %w", kind, name, err)
		}
		if methods {
			if _, _, err := ParseMethodDescriptor(desc); err != nil {
				return nil, fmt.Errorf("method %s: %w", name, err)
			}
		} else if err := ValidateFieldDescriptor(desc); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if err := x.addDescriptor(desc); err != nil {
			return nil, err
		}
		handler := x.fieldAttribute
		if methods {
			handler = x.methodAttribute
		}
		if err := x.attributes(r, handler); err != nil {
			return nil, fmt.Errorf("%s %s%s: %w", kind, name, desc, err)
		}
		out = append(out, Member{Name: name, Descriptor: desc, Access: access})
	}
	return out, r.err
}
