package classfile

import (
	"fmt"
	"strings"
)

// Attribute names that can carry symbol references. Everything else, including
// debug tables and InnerClasses bookkeeping, is skipped.
const (
	attrCode                        = "Code"
	attrExceptions                  = "Exceptions"
	attrSignature                   = "Signature"
	attrAnnotationDefault           = "AnnotationDefault"
	attrBootstrapMethods            = "BootstrapMethods"
	attrEnclosingMethod             = "EnclosingMethod"
	attrNestHost                    = "NestHost"
	attrPermittedSubclasses         = "PermittedSubclasses"
	attrRecord                      = "Record"
	attrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	attrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
	attrRuntimeVisibleParamAnns     = "RuntimeVisibleParameterAnnotations"
	attrRuntimeInvisibleParamAnns   = "RuntimeInvisibleParameterAnnotations"
	attrRuntimeVisibleTypeAnns      = "RuntimeVisibleTypeAnnotations"
	attrRuntimeInvisibleTypeAnns    = "RuntimeInvisibleTypeAnnotations"
)

// extractor accumulates the references emitted by one class.
type extractor struct {
	cp   constantPool
	refs *referenceSet
}

func newExtractor(cp constantPool) *extractor {
	return &extractor{cp: cp, refs: newReferenceSet()}
}

// addClass records a class constant. Array classes contribute their element type.
func (x *extractor) addClass(name string) error {
	if name == "" {
		return fmt.Errorf("empty class name")
	}
	if strings.HasPrefix(name, "[") {
		return x.addDescriptor(name)
	}
	x.refs.add(TypeRef(name))
	return nil
}

// addDescriptor records every class named by a field or method descriptor.
func (x *extractor) addDescriptor(desc string) error {
	classes, err := descriptorClasses(desc)
	if err != nil {
		return err
	}
	for _, c := range classes {
		x.refs.add(TypeRef(c))
	}
	return nil
}

// addMember records a field or method usage together with the types in its
// descriptor, which must keep their names for the call site to link.
func (x *extractor) addMember(ref SymbolReference) error {
	if strings.HasPrefix(ref.Owner, "[") {
		// Methods on arrays (clone and Object methods) only need the element type.
		if err := x.addDescriptor(ref.Descriptor); err != nil {
			return err
		}
		return x.addClass(ref.Owner)
	}
	if err := x.addDescriptor(ref.Descriptor); err != nil {
		return fmt.Errorf("%s: %w", ref, err)
	}
	x.refs.add(ref)
	return nil
}

// addSignature records classes named by a generic signature. Signatures are
// not verified by the VM, so an unparsable one is ignored rather than fatal.
func (x *extractor) addSignature(sig string) {
	p := &sigParser{s: sig, refs: newReferenceSet()}
	if err := p.parse(); err != nil {
		return
	}
	x.refs.merge(p.refs)
}

type attributeHandler func(name string, r *reader) error

func (x *extractor) attributes(r *reader, handle attributeHandler) error {
	count := int(r.u2())
	for i := 0; i < count; i++ {
		nameIdx := r.u2()
		length := r.u4()
		body := r.bytes(int(length))
		if r.err != nil {
			return r.err
		}
		name, err := x.cp.utf8(nameIdx)
		if err != nil {
			return fmt.Errorf("attribute %d name: %w", i, err)
		}
		sub := &reader{buf: body}
		if err := handle(name, sub); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if sub.err != nil {
			return fmt.Errorf("%s: %w", name, sub.err)
		}
	}
	return r.err
}

func (x *extractor) commonAttribute(name string, r *reader) error {
	switch name {
	case attrSignature:
		sig, err := x.cp.utf8(r.u2())
		if r.err != nil {
			return r.err
		}
		if err != nil {
			return err
		}
		x.addSignature(sig)
	case attrRuntimeVisibleAnnotations, attrRuntimeInvisibleAnnotations:
		return x.annotations(r)
	case attrRuntimeVisibleTypeAnns, attrRuntimeInvisibleTypeAnns:
		return x.typeAnnotations(r)
	}
	return nil
}

func (x *extractor) classAttribute(name string, r *reader) error {
	switch name {
	case attrBootstrapMethods:
		return x.bootstrapMethods(r)
	case attrEnclosingMethod:
		classIdx := r.u2()
		methodIdx := r.u2()
		if r.err != nil {
			return r.err
		}
		owner, err := x.cp.className(classIdx)
		if err != nil {
			return err
		}
		if err := x.addClass(owner); err != nil {
			return err
		}
		if methodIdx != 0 {
			mname, desc, err := x.cp.nameAndType(methodIdx)
			if err != nil {
				return err
			}
			return x.addMember(MethodRef(owner, mname, desc))
		}
	case attrNestHost:
		host, err := x.cp.className(r.u2())
		if err != nil {
			return err
		}
		return x.addClass(host)
	case attrPermittedSubclasses:
		n := int(r.u2())
		for i := 0; i < n; i++ {
			sub, err := x.cp.className(r.u2())
			if err != nil {
				return err
			}
			if err := x.addClass(sub); err != nil {
				return err
			}
		}
	case attrRecord:
		n := int(r.u2())
		for i := 0; i < n; i++ {
			r.u2() // component name
			desc, err := x.cp.utf8(r.u2())
			if err != nil {
				return err
			}
			if err := x.addDescriptor(desc); err != nil {
				return err
			}
			if err := x.attributes(r, x.commonAttribute); err != nil {
				return err
			}
		}
	default:
		return x.commonAttribute(name, r)
	}
	return r.err
}

func (x *extractor) fieldAttribute(name string, r *reader) error {
	return x.commonAttribute(name, r)
}

func (x *extractor) methodAttribute(name string, r *reader) error {
	switch name {
	case attrCode:
		return x.code(r)
	case attrExceptions:
		n := int(r.u2())
		for i := 0; i < n; i++ {
			exc, err := x.cp.className(r.u2())
			if err != nil {
				return err
			}
			if err := x.addClass(exc); err != nil {
				return err
			}
		}
		return r.err
	case attrAnnotationDefault:
		return x.elementValue(r)
	case attrRuntimeVisibleParamAnns, attrRuntimeInvisibleParamAnns:
		n := int(r.u1())
		for i := 0; i < n; i++ {
			if err := x.annotations(r); err != nil {
				return err
			}
		}
		return r.err
	default:
		return x.commonAttribute(name, r)
	}
}

func (x *extractor) codeAttribute(name string, r *reader) error {
	switch name {
	case attrRuntimeVisibleTypeAnns, attrRuntimeInvisibleTypeAnns:
		return x.typeAnnotations(r)
	}
	return nil
}

func (x *extractor) code(r *reader) error {
	r.skip(4) // max_stack, max_locals
	length := r.u4()
	code := r.bytes(int(length))
	if r.err != nil {
		return r.err
	}
	if err := x.instructions(code); err != nil {
		return err
	}
	n := int(r.u2())
	for i := 0; i < n; i++ {
		r.skip(6) // start_pc, end_pc, handler_pc
		catchIdx := r.u2()
		if r.err != nil {
			return r.err
		}
		if catchIdx == 0 {
			continue
		}
		exc, err := x.cp.className(catchIdx)
		if err != nil {
			return fmt.Errorf("exception table entry %d: %w", i, err)
		}
		if err := x.addClass(exc); err != nil {
			return err
		}
	}
	return x.attributes(r, x.codeAttribute)
}

func (x *extractor) bootstrapMethods(r *reader) error {
	n := int(r.u2())
	for i := 0; i < n; i++ {
		if err := x.methodHandle(r.u2()); err != nil {
			return fmt.Errorf("bootstrap method %d: %w", i, err)
		}
		argc := int(r.u2())
		for j := 0; j < argc; j++ {
			if err := x.loadableConstant(r.u2()); err != nil {
				return fmt.Errorf("bootstrap method %d argument %d: %w", i, j, err)
			}
		}
		if r.err != nil {
			return r.err
		}
	}
	return r.err
}

// methodHandle records the member behind a CONSTANT_MethodHandle.
func (x *extractor) methodHandle(idx uint16) error {
	e, err := x.cp.entry(idx, tagMethodHandle)
	if err != nil {
		return err
	}
	var ref SymbolReference
	switch kind := e.a; {
	case kind >= 1 && kind <= 4:
		ref, err = x.cp.memberRef(e.b, tagFieldref)
	case kind >= 5 && kind <= 9:
		ref, err = x.cp.memberRef(e.b, tagMethodref, tagInterfaceMethodref)
	default:
		return fmt.Errorf("method handle #%d: unknown reference kind %d", idx, kind)
	}
	if err != nil {
		return err
	}
	return x.addMember(ref)
}

// loadableConstant records references behind an ldc operand or bootstrap argument.
func (x *extractor) loadableConstant(idx uint16) error {
	e, err := x.cp.entry(idx, tagInteger, tagFloat, tagLong, tagDouble, tagString,
		tagClass, tagMethodType, tagMethodHandle, tagDynamic)
	if err != nil {
		return err
	}
	switch e.tag {
	case tagClass:
		name, err := x.cp.utf8(e.a)
		if err != nil {
			return err
		}
		return x.addClass(name)
	case tagMethodType:
		desc, err := x.cp.utf8(e.a)
		if err != nil {
			return err
		}
		return x.addDescriptor(desc)
	case tagMethodHandle:
		return x.methodHandle(idx)
	case tagDynamic:
		_, desc, err := x.cp.nameAndType(e.b)
		if err != nil {
			return err
		}
		return x.addDescriptor(desc)
	}
	return nil
}

func (x *extractor) annotations(r *reader) error {
	n := int(r.u2())
	for i := 0; i < n; i++ {
		if err := x.annotation(r); err != nil {
			return err
		}
	}
	return r.err
}

func (x *extractor) annotation(r *reader) error {
	typeIdx := r.u2()
	if r.err != nil {
		return r.err
	}
	desc, err := x.cp.utf8(typeIdx)
	if err != nil {
		return err
	}
	if err := x.addDescriptor(desc); err != nil {
		return err
	}
	pairs := int(r.u2())
	for i := 0; i < pairs; i++ {
		r.u2() // element_name_index
		if err := x.elementValue(r); err != nil {
			return err
		}
	}
	return r.err
}

func (x *extractor) elementValue(r *reader) error {
	tag := r.u1()
	if r.err != nil {
		return r.err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		r.skip(2)
	case 'e':
		typeIdx := r.u2()
		constIdx := r.u2()
		if r.err != nil {
			return r.err
		}
		desc, err := x.cp.utf8(typeIdx)
		if err != nil {
			return err
		}
		constName, err := x.cp.utf8(constIdx)
		if err != nil {
			return err
		}
		_, owner, err := scanFieldType(desc, 0, false)
		if err != nil {
			return err
		}
		if owner == "" {
			return fmt.Errorf("enum constant %s has non-class type %s", constName, desc)
		}
		return x.addMember(FieldRef(owner, constName, desc))
	case 'c':
		desc, err := x.cp.utf8(r.u2())
		if r.err != nil {
			return r.err
		}
		if err != nil {
			return err
		}
		if desc != "V" {
			return x.addDescriptor(desc)
		}
	case '@':
		return x.annotation(r)
	case '[':
		n := int(r.u2())
		for i := 0; i < n; i++ {
			if err := x.elementValue(r); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown element value tag %q", tag)
	}
	return r.err
}

func (x *extractor) typeAnnotations(r *reader) error {
	n := int(r.u2())
	for i := 0; i < n; i++ {
		target := r.u1()
		switch {
		case target == 0x00 || target == 0x01:
			r.skip(1)
		case target == 0x10:
			r.skip(2)
		case target == 0x11 || target == 0x12:
			r.skip(2)
		case target >= 0x13 && target <= 0x15:
		case target == 0x16:
			r.skip(1)
		case target == 0x17:
			r.skip(2)
		case target == 0x40 || target == 0x41:
			entries := int(r.u2())
			r.skip(entries * 6)
		case target == 0x42:
			r.skip(2)
		case target >= 0x43 && target <= 0x46:
			r.skip(2)
		case target >= 0x47 && target <= 0x4B:
			r.skip(3)
		default:
			if r.err == nil {
				return fmt.Errorf("unknown type annotation target 0x%02x", target)
			}
		}
		pathLen := int(r.u1())
		r.skip(pathLen * 2)
		if r.err != nil {
			return r.err
		}
		if err := x.annotation(r); err != nil {
			return err
		}
	}
	return r.err
}
