package classfile

import "fmt"

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag  uint8
	a, b uint16
	text string
}

type constantPool []cpEntry

func readConstantPool(r *reader) (constantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant pool count is zero")
	}
	cp := make(constantPool, count)
	for i := 1; i < count; i++ {
		tag := r.u1()
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n := int(r.u2())
			raw := r.bytes(n)
			if r.err != nil {
				return nil, r.err
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.text = s
		case tagInteger, tagFloat:
			r.skip(4)
		case tagLong, tagDouble:
			r.skip(8)
			if r.err != nil {
				return nil, r.err
			}
			cp[i] = e
			// Eight-byte constants occupy two slots.
			i++
			if i >= count {
				return nil, fmt.Errorf("constant #%d: eight-byte constant overruns pool", i-1)
			}
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			if r.err == nil {
				return nil, fmt.Errorf("constant #%d: unknown tag %d", i, tag)
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		cp[i] = e
	}
	return cp, nil
}

func (cp constantPool) entry(i uint16, want ...uint8) (cpEntry, error) {
	if i == 0 || int(i) >= len(cp) {
		return cpEntry{}, fmt.Errorf("constant index %d out of range", i)
	}
	e := cp[i]
	for _, t := range want {
		if e.tag == t {
			return e, nil
		}
	}
	return cpEntry{}, fmt.Errorf("constant #%d has tag %d, want one of %v", i, e.tag, want)
}

func (cp constantPool) utf8(i uint16) (string, error) {
	e, err := cp.entry(i, tagUtf8)
	if err != nil {
		return "", err
	}
	return e.text, nil
}

func (cp constantPool) className(i uint16) (string, error) {
	e, err := cp.entry(i, tagClass)
	if err != nil {
		return "", err
	}
	return cp.utf8(e.a)
}

func (cp constantPool) nameAndType(i uint16) (name, desc string, err error) {
	e, err := cp.entry(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.utf8(e.a); err != nil {
		return "", "", err
	}
	if desc, err = cp.utf8(e.b); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// memberRef resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (cp constantPool) memberRef(i uint16, want ...uint8) (SymbolReference, error) {
	e, err := cp.entry(i, want...)
	if err != nil {
		return SymbolReference{}, err
	}
	owner, err := cp.className(e.a)
	if err != nil {
		return SymbolReference{}, err
	}
	name, desc, err := cp.nameAndType(e.b)
	if err != nil {
		return SymbolReference{}, err
	}
	if e.tag == tagFieldref {
		return FieldRef(owner, name, desc), nil
	}
	return MethodRef(owner, name, desc), nil
}
