package classfile

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// JavaClassName converts an internal name ("prod/Outer$Inner") to the binary
// name used by shrinker rules ("prod.Outer$Inner").
func JavaClassName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// scanFieldType reads one field type starting at pos and returns the index
// just past it. For object types (including array element types) the internal
// class name is returned as well.
func scanFieldType(desc string, pos int, allowVoid bool) (next int, class string, err error) {
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if dims > 255 {
		return 0, "", fmt.Errorf("descriptor %q: array has more than 255 dimensions", desc)
	}
	if pos >= len(desc) {
		return 0, "", fmt.Errorf("descriptor %q: truncated", desc)
	}
	c := desc[pos]
	switch {
	case c == 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return 0, "", fmt.Errorf("descriptor %q: bad class type at %d", desc, pos)
		}
		return pos + end + 1, desc[pos+1 : pos+end], nil
	case c == 'V':
		if !allowVoid || dims > 0 {
			return 0, "", fmt.Errorf("descriptor %q: void not allowed at %d", desc, pos)
		}
		return pos + 1, "", nil
	default:
		if _, ok := primitiveNames[c]; !ok {
			return 0, "", fmt.Errorf("descriptor %q: unexpected %q at %d", desc, c, pos)
		}
		return pos + 1, "", nil
	}
}

// ParseMethodDescriptor splits a method descriptor into parameter and return
// field descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("method descriptor %q: missing parameter list", desc)
	}
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		next, _, err := scanFieldType(desc, pos, false)
		if err != nil {
			return nil, "", err
		}
		params = append(params, desc[pos:next])
		pos = next
	}
	if pos >= len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: unterminated parameter list", desc)
	}
	pos++
	next, _, err := scanFieldType(desc, pos, true)
	if err != nil {
		return nil, "", err
	}
	if next != len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: trailing characters", desc)
	}
	return params, desc[pos:], nil
}

// ValidateFieldDescriptor checks a single field descriptor.
func ValidateFieldDescriptor(desc string) error {
	next, _, err := scanFieldType(desc, 0, false)
	if err != nil {
		return err
	}
	if next != len(desc) {
		return fmt.Errorf("field descriptor %q: trailing characters", desc)
	}
	return nil
}

// descriptorClasses returns every class named by a field or method descriptor.
func descriptorClasses(desc string) ([]string, error) {
	var classes []string
	if strings.HasPrefix(desc, "(") {
		params, ret, err := ParseMethodDescriptor(desc)
		if err != nil {
			return nil, err
		}
		for _, p := range append(params, ret) {
			if _, class, _ := scanFieldType(p, 0, true); class != "" {
				classes = append(classes, class)
			}
		}
		return classes, nil
	}
	if err := ValidateFieldDescriptor(desc); err != nil {
		return nil, err
	}
	if _, class, _ := scanFieldType(desc, 0, false); class != "" {
		classes = append(classes, class)
	}
	return classes, nil
}

// JavaTypeName renders a field descriptor as a Java type, e.g.
// "[Ljava/lang/String;" becomes "java.lang.String[]".
func JavaTypeName(desc string) (string, error) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	rest := desc[dims:]
	var base string
	switch {
	case len(rest) == 1:
		name, ok := primitiveNames[rest[0]]
		if !ok {
			return "", fmt.Errorf("type descriptor %q: unknown primitive", desc)
		}
		base = name
	case len(rest) > 2 && rest[0] == 'L' && rest[len(rest)-1] == ';':
		base = JavaClassName(rest[1 : len(rest)-1])
	default:
		return "", fmt.Errorf("type descriptor %q: malformed", desc)
	}
	return base + strings.Repeat("[]", dims), nil
}

// JavaTypeNameOrRaw is JavaTypeName falling back to the raw descriptor.
func JavaTypeNameOrRaw(desc string) string {
	name, err := JavaTypeName(desc)
	if err != nil {
		return desc
	}
	return name
}
