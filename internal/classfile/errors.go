package classfile

import "fmt"

// MalformedClassError reports class bytes that could not be decoded. Container
// and Entry locate the bytes; Class is set when the class name was readable.
type MalformedClassError struct {
	Container string
	Entry     string
	Class     string
	Err       error
}

func (e *MalformedClassError) Error() string {
	where := e.Entry
	if e.Class != "" {
		where = fmt.Sprintf("%s (%s)", e.Entry, JavaClassName(e.Class))
	}
	return fmt.Sprintf("malformed class %s in %s: %v", where, e.Container, e.Err)
}

func (e *MalformedClassError) Unwrap() error { return e.Err }

// partialNameError carries the class name when parsing fails after this_class
// has been read.
type partialNameError struct {
	class string
	err   error
}

func (e *partialNameError) Error() string { return e.err.Error() }
func (e *partialNameError) Unwrap() error { return e.err }

// ClassNameOf returns the class name recorded in a Parse error, if any.
func ClassNameOf(err error) string {
	if pe, ok := err.(*partialNameError); ok {
		return pe.class
	}
	return ""
}
