package classfile

import (
	"fmt"
	"strings"
)

// sigParser extracts class names from class, method and field generic
// signatures (JVMS 4.7.9.1). Inner classes written as Outer<T>.Inner are
// recorded under their binary name Outer$Inner.
type sigParser struct {
	s    string
	pos  int
	refs *referenceSet
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *sigParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("signature %q at %d: %s", p.s, p.pos, fmt.Sprintf(format, args...))
}

func (p *sigParser) parse() error {
	for p.pos < len(p.s) {
		switch p.peek() {
		case '<':
			if err := p.typeParameters(); err != nil {
				return err
			}
		case '(', ')', '^':
			p.pos++
		default:
			if err := p.typeSignature(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *sigParser) typeParameters() error {
	p.pos++ // '<'
	for p.peek() != '>' {
		colon := strings.IndexByte(p.s[p.pos:], ':')
		if colon <= 0 {
			return p.errorf("expected type parameter name")
		}
		p.pos += colon + 1
		switch p.peek() {
		case 'L', 'T', '[':
			if err := p.typeSignature(); err != nil {
				return err
			}
		}
		for p.peek() == ':' {
			p.pos++
			if err := p.typeSignature(); err != nil {
				return err
			}
		}
		if p.pos >= len(p.s) {
			return p.errorf("unterminated type parameters")
		}
	}
	p.pos++ // '>'
	return nil
}

func (p *sigParser) typeSignature() error {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		p.pos++
		return nil
	case 'T':
		end := strings.IndexByte(p.s[p.pos:], ';')
		if end < 0 {
			return p.errorf("unterminated type variable")
		}
		p.pos += end + 1
		return nil
	case '[':
		p.pos++
		return p.typeSignature()
	case 'L':
		return p.classTypeSignature()
	default:
		return p.errorf("unexpected %q", c)
	}
}

func (p *sigParser) identifier() string {
	start := p.pos
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '<', '.', ';':
			return p.s[start:p.pos]
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *sigParser) classTypeSignature() error {
	p.pos++ // 'L'
	name := p.identifier()
	if name == "" {
		return p.errorf("empty class name")
	}
	p.refs.add(TypeRef(name))
	for {
		switch p.peek() {
		case '<':
			if err := p.typeArguments(); err != nil {
				return err
			}
		case '.':
			p.pos++
			inner := p.identifier()
			if inner == "" {
				return p.errorf("empty inner class name")
			}
			name = name + "$" + inner
			p.refs.add(TypeRef(name))
		case ';':
			p.pos++
			return nil
		default:
			return p.errorf("unterminated class type")
		}
	}
}

func (p *sigParser) typeArguments() error {
	p.pos++ // '<'
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return p.errorf("unterminated type arguments")
		case '*':
			p.pos++
			continue
		case '+', '-':
			p.pos++
		}
		if err := p.typeSignature(); err != nil {
			return err
		}
	}
	p.pos++ // '>'
	return nil
}
