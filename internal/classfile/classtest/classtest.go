// Package classtest assembles small class files in memory so tests can build
// class containers without a Java toolchain.
package classtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Access flags used by fixtures.
const (
	AccPublic    = 0x0001
	AccStatic    = 0x0008
	AccSuper     = 0x0020
	AccNative    = 0x0100
	AccInterface = 0x0200
	AccAbstract  = 0x0400
)

// Insn is one encoded instruction.
type Insn struct {
	op    byte
	owner string
	name  string
	desc  string
	class string
	raw   []byte
	iface bool
}

func InvokeVirtual(owner, name, desc string) Insn {
	return Insn{op: 0xb6, owner: owner, name: name, desc: desc}
}

func InvokeSpecial(owner, name, desc string) Insn {
	return Insn{op: 0xb7, owner: owner, name: name, desc: desc}
}

func InvokeStatic(owner, name, desc string) Insn {
	return Insn{op: 0xb8, owner: owner, name: name, desc: desc}
}

func InvokeInterface(owner, name, desc string) Insn {
	return Insn{op: 0xb9, owner: owner, name: name, desc: desc, iface: true}
}

func GetField(owner, name, desc string) Insn {
	return Insn{op: 0xb4, owner: owner, name: name, desc: desc}
}

func GetStatic(owner, name, desc string) Insn {
	return Insn{op: 0xb2, owner: owner, name: name, desc: desc}
}

func PutField(owner, name, desc string) Insn {
	return Insn{op: 0xb5, owner: owner, name: name, desc: desc}
}

func New(class string) Insn        { return Insn{op: 0xbb, class: class} }
func Checkcast(class string) Insn  { return Insn{op: 0xc0, class: class} }
func Instanceof(class string) Insn { return Insn{op: 0xc1, class: class} }
func ANewArray(class string) Insn  { return Insn{op: 0xbd, class: class} }

// LdcClass loads a class literal with ldc_w.
func LdcClass(class string) Insn { return Insn{op: 0x13, class: class} }

// Raw emits bytes verbatim; they must not reference the constant pool.
func Raw(b ...byte) Insn { return Insn{raw: b} }

// Method describes a method and its body. Code is terminated with a return.
type Method struct {
	Name        string
	Descriptor  string
	Access      uint16
	Code        []Insn
	Catches     []string
	Throws      []string
	Signature   string
	Annotations []string
}

type Field struct {
	Name        string
	Descriptor  string
	Access      uint16
	Signature   string
	Annotations []string
}

// Class describes a class file. Super defaults to java/lang/Object.
type Class struct {
	Name        string
	Super       string
	Interfaces  []string
	Access      uint16
	Fields      []Field
	Methods     []Method
	Signature   string
	Annotations []string
}

type pool struct {
	entries [][]byte
	index   map[string]uint16
}

func (p *pool) add(key string, b []byte) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	p.entries = append(p.entries, b)
	i := uint16(len(p.entries))
	p.index[key] = i
	return i
}

func (p *pool) utf8(s string) uint16 {
	b := []byte{1}
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return p.add("u:"+s, append(b, s...))
}

func (p *pool) class(name string) uint16 {
	n := p.utf8(name)
	return p.add("c:"+name, binary.BigEndian.AppendUint16([]byte{7}, n))
}

func (p *pool) member(tag byte, owner, name, desc string) uint16 {
	c := p.class(owner)
	n, d := p.utf8(name), p.utf8(desc)
	nat := p.add("n:"+name+":"+desc, binary.BigEndian.AppendUint16(binary.BigEndian.AppendUint16([]byte{12}, n), d))
	b := binary.BigEndian.AppendUint16(binary.BigEndian.AppendUint16([]byte{tag}, c), nat)
	return p.add(string(rune('0'+tag))+":"+owner+"."+name+desc, b)
}

type attr struct {
	name string
	body []byte
}

type buf struct{ bytes.Buffer }

func (b *buf) u1(v byte)   { b.WriteByte(v) }
func (b *buf) u2(v uint16) { b.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (b *buf) u4(v uint32) { b.Write(binary.BigEndian.AppendUint32(nil, v)) }

func (b *buf) attribute(p *pool, name string, body []byte) {
	b.u2(p.utf8(name))
	b.u4(uint32(len(body)))
	b.Write(body)
}

func commonAttributes(p *pool, signature string, annotations []string) []attr {
	var attrs []attr
	if signature != "" {
		var body buf
		body.u2(p.utf8(signature))
		attrs = append(attrs, attr{"Signature", body.Bytes()})
	}
	if len(annotations) > 0 {
		var body buf
		body.u2(uint16(len(annotations)))
		for _, a := range annotations {
			body.u2(p.utf8(a))
			body.u2(0)
		}
		attrs = append(attrs, attr{"RuntimeVisibleAnnotations", body.Bytes()})
	}
	return attrs
}

func writeAttributes(b *buf, p *pool, attrs []attr) {
	b.u2(uint16(len(attrs)))
	for _, a := range attrs {
		b.attribute(p, a.name, a.body)
	}
}

func encodeCode(p *pool, insns []Insn) []byte {
	var code buf
	for _, in := range insns {
		switch {
		case in.raw != nil:
			code.Write(in.raw)
		case in.class != "":
			code.u1(in.op)
			code.u2(p.class(in.class))
		case in.op == 0xb2 || in.op == 0xb3 || in.op == 0xb4 || in.op == 0xb5:
			code.u1(in.op)
			code.u2(p.member(9, in.owner, in.name, in.desc))
		case in.iface:
			code.u1(in.op)
			code.u2(p.member(11, in.owner, in.name, in.desc))
			code.u1(1)
			code.u1(0)
		default:
			code.u1(in.op)
			code.u2(p.member(10, in.owner, in.name, in.desc))
		}
	}
	code.u1(0xb1) // return
	return code.Bytes()
}

// Bytes encodes the class as a class file (major version 52).
func (c Class) Bytes() []byte {
	p := &pool{index: make(map[string]uint16)}
	var body buf

	access := c.Access
	if access == 0 {
		access = AccPublic | AccSuper
	}
	body.u2(access)
	body.u2(p.class(c.Name))
	super := c.Super
	if super == "" && c.Name != "java/lang/Object" {
		super = "java/lang/Object"
	}
	if super == "" {
		body.u2(0)
	} else {
		body.u2(p.class(super))
	}
	body.u2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		body.u2(p.class(i))
	}

	body.u2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body.u2(f.Access)
		body.u2(p.utf8(f.Name))
		body.u2(p.utf8(f.Descriptor))
		writeAttributes(&body, p, commonAttributes(p, f.Signature, f.Annotations))
	}

	body.u2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		body.u2(m.Access)
		body.u2(p.utf8(m.Name))
		body.u2(p.utf8(m.Descriptor))
		var attrs []attr
		if m.Access&(AccAbstract|AccNative) == 0 {
			code := encodeCode(p, m.Code)
			var ab buf
			ab.u2(8) // max_stack
			ab.u2(8) // max_locals
			ab.u4(uint32(len(code)))
			ab.Write(code)
			ab.u2(uint16(len(m.Catches)))
			for _, exc := range m.Catches {
				ab.u2(0)
				ab.u2(uint16(len(code)))
				ab.u2(0)
				ab.u2(p.class(exc))
			}
			ab.u2(0)
			attrs = append(attrs, attr{"Code", ab.Bytes()})
		}
		if len(m.Throws) > 0 {
			var ab buf
			ab.u2(uint16(len(m.Throws)))
			for _, exc := range m.Throws {
				ab.u2(p.class(exc))
			}
			attrs = append(attrs, attr{"Exceptions", ab.Bytes()})
		}
		attrs = append(attrs, commonAttributes(p, m.Signature, m.Annotations)...)
		writeAttributes(&body, p, attrs)
	}

	writeAttributes(&body, p, commonAttributes(p, c.Signature, c.Annotations))

	var out buf
	out.u4(0xCAFEBABE)
	out.u2(0)
	out.u2(52)
	out.u2(uint16(len(p.entries) + 1))
	for _, e := range p.entries {
		out.Write(e)
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

// EntryName is the container path of a class, e.g. "prod/Bar.class".
func EntryName(class string) string {
	return class + ".class"
}

// WriteDir writes classes as a directory tree under dir.
func WriteDir(t testing.TB, dir string, classes ...Class) string {
	t.Helper()
	for _, c := range classes {
		path := filepath.Join(dir, filepath.FromSlash(EntryName(c.Name)))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, c.Bytes(), 0o644); err != nil {
			t.Fatalf("write class: %v", err)
		}
	}
	return dir
}

// WriteJar writes classes into a jar archive at path.
func WriteJar(t testing.TB, path string, classes ...Class) string {
	t.Helper()
	entries := make(map[string][]byte, len(classes))
	var order []string
	for _, c := range classes {
		name := EntryName(c.Name)
		entries[name] = c.Bytes()
		order = append(order, name)
	}
	WriteZip(t, path, order, entries)
	return path
}

// WriteZip writes raw entries in the given order.
func WriteZip(t testing.TB, path string, order []string, entries map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write(entries[name]); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}
