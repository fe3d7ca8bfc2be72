package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes with constant pool operands.
const (
	opLdc             = 0x12
	opLdcW            = 0x13
	opLdc2W           = 0x14
	opTableswitch     = 0xaa
	opLookupswitch    = 0xab
	opGetstatic       = 0xb2
	opPutfield        = 0xb5
	opInvokevirtual   = 0xb6
	opInvokespecial   = 0xb7
	opInvokestatic    = 0xb8
	opInvokeinterface = 0xb9
	opInvokedynamic   = 0xba
	opNew             = 0xbb
	opAnewarray       = 0xbd
	opCheckcast       = 0xc0
	opInstanceof      = 0xc1
	opWide            = 0xc4
	opMultianewarray  = 0xc5
	opIinc            = 0x84
)

// opcodeLength holds the fixed size of each instruction including operands.
// Zero marks undefined opcodes and the variable-length switches.
var opcodeLength = func() [256]uint8 {
	var t [256]uint8
	set := func(from, to int, n uint8) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 1)
	t[0x10] = 2
	t[0x11] = 3
	t[opLdc] = 2
	set(opLdcW, opLdc2W, 3)
	set(0x15, 0x19, 2)
	set(0x1a, 0x35, 1)
	set(0x36, 0x3a, 2)
	set(0x3b, 0x83, 1)
	t[opIinc] = 3
	set(0x85, 0x98, 1)
	set(0x99, 0xa8, 3)
	t[0xa9] = 2
	set(0xac, 0xb1, 1)
	set(opGetstatic, opInvokestatic, 3)
	t[opInvokeinterface] = 5
	t[opInvokedynamic] = 5
	t[opNew] = 3
	t[0xbc] = 2
	t[opAnewarray] = 3
	set(0xbe, 0xbf, 1)
	set(opCheckcast, opInstanceof, 3)
	set(0xc2, 0xc3, 1)
	t[opMultianewarray] = 4
	set(0xc6, 0xc7, 3)
	set(0xc8, 0xc9, 5)
	t[0xca] = 1
	t[0xfe] = 1
	t[0xff] = 1
	return t
}()

// instructions walks a method body and records every constant pool symbol an
// instruction names.
func (x *extractor) instructions(code []byte) error {
	u2 := func(at int) uint16 { return binary.BigEndian.Uint16(code[at:]) }
	i4 := func(at int) int { return int(int32(binary.BigEndian.Uint32(code[at:]))) }

	for pc := 0; pc < len(code); {
		op := code[pc]
		size := int(opcodeLength[op])
		switch op {
		case opTableswitch, opLookupswitch:
			base := pc + 1 + (4-(pc+1)%4)%4
			if base+12 > len(code) {
				return fmt.Errorf("pc %d: truncated switch", pc)
			}
			if op == opTableswitch {
				low, high := i4(base+4), i4(base+8)
				if high < low {
					return fmt.Errorf("pc %d: tableswitch high %d < low %d", pc, high, low)
				}
				size = base + 12 + (high-low+1)*4 - pc
			} else {
				pairs := i4(base + 4)
				if pairs < 0 {
					return fmt.Errorf("pc %d: negative lookupswitch pair count", pc)
				}
				size = base + 8 + pairs*8 - pc
			}
		case opWide:
			if pc+1 >= len(code) {
				return fmt.Errorf("pc %d: truncated wide", pc)
			}
			size = 4
			if code[pc+1] == opIinc {
				size = 6
			}
		}
		if size == 0 {
			return fmt.Errorf("pc %d: undefined opcode 0x%02x", pc, op)
		}
		if pc+size > len(code) {
			return fmt.Errorf("pc %d: instruction 0x%02x overruns code", pc, op)
		}

		var err error
		switch {
		case op == opLdc:
			err = x.loadableConstant(uint16(code[pc+1]))
		case op == opLdcW || op == opLdc2W:
			err = x.loadableConstant(u2(pc + 1))
		case op >= opGetstatic && op <= opPutfield:
			err = x.memberOperand(u2(pc+1), tagFieldref)
		case op == opInvokevirtual:
			err = x.memberOperand(u2(pc+1), tagMethodref)
		case op == opInvokespecial || op == opInvokestatic:
			err = x.memberOperand(u2(pc+1), tagMethodref, tagInterfaceMethodref)
		case op == opInvokeinterface:
			err = x.memberOperand(u2(pc+1), tagInterfaceMethodref)
		case op == opInvokedynamic:
			err = x.invokeDynamic(u2(pc + 1))
		case op == opNew || op == opAnewarray || op == opCheckcast ||
			op == opInstanceof || op == opMultianewarray:
			var name string
			if name, err = x.cp.className(u2(pc + 1)); err == nil {
				err = x.addClass(name)
			}
		}
		if err != nil {
			return fmt.Errorf("pc %d: %w", pc, err)
		}
		pc += size
	}
	return nil
}

func (x *extractor) memberOperand(idx uint16, want ...uint8) error {
	ref, err := x.cp.memberRef(idx, want...)
	if err != nil {
		return err
	}
	return x.addMember(ref)
}

// invokeDynamic records the call site descriptor. Bootstrap method handles and
// their static arguments are recorded from the BootstrapMethods attribute.
func (x *extractor) invokeDynamic(idx uint16) error {
	e, err := x.cp.entry(idx, tagInvokeDynamic)
	if err != nil {
		return err
	}
	_, desc, err := x.cp.nameAndType(e.b)
	if err != nil {
		return err
	}
	return x.addDescriptor(desc)
}
