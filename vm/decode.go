package vm

import (
	"fmt"

	"github.com/duovm/duovm/isa"
)

// Instr is one decoded instruction: its static Spec plus whichever
// operand fields its Layout populates. Decode never allocates; callers
// read the fields their opcode's layout defines and ignore the rest.
type Instr struct {
	Spec  *isa.Spec
	A, B, C byte
	Byte  byte
	Imm32 uint32
	Imm64 uint64
}

// decode reads one instruction from prog at off, per spec.md §4.2.2:
// instructions are laid out byte-for-byte with no alignment padding, so
// every field is read with explicit byte arithmetic rather than a
// struct overlay.
func (m *Machine) decode(prog []byte, off uint32) (Instr, error) {
	if off >= uint32(len(prog)) {
		return Instr{}, fmt.Errorf("%w: ip %d past end of program (%d bytes)", ErrUnknownOpcode, off, len(prog))
	}
	op := readByteAt(prog, off)
	spec, ok := m.Table.ByOpcode(op)
	if !ok {
		return Instr{}, fmt.Errorf("%w: 0x%02X at ip %d", ErrUnknownOpcode, op, off)
	}
	if off+uint32(spec.Length) > uint32(len(prog)) {
		return Instr{}, fmt.Errorf("%w: %s at ip %d needs %d bytes, only %d remain", ErrMalformedHeader, spec.Mnemonic, off, spec.Length, len(prog)-int(off))
	}

	in := Instr{Spec: spec}
	p := off + 1

	switch spec.Layout {
	case isa.LayoutNone:
	case isa.LayoutReg:
		in.A = readByteAt(prog, p)
	case isa.LayoutRegReg:
		in.A = readByteAt(prog, p)
		in.B = readByteAt(prog, p+1)
	case isa.LayoutRegRegReg:
		in.A = readByteAt(prog, p)
		in.B = readByteAt(prog, p+1)
		in.C = readByteAt(prog, p+2)
	case isa.LayoutRegImm32:
		in.A = readByteAt(prog, p)
		in.Imm32 = readU32At(prog, p+1)
	case isa.LayoutRegImm64:
		in.A = readByteAt(prog, p)
		in.Imm64 = readU64At(prog, p+1)
	case isa.LayoutRegRegImm32:
		in.A = readByteAt(prog, p)
		in.B = readByteAt(prog, p+1)
		in.Imm32 = readU32At(prog, p+2)
	case isa.LayoutRegRegImm64:
		in.A = readByteAt(prog, p)
		in.B = readByteAt(prog, p+1)
		in.Imm64 = readU64At(prog, p+2)
	case isa.LayoutRegRegByte:
		in.A = readByteAt(prog, p)
		in.B = readByteAt(prog, p+1)
		in.Byte = readByteAt(prog, p+2)
	case isa.LayoutByteReg:
		in.Byte = readByteAt(prog, p)
		in.A = readByteAt(prog, p+1)
	case isa.LayoutImm8:
		in.Byte = readByteAt(prog, p)
	case isa.LayoutImm32:
		in.Imm32 = readU32At(prog, p)
	case isa.LayoutImm64:
		in.Imm64 = readU64At(prog, p)
	default:
		return Instr{}, fmt.Errorf("unhandled operand layout for %s", spec.Mnemonic)
	}

	return in, nil
}
