// Package isa defines the instruction-set metadata shared by the
// assembler (encoder) and the virtual machine (decoder/dispatcher): the
// mnemonic <-> opcode mapping, per-opcode byte length, and operand
// layout for both the register ISA and the stack ISA described in
// spec.md §4.2.4 and §4.2.5.
//
// Opcodes 0x00-0x08 are shared between the two instruction sets with
// identical encoding (spec.md §6.2, §9 "Shared numeric opcode space").
// Everything from 0x09 up reuses the same byte values for unrelated
// register-ISA and stack-ISA instructions; which table applies is fixed
// for the lifetime of a run by the binary image's mode field.
package isa

import "fmt"

// Mode selects which instruction set a binary image uses.
type Mode uint32

const (
	ModeRegister Mode = 0
	ModeStack    Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeRegister:
		return "register"
	case ModeStack:
		return "stack"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}

// Layout describes the operand shapes that follow an opcode byte.
type Layout int

const (
	LayoutNone        Layout = iota // no operands
	LayoutReg                       // Ra
	LayoutRegReg                    // Ra, Rb
	LayoutRegRegReg                 // Ra, Rb, Rc
	LayoutRegImm32                  // Ra, #C:u32
	LayoutRegImm64                  // Ra, #C:u64
	LayoutRegRegImm32               // Ra, Rb, #C:u32
	LayoutRegRegImm64               // Ra, Rb, #C:u64
	LayoutRegRegByte                // Ra, Rb, #n:u8  (decimal-precision / length byte)
	LayoutByteReg                   // #b:u8, Ra      (locals/args addressing)
	LayoutImm8                      // #C:u8
	LayoutImm32                     // #C:u32
	LayoutImm64                     // #C:u64
)

// Spec is one opcode's static metadata: its mnemonic, byte length
// (opcode byte included) and operand layout.
type Spec struct {
	Mnemonic string
	Opcode   byte
	Length   int
	Layout   Layout
}

// Shared control/syscall opcodes, identical in both instruction sets.
const (
	OpNop   = 0x00
	OpExit  = 0x01
	OpJmp   = 0x02
	OpCall  = 0x03
	OpRet   = 0x04
	OpRet32 = 0x05
	OpRet64 = 0x06
	OpSCall = 0x07
	OpSArg  = 0x08
)

var shared = []Spec{
	{"NOP", OpNop, 1, LayoutNone},
	{"EXIT", OpExit, 1, LayoutNone},
	{"JMP", OpJmp, 5, LayoutImm32},
	{"CALL", OpCall, 5, LayoutImm32},
	{"RET", OpRet, 2, LayoutImm8},
	{"RET.32", OpRet32, 2, LayoutImm8},
	{"RET.64", OpRet64, 2, LayoutImm8},
	{"SCALL", OpSCall, 2, LayoutImm8},
	{"SARG", OpSArg, 2, LayoutImm8},
}

// Register-ISA specific opcodes (spec.md §4.2.4).
var registerOnly = []Spec{
	{"MOV", 0x09, 3, LayoutRegReg},
	{"JMPI", 0x0A, 2, LayoutReg},
	{"LDI", 0x0B, 6, LayoutRegImm32},
	{"LDI.64", 0x0C, 10, LayoutRegImm64},

	{"LDM", 0x0D, 3, LayoutRegReg},
	{"STM", 0x0E, 3, LayoutRegReg},
	{"LDM.64", 0x0F, 3, LayoutRegReg},
	{"STM.64", 0x10, 3, LayoutRegReg},
	{"LDMI", 0x11, 7, LayoutRegRegImm32},
	{"STMI", 0x12, 7, LayoutRegRegImm32},
	{"LDMI.64", 0x13, 7, LayoutRegRegImm32},
	{"STMI.64", 0x14, 7, LayoutRegRegImm32},

	{"LDL", 0x15, 3, LayoutByteReg},
	{"STL", 0x16, 3, LayoutByteReg},
	{"LDL.64", 0x17, 3, LayoutByteReg},
	{"STL.64", 0x18, 3, LayoutByteReg},
	{"LDA", 0x19, 3, LayoutByteReg},
	{"STA", 0x1A, 3, LayoutByteReg},
	{"LDA.64", 0x1B, 3, LayoutByteReg},
	{"STA.64", 0x1C, 3, LayoutByteReg},

	{"CPEQ", 0x1D, 3, LayoutRegReg},
	{"CPNQ", 0x1E, 3, LayoutRegReg},
	{"CPGT", 0x1F, 3, LayoutRegReg},
	{"CPLT", 0x20, 3, LayoutRegReg},
	{"CPGQ", 0x21, 3, LayoutRegReg},
	{"CPLQ", 0x22, 3, LayoutRegReg},

	{"ADD", 0x23, 4, LayoutRegRegReg},
	{"ADD.64", 0x24, 4, LayoutRegRegReg},
	{"ADD.F", 0x25, 4, LayoutRegRegReg},
	{"ADD.F64", 0x26, 4, LayoutRegRegReg},
	{"ADDI", 0x27, 7, LayoutRegRegImm32},
	{"ADDI.64", 0x28, 11, LayoutRegRegImm64},
	{"ADDI.F", 0x29, 7, LayoutRegRegImm32},
	{"ADDI.F64", 0x2A, 11, LayoutRegRegImm64},

	{"SUB", 0x2B, 4, LayoutRegRegReg},
	{"SUB.64", 0x2C, 4, LayoutRegRegReg},
	{"SUB.F", 0x2D, 4, LayoutRegRegReg},
	{"SUB.F64", 0x2E, 4, LayoutRegRegReg},
	{"SUBI", 0x2F, 7, LayoutRegRegImm32},
	{"SUBI.64", 0x30, 11, LayoutRegRegImm64},
	{"SUBI.F", 0x31, 7, LayoutRegRegImm32},
	{"SUBI.F64", 0x32, 11, LayoutRegRegImm64},

	{"MUL", 0x33, 4, LayoutRegRegReg},
	{"MUL.64", 0x34, 4, LayoutRegRegReg},
	{"MUL.F", 0x35, 4, LayoutRegRegReg},
	{"MUL.F64", 0x36, 4, LayoutRegRegReg},
	{"MULI", 0x37, 7, LayoutRegRegImm32},
	{"MULI.64", 0x38, 11, LayoutRegRegImm64},
	{"MULI.F", 0x39, 7, LayoutRegRegImm32},
	{"MULI.F64", 0x3A, 11, LayoutRegRegImm64},

	{"DIV", 0x3B, 4, LayoutRegRegReg},
	{"DIV.64", 0x3C, 4, LayoutRegRegReg},
	{"DIV.F", 0x3D, 4, LayoutRegRegReg},
	{"DIV.F64", 0x3E, 4, LayoutRegRegReg},
	{"DIVI", 0x3F, 7, LayoutRegRegImm32},
	{"DIVI.64", 0x40, 11, LayoutRegRegImm64},
	{"DIVI.F", 0x41, 7, LayoutRegRegImm32},
	{"DIVI.F64", 0x42, 11, LayoutRegRegImm64},

	{"BOR", 0x43, 4, LayoutRegRegReg},
	{"BOR.64", 0x44, 4, LayoutRegRegReg},
	{"BORI", 0x45, 7, LayoutRegRegImm32},
	{"BORI.64", 0x46, 11, LayoutRegRegImm64},
	{"BXOR", 0x47, 4, LayoutRegRegReg},
	{"BXOR.64", 0x48, 4, LayoutRegRegReg},
	{"BXORI", 0x49, 7, LayoutRegRegImm32},
	{"BXORI.64", 0x4A, 11, LayoutRegRegImm64},
	{"BAND", 0x4B, 4, LayoutRegRegReg},
	{"BAND.64", 0x4C, 4, LayoutRegRegReg},
	{"BANDI", 0x4D, 7, LayoutRegRegImm32},
	{"BANDI.64", 0x4E, 11, LayoutRegRegImm64},

	{"INV", 0x4F, 3, LayoutRegReg},
	{"INV.64", 0x50, 3, LayoutRegReg},
	{"NEG", 0x51, 3, LayoutRegReg},
	{"NEG.64", 0x52, 3, LayoutRegReg},
	{"NEG.F", 0x53, 3, LayoutRegReg},
	{"NEG.F64", 0x54, 3, LayoutRegReg},

	{"CPZ", 0x55, 2, LayoutReg},
	{"CPI", 0x56, 6, LayoutRegImm32},
	{"CPSTR", 0x57, 3, LayoutRegReg},
	{"CPCHR", 0x58, 3, LayoutRegReg},

	{"BRZ", 0x59, 5, LayoutImm32},
	{"BRNZ", 0x5A, 5, LayoutImm32},
	{"BRIZ", 0x5B, 2, LayoutReg},
	{"BRINZ", 0x5C, 2, LayoutReg},

	{"ITOL", 0x5D, 3, LayoutRegReg},
	{"ITOF", 0x5E, 3, LayoutRegReg},
	{"ITOD", 0x5F, 3, LayoutRegReg},
	{"LTOI", 0x60, 3, LayoutRegReg},
	{"LTOF", 0x61, 3, LayoutRegReg},
	{"LTOD", 0x62, 3, LayoutRegReg},
	{"FTOI", 0x63, 3, LayoutRegReg},
	{"FTOL", 0x64, 3, LayoutRegReg},
	{"FTOD", 0x65, 3, LayoutRegReg},
	{"DTOI", 0x66, 3, LayoutRegReg},
	{"DTOL", 0x67, 3, LayoutRegReg},
	{"DTOF", 0x68, 3, LayoutRegReg},

	{"ITOS", 0x69, 4, LayoutRegRegByte},
	{"LTOS", 0x6A, 4, LayoutRegRegByte},
	{"FTOS", 0x6B, 4, LayoutRegRegByte},
	{"DTOS", 0x6C, 4, LayoutRegRegByte},

	{"STOI", 0x6D, 7, LayoutRegRegImm32},
	{"STOL", 0x6E, 11, LayoutRegRegImm64},
	{"STOF", 0x6F, 7, LayoutRegRegImm32},
	{"STOD", 0x70, 11, LayoutRegRegImm64},

	{"NEW", 0x71, 3, LayoutRegReg},
	{"NEWI", 0x72, 6, LayoutRegImm32},
	{"DEL", 0x73, 2, LayoutReg},
	{"RESZ", 0x74, 3, LayoutRegReg},
	{"RESZI", 0x75, 6, LayoutRegImm32},
	{"SIZE", 0x76, 3, LayoutRegReg},
	{"STR", 0x77, 6, LayoutRegImm32},
	{"STRCPY", 0x78, 7, LayoutRegRegImm32},
	{"STRCAT", 0x79, 7, LayoutRegRegImm32},
	{"STRCMB", 0x7A, 4, LayoutRegRegReg},
}

// Stack-ISA specific opcodes (spec.md §4.2.5). These reuse the same
// numeric opcode space as registerOnly for unrelated operations.
var stackOnly = []Spec{
	{"LDI", 0x09, 5, LayoutImm32},
	{"LDI.64", 0x0A, 9, LayoutImm64},
	{"LDI.F", 0x0B, 5, LayoutImm32},
	{"LDI.F64", 0x0C, 9, LayoutImm64},

	{"LDL", 0x0D, 2, LayoutImm8},
	{"STL", 0x0E, 2, LayoutImm8},
	{"LDL.64", 0x0F, 2, LayoutImm8},
	{"STL.64", 0x10, 2, LayoutImm8},
	{"LDA", 0x11, 2, LayoutImm8},
	{"STA", 0x12, 2, LayoutImm8},
	{"LDA.64", 0x13, 2, LayoutImm8},
	{"STA.64", 0x14, 2, LayoutImm8},

	{"LDM", 0x15, 1, LayoutNone},
	{"STM", 0x16, 1, LayoutNone},
	{"LDM.64", 0x17, 1, LayoutNone},
	{"STM.64", 0x18, 1, LayoutNone},
	{"LDMI", 0x19, 5, LayoutImm32},
	{"STMI", 0x1A, 5, LayoutImm32},

	{"ADD", 0x1B, 1, LayoutNone},
	{"ADD.64", 0x1C, 1, LayoutNone},
	{"ADD.F", 0x1D, 1, LayoutNone},
	{"ADD.F64", 0x1E, 1, LayoutNone},
	{"SUB", 0x1F, 1, LayoutNone},
	{"SUB.64", 0x20, 1, LayoutNone},
	{"SUB.F", 0x21, 1, LayoutNone},
	{"SUB.F64", 0x22, 1, LayoutNone},
	{"MUL", 0x23, 1, LayoutNone},
	{"MUL.64", 0x24, 1, LayoutNone},
	{"MUL.F", 0x25, 1, LayoutNone},
	{"MUL.F64", 0x26, 1, LayoutNone},
	{"DIV", 0x27, 1, LayoutNone},
	{"DIV.64", 0x28, 1, LayoutNone},
	{"DIV.F", 0x29, 1, LayoutNone},
	{"DIV.F64", 0x2A, 1, LayoutNone},

	{"BOR", 0x2B, 1, LayoutNone},
	{"BOR.64", 0x2C, 1, LayoutNone},
	{"BXOR", 0x2D, 1, LayoutNone},
	{"BXOR.64", 0x2E, 1, LayoutNone},
	{"BAND", 0x2F, 1, LayoutNone},
	{"BAND.64", 0x30, 1, LayoutNone},
	{"INV", 0x31, 1, LayoutNone},
	{"INV.64", 0x32, 1, LayoutNone},
	{"NEG", 0x33, 1, LayoutNone},
	{"NEG.64", 0x34, 1, LayoutNone},
	{"NEG.F", 0x35, 1, LayoutNone},
	{"NEG.F64", 0x36, 1, LayoutNone},

	{"CPEQ", 0x37, 1, LayoutNone},
	{"CPNQ", 0x38, 1, LayoutNone},
	{"CPGT", 0x39, 1, LayoutNone},
	{"CPLT", 0x3A, 1, LayoutNone},
	{"CPGQ", 0x3B, 1, LayoutNone},
	{"CPLQ", 0x3C, 1, LayoutNone},
	{"CPZ", 0x3D, 1, LayoutNone},
	{"CPSTR", 0x3E, 1, LayoutNone},
	{"CPCHR", 0x3F, 1, LayoutNone},

	{"BRZ", 0x40, 5, LayoutImm32},
	{"BRNZ", 0x41, 5, LayoutImm32},
	{"JMPI", 0x42, 1, LayoutNone},

	{"ITOL", 0x43, 1, LayoutNone},
	{"ITOF", 0x44, 1, LayoutNone},
	{"ITOD", 0x45, 1, LayoutNone},
	{"LTOI", 0x46, 1, LayoutNone},
	{"LTOF", 0x47, 1, LayoutNone},
	{"LTOD", 0x48, 1, LayoutNone},
	{"FTOI", 0x49, 1, LayoutNone},
	{"FTOL", 0x4A, 1, LayoutNone},
	{"FTOD", 0x4B, 1, LayoutNone},
	{"DTOI", 0x4C, 1, LayoutNone},
	{"DTOL", 0x4D, 1, LayoutNone},
	{"DTOF", 0x4E, 1, LayoutNone},

	{"ITOS", 0x4F, 2, LayoutImm8},
	{"LTOS", 0x50, 2, LayoutImm8},
	{"FTOS", 0x51, 2, LayoutImm8},
	{"DTOS", 0x52, 2, LayoutImm8},

	{"STOI", 0x53, 5, LayoutImm32},
	{"STOL", 0x54, 9, LayoutImm64},
	{"STOF", 0x55, 5, LayoutImm32},
	{"STOD", 0x56, 9, LayoutImm64},

	{"NEW", 0x57, 1, LayoutNone},
	{"NEWI", 0x58, 5, LayoutImm32},
	{"DEL", 0x59, 1, LayoutNone},
	{"RESZ", 0x5A, 1, LayoutNone},
	{"RESZI", 0x5B, 5, LayoutImm32},
	{"SIZE", 0x5C, 1, LayoutNone},
	{"STR", 0x5D, 5, LayoutImm32},
	{"STRCPY", 0x5E, 5, LayoutImm32},
	{"STRCAT", 0x5F, 5, LayoutImm32},
	{"STRCMB", 0x60, 1, LayoutNone},
}

// Table is a fully resolved opcode -> Spec lookup for one mode.
type Table struct {
	byOpcode  [256]*Spec
	byMnemoic map[string]*Spec
}

func build(extra []Spec) *Table {
	t := &Table{byMnemoic: make(map[string]*Spec, len(shared)+len(extra))}
	add := func(s Spec) {
		cp := s
		t.byOpcode[cp.Opcode] = &cp
		t.byMnemoic[cp.Mnemonic] = &cp
	}
	for _, s := range shared {
		add(s)
	}
	for _, s := range extra {
		add(s)
	}
	return t
}

var (
	registerTable = build(registerOnly)
	stackTable    = build(stackOnly)
)

// TableFor returns the opcode table for the given run mode.
func TableFor(m Mode) *Table {
	if m == ModeStack {
		return stackTable
	}
	return registerTable
}

// ByOpcode looks up a spec by its opcode byte. Returns nil, false if the
// byte is unassigned in this table.
func (t *Table) ByOpcode(op byte) (*Spec, bool) {
	s := t.byOpcode[op]
	return s, s != nil
}

// ByMnemonic looks up a spec by its textual mnemonic.
func (t *Table) ByMnemonic(name string) (*Spec, bool) {
	s, ok := t.byMnemoic[name]
	return s, ok
}
