package vm

import (
	"fmt"
	"math"

	"github.com/duovm/duovm/isa"
)

// executeRegister dispatches the register-ISA opcodes (spec.md §4.2.4,
// opcodes 0x09 and up). Shared control/host-call opcodes are handled
// by execute() before this is reached.
func (m *Machine) executeRegister(in Instr) (jumped bool, err error) {
	switch in.Spec.Mnemonic {

	case "MOV":
		m.setReg64(in.A, m.reg64(in.B))

	case "JMPI":
		m.IP = m.reg32(in.A)
		return true, nil

	case "LDI":
		m.setReg32(in.A, in.Imm32)
	case "LDI.64":
		m.setReg64(in.A, in.Imm64)

	case "LDM":
		m.setReg32(in.A, m.Heap.ReadWord(m.reg32(in.B)))
	case "STM":
		m.Heap.WriteWord(m.reg32(in.B), m.reg32(in.A))
	case "LDM.64":
		m.setReg64(in.A, m.Heap.ReadDWord(m.reg32(in.B)))
	case "STM.64":
		m.Heap.WriteDWord(m.reg32(in.B), m.reg64(in.A))
	case "LDMI":
		m.setReg32(in.A, m.Heap.ReadWord(m.reg32(in.B)+in.Imm32))
	case "STMI":
		m.Heap.WriteWord(m.reg32(in.B)+in.Imm32, m.reg32(in.A))
	case "LDMI.64":
		m.setReg64(in.A, m.Heap.ReadDWord(m.reg32(in.B)+in.Imm32))
	case "STMI.64":
		m.Heap.WriteDWord(m.reg32(in.B)+in.Imm32, m.reg64(in.A))

	case "LDL":
		m.setReg32(in.A, m.stack[m.localWord(in.Byte)])
	case "STL":
		m.stack[m.localWord(in.Byte)] = m.reg32(in.A)
	case "LDL.64":
		m.setReg64(in.A, m.readStackDWord(m.localWord(in.Byte)))
	case "STL.64":
		m.writeStackDWord(m.localWord(in.Byte), m.reg64(in.A))
	case "LDA":
		m.setReg32(in.A, m.stack[m.argWord(in.Byte)])
	case "STA":
		m.stack[m.argWord(in.Byte)] = m.reg32(in.A)
	case "LDA.64":
		m.setReg64(in.A, m.readStackDWord(m.argWord(in.Byte)-1))
	case "STA.64":
		m.writeStackDWord(m.argWord(in.Byte)-1, m.reg64(in.A))

	case "CPEQ":
		m.setCompare(m.reg32(in.A) == m.reg32(in.B))
	case "CPNQ":
		m.setCompare(m.reg32(in.A) != m.reg32(in.B))
	case "CPGT":
		m.setCompare(int32(m.reg32(in.A)) > int32(m.reg32(in.B)))
	case "CPLT":
		m.setCompare(int32(m.reg32(in.A)) < int32(m.reg32(in.B)))
	case "CPGQ":
		m.setCompare(int32(m.reg32(in.A)) >= int32(m.reg32(in.B)))
	case "CPLQ":
		m.setCompare(int32(m.reg32(in.A)) <= int32(m.reg32(in.B)))
	case "CPZ":
		m.setCompare(m.reg32(in.A) == 0)
	case "CPI":
		m.setCompare(m.reg32(in.A) == in.Imm32)
	case "CPSTR":
		m.setCompare(string(m.Heap.ReadCString(m.reg32(in.A))) == string(m.Heap.ReadCString(m.reg32(in.B))))
	case "CPCHR":
		m.setCompare(m.Heap.ReadByte(m.reg32(in.A)) == m.Heap.ReadByte(m.reg32(in.B)))

	case "ADD":
		m.setReg32(in.A, m.reg32(in.B)+m.reg32(in.C))
	case "ADD.64":
		m.setReg64(in.A, m.reg64(in.B)+m.reg64(in.C))
	case "ADD.F":
		m.setRegF32(in.A, m.regF32(in.B)+m.regF32(in.C))
	case "ADD.F64":
		m.setRegF64(in.A, m.regF64(in.B)+m.regF64(in.C))
	case "ADDI":
		m.setReg32(in.A, m.reg32(in.B)+in.Imm32)
	case "ADDI.64":
		m.setReg64(in.A, m.reg64(in.B)+in.Imm64)
	case "ADDI.F":
		m.setRegF32(in.A, m.regF32(in.B)+math.Float32frombits(in.Imm32))
	case "ADDI.F64":
		m.setRegF64(in.A, m.regF64(in.B)+math.Float64frombits(in.Imm64))

	case "SUB":
		m.setReg32(in.A, m.reg32(in.B)-m.reg32(in.C))
	case "SUB.64":
		m.setReg64(in.A, m.reg64(in.B)-m.reg64(in.C))
	case "SUB.F":
		m.setRegF32(in.A, m.regF32(in.B)-m.regF32(in.C))
	case "SUB.F64":
		m.setRegF64(in.A, m.regF64(in.B)-m.regF64(in.C))
	case "SUBI":
		m.setReg32(in.A, m.reg32(in.B)-in.Imm32)
	case "SUBI.64":
		m.setReg64(in.A, m.reg64(in.B)-in.Imm64)
	case "SUBI.F":
		m.setRegF32(in.A, m.regF32(in.B)-math.Float32frombits(in.Imm32))
	case "SUBI.F64":
		m.setRegF64(in.A, m.regF64(in.B)-math.Float64frombits(in.Imm64))

	case "MUL":
		m.setReg32(in.A, m.reg32(in.B)*m.reg32(in.C))
	case "MUL.64":
		m.setReg64(in.A, m.reg64(in.B)*m.reg64(in.C))
	case "MUL.F":
		m.setRegF32(in.A, m.regF32(in.B)*m.regF32(in.C))
	case "MUL.F64":
		m.setRegF64(in.A, m.regF64(in.B)*m.regF64(in.C))
	case "MULI":
		m.setReg32(in.A, m.reg32(in.B)*in.Imm32)
	case "MULI.64":
		m.setReg64(in.A, m.reg64(in.B)*in.Imm64)
	case "MULI.F":
		m.setRegF32(in.A, m.regF32(in.B)*math.Float32frombits(in.Imm32))
	case "MULI.F64":
		m.setRegF64(in.A, m.regF64(in.B)*math.Float64frombits(in.Imm64))

	case "DIV":
		if m.reg32(in.C) == 0 {
			return false, ErrDivideByZero
		}
		m.setReg32(in.A, uint32(int32(m.reg32(in.B))/int32(m.reg32(in.C))))
	case "DIV.64":
		if m.reg64(in.C) == 0 {
			return false, ErrDivideByZero
		}
		m.setReg64(in.A, uint64(int64(m.reg64(in.B))/int64(m.reg64(in.C))))
	case "DIV.F":
		m.setRegF32(in.A, m.regF32(in.B)/m.regF32(in.C))
	case "DIV.F64":
		m.setRegF64(in.A, m.regF64(in.B)/m.regF64(in.C))
	case "DIVI":
		if in.Imm32 == 0 {
			return false, ErrDivideByZero
		}
		m.setReg32(in.A, uint32(int32(m.reg32(in.B))/int32(in.Imm32)))
	case "DIVI.64":
		if in.Imm64 == 0 {
			return false, ErrDivideByZero
		}
		m.setReg64(in.A, uint64(int64(m.reg64(in.B))/int64(in.Imm64)))
	case "DIVI.F":
		m.setRegF32(in.A, m.regF32(in.B)/math.Float32frombits(in.Imm32))
	case "DIVI.F64":
		m.setRegF64(in.A, m.regF64(in.B)/math.Float64frombits(in.Imm64))

	case "BOR":
		m.setReg32(in.A, m.reg32(in.B)|m.reg32(in.C))
	case "BOR.64":
		m.setReg64(in.A, m.reg64(in.B)|m.reg64(in.C))
	case "BORI":
		m.setReg32(in.A, m.reg32(in.B)|in.Imm32)
	case "BORI.64":
		m.setReg64(in.A, m.reg64(in.B)|in.Imm64)
	case "BXOR":
		m.setReg32(in.A, m.reg32(in.B)^m.reg32(in.C))
	case "BXOR.64":
		m.setReg64(in.A, m.reg64(in.B)^m.reg64(in.C))
	case "BXORI":
		m.setReg32(in.A, m.reg32(in.B)^in.Imm32)
	case "BXORI.64":
		m.setReg64(in.A, m.reg64(in.B)^in.Imm64)
	case "BAND":
		m.setReg32(in.A, m.reg32(in.B)&m.reg32(in.C))
	case "BAND.64":
		m.setReg64(in.A, m.reg64(in.B)&m.reg64(in.C))
	case "BANDI":
		m.setReg32(in.A, m.reg32(in.B)&in.Imm32)
	case "BANDI.64":
		m.setReg64(in.A, m.reg64(in.B)&in.Imm64)

	case "INV":
		m.setReg32(in.A, ^m.reg32(in.B))
	case "INV.64":
		m.setReg64(in.A, ^m.reg64(in.B))
	case "NEG":
		m.setReg32(in.A, uint32(-int32(m.reg32(in.B))))
	case "NEG.64":
		m.setReg64(in.A, uint64(-int64(m.reg64(in.B))))
	case "NEG.F":
		m.setRegF32(in.A, -m.regF32(in.B))
	case "NEG.F64":
		m.setRegF64(in.A, -m.regF64(in.B))

	case "BRZ":
		if m.reg32(isa.CPR) == 0 {
			m.IP = in.Imm32
			return true, nil
		}
	case "BRNZ":
		if m.reg32(isa.CPR) != 0 {
			m.IP = in.Imm32
			return true, nil
		}
	case "BRIZ":
		if m.reg32(isa.CPR) == 0 {
			m.IP = m.reg32(in.A)
			return true, nil
		}
	case "BRINZ":
		if m.reg32(isa.CPR) != 0 {
			m.IP = m.reg32(in.A)
			return true, nil
		}

	case "ITOL":
		m.setReg64(in.A, uint64(int64(int32(m.reg32(in.B)))))
	case "ITOF":
		m.setRegF32(in.A, float32(int32(m.reg32(in.B))))
	case "ITOD":
		m.setRegF64(in.A, float64(int32(m.reg32(in.B))))
	case "LTOI":
		m.setReg32(in.A, uint32(int64(m.reg64(in.B))))
	case "LTOF":
		m.setRegF32(in.A, float32(int64(m.reg64(in.B))))
	case "LTOD":
		m.setRegF64(in.A, float64(int64(m.reg64(in.B))))
	case "FTOI":
		m.setReg32(in.A, uint32(int32(m.regF32(in.B))))
	case "FTOL":
		m.setReg64(in.A, uint64(int64(m.regF32(in.B))))
	case "FTOD":
		m.setRegF64(in.A, float64(m.regF32(in.B)))
	case "DTOI":
		m.setReg32(in.A, uint32(int32(m.regF64(in.B))))
	case "DTOL":
		m.setReg64(in.A, uint64(int64(m.regF64(in.B))))
	case "DTOF":
		m.setRegF32(in.A, float32(m.regF64(in.B)))

	case "ITOS":
		m.setReg32(in.A, m.numToString(int64(int32(m.reg32(in.B))), 0, 0, in.Byte))
	case "LTOS":
		m.setReg32(in.A, m.numToString(int64(m.reg64(in.B)), 0, 0, in.Byte))
	case "FTOS":
		m.setReg32(in.A, m.numToString(0, float64(m.regF32(in.B)), 1, in.Byte))
	case "DTOS":
		m.setReg32(in.A, m.numToString(0, m.regF64(in.B), 2, in.Byte))

	case "STOI":
		m.setReg32(in.A, m.stringToInt(m.reg32(in.B), in.Imm32))
	case "STOL":
		m.setReg64(in.A, m.stringToInt64(m.reg32(in.B), in.Imm64))
	case "STOF":
		m.setRegF32(in.A, m.stringToFloat32(m.reg32(in.B), math.Float32frombits(in.Imm32)))
	case "STOD":
		m.setRegF64(in.A, m.stringToFloat64(m.reg32(in.B), math.Float64frombits(in.Imm64)))

	case "NEW":
		m.setReg32(in.A, m.Heap.Alloc(m.reg32(in.B)))
	case "NEWI":
		m.setReg32(in.A, m.Heap.Alloc(in.Imm32))
	case "DEL":
		m.Heap.Free(m.reg32(in.A))
	case "RESZ":
		m.setReg32(in.A, m.Heap.Realloc(m.reg32(in.A), m.reg32(in.B)))
	case "RESZI":
		m.setReg32(in.A, m.Heap.Realloc(m.reg32(in.A), in.Imm32))
	case "SIZE":
		m.setReg32(in.A, m.Heap.SizeOf(m.reg32(in.B)))
	case "STR":
		m.setReg32(in.A, m.loadProgramString(in.Imm32))
	case "STRCPY":
		m.setReg32(in.A, m.Heap.AllocSubstring(m.reg32(in.B), in.Imm32))
	case "STRCAT":
		combined := m.Heap.AllocCombined(m.reg32(in.A), m.reg32(in.B))
		if in.Imm32 != 0 {
			combined = m.Heap.AllocSubstring(combined, in.Imm32)
		}
		m.setReg32(in.A, combined)
	case "STRCMB":
		m.setReg32(in.A, m.Heap.AllocCombined(m.reg32(in.B), m.reg32(in.C)))

	default:
		return false, fmt.Errorf("%w: %s not implemented", ErrUnknownOpcode, in.Spec.Mnemonic)
	}

	return false, nil
}

// setCompare writes the boolean result of a CPxx comparison into the
// comparison register (spec.md §4.2.4 "Comparisons feed CPR").
func (m *Machine) setCompare(result bool) {
	if result {
		m.setReg32(isa.CPR, 1)
	} else {
		m.setReg32(isa.CPR, 0)
	}
}

func (m *Machine) readStackDWord(word uint32) uint64 {
	return uint64(m.stack[word]) | uint64(m.stack[word+1])<<32
}

func (m *Machine) writeStackDWord(word uint32, v uint64) {
	m.stack[word] = uint32(v)
	m.stack[word+1] = uint32(v >> 32)
}
