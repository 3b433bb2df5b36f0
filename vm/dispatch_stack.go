package vm

import (
	"math"
	"strings"
)

// executeStack dispatches the stack-ISA opcodes (spec.md §4.2.5,
// opcodes 0x09 and up). Every operand is implicit: arithmetic and
// comparison opcodes pop their operands off the top of the stack and
// push their result, in the order popLast-pushed-is-right-hand-side.
func (m *Machine) executeStack(in Instr) (jumped bool, err error) {
	switch in.Spec.Mnemonic {

	case "LDI":
		err = m.pushWord(in.Imm32)
	case "LDI.64":
		err = m.pushDWord(in.Imm64)
	case "LDI.F":
		err = m.pushWord(in.Imm32)
	case "LDI.F64":
		err = m.pushDWord(in.Imm64)

	case "LDL":
		err = m.pushWord(m.stack[m.localWord(in.Byte)])
	case "STL":
		var v uint32
		if v, err = m.popWord(); err == nil {
			m.stack[m.localWord(in.Byte)] = v
		}
	case "LDL.64":
		err = m.pushDWord(m.readStackDWord(m.localWord(in.Byte)))
	case "STL.64":
		var v uint64
		if v, err = m.popDWord(); err == nil {
			m.writeStackDWord(m.localWord(in.Byte), v)
		}
	case "LDA":
		err = m.pushWord(m.stack[m.argWord(in.Byte)])
	case "STA":
		var v uint32
		if v, err = m.popWord(); err == nil {
			m.stack[m.argWord(in.Byte)] = v
		}
	case "LDA.64":
		err = m.pushDWord(m.readStackDWord(m.argWord(in.Byte) - 1))
	case "STA.64":
		var v uint64
		if v, err = m.popDWord(); err == nil {
			m.writeStackDWord(m.argWord(in.Byte)-1, v)
		}

	case "LDM":
		err = m.stackLoad(4, false)
	case "STM":
		err = m.stackStore(4, false)
	case "LDM.64":
		err = m.stackLoad(8, false)
	case "STM.64":
		err = m.stackStore(8, false)
	case "LDMI":
		err = m.stackLoad(4, true, in.Imm32)
	case "STMI":
		err = m.stackStore(4, true, in.Imm32)

	case "ADD", "ADD.64", "ADD.F", "ADD.F64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a + b },
			func(a, b float32) float32 { return a + b }, func(a, b float64) float64 { return a + b })
	case "SUB", "SUB.64", "SUB.F", "SUB.F64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a - b },
			func(a, b float32) float32 { return a - b }, func(a, b float64) float64 { return a - b })
	case "MUL", "MUL.64", "MUL.F", "MUL.F64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a * b },
			func(a, b float32) float32 { return a * b }, func(a, b float64) float64 { return a * b })
	case "DIV", "DIV.64":
		err = m.intDivOp(in.Spec.Mnemonic)
	case "DIV.F", "DIV.F64":
		err = m.binOp(in.Spec.Mnemonic, nil,
			func(a, b float32) float32 { return a / b }, func(a, b float64) float64 { return a / b })

	case "BOR", "BOR.64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a | b }, nil, nil)
	case "BXOR", "BXOR.64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a ^ b }, nil, nil)
	case "BAND", "BAND.64":
		err = m.binOp(in.Spec.Mnemonic, func(a, b uint64) uint64 { return a & b }, nil, nil)

	case "INV":
		err = m.unaryIntOp(false, func(a uint64) uint64 { return uint64(^uint32(a)) })
	case "INV.64":
		err = m.unaryIntOp(true, func(a uint64) uint64 { return ^a })
	case "NEG":
		err = m.unaryIntOp(false, func(a uint64) uint64 { return uint64(uint32(-int32(uint32(a)))) })
	case "NEG.64":
		err = m.unaryIntOp(true, func(a uint64) uint64 { return uint64(-int64(a)) })
	case "NEG.F":
		err = m.unaryFloatOp(false, func(a float64) float64 { return float64(-float32(a)) })
	case "NEG.F64":
		err = m.unaryFloatOp(true, func(a float64) float64 { return -a })

	case "CPEQ":
		err = m.cmpOp(func(a, b uint64) bool { return uint32(a) == uint32(b) })
	case "CPNQ":
		err = m.cmpOp(func(a, b uint64) bool { return uint32(a) != uint32(b) })
	case "CPGT":
		err = m.cmpOp(func(a, b uint64) bool { return int32(uint32(a)) > int32(uint32(b)) })
	case "CPLT":
		err = m.cmpOp(func(a, b uint64) bool { return int32(uint32(a)) < int32(uint32(b)) })
	case "CPGQ":
		err = m.cmpOp(func(a, b uint64) bool { return int32(uint32(a)) >= int32(uint32(b)) })
	case "CPLQ":
		err = m.cmpOp(func(a, b uint64) bool { return int32(uint32(a)) <= int32(uint32(b)) })
	case "CPZ":
		var a uint32
		if a, err = m.popWord(); err == nil {
			err = m.pushBool(a == 0)
		}
	case "CPSTR":
		var a, b uint32
		if b, err = m.popWord(); err == nil {
			if a, err = m.popWord(); err == nil {
				err = m.pushBool(string(m.Heap.ReadCString(a)) == string(m.Heap.ReadCString(b)))
			}
		}
	case "CPCHR":
		var a, b uint32
		if b, err = m.popWord(); err == nil {
			if a, err = m.popWord(); err == nil {
				err = m.pushBool(m.Heap.ReadByte(a) == m.Heap.ReadByte(b))
			}
		}

	case "BRZ":
		var v uint32
		if v, err = m.popWord(); err == nil && v == 0 {
			m.IP = in.Imm32
			return true, nil
		}
	case "BRNZ":
		var v uint32
		if v, err = m.popWord(); err == nil && v != 0 {
			m.IP = in.Imm32
			return true, nil
		}
	case "JMPI":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			m.IP = addr
			return true, nil
		}

	case "ITOL":
		err = m.widen(func(a uint32) uint64 { return uint64(int64(int32(a))) })
	case "ITOF":
		err = m.unaryFloatFromInt(false, func(a int32) float64 { return float64(a) })
	case "ITOD":
		err = m.widen(func(a uint32) uint64 { return math.Float64bits(float64(int32(a))) })
	case "LTOI":
		err = m.narrow(func(a uint64) uint32 { return uint32(int64(a)) })
	case "LTOF":
		err = m.narrow(func(a uint64) uint32 { return math.Float32bits(float32(int64(a))) })
	case "LTOD":
		err = m.unaryFloatFromInt64(func(a int64) float64 { return float64(a) })
	case "FTOI":
		err = m.unaryIntFromFloat(false, func(a float32) int64 { return int64(a) })
	case "FTOL":
		err = m.unaryIntFromFloat64(func(a float32) int64 { return int64(a) })
	case "FTOD":
		err = m.floatWiden()
	case "DTOI":
		err = m.unaryIntFromDouble(false, func(a float64) int64 { return int64(a) })
	case "DTOL":
		err = m.unaryIntFromDouble64(func(a float64) int64 { return int64(a) })
	case "DTOF":
		err = m.doubleNarrow()

	case "ITOS":
		var v uint32
		if v, err = m.popWord(); err == nil {
			err = m.pushWord(m.numToString(int64(int32(v)), 0, 0, in.Byte))
		}
	case "LTOS":
		var v uint64
		if v, err = m.popDWord(); err == nil {
			err = m.pushWord(m.numToString(int64(v), 0, 0, in.Byte))
		}
	case "FTOS":
		var v uint32
		if v, err = m.popWord(); err == nil {
			err = m.pushWord(m.numToString(0, float64(math.Float32frombits(v)), 1, in.Byte))
		}
	case "DTOS":
		var v uint64
		if v, err = m.popDWord(); err == nil {
			err = m.pushWord(m.numToString(0, math.Float64frombits(v), 2, in.Byte))
		}

	case "STOI":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushWord(m.stringToInt(addr, in.Imm32))
		}
	case "STOL":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushDWord(m.stringToInt64(addr, in.Imm64))
		}
	case "STOF":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushWord(math.Float32bits(m.stringToFloat32(addr, math.Float32frombits(in.Imm32))))
		}
	case "STOD":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushDWord(math.Float64bits(m.stringToFloat64(addr, math.Float64frombits(in.Imm64))))
		}

	case "NEW":
		var n uint32
		if n, err = m.popWord(); err == nil {
			err = m.pushWord(m.Heap.Alloc(n))
		}
	case "NEWI":
		err = m.pushWord(m.Heap.Alloc(in.Imm32))
	case "DEL":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			m.Heap.Free(addr)
		}
	case "RESZ":
		var n, addr uint32
		if n, err = m.popWord(); err == nil {
			if addr, err = m.popWord(); err == nil {
				err = m.pushWord(m.Heap.Realloc(addr, n))
			}
		}
	case "RESZI":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushWord(m.Heap.Realloc(addr, in.Imm32))
		}
	case "SIZE":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushWord(m.Heap.SizeOf(addr))
		}
	case "STR":
		err = m.pushWord(m.loadProgramString(in.Imm32))
	case "STRCPY":
		var addr uint32
		if addr, err = m.popWord(); err == nil {
			err = m.pushWord(m.Heap.AllocSubstring(addr, in.Imm32))
		}
	case "STRCAT":
		var a, b uint32
		if b, err = m.popWord(); err == nil {
			if a, err = m.popWord(); err == nil {
				combined := m.Heap.AllocCombined(a, b)
				if in.Imm32 != 0 {
					combined = m.Heap.AllocSubstring(combined, in.Imm32)
				}
				err = m.pushWord(combined)
			}
		}
	case "STRCMB":
		var a, b uint32
		if b, err = m.popWord(); err == nil {
			if a, err = m.popWord(); err == nil {
				err = m.pushWord(m.Heap.AllocCombined(a, b))
			}
		}

	default:
		err = ErrUnknownOpcode
	}

	return false, err
}

func (m *Machine) pushBool(v bool) error {
	if v {
		return m.pushWord(1)
	}
	return m.pushWord(0)
}

func (m *Machine) stackLoad(width int, indexed bool, offset ...uint32) error {
	addr, err := m.popWord()
	if err != nil {
		return err
	}
	if indexed {
		addr += offset[0]
	}
	if width == 8 {
		return m.pushDWord(m.Heap.ReadDWord(addr))
	}
	return m.pushWord(m.Heap.ReadWord(addr))
}

func (m *Machine) stackStore(width int, indexed bool, offset ...uint32) error {
	addr, err := m.popWord()
	if err != nil {
		return err
	}
	if indexed {
		addr += offset[0]
	}
	if width == 8 {
		v, err := m.popDWord()
		if err != nil {
			return err
		}
		m.Heap.WriteDWord(addr, v)
		return nil
	}
	v, err := m.popWord()
	if err != nil {
		return err
	}
	m.Heap.WriteWord(addr, v)
	return nil
}

// binOp pops an operand pair (b then a) and pushes intFn/f32Fn/f64Fn
// applied to (a, b), choosing width and numeric domain from the
// mnemonic's suffix. mnemonic ending in nothing or ".F" is 32-bit; a
// trailing "64" is 64-bit.
func (m *Machine) binOp(mnemonic string, intFn func(a, b uint64) uint64, f32Fn func(a, b float32) float32, f64Fn func(a, b float64) float64) error {
	wide := strings.HasSuffix(mnemonic, "64")
	isFloat := strings.Contains(mnemonic, ".F")

	if isFloat && wide {
		b, a, err := m.pop2DWords()
		if err != nil {
			return err
		}
		return m.pushDWord(math.Float64bits(f64Fn(math.Float64frombits(a), math.Float64frombits(b))))
	}
	if isFloat {
		b, a, err := m.pop2Words()
		if err != nil {
			return err
		}
		return m.pushWord(math.Float32bits(f32Fn(math.Float32frombits(a), math.Float32frombits(b))))
	}
	if wide {
		b, a, err := m.pop2DWords()
		if err != nil {
			return err
		}
		return m.pushDWord(intFn(a, b))
	}
	b, a, err := m.pop2Words()
	if err != nil {
		return err
	}
	return m.pushWord(uint32(intFn(uint64(a), uint64(b))))
}

func (m *Machine) intDivOp(mnemonic string) error {
	wide := strings.HasSuffix(mnemonic, "64")
	if wide {
		b, a, err := m.pop2DWords()
		if err != nil {
			return err
		}
		if b == 0 {
			return ErrDivideByZero
		}
		return m.pushDWord(uint64(int64(a) / int64(b)))
	}
	b, a, err := m.pop2Words()
	if err != nil {
		return err
	}
	if b == 0 {
		return ErrDivideByZero
	}
	return m.pushWord(uint32(int32(a) / int32(b)))
}

func (m *Machine) cmpOp(fn func(a, b uint64) bool) error {
	b, a, err := m.pop2Words()
	if err != nil {
		return err
	}
	return m.pushBool(fn(uint64(a), uint64(b)))
}

func (m *Machine) unaryIntOp(wide bool, fn func(a uint64) uint64) error {
	if wide {
		v, err := m.popDWord()
		if err != nil {
			return err
		}
		return m.pushDWord(fn(v))
	}
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushWord(uint32(fn(uint64(v))))
}

func (m *Machine) unaryFloatOp(wide bool, fn func(a float64) float64) error {
	if wide {
		v, err := m.popDWord()
		if err != nil {
			return err
		}
		return m.pushDWord(math.Float64bits(fn(math.Float64frombits(v))))
	}
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushWord(math.Float32bits(float32(fn(float64(math.Float32frombits(v))))))
}

func (m *Machine) widen(fn func(a uint32) uint64) error {
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushDWord(fn(v))
}

func (m *Machine) narrow(fn func(a uint64) uint32) error {
	v, err := m.popDWord()
	if err != nil {
		return err
	}
	return m.pushWord(fn(v))
}

func (m *Machine) unaryFloatFromInt(_ bool, fn func(a int32) float64) error {
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushWord(math.Float32bits(float32(fn(int32(v)))))
}

func (m *Machine) unaryFloatFromInt64(fn func(a int64) float64) error {
	v, err := m.popDWord()
	if err != nil {
		return err
	}
	return m.pushDWord(math.Float64bits(fn(int64(v))))
}

func (m *Machine) unaryIntFromFloat(_ bool, fn func(a float32) int64) error {
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushWord(uint32(fn(math.Float32frombits(v))))
}

func (m *Machine) unaryIntFromFloat64(fn func(a float32) int64) error {
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushDWord(uint64(fn(math.Float32frombits(v))))
}

func (m *Machine) floatWiden() error {
	v, err := m.popWord()
	if err != nil {
		return err
	}
	return m.pushDWord(math.Float64bits(float64(math.Float32frombits(v))))
}

func (m *Machine) unaryIntFromDouble(_ bool, fn func(a float64) int64) error {
	v, err := m.popDWord()
	if err != nil {
		return err
	}
	return m.pushWord(uint32(fn(math.Float64frombits(v))))
}

func (m *Machine) unaryIntFromDouble64(fn func(a float64) int64) error {
	v, err := m.popDWord()
	if err != nil {
		return err
	}
	return m.pushDWord(uint64(fn(math.Float64frombits(v))))
}

func (m *Machine) doubleNarrow() error {
	v, err := m.popDWord()
	if err != nil {
		return err
	}
	return m.pushWord(math.Float32bits(float32(math.Float64frombits(v))))
}

// pop2Words pops b (top) then a (second), matching the left/right
// evaluation order of the assembler's binary-operator layout.
func (m *Machine) pop2Words() (b, a uint32, err error) {
	if b, err = m.popWord(); err != nil {
		return 0, 0, err
	}
	if a, err = m.popWord(); err != nil {
		return 0, 0, err
	}
	return b, a, nil
}

func (m *Machine) pop2DWords() (b, a uint64, err error) {
	if b, err = m.popDWord(); err != nil {
		return 0, 0, err
	}
	if a, err = m.popDWord(); err != nil {
		return 0, 0, err
	}
	return b, a, nil
}

