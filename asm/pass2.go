package asm

import (
	"encoding/binary"

	"github.com/duovm/duovm/isa"
)

// pass2 walks the layout pass1 produced and emits the final code and
// data bytes, now that every label has a fixed address (spec.md §4.3.3
// "Pass 2"). Operand text is resolved through evalExpr/parseRegister,
// the same expression grammar spec.md §4.3.4 describes, and packed in
// exactly the byte order decode.go expects to read it back in.
func pass2(layout []layoutInfo, st *SymbolTable, el *ErrorList) (code, data []byte) {
	for _, li := range layout {
		switch {
		case li.isWord:
			data = append(data, encodeWordLine(li.wordOperands, st, li.line.Pos, el)...)
		case li.spec != nil:
			code = append(code, encodeInstruction(li.spec, li.line.Operands, st, li.line.Pos, el)...)
		}
	}
	return code, data
}

func encodeWordLine(operands []string, st *SymbolTable, pos Position, el *ErrorList) []byte {
	var out []byte
	for _, op := range operands {
		if s, ok := parseStringLiteral(op); ok {
			out = append(out, []byte(s)...)
			out = append(out, 0)
			continue
		}
		v, err := evalExpr(op, st)
		if err != nil {
			el.Addf(pos, ErrorInvalidExpression, "%s", err)
			continue
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		out = append(out, buf[:]...)
	}
	return out
}

func encodeInstruction(spec *isa.Spec, operands []string, st *SymbolTable, pos Position, el *ErrorList) []byte {
	fail := func(format string, a ...any) []byte {
		el.Addf(pos, ErrorInvalidOperand, format, a...)
		return make([]byte, spec.Length)
	}

	reg := func(i int) byte {
		r, ok := parseRegister(operands[i])
		if !ok {
			el.Addf(pos, ErrorInvalidOperand, "%s: operand %d (%q) is not a register", spec.Mnemonic, i+1, operands[i])
		}
		return r
	}
	expr := func(i int) int64 {
		v, err := evalExpr(operands[i], st)
		if err != nil {
			el.Addf(pos, ErrorInvalidExpression, "%s: operand %d: %s", spec.Mnemonic, i+1, err)
		}
		return v
	}

	want := operandCount(spec.Layout)
	if len(operands) != want {
		return fail("%s expects %d operand(s), got %d", spec.Mnemonic, want, len(operands))
	}

	out := []byte{spec.Opcode}
	switch spec.Layout {
	case isa.LayoutNone:
		// opcode only

	case isa.LayoutReg:
		out = append(out, reg(0))

	case isa.LayoutRegReg:
		out = append(out, reg(0), reg(1))

	case isa.LayoutRegRegReg:
		out = append(out, reg(0), reg(1), reg(2))

	case isa.LayoutRegImm32:
		out = append(out, reg(0))
		out = appendU32(out, uint32(expr(1)))

	case isa.LayoutRegImm64:
		out = append(out, reg(0))
		out = appendU64(out, uint64(expr(1)))

	case isa.LayoutRegRegImm32:
		out = append(out, reg(0), reg(1))
		out = appendU32(out, uint32(expr(2)))

	case isa.LayoutRegRegImm64:
		out = append(out, reg(0), reg(1))
		out = appendU64(out, uint64(expr(2)))

	case isa.LayoutRegRegByte:
		out = append(out, reg(0), reg(1), byte(expr(2)))

	case isa.LayoutByteReg:
		out = append(out, byte(expr(0)), reg(1))

	case isa.LayoutImm8:
		out = append(out, byte(expr(0)))

	case isa.LayoutImm32:
		out = appendU32(out, uint32(expr(0)))

	case isa.LayoutImm64:
		out = appendU64(out, uint64(expr(0)))
	}

	if len(out) != spec.Length {
		return fail("%s: internal encoding length mismatch (got %d, want %d)", spec.Mnemonic, len(out), spec.Length)
	}
	return out
}

func operandCount(l isa.Layout) int {
	switch l {
	case isa.LayoutNone:
		return 0
	case isa.LayoutReg, isa.LayoutImm8, isa.LayoutImm32, isa.LayoutImm64:
		return 1
	case isa.LayoutRegReg, isa.LayoutRegImm32, isa.LayoutRegImm64, isa.LayoutByteReg:
		return 2
	case isa.LayoutRegRegReg, isa.LayoutRegRegImm32, isa.LayoutRegRegImm64, isa.LayoutRegRegByte:
		return 3
	default:
		return 0
	}
}

func appendU32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}
