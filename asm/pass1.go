package asm

import (
	"strconv"
	"strings"

	"github.com/duovm/duovm/isa"
)

// layoutInfo carries per-line bookkeeping pass2 needs so it never has
// to re-derive an address or re-look-up an opcode spec.
type layoutInfo struct {
	line   SourceLine
	spec   *isa.Spec // nil for .WORD/label-only lines
	addr   uint32    // byte address this line starts at
	isWord bool
	wordOperands []string // raw .WORD operand texts, carried for pass2
}

// pass1 performs address assignment and symbol-table construction
// (spec.md §4.3.3 "Pass 1"): every label's address is known, and every
// directive affecting the header has been read, before any operand
// expression is evaluated. This mirrors the two-subpass structure of
// original_source/assembler/assembler.cpp's first pass: first size
// every instruction to fix code addresses, then place the data segment
// immediately after the code segment and fix its addresses too.
func pass1(lines []SourceLine, el *ErrorList) (mode isa.Mode, heapInitial, heapMax uint32, layout []layoutInfo, st *SymbolTable) {
	mode = isa.ModeRegister
	heapInitial = 64
	heapMax = 1024
	st = NewSymbolTable()

	modeSeen := false
	var codeOffset uint32
	type pendingWord struct {
		label      string
		pos        Position
		dataOffset uint32
	}
	var pending []pendingWord
	var dataOffset uint32
	var looseLabels []SourceLine

	for _, line := range lines {
		switch {
		case line.Directive == ".MODE":
			if len(line.DirArgs) != 1 {
				el.Addf(line.Pos, ErrorInvalidDirective, ".MODE requires exactly one argument (REGISTER or STACK)")
				continue
			}
			switch strings.ToUpper(line.DirArgs[0]) {
			case "REGISTER":
				mode = isa.ModeRegister
			case "STACK":
				mode = isa.ModeStack
			default:
				el.Addf(line.Pos, ErrorInvalidDirective, "unknown .MODE value %q", line.DirArgs[0])
			}
			if modeSeen {
				el.Addf(line.Pos, ErrorInvalidDirective, ".MODE may only appear once")
			}
			modeSeen = true
			layout = append(layout, layoutInfo{line: line, addr: codeOffset})

		case line.Directive == ".HEAP":
			heapInitial = parseDirectiveUint(line, el)
			layout = append(layout, layoutInfo{line: line, addr: codeOffset})

		case line.Directive == ".HEAP_MAX":
			heapMax = parseDirectiveUint(line, el)
			layout = append(layout, layoutInfo{line: line, addr: codeOffset})

		case line.Directive == ".WORD":
			for _, l := range looseLabels {
				pending = append(pending, pendingWord{label: l.Label, pos: l.Pos, dataOffset: dataOffset})
			}
			looseLabels = nil
			if line.Label != "" {
				pending = append(pending, pendingWord{label: line.Label, pos: line.Pos, dataOffset: dataOffset})
			}
			li := layoutInfo{line: line, isWord: true, wordOperands: line.DirArgs}
			layout = append(layout, li)
			dataOffset += wordLineLength(line.DirArgs)

		case line.Directive != "":
			el.Addf(line.Pos, ErrorInvalidDirective, "unknown directive %q", line.Directive)

		case line.Mnemonic != "":
			spec, ok := isa.TableFor(mode).ByMnemonic(line.Mnemonic)
			if !ok {
				el.Addf(line.Pos, ErrorInvalidInstruction, "unknown instruction %q for the current mode", line.Mnemonic)
				continue
			}
			for _, l := range looseLabels {
				defineLabel(st, el, l.Label, codeOffset, l.Pos)
			}
			looseLabels = nil
			if line.Label != "" {
				defineLabel(st, el, line.Label, codeOffset, line.Pos)
			}
			layout = append(layout, layoutInfo{line: line, spec: spec, addr: codeOffset})
			codeOffset += uint32(spec.Length)

		default:
			// Label-only line: binds to the next emitted byte, which is
			// either the next instruction or the next .WORD's data.
			if line.Label != "" {
				looseLabels = append(looseLabels, line)
			}
		}
	}
	for _, l := range looseLabels {
		defineLabel(st, el, l.Label, codeOffset, l.Pos)
	}

	codeLen := codeOffset
	for idx := range layout {
		if layout[idx].isWord {
			layout[idx].addr = codeLen
			codeLen += wordLineLength(layout[idx].wordOperands)
		}
	}
	// Data labels could only be assigned a real address once codeLen
	// (the full code segment size) was known, so Define them now.
	for _, p := range pending {
		defineLabel(st, el, p.label, codeLen+p.dataOffset, p.pos)
	}

	return mode, heapInitial, heapMax, layout, st
}

func defineLabel(st *SymbolTable, el *ErrorList, name string, addr uint32, pos Position) {
	if isa.IsRegisterAlias(name) {
		el.Addf(pos, ErrorDuplicateLabel, "label %q collides with a register alias", name)
		return
	}
	if err := st.Define(name, addr, pos); err != nil {
		el.Addf(pos, ErrorDuplicateLabel, "%s", err)
	}
}

func parseDirectiveUint(line SourceLine, el *ErrorList) uint32 {
	if len(line.DirArgs) != 1 {
		el.Addf(line.Pos, ErrorInvalidDirective, "%s requires exactly one numeric argument", line.Directive)
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(line.DirArgs[0], "#"), 0, 32)
	if err != nil {
		el.Addf(line.Pos, ErrorInvalidDirective, "%s: invalid numeric argument %q", line.Directive, line.DirArgs[0])
		return 0
	}
	return uint32(v)
}

// wordLineLength computes the byte length a .WORD line's operands will
// occupy in the data segment: a quoted string contributes its byte
// length plus one NUL terminator; anything else is a 4-byte word.
func wordLineLength(operands []string) uint32 {
	var n uint32
	for _, op := range operands {
		if s, ok := parseStringLiteral(op); ok {
			n += uint32(len(s)) + 1
		} else {
			n += 4
		}
	}
	return n
}
