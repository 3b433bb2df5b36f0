package asm

import (
	"fmt"

	"github.com/duovm/duovm/vm"
)

// Options controls diagnostic behavior; its defaults mirror
// config.DefaultConfig()'s Assembler section, but this package does
// not import config directly so it stays usable standalone.
type Options struct {
	MaxErrors              int
	WarnUnreferencedLabels bool
}

// Assemble runs both passes over source and, if no errors were
// accumulated, returns a loadable binary image (spec.md §4.3.3, §6.1).
// Diagnostics are always returned alongside the image so a caller can
// print warnings even on success.
func Assemble(filename, source string, opts Options) (*vm.Image, *ErrorList, error) {
	el := NewErrorList(opts.MaxErrors)

	lines := Lex(filename, source)
	mode, heapInitial, heapMax, layout, st := pass1(lines, el)
	if el.HasErrors() {
		return nil, el, fmt.Errorf("assembly failed:\n%s", el.Error())
	}

	code, data := pass2(layout, st, el)
	if el.HasErrors() {
		return nil, el, fmt.Errorf("assembly failed:\n%s", el.Error())
	}

	if opts.WarnUnreferencedLabels {
		for _, sym := range st.Unreferenced() {
			el.Warnf(sym.Pos, "label %q is never referenced", sym.Name)
		}
	}

	header := vm.Header{
		Mode:        mode,
		HeapInitial: heapInitial,
		HeapMax:     heapMax,
		DataStart:   uint32(len(code)),
	}
	program := make([]byte, 0, len(code)+len(data))
	program = append(program, code...)
	program = append(program, data...)

	img := &vm.Image{Header: header, Program: program}
	return img, el, nil
}
