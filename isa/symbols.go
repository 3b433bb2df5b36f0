package isa

import "fmt"

// Host-call identifiers consumed by SCALL (spec.md §4.2.6). The first
// six match, in order, the six predefined system labels of spec.md §3
// (`__print` .. `__close`); STR has no predefined label since it is
// reached only via a literal SCALL id, the way the original C++
// implementation's extra syscalls were.
const (
	SCallPrint = 0
	SCallInput = 1
	SCallWrite = 2
	SCallRead  = 3
	SCallOpen  = 4
	SCallClose = 5
	SCallStr   = 6
)

// SArg flag bits recorded by SARG (spec.md §4.2.6).
const (
	SArgPointer = 0x80 // heap pointer / C string
	SArgDouble  = 0x40
	SArgFloat   = 0x20
	SArgInt64   = 0x10
)

// NumRegisters is the register-ISA's general-purpose register count
// (spec.md §3). R31 doubles as the condition register (CPR).
const NumRegisters = 32

// CPR is the index of the condition register.
const CPR = NumRegisters - 1

// PredefinedSymbols returns the register aliases and system-call labels
// that populate the assembler's symbol table before any user label is
// read (spec.md §3 "Labels and symbols").
func PredefinedSymbols() map[string]uint32 {
	syms := make(map[string]uint32, NumRegisters+6)
	for i := 0; i < NumRegisters; i++ {
		syms[fmt.Sprintf("R%d", i)] = uint32(i)
	}
	syms["__print"] = SCallPrint
	syms["__input"] = SCallInput
	syms["__write"] = SCallWrite
	syms["__read"] = SCallRead
	syms["__open"] = SCallOpen
	syms["__close"] = SCallClose
	return syms
}

// IsRegisterAlias reports whether name is one of the predefined R0..R31
// aliases, which user labels may never shadow (spec.md §3 invariant).
func IsRegisterAlias(name string) bool {
	if len(name) < 2 || len(name) > 3 || name[0] != 'R' {
		return false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n < NumRegisters && (len(name) == 2 || name[1] != '0')
}

// ExemptFromUnreferencedWarning implements the intended parenthesization
// of the assembler's unreferenced-label check (spec.md §9, open question
// (c)): ((name[0]=='_' && name[1]=='_') || name=="main").
func ExemptFromUnreferencedWarning(name string) bool {
	if name == "main" {
		return true
	}
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}
