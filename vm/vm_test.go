package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duovm/duovm/isa"
)

func putU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func registerProgram(instrs ...[]byte) []byte {
	var out []byte
	for _, in := range instrs {
		out = append(out, in...)
	}
	return out
}

func rLDI(reg byte, v uint32) []byte { return putU32([]byte{0x0B, reg}, v) }
func rADD(a, b, c byte) []byte       { return []byte{0x23, a, b, c} }
func rEXIT() []byte                  { return []byte{0x01} }

func newRegisterMachine(t *testing.T, program []byte) *Machine {
	t.Helper()
	img := &Image{
		Header:  Header{Mode: isa.ModeRegister, HeapInitial: 1, HeapMax: 1, DataStart: uint32(len(program))},
		Program: program,
	}
	m, err := New(img, 0, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	return m
}

func TestRegisterAddAndExit(t *testing.T) {
	program := registerProgram(
		rLDI(1, 5),
		rLDI(2, 7),
		rADD(0, 1, 2),
		rEXIT(),
	)
	m := newRegisterMachine(t, program)
	code := m.Run()
	require.Equal(t, 12, code)
}

func sLDI(v uint32) []byte { return putU32([]byte{0x09}, v) }
func sADD() []byte         { return []byte{0x1B} }
func sEXIT() []byte        { return []byte{0x01} }

func newStackMachine(t *testing.T, program []byte) *Machine {
	t.Helper()
	img := &Image{
		Header:  Header{Mode: isa.ModeStack, HeapInitial: 1, HeapMax: 1, DataStart: uint32(len(program))},
		Program: program,
	}
	m, err := New(img, 0, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	return m
}

func TestStackAddAndExit(t *testing.T) {
	program := registerProgram(
		sLDI(5),
		sLDI(7),
		sADD(),
		sEXIT(),
	)
	m := newStackMachine(t, program)
	code := m.Run()
	require.Equal(t, 12, code)
}

func TestDivideByZeroIsNonFatalExit(t *testing.T) {
	program := registerProgram(
		rLDI(1, 10),
		rLDI(2, 0),
		[]byte{0x3B, 0, 1, 2}, // DIV R0, R1, R2
		rEXIT(),
	)
	m := newRegisterMachine(t, program)
	code := m.Run()
	require.Equal(t, ExitFailure, code)
}

func TestCallReturnRestoresFrame(t *testing.T) {
	// main: CALL add; EXIT
	// add (at offset 6): MOV R0, R0 (no-op placeholder); RET #0
	mainBlock := []byte{0x03} // CALL
	mainBlock = putU32(mainBlock, 6)
	mainBlock = append(mainBlock, 0x01) // EXIT

	addBlock := []byte{0x09, 0, 0}       // MOV R0, R0
	addBlock = append(addBlock, 0x04, 0) // RET #0

	program := append(mainBlock, addBlock...)
	m := newRegisterMachine(t, program)
	code := m.Run()
	require.Equal(t, 0, code)
	require.True(t, m.SentinelsIntact())
}

func TestDoReturnLiftsValueRegardlessOfISA(t *testing.T) {
	for _, mode := range []isa.Mode{isa.ModeRegister, isa.ModeStack} {
		img := &Image{Header: Header{Mode: mode, HeapInitial: 1, HeapMax: 1}}
		m, err := New(img, 0, strings.NewReader(""), &bytes.Buffer{})
		require.NoError(t, err)

		require.NoError(t, m.pushFrame(42))
		require.NoError(t, m.pushWord(99))

		require.NoError(t, m.doReturn(Instr{Byte: 0}, 1))

		v, err := m.popWord()
		require.NoError(t, err)
		require.Equal(t, uint32(99), v, "RET.32 must lift its return value in both register and stack ISA modes")
		require.Equal(t, uint32(42), m.IP)
	}
}

func TestReg64PairsAdjacentRegisters(t *testing.T) {
	img := &Image{Header: Header{Mode: isa.ModeRegister, HeapInitial: 1, HeapMax: 1}}
	m, err := New(img, 0, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)

	m.setReg64(0, 0x1122334455667788)
	require.Equal(t, uint32(0x55667788), m.reg32(0), "low half lands in R(i)")
	require.Equal(t, uint32(0x11223344), m.reg32(1), "high half lands in R(i+1)")
	require.Equal(t, uint64(0x1122334455667788), m.reg64(0))

	m.setReg32(1, 0xAABBCCDD)
	require.Equal(t, uint64(0xAABBCCDD55667788), m.reg64(0), "writing R(i+1) directly updates the doubled read")
}

func TestHeapAllocAndFreeThroughNEWI(t *testing.T) {
	program := registerProgram(
		putU32([]byte{0x72, 0}, 16), // NEWI R0, #16
		[]byte{0x73, 0},             // DEL R0
		rEXIT(),
	)
	m := newRegisterMachine(t, program)
	code := m.Run()
	require.Equal(t, 0, code)
}
