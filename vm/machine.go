package vm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/duovm/duovm/heap"
	"github.com/duovm/duovm/isa"
)

// Stack layout constants (spec.md §3 "Stack").
const (
	DefaultStackWords = 512 // 512 words = 2 KiB
	SentinelWords     = 2
	SentinelLow       = 0xAC1D
	SentinelHigh      = 0xFACE
)

// Machine is the complete per-run interpreter state: program image,
// register bank, evaluation/frame stack, and heap. Every run owns a
// fresh Machine; there is no process-global interpreter state (spec.md
// §9 "Global state").
type Machine struct {
	Image *Image
	Table *isa.Table

	// Register ISA state. Each slot is a 32-bit word; a 64-bit operation
	// reads or writes two adjacent slots as one doubled register, R(i)
	// holding the low half and R(i+1) the high half (spec.md §3). R31
	// (isa.CPR) is the comparison register written by the CPxx family
	// and read by BRIZ/BRINZ.
	Regs [isa.NumRegisters]uint32

	// Stack: a fixed-capacity array of 32-bit words, addressed by word
	// index. Two sentinel words guard the base against underflow.
	stack    []uint32
	SP       uint32 // next free word index
	frameTop uint32 // current frame's frame_base (word index)

	IP uint32 // byte offset into Image.Program

	Heap *heap.Heap

	Stdout io.Writer
	stdin  *bufio.Reader

	// Host-call scratch argument buffer (spec.md §4.2.6).
	args []hostArg

	// Open file table for __write/__read/__open/__close; handles 0-2
	// are stdin, stdout and stderr.
	files []*os.File

	ExitCode int
	Warnf    func(string, ...any)
}

type hostArg struct {
	kind  byte // isa.SArg* flag byte
	value uint64
}

// New constructs a Machine ready to run img, allocating its heap and
// stack per spec.md §4.2.1.
func New(img *Image, stackWords int, stdin io.Reader, stdout io.Writer) (*Machine, error) {
	if stackWords <= 0 {
		stackWords = DefaultStackWords
	}
	if _, err := SafeIntToUint32(stackWords); err != nil {
		return nil, fmt.Errorf("stack size: %w", err)
	}

	m := &Machine{
		Image:  img,
		Table:  isa.TableFor(img.Header.Mode),
		stack:  make([]uint32, stackWords),
		Stdout: stdout,
		stdin:  bufio.NewReader(stdin),
		files:  make([]*os.File, 3, 16),
	}
	m.files[0], m.files[1], m.files[2] = os.Stdin, os.Stdout, os.Stderr

	m.stack[0] = SentinelLow
	m.stack[1] = SentinelHigh
	m.SP = SentinelWords
	m.frameTop = SentinelWords

	m.Warnf = func(format string, a ...any) { fmt.Fprintf(os.Stderr, format+"\n", a...) }

	initial := img.HeapInitialBytes()
	max := img.HeapMaxBytes()
	if initial <= 0 {
		return nil, fmt.Errorf("%w: heap_initial must be positive", ErrHeapAllocFailed)
	}
	m.Heap = heap.New(initial, max, func(msg string) {
		if m.Warnf != nil {
			m.Warnf("heap: %s", msg)
		}
	})

	return m, nil
}

// stackEnd is the exclusive upper bound on SP (spec.md §4.2.7
// "sp >= stack_end -> STACK_OVERFLOW").
func (m *Machine) stackEnd() uint32 { return uint32(len(m.stack)) }

func (m *Machine) pushWord(v uint32) error {
	if m.SP >= m.stackEnd() {
		return ErrStackOverflow
	}
	m.stack[m.SP] = v
	m.SP++
	return nil
}

func (m *Machine) popWord() (uint32, error) {
	if m.SP <= SentinelWords {
		return 0, ErrStackUnderflow
	}
	m.SP--
	return m.stack[m.SP], nil
}

func (m *Machine) pushDWord(v uint64) error {
	if err := m.pushWord(uint32(v)); err != nil {
		return err
	}
	return m.pushWord(uint32(v >> 32))
}

func (m *Machine) popDWord() (uint64, error) {
	hi, err := m.popWord()
	if err != nil {
		return 0, err
	}
	lo, err := m.popWord()
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (m *Machine) peekWord(depth uint32) (uint32, error) {
	if m.SP < SentinelWords+depth+1 {
		return 0, ErrStackUnderflow
	}
	return m.stack[m.SP-1-depth], nil
}

// reg32/setReg32 address a single register slot. reg64/setReg64 treat
// R(r) and R(r+1) as one doubled register, little-endian: R(r) holds
// the low 32 bits, R(r+1) the high 32 bits (spec.md §3).
func (m *Machine) reg32(r byte) uint32       { return m.Regs[r] }
func (m *Machine) setReg32(r byte, v uint32) { m.Regs[r] = v }
func (m *Machine) reg64(r byte) uint64 {
	return uint64(m.Regs[r]) | uint64(m.Regs[r+1])<<32
}
func (m *Machine) setReg64(r byte, v uint64) {
	m.Regs[r] = uint32(v)
	m.Regs[r+1] = uint32(v >> 32)
}

func (m *Machine) regF32(r byte) float32 { return math.Float32frombits(m.reg32(r)) }
func (m *Machine) setRegF32(r byte, v float32) { m.setReg32(r, math.Float32bits(v)) }
func (m *Machine) regF64(r byte) float64 { return math.Float64frombits(m.reg64(r)) }
func (m *Machine) setRegF64(r byte, v float64) { m.setReg64(r, math.Float64bits(v)) }

// pushFrame performs the CALL-time frame setup (spec.md §4.2.3): the
// new frame_base word records the previous frame_base and the return
// address, then becomes the current frame_base.
func (m *Machine) pushFrame(returnIP uint32) error {
	prevBase := m.frameTop
	if err := m.pushWord(prevBase); err != nil {
		return err
	}
	if err := m.pushWord(returnIP); err != nil {
		return err
	}
	m.frameTop = m.SP - 2
	return nil
}

// popFrame undoes pushFrame, restoring the caller's frame_base and
// returning its saved return address. sp is left at frame_base, which
// discards the callee's locals and anything else pushed above it.
func (m *Machine) popFrame() (returnIP uint32, err error) {
	if m.frameTop < SentinelWords || m.frameTop+1 >= m.SP {
		return 0, ErrStackUnderflow
	}
	prevBase := m.stack[m.frameTop]
	returnIP = m.stack[m.frameTop+1]
	m.SP = m.frameTop
	m.frameTop = prevBase
	return returnIP, nil
}

// localWord/argWord translate a locals/args byte offset (as carried by
// LDL/STL/LDA/STA) to a word index in the stack array (spec.md §4.2.3
// "Frame layout"). Locals live above frame_base+2; args live below
// frame_base, pushed by the caller in left-to-right order.
func (m *Machine) localWord(byteOffset byte) uint32 {
	return m.frameTop + 2 + uint32(byteOffset)/4
}

func (m *Machine) argWord(byteOffset byte) uint32 {
	return m.frameTop - 1 - uint32(byteOffset)/4
}

// SentinelsIntact reports whether the two base sentinel words are
// unmodified (spec.md §8 "Stack sentinels... remain untouched").
func (m *Machine) SentinelsIntact() bool {
	return m.stack[0] == SentinelLow && m.stack[1] == SentinelHigh
}

// readByteAt/readU32At/readU64At perform the unaligned reads spec.md
// §4.2.2/§9 call for: instructions are not naturally aligned, so every
// multi-byte field is assembled from individual bytes rather than cast
// through a pointer. This is decoding option (a), "bitmask decoding".
func readByteAt(b []byte, off uint32) byte { return b[off] }

func readU32At(b []byte, off uint32) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func readU64At(b []byte, off uint32) uint64 {
	lo := readU32At(b, off)
	hi := readU32At(b, off+4)
	return uint64(lo) | uint64(hi)<<32
}
