package vm

import (
	"errors"
	"fmt"

	"github.com/duovm/duovm/isa"
)

// haltSignal is returned internally by Step when EXIT has run; Run
// treats it as normal termination rather than a failure.
type haltSignal struct{ code int }

func (h haltSignal) Error() string { return fmt.Sprintf("halted with exit code %d", h.code) }

// Run executes instructions from the current IP until EXIT or an error
// terminates the program, returning the process exit code (spec.md
// §4.2.7, §6.4).
func (m *Machine) Run() int {
	for {
		err := m.Step()
		if err == nil {
			continue
		}
		var h haltSignal
		if errors.As(err, &h) {
			return h.code
		}
		m.Warnf("runtime error at ip %d: %v", m.IP, err)
		return ExitCodeFor(err)
	}
}

// Step decodes and executes exactly one instruction, advancing IP. A
// returned haltSignal is EXIT, not a fault.
func (m *Machine) Step() error {
	prog := m.Image.Program
	in, err := m.decode(prog, m.IP)
	if err != nil {
		return err
	}
	next := m.IP + uint32(in.Spec.Length)

	jumped, err := m.execute(in, next)
	if err != nil {
		return err
	}
	if !jumped {
		m.IP = next
	}
	return nil
}

// execute dispatches one decoded instruction. It returns jumped=true
// when it has already set m.IP itself (branches, calls, returns), so
// Step must not overwrite it with the sequential next address.
func (m *Machine) execute(in Instr, next uint32) (jumped bool, err error) {
	switch in.Spec.Opcode {
	case isa.OpNop:
		return false, nil

	case isa.OpExit:
		code := int(m.reg32(0))
		if m.Image.Header.Mode == isa.ModeStack {
			if v, err := m.peekWord(0); err == nil {
				code = int(v)
			}
		}
		return false, haltSignal{code: code}

	case isa.OpJmp:
		m.IP = in.Imm32
		return true, nil

	case isa.OpCall:
		if err := m.pushFrame(next); err != nil {
			return false, err
		}
		m.IP = in.Imm32
		return true, nil

	case isa.OpRet:
		return true, m.doReturn(in, 0)
	case isa.OpRet32:
		return true, m.doReturn(in, 1)
	case isa.OpRet64:
		return true, m.doReturn(in, 2)

	case isa.OpSArg:
		return false, m.execSArg(in)
	case isa.OpSCall:
		return false, m.execSCall(in)
	}

	if m.Image.Header.Mode == isa.ModeStack {
		return m.executeStack(in)
	}
	return m.executeRegister(in)
}

// doReturn implements the call/return frame discipline of spec.md
// §4.2.3: the callee's return value(s), if any, are lifted out of the
// frame before it is torn down, the caller's frame_base is restored,
// the argument words the caller pushed are dropped from the stack, and
// only then is the return value placed where the caller expects it.
func (m *Machine) doReturn(in Instr, retWords int) error {
	var retLo, retHi uint32
	switch retWords {
	case 1:
		v, err := m.popWord()
		if err != nil {
			return err
		}
		retLo = v
	case 2:
		v, err := m.popDWord()
		if err != nil {
			return err
		}
		retLo, retHi = uint32(v), uint32(v>>32)
	}

	returnIP, err := m.popFrame()
	if err != nil {
		return err
	}

	argWords := uint32(in.Byte) / 4
	if m.SP < argWords {
		return ErrStackUnderflow
	}
	m.SP -= argWords

	switch retWords {
	case 1:
		if err := m.pushWord(retLo); err != nil {
			return err
		}
	case 2:
		if err := m.pushDWord(uint64(retLo) | uint64(retHi)<<32); err != nil {
			return err
		}
	}

	m.IP = returnIP
	return nil
}
