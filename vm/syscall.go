package vm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/duovm/duovm/isa"
)

// execSArg records one host-call argument's type and value into the
// pending scratch buffer (spec.md §4.2.6 "SARG"). Arguments accumulate
// in the order their SARG instructions execute; the matching SCALL
// consumes and clears them.
//
// The value itself comes from register R<n> in register-ISA programs
// (n being this argument's position since the last SCALL) or is popped
// off the stack in stack-ISA programs, so a program supplies arguments
// the same way it would pass them to any other operation in its mode.
func (m *Machine) execSArg(in Instr) error {
	kind := in.Byte
	wide := kind&(isa.SArgDouble|isa.SArgInt64) != 0

	var value uint64
	if m.Image.Header.Mode == isa.ModeStack {
		if wide {
			v, err := m.popDWord()
			if err != nil {
				return err
			}
			value = v
		} else {
			v, err := m.popWord()
			if err != nil {
				return err
			}
			value = uint64(v)
		}
	} else {
		reg := byte(len(m.args))
		if wide {
			value = m.reg64(reg)
		} else {
			value = uint64(m.reg32(reg))
		}
	}

	m.args = append(m.args, hostArg{kind: kind, value: value})
	return nil
}

// execSCall dispatches a pending host call by id and delivers its
// result the way the calling convention expects it (spec.md §4.2.6
// "SCALL"): register R0 in register-ISA programs, the stack's new top
// word in stack-ISA programs.
func (m *Machine) execSCall(in Instr) error {
	id := in.Byte
	result, err := m.hostCall(id)
	m.args = m.args[:0]
	if err != nil {
		return err
	}

	if m.Image.Header.Mode == isa.ModeStack {
		return m.pushWord(uint32(result))
	}
	m.setReg32(0, uint32(result))
	return nil
}

// hostCall implements the six predefined host calls plus STR (spec.md
// §4.2.6), including the file I/O calls __write/__read/__open/__close.
func (m *Machine) hostCall(id byte) (uint64, error) {
	args := m.args

	switch id {
	case isa.SCallPrint:
		if len(args) < 1 {
			return 0, fmt.Errorf("%w: __print needs a format argument", ErrHostCallIO)
		}
		text, err := m.expandFormat(args)
		if err != nil {
			return 0, err
		}
		n, err := fmt.Fprint(m.Stdout, text)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrHostCallIO, err)
		}
		return uint64(n), nil

	case isa.SCallInput:
		line, err := m.readLine()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrHostCallIO, err)
		}
		return uint64(m.Heap.AllocString([]byte(line))), nil

	case isa.SCallWrite:
		if len(args) < 2 {
			return 0, fmt.Errorf("%w: __write needs a handle and a string", ErrHostCallIO)
		}
		f, err := m.fileFor(uint32(args[0].value))
		if err != nil {
			return 0, err
		}
		n, err := f.Write([]byte(m.argString(args[1])))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrHostCallIO, err)
		}
		return uint64(n), nil

	case isa.SCallRead:
		if len(args) < 1 {
			return 0, fmt.Errorf("%w: __read needs a handle", ErrHostCallIO)
		}
		f, err := m.fileFor(uint32(args[0].value))
		if err != nil {
			return 0, err
		}
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && line == "" {
			return 0, fmt.Errorf("%w: %v", ErrHostCallIO, err)
		}
		return uint64(m.Heap.AllocString([]byte(trimNewline(line)))), nil

	case isa.SCallOpen:
		if len(args) < 2 {
			return 0, fmt.Errorf("%w: __open needs a path and a mode", ErrHostCallIO)
		}
		path := m.argString(args[0])
		flags := os.O_RDONLY
		if args[1].value != 0 {
			flags = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(path, flags, 0o644) // #nosec G304 -- path is program-controlled, same trust boundary as the program itself
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrHostCallIO, err)
		}
		m.files = append(m.files, f)
		return uint64(len(m.files) - 1), nil

	case isa.SCallClose:
		if len(args) < 1 {
			return 0, fmt.Errorf("%w: __close needs a handle", ErrHostCallIO)
		}
		handle := uint32(args[0].value)
		f, err := m.fileFor(handle)
		if err != nil {
			return 0, err
		}
		if handle > 2 {
			return 0, f.Close()
		}
		return 0, nil

	case isa.SCallStr:
		if len(args) < 1 {
			return 0, fmt.Errorf("%w: __str needs a format argument", ErrHostCallIO)
		}
		text, err := m.expandFormat(args)
		if err != nil {
			return 0, err
		}
		return uint64(m.Heap.AllocString([]byte(text))), nil
	}

	return 0, fmt.Errorf("%w: unknown host call id %d", ErrHostCallIO, id)
}

// argString interprets one scratch argument as text: a pointer
// argument names a NUL-terminated heap string, everything else is
// formatted from its numeric value per its type flag.
func (m *Machine) argString(a hostArg) string {
	switch {
	case a.kind&isa.SArgPointer != 0:
		return string(m.Heap.ReadCString(uint32(a.value)))
	case a.kind&isa.SArgDouble != 0:
		addr := m.numToString(0, math.Float64frombits(a.value), 2, 6)
		return string(m.Heap.ReadCString(addr))
	case a.kind&isa.SArgFloat != 0:
		addr := m.numToString(0, float64(math.Float32frombits(uint32(a.value))), 1, 6)
		return string(m.Heap.ReadCString(addr))
	case a.kind&isa.SArgInt64 != 0:
		return fmt.Sprintf("%d", int64(a.value))
	default:
		return fmt.Sprintf("%d", int32(uint32(a.value)))
	}
}

// expandFormat implements the variadic behavior PRINT and STR share
// (spec.md §4.2.6): args[0] names a heap format string and args[1:]
// substitute positionally into its '%' directives, up to 8 arguments.
// A value's Go representation comes from the type flag its SARG
// recorded, not from the directive's own conversion letter, matching
// the teacher-adjacent SysPrint/SysStr in original_source/vm/shared_impl.h.
func (m *Machine) expandFormat(args []hostArg) (string, error) {
	if args[0].kind&isa.SArgPointer == 0 {
		return "", fmt.Errorf("%w: format argument must be a heap string", ErrHostCallIO)
	}
	format := string(m.Heap.ReadCString(uint32(args[0].value)))
	rest := args[1:]

	var out strings.Builder
	argIdx := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			out.WriteByte(format[i])
			continue
		}

		start := i
		i++
		for i < len(format) && strings.IndexByte("-+ 0#", format[i]) >= 0 {
			i++
		}
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		if i < len(format) && format[i] == '.' {
			i++
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
		}
		for i < len(format) && strings.IndexByte("lh", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			out.WriteByte('%')
			break
		}
		verb := format[i]
		if verb == '%' {
			out.WriteByte('%')
			continue
		}

		if argIdx >= len(rest) {
			return "", fmt.Errorf("%w: format string has more directives than recorded arguments", ErrHostCallIO)
		}
		a := rest[argIdx]
		argIdx++

		flagsWidth := stripLengthMods(format[start+1 : i])
		goVerb, val := m.formatArg(verb, a)
		fmt.Fprintf(&out, "%"+flagsWidth+goVerb, val)
	}

	return out.String(), nil
}

// stripLengthMods removes C length modifiers ('l', 'h') a directive's
// flags/width/precision text may carry; Go's fmt verbs need none of
// them since the argument's own type already picks the right width.
func stripLengthMods(s string) string {
	return strings.NewReplacer("l", "", "h", "").Replace(s)
}

// formatArg resolves one positional argument to the Go verb and value
// fmt.Sprintf should use, keyed off the type flags SARG recorded
// rather than the directive's own conversion letter.
func (m *Machine) formatArg(verb byte, a hostArg) (string, any) {
	switch {
	case a.kind&isa.SArgPointer != 0:
		return "s", string(m.Heap.ReadCString(uint32(a.value)))
	case a.kind&isa.SArgDouble != 0:
		return floatVerb(verb), math.Float64frombits(a.value)
	case a.kind&isa.SArgFloat != 0:
		return floatVerb(verb), float64(math.Float32frombits(uint32(a.value)))
	case a.kind&isa.SArgInt64 != 0:
		return intVerb(verb), int64(a.value)
	default:
		return intVerb(verb), int32(uint32(a.value))
	}
}

func floatVerb(verb byte) string {
	switch verb {
	case 'e', 'E', 'g', 'G', 'F':
		return string(verb)
	default:
		return "f"
	}
}

func intVerb(verb byte) string {
	switch verb {
	case 'x', 'X', 'o', 'b':
		return string(verb)
	case 'c':
		return "c"
	default:
		return "d"
	}
}

func (m *Machine) fileFor(handle uint32) (*os.File, error) {
	if int(handle) >= len(m.files) || m.files[handle] == nil {
		return nil, ErrInvalidFileHandle
	}
	return m.files[handle], nil
}

// readLine reads one line of input. When the process's stdin is a
// terminal it is put into raw mode for the duration of the read, which
// turns off the terminal's own echo; this call echoes nothing itself.
func (m *Machine) readLine() (string, error) {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, old) //nolint:errcheck
		}
	}
	line, err := m.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
