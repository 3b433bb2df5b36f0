package vm

import "strconv"

// numToString renders a numeric register value into a fresh
// NUL-terminated heap string (ITOS/LTOS/FTOS/DTOS, spec.md §4.2.4).
// kind selects which of i/f holds the value: 0 for int64 (opt is the
// output base, 0 meaning base 10), 1 or 2 for float32/float64 (opt is
// the number of digits after the decimal point).
func (m *Machine) numToString(i int64, f float64, kind byte, opt byte) uint32 {
	var s string
	switch kind {
	case 0:
		base := int(opt)
		if base == 0 {
			base = 10
		}
		s = strconv.FormatInt(i, base)
	case 1:
		s = strconv.FormatFloat(f, 'f', int(opt), 32)
	default:
		s = strconv.FormatFloat(f, 'f', int(opt), 64)
	}
	return m.Heap.AllocString([]byte(s))
}

func (m *Machine) stringToInt(addr uint32, def uint32) uint32 {
	v, err := strconv.ParseInt(string(m.Heap.ReadCString(addr)), 10, 32)
	if err != nil {
		return def
	}
	return uint32(v)
}

func (m *Machine) stringToInt64(addr uint32, def uint64) uint64 {
	v, err := strconv.ParseInt(string(m.Heap.ReadCString(addr)), 10, 64)
	if err != nil {
		return def
	}
	return uint64(v)
}

func (m *Machine) stringToFloat32(addr uint32, def float32) float32 {
	v, err := strconv.ParseFloat(string(m.Heap.ReadCString(addr)), 32)
	if err != nil {
		return def
	}
	return float32(v)
}

func (m *Machine) stringToFloat64(addr uint32, def float64) float64 {
	v, err := strconv.ParseFloat(string(m.Heap.ReadCString(addr)), 64)
	if err != nil {
		return def
	}
	return v
}

// loadProgramString copies the NUL-terminated string literal embedded
// in the program's data area at offset onto the heap, returning its
// fresh address (STR, spec.md §4.2.4 "String literals").
func (m *Machine) loadProgramString(offset uint32) uint32 {
	prog := m.Image.Program
	end := offset
	for end < uint32(len(prog)) && prog[end] != 0 {
		end++
	}
	return m.Heap.AllocString(prog[offset:end])
}
