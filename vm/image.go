// Package vm implements the Virtual Machine of spec.md §4.2: binary
// image loading, instruction decoding, register-ISA and stack-ISA
// dispatch, call-frame discipline, and host calls.
//
// The overall Step/decode/execute shape is adapted from the teacher's
// vm/executor.go; the byte-addressable memory idea is adapted from
// vm/memory.go, generalized from four permissioned segments to the
// program/stack/heap regions spec.md §6.1 describes.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/duovm/duovm/isa"
)

// HeaderSize is the fixed byte length of the binary image header
// (spec.md §6.1).
const HeaderSize = 16

// Header is the 16-byte prologue of a binary image.
type Header struct {
	Mode        isa.Mode
	HeapInitial uint32 // KiB
	HeapMax     uint32 // KiB
	DataStart   uint32 // byte offset within program area
}

// Image is a fully loaded binary image: its header plus the raw program
// bytes that follow it (instructions in [0, DataStart), data beyond).
type Image struct {
	Header  Header
	Program []byte
}

// ParseHeader decodes the 16-byte header from the front of raw.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, fmt.Errorf("%w: image is %d bytes, need at least %d for the header", ErrMalformedHeader, len(raw), HeaderSize)
	}
	h := Header{
		Mode:        isa.Mode(binary.LittleEndian.Uint32(raw[0:4])),
		HeapInitial: binary.LittleEndian.Uint32(raw[4:8]),
		HeapMax:     binary.LittleEndian.Uint32(raw[8:12]),
		DataStart:   binary.LittleEndian.Uint32(raw[12:16]),
	}
	if h.Mode != isa.ModeRegister && h.Mode != isa.ModeStack {
		return Header{}, fmt.Errorf("%w: mode %d is neither register(0) nor stack(1)", ErrMalformedHeader, h.Mode)
	}
	if h.HeapMax < h.HeapInitial {
		return Header{}, fmt.Errorf("%w: heap_max (%d KiB) smaller than heap_initial (%d KiB)", ErrMalformedHeader, h.HeapMax, h.HeapInitial)
	}
	return h, nil
}

// LoadImage reads a complete binary image from path.
func LoadImage(path string) (*Image, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return DecodeImage(raw)
}

// DecodeImage parses a complete binary image already held in memory.
func DecodeImage(raw []byte) (*Image, error) {
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	program := raw[HeaderSize:]
	if uint32(len(program)) < h.DataStart {
		return nil, fmt.Errorf("%w: data_start (%d) is past the end of the program (%d bytes)", ErrMalformedHeader, h.DataStart, len(program))
	}
	return &Image{Header: h, Program: program}, nil
}

// WriteImage serialises a header and program body to w, in the layout
// the assembler's Pass 2 produces (spec.md §6.1).
func WriteImage(w io.Writer, h Header, program []byte) (int, error) {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Mode))
	binary.LittleEndian.PutUint32(buf[4:8], h.HeapInitial)
	binary.LittleEndian.PutUint32(buf[8:12], h.HeapMax)
	binary.LittleEndian.PutUint32(buf[12:16], h.DataStart)

	n1, err := w.Write(buf[:])
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(program)
	return n1 + n2, err
}

// InstrEnd returns the byte offset one past the last instruction byte;
// bytes at and beyond this offset are read-only .WORD data.
func (img *Image) InstrEnd() uint32 { return img.Header.DataStart }

// HeapInitialBytes/HeapMaxBytes convert the header's KiB fields to
// bytes (spec.md §4.2.1 "Multiply heap sizes by 1024").
func (img *Image) HeapInitialBytes() int { return int(img.Header.HeapInitial) * 1024 }
func (img *Image) HeapMaxBytes() int     { return int(img.Header.HeapMax) * 1024 }
