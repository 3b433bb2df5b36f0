// Package heap implements the Heap Manager of spec.md §4.1: a single
// contiguous byte buffer managed as an intrusive list of fixed-size
// headers linked forward through their `next` field, serving
// allocation, reallocation, free, and string-construction primitives.
// Each header also reserves a `prev` slot, but it is not maintained:
// a block's predecessor is found by a forward scan from the start.
//
// The byte-buffer-with-segments idea is adapted from the teacher's
// vm/memory.go Memory/MemorySegment pair, generalized here to a single
// segment with in-band free-list headers instead of permission bits.
// The first-fit/split/coalesce algorithm and the 0xDEADC0DE corruption
// sentinel follow original_source/vm/vm_memory.c.
package heap

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size in bytes of an Alloc header (spec.md §3
// "Heap" invariants): safebytes(4) + occupied(1) + pad(3) + next(4) +
// prev(4) = 16, rounded up to the allocation-unit alignment of 24 bytes
// specified by the spec ("allocation sizes are rounded up to a multiple
// of the header size").
const HeaderSize = 24

// safebytesSentinel marks a live header; checked at free time to detect
// corruption (spec.md §3 "Heap").
const safebytesSentinel = 0xDEADC0DE

// header field byte offsets within a 24-byte Alloc header.
const (
	offSafebytes = 0
	offOccupied  = 4
	offNext      = 8
	offPrev      = 12
	// bytes 16-23 are unused alignment padding.
)

// Heap is a single contiguous byte buffer with an intrusive free list.
// It is not safe for concurrent use: the VM's interpreter loop is its
// sole owner for the lifetime of a run (spec.md §5).
type Heap struct {
	buf     []byte
	max     int
	onWarn  func(string)
	corrupt bool
}

// New creates a heap of initialSize bytes, capped at maxSize bytes
// (spec.md §4.2.1 "Image loading"). onWarn, if non-nil, receives
// diagnostic text for non-fatal conditions (corruption, allocation
// failure) instead of duovm writing directly to stderr.
func New(initialSize, maxSize int, onWarn func(string)) *Heap {
	if maxSize < initialSize {
		maxSize = initialSize
	}
	h := &Heap{buf: make([]byte, initialSize), max: maxSize, onWarn: onWarn}
	h.initFreeList()
	return h
}

func (h *Heap) warn(format string, args ...any) {
	if h.onWarn != nil {
		h.onWarn(fmt.Sprintf(format, args...))
	}
}

func (h *Heap) initFreeList() {
	if len(h.buf) < HeaderSize {
		return
	}
	h.writeHeader(0, uint32(len(h.buf)), false)
}

func (h *Heap) writeHeader(at int, next uint32, occupied bool) {
	binary.LittleEndian.PutUint32(h.buf[at+offSafebytes:], safebytesSentinel)
	if occupied {
		h.buf[at+offOccupied] = 1
	} else {
		h.buf[at+offOccupied] = 0
	}
	binary.LittleEndian.PutUint32(h.buf[at+offNext:], next)
	binary.LittleEndian.PutUint32(h.buf[at+offPrev:], noPrev)
}

const noPrev = 0xFFFFFFFF

func (h *Heap) headerSafebytes(at uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[at+offSafebytes:])
}

func (h *Heap) headerOccupied(at uint32) bool {
	return h.buf[at+offOccupied] != 0
}

func (h *Heap) setOccupied(at uint32, v bool) {
	if v {
		h.buf[at+offOccupied] = 1
	} else {
		h.buf[at+offOccupied] = 0
	}
}

func (h *Heap) headerNext(at uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[at+offNext:])
}

func (h *Heap) setHeaderNext(at, next uint32) {
	binary.LittleEndian.PutUint32(h.buf[at+offNext:], next)
}

func (h *Heap) headerPrev(at uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[at+offPrev:])
}

func (h *Heap) setHeaderPrev(at, prev uint32) {
	binary.LittleEndian.PutUint32(h.buf[at+offPrev:], prev)
}

// roundUp rounds n up to a multiple of HeaderSize, per spec.md §3's
// "allocation sizes are rounded up to a multiple of the header size".
func roundUp(n uint32) uint32 {
	r := n % HeaderSize
	if r == 0 {
		return n
	}
	return n + (HeaderSize - r)
}

// end returns the address one past the managed buffer.
func (h *Heap) end() uint32 { return uint32(len(h.buf)) }

// Alloc reserves a block of at least n bytes and returns its user
// address. Alloc(0) returns 0, the reserved null address (spec.md §4.1
// contract).
func (h *Heap) Alloc(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	need := roundUp(n)

	for at := uint32(0); at < h.end(); at = h.headerNext(at) {
		if h.headerSafebytes(at) != safebytesSentinel {
			h.warn("heap corruption: bad header safebytes at %d", at)
			h.corrupt = true
			return 0
		}
		if h.headerOccupied(at) {
			continue
		}
		next := h.headerNext(at)
		size := next - at - HeaderSize
		if size < need {
			continue
		}
		// A block is only usable if it fits exactly or leaves enough
		// room to split off another header; otherwise the allocation
		// handed out would not be a multiple of HeaderSize (spec.md §8).
		if size > need && size-need < HeaderSize {
			continue
		}
		// Split if there's room left for another header-sized block.
		if size-need >= HeaderSize {
			splitAt := at + HeaderSize + need
			h.writeHeader(splitAt, next, false)
			h.setHeaderNext(at, splitAt)
		}
		h.setOccupied(at, true)
		return at + HeaderSize
	}

	h.warn("heap allocation failed: no block large enough for %d bytes (growth to max not yet exercised)", n)
	return 0
}

// headerOf converts a user address back to its header offset, per the
// invariant `address = header_offset + sizeof(header)` (spec.md §3).
func headerOf(addr uint32) uint32 {
	return addr - HeaderSize
}

// SizeOf returns the number of bytes usable at addr, i.e. `next - self`
// minus the header (spec.md §3). Returns 0 for the null address.
func (h *Heap) SizeOf(addr uint32) uint32 {
	if addr == 0 {
		return 0
	}
	at := headerOf(addr)
	return h.headerNext(at) - at - HeaderSize
}

// Free releases the allocation at addr. Freeing an address not obtained
// from Alloc is undefined (spec.md §4.1 contract); a corruption warning
// is emitted (not a fatal error) when safebytes do not match.
func (h *Heap) Free(addr uint32) {
	if addr == 0 {
		return
	}
	at := headerOf(addr)
	if h.headerSafebytes(at) != safebytesSentinel {
		h.warn("heap corruption: free() on invalid address %d", addr)
		h.corrupt = true
		return
	}
	h.setOccupied(at, false)
	h.coalesce(at)
}

// coalesce merges at with its free neighbors, keeping the list sorted
// by address, as original_source/vm/vm_memory.c does: first absorb the
// successor if free, then have the predecessor (if free) absorb self.
func (h *Heap) coalesce(at uint32) {
	next := h.headerNext(at)
	if next < h.end() && h.headerSafebytes(next) == safebytesSentinel && !h.headerOccupied(next) {
		h.setHeaderNext(at, h.headerNext(next))
	}

	prev := h.findPrev(at)
	if prev != noPrev && !h.headerOccupied(prev) {
		h.setHeaderNext(prev, h.headerNext(at))
	}
}

// findPrev does a linear scan for the header immediately preceding at.
// The free list is small relative to typical program heaps and kept
// sorted by address, so a forward scan is sufficient; no back-pointer
// chain is needed beyond the unused `prev` slot already on disk.
func (h *Heap) findPrev(at uint32) uint32 {
	if at == 0 {
		return noPrev
	}
	prev := uint32(noPrev)
	for cur := uint32(0); cur < at; cur = h.headerNext(cur) {
		if h.headerSafebytes(cur) != safebytesSentinel {
			break
		}
		prev = cur
	}
	return prev
}

// Realloc resizes the allocation at addr to n bytes, preserving the
// first min(old, new) bytes (spec.md §4.1 contract). It grows in place
// when the next neighbor is free and large enough; otherwise it
// allocates fresh, copies, and frees the old block.
func (h *Heap) Realloc(addr uint32, n uint32) uint32 {
	if addr == 0 {
		return h.Alloc(n)
	}
	if n == 0 {
		h.Free(addr)
		return 0
	}

	at := headerOf(addr)
	oldSize := h.SizeOf(addr)
	need := roundUp(n)

	next := h.headerNext(at)
	if next < h.end() && !h.headerOccupied(next) {
		afterNext := h.headerNext(next)
		combined := afterNext - at - HeaderSize
		if combined >= need && (combined == need || combined-need >= HeaderSize) {
			if combined-need >= HeaderSize {
				splitAt := at + HeaderSize + need
				h.writeHeader(splitAt, afterNext, false)
				h.setHeaderNext(at, splitAt)
			} else {
				h.setHeaderNext(at, afterNext)
			}
			return addr
		}
	}

	newAddr := h.Alloc(n)
	if newAddr == 0 {
		return 0
	}
	copyLen := oldSize
	if n < copyLen {
		copyLen = n
	}
	copy(h.buf[newAddr:newAddr+copyLen], h.buf[addr:addr+copyLen])
	h.Free(addr)
	return newAddr
}

// AllocString copies bytes into a fresh heap allocation sized to hold
// them plus a trailing NUL, and returns its address.
func (h *Heap) AllocString(b []byte) uint32 {
	addr := h.Alloc(uint32(len(b)) + 1)
	if addr == 0 {
		return 0
	}
	copy(h.buf[addr:], b)
	h.buf[addr+uint32(len(b))] = 0
	return addr
}

// AllocSubstring copies the first n bytes at src into a fresh
// NUL-terminated heap string.
func (h *Heap) AllocSubstring(src uint32, n uint32) uint32 {
	b := h.ReadBytes(src, h.cstrLen(src, n))
	return h.AllocString(b)
}

// AllocCombined concatenates the NUL-terminated strings at a and b into
// a fresh heap string.
func (h *Heap) AllocCombined(a, b uint32) uint32 {
	sa := h.ReadCString(a)
	sb := h.ReadCString(b)
	out := make([]byte, 0, len(sa)+len(sb))
	out = append(out, sa...)
	out = append(out, sb...)
	return h.AllocString(out)
}

// cstrLen returns the length of the string at addr, capped at max (used
// for bounding AllocSubstring so a missing NUL can't run past max).
func (h *Heap) cstrLen(addr uint32, max uint32) uint32 {
	size := h.SizeOf(addr)
	if max < size {
		size = max
	}
	var i uint32
	for i = 0; i < size; i++ {
		if h.buf[addr+i] == 0 {
			break
		}
	}
	return i
}

// ReadCString reads bytes at addr up to (not including) the first NUL
// or the end of the allocation, whichever comes first.
func (h *Heap) ReadCString(addr uint32) []byte {
	if addr == 0 {
		return nil
	}
	n := h.cstrLen(addr, h.SizeOf(addr))
	return h.ReadBytes(addr, n)
}

// ReadBytes returns a copy of n bytes starting at addr.
func (h *Heap) ReadBytes(addr uint32, n uint32) []byte {
	out := make([]byte, n)
	copy(out, h.buf[addr:addr+n])
	return out
}

// WriteBytes writes b at addr.
func (h *Heap) WriteBytes(addr uint32, b []byte) {
	copy(h.buf[addr:], b)
}

// ReadByte/WriteByte/ReadWord/WriteWord/ReadDWord/WriteDWord give the VM
// direct little-endian access to heap memory for LDM/STM-family
// opcodes, mirroring the teacher's Memory.ReadWord/WriteWord pair.

func (h *Heap) ReadByte(addr uint32) byte { return h.buf[addr] }

func (h *Heap) WriteByte(addr uint32, v byte) { h.buf[addr] = v }

func (h *Heap) ReadWord(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[addr:])
}

func (h *Heap) WriteWord(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(h.buf[addr:], v)
}

func (h *Heap) ReadDWord(addr uint32) uint64 {
	return binary.LittleEndian.Uint64(h.buf[addr:])
}

func (h *Heap) WriteDWord(addr uint32, v uint64) {
	binary.LittleEndian.PutUint64(h.buf[addr:], v)
}

// Len returns the current size of the managed buffer in bytes.
func (h *Heap) Len() int { return len(h.buf) }

// Corrupted reports whether a safebytes mismatch has ever been
// observed during this heap's lifetime.
func (h *Heap) Corrupted() bool { return h.corrupt }
