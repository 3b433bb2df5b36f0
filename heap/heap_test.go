package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocBasics(t *testing.T) {
	h := New(4096, 4096, nil)

	require.Equal(t, uint32(0), h.Alloc(0), "Alloc(0) must return the reserved null address")

	addr := h.Alloc(10)
	require.NotZero(t, addr)
	require.GreaterOrEqual(t, h.SizeOf(addr), uint32(10))
	require.Zero(t, h.SizeOf(addr)%HeaderSize, "allocation size must be a multiple of the header size")
}

func TestFreeThenReallocSameSizeReusesBlock(t *testing.T) {
	h := New(4096, 4096, nil)

	a := h.Alloc(32)
	require.NotZero(t, a)
	h.Free(a)

	b := h.Alloc(32)
	require.Equal(t, a, b, "freeing then allocating the same size should reuse the freed block")
}

func TestCoalescingMergesAdjacentFreeBlocks(t *testing.T) {
	h := New(4096, 4096, nil)

	a := h.Alloc(24)
	b := h.Alloc(24)
	c := h.Alloc(24)
	_ = c

	h.Free(a)
	h.Free(b)

	// a and b are adjacent and both free: a single allocation spanning
	// both former blocks' usable bytes must now succeed.
	big := h.Alloc(2*24 + HeaderSize)
	require.Equal(t, a, big, "coalesced free blocks should satisfy a larger allocation at the same address")
}

func TestReallocPreservesData(t *testing.T) {
	h := New(4096, 4096, nil)

	addr := h.Alloc(8)
	h.WriteBytes(addr, []byte("abcdefgh"))

	grown := h.Realloc(addr, 64)
	require.NotZero(t, grown)
	require.Equal(t, []byte("abcdefgh"), h.ReadBytes(grown, 8))
}

func TestAllocStringRoundTrip(t *testing.T) {
	h := New(4096, 4096, nil)

	addr := h.AllocString([]byte("hello"))
	require.Equal(t, []byte("hello"), h.ReadCString(addr))
}

func TestAllocCombined(t *testing.T) {
	h := New(4096, 4096, nil)

	a := h.AllocString([]byte("foo"))
	b := h.AllocString([]byte("bar"))
	c := h.AllocCombined(a, b)
	require.Equal(t, "foobar", string(h.ReadCString(c)))
}

func TestAllocFailureReturnsZeroAndWarns(t *testing.T) {
	var warned string
	h := New(64, 64, func(msg string) { warned = msg })

	addr := h.Alloc(4096)
	require.Zero(t, addr)
	require.NotEmpty(t, warned)
}

func TestAllocRejectsUnsplittableRemainder(t *testing.T) {
	var warned string
	h := New(100, 100, func(msg string) { warned = msg })

	// The sole free block has 100-HeaderSize=76 usable bytes. Asking
	// for 50 rounds up to 72, leaving a 4-byte remainder too small for
	// another header: the block must be skipped rather than handed out
	// whole, which would make SizeOf(addr) not a multiple of HeaderSize.
	addr := h.Alloc(50)
	require.Zero(t, addr, "a block with an unsplittable remainder must not be handed out")
	require.NotEmpty(t, warned)
}

func TestCorruptionDetectedOnFree(t *testing.T) {
	var warned string
	h := New(4096, 4096, func(msg string) { warned = msg })

	addr := h.Alloc(16)
	// Corrupt the header's safebytes field directly, simulating an
	// out-of-band write that clobbers the sentinel.
	h.WriteWord(addr-HeaderSize, 0)

	h.Free(addr)
	require.NotEmpty(t, warned)
	require.True(t, h.Corrupted())
}
