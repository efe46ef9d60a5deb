// Package blockarena gives every Sample a bump allocator for its Block and
// MetaBlock byte buffers, so the whole sample's payload can be released in
// O(1) when the sample is removed (on Clear, ClearFrom, or a consolidation
// sweep) instead of freeing every block individually.
//
// This follows the same shape as a sibling package that wraps Go's
// experimental `arena` stdlib package (New/Free/NewValue/MakeSlice) to give
// a generation's allocations a bulk-free allocator outside the GC heap.
// That package is gated behind `goexperiment.arenas` and does not build
// without the experimental toolchain flag. OmniCache does not need to
// bypass the garbage collector — it only needs the bulk-free-at-one-
// granularity property, which an ordinary Go byte-slice bump allocator
// provides portably, so this is a plain-Go reimplementation of the same
// idea rather than a port of the experimental wrapper.
//
// © 2025 omnicache authors. MIT License.
package blockarena

import "github.com/Voskan/omnicache/internal/unsafeutil"

// defaultChunkSize is the size of each backing buffer the arena grows by.
// Chosen to comfortably hold a handful of typical OmniCache block payloads
// (a MAT4 block is 64 bytes) without over-allocating for small caches.
const defaultChunkSize = 4096

// allocAlign is the byte alignment every carved-out allocation starts on,
// so a block's bytes can be reinterpreted as any of the wider OmniCache
// data types (FLOAT, MAT3, MAT4) without an unaligned-access penalty.
const allocAlign = 8

// Arena is a bump allocator: Alloc hands out zeroed byte slices carved out
// of growing backing buffers; Free drops every buffer at once. Individual
// allocations cannot be reclaimed before Free — a block that resizes
// simply receives a fresh allocation and the old one becomes unreachable
// garbage within the arena until the whole sample is freed. That tradeoff
// is the same one generation-ring arenas make elsewhere: bulk release
// beats per-item free for workloads where allocation lifetime tracks a
// coarser-grained owner (there: a generation; here: a sample).
type Arena struct {
	chunks  [][]byte
	current []byte
}

// New constructs an empty arena. No backing memory is allocated until the
// first Alloc call.
func New() *Arena {
	return &Arena{}
}

// Alloc returns a zeroed byte slice of length n carved out of the arena,
// starting at an allocAlign-aligned offset. The returned slice is valid
// until Free is called. Alloc(0) returns nil.
func (a *Arena) Alloc(n int) []byte {
	if n == 0 {
		return nil
	}

	start := int(unsafeutil.AlignUp(uintptr(len(a.current)), allocAlign))
	if cap(a.current)-start < n {
		size := defaultChunkSize
		if n > size {
			size = n
		}
		a.current = make([]byte, 0, size)
		a.chunks = append(a.chunks, a.current)
		start = 0
	}

	a.current = a.current[:start+n]
	buf := a.current[start : start+n : start+n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Free releases every buffer the arena has ever allocated. Any slice
// previously returned by Alloc must not be used afterward.
func (a *Arena) Free() {
	a.chunks = nil
	a.current = nil
}

// Bytes reports the total backing capacity currently held by the arena,
// across all chunks — useful for diagnostics.
func (a *Arena) Bytes() int {
	total := 0
	for _, c := range a.chunks {
		total += cap(c)
	}
	return total
}
