// Package samplestore implements the sparse sample table at the heart of
// OmniCache: an array of root samples with per-slot singly-linked overflow
// chains for off-grid sub-samples, its growth policy, and the
// parent-pointer fixup pass that keeps every Block's back-pointer correct
// across reallocation.
//
// The growth policy follows the same shape as a generation ring elsewhere:
// a growable, ID-tracked collection of time-bounded units (there:
// generations wrapping an arena; here: root sample slots wrapping a block
// vector) with an explicit "rebuild and fix up pointers" step whenever the
// backing storage moves. That ring never needed a fixup pass of its own
// (generations live behind a fixed-size ring of pointers, so the ring
// never reallocates), but its growth-policy shape — amortize by doubling,
// floor at a small minimum, track a monotonically assigned identifier per
// slot — is exactly the policy this store needs
// (`min_array_size`/`MIN_SAMPLES`), so that part of its design is kept
// while the fixup mechanics (`resize_sample_array` / `update_block_parents`)
// are grounded on the reference C implementation this package replaces.
//
// © 2025 omnicache authors. MIT License.
package samplestore

import (
	"github.com/Voskan/omnicache/internal/blockarena"
	"github.com/Voskan/omnicache/internal/statuslattice"
	"github.com/Voskan/omnicache/internal/timealgebra"
	"github.com/Voskan/omnicache/internal/unsafeutil"
)

// MinSamples is the floor applied to the root array's power-of-two growth,
// per spec §4.3 ("next power-of-two >= index+1, floor of MIN_SAMPLES=10").
const MinSamples = 10

// Block is one sample's payload for one of the cache's block descriptors.
type Block struct {
	Parent *Sample
	Status statuslattice.Flags
	Count  uint32 // last count reported by the host's count callback
	Data   []byte // arena-backed buffer, size = descriptor.ElementSize * Count
}

// MetaBlock is the optional per-sample metadata buffer, status-tracked like
// a Block but without an element count.
type MetaBlock struct {
	Status statuslattice.Flags
	Data   []byte
}

// Sample is one time point's payload: a root sample lives directly in the
// Store's array (TOffset zero); a sub-sample lives on the singly-linked
// overflow chain of its root slot (TOffset strictly positive, invariant 1).
type Sample struct {
	Next   *Sample
	Parent *Store
	Meta   MetaBlock
	Status statuslattice.Flags

	TIndex  uint32
	TOffset timealgebra.Value

	Blocks            []Block
	NumBlocksInvalid  uint32
	NumBlocksOutdated uint32

	arena *blockarena.Arena
}

// IsRoot reports whether the sample sits directly in the root array
// (TOffset == 0, invariant 1), as opposed to living on an overflow chain.
func (s *Sample) IsRoot() bool {
	return timealgebra.IsZero(s.TOffset)
}

// IsSkip reports whether the sample is a SKIP placeholder.
func (s *Sample) IsSkip() bool {
	return s.Status.Has(statuslattice.Skip)
}

// Arena returns the sample's block-buffer allocator, creating it on first
// use.
func (s *Sample) Arena() *blockarena.Arena {
	if s.arena == nil {
		s.arena = blockarena.New()
	}
	return s.arena
}

// Store owns the sparse root-sample array and every live sub-sample chain.
// It is deliberately ignorant of block *data types* and host callbacks —
// those belong to the façade (pkg.Cache) — and only needs each
// descriptor's element size to size fresh block buffers.
type Store struct {
	Samples []Sample // length == num_samples_alloc

	NumSamplesArray uint32 // slots [0, NumSamplesArray) are populated
	NumSamplesTotal uint32 // roots (non-SKIP) + all sub-samples

	NumBlocks   uint32
	ElementSize []uint32 // per-descriptor element size, len == NumBlocks
	MetaSize    uint32
}

// New constructs an empty store for a cache with the given block element
// sizes and meta-block size.
func New(elementSizes []uint32, metaSize uint32) *Store {
	sizes := make([]uint32, len(elementSizes))
	copy(sizes, elementSizes)
	return &Store{
		NumBlocks:   uint32(len(sizes)),
		ElementSize: sizes,
		MetaSize:    metaSize,
	}
}

// NumSamplesAlloc returns the current root array capacity.
func (st *Store) NumSamplesAlloc() uint32 {
	return uint32(len(st.Samples))
}

func minArraySize(index uint32) uint32 {
	want := unsafeutil.NextPowerOfTwo(uintptr(index) + 1)
	if want < MinSamples {
		want = MinSamples
	}
	return uint32(want)
}

// growTo reallocates the root array to exactly size slots, preserving
// existing contents and zero-filling the new tail, then fixes up every
// live Block's Parent pointer (§4.3.1 — mandatory after any reallocation).
func (st *Store) growTo(size uint32) {
	old := st.Samples
	fresh := make([]Sample, size)
	copy(fresh, old)
	st.Samples = fresh
	st.fixupParents()
}

// fixupParents rewrites every live Block's Parent to the current address
// of its enclosing Sample. Root samples just moved (if growTo triggered
// this call); sub-samples are heap-allocated and never move, but the walk
// revisits them too for uniformity with the reference algorithm.
func (st *Store) fixupParents() {
	for i := uint32(0); i < st.NumSamplesArray; i++ {
		for s := &st.Samples[i]; s != nil; s = s.Next {
			for j := range s.Blocks {
				s.Blocks[j].Parent = s
			}
		}
	}
}

// lastInChain returns the last sample reachable from start by following
// Next pointers (start itself if it has no successor).
func lastInChain(start *Sample) *Sample {
	for start.Next != nil {
		start = start.Next
	}
	return start
}

// assignPrev implements the ASS_PREV helper from the reference algorithm:
// the last sample of the root slot immediately before index, or nil if
// index is zero. Every call site guarantees index-1 < NumSamplesArray.
func (st *Store) assignPrev(index uint32) *Sample {
	if index == 0 {
		return nil
	}
	return lastInChain(&st.Samples[index-1])
}

// assignNext implements the ASS_NEXT helper: candidate if non-nil,
// otherwise the root at nextRootIndex if it has been initialized, else
// nil.
func (st *Store) assignNext(candidate *Sample, nextRootIndex uint32) *Sample {
	if candidate != nil {
		return candidate
	}
	if nextRootIndex < st.NumSamplesArray {
		return &st.Samples[nextRootIndex]
	}
	return nil
}

// initBlocks allocates sample's block vector (length NumBlocks, all
// INITED but neither VALID nor CURRENT) the first time the sample is
// materialized.
func (st *Store) initBlocks(s *Sample) {
	if s.Blocks != nil {
		return
	}

	s.Blocks = make([]Block, st.NumBlocks)
	s.NumBlocksInvalid = st.NumBlocks
	s.NumBlocksOutdated = st.NumBlocks

	for i := range s.Blocks {
		b := &s.Blocks[i]
		b.Parent = s
		statuslattice.BlockSet(&b.Status, statuslattice.Inited)
	}
}

// Get resolves stime against the store. In create mode it materializes
// whatever is missing (growing the array, filling SKIP placeholders,
// splicing a new sub-sample) and returns the live sample. In lookup mode
// it never mutates the store (a SKIP placeholder root counts as a miss);
// on a miss it reports prev/next per the
// `_from` family's needs (the nearest existing neighbors of the requested
// time).
//
// Returns (nil, nil, nil) if stime is invalid (time outside the cache's
// range) — callers treat that as "no such sample".
func (st *Store) Get(stime timealgebra.SampleTime, create bool) (sample, prev, next *Sample) {
	if !stime.Valid {
		return nil, nil, nil
	}

	if stime.Index >= st.NumSamplesAlloc() {
		if !create {
			return nil, st.assignPrev(st.NumSamplesArray), nil
		}
		st.growTo(minArraySize(stime.Index))
	}

	if st.NumSamplesArray <= stime.Index {
		if !create {
			return nil, st.assignPrev(st.NumSamplesArray), nil
		}
		for ; st.NumSamplesArray <= stime.Index; st.NumSamplesArray++ {
			slot := &st.Samples[st.NumSamplesArray]
			slot.Parent = st
			slot.TIndex = st.NumSamplesArray
			statuslattice.SampleSet(&slot.Status, statuslattice.Skip)
		}
	}

	isNew := false

	if timealgebra.IsZero(stime.Offset) {
		sample = &st.Samples[stime.Index]
		if sample.IsSkip() {
			isNew = true
		}
		prev = st.assignPrev(stime.Index)
	} else {
		p := &st.Samples[stime.Index]
		n := p.Next

		for n != nil && timealgebra.Less(n.TOffset, stime.Offset) {
			p = n
			n = n.Next
		}
		prev = p

		switch {
		case n != nil && timealgebra.Eq(n.TOffset, stime.Offset):
			sample = n
		case create:
			fresh := &Sample{TOffset: stime.Offset}
			p.Next = fresh
			fresh.Next = n
			sample = fresh
			isNew = true
		default:
			return nil, prev, st.assignNext(n, stime.Index+1)
		}
	}

	next = st.assignNext(sample.Next, stime.Index+1)

	if isNew && !create {
		return nil, prev, next
	}

	if isNew {
		sample.Parent = st
		sample.TIndex = stime.Index

		st.initBlocks(sample)

		statuslattice.SampleSet(&sample.Status, statuslattice.Inited)
		statuslattice.SampleUnset(&sample.Status, statuslattice.Skip)

		st.NumSamplesTotal++
	}

	return sample, prev, next
}

/* -------------------------------------------------------------------------
   Removal
   ------------------------------------------------------------------------- */

// freeBlocks releases a sample's arena-backed buffers and clears its
// VALID/CURRENT status (and that of its meta block). It does not touch
// chain linkage or NumSamplesTotal.
func freeBlocks(s *Sample) {
	if s.arena != nil {
		s.arena.Free()
		s.arena = nil
	}
	s.Blocks = nil
	s.Meta.Data = nil

	statuslattice.MetaUnset(&s.Meta.Status, statuslattice.Valid)
	statuslattice.SampleUnset(&s.Status, statuslattice.Valid)
}

// RemoveList frees a non-root sample's resources and decrements
// NumSamplesTotal. The caller is responsible for unlinking it from the
// chain first (or doing so via Remove, which handles both).
func (st *Store) RemoveList(s *Sample) {
	freeBlocks(s)
	st.NumSamplesTotal--
}

// RemoveRoot frees a root sample's resources and marks it SKIP, leaving
// the slot reserved. NumSamplesTotal is decremented only if the slot was
// not already SKIP.
func (st *Store) RemoveRoot(s *Sample) {
	freeBlocks(s)
	if !s.IsSkip() {
		st.NumSamplesTotal--
		statuslattice.SampleSet(&s.Status, statuslattice.Skip)
	}
}

// Prev walks from the root of sample's slot to find its immediate
// predecessor in the overflow chain. sample must not be root.
func (st *Store) Prev(sample *Sample) *Sample {
	prev := &st.Samples[sample.TIndex]
	for prev.Next != sample {
		prev = prev.Next
	}
	return prev
}

// Remove deletes sample from the store: unlinking and freeing a
// sub-sample, or marking a root SKIP. No-op if sample is nil.
func (st *Store) Remove(sample *Sample) {
	if sample == nil {
		return
	}
	if sample.IsRoot() {
		st.RemoveRoot(sample)
		return
	}
	prev := st.Prev(sample)
	prev.Next = sample.Next
	st.RemoveList(sample)
}

// RemoveIfInvalid removes sample if it lacks VALID.
func (st *Store) RemoveIfInvalid(sample *Sample) {
	if !sample.Status.Has(statuslattice.Valid) {
		st.Remove(sample)
	}
}

// RemoveIfOutdated removes sample if it lacks CURRENT.
func (st *Store) RemoveIfOutdated(sample *Sample) {
	if !sample.Status.Has(statuslattice.Current) {
		st.Remove(sample)
	}
}

// ClearRef detaches a non-root sample from its predecessor without
// freeing it — used by ClearFrom's `first` callback, which must sever the
// chain at the boundary sample before its successors are each visited and
// freed independently.
func (st *Store) ClearRef(sample *Sample) {
	if !sample.IsRoot() {
		prev := st.Prev(sample)
		prev.Next = nil
	}
}

// FreeAll releases every sample's resources and resets the store to
// empty.
func (st *Store) FreeAll() {
	if st.NumSamplesArray > 0 {
		st.Iterate(&st.Samples[0], freeBlocks, freeBlocks, nil)
	}
	st.Samples = nil
	st.NumSamplesArray = 0
	st.NumSamplesTotal = 0
}

/* -------------------------------------------------------------------------
   Iteration
   ------------------------------------------------------------------------- */

// Iterate visits start once (via first, if non-nil), classifies it as root
// or list and invokes the matching callback, then walks start's remaining
// overflow chain (all list), then walks every subsequent root slot (root,
// then its chain as list). list must be non-nil. next is always captured
// before a callback runs, so callbacks may free the current node.
func (st *Store) Iterate(start *Sample, list, root, first func(*Sample)) {
	if list == nil {
		panic("samplestore: Iterate requires a non-nil list callback")
	}
	if start == nil {
		return
	}

	curr := start
	next := curr.Next
	index := curr.TIndex

	if first != nil {
		first(curr)
	}

	if curr.IsRoot() {
		if root != nil {
			root(curr)
		}
	} else {
		list(curr)
	}

	for curr = next; curr != nil; curr = next {
		next = curr.Next
		list(curr)
	}

	for i := index + 1; i < st.NumSamplesArray; i++ {
		curr = &st.Samples[i]
		next = curr.Next

		if root != nil {
			root(curr)
		}

		for curr = next; curr != nil; curr = next {
			next = curr.Next
			list(curr)
		}
	}
}

/* -------------------------------------------------------------------------
   Duplication
   ------------------------------------------------------------------------- */

// Clone deep-copies every live sample (roots and overflow chains),
// including block and meta-block byte buffers, into a fresh Store.
// Every Parent back-pointer in the copy points within the copy — this is
// the store-level half of OMNI_duplicate's copy_data path (spec §4.5);
// the façade additionally rebinds descriptor-level back-pointers.
func (st *Store) Clone() *Store {
	out := &Store{
		NumSamplesArray: st.NumSamplesArray,
		NumSamplesTotal: st.NumSamplesTotal,
		NumBlocks:       st.NumBlocks,
		ElementSize:     append([]uint32(nil), st.ElementSize...),
		MetaSize:        st.MetaSize,
	}
	if len(st.Samples) == 0 {
		return out
	}
	out.Samples = make([]Sample, len(st.Samples))
	for i := range st.Samples {
		cloneSampleInto(&out.Samples[i], &st.Samples[i], out)
	}
	return out
}

func cloneSampleInto(dst, src *Sample, owner *Store) {
	dst.Status = src.Status
	dst.TIndex = src.TIndex
	dst.TOffset = src.TOffset
	dst.Parent = owner
	dst.NumBlocksInvalid = src.NumBlocksInvalid
	dst.NumBlocksOutdated = src.NumBlocksOutdated
	dst.Meta = cloneMeta(src.Meta)
	dst.Blocks = cloneBlocks(src.Blocks, dst)

	if src.Next != nil {
		child := &Sample{}
		cloneSampleInto(child, src.Next, owner)
		dst.Next = child
	}
}

func cloneMeta(m MetaBlock) MetaBlock {
	out := MetaBlock{Status: m.Status}
	if m.Data != nil {
		out.Data = append([]byte(nil), m.Data...)
	}
	return out
}

func cloneBlocks(blocks []Block, parent *Sample) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = Block{Parent: parent, Status: b.Status, Count: b.Count}
		if b.Data != nil {
			out[i].Data = append([]byte(nil), b.Data...)
		}
	}
	return out
}
