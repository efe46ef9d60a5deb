// Package omnicache is the public façade over the sample store and status
// lattice: create, duplicate, free a cache, write and read samples, mark
// regions stale, change the time range, and consolidate.
//
// © 2025 omnicache authors. MIT License.
package omnicache

import (
	"go.uber.org/zap"

	"github.com/Voskan/omnicache/internal/samplestore"
	"github.com/Voskan/omnicache/internal/statuslattice"
	"github.com/Voskan/omnicache/internal/timealgebra"
)

// blockDescriptor is the resolved, callback-bearing form of a
// BlockTemplate once attached to a cache.
type blockDescriptor[U any] struct {
	parent *Cache[U]

	name        string
	dataType    DataType
	elementSize uint32
	flags       BlockFlags

	count  CountFunc[U]
	read   ReadFunc[U]
	write  WriteFunc[U]
	interp InterpFunc[U]
}

// Cache is the root entity: a time-indexed sample table for host-supplied
// data of type U (the host's user_data handle, modeled as a generic type
// parameter instead of void*).
type Cache[U any] struct {
	id string

	timeType timealgebra.TimeType
	tinitial timealgebra.Value
	tfinal   timealgebra.Value
	tstep    timealgebra.Value

	flags  CacheFlags
	status statuslattice.Flags

	metaSize uint32
	metaGen  MetaGenFunc[U]

	descriptors []blockDescriptor[U]
	store       *samplestore.Store

	logger  *zap.Logger
	metrics metricsSink
}

// New constructs a cache from a template and its block descriptors. See
// spec §4.5: asserts become returned errors here because New may run
// against template data sourced from outside the host's own code (for
// instance, a caller rebuilding a template from a deserialized blob).
func New[U any](tmpl CacheTemplate[U], blocks []BlockTemplate[U], opts ...Option[U]) (*Cache[U], error) {
	if len(tmpl.ID) > MaxName {
		return nil, ErrNameTooLong
	}
	if !timealgebra.GreaterThanZero(tmpl.TimeStep) {
		return nil, ErrInvalidTimeStep
	}
	if tmpl.TimeInitial.IsFloat != tmpl.TimeType.IsFloat() ||
		tmpl.TimeFinal.IsFloat != tmpl.TimeType.IsFloat() ||
		tmpl.TimeStep.IsFloat != tmpl.TimeType.IsFloat() {
		return nil, ErrMismatchedTimeTag
	}
	if timealgebra.Greater(tmpl.TimeInitial, tmpl.TimeFinal) {
		return nil, ErrInvalidTimeRange
	}

	cfg := defaultConfig[U]()
	applyOptions(cfg, opts)

	c := &Cache[U]{
		id:       tmpl.ID,
		timeType: tmpl.TimeType,
		tinitial: tmpl.TimeInitial,
		tfinal:   tmpl.TimeFinal,
		tstep:    tmpl.TimeStep,
		flags:    tmpl.Flags,
		metaSize: tmpl.MetaSize,
		metaGen:  tmpl.MetaGen,
		logger:   cfg.logger,
		metrics:  newMetricsSink(cfg.registry),
	}
	c.descriptors, c.store = buildDescriptors(c, blocks, tmpl.MetaSize)
	statuslattice.CacheSet(&c.status, statuslattice.Current)
	c.refreshGauges()

	return c, nil
}

func buildDescriptors[U any](owner *Cache[U], blocks []BlockTemplate[U], metaSize uint32) ([]blockDescriptor[U], *samplestore.Store) {
	descriptors := make([]blockDescriptor[U], len(blocks))
	elementSizes := make([]uint32, len(blocks))

	for i, b := range blocks {
		size := b.elementSize()
		descriptors[i] = blockDescriptor[U]{
			parent:      owner,
			name:        b.Name,
			dataType:    b.DataType,
			elementSize: size,
			flags:       b.Flags,
			count:       b.Count,
			read:        b.Read,
			write:       b.Write,
			interp:      b.Interp,
		}
		elementSizes[i] = size
	}

	return descriptors, samplestore.New(elementSizes, metaSize)
}

// Duplicate deep-copies source's descriptors, rebinding their parent to
// the new cache. If copyData, the sample array, every block and overflow
// node are deep-copied too and the duplicate's status matches source's;
// otherwise the duplicate starts empty, flagged CURRENT but not COMPLETE.
func Duplicate[U any](source *Cache[U], copyData bool) *Cache[U] {
	dup := &Cache[U]{
		id:       source.id,
		timeType: source.timeType,
		tinitial: source.tinitial,
		tfinal:   source.tfinal,
		tstep:    source.tstep,
		flags:    source.flags,
		metaSize: source.metaSize,
		metaGen:  source.metaGen,
		logger:   source.logger,
		metrics:  source.metrics,
	}

	dup.descriptors = make([]blockDescriptor[U], len(source.descriptors))
	copy(dup.descriptors, source.descriptors)
	for i := range dup.descriptors {
		dup.descriptors[i].parent = dup
	}

	if copyData {
		dup.store = source.store.Clone()
		dup.status = source.status
	} else {
		elementSizes := make([]uint32, len(dup.descriptors))
		for i, d := range dup.descriptors {
			elementSizes[i] = d.elementSize
		}
		dup.store = samplestore.New(elementSizes, source.metaSize)
		statuslattice.CacheSet(&dup.status, statuslattice.Current)
	}

	dup.refreshGauges()
	return dup
}

// Free tears down every sample (roots and chains) and drops the
// descriptor vector.
func (c *Cache[U]) Free() {
	c.store.FreeAll()
	c.descriptors = nil
	c.refreshGauges()
}

// BlockAdd appends one descriptor. Existing samples have block vectors
// sized for the old descriptor count, so every sample is freed first.
func (c *Cache[U]) BlockAdd(tmpl BlockTemplate[U]) {
	c.store.FreeAll()
	statuslattice.CacheSet(&c.status, statuslattice.Current)

	size := tmpl.elementSize()
	c.descriptors = append(c.descriptors, blockDescriptor[U]{
		parent:      c,
		name:        tmpl.Name,
		dataType:    tmpl.DataType,
		elementSize: size,
		flags:       tmpl.Flags,
		count:       tmpl.Count,
		read:        tmpl.Read,
		write:       tmpl.Write,
		interp:      tmpl.Interp,
	})
	c.store.NumBlocks++
	c.store.ElementSize = append(c.store.ElementSize, size)

	c.logger.Info("block_add", zap.String("id", c.id), zap.String("block", tmpl.Name))
	c.refreshGauges()
}

// ID returns the cache's identifier.
func (c *Cache[U]) ID() string { return c.id }

// IsValid reports whether the cache-level VALID bit is set.
func (c *Cache[U]) IsValid() bool { return c.status.Has(statuslattice.Valid) }

// IsCurrent reports whether the cache-level CURRENT bit is set.
func (c *Cache[U]) IsCurrent() bool { return c.status.Has(statuslattice.Current) }

// CacheStatus returns the cache's current status snapshot.
func (c *Cache[U]) CacheStatus() Status { return statusFromFlags(c.status) }

// NumSamplesTotal, NumSamplesArray and NumSamplesAlloc expose the sample
// store's bookkeeping counters (spec invariant 3, 4) for diagnostics.
func (c *Cache[U]) NumSamplesTotal() uint32 { return c.store.NumSamplesTotal }
func (c *Cache[U]) NumSamplesArray() uint32 { return c.store.NumSamplesArray }
func (c *Cache[U]) NumSamplesAlloc() uint32 { return c.store.NumSamplesAlloc() }

func (c *Cache[U]) genSampleTime(t timealgebra.Value) timealgebra.SampleTime {
	return timealgebra.Generate(c.timeType, c.tinitial, c.tfinal, c.tstep, t)
}

// absTime reconstructs a sample's absolute cache time from its grid index
// and offset: tinitial + index*tstep + offset.
func (c *Cache[U]) absTime(s *samplestore.Sample) timealgebra.Value {
	isFloat := c.timeType.IsFloat()
	base := timealgebra.Add(c.tinitial, timealgebra.Mul(timealgebra.FromIndex(isFloat, s.TIndex), c.tstep))
	return timealgebra.Add(base, s.TOffset)
}

func (c *Cache[U]) refreshGauges() {
	c.metrics.setSamplesTotal(c.id, c.store.NumSamplesTotal)
	c.metrics.setSamplesArray(c.id, c.store.NumSamplesArray)
	c.metrics.setSamplesAlloc(c.id, c.store.NumSamplesAlloc())
}

func (c *Cache[U]) storeStart() *samplestore.Sample {
	if c.store.NumSamplesArray == 0 {
		return nil
	}
	return &c.store.Samples[0]
}

// sameBacking reports whether a and b share the same underlying array —
// used to assert a write callback did not swap Data.Data for a different
// slice (spec §5: "must not swap data").
func sameBacking(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}

/* -------------------------------------------------------------------------
   Write / Read
   ------------------------------------------------------------------------- */

// SampleWrite materializes (or reuses) the sample at time t and invokes
// every block descriptor's count/write callback, then meta_gen if set.
func (c *Cache[U]) SampleWrite(t timealgebra.Value, user U) WriteResult {
	stime := c.genSampleTime(t)
	sample, _, _ := c.store.Get(stime, true)
	if sample == nil {
		c.metrics.incWrite(c.id, WriteInvalid)
		return WriteInvalid
	}

	for i := range c.descriptors {
		d := &c.descriptors[i]
		block := &sample.Blocks[i]

		var count uint32
		if d.count != nil {
			count = d.count(user)
		}

		if block.Data != nil && block.Count != count {
			block.Data = nil
		}
		if block.Data == nil && count > 0 {
			block.Data = sample.Arena().Alloc(int(d.elementSize) * int(count))
		}
		block.Count = count

		view := Data{Type: d.dataType, Size: d.elementSize, Count: count, Data: block.Data}
		ok := true
		if d.write != nil {
			ok = d.write(&view, user)
		}
		if !sameBacking(block.Data, view.Data) {
			panic("omnicache: write callback must not replace Data.Data")
		}

		if !ok {
			lostValid, lostCurrent := statuslattice.BlockUnset(&block.Status, statuslattice.Valid)
			if lostValid {
				sample.NumBlocksInvalid++
			}
			if lostCurrent {
				sample.NumBlocksOutdated++
			}
			statuslattice.SampleUnset(&sample.Status, statuslattice.Valid)
			c.metrics.incWrite(c.id, WriteFailed)
			return WriteFailed
		}

		gainedValid, gainedCurrent := statuslattice.BlockSet(&block.Status, statuslattice.Current)
		if gainedValid {
			sample.NumBlocksInvalid--
		}
		if gainedCurrent {
			sample.NumBlocksOutdated--
		}
	}

	if c.metaGen != nil {
		if sample.Meta.Data == nil && c.metaSize > 0 {
			sample.Meta.Data = sample.Arena().Alloc(int(c.metaSize))
		}
		if c.metaGen(user, sample.Meta.Data) {
			statuslattice.MetaSet(&sample.Meta.Status, statuslattice.Current)
		} else {
			statuslattice.MetaUnset(&sample.Meta.Status, statuslattice.Valid)
			statuslattice.SampleUnset(&sample.Status, statuslattice.Valid)
			c.metrics.incWrite(c.id, WriteFailed)
			return WriteFailed
		}
	}

	statuslattice.SampleSet(&sample.Status, statuslattice.Current)
	c.metrics.incWrite(c.id, WriteSuccess)
	c.refreshGauges()
	return WriteSuccess
}

// SampleRead resolves the sample at time t (without creating it) and
// invokes every block descriptor's read callback. OUTDATED is an overlay
// bit independent of EXACT/INTERP — see ReadResult.
func (c *Cache[U]) SampleRead(t timealgebra.Value, user U) ReadResult {
	if !c.status.Has(statuslattice.Valid) {
		c.metrics.incRead(c.id, ReadInvalid)
		return ReadInvalid
	}

	result := ReadExact
	if !c.status.Has(statuslattice.Current) {
		result |= ReadOutdated
	}

	stime := c.genSampleTime(t)
	sample, prev, next := c.store.Get(stime, false)

	if sample == nil {
		if !c.flags.Has(CacheInterpolate) {
			c.metrics.incRead(c.id, ReadInvalid)
			return ReadInvalid
		}
		interpResult, ok := c.interpolate(t, prev, next, user)
		if !ok {
			c.metrics.incRead(c.id, ReadInvalid)
			return ReadInvalid
		}
		result = (result &^ ReadExact) | ReadInterp | interpResult
		c.metrics.incRead(c.id, result)
		return result
	}

	if !sample.Status.Has(statuslattice.Valid) {
		c.metrics.incRead(c.id, ReadInvalid)
		return ReadInvalid
	}
	if !sample.Status.Has(statuslattice.Current) {
		result |= ReadOutdated
	}

	for i := range c.descriptors {
		d := &c.descriptors[i]
		block := &sample.Blocks[i]

		if !block.Status.Has(statuslattice.Valid) {
			c.metrics.incRead(c.id, ReadInvalid)
			return ReadInvalid
		}

		view := Data{Type: d.dataType, Size: d.elementSize, Count: block.Count, Data: block.Data}
		if d.read != nil && !d.read(&view, user) {
			c.metrics.incRead(c.id, ReadInvalid)
			return ReadInvalid
		}

		if !block.Status.Has(statuslattice.Current) {
			result |= ReadOutdated
		}
	}

	c.metrics.incRead(c.id, result)
	return result
}

// interpolate services an off-grid SampleRead when CACHE_INTERPOLATE is
// set and no sample exists exactly at t: each CONTINUOUS block descriptor
// is given its bracketing prev/next data and fills Target via its interp
// callback. Non-continuous blocks have no off-grid value and are skipped.
// Returns ok == false (caller reports INVALID) if there is no usable
// bracketing pair or any continuous block's interp callback fails.
func (c *Cache[U]) interpolate(t timealgebra.Value, prev, next *samplestore.Sample, user U) (overlay ReadResult, ok bool) {
	if prev == nil || next == nil {
		return 0, false
	}
	if !prev.Status.Has(statuslattice.Valid) || !next.Status.Has(statuslattice.Valid) {
		return 0, false
	}
	if !prev.Status.Has(statuslattice.Current) || !next.Status.Has(statuslattice.Current) {
		overlay |= ReadOutdated
	}

	tprev := c.absTime(prev)
	tnext := c.absTime(next)

	for i := range c.descriptors {
		d := &c.descriptors[i]
		if d.flags&BlockContinuous == 0 || d.interp == nil {
			continue
		}

		prevBlock := &prev.Blocks[i]
		nextBlock := &next.Blocks[i]
		if !prevBlock.Status.Has(statuslattice.Valid) || !nextBlock.Status.Has(statuslattice.Valid) {
			return 0, false
		}

		target := Data{Type: d.dataType, Size: d.elementSize, Count: prevBlock.Count}
		if prevBlock.Count > 0 {
			target.Data = make([]byte, int(d.elementSize)*int(prevBlock.Count))
		}
		prevView := Data{Type: d.dataType, Size: d.elementSize, Count: prevBlock.Count, Data: prevBlock.Data}
		nextView := Data{Type: d.dataType, Size: d.elementSize, Count: nextBlock.Count, Data: nextBlock.Data}

		interpData := InterpData{
			Target:  &target,
			Prev:    &prevView,
			Next:    &nextView,
			TTarget: t,
			TPrev:   tprev,
			TNext:   tnext,
		}
		if !d.interp(&interpData) {
			return 0, false
		}

		if !prevBlock.Status.Has(statuslattice.Current) || !nextBlock.Status.Has(statuslattice.Current) {
			overlay |= ReadOutdated
		}
	}

	return overlay, true
}

/* -------------------------------------------------------------------------
   Range
   ------------------------------------------------------------------------- */

// SetRange changes the cache's time bounds and step. Any actual change
// frees every sample (simpler than clipping the sparse store).
func (c *Cache[U]) SetRange(tinitial, tfinal, tstep timealgebra.Value) error {
	if !timealgebra.GreaterThanZero(tstep) {
		return ErrInvalidTimeStep
	}
	if tinitial.IsFloat != c.timeType.IsFloat() || tfinal.IsFloat != c.timeType.IsFloat() || tstep.IsFloat != c.timeType.IsFloat() {
		return ErrMismatchedTimeTag
	}
	if timealgebra.Greater(tinitial, tfinal) {
		return ErrInvalidTimeRange
	}

	changed := !timealgebra.Eq(tinitial, c.tinitial) || !timealgebra.Eq(tfinal, c.tfinal) || !timealgebra.Eq(tstep, c.tstep)

	c.tinitial = tinitial
	c.tfinal = tfinal
	c.tstep = tstep

	if changed {
		c.store.FreeAll()
		statuslattice.CacheSet(&c.status, statuslattice.Current)
		c.logger.Info("set_range", zap.String("id", c.id))
	}
	c.refreshGauges()
	return nil
}

// GetRange reports the cache's current time bounds and step, each
// assigned from its own namesake field (the original source assigns
// time_initial from the step field; this is fixed per spec §9).
func (c *Cache[U]) GetRange() (tinitial, tfinal, tstep timealgebra.Value) {
	return c.tinitial, c.tfinal, c.tstep
}

/* -------------------------------------------------------------------------
   Marking / clearing
   ------------------------------------------------------------------------- */

// MarkOutdated clears CURRENT on the cache only; propagation to samples
// is deferred until Consolidate.
func (c *Cache[U]) MarkOutdated() {
	statuslattice.CacheUnset(&c.status, statuslattice.Current)
}

// MarkInvalid clears VALID on the cache only.
func (c *Cache[U]) MarkInvalid() {
	statuslattice.CacheUnset(&c.status, statuslattice.Valid)
}

// SampleMarkOutdated clears CURRENT on the sample at t, if any.
func (c *Cache[U]) SampleMarkOutdated(t timealgebra.Value) {
	sample, _, _ := c.store.Get(c.genSampleTime(t), false)
	if sample != nil {
		statuslattice.SampleUnset(&sample.Status, statuslattice.Current)
	}
}

// SampleMarkInvalid clears VALID on the sample at t, if any.
func (c *Cache[U]) SampleMarkInvalid(t timealgebra.Value) {
	sample, _, _ := c.store.Get(c.genSampleTime(t), false)
	if sample != nil {
		statuslattice.SampleUnset(&sample.Status, statuslattice.Valid)
	}
}

// SampleClear removes one sample.
func (c *Cache[U]) SampleClear(t timealgebra.Value) {
	sample, _, _ := c.store.Get(c.genSampleTime(t), false)
	c.store.Remove(sample)
	c.refreshGauges()
}

// fromOrNext resolves the sample the `_from` family operates on: the
// sample exactly at t, or (if none) the next sample at a later time.
func (c *Cache[U]) fromOrNext(t timealgebra.Value) *samplestore.Sample {
	sample, _, next := c.store.Get(c.genSampleTime(t), false)
	if sample != nil {
		return sample
	}
	return next
}

// SampleMarkOutdatedFrom clears CURRENT on every sample at time >= t.
func (c *Cache[U]) SampleMarkOutdatedFrom(t timealgebra.Value) {
	start := c.fromOrNext(t)
	if start == nil {
		return
	}
	mark := func(s *samplestore.Sample) { statuslattice.SampleUnset(&s.Status, statuslattice.Current) }
	c.store.Iterate(start, mark, mark, nil)
}

// SampleMarkInvalidFrom clears VALID on every sample at time >= t.
func (c *Cache[U]) SampleMarkInvalidFrom(t timealgebra.Value) {
	start := c.fromOrNext(t)
	if start == nil {
		return
	}
	mark := func(s *samplestore.Sample) { statuslattice.SampleUnset(&s.Status, statuslattice.Valid) }
	c.store.Iterate(start, mark, mark, nil)
}

// SampleClearFrom removes every sample at time >= t.
func (c *Cache[U]) SampleClearFrom(t timealgebra.Value) {
	start := c.fromOrNext(t)
	if start == nil {
		return
	}
	c.store.Iterate(start,
		func(s *samplestore.Sample) { c.store.RemoveList(s) },
		func(s *samplestore.Sample) { c.store.RemoveRoot(s) },
		func(s *samplestore.Sample) { c.store.ClearRef(s) },
	)
	c.refreshGauges()
}

/* -------------------------------------------------------------------------
   Consolidate
   ------------------------------------------------------------------------- */

// Consolidate executes the requested policy (combinable flags). FREE_*
// sweeps remove any sample lacking VALID/CURRENT, covering both root and
// sub-samples (see DESIGN.md for why this departs from a root_fn==NULL
// sweep that silently skips root samples).
func (c *Cache[U]) Consolidate(flags ConsolidationFlags) {
	before := c.store.NumSamplesTotal

	fastFree := (!c.status.Has(statuslattice.Valid) && flags&(FreeInvalid|FreeOutdated) != 0) ||
		(!c.status.Has(statuslattice.Current) && flags&FreeOutdated != 0)

	if fastFree {
		c.store.FreeAll()
		statuslattice.CacheSet(&c.status, statuslattice.Current)
		c.logger.Info("consolidate_fast_free", zap.String("id", c.id), zap.Uint32("removed", before))
		c.metrics.incConsolidation(c.id, flags)
		c.metrics.addSamplesRemoved(c.id, before)
		c.refreshGauges()
		return
	}

	if start := c.storeStart(); start != nil {
		switch {
		case flags.Has(FreeOutdated):
			c.store.Iterate(start, c.store.RemoveIfOutdated, c.store.RemoveIfOutdated, nil)
		case flags.Has(FreeInvalid):
			c.store.Iterate(start, c.store.RemoveIfInvalid, c.store.RemoveIfInvalid, nil)
		}
	}

	if flags.Has(Consolidate) {
		if start := c.storeStart(); start != nil {
			switch {
			case !c.status.Has(statuslattice.Valid):
				mark := func(s *samplestore.Sample) { statuslattice.SampleUnset(&s.Status, statuslattice.Valid) }
				c.store.Iterate(start, mark, mark, nil)
			case !c.status.Has(statuslattice.Current):
				mark := func(s *samplestore.Sample) { statuslattice.SampleUnset(&s.Status, statuslattice.Current) }
				c.store.Iterate(start, mark, mark, nil)
			}
		}
		statuslattice.CacheSet(&c.status, statuslattice.Current)
	}

	removed := before - c.store.NumSamplesTotal
	c.metrics.incConsolidation(c.id, flags)
	c.metrics.addSamplesRemoved(c.id, removed)
	c.refreshGauges()
}
