// serializer.go flattens a cache's header and block descriptors to a
// contiguous byte blob, and rehydrates one from bytes plus an optional
// template for callback re-binding. Sample payload is reserved but not
// yet encoded (spec §6: "TODO in the source").
//
// The layout is bit-exact, little-endian, and uses the host's native
// word sizes for tagged time values (8-byte float64/uint64 payloads,
// since timealgebra.Value carries float64/uint64 rather than the
// original's 32-bit float_or_uint) — not portable across machines or
// OmniCache implementations, matching spec §6's own disclaimer.
//
// © 2025 omnicache authors. MIT License.
package omnicache

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/Voskan/omnicache/internal/timealgebra"
	"github.com/Voskan/omnicache/internal/unsafeutil"
)

// Justification for encoding/binary (stdlib) here, recorded in full in
// DESIGN.md: the layout is a bit-exact native-word-size dump defined by
// this spec itself, not a general-purpose interchange format — no
// third-party codec in the example corpus (protobuf, flatbuffers, cbor)
// targets "whatever this struct's memory layout happens to be", and
// reaching for one would mean designing a schema this format does not
// have, not reusing one that fits.

var order = binary.LittleEndian

func putName(buf []byte, s string) {
	clear(buf)
	copy(buf, unsafeutil.StringToBytes(s))
}

func getName(buf []byte) string {
	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		end = len(buf)
	}
	return unsafeutil.BytesToString(buf[:end])
}

func putValue(w io.Writer, v timealgebra.Value) {
	tag := byte(0)
	if v.IsFloat {
		tag = 1
	}
	_ = binary.Write(w, order, tag)
	if v.IsFloat {
		_ = binary.Write(w, order, v.F)
	} else {
		_ = binary.Write(w, order, v.U)
	}
}

func getValue(r io.Reader) (timealgebra.Value, error) {
	var tag byte
	if err := binary.Read(r, order, &tag); err != nil {
		return timealgebra.Value{}, err
	}
	if tag == 1 {
		var f float64
		if err := binary.Read(r, order, &f); err != nil {
			return timealgebra.Value{}, err
		}
		return timealgebra.FromFloat(f), nil
	}
	var u uint64
	if err := binary.Read(r, order, &u); err != nil {
		return timealgebra.Value{}, err
	}
	return timealgebra.FromUint(u), nil
}

// Serialize flattens c's header and descriptor list (and, if
// includeData, the sample payload — currently always empty, pending a
// defined payload encoding) into a fresh byte slice.
func Serialize[U any](c *Cache[U], includeData bool) []byte {
	var buf bytes.Buffer

	idField := make([]byte, MaxName)
	putName(idField, c.id)
	buf.Write(idField)

	ttype := byte(0)
	if c.timeType.IsFloat() {
		ttype = 1
	}
	_ = binary.Write(&buf, order, ttype)

	putValue(&buf, c.tinitial)
	putValue(&buf, c.tfinal)
	putValue(&buf, c.tstep)

	_ = binary.Write(&buf, order, uint32(c.flags))
	_ = binary.Write(&buf, order, uint32(len(c.descriptors)))

	numSamplesArray := uint32(0)
	numSamplesTotal := uint32(0)
	if includeData {
		numSamplesArray = c.store.NumSamplesArray
		numSamplesTotal = c.store.NumSamplesTotal
	}
	_ = binary.Write(&buf, order, numSamplesArray)
	_ = binary.Write(&buf, order, numSamplesTotal)
	_ = binary.Write(&buf, order, c.metaSize)

	for _, d := range c.descriptors {
		nameField := make([]byte, MaxName)
		putName(nameField, d.name)
		buf.Write(nameField)

		_ = binary.Write(&buf, order, byte(d.dataType))
		_ = binary.Write(&buf, order, d.elementSize)
		_ = binary.Write(&buf, order, uint32(d.flags))
	}

	// Sample payload region is reserved; no encoding is defined yet (spec §6).

	return buf.Bytes()
}

// Deserialize rehydrates a cache header and descriptor list from bytes.
// If tmpl is non-nil, its ID must match the blob's identifier or nil is
// returned (spec §7 deserialization-mismatch rule); matching descriptors
// (by name and slot) have their callbacks copied from tmpl so the
// rehydrated cache is immediately usable. The cache starts empty and
// CURRENT regardless of what the blob's sample counters recorded, since
// sample payload is never carried across a roundtrip.
func Deserialize[U any](data []byte, tmpl *CacheTemplate[U], blockTmpl []BlockTemplate[U], opts ...Option[U]) (*Cache[U], error) {
	r := bytes.NewReader(data)

	idField := make([]byte, MaxName)
	if _, err := io.ReadFull(r, idField); err != nil {
		return nil, err
	}
	id := getName(idField)

	if tmpl != nil && tmpl.ID != id {
		return nil, nil
	}

	var ttypeByte byte
	if err := binary.Read(r, order, &ttypeByte); err != nil {
		return nil, err
	}
	ttype := timealgebra.TimeInt
	if ttypeByte == 1 {
		ttype = timealgebra.TimeFloat
	}

	tinitial, err := getValue(r)
	if err != nil {
		return nil, err
	}
	tfinal, err := getValue(r)
	if err != nil {
		return nil, err
	}
	tstep, err := getValue(r)
	if err != nil {
		return nil, err
	}

	var flags, numBlocks, numSamplesArray, numSamplesTotal, metaSize uint32
	for _, f := range []*uint32{&flags, &numBlocks, &numSamplesArray, &numSamplesTotal, &metaSize} {
		if err := binary.Read(r, order, f); err != nil {
			return nil, err
		}
	}
	_ = numSamplesArray
	_ = numSamplesTotal

	blocks := make([]BlockTemplate[U], numBlocks)
	for i := range blocks {
		nameField := make([]byte, MaxName)
		if _, err := io.ReadFull(r, nameField); err != nil {
			return nil, err
		}
		name := getName(nameField)

		var dtype byte
		var dsize uint32
		var bflags uint32
		if err := binary.Read(r, order, &dtype); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &dsize); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &bflags); err != nil {
			return nil, err
		}

		blocks[i] = BlockTemplate[U]{
			Name:     name,
			DataType: DataType(dtype),
			DataSize: dsize,
			Flags:    BlockFlags(bflags),
		}

		if i < len(blockTmpl) && blockTmpl[i].Name == name {
			candidate := blockTmpl[i]
			blocks[i].Count = candidate.Count
			blocks[i].Read = candidate.Read
			blocks[i].Write = candidate.Write
			blocks[i].Interp = candidate.Interp
		}
	}

	out := CacheTemplate[U]{
		ID:          id,
		TimeType:    ttype,
		TimeInitial: tinitial,
		TimeFinal:   tfinal,
		TimeStep:    tstep,
		Flags:       CacheFlags(flags),
		MetaSize:    metaSize,
	}
	if tmpl != nil {
		out.MetaGen = tmpl.MetaGen
	}

	return New(out, blocks, opts...)
}
