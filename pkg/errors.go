// © 2025 omnicache authors. MIT License.
package omnicache

import "errors"

// DataType identifies the shape of one block's payload. Ordinals are
// stable (part of the serialized wire format) and match the original
// OmniDataType enum.
type DataType uint8

const (
	DataGeneric DataType = iota // black-box data not interpreted by OmniCache
	DataMeta
	DataFloat
	DataFloat3
	DataInt
	DataInt3
	DataMat3
	DataMat4
	DataRef  // reference to a constant library block
	DataTRef // transformed reference (index + mat4)

	NumDataTypes // sentinel, always last
)

func (d DataType) String() string {
	switch d {
	case DataGeneric:
		return "GENERIC"
	case DataMeta:
		return "META"
	case DataFloat:
		return "FLOAT"
	case DataFloat3:
		return "FLOAT3"
	case DataInt:
		return "INT"
	case DataInt3:
		return "INT3"
	case DataMat3:
		return "MAT3"
	case DataMat4:
		return "MAT4"
	case DataRef:
		return "REF"
	case DataTRef:
		return "TREF"
	default:
		return "UNKNOWN"
	}
}

// dataTypeSize is the type→byte-size table from spec §4.4. GENERIC's entry
// is 0 — its size comes from the block template instead.
var dataTypeSize = [NumDataTypes]uint32{
	DataGeneric: 0,
	DataMeta:    0,
	DataFloat:   4,
	DataFloat3:  12,
	DataInt:     4,
	DataInt3:    12,
	DataMat3:    36,
	DataMat4:    64,
	DataRef:     4,
	DataTRef:    68, // uint index + mat4
}

// ElementSize resolves a descriptor's byte size. For DataGeneric the
// caller-supplied size (from BlockTemplate.DataSize) must be used instead.
func (d DataType) ElementSize() uint32 {
	return dataTypeSize[d]
}

// BlockFlags are per-descriptor behavior flags.
type BlockFlags uint32

const (
	BlockContinuous BlockFlags = 1 << iota // interpolable
)

// CacheFlags are per-cache behavior flags.
type CacheFlags uint32

const (
	CacheFramed      CacheFlags = 1 << iota // time is in frames, not seconds
	CacheInterpolate                        // interpolation enabled on read
)

// Has reports whether bit is set in f.
func (f CacheFlags) Has(bit CacheFlags) bool { return f&bit == bit }

// ConsolidationFlags select a Consolidate sweep's policy; combinable.
type ConsolidationFlags uint32

const (
	FreeInvalid  ConsolidationFlags = 1 << iota // remove samples lacking VALID
	FreeOutdated                                // additionally remove samples lacking CURRENT
	Consolidate                                 // reconcile sample bits with cache bits
)

// Has reports whether bit is set in f.
func (f ConsolidationFlags) Has(bit ConsolidationFlags) bool { return f&bit == bit }

// WriteResult is the outcome of SampleWrite.
type WriteResult uint8

const (
	WriteInvalid WriteResult = iota // no such sample (time out of range)
	WriteFailed                     // a callback reported failure
	WriteSuccess
)

func (r WriteResult) String() string {
	switch r {
	case WriteInvalid:
		return "INVALID"
	case WriteFailed:
		return "FAILED"
	case WriteSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// ReadResult is the outcome of SampleRead. OUTDATED is a true overlay bit,
// independent of the EXACT/INTERP "kind" bit — see DESIGN.md for why this
// implementation departs from the original enum's literal ordinals
// (OMNI_READ_EXACT = 3 there collides bit-for-bit with OMNI_READ_OUTDATED
// = 1, so OR-ing OUTDATED onto an EXACT result is a silent no-op in the
// source; spec §8 scenario 4 requires the combination to be observably
// distinct, so the bits are reassigned here to not overlap).
type ReadResult uint8

const (
	ReadInvalid  ReadResult = 0
	ReadOutdated ReadResult = 1 << 0
	ReadInterp   ReadResult = 1 << 1
	ReadExact    ReadResult = 1 << 2
)

// Has reports whether bit is set in r.
func (r ReadResult) Has(bit ReadResult) bool { return r&bit == bit }

func (r ReadResult) String() string {
	if r == ReadInvalid {
		return "INVALID"
	}
	s := ""
	switch {
	case r.Has(ReadExact):
		s = "EXACT"
	case r.Has(ReadInterp):
		s = "INTERP"
	}
	if r.Has(ReadOutdated) {
		if s != "" {
			s += "|OUTDATED"
		} else {
			s = "OUTDATED"
		}
	}
	if s == "" {
		s = "INVALID"
	}
	return s
}

// Sentinel validation errors. New returns ErrNameTooLong,
// ErrInvalidTimeStep, ErrMismatchedTimeTag or ErrInvalidTimeRange when
// template data (possibly host- or deserialize-supplied) fails a
// well-formedness check that isn't a pure programmer-error assertion;
// SetRange returns the last three. No function returns
// ErrTemplateMismatch: Deserialize reports an identifier mismatch as a nil
// cache with a nil error.
var (
	ErrInvalidTimeStep   = errors.New("omnicache: time_step must be greater than zero")
	ErrInvalidTimeRange  = errors.New("omnicache: time_initial must be <= time_final")
	ErrMismatchedTimeTag = errors.New("omnicache: time value tag does not match cache time type")
	ErrNameTooLong       = errors.New("omnicache: identifier exceeds MAX_NAME")
	ErrTemplateMismatch  = errors.New("omnicache: deserialized blob identifier does not match template")
)
