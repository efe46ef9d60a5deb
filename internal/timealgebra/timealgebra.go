// Package timealgebra implements the tagged scalar ("float_or_uint" in the
// original source) OmniCache uses for every time value, plus the sample
// coordinate computation derived from it.
//
// A Value carries a boolean discriminator alongside either a float64 or a
// uint64 payload. Every arithmetic helper asserts (panics) that both
// operands share the discriminator — OmniCache never silently coerces a
// float time into an integer cache or vice versa; that is a caller bug, not
// a runtime condition to recover from.
//
// © 2025 omnicache authors. MIT License.
package timealgebra

import "fmt"

// TimeType mirrors OmniTimeType: the cache-level choice between discrete
// integer time and continuous floating point time.
type TimeType uint8

const (
	TimeInt TimeType = iota
	TimeFloat
)

// IsFloat reports whether the time type is OMNI_TIME_FLOAT.
func (t TimeType) IsFloat() bool { return t == TimeFloat }

// Value is the tagged numeric used throughout OmniCache for time. Exactly
// one of F/U is meaningful, selected by IsFloat.
type Value struct {
	IsFloat bool
	F       float64
	U       uint64
}

// FromFloat builds a float-tagged Value.
func FromFloat(f float64) Value { return Value{IsFloat: true, F: f} }

// FromUint builds a uint-tagged Value.
func FromUint(u uint64) Value { return Value{IsFloat: false, U: u} }

func mustSameTag(a, b Value) {
	if a.IsFloat != b.IsFloat {
		panic(fmt.Sprintf("timealgebra: mismatched tags (isFloat=%v vs isFloat=%v)", a.IsFloat, b.IsFloat))
	}
}

// Add returns a+b. Panics if a and b carry different tags.
func Add(a, b Value) Value {
	mustSameTag(a, b)
	if a.IsFloat {
		return Value{IsFloat: true, F: a.F + b.F}
	}
	return Value{IsFloat: false, U: a.U + b.U}
}

// Sub returns a-b. Panics if a and b carry different tags. Unsigned
// subtraction saturates at zero rather than wrapping, since a negative
// time offset is never meaningful in this domain.
func Sub(a, b Value) Value {
	mustSameTag(a, b)
	if a.IsFloat {
		return Value{IsFloat: true, F: a.F - b.F}
	}
	if b.U > a.U {
		return Value{IsFloat: false, U: 0}
	}
	return Value{IsFloat: false, U: a.U - b.U}
}

// Mul returns a*b. Panics if a and b carry different tags. Used to
// reconstruct a root sample's absolute time from its grid index
// (tinitial + index*tstep) for interpolation.
func Mul(a, b Value) Value {
	mustSameTag(a, b)
	if a.IsFloat {
		return Value{IsFloat: true, F: a.F * b.F}
	}
	return Value{IsFloat: false, U: a.U * b.U}
}

// FromIndex builds a Value carrying index, tagged to match isFloat — used
// to lift a sample's grid index back into the cache's time domain.
func FromIndex(isFloat bool, index uint32) Value {
	if isFloat {
		return Value{IsFloat: true, F: float64(index)}
	}
	return Value{IsFloat: false, U: uint64(index)}
}

// Div returns a/b. Panics if a and b carry different tags, or if the
// divisor is zero.
func Div(a, b Value) Value {
	mustSameTag(a, b)
	if a.IsFloat {
		if b.F == 0 {
			panic("timealgebra: division by zero")
		}
		return Value{IsFloat: true, F: a.F / b.F}
	}
	if b.U == 0 {
		panic("timealgebra: division by zero")
	}
	return Value{IsFloat: false, U: a.U / b.U}
}

// Mod returns a mod b. Panics if a and b carry different tags, or if the
// divisor is zero.
func Mod(a, b Value) Value {
	mustSameTag(a, b)
	if a.IsFloat {
		if b.F == 0 {
			panic("timealgebra: modulo by zero")
		}
		r := a.F - b.F*float64(int64(a.F/b.F))
		return Value{IsFloat: true, F: r}
	}
	if b.U == 0 {
		panic("timealgebra: modulo by zero")
	}
	return Value{IsFloat: false, U: a.U % b.U}
}

// Eq reports exact equality (==) for integer tags, or epsilon-tolerant
// equality for float tags. Panics if a and b carry different tags.
func Eq(a, b Value) bool {
	mustSameTag(a, b)
	if a.IsFloat {
		return floatEq(a.F, b.F)
	}
	return a.U == b.U
}

// epsilon is the tolerance used for float time comparisons, matching the
// coarse tolerance sufficient for frame/second-scale sampling intervals.
const epsilon = 1e-6

func floatEq(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}

// IsZero reports whether v equals the zero value of its own tag, using the
// same epsilon tolerance as Eq for float values.
func IsZero(v Value) bool {
	if v.IsFloat {
		return floatEq(v.F, 0)
	}
	return v.U == 0
}

// Less reports a < b. Panics if a and b carry different tags.
func Less(a, b Value) bool {
	mustSameTag(a, b)
	if a.IsFloat {
		return a.F < b.F && !floatEq(a.F, b.F)
	}
	return a.U < b.U
}

// LessEqual reports a <= b. Panics if a and b carry different tags.
func LessEqual(a, b Value) bool {
	mustSameTag(a, b)
	return Less(a, b) || Eq(a, b)
}

// Greater reports a > b. Panics if a and b carry different tags.
func Greater(a, b Value) bool {
	mustSameTag(a, b)
	return Less(b, a)
}

// GreaterThanZero reports v > 0 for either tag, without requiring a second
// operand — used to validate template step sizes.
func GreaterThanZero(v Value) bool {
	if v.IsFloat {
		return v.F > 0 && !floatEq(v.F, 0)
	}
	return v.U > 0
}

// ToIndex converts a unitless Value computed by division into a slot
// index. Only meaningful for the result of Div(time-delta, step).
func ToIndex(v Value) uint32 {
	if v.IsFloat {
		return uint32(v.F)
	}
	return uint32(v.U)
}

// SampleTime is the resolved coordinate of a time value within a cache:
// which root slot it falls in (Index) and how far past that slot's base
// time it sits (Offset, zero for samples that live directly in the root
// array).
type SampleTime struct {
	Type   TimeType
	Valid  bool
	Index  uint32
	Offset Value
}

// Invalid returns the zero-value SampleTime marker callers must treat as
// "no such sample" (time outside [tinitial, tfinal]).
func Invalid() SampleTime { return SampleTime{} }

// Generate computes the SampleTime for t against a cache's [tinitial,
// tfinal] range and tstep. Panics if t's tag disagrees with ttype. Returns
// an invalid SampleTime (Valid == false) if t falls outside the range —
// callers treat that as "no such sample", not an error.
func Generate(ttype TimeType, tinitial, tfinal, tstep, t Value) SampleTime {
	if t.IsFloat != ttype.IsFloat() {
		panic("timealgebra: time value tag does not match cache time type")
	}

	if Less(t, tinitial) || Greater(t, tfinal) {
		return Invalid()
	}

	delta := Sub(t, tinitial)

	return SampleTime{
		Type:   ttype,
		Valid:  true,
		Index:  ToIndex(Div(delta, tstep)),
		Offset: Mod(delta, tstep),
	}
}
