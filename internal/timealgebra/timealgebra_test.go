// © 2025 omnicache authors. MIT License.
package timealgebra

import "testing"

func TestGenerateFloat(t *testing.T) {
	ti, tf, ts := FromFloat(0), FromFloat(10), FromFloat(1)

	st := Generate(TimeFloat, ti, tf, ts, FromFloat(2.5))
	if !st.Valid {
		t.Fatal("expected valid sample time")
	}
	if st.Index != 2 {
		t.Fatalf("index = %d, want 2", st.Index)
	}
	if !floatEq(st.Offset.F, 0.5) {
		t.Fatalf("offset = %v, want 0.5", st.Offset.F)
	}
}

func TestGenerateOutOfRange(t *testing.T) {
	ti, tf, ts := FromFloat(0), FromFloat(10), FromFloat(1)

	st := Generate(TimeFloat, ti, tf, ts, FromFloat(-1))
	if st.Valid {
		t.Fatal("expected invalid sample time below range")
	}

	st = Generate(TimeFloat, ti, tf, ts, FromFloat(11))
	if st.Valid {
		t.Fatal("expected invalid sample time above range")
	}
}

func TestGenerateOnGrid(t *testing.T) {
	ti, tf, ts := FromFloat(0), FromFloat(10), FromFloat(1)

	st := Generate(TimeFloat, ti, tf, ts, FromFloat(5))
	if !st.Valid || st.Index != 5 || !IsZero(st.Offset) {
		t.Fatalf("unexpected sample time: %+v", st)
	}
}

func TestMismatchedTagsPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on tag mismatch")
		}
	}()
	Add(FromFloat(1), FromUint(1))
}

func TestGenerateTagMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on tag mismatch")
		}
	}()
	Generate(TimeInt, FromUint(0), FromUint(10), FromUint(1), FromFloat(2))
}

func TestIntArithmetic(t *testing.T) {
	a, b := FromUint(7), FromUint(3)
	if Div(a, b).U != 2 {
		t.Fatal("7/3 should be 2")
	}
	if Mod(a, b).U != 1 {
		t.Fatal("7%3 should be 1")
	}
	if !Less(b, a) || Greater(b, a) {
		t.Fatal("ordering mismatch")
	}
}

func TestSubSaturatesAtZero(t *testing.T) {
	got := Sub(FromUint(2), FromUint(5))
	if got.U != 0 {
		t.Fatalf("expected saturated 0, got %d", got.U)
	}
}

func TestMulAndFromIndex(t *testing.T) {
	idx := FromIndex(false, 4)
	if idx.U != 4 || idx.IsFloat {
		t.Fatalf("FromIndex(false, 4) = %+v", idx)
	}

	got := Mul(idx, FromUint(3))
	if got.U != 12 {
		t.Fatalf("4*3 should be 12, got %d", got.U)
	}

	fidx := FromIndex(true, 2)
	fgot := Mul(fidx, FromFloat(1.5))
	if !floatEq(fgot.F, 3.0) {
		t.Fatalf("2*1.5 should be 3.0, got %v", fgot.F)
	}
}

func TestGreaterThanZero(t *testing.T) {
	if GreaterThanZero(FromFloat(0)) {
		t.Fatal("0 should not be > 0")
	}
	if !GreaterThanZero(FromFloat(0.5)) {
		t.Fatal("0.5 should be > 0")
	}
	if GreaterThanZero(FromUint(0)) {
		t.Fatal("uint 0 should not be > 0")
	}
}
