// © 2025 omnicache authors. MIT License.
package unsafeutil

import "testing"

func TestBytesStringRoundtrip(t *testing.T) {
	b := []byte("sample-cache")
	s := BytesToString(b)
	if s != "sample-cache" {
		t.Fatalf("got %q", s)
	}
	back := StringToBytes(s)
	if string(back) != "sample-cache" {
		t.Fatalf("got %q", back)
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ x, align, want uintptr }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
	}
	for _, c := range cases {
		if got := AlignUp(c.x, c.align); got != c.want {
			t.Fatalf("AlignUp(%d,%d)=%d want %d", c.x, c.align, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, x := range []uintptr{1, 2, 4, 1024} {
		if !IsPowerOfTwo(x) {
			t.Fatalf("%d should be power of two", x)
		}
	}
	for _, x := range []uintptr{0, 3, 5, 6, 100} {
		if IsPowerOfTwo(x) {
			t.Fatalf("%d should not be power of two", x)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := []struct{ x, want uintptr }{
		{1, 1}, {2, 2}, {3, 4}, {5, 8}, {9, 16}, {16, 16}, {17, 32},
	}
	for _, c := range cases {
		if got := NextPowerOfTwo(c.x); got != c.want {
			t.Fatalf("NextPowerOfTwo(%d)=%d want %d", c.x, got, c.want)
		}
	}
}
