// Package unsafeutil centralises the handful of unavoidable `unsafe` tricks
// used elsewhere in OmniCache, so the rest of the module stays ordinary,
// auditable Go. Every helper documents its pre/post-conditions.
//
// ⚠️  These helpers deliberately trade memory-safety guarantees for
// zero-allocation conversions. Use only inside this repository; they are
// not part of the public API and may change without notice.
//
// © 2025 omnicache authors. MIT License.
package unsafeutil

import "unsafe"

// BytesToString converts a byte slice to a string without copying. The
// caller must guarantee b is never mutated for the lifetime of the
// returned string. Used by the serializer to compare fixed MAX_NAME id
// fields read straight out of a wire buffer without allocating.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes reinterprets a string's backing array as a byte slice
// without copying. The result must be treated as read-only: writing to it
// mutates immutable string storage.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AlignUp rounds x up to the nearest multiple of align, which must be a
// power of two. Used by blockarena to keep successive allocations within
// one chunk aligned, since a block's raw bytes may later be reinterpreted
// as wider types (FLOAT, MAT3, MAT4) by host code.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether x has exactly one bit set.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= x. x must be > 0.
func NextPowerOfTwo(x uintptr) uintptr {
	if x == 0 {
		return 1
	}
	if IsPowerOfTwo(x) {
		return x
	}
	var p uintptr = 1
	for p < x {
		p <<= 1
	}
	return p
}
