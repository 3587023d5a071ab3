/*
Package bitint provides the small power-of-two helpers used when sizing
analysis windows and audio buffers. Everything here is allocation free and
safe to call from the audio callback.

	size := bitint.NextPowerOfTwo(1000) // 1024
	ok := bitint.IsPowerOfTwo(size)     // true
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes yield 1. Subtracting one before taking the bit length keeps exact
// powers of two unchanged (8 -> 8, not 16).
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	8 -> true   (1000 & 0111 == 0)
//	7 -> false
//	0 -> false
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns log2(n) for a power of two n, or -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
