/*
Package bitint provides the power-of-2 helpers used to validate transform
block sizes. Both functions are constant time and allocation free.

Usage:

	// Reject a block size the FFT cannot use
	if !bitint.IsPowerOfTwo(blockSize) { ... }

	// Suggest the nearest usable size
	hint := bitint.NextPowerOfTwo(3000) // Returns 4096

NextPowerOfTwo works on size-1 so that exact powers of 2 map to
themselves: for 8, size-1 = 7 (0111), bits.Len = 3, 1<<3 = 8. Without
the subtraction bits.Len(8) = 4 and the result would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
