// Package placement implements FlipHash, a minimal-disruption consistent
// hash that assigns string keys to an index range [0, n) such that growing
// n by one reassigns only a small fraction of existing keys, and every
// reassigned key lands on the new slot n.
//
// The algorithm is pure and deterministic: the same (key, n) pair always
// produces the same index, in this process or any other. It is not safe to
// call with n == 0 — callers must short-circuit on an empty backend pool
// before reaching placement.
package placement

import (
	"math/bits"

	"github.com/zeebo/xxh3"
)

// hash computes H(seed(a, b), key), the seeded 64-bit hash family FlipHash
// is built on. FlipHash needs a fast, seed-parameterizable 64-bit hash to
// compute many distinct (a, b) pairs per lookup; a simple hash*31+byte
// accumulator loses the flipping property and ruins uniformity, so this
// reaches for xxh3-64 instead.
func hash(a, b uint16, key string) uint64 {
	seed := uint64(a) | uint64(b)<<16
	return xxh3.HashSeed([]byte(key), seed)
}

// pow2 assigns key to a range of size 2^r.
func pow2(key string, r uint) uint64 {
	if r == 0 {
		return 0
	}
	mask := uint64(1)<<r - 1
	a := hash(0, 0, key) & mask

	var b uint
	if a > 1 {
		b = uint(bits.Len64(a)) - 1
	}

	var c uint64
	if b > 0 {
		c = hash(uint16(b), 0, key) & (uint64(1)<<b - 1)
	}
	return a ^ c
}

// General assigns key to [0, n) for any n >= 1. Callers must not pass
// n == 0; that is a programming error, not a runtime condition to handle.
func General(key string, n uint64) uint64 {
	if n == 1 {
		return 0
	}

	r := bitLen(n - 1)
	d := pow2(key, r)
	if d < n {
		return d
	}

	half := uint64(1) << (r - 1)
	mask := uint64(1)<<r - 1
	for i := 0; i < 64; i++ {
		e := hash(uint16(r-1), uint16(i), key) & mask
		if e < half {
			return pow2(key, r-1)
		}
		if e < n {
			return e
		}
	}
	return pow2(key, r-1)
}

// bitLen returns the number of bits needed to represent n (0 for n == 0).
// Called as bitLen(n-1) in General, it yields the smallest r with 2^r >= n.
func bitLen(n uint64) uint {
	return uint(bits.Len64(n))
}
