package mathx

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
)

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Isqrt returns floor(sqrt(n)) using integer Newton iteration.
// Results are bit-identical on every platform, unlike math.Sqrt round trips.
func Isqrt(n uint64) uint64 {
	if n < 2 {
		return n
	}
	// Initial guess above the root: 2^ceil(bits/2).
	x := uint64(1) << ((bits.Len64(n) + 1) / 2)
	for {
		y := (x + n/x) / 2
		if y >= x {
			return x
		}
		x = y
	}
}

// Hash2 is FNV-1a over the little-endian bytes of seed, x and y.
func Hash2(seed int64, x, y int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(uint32(int32(x))))
	binary.LittleEndian.PutUint64(buf[16:], uint64(uint32(int32(y))))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
