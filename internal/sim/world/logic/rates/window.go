// Package rates implements fixed-window counters for per-player limits.
package rates

// Allow counts one more event at tick now in the window that opened at start.
// A window older than size ticks is replaced by one opening at now. ok is
// false once more than max events fall in the window; wait is then the
// number of ticks until it closes. A zero size or non-positive max allows
// everything.
func Allow(now, start uint64, count int, size uint64, max int) (newStart uint64, newCount int, ok bool, wait uint64) {
	if size == 0 || max <= 0 {
		return start, count, true, 0
	}
	if now-start >= size {
		start, count = now, 0
	}
	count++
	if count <= max {
		return start, count, true, 0
	}
	return start, count, false, start + size - now
}
