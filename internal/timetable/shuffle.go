package timetable

// Shuffle returns a permuted copy of items using a backward Fisher-Yates pass driven by Stream(seed).
// The input slice is never modified.
func Shuffle[T any](items []T, seed uint32) []T {
	out := make([]T, len(items))
	copy(out, items)
	if len(out) < 2 {
		return out
	}
	next := Stream(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
