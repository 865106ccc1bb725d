package timetable

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Seed hashes a key into a 32-bit seed using FNV-1a.
func Seed(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// Stream returns a mulberry32 generator producing floats in [0,1).
// Two streams built from the same seed yield identical sequences.
func Stream(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		state += 0x6D2B79F5
		t := state
		t = (t ^ (t >> 15)) * (t | 1)
		t ^= t + (t^(t>>7))*(t|61)
		return float64(t^(t>>14)) / 4294967296.0
	}
}

// SeedKey builds the reproducible seed base for a division's day.
func SeedKey(date time.Time, day, division string) string {
	return fmt.Sprintf("%s-%s-%s", date.Format("2006-01-02"), day, division)
}

// volatileSeedKey folds wall-clock time into the key; runs using it are not reproducible.
func volatileSeedKey(now time.Time, day, division string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixNano(), day, division)
}
