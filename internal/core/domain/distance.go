package domain

import (
	"math"
	"sort"
)

// EuclideanDistance returns the L2 distance between a and b.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SortByDistance orders results by ascending distance. Ties are broken by
// source then chunk index so the order is deterministic.
func SortByDistance(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return LessResult(results[i], results[j])
	})
}

// Truncate returns at most k results. A non-positive k yields none.
func Truncate(results []SearchResult, k int) []SearchResult {
	if k <= 0 {
		return nil
	}
	if len(results) > k {
		return results[:k]
	}
	return results
}

// LessResult reports whether a ranks before b.
func LessResult(a, b SearchResult) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.ChunkIndex < b.ChunkIndex
}
