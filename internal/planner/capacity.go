package planner

import "math"

// CeilSqrt returns the smallest s such that s*s >= n. It returns 0 for n <= 0.
func CeilSqrt(n int) int {
	if n <= 0 {
		return 0
	}
	s := int(math.Sqrt(float64(n)))
	for s*s < n {
		s++
	}
	for s > 1 && (s-1)*(s-1) >= n {
		s--
	}
	return s
}

// AtlasSide returns the number of tiles per row for atlas sheets.
//
// Small buckets get a fixed grid sized for queryLimit items. Larger buckets
// grow the grid with the item count until maxAtlasSize tiles per sheet, so
// that big buckets need fewer top-level sheets. Every group of the bucket
// shares this side, which keeps sheet widths uniform for stacking.
func AtlasSide(count, queryLimit, maxAtlasSize int) int {
	target := max(queryLimit, count)
	if maxAtlasSize > 0 {
		target = min(maxAtlasSize, target)
	}
	return max(CeilSqrt(target), 1)
}

// AtlasCapacity returns the number of tiles one atlas sheet holds.
func AtlasCapacity(side int) int {
	return side * side
}

// PixelSide returns the number of tiles per row for a pixel summary. Pixel
// summaries are sized exactly to the bucket, never over-provisioned.
func PixelSide(count int) int {
	return CeilSqrt(count)
}
