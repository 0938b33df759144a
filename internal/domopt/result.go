// File: internal/domopt/result.go
package domopt

// Result carries an optimized snapshot together with its reduction stats.
// Results are memoized and shared between callers; treat them as immutable.
type Result struct {
	// HTML is the reduced serialization, possibly ending in a truncation
	// marker when the size cap was hit.
	HTML string

	// RetainedAttributes names every attribute the reduction kept: the
	// fixed always-keep set plus the page-frequent ones. Sorted.
	RetainedAttributes []string

	// OriginalElements and OptimizedElements count element nodes before and
	// after reduction.
	OriginalElements  int
	OptimizedElements int

	// OriginalBytes and OptimizedBytes measure the serialized size.
	OriginalBytes  int
	OptimizedBytes int

	// Truncated is true when the output was cut at the size cap.
	Truncated bool
}

// ReductionPercent is how much of the original serialized size was removed,
// in the range [0, 100].
func (r *Result) ReductionPercent() float64 {
	if r.OriginalBytes == 0 {
		return 0
	}
	removed := r.OriginalBytes - r.OptimizedBytes
	return float64(removed) / float64(r.OriginalBytes) * 100
}
