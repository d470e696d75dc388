package metrics

import "sort"

// DefaultBuckets mirrors the engine's default bucket boundaries.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// DefaultReservoirCap bounds the exact-percentile sample reservoir.
const DefaultReservoirCap = 10_000

// HistogramSnapshot is the read-only view returned by Snapshot.
type HistogramSnapshot struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Mean  float64 `json:"mean"`
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
}

// Histogram is an explicit-bucket histogram backed by a bounded-prefix
// reservoir used for exact percentile queries. Not safe for concurrent use.
type Histogram struct {
	buckets      []float64 // sorted ascending boundaries
	bucketCounts []uint64  // len(buckets)+1, last slot is the +Inf bucket
	reservoirCap int
	reservoir    []float64
	sum          float64
	count        uint64
}

// NewHistogram builds a histogram with explicit bucket boundaries (sorted
// ascending) and a reservoir capacity. A nil/empty buckets slice or
// non-positive cap fall back to the defaults.
func NewHistogram(buckets []float64, reservoirCap int) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	if reservoirCap <= 0 {
		reservoirCap = DefaultReservoirCap
	}
	b := make([]float64, len(buckets))
	copy(b, buckets)
	return &Histogram{
		buckets:      b,
		bucketCounts: make([]uint64, len(b)+1),
		reservoirCap: reservoirCap,
	}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.sum += v
	h.count++

	idx := len(h.buckets) // default: +Inf bucket
	for i, boundary := range h.buckets {
		if v <= boundary {
			idx = i
			break
		}
	}
	h.bucketCounts[idx]++

	if len(h.reservoir) < h.reservoirCap {
		h.reservoir = append(h.reservoir, v)
	}
}

// Percentile returns the p-quantile (p in [0,1]) of the reservoir, 0 if empty.
func (h *Histogram) Percentile(p float64) float64 {
	n := len(h.reservoir)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, h.reservoir)
	sort.Float64s(sorted)

	idx := int(p * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// GetPercentiles returns p50/p95/p99 in one sort pass.
func (h *Histogram) GetPercentiles() (p50, p95, p99 float64) {
	n := len(h.reservoir)
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, h.reservoir)
	sort.Float64s(sorted)

	quantile := func(p float64) float64 {
		idx := int(p * float64(n))
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}
	return quantile(0.5), quantile(0.95), quantile(0.99)
}

// Snapshot returns the summary view of this histogram.
func (h *Histogram) Snapshot() HistogramSnapshot {
	p50, p95, p99 := h.GetPercentiles()
	var mean float64
	if h.count > 0 {
		mean = h.sum / float64(h.count)
	}
	return HistogramSnapshot{P50: p50, P95: p95, P99: p99, Mean: mean, Count: h.count, Sum: h.sum}
}

// Count returns the total number of observations (including those not
// retained in the reservoir).
func (h *Histogram) Count() uint64 { return h.count }

// Sum returns the running sum of observed values.
func (h *Histogram) Sum() float64 { return h.sum }

// BucketCounts returns a copy of the per-bucket counts, the final entry
// being the +Inf bucket. Sum of entries always equals Count().
func (h *Histogram) BucketCounts() []uint64 {
	out := make([]uint64, len(h.bucketCounts))
	copy(out, h.bucketCounts)
	return out
}
