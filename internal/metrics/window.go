package metrics

// SlidingWindowCounter is a time-bucketed rate counter. advance_to zeroes
// and re-stamps each bucket it passes through, which compresses per-bucket
// timestamps across a long gap — intentional for rate queries, but it
// means bucket timestamps are not strictly monotonic across a gap wider
// than one bucket duration. Not safe for concurrent use.
type SlidingWindowCounter struct {
	windowSeconds  int
	bucketCount    int
	bucketDuration int64 // ms

	counts     []uint64
	timestamps []int64
	head       int
}

// NewSlidingWindowCounter builds a counter over windowSeconds split into
// bucketCount equal-width buckets.
func NewSlidingWindowCounter(windowSeconds, bucketCount int) *SlidingWindowCounter {
	if bucketCount <= 0 {
		bucketCount = 1
	}
	return &SlidingWindowCounter{
		windowSeconds:  windowSeconds,
		bucketCount:    bucketCount,
		bucketDuration: int64(windowSeconds) * 1000 / int64(bucketCount),
		counts:         make([]uint64, bucketCount),
		timestamps:     make([]int64, bucketCount),
	}
}

// advanceTo moves the head bucket forward to cover now, zeroing every bucket
// it passes through.
func (c *SlidingWindowCounter) advanceTo(now int64) {
	if c.timestamps[c.head] == 0 {
		c.timestamps[c.head] = now
		return
	}

	elapsed := now - c.timestamps[c.head]
	if c.bucketDuration <= 0 || elapsed < c.bucketDuration {
		return
	}

	steps := elapsed / c.bucketDuration
	if steps > int64(c.bucketCount) {
		steps = int64(c.bucketCount)
	}

	for i := int64(0); i < steps; i++ {
		c.head = (c.head + 1) % c.bucketCount
		c.counts[c.head] = 0
		c.timestamps[c.head] = now
	}
}

// Increment advances to now and adds one to the head bucket.
func (c *SlidingWindowCounter) Increment(now int64) {
	c.advanceTo(now)
	c.counts[c.head]++
}

// GetCount returns the sum of buckets whose timestamp falls within the
// window ending at now.
func (c *SlidingWindowCounter) GetCount(now int64) uint64 {
	c.advanceTo(now)
	windowStart := now - int64(c.windowSeconds)*1000

	var total uint64
	for i := 0; i < c.bucketCount; i++ {
		if c.timestamps[i] >= windowStart {
			total += c.counts[i]
		}
	}
	return total
}

// GetRate returns GetCount(now) / windowSeconds, events per second.
func (c *SlidingWindowCounter) GetRate(now int64) float64 {
	count := c.GetCount(now)
	if c.windowSeconds <= 0 {
		return 0
	}
	return float64(count) / float64(c.windowSeconds)
}
