package metrics

import "testing"

func TestHistogramBucketing(t *testing.T) {
	h := NewHistogram([]float64{1, 2, 5}, 100)
	for _, v := range []float64{0.5, 1, 1.5, 3, 10} {
		h.Observe(v)
	}
	counts := h.BucketCounts()
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total != h.Count() {
		t.Fatalf("bucket counts sum = %d, count = %d", total, h.Count())
	}
	if counts[len(counts)-1] != 1 {
		t.Fatalf("expected exactly one +Inf observation (10), got %d", counts[len(counts)-1])
	}
}

func TestHistogramPercentilesMinMax(t *testing.T) {
	h := NewHistogram(nil, 0)
	vals := []float64{5, 1, 9, 3, 7}
	for _, v := range vals {
		h.Observe(v)
	}
	if got := h.Percentile(0.0); got != 1 {
		t.Fatalf("p0 = %v, want 1", got)
	}
	if got := h.Percentile(1.0); got != 9 {
		t.Fatalf("p100 = %v, want 9", got)
	}
}

func TestHistogramEmptyReservoir(t *testing.T) {
	h := NewHistogram(nil, 0)
	if got := h.Percentile(0.5); got != 0 {
		t.Fatalf("empty percentile = %v, want 0", got)
	}
	snap := h.Snapshot()
	if snap.Mean != 0 || snap.Count != 0 {
		t.Fatalf("empty snapshot = %+v", snap)
	}
}

func TestHistogramReservoirCapDoesNotEvict(t *testing.T) {
	h := NewHistogram(nil, 3)
	for i := 0; i < 10; i++ {
		h.Observe(float64(i))
	}
	if h.Count() != 10 {
		t.Fatalf("count = %d, want 10 (count tracks all observations)", h.Count())
	}
	if len(h.reservoir) != 3 {
		t.Fatalf("reservoir len = %d, want 3", len(h.reservoir))
	}
}

func TestSlidingWindowRepeatedIncrementSameTick(t *testing.T) {
	c := NewSlidingWindowCounter(10, 10)
	for i := 0; i < 5; i++ {
		c.Increment(1000)
	}
	if got := c.GetCount(1000); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
	if got := c.GetRate(1000); got != 0.5 {
		t.Fatalf("rate = %v, want 0.5", got)
	}
}

func TestSlidingWindowAdvanceZeroesBuckets(t *testing.T) {
	c := NewSlidingWindowCounter(10, 10) // 1s buckets
	c.Increment(0)
	c.Increment(0)
	// Jump far past the window: every bucket should be zeroed.
	got := c.GetCount(50_000)
	if got != 0 {
		t.Fatalf("count after long gap = %d, want 0", got)
	}
}

func TestSlidingWindowWithinBucketNoAdvance(t *testing.T) {
	c := NewSlidingWindowCounter(10, 10) // bucket duration 1000ms
	c.Increment(0)
	c.Increment(500) // still within first bucket
	if got := c.GetCount(500); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
}

func TestDownsampleExactExample(t *testing.T) {
	in := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}
	out := Downsample(in, 2)
	want := [][]float64{{1.5, 15}, {3.5, 35}}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		for c := range want[i] {
			if out[i][c] != want[i][c] {
				t.Fatalf("out[%d][%d] = %v, want %v", i, c, out[i][c], want[i][c])
			}
		}
	}
}

func TestDownsampleRemainderChunk(t *testing.T) {
	in := [][]float64{{1}, {2}, {3}}
	out := Downsample(in, 2)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[1][0] != 3 {
		t.Fatalf("last chunk mean = %v, want 3", out[1][0])
	}
}

func TestDownsampleFactorClamped(t *testing.T) {
	in := [][]float64{{1}, {2}}
	out := Downsample(in, 0)
	if len(out) != 2 {
		t.Fatalf("factor<1 should clamp to 1, got len %d", len(out))
	}
}

func TestEngineSnapshotAndUnknownNamesAreNoops(t *testing.T) {
	e := NewEngine()
	e.CreateHistogram("latency", nil, 0)
	e.CreateCounter("requests", 60, 6)

	e.Observe("latency", 0.2)
	e.Observe("missing", 1.0) // no-op
	e.Increment("requests", 0)
	e.Increment("missing", 0) // no-op

	if e.Histogram("missing") != nil {
		t.Fatalf("unknown histogram should be nil")
	}

	snap := e.GetSnapshot(0)
	if _, ok := snap["latency"]; !ok {
		t.Fatalf("snapshot missing latency")
	}
	if _, ok := snap["requests"]; !ok {
		t.Fatalf("snapshot missing requests")
	}
}

func TestEngineSnapshotHistogramCountNotShadowedByCounterField(t *testing.T) {
	e := NewEngine()
	e.CreateHistogram("latency", nil, 0)
	e.Observe("latency", 0.2)
	e.Observe("latency", 0.4)

	snap := e.GetSnapshot(0)
	entry := snap["latency"]
	if entry.Count != 2 {
		t.Fatalf("histogram snapshot count = %d, want 2", entry.Count)
	}
	if entry.CounterTotal != 0 {
		t.Fatalf("histogram entry should not carry a counter total, got %d", entry.CounterTotal)
	}
}

func TestEngineSnapshotCounterUsesCounterTotalField(t *testing.T) {
	e := NewEngine()
	e.CreateCounter("requests", 60, 6)
	e.Increment("requests", 0)
	e.Increment("requests", 0)

	snap := e.GetSnapshot(0)
	entry := snap["requests"]
	if entry.CounterTotal != 2 {
		t.Fatalf("counter total = %d, want 2", entry.CounterTotal)
	}
}

func TestEngineCreateIsIdempotentLastWriterWins(t *testing.T) {
	e := NewEngine()
	e.CreateHistogram("h", []float64{1}, 5)
	e.Observe("h", 0.5)
	e.CreateHistogram("h", []float64{1, 2}, 5) // replaces, resets state
	if e.Histogram("h").Count() != 0 {
		t.Fatalf("re-creation should reset histogram state")
	}
}
