// Package metrics implements bucket histograms with reservoir-backed
// percentiles, time-bucketed sliding-window rate counters, and a
// multi-column downsampler.
package metrics

// Engine is a named container of histograms and counters. Creation is
// idempotent per name (the last CreateHistogram/CreateCounter call for a
// given name wins); operations against an unknown name are no-ops for
// writes and zero-values for reads, so a lookup miss degrades to default
// output rather than an error.
type Engine struct {
	histograms map[string]*Histogram
	counters   map[string]*SlidingWindowCounter
}

// NewEngine builds an empty metrics container.
func NewEngine() *Engine {
	return &Engine{
		histograms: make(map[string]*Histogram),
		counters:   make(map[string]*SlidingWindowCounter),
	}
}

// CreateHistogram registers (or replaces) a histogram under name.
func (e *Engine) CreateHistogram(name string, buckets []float64, reservoirCap int) {
	e.histograms[name] = NewHistogram(buckets, reservoirCap)
}

// CreateCounter registers (or replaces) a sliding-window counter under name.
func (e *Engine) CreateCounter(name string, windowSeconds, bucketCount int) {
	e.counters[name] = NewSlidingWindowCounter(windowSeconds, bucketCount)
}

// Observe records v against the named histogram. No-op if name is unknown.
func (e *Engine) Observe(name string, v float64) {
	if h, ok := e.histograms[name]; ok {
		h.Observe(v)
	}
}

// Increment bumps the named counter at time now. No-op if name is unknown.
func (e *Engine) Increment(name string, now int64) {
	if c, ok := e.counters[name]; ok {
		c.Increment(now)
	}
}

// Histogram returns the named histogram, or nil if it does not exist.
func (e *Engine) Histogram(name string) *Histogram { return e.histograms[name] }

// Counter returns the named counter, or nil if it does not exist.
func (e *Engine) Counter(name string) *SlidingWindowCounter { return e.counters[name] }

// snapshotEntry is one member of GetSnapshot's output map. Counter-only
// fields use distinct json tags from HistogramSnapshot's own Count field
// so a counter entry's tally doesn't collide with (and shadow) a
// histogram entry's observation count.
type snapshotEntry struct {
	Type string `json:"type"`
	HistogramSnapshot
	Rate         float64 `json:"rate,omitempty"`
	CounterTotal uint64  `json:"counterTotal,omitempty"`
}

// GetSnapshot returns every registered histogram/counter's current summary,
// keyed by name.
func (e *Engine) GetSnapshot(now int64) map[string]snapshotEntry {
	out := make(map[string]snapshotEntry, len(e.histograms)+len(e.counters))
	for name, h := range e.histograms {
		entry := snapshotEntry{Type: "histogram", HistogramSnapshot: h.Snapshot()}
		out[name] = entry
	}
	for name, c := range e.counters {
		out[name] = snapshotEntry{
			Type:         "counter",
			Rate:         c.GetRate(now),
			CounterTotal: c.GetCount(now),
		}
	}
	return out
}
