// Package compound implements a ring-buffered time series with
// linear-regression rate estimates and hierarchical lineage-tree
// construction from a flat worker list.
package compound

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
)

// Capacity is the ring buffer size: 720 points ≈ one hour at 5-second
// cadence.
const Capacity = 720

// velocityWindow is the number of trailing points (≈5 minutes at 5s
// cadence) used for the linear-regression rate estimates.
const velocityWindow = 60

// TimeSeriesPoint is one snapshot appended to the accumulator.
type TimeSeriesPoint struct {
	Timestamp          int64  `json:"timestamp"`
	TasksCompleted     uint32 `json:"tasksCompleted"`
	KnowledgeEntries   uint32 `json:"knowledgeEntries"`
	CreditsEarned      uint32 `json:"creditsEarned"`
	ActiveWorkers      uint32 `json:"activeWorkers"`
	HealthyWorkers     uint32 `json:"healthyWorkers"`
	TotalSwarms        uint32 `json:"totalSwarms"`
	BlackboardMessages uint32 `json:"blackboardMessages"`
	PheromoneTrails    uint32 `json:"pheromoneTrails"`
}

type workerInfo struct {
	Handle     string `json:"handle"`
	State      string `json:"state"`
	Health     string `json:"health"`
	SwarmID    string `json:"swarmId"`
	DepthLevel *int   `json:"depthLevel"`
	TeamName   string `json:"teamName"`
}

type swarmInfo struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Agents []workerInfo `json:"agents"`
}

type snapshotInput struct {
	Workers            []workerInfo `json:"workers"`
	Swarms             []swarmInfo  `json:"swarms"`
	TasksTotal         uint32       `json:"tasksTotal"`
	TasksCompleted     uint32       `json:"tasksCompleted"`
	KnowledgeEntries   uint32       `json:"knowledgeEntries"`
	CreditsTotal       uint32       `json:"creditsTotal"`
	BlackboardMessages uint32       `json:"blackboardMessages"`
	PheromoneTrails    uint32       `json:"pheromoneTrails"`
}

// camelizeKeys walks a decoded JSON value and rewrites every snake_case
// map key to camelCase in place, so a struct tagged with camelCase-only
// json tags can still decode a snake_case wire payload.
func camelizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[camelize(k)] = camelizeKeys(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = camelizeKeys(vv)
		}
		return out
	default:
		return val
	}
}

func camelize(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	var b strings.Builder
	upperNext := false
	for _, r := range key {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clock is overridable for deterministic tests.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Accumulator is a ring-buffered time series of fleet snapshots. Not safe
// for concurrent use — one caller goroutine per instance.
type Accumulator struct {
	clock  Clock
	points []TimeSeriesPoint
}

// New constructs an empty accumulator.
func New() *Accumulator {
	return &Accumulator{clock: defaultClock}
}

// NewWithClock is like New but lets tests control the stamped timestamp.
func NewWithClock(clock Clock) *Accumulator {
	return &Accumulator{clock: clock}
}

// PushSnapshot decodes a fleet snapshot, tolerating both snake_case and
// camelCase field names, and appends a derived point, evicting the
// oldest point at capacity.
func (a *Accumulator) PushSnapshot(raw json.RawMessage) error {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	normalized, err := json.Marshal(camelizeKeys(generic))
	if err != nil {
		return err
	}

	var snap snapshotInput
	if err := json.Unmarshal(normalized, &snap); err != nil {
		return err
	}

	var activeWorkers, healthyWorkers uint32
	for _, w := range snap.Workers {
		if w.State != "stopped" {
			activeWorkers++
		}
		if w.Health == "healthy" {
			healthyWorkers++
		}
	}

	point := TimeSeriesPoint{
		Timestamp:          a.clock(),
		TasksCompleted:     snap.TasksCompleted,
		KnowledgeEntries:   snap.KnowledgeEntries,
		CreditsEarned:      snap.CreditsTotal,
		ActiveWorkers:      activeWorkers,
		HealthyWorkers:     healthyWorkers,
		TotalSwarms:        uint32(len(snap.Swarms)),
		BlackboardMessages: snap.BlackboardMessages,
		PheromoneTrails:    snap.PheromoneTrails,
	}

	if len(a.points) >= Capacity {
		a.points = a.points[1:]
	}
	a.points = append(a.points, point)

	return nil
}

// GetTimeSeries returns a copy of the full accumulated series, oldest first.
func (a *Accumulator) GetTimeSeries() []TimeSeriesPoint {
	out := make([]TimeSeriesPoint, len(a.points))
	copy(out, a.points)
	return out
}

// GetPointCount returns the number of accumulated points.
func (a *Accumulator) GetPointCount() int { return len(a.points) }

// GetCompoundRate returns the tasks-completed/min trend over the trailing
// velocity window.
func (a *Accumulator) GetCompoundRate() float64 {
	return a.computeRate(func(p TimeSeriesPoint) float64 { return float64(p.TasksCompleted) })
}

// GetKnowledgeVelocity returns the knowledge-entries/min trend.
func (a *Accumulator) GetKnowledgeVelocity() float64 {
	return a.computeRate(func(p TimeSeriesPoint) float64 { return float64(p.KnowledgeEntries) })
}

// GetCreditsVelocity returns the credits-earned/min trend.
func (a *Accumulator) GetCreditsVelocity() float64 {
	return a.computeRate(func(p TimeSeriesPoint) float64 { return float64(p.CreditsEarned) })
}

// computeRate fits a line y = slope*x + intercept over the trailing
// velocityWindow points (x = 0..n-1, sample index) and scales the
// per-sample slope (5-second cadence) to a per-minute rate by *12.
func (a *Accumulator) computeRate(extract func(TimeSeriesPoint) float64) float64 {
	n := len(a.points)
	if n > velocityWindow {
		n = velocityWindow
	}
	if n < 2 {
		return 0
	}

	window := a.points[len(a.points)-n:]

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range window {
		x := float64(i)
		y := extract(p)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	slope := (nf*sumXY - sumX*sumY) / denom
	return slope * 12
}
