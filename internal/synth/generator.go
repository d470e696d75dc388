// Package synth drives a configurable number of synthetic workers/swarms
// through the full engine pipeline — NDJSON lines into the logstream
// parser, ticks into the compound accumulator, decaying pheromone trails
// into the swarm engine, and derived events onto the ringbus — for demos,
// load testing, and integration tests that need realistic multi-engine
// traffic without a live fleet.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/fleetcore/fleetcore/internal/compound"
	"github.com/fleetcore/fleetcore/internal/logstream"
	"github.com/fleetcore/fleetcore/internal/metrics"
	"github.com/fleetcore/fleetcore/internal/ringbus"
	"github.com/fleetcore/fleetcore/internal/swarm"
)

// Pattern names a tick-progression shape: steady/burst/stall/methodical.
type Pattern string

const (
	PatternSteady     Pattern = "steady"
	PatternBurst      Pattern = "burst"
	PatternStall      Pattern = "stall"
	PatternMethodical Pattern = "methodical"
)

type worker struct {
	handle     string
	swarmID    string
	depthLevel int
	pattern    Pattern
	state      string
	health     string
	tasksDone  uint32
	toolIdx    int
}

var tools = []string{"Read", "Write", "Edit", "Bash", "Grep", "Glob", "Task"}

// Generator owns the synthetic fleet state and the engine instances it
// drives. Not safe for concurrent use outside of Start's own tick
// goroutine.
type Generator struct {
	logstream *logstream.Parser
	metrics   *metrics.Engine
	ringbus   *ringbus.Bus
	compound  *compound.Accumulator

	workers []worker
	swarms  []string
	trails  []swarm.PheromoneTrail

	tickInterval time.Duration
	tick         int
}

// New builds a Generator with swarmCount swarms of workersPerSwarm
// workers each, cycling through the four patterns in round-robin order.
func New(ls *logstream.Parser, met *metrics.Engine, bus *ringbus.Bus, comp *compound.Accumulator, tickInterval time.Duration, swarmCount, workersPerSwarm int) *Generator {
	g := &Generator{
		logstream:    ls,
		metrics:      met,
		ringbus:      bus,
		compound:     comp,
		tickInterval: tickInterval,
	}

	patterns := []Pattern{PatternSteady, PatternBurst, PatternStall, PatternMethodical}

	for s := 0; s < swarmCount; s++ {
		swarmID := fmt.Sprintf("swarm-%02d", s)
		g.swarms = append(g.swarms, swarmID)
		for w := 0; w < workersPerSwarm; w++ {
			g.workers = append(g.workers, worker{
				handle:     fmt.Sprintf("worker-%s-%02d", swarmID, w),
				swarmID:    swarmID,
				depthLevel: w % 2,
				pattern:    patterns[(s*workersPerSwarm+w)%len(patterns)],
				state:      "running",
				health:     "healthy",
			})
		}
	}

	return g
}

// Start ticks the generator every tickInterval until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.advance()
		}
	}
}

func (g *Generator) advance() {
	g.tick++

	for i := range g.workers {
		g.advanceWorker(&g.workers[i])
	}

	g.publishLogLine()
	g.decayTrails()
	g.pushSnapshot()
}

func (g *Generator) advanceWorker(w *worker) {
	switch w.pattern {
	case PatternStall:
		if g.tick%10 < 4 {
			w.state = "waiting"
			return
		}
		w.state = "running"
		w.tasksDone++
	case PatternBurst:
		w.state = "running"
		if g.tick%5 < 2 {
			w.tasksDone += 2
		} else {
			w.tasksDone++
		}
	case PatternMethodical:
		w.state = "running"
		if g.tick%4 == 0 {
			w.tasksDone++
		}
	default: // steady
		w.state = "running"
		w.tasksDone++
	}

	if rand.Intn(50) == 0 {
		w.health = "unhealthy"
	} else {
		w.health = "healthy"
	}

	w.toolIdx++
	g.metrics.Observe("task_duration_ms", 50+rand.Float64()*450)
	g.metrics.Increment("tasks_completed", time.Now().UnixMilli())
}

func (g *Generator) publishLogLine() {
	w := g.workers[g.tick%len(g.workers)]
	line := fmt.Sprintf(`{"type":"assistant","session_id":%q,"message":{"content":[{"type":"text","text":"tick %d: %s using %s"}]}}`,
		w.handle, g.tick, w.state, tools[w.toolIdx%len(tools)])
	_, _ = g.logstream.ParseLine(line)

	g.ringbus.Publish("worker.status", w.handle, 1, line)
}

func (g *Generator) decayTrails() {
	for _, w := range g.workers {
		g.trails = append(g.trails, swarm.PheromoneTrail{
			ID:        swarm.TrailKey(w.handle, "build"),
			Intensity: 0.2 + rand.Float64()*0.8,
			CreatedAt: time.Now().UnixMilli(),
		})
	}
	decayed := swarm.ProcessDecay(g.trails, 0.05, 0.05)
	g.trails = decayed.Survivors
}

func (g *Generator) pushSnapshot() {
	type workerJSON struct {
		Handle     string `json:"handle"`
		State      string `json:"state"`
		Health     string `json:"health"`
		SwarmID    string `json:"swarmId"`
		DepthLevel int    `json:"depthLevel"`
	}
	type swarmJSON struct {
		ID     string       `json:"id"`
		Name   string       `json:"name"`
		Agents []workerJSON `json:"agents"`
	}
	type snapshot struct {
		Workers            []workerJSON `json:"workers"`
		Swarms             []swarmJSON  `json:"swarms"`
		TasksCompleted     uint32       `json:"tasksCompleted"`
		KnowledgeEntries   uint32       `json:"knowledgeEntries"`
		CreditsTotal       uint32       `json:"creditsTotal"`
		BlackboardMessages uint32       `json:"blackboardMessages"`
		PheromoneTrails    uint32       `json:"pheromoneTrails"`
	}

	var total uint32
	workers := make([]workerJSON, 0, len(g.workers))
	agentsBySwarm := make(map[string][]workerJSON, len(g.swarms))
	for _, w := range g.workers {
		total += w.tasksDone
		wj := workerJSON{
			Handle: w.handle, State: w.state, Health: w.health,
			SwarmID: w.swarmID, DepthLevel: w.depthLevel,
		}
		workers = append(workers, wj)
		agentsBySwarm[w.swarmID] = append(agentsBySwarm[w.swarmID], wj)
	}

	swarms := make([]swarmJSON, 0, len(g.swarms))
	for _, swarmID := range g.swarms {
		swarms = append(swarms, swarmJSON{
			ID:     swarmID,
			Name:   swarmID,
			Agents: agentsBySwarm[swarmID],
		})
	}

	snap := snapshot{
		Workers:            workers,
		Swarms:             swarms,
		TasksCompleted:     total,
		KnowledgeEntries:   total / 3,
		CreditsTotal:       total * 2,
		BlackboardMessages: uint32(g.tick),
		PheromoneTrails:    uint32(len(g.trails)),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		log.Printf("synth: marshal snapshot: %v", err)
		return
	}
	if err := g.compound.PushSnapshot(raw); err != nil {
		log.Printf("synth: push snapshot: %v", err)
	}
}
