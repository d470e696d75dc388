// Package dag implements topological sort with level extraction and
// priority tie-breaking, three-color cycle detection, and critical-path
// analysis over a borrowed node slice. No method mutates its input.
package dag

import (
	"fmt"
	"sort"

	"github.com/fleetcore/fleetcore/internal/fleeterr"
)

// Node is one node in the dependency graph. Priority defaults to 0 and
// EstimatedDuration defaults to 1.0 when unset.
type Node struct {
	ID                string   `json:"id"`
	Priority          *int     `json:"priority,omitempty"`
	EstimatedDuration *float64 `json:"estimatedDuration,omitempty"`
	DependsOn         []string `json:"dependsOn,omitempty"`
}

func (n *Node) priority() int {
	if n.Priority == nil {
		return 0
	}
	return *n.Priority
}

func (n *Node) duration() float64 {
	if n.EstimatedDuration == nil {
		return 1.0
	}
	return *n.EstimatedDuration
}

// TopologicalResult is the output of TopologicalSort.
type TopologicalResult struct {
	Order     []string   `json:"order"`
	Levels    [][]string `json:"levels"`
	IsValid   bool       `json:"isValid"`
	NodeCount int        `json:"nodeCount"`
}

// CycleResult is the output of DetectCycles.
type CycleResult struct {
	HasCycles  bool       `json:"hasCycles"`
	CycleNodes []string   `json:"cycleNodes"`
	Cycles     [][]string `json:"cycles"`
}

// NodeSlack is per-node critical path info.
type NodeSlack struct {
	ID            string  `json:"id"`
	Slack         float64 `json:"slack"`
	EarliestStart float64 `json:"earliestStart"`
	LatestStart   float64 `json:"latestStart"`
}

// CriticalPathResult is the output of CriticalPath.
type CriticalPathResult struct {
	Path          []string    `json:"path"`
	TotalDuration float64     `json:"totalDuration"`
	Slack         []NodeSlack `json:"slack"`
}

type graph struct {
	adj      map[string][]string
	inDegree map[string]int
	nodeMap  map[string]*Node
}

func buildGraph(nodes []Node) graph {
	g := graph{
		adj:      make(map[string][]string, len(nodes)),
		inDegree: make(map[string]int, len(nodes)),
		nodeMap:  make(map[string]*Node, len(nodes)),
	}

	for i := range nodes {
		n := &nodes[i]
		if _, ok := g.adj[n.ID]; !ok {
			g.adj[n.ID] = nil
		}
		if _, ok := g.inDegree[n.ID]; !ok {
			g.inDegree[n.ID] = 0
		}
		g.nodeMap[n.ID] = n
	}

	for i := range nodes {
		n := &nodes[i]
		for _, dep := range n.DependsOn {
			g.adj[dep] = append(g.adj[dep], n.ID)
			g.inDegree[n.ID]++
		}
	}

	return g
}

// TopologicalSort runs Kahn's algorithm with per-level priority tie-break
// (descending). Each emitted level is a maximal parallelizable group.
// IsValid is false when the node count the order covers is short of the
// input, i.e. a cycle exists.
func TopologicalSort(nodes []Node) TopologicalResult {
	g := buildGraph(nodes)

	inDeg := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		inDeg[k] = v
	}

	var queue []string
	for id, deg := range inDeg {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	// Deterministic seed order keeps level sort stable across runs.
	sort.Strings(queue)

	var order []string
	var levels [][]string

	for len(queue) > 0 {
		level := queue
		queue = nil

		sort.SliceStable(level, func(i, j int) bool {
			return g.nodeMap[level[i]].priority() > g.nodeMap[level[j]].priority()
		})

		for _, id := range level {
			order = append(order, id)
			for _, neighbor := range g.adj[id] {
				inDeg[neighbor]--
				if inDeg[neighbor] == 0 {
					queue = append(queue, neighbor)
				}
			}
		}
		sort.Strings(queue)

		levels = append(levels, level)
	}

	return TopologicalResult{
		Order:     order,
		Levels:    levels,
		IsValid:   len(order) == len(nodes),
		NodeCount: len(nodes),
	}
}

// DetectCycles runs three-color DFS cycle detection. cycle_nodes is the
// union of every node that appears on any returned cycle.
func DetectCycles(nodes []Node) CycleResult {
	g := buildGraph(nodes)

	white := make(map[string]bool, len(nodes))
	var order []string
	for i := range nodes {
		white[nodes[i].ID] = true
		order = append(order, nodes[i].ID)
	}
	sort.Strings(order)

	gray := make(map[string]bool)
	black := make(map[string]bool)
	cycleNodeSet := make(map[string]bool)
	var cycles [][]string

	var path []string
	var dfs func(node string)
	dfs = func(node string) {
		delete(white, node)
		gray[node] = true
		path = append(path, node)

		for _, neighbor := range g.adj[node] {
			if gray[neighbor] {
				start := 0
				for i, n := range path {
					if n == neighbor {
						start = i
						break
					}
				}
				cycle := append([]string(nil), path[start:]...)
				for _, n := range cycle {
					cycleNodeSet[n] = true
				}
				cycles = append(cycles, cycle)
			} else if white[neighbor] {
				dfs(neighbor)
			}
		}

		path = path[:len(path)-1]
		delete(gray, node)
		black[node] = true
	}

	for _, id := range order {
		if white[id] {
			dfs(id)
		}
	}

	cycleNodes := make([]string, 0, len(cycleNodeSet))
	for n := range cycleNodeSet {
		cycleNodes = append(cycleNodes, n)
	}
	sort.Strings(cycleNodes)

	return CycleResult{
		HasCycles:  len(cycles) > 0,
		CycleNodes: cycleNodes,
		Cycles:     cycles,
	}
}

// CriticalPath computes earliest/latest start times and slack over an
// acyclic graph. Returns an InvalidArg error if nodes contains a cycle.
func CriticalPath(nodes []Node) (CriticalPathResult, error) {
	topo := TopologicalSort(nodes)
	if !topo.IsValid {
		return CriticalPathResult{}, fleeterr.New(fleeterr.InvalidArg, "dag.CriticalPath",
			fmt.Errorf("graph contains a cycle; cannot compute critical path"))
	}

	g := buildGraph(nodes)

	earliestStart := make(map[string]float64, len(nodes))
	earliestFinish := make(map[string]float64, len(nodes))

	for _, id := range topo.Order {
		duration := g.nodeMap[id].duration()
		es := earliestStart[id] // defaults to 0
		ef := es + duration
		earliestFinish[id] = ef

		for _, neighbor := range g.adj[id] {
			if ef > earliestStart[neighbor] {
				earliestStart[neighbor] = ef
			}
		}
	}

	var totalDuration float64
	for _, ef := range earliestFinish {
		if ef > totalDuration {
			totalDuration = ef
		}
	}

	latestFinish := make(map[string]float64, len(nodes))
	latestStart := make(map[string]float64, len(nodes))

	for i := len(topo.Order) - 1; i >= 0; i-- {
		id := topo.Order[i]
		duration := g.nodeMap[id].duration()

		lf, seen := latestFinish[id]
		if !seen {
			lf = totalDuration
		}
		for _, neighbor := range g.adj[id] {
			neighborLS, ok := latestStart[neighbor]
			if !ok {
				neighborLS = totalDuration
			}
			if neighborLS < lf {
				lf = neighborLS
			}
		}
		latestFinish[id] = lf
		latestStart[id] = lf - duration
	}

	var slackInfo []NodeSlack
	var path []string

	for _, id := range topo.Order {
		es := earliestStart[id]
		ls := latestStart[id]
		slack := ls - es

		if abs(slack) < 0.001 {
			path = append(path, id)
		}

		slackInfo = append(slackInfo, NodeSlack{
			ID:            id,
			Slack:         slack,
			EarliestStart: es,
			LatestStart:   ls,
		})
	}

	return CriticalPathResult{
		Path:          path,
		TotalDuration: totalDuration,
		Slack:         slackInfo,
	}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// GetReadyNodes returns the IDs of nodes not in completed whose every
// dependency is in completed, sorted by priority descending.
func GetReadyNodes(nodes []Node, completed map[string]bool) []string {
	nodeMap := make(map[string]*Node, len(nodes))
	for i := range nodes {
		nodeMap[nodes[i].ID] = &nodes[i]
	}

	var ready []string
	for i := range nodes {
		n := &nodes[i]
		if completed[n.ID] {
			continue
		}
		depsMet := true
		for _, dep := range n.DependsOn {
			if !completed[dep] {
				depsMet = false
				break
			}
		}
		if depsMet {
			ready = append(ready, n.ID)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return nodeMap[ready[i]].priority() > nodeMap[ready[j]].priority()
	})

	return ready
}
