package compound

import (
	"encoding/json"
	"sort"
)

// LineageNode is one node in a built lineage tree. Children are omitted
// from JSON encoding when empty (handled by the omitempty tag).
type LineageNode struct {
	Type     string        `json:"type"`
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name,omitempty"`
	State    string        `json:"state,omitempty"`
	Health   string        `json:"health,omitempty"`
	Children []LineageNode `json:"children,omitempty"`
}

// LineageWorker is one entry of the flat worker list BuildLineageTree
// consumes.
type LineageWorker struct {
	Handle     string `json:"handle"`
	State      string `json:"state"`
	Health     string `json:"health"`
	SwarmID    string `json:"swarmId"`
	DepthLevel *int   `json:"depthLevel"`
}

func (w LineageWorker) depth() int {
	if w.DepthLevel == nil {
		return 0
	}
	return *w.DepthLevel
}

// BuildLineageTreeJSON decodes a flat worker list (see LineageWorker) and
// builds the lineage tree.
func BuildLineageTreeJSON(raw json.RawMessage) (LineageNode, error) {
	var workers []LineageWorker
	if err := json.Unmarshal(raw, &workers); err != nil {
		return LineageNode{}, err
	}
	return BuildLineageTree(workers), nil
}

// BuildLineageTree partitions workers by swarm_id (workers with an empty
// swarm_id fall under a synthetic "unassigned" group), then within each
// swarm folds depth-bucketed workers bottom-up — the deepest bucket's
// nodes distribute round-robin across the next-shallowest bucket's nodes
// as children — until only the shallowest bucket remains, which becomes
// the swarm node's direct children.
func BuildLineageTree(workers []LineageWorker) LineageNode {
	root := LineageNode{Type: "root", ID: "fleet", Name: "fleet"}

	bySwarm := make(map[string][]LineageWorker)
	var swarmOrder []string
	var unassigned []LineageWorker

	for _, w := range workers {
		if w.SwarmID == "" {
			unassigned = append(unassigned, w)
			continue
		}
		if _, ok := bySwarm[w.SwarmID]; !ok {
			swarmOrder = append(swarmOrder, w.SwarmID)
		}
		bySwarm[w.SwarmID] = append(bySwarm[w.SwarmID], w)
	}
	sort.Strings(swarmOrder)

	for _, swarmID := range swarmOrder {
		label := "Swarm " + shorten(swarmID, 8)
		swarmNode := LineageNode{Type: "swarm", ID: swarmID, Name: label}
		swarmNode.Children = foldByDepth(bySwarm[swarmID])
		root.Children = append(root.Children, swarmNode)
	}

	if len(unassigned) > 0 {
		group := LineageNode{Type: "group", ID: "unassigned", Name: "unassigned"}
		group.Children = foldByDepth(unassigned)
		root.Children = append(root.Children, group)
	}

	return root
}

// foldByDepth buckets workers by depth_level (default 0), then folds from
// the greatest depth down to 0: nodes at the current depth are
// distributed round-robin as children across the nodes one level
// shallower. The surviving shallowest-level nodes are returned.
func foldByDepth(workers []LineageWorker) []LineageNode {
	byDepth := make(map[int][]LineageWorker)
	maxDepth := 0
	for _, w := range workers {
		d := w.depth()
		byDepth[d] = append(byDepth[d], w)
		if d > maxDepth {
			maxDepth = d
		}
	}

	current := leafNodes(byDepth[maxDepth])

	for depth := maxDepth - 1; depth >= 0; depth-- {
		nodesHere := leafNodes(byDepth[depth])
		if len(nodesHere) == 0 {
			if len(current) == 0 {
				continue
			}
			// No real nodes at this depth to host the fold — keep
			// the deeper set as-is and continue folding upward.
			continue
		}
		for i, child := range current {
			target := i % len(nodesHere)
			nodesHere[target].Children = append(nodesHere[target].Children, child)
		}
		current = nodesHere
	}

	return current
}

func leafNodes(workers []LineageWorker) []LineageNode {
	out := make([]LineageNode, 0, len(workers))
	for _, w := range workers {
		out = append(out, LineageNode{
			Type:   "worker",
			ID:     w.Handle,
			Name:   w.Handle,
			State:  w.State,
			Health: w.Health,
		})
	}
	return out
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
