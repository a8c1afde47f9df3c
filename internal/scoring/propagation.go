package scoring

// defaultVulnerability is 1 - mitigation_score_v, used whenever a supplier
// carries no explicit mitigation score of its own (every supplier today,
// since the data model doesn't track one per-node yet).
const defaultVulnerability = 0.5

// Propagate performs a breadth-first traversal of graph starting at
// originID with originScore, attenuating by edge weight and amplifying by
// target vulnerability at each hop. A node is only re-enqueued (and its
// successors explored) when its propagated score strictly improves on any
// previously recorded value and strictly exceeds threshold; this
// guarantees termination in O(|V|*|E|) worst case. Returns every node
// touched other than the origin, keyed by supplier ID ("" for the company
// node).
func Propagate(graph *DependencyGraph, originID string, originScore, threshold float64) map[string]float64 {
	scores := make(map[int64]float64)

	startID, ok := graph.NodeID(originID)
	if !ok {
		return nil
	}
	scores[startID] = originScore

	queue := []int64{startID}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, succ := range graph.Successors(u) {
			propagated := scores[u] * succ.Weight * (0.5 + defaultVulnerability)

			if existing, seen := scores[succ.NodeID]; seen && propagated <= existing {
				continue
			}

			scores[succ.NodeID] = propagated
			if propagated > threshold {
				queue = append(queue, succ.NodeID)
			}
		}
	}

	result := make(map[string]float64, len(scores))
	for nodeID, score := range scores {
		if nodeID == startID {
			continue
		}
		result[graph.SupplierID(nodeID)] = score
	}
	return result
}
