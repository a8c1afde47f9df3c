package scoring

import (
	"sync"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/events"
	"github.com/aristath/chainwatch/internal/store"
)

// companyNodeID is the fixed graph node ID reserved for the company itself;
// supplier node IDs are assigned sequentially starting above it.
const companyNodeID int64 = 0

// DependencyGraph is the derived directed graph of the supplier network:
// edges point from upstream supplier toward whatever consumes its output
// (another supplier, or the company), weighted by the source supplier's
// share of its downstream's demand.
type DependencyGraph struct {
	g          *simple.WeightedDirectedGraph
	idBySupplier map[string]int64
	supplierByID map[int64]string
}

// NodeID returns the graph node ID for a supplier, or companyNodeID if
// supplierID is empty (the company node).
func (d *DependencyGraph) NodeID(supplierID string) (int64, bool) {
	if supplierID == "" {
		return companyNodeID, true
	}
	id, ok := d.idBySupplier[supplierID]
	return id, ok
}

// SupplierID reverses NodeID; returns "" for the company node.
func (d *DependencyGraph) SupplierID(nodeID int64) string {
	if nodeID == companyNodeID {
		return ""
	}
	return d.supplierByID[nodeID]
}

// Successors returns the weighted out-edges of a node.
func (d *DependencyGraph) Successors(nodeID int64) []WeightedSuccessor {
	var out []WeightedSuccessor
	it := d.g.From(nodeID)
	for it.Next() {
		to := it.Node().ID()
		edge := d.g.WeightedEdge(nodeID, to)
		if edge == nil {
			continue
		}
		out = append(out, WeightedSuccessor{NodeID: to, Weight: edge.Weight()})
	}
	return out
}

// WeightedSuccessor is one outgoing edge from a traversal node.
type WeightedSuccessor struct {
	NodeID int64
	Weight float64
}

// buildGraph constructs a fresh DependencyGraph from the supplier store.
// Each supplier contributes exactly one outgoing edge: toward the
// supplier that names it as an upstream source (if any), otherwise
// toward the company node, weighted by its own supply_volume_pct.
func buildGraph(suppliers []*domain.Supplier) *DependencyGraph {
	g := simple.NewWeightedDirectedGraph(0, 0)
	g.AddNode(simple.Node(companyNodeID))

	idBySupplier := make(map[string]int64, len(suppliers))
	supplierByID := make(map[int64]string, len(suppliers))

	var next int64 = companyNodeID + 1
	for _, s := range suppliers {
		idBySupplier[s.ID] = next
		supplierByID[next] = s.ID
		g.AddNode(simple.Node(next))
		next++
	}

	downstreamOf := make(map[string]string, len(suppliers))
	for _, s := range suppliers {
		if s.UpstreamSupplierID != "" {
			downstreamOf[s.UpstreamSupplierID] = s.ID
		}
	}

	for _, s := range suppliers {
		from := idBySupplier[s.ID]
		target := companyNodeID
		if downstreamID, ok := downstreamOf[s.ID]; ok {
			target = idBySupplier[downstreamID]
		}

		weight := s.SupplyVolumePct / 100
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(from), T: simple.Node(target), W: weight})
	}

	return &DependencyGraph{g: g, idBySupplier: idBySupplier, supplierByID: supplierByID}
}

// GraphCache holds the derived dependency graph behind a single
// writer/multi-reader lock, invalidated by a version counter bumped on
// each SupplierMutated event on the bus — the one other process-wide
// cache this pipeline keeps. No package in this module emits
// SupplierMutated, so supplier writes do not invalidate the cache.
type GraphCache struct {
	mu      sync.RWMutex
	graph   *DependencyGraph
	version int
	built   int // version the cached graph was built at

	suppliers *store.SupplierRepository
}

// NewGraphCache wires a GraphCache against the supplier repository and
// subscribes it to supplier-mutation notifications on bus.
func NewGraphCache(suppliers *store.SupplierRepository, bus *events.Bus) *GraphCache {
	c := &GraphCache{suppliers: suppliers}
	if bus != nil {
		bus.Subscribe(events.SupplierMutated, func(events.EventWithData) {
			c.Invalidate()
		})
	}
	return c
}

// Invalidate bumps the version counter, forcing the next Get to rebuild.
func (c *GraphCache) Invalidate() {
	c.mu.Lock()
	c.version++
	c.mu.Unlock()
}

// Get returns the cached graph, rebuilding it if stale.
func (c *GraphCache) Get() (*DependencyGraph, error) {
	c.mu.RLock()
	if c.graph != nil && c.built == c.version {
		g := c.graph
		c.mu.RUnlock()
		return g, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph != nil && c.built == c.version {
		return c.graph, nil
	}

	suppliers, err := c.suppliers.List()
	if err != nil {
		return nil, err
	}

	c.graph = buildGraph(suppliers)
	c.built = c.version
	return c.graph, nil
}
