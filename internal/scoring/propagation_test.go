package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestPropagateTwoTierScenario(t *testing.T) {
	suppliers := []*domain.Supplier{
		{ID: "x", SupplyVolumePct: 65, UpstreamSupplierID: "y"},
		{ID: "y", SupplyVolumePct: 100},
	}
	graph := buildGraph(suppliers)

	result := Propagate(graph, "y", 8.0, 1.0)

	assert.InDelta(t, 8.0, result["x"], 1e-9)
	assert.InDelta(t, 5.20, result[""], 0.01)
}

func TestPropagateStopsBelowThresholdStrictly(t *testing.T) {
	suppliers := []*domain.Supplier{
		{ID: "x", SupplyVolumePct: 100},
	}
	graph := buildGraph(suppliers)

	// weight 1.0, vulnerability 0.5 -> multiplier 1.0 -> company score == origin.
	result := Propagate(graph, "x", 1.0, 1.0)

	assert.Contains(t, result, "")
	assert.InDelta(t, 1.0, result[""], 1e-9)
}

func TestPropagateOnlyReenqueuesOnStrictImprovement(t *testing.T) {
	// a and b name each other as upstream, so a -> b -> a is a cycle with
	// multiplier 1.0 on each hop. The return to a ties its recorded score
	// instead of improving it, so a is not re-enqueued and the walk ends.
	suppliers := []*domain.Supplier{
		{ID: "a", SupplyVolumePct: 100, UpstreamSupplierID: "b"},
		{ID: "b", SupplyVolumePct: 100, UpstreamSupplierID: "a"},
	}
	graph := buildGraph(suppliers)

	resultFromA := Propagate(graph, "a", 4.0, 1.0)
	assert.Contains(t, resultFromA, "b")
	assert.InDelta(t, 4.0, resultFromA["b"], 1e-9)
}
