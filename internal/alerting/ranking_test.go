package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestCandidatesExcludesSelfAndNonCandidateStatus(t *testing.T) {
	disrupted := &domain.Supplier{ID: "x", Materials: []string{"steel"}}
	all := []*domain.Supplier{
		disrupted,
		{ID: "y", Materials: []string{"steel"}, Status: domain.StatusActive},
		{ID: "z", Materials: []string{"steel"}, Status: domain.StatusInactive},
		{ID: "w", Materials: []string{"textiles"}, Status: domain.StatusActive},
	}

	candidates := Candidates(disrupted, all)

	assert.Len(t, candidates, 1)
	assert.Equal(t, "y", candidates[0].ID)
}

func TestRankWeightsSumToOne(t *testing.T) {
	disrupted := &domain.Supplier{ID: "x", Country: "US"}
	candidate := &domain.Supplier{
		ID: "y", Country: "CA", MaxCapacity: 100, ApprovedVendor: true,
		ESGScore: 80, CreditRating: "AAA", SwitchingCost: 2, LeadTimeWeeks: 4,
	}

	ranked := Rank(disrupted, []*domain.Supplier{candidate}, 50)

	breakdown := ranked[0].Breakdown
	weights := map[string]float64{
		"geographic_diversity": 0.20, "capacity_coverage": 0.25, "relationship": 0.20,
		"esg": 0.10, "financial_stability": 0.10, "switching_cost": 0.05, "lead_time": 0.10,
	}
	var sum, weighted float64
	for k, w := range weights {
		assert.Contains(t, breakdown, k)
		sum += w
		weighted += w * breakdown[k]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Rank's score is ten times the weighted sum of the same breakdown.
	assert.InDelta(t, 10*weighted, ranked[0].Score, 1e-9)
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	disrupted := &domain.Supplier{ID: "x", Country: "US"}
	strong := &domain.Supplier{ID: "strong", Country: "CA", MaxCapacity: 1000, ApprovedVendor: true, CreditRating: "AAA", LeadTimeWeeks: 1}
	weak := &domain.Supplier{ID: "weak", Country: "US", MaxCapacity: 1, Status: domain.StatusPreQualified, CreditRating: "C", LeadTimeWeeks: 20}

	ranked := Rank(disrupted, []*domain.Supplier{weak, strong}, 50)

	assert.Equal(t, "strong", ranked[0].ID)
}

func TestRankCapsAtFive(t *testing.T) {
	disrupted := &domain.Supplier{ID: "x", Country: "US"}
	var candidates []*domain.Supplier
	for i := 0; i < 8; i++ {
		candidates = append(candidates, &domain.Supplier{ID: string(rune('a' + i)), Country: "CA", MaxCapacity: 10, LeadTimeWeeks: 2})
	}

	ranked := Rank(disrupted, candidates, 5)

	assert.Len(t, ranked, 5)
}

func TestGeographicDiversity(t *testing.T) {
	disrupted := &domain.Supplier{Country: "US"}
	assert.Equal(t, 1.0, geographicDiversity(disrupted, &domain.Supplier{Country: "CA"}))
	assert.Equal(t, 0.3, geographicDiversity(disrupted, &domain.Supplier{Country: "US"}))
}

func TestCapacityCoverageClampsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, capacityCoverage(&domain.Supplier{MaxCapacity: 200}, 50))
	assert.Equal(t, 0.5, capacityCoverage(&domain.Supplier{MaxCapacity: 25}, 50))
}
