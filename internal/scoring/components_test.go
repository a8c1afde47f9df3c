package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestProbabilityBySeverity(t *testing.T) {
	assert.Equal(t, 0.95, Probability(domain.SeverityCritical, domain.ConfirmationConfirmed))
	assert.Equal(t, 0.80, Probability(domain.SeverityHigh, domain.ConfirmationConfirmed))
	assert.Equal(t, 0.55, Probability(domain.SeverityMedium, domain.ConfirmationConfirmed))
	assert.Equal(t, 0.25, Probability(domain.SeverityLow, domain.ConfirmationConfirmed))
}

func TestProbabilityDiscountedWhenUnconfirmed(t *testing.T) {
	assert.InDelta(t, 0.80*0.7, Probability(domain.SeverityHigh, domain.ConfirmationUnconfirmed), 1e-9)
	assert.InDelta(t, 0.80*0.7, Probability(domain.SeverityHigh, domain.ConfirmationUncertain), 1e-9)
}

func TestImpactMatchesSingleSourceScenario(t *testing.T) {
	company := &domain.Company{
		MaterialCriticality: map[string]int{"steel": 10},
		InventoryBufferDays: map[string]float64{"steel": 15},
	}
	supplier := &domain.Supplier{ID: "x", SupplyVolumePct: 65, Materials: []string{"steel"}}

	impact := Impact(supplier, company, "steel")

	assert.InDelta(t, 4.33, impact, 0.01)
}

func TestUrgencyByHorizon(t *testing.T) {
	assert.Equal(t, 2.0, Urgency(domain.HorizonImmediate))
	assert.Equal(t, 1.5, Urgency(domain.HorizonDays))
	assert.Equal(t, 1.0, Urgency(domain.HorizonWeeks))
	assert.Equal(t, 0.5, Urgency(domain.HorizonMonths))
	assert.Equal(t, defaultUrgency, Urgency("unknown"))
}

func TestMitigationNoAlternates(t *testing.T) {
	supplier := &domain.Supplier{ID: "x", Materials: []string{"steel"}, Status: domain.StatusActive}
	assert.Equal(t, 1.0, Mitigation(supplier, []*domain.Supplier{supplier}))
}

func TestMitigationCapsAtTwo(t *testing.T) {
	supplier := &domain.Supplier{ID: "x", Materials: []string{"steel"}, Status: domain.StatusActive}
	var alternates []*domain.Supplier
	for i := 0; i < 10; i++ {
		alternates = append(alternates, &domain.Supplier{
			ID: string(rune('a' + i)), Materials: []string{"steel"}, Status: domain.StatusActive,
		})
	}
	assert.Equal(t, 2.0, Mitigation(supplier, alternates))
}

func TestMitigationThreeAlternates(t *testing.T) {
	supplier := &domain.Supplier{ID: "x", Materials: []string{"steel"}, Status: domain.StatusActive}
	alternates := []*domain.Supplier{
		{ID: "a", Materials: []string{"steel"}, Status: domain.StatusPreQualified},
		{ID: "b", Materials: []string{"steel"}, Status: domain.StatusPreQualified},
		{ID: "c", Materials: []string{"steel"}, Status: domain.StatusPreQualified},
	}
	assert.InDelta(t, 1.6, Mitigation(supplier, alternates), 1e-9)
}

func TestCompositeScoreMatchesSingleSourceScenario(t *testing.T) {
	components := domain.ScoreComponents{Probability: 0.80, Impact: 4.33, Urgency: 1.5, Mitigation: 1.0}
	assert.InDelta(t, 5.20, components.Composite(), 0.01)
}

func TestSeverityBandBoundaries(t *testing.T) {
	assert.Equal(t, domain.BandLow, domain.SeverityBandFor(2.99))
	assert.Equal(t, domain.BandMedium, domain.SeverityBandFor(3.0))
	assert.Equal(t, domain.BandMedium, domain.SeverityBandFor(5.99))
	assert.Equal(t, domain.BandHigh, domain.SeverityBandFor(6.0))
	assert.Equal(t, domain.BandHigh, domain.SeverityBandFor(9.99))
	assert.Equal(t, domain.BandCritical, domain.SeverityBandFor(10.0))
}
