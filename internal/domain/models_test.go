package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBandFor(t *testing.T) {
	tests := []struct {
		score    float64
		expected SeverityBand
	}{
		{10.0, BandCritical},
		{12.5, BandCritical},
		{6.0, BandHigh},
		{9.99, BandHigh},
		{3.0, BandMedium},
		{5.99, BandMedium},
		{2.99, BandLow},
		{0.0, BandLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeverityBandFor(tt.score))
	}
}

func TestSeverityBandMonotone(t *testing.T) {
	boundaries := []float64{0, 2.99, 3.0, 5.99, 6.0, 9.99, 10.0, 100.0}
	rank := map[SeverityBand]int{BandLow: 0, BandMedium: 1, BandHigh: 2, BandCritical: 3}

	prev := -1
	for _, score := range boundaries {
		band := SeverityBandFor(score)
		assert.GreaterOrEqual(t, rank[band], prev)
		prev = rank[band]
	}
}

func TestScoreComponentsComposite(t *testing.T) {
	c := ScoreComponents{Probability: 0.8, Impact: 4.33, Urgency: 1.5, Mitigation: 1.0}
	assert.InDelta(t, 5.196, c.Composite(), 1e-3)
}

func TestScoreComponentsCompositeZeroMitigation(t *testing.T) {
	c := ScoreComponents{Probability: 0.8, Impact: 4.33, Urgency: 1.5, Mitigation: 0}
	assert.Equal(t, 0.0, c.Composite())
}

func TestCompanyCriticalityDefault(t *testing.T) {
	c := &Company{MaterialCriticality: map[string]int{"steel": 8}}
	assert.Equal(t, 8, c.Criticality("steel"))
	assert.Equal(t, 5, c.Criticality("unknown"))
}

func TestCompanyBufferDaysDefault(t *testing.T) {
	c := &Company{InventoryBufferDays: map[string]float64{"steel": 15}}
	assert.Equal(t, 15.0, c.BufferDays("steel"))
	assert.Equal(t, 0.0, c.BufferDays("unknown"))
}

func TestSupplierOverlapsMaterials(t *testing.T) {
	a := &Supplier{Materials: []string{"steel", "copper"}}
	b := &Supplier{Materials: []string{"copper", "zinc"}}
	c := &Supplier{Materials: []string{"zinc"}}

	assert.True(t, a.OverlapsMaterials(b))
	assert.False(t, a.OverlapsMaterials(c))
}

func TestSupplierIsCandidateStatus(t *testing.T) {
	tests := []struct {
		status   SupplierStatus
		expected bool
	}{
		{StatusActive, true},
		{StatusPreQualified, true},
		{StatusAlternate, true},
		{StatusInactive, false},
	}
	for _, tt := range tests {
		s := &Supplier{Status: tt.status}
		assert.Equal(t, tt.expected, s.IsCandidateStatus())
	}
}
