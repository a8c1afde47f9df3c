package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestTemplateFallbackIncludesTopAlternate(t *testing.T) {
	event := &domain.RiskEvent{
		ID:             "evt-1",
		RiskType:       domain.RiskGeopolitical,
		Severity:       domain.SeverityHigh,
		CompositeScore: 7.5,
		Reasoning:      "port closure halts regional shipping",
		CreatedAt:      time.Now(),
	}
	alternates := []domain.AlternateSupplier{
		{ID: "sup-2", Name: "Northfield Metals", Country: "CA", Score: 8.1, LeadTimeWeeks: 3},
		{ID: "sup-3", Name: "Delta Alloys", Country: "MX", Score: 6.4, LeadTimeWeeks: 5},
	}

	summary := TemplateFallback(event, alternates)

	assert.Equal(t, "Activate alternate supplier Northfield Metals from CA; lead time 3w.", summary)
	assert.NotContains(t, summary, "Delta Alloys")
}

func TestTemplateFallbackWithNoAlternates(t *testing.T) {
	event := &domain.RiskEvent{
		RiskType:       domain.RiskFinancial,
		Severity:       domain.SeverityMedium,
		CompositeScore: 4.0,
		Reasoning:      "credit downgrade reported",
	}

	summary := TemplateFallback(event, nil)

	assert.Contains(t, summary, "financial")
	assert.Contains(t, summary, "credit downgrade reported")
}
