package scoring

import (
	"github.com/aristath/chainwatch/internal/domain"
)

// probabilityBySeverity is the table dispatch for the severity->base
// probability mapping; confirmation further discounts it.
var probabilityBySeverity = map[domain.Severity]float64{
	domain.SeverityCritical: 0.95,
	domain.SeverityHigh:     0.80,
	domain.SeverityMedium:   0.55,
	domain.SeverityLow:      0.25,
}

// urgencyByHorizon is the table dispatch for time-horizon urgency.
var urgencyByHorizon = map[domain.TimeHorizon]float64{
	domain.HorizonImmediate: 2.0,
	domain.HorizonDays:      1.5,
	domain.HorizonWeeks:     1.0,
	domain.HorizonMonths:    0.5,
}

const defaultUrgency = 1.0

// Probability computes the probability component: the severity-derived
// base, discounted 30% when confirmation is unconfirmed or uncertain.
func Probability(severity domain.Severity, confirmation domain.Confirmation) float64 {
	base, ok := probabilityBySeverity[severity]
	if !ok {
		base = probabilityBySeverity[domain.SeverityLow]
	}
	if confirmation == domain.ConfirmationUnconfirmed || confirmation == domain.ConfirmationUncertain {
		base *= 0.7
	}
	return base
}

// Impact computes the impact component for one linked supplier against
// the company's material criticality and inventory buffer for the
// materials it supplies.
func Impact(supplier *domain.Supplier, company *domain.Company, material string) float64 {
	dependencyRatio := supplier.SupplyVolumePct / 100
	criticality := float64(company.Criticality(material)) / 10
	bufferScore := 1 / (1 + company.BufferDays(material)/30)
	return dependencyRatio * criticality * bufferScore * 10
}

// Urgency looks up the time-horizon urgency, defaulting to 1.0.
func Urgency(horizon domain.TimeHorizon) float64 {
	if v, ok := urgencyByHorizon[horizon]; ok {
		return v
	}
	return defaultUrgency
}

// Mitigation computes the mitigation component from the count of viable
// alternates: suppliers with overlapping materials, candidate status, and
// a different identity from supplier.
func Mitigation(supplier *domain.Supplier, allSuppliers []*domain.Supplier) float64 {
	count := AlternateCount(supplier, allSuppliers)
	reduction := 0.2 * float64(count)
	if reduction > 1.0 {
		reduction = 1.0
	}
	return 1.0 + reduction
}

// AlternateCount counts suppliers that could substitute for supplier:
// overlapping materials, a candidate status, and a distinct identity.
func AlternateCount(supplier *domain.Supplier, allSuppliers []*domain.Supplier) int {
	count := 0
	for _, other := range allSuppliers {
		if other.ID == supplier.ID {
			continue
		}
		if !other.IsCandidateStatus() {
			continue
		}
		if supplier.OverlapsMaterials(other) {
			count++
		}
	}
	return count
}
