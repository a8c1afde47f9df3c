package alerting

import (
	"sort"

	"github.com/aristath/chainwatch/internal/domain"
)

// creditRatingScore maps ordinal credit ratings to [0,1], AAA highest.
var creditRatingScore = map[string]float64{
	"AAA": 1.0, "AA": 0.9, "A": 0.8,
	"BBB": 0.65, "BB": 0.5, "B": 0.35,
	"CCC": 0.2, "CC": 0.1, "C": 0.05,
}

const defaultCreditScore = 0.5

// Candidates returns every supplier eligible as an alternate for
// disrupted: overlapping material, candidate status, different identity.
func Candidates(disrupted *domain.Supplier, allSuppliers []*domain.Supplier) []*domain.Supplier {
	var out []*domain.Supplier
	for _, s := range allSuppliers {
		if s.ID == disrupted.ID {
			continue
		}
		if !s.IsCandidateStatus() {
			continue
		}
		if disrupted.OverlapsMaterials(s) {
			out = append(out, s)
		}
	}
	return out
}

// Rank scores and orders candidates against disrupted and the required
// volume (the disrupted supplier's own contribution), returning at most
// the top 5.
func Rank(disrupted *domain.Supplier, candidates []*domain.Supplier, requiredVolume float64) []domain.AlternateSupplier {
	ranked := make([]domain.AlternateSupplier, 0, len(candidates))

	for _, c := range candidates {
		breakdown := map[string]float64{
			"geographic_diversity": geographicDiversity(disrupted, c),
			"capacity_coverage":    capacityCoverage(c, requiredVolume),
			"relationship":         relationship(c),
			"esg":                  c.ESGScore / 100,
			"financial_stability":  creditScore(c.CreditRating),
			"switching_cost":       1 - c.SwitchingCost/10,
			"lead_time":            1 / (1 + c.LeadTimeWeeks/4),
		}

		weighted := 0.20*breakdown["geographic_diversity"] +
			0.25*breakdown["capacity_coverage"] +
			0.20*breakdown["relationship"] +
			0.10*breakdown["esg"] +
			0.10*breakdown["financial_stability"] +
			0.05*breakdown["switching_cost"] +
			0.10*breakdown["lead_time"]

		ranked = append(ranked, domain.AlternateSupplier{
			ID:            c.ID,
			Name:          c.Name,
			Country:       c.Country,
			Score:         weighted * 10,
			LeadTimeWeeks: c.LeadTimeWeeks,
			Breakdown:     breakdown,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ci, cj := findByID(candidates, ranked[i].ID), findByID(candidates, ranked[j].ID)
		if ci.MaxCapacity != cj.MaxCapacity {
			return ci.MaxCapacity > cj.MaxCapacity
		}
		if ranked[i].LeadTimeWeeks != ranked[j].LeadTimeWeeks {
			return ranked[i].LeadTimeWeeks < ranked[j].LeadTimeWeeks
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

func findByID(suppliers []*domain.Supplier, id string) *domain.Supplier {
	for _, s := range suppliers {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func geographicDiversity(disrupted, candidate *domain.Supplier) float64 {
	if candidate.Country != disrupted.Country {
		return 1.0
	}
	return 0.3
}

func capacityCoverage(candidate *domain.Supplier, requiredVolume float64) float64 {
	if requiredVolume <= 0 {
		return 1.0
	}
	coverage := candidate.MaxCapacity / requiredVolume
	if coverage > 1.0 {
		return 1.0
	}
	return coverage
}

func relationship(candidate *domain.Supplier) float64 {
	switch {
	case candidate.ApprovedVendor:
		return 1.0
	case candidate.Status == domain.StatusPreQualified:
		return 0.8
	default:
		return 0.4
	}
}

func creditScore(rating string) float64 {
	if v, ok := creditRatingScore[rating]; ok {
		return v
	}
	return defaultCreditScore
}
