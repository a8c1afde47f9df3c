// Package scoring consumes risk_events, computes the deterministic
// composite risk score for the linked supplier, propagates it through
// the dependency graph, and publishes to risk_scores.
package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/config"
	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/pipeline"
	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

// RiskScorePayload is published to risk_scores once a RiskEvent's
// components, composite score, and propagation map have been persisted.
type RiskScorePayload struct {
	RiskEventID string `msgpack:"risk_event_id"`
}

// Stage wires a pipeline.Stage against the store and the graph cache.
type Stage struct {
	store      *store.Store
	stream     *streams.Client
	graphCache *GraphCache
	threshold  float64
	log        zerolog.Logger

	inner *pipeline.Stage
}

// New builds the scoring stage.
func New(st *store.Store, stream *streams.Client, graphCache *GraphCache, cfg *config.Config, log zerolog.Logger) *Stage {
	s := &Stage{
		store:      st,
		stream:     stream,
		graphCache: graphCache,
		threshold:  cfg.PropagationThreshold,
		log:        log.With().Str("component", "scoring_stage").Logger(),
	}

	inner := pipeline.NewStage("scoring", streams.RiskEvents, "risk_scoring_group", stream, s.handle, log)
	inner.Workers = cfg.ScoringWorkers
	inner.Batch = int64(cfg.WorkerBatchSize)
	inner.Block = cfg.WorkerBlock()
	inner.MinIdle = cfg.ClaimMinIdle()
	inner.Deadline = cfg.StageDeadline()
	s.inner = inner

	return s
}

// Run starts the worker pool.
func (s *Stage) Run(ctx context.Context) error { return s.inner.Run(ctx) }

// Stop stops the worker pool.
func (s *Stage) Stop() { s.inner.Stop() }

func (s *Stage) handle(ctx context.Context, entry streams.Entry) (pipeline.FailureKind, error) {
	var payload struct {
		RiskEventID string `msgpack:"risk_event_id"`
	}
	if err := streams.Decode(entry.Payload, &payload); err != nil {
		return pipeline.FailureInvariant, err
	}

	event, err := s.store.RiskEvents.Get(payload.RiskEventID)
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to load risk event %s: %w", payload.RiskEventID, err)
	}
	if event == nil {
		return pipeline.FailureInvariant, fmt.Errorf("risk event %s not found", payload.RiskEventID)
	}
	if !event.IsRisk {
		// Already degraded by extraction; nothing to score.
		return pipeline.FailureDuplicate, nil
	}
	if event.CompositeScore > 0 {
		// Already scored by a prior delivery of this entry.
		return pipeline.FailureDuplicate, nil
	}

	company, err := s.store.Companies.Get()
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to load company profile: %w", err)
	}
	if company == nil {
		return pipeline.FailureInvariant, fmt.Errorf("no company profile seeded")
	}

	allSuppliers, err := s.store.Suppliers.List()
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to list suppliers: %w", err)
	}

	primary := selectPrimarySupplier(event, allSuppliers)
	if primary == nil {
		// No linked supplier resolved; proceed with dependency_ratio=0 so
		// the composite score naturally falls below any alert threshold.
		event.Components = domain.ScoreComponents{
			Probability: Probability(event.Severity, event.Confirmation),
			Impact:      0,
			Urgency:     Urgency(event.TimeHorizon),
			Mitigation:  1.0,
		}
		event.CompositeScore = event.Components.Composite()
		event.SeverityBand = domain.SeverityBandFor(event.CompositeScore)
		return s.finish(ctx, event)
	}

	material := dominantMaterial(primary, company)

	event.PrimarySupplierID = primary.ID
	event.Components = domain.ScoreComponents{
		Probability: Probability(event.Severity, event.Confirmation),
		Impact:      Impact(primary, company, material),
		Urgency:     Urgency(event.TimeHorizon),
		Mitigation:  Mitigation(primary, allSuppliers),
	}
	event.CompositeScore = event.Components.Composite()
	event.SeverityBand = domain.SeverityBandFor(event.CompositeScore)

	graph, err := s.graphCache.Get()
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	propagation := Propagate(graph, primary.ID, event.CompositeScore, s.threshold)
	event.Propagation = propagation

	touched := make(map[string]bool, len(propagation)+1)
	touched[primary.ID] = true
	for supplierID := range propagation {
		if supplierID != "" {
			touched[supplierID] = true
		}
	}
	if err := s.updateSupplierRiskScores(primary, event, propagation, touched); err != nil {
		return pipeline.FailureTransient, err
	}

	return s.finish(ctx, event)
}

func (s *Stage) finish(ctx context.Context, event *domain.RiskEvent) (pipeline.FailureKind, error) {
	if err := s.store.RiskEvents.UpdateScore(event); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to persist scored risk event: %w", err)
	}

	if _, err := s.stream.Publish(ctx, streams.RiskScores, RiskScorePayload{RiskEventID: event.ID}); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to publish risk score: %w", err)
	}

	return pipeline.FailureNone, nil
}

func (s *Stage) updateSupplierRiskScores(primary *domain.Supplier, event *domain.RiskEvent, propagation map[string]float64, touched map[string]bool) error {
	if primary.RiskScoreCurrent < event.CompositeScore {
		if err := s.store.Suppliers.UpdateRiskScore(primary.ID, event.CompositeScore); err != nil {
			return fmt.Errorf("failed to update supplier %s risk score: %w", primary.ID, err)
		}
	}

	for supplierID, score := range propagation {
		if supplierID == "" {
			continue
		}
		supplier, err := s.store.Suppliers.Get(supplierID)
		if err != nil {
			return fmt.Errorf("failed to load supplier %s: %w", supplierID, err)
		}
		if supplier == nil {
			continue
		}
		if supplier.RiskScoreCurrent < score {
			if err := s.store.Suppliers.UpdateRiskScore(supplierID, score); err != nil {
				return fmt.Errorf("failed to update supplier %s risk score: %w", supplierID, err)
			}
		}
	}

	return nil
}

// selectPrimarySupplier resolves the dominant linked supplier: the linked
// supplier with the largest SupplyVolumePct (the first one on a tie).
// Material criticality and inventory buffer are not compared, so when the
// linked suppliers carry different materials the one chosen is not
// necessarily the one with the highest impact component.
func selectPrimarySupplier(event *domain.RiskEvent, allSuppliers []*domain.Supplier) *domain.Supplier {
	byID := make(map[string]*domain.Supplier, len(allSuppliers))
	for _, s := range allSuppliers {
		byID[s.ID] = s
	}

	var best *domain.Supplier
	var bestVolume float64
	for _, id := range event.LinkedSupplierIDs {
		supplier, ok := byID[id]
		if !ok {
			continue
		}
		if best == nil || supplier.SupplyVolumePct > bestVolume {
			best = supplier
			bestVolume = supplier.SupplyVolumePct
		}
	}
	return best
}

// dominantMaterial picks the material the primary supplier supplies that
// carries the highest configured criticality, since impact depends on a
// single material's criticality/buffer figures.
func dominantMaterial(supplier *domain.Supplier, company *domain.Company) string {
	var best string
	bestCriticality := -1
	for _, m := range supplier.Materials {
		c := company.Criticality(m)
		if c > bestCriticality {
			bestCriticality = c
			best = m
		}
	}
	return best
}
