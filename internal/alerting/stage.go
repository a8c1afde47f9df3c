// Package alerting consumes risk_scores, applies the alert threshold,
// ranks alternate suppliers for affected materials, synthesizes a
// recommendation, and persists+publishes the resulting alert.
package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/config"
	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/llm"
	"github.com/aristath/chainwatch/internal/pipeline"
	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

// NewAlertPayload is published to new_alerts; downstream fan-out
// consumers subscribe with their own consumer group.
type NewAlertPayload struct {
	AlertID string `msgpack:"alert_id"`
}

// Stage wires a pipeline.Stage against the store and the recommender.
type Stage struct {
	store       *store.Store
	stream      *streams.Client
	recommender *llm.Recommender
	threshold   float64
	log         zerolog.Logger

	inner *pipeline.Stage
}

// New builds the alerting stage.
func New(st *store.Store, stream *streams.Client, recommender *llm.Recommender, cfg *config.Config, log zerolog.Logger) *Stage {
	s := &Stage{
		store:       st,
		stream:      stream,
		recommender: recommender,
		threshold:   cfg.AlertThreshold,
		log:         log.With().Str("component", "alerting_stage").Logger(),
	}

	inner := pipeline.NewStage("alerting", streams.RiskScores, "alerting_group", stream, s.handle, log)
	inner.Workers = cfg.AlertingWorkers
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

	if event.CompositeScore < s.threshold {
		return pipeline.FailureNone, nil
	}

	existing, err := s.store.Alerts.GetByRiskEventID(event.ID)
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to check for duplicate alert: %w", err)
	}
	if existing != nil {
		// Unique-per-risk-event guard: never double-emit on redelivery.
		return pipeline.FailureDuplicate, nil
	}

	primary, err := s.supplierFor(event.PrimarySupplierID)
	if err != nil {
		return pipeline.FailureTransient, err
	}

	var alternates []domain.AlternateSupplier
	var affectedMaterials []string
	if primary != nil {
		allSuppliers, err := s.store.Suppliers.List()
		if err != nil {
			return pipeline.FailureTransient, fmt.Errorf("failed to list suppliers: %w", err)
		}
		candidates := Candidates(primary, allSuppliers)
		requiredVolume := primary.MaxCapacity * primary.SupplyVolumePct / 100
		alternates = Rank(primary, candidates, requiredVolume)
		affectedMaterials = primary.Materials
	}

	title := alertTitle(event, primary)
	affectedSuppliers := affectedSupplierNames(event, primary)

	alert := &domain.Alert{
		ID:                uuid.NewString(),
		RiskEventID:       event.ID,
		SeverityBand:      event.SeverityBand,
		CompositeScore:    event.CompositeScore,
		Title:             title,
		Description:       event.Reasoning,
		AffectedSuppliers: affectedSuppliers,
		AffectedMaterials: affectedMaterials,
		Alternates:        alternates,
		Acknowledged:      false,
		CreatedAt:         event.CreatedAt,
	}

	affectedSupplier := strings.Join(affectedSuppliers, ", ")
	top := alternates
	if len(top) > 3 {
		top = top[:3]
	}
	if s.recommender != nil {
		alert.Recommendation = s.recommender.Recommend(ctx, title, affectedSupplier, event, top)
	} else {
		alert.Recommendation = llm.TemplateFallback(event, top)
	}

	if err := s.store.Alerts.Insert(alert); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to persist alert: %w", err)
	}

	if _, err := s.stream.Publish(ctx, streams.NewAlerts, NewAlertPayload{AlertID: alert.ID}); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to publish new alert: %w", err)
	}

	return pipeline.FailureNone, nil
}

func (s *Stage) supplierFor(id string) (*domain.Supplier, error) {
	if id == "" {
		return nil, nil
	}
	supplier, err := s.store.Suppliers.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary supplier %s: %w", id, err)
	}
	return supplier, nil
}

func alertTitle(event *domain.RiskEvent, primary *domain.Supplier) string {
	name := "unlinked supplier"
	if primary != nil {
		name = primary.Name
	}
	return fmt.Sprintf("%s risk at %s", event.RiskType, name)
}

func affectedSupplierNames(event *domain.RiskEvent, primary *domain.Supplier) []string {
	if primary != nil {
		return []string{primary.Name}
	}
	return event.AffectedEntities
}
