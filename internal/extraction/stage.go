// Package extraction consumes normalized_events, filters out articles
// unrelated to the company's keyword profile, invokes the structured
// extraction LLM for the rest, links the returned supply-chain node names
// against known suppliers, and persists+publishes the resulting risk event.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/config"
	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/embeddings"
	"github.com/aristath/chainwatch/internal/llm"
	"github.com/aristath/chainwatch/internal/pipeline"
	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

// complexityThresholdChars is the body-length heuristic past which the
// smarter extraction tier is selected; the other trigger is the presence
// of a geopolitical keyword, checked in isComplex.
const complexityThresholdChars = 2000

var geopoliticalTerms = []string{
	"sanction", "tariff", "embargo", "war", "conflict", "coup",
	"export control", "trade dispute", "border closure",
}

// RiskEntityPayload is published to risk_events once a RiskEvent has been
// extracted and persisted.
type RiskEntityPayload struct {
	RiskEventID string `msgpack:"risk_event_id"`
	ArticleID   string `msgpack:"article_id"`
}

// Stage wires a pipeline.Stage against the store, relevance filter, and
// LLM extractor.
type Stage struct {
	store     *store.Store
	stream    *streams.Client
	relevance *embeddings.RelevanceFilter
	extractor *llm.Extractor
	smart     *llm.Extractor
	cfg       *config.Config
	log       zerolog.Logger

	inner *pipeline.Stage
}

// New builds the extraction stage. fast and smart are two Extractor
// instances bound to the two model tiers; smart is consulted only when
// isComplex(article) is true.
func New(st *store.Store, stream *streams.Client, relevance *embeddings.RelevanceFilter, fast, smart *llm.Extractor, cfg *config.Config, log zerolog.Logger) *Stage {
	s := &Stage{
		store:     st,
		stream:    stream,
		relevance: relevance,
		extractor: fast,
		smart:     smart,
		cfg:       cfg,
		log:       log.With().Str("component", "extraction_stage").Logger(),
	}

	inner := pipeline.NewStage("extraction", streams.NormalizedEvents, "risk_extraction_group", stream, s.handle, log)
	inner.Workers = cfg.ExtractionWorkers
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
		ArticleID string `msgpack:"article_id"`
	}
	if err := streams.Decode(entry.Payload, &payload); err != nil {
		return pipeline.FailureInvariant, err
	}

	article, err := s.store.Articles.Get(payload.ArticleID)
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to load article %s: %w", payload.ArticleID, err)
	}
	if article == nil {
		return pipeline.FailureInvariant, fmt.Errorf("article %s not found", payload.ArticleID)
	}

	if article.Processed {
		// Idempotence: a redelivered entry for an already-processed
		// article is a duplicate, not new work.
		return pipeline.FailureDuplicate, nil
	}

	text := article.Headline + " " + article.Body
	relevant, score := s.relevance.IsRelevant(text)
	if !relevant {
		if err := s.store.Articles.MarkProcessed(article.ID, "irrelevant", nil); err != nil {
			return pipeline.FailureTransient, err
		}
		s.log.Debug().Str("article_id", article.ID).Float64("score", score).Msg("article filtered as irrelevant")
		return pipeline.FailureNone, nil
	}

	company, err := s.store.Companies.Get()
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to load company profile: %w", err)
	}
	profile := llm.Profile{}
	if company != nil {
		profile = llm.Profile{
			Name:        company.Name,
			Industry:    company.Industry,
			Materials:   company.Materials,
			Geographies: company.Geographies,
		}
	}

	suppliers, err := s.store.Suppliers.List()
	if err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to list suppliers: %w", err)
	}

	supplierNames := make(map[string]string, len(suppliers))
	knownNames := make([]string, 0, len(suppliers))
	for _, sup := range suppliers {
		supplierNames[sup.ID] = sup.Name
		knownNames = append(knownNames, sup.Name)
	}

	extractor := s.extractor
	if isComplex(article) && s.smart != nil {
		extractor = s.smart
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout())
	result, err := extractor.Extract(llmCtx, profile, article.Headline, article.Body, knownNames)
	cancel()

	if err != nil {
		// One retry with the same call is the extent of the "stricter
		// prompt" policy here, since the extractor already constrains
		// output via a forced tool call; a second parse failure degrades.
		llmCtx, cancel = context.WithTimeout(ctx, s.cfg.LLMTimeout())
		result, err = extractor.Extract(llmCtx, profile, article.Headline, article.Body, knownNames)
		cancel()
	}

	if err != nil {
		s.log.Warn().Err(err).Str("article_id", article.ID).Msg("extraction failed twice, degrading to is_risk=false")
		event := degradedRiskEvent(article.ID)
		if err := s.store.RiskEvents.Insert(event); err != nil {
			return pipeline.FailureTransient, err
		}
		if err := s.store.Articles.MarkProcessed(article.ID, "error: extraction failed", &event.ID); err != nil {
			return pipeline.FailureTransient, err
		}
		return pipeline.FailureMalformed, nil
	}

	if !result.IsRisk {
		if err := s.store.Articles.MarkProcessed(article.ID, "not a risk", nil); err != nil {
			return pipeline.FailureTransient, err
		}
		return pipeline.FailureNone, nil
	}

	linkedIDs, unmatched := LinkEntities(result.AffectedSupplyChainNodes, supplierNames)

	event := &domain.RiskEvent{
		ID:                       uuid.NewString(),
		ArticleID:                article.ID,
		RiskType:                 result.RiskType,
		AffectedEntities:         append(append([]string{}, result.AffectedEntities...), unmatched...),
		AffectedSupplyChainNodes: result.AffectedSupplyChainNodes,
		LinkedSupplierIDs:        linkedIDs,
		Severity:                 result.Severity,
		Confirmation:             result.Confirmation,
		TimeHorizon:              result.TimeHorizon,
		Reasoning:                result.Reasoning,
		RecommendedAction:        result.RecommendedAction,
		IsRisk:                   true,
		Propagation:              map[string]float64{},
		CreatedAt:                time.Now(),
	}
	if len(linkedIDs) > 0 {
		event.PrimarySupplierID = linkedIDs[0]
	}

	if err := s.store.RiskEvents.Insert(event); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to persist risk event: %w", err)
	}
	if err := s.store.Articles.MarkProcessed(article.ID, "", &event.ID); err != nil {
		return pipeline.FailureTransient, err
	}

	if _, err := s.stream.Publish(ctx, streams.RiskEvents, RiskEntityPayload{RiskEventID: event.ID, ArticleID: article.ID}); err != nil {
		return pipeline.FailureTransient, fmt.Errorf("failed to publish risk entity: %w", err)
	}

	return pipeline.FailureNone, nil
}

// isComplex selects the smarter extraction tier for long articles or ones
// mentioning geopolitical terms, per the complexity heuristic.
func isComplex(article *domain.Article) bool {
	if len(article.Body) > complexityThresholdChars {
		return true
	}
	lower := strings.ToLower(article.Headline + " " + article.Body)
	for _, term := range geopoliticalTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func degradedRiskEvent(articleID string) *domain.RiskEvent {
	return &domain.RiskEvent{
		ID:          uuid.NewString(),
		ArticleID:   articleID,
		IsRisk:      false,
		Reasoning:   "extraction failed after retry; recorded as non-risk per degrade policy",
		Propagation: map[string]float64{},
		CreatedAt:   time.Now(),
	}
}
