package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/domain"
)

const recommendToolName = "submit_recommendation"

// RecommendationResult is the structured narrative the model returns.
type RecommendationResult struct {
	Summary string `json:"summary"`
}

var recommendationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{"type": "string"},
	},
	"required": []string{"summary"},
}

// Recommender synthesizes a short operator-facing narrative for an alert,
// given its risk event and ranked alternate suppliers.
type Recommender struct {
	client *anthropic.Client
	model  string
	log    zerolog.Logger
}

// NewRecommender builds a Recommender using apiKey and model.
func NewRecommender(apiKey, model string, log zerolog.Logger) *Recommender {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Recommender{client: &client, model: model, log: log.With().Str("component", "recommender").Logger()}
}

// Recommend returns a narrative recommendation, falling back to a
// deterministic template if the LLM call fails — the alerting stage
// must never drop an alert for want of prose.
func (r *Recommender) Recommend(ctx context.Context, alertTitle, affectedSupplier string, event *domain.RiskEvent, alternates []domain.AlternateSupplier) string {
	top := topAlternates(alternates)
	result, err := r.recommend(ctx, alertTitle, affectedSupplier, event, top)
	if err != nil {
		r.log.Warn().Err(err).Str("risk_event_id", event.ID).Msg("recommendation synthesis failed, using template fallback")
		return TemplateFallback(event, top)
	}
	return result.Summary
}

// topAlternates returns at most the top three candidates, per the ranking's
// own ordering.
func topAlternates(alternates []domain.AlternateSupplier) []domain.AlternateSupplier {
	if len(alternates) > 3 {
		return alternates[:3]
	}
	return alternates
}

func (r *Recommender) recommend(ctx context.Context, alertTitle, affectedSupplier string, event *domain.RiskEvent, alternates []domain.AlternateSupplier) (*RecommendationResult, error) {
	altNames := make([]string, len(alternates))
	for i, a := range alternates {
		altNames[i] = fmt.Sprintf("%s (%s, score %.1f)", a.Name, a.Country, a.Score)
	}

	prompt := fmt.Sprintf(
		"Alert: %s\nAffected supplier: %s\nRisk: %s (severity %s, composite score %.2f).\n"+
			"Reasoning: %s\nTop candidate alternate suppliers: %s\n\n"+
			"Write a two-to-three sentence operator recommendation summarizing the risk and the "+
			"recommended mitigation action. Call %s exactly once.",
		alertTitle, affectedSupplier, event.RiskType, event.Severity, event.CompositeScore, event.Reasoning,
		strings.Join(altNames, "; "), recommendToolName,
	)

	message, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        recommendToolName,
					Description: anthropic.String("Submit the recommendation narrative."),
					InputSchema: recommendationSchema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: recommendToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recommendation call failed: %w", err)
	}

	for _, block := range message.Content {
		if block.Type != "tool_use" || block.Name != recommendToolName {
			continue
		}
		var result RecommendationResult
		if err := json.Unmarshal(block.Input, &result); err != nil {
			return nil, fmt.Errorf("failed to decode recommendation result: %w", err)
		}
		return &result, nil
	}

	return nil, fmt.Errorf("model did not call %s", recommendToolName)
}

// TemplateFallback builds a deterministic recommendation when the LLM is
// unavailable: "Activate alternate supplier <name> from <country>; lead
// time <n>w." against the top-ranked candidate. With no candidates, there
// is no supplier to activate, so the risk itself is reported instead.
func TemplateFallback(event *domain.RiskEvent, alternates []domain.AlternateSupplier) string {
	if len(alternates) == 0 {
		return fmt.Sprintf("%s risk detected (%s severity, score %.2f): %s.",
			event.RiskType, event.Severity, event.CompositeScore, event.Reasoning)
	}

	top := alternates[0]
	return fmt.Sprintf("Activate alternate supplier %s from %s; lead time %gw.",
		top.Name, top.Country, top.LeadTimeWeeks)
}
