// Package llm wraps the Anthropic API behind two narrow, typed
// functions: Extractor turns article text into a structured risk-event
// candidate, and Recommender turns a scored risk event plus candidate
// suppliers into a recommendation narrative. Neither is given free rein
// over the conversation — both are constrained to a single tool call
// against a fixed JSON schema, so the rest of the pipeline can treat the
// model as a typed pure function rather than a chat partner.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/domain"
)

const extractToolName = "submit_risk_extraction"

// ExtractionResult is the structured payload the model must return.
// Zero value (empty RiskType and IsRisk=false) means "this article is
// not a supply chain risk".
type ExtractionResult struct {
	IsRisk                   bool                `json:"is_risk"`
	RiskType                 domain.RiskType     `json:"risk_type"`
	AffectedEntities         []string            `json:"affected_entities"`
	AffectedSupplyChainNodes []string            `json:"affected_supply_chain_nodes"`
	Severity                 domain.Severity     `json:"severity"`
	Confirmation             domain.Confirmation `json:"confirmation"`
	TimeHorizon              domain.TimeHorizon  `json:"time_horizon"`
	Reasoning                string              `json:"reasoning"`
	RecommendedAction        string              `json:"recommended_action"`
}

// Extractor turns raw article text into an ExtractionResult via a
// single structured tool call.
type Extractor struct {
	client *anthropic.Client
	model  string
	log    zerolog.Logger
}

// NewExtractor builds an Extractor using apiKey and model (e.g. a fast
// tier for routine volume, a smarter tier reserved for ambiguous cases).
func NewExtractor(apiKey, model string, log zerolog.Logger) *Extractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Extractor{client: &client, model: model, log: log.With().Str("component", "extractor").Logger()}
}

var extractionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"is_risk": map[string]interface{}{"type": "boolean"},
		"risk_type": map[string]interface{}{
			"type": "string",
			"enum": []string{
				"geopolitical", "natural_disaster", "financial", "regulatory",
				"operational", "cybersecurity", "esg", "supply_disruption", "price_volatility",
			},
		},
		"affected_entities":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"affected_supply_chain_nodes": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"severity":                    map[string]interface{}{"type": "string", "enum": []string{"critical", "high", "medium", "low"}},
		"confirmation":                map[string]interface{}{"type": "string", "enum": []string{"confirmed", "unconfirmed", "uncertain"}},
		"time_horizon":                map[string]interface{}{"type": "string", "enum": []string{"immediate", "days", "weeks", "months"}},
		"reasoning":                   map[string]interface{}{"type": "string"},
		"recommended_action":          map[string]interface{}{"type": "string"},
	},
	"required": []string{"is_risk", "reasoning"},
}

// Profile carries the company context the extraction prompt is grounded
// against: who we are, what we buy, and where we operate.
type Profile struct {
	Name        string
	Industry    string
	Materials   []string
	Geographies []string
}

// Extract runs one structured extraction call over an article's text.
func (e *Extractor) Extract(ctx context.Context, company Profile, headline, body string, knownSuppliers []string) (*ExtractionResult, error) {
	prompt := fmt.Sprintf(
		"Company: %s (industry: %s)\nMaterials we depend on: %v\nGeographies we operate in: %v\n\n"+
			"Headline: %s\n\nBody: %s\n\nKnown suppliers/entities in our supply chain: %v\n\n"+
			"Determine whether this article describes a supply chain risk event for this company. "+
			"If so, extract its type, severity, confirmation level, time horizon, which suppliers or "+
			"supply chain nodes it affects, and a recommended mitigation action. Call %s exactly once "+
			"with your findings.",
		company.Name, company.Industry, company.Materials, company.Geographies,
		headline, body, knownSuppliers, extractToolName,
	)

	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        extractToolName,
					Description: anthropic.String("Submit the structured risk extraction result."),
					InputSchema: extractionSchema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: extractToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	return parseExtraction(message)
}

func parseExtraction(message *anthropic.Message) (*ExtractionResult, error) {
	for _, block := range message.Content {
		if block.Type != "tool_use" || block.Name != extractToolName {
			continue
		}

		var result ExtractionResult
		if err := json.Unmarshal(block.Input, &result); err != nil {
			return nil, fmt.Errorf("failed to decode extraction result: %w", err)
		}
		return &result, nil
	}

	return nil, fmt.Errorf("model did not call %s", extractToolName)
}
