package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/rs/zerolog"
)

// RiskEventRepository manages extracted, scored risk events.
type RiskEventRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRiskEventRepository wires a RiskEventRepository against db.
func NewRiskEventRepository(db *sql.DB, log zerolog.Logger) *RiskEventRepository {
	return &RiskEventRepository{db: db, log: log.With().Str("repository", "risk_event").Logger()}
}

// Insert stores a newly extracted risk event; scores are written later
// by UpdateScore.
func (r *RiskEventRepository) Insert(e *domain.RiskEvent) error {
	entitiesJSON, err := json.Marshal(e.AffectedEntities)
	if err != nil {
		return fmt.Errorf("failed to encode affected entities: %w", err)
	}
	nodesJSON, err := json.Marshal(e.AffectedSupplyChainNodes)
	if err != nil {
		return fmt.Errorf("failed to encode affected supply chain nodes: %w", err)
	}
	linkedJSON, err := json.Marshal(e.LinkedSupplierIDs)
	if err != nil {
		return fmt.Errorf("failed to encode linked supplier ids: %w", err)
	}
	propagationJSON, err := json.Marshal(e.Propagation)
	if err != nil {
		return fmt.Errorf("failed to encode propagation map: %w", err)
	}

	var primarySupplier sql.NullString
	if e.PrimarySupplierID != "" {
		primarySupplier = sql.NullString{String: e.PrimarySupplierID, Valid: true}
	}

	_, err = r.db.Exec(`
		INSERT INTO risk_events
			(id, article_id, risk_type, affected_entities_json, affected_nodes_json,
			 linked_supplier_ids_json, primary_supplier_id, severity, confirmation,
			 time_horizon, reasoning, recommended_action, probability, impact, urgency,
			 mitigation, composite_score, severity_band, propagation_json, is_risk, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ArticleID, e.RiskType, entitiesJSON, nodesJSON, linkedJSON, primarySupplier,
		e.Severity, e.Confirmation, e.TimeHorizon, e.Reasoning, e.RecommendedAction,
		e.Components.Probability, e.Components.Impact, e.Components.Urgency, e.Components.Mitigation,
		e.CompositeScore, e.SeverityBand, propagationJSON, e.IsRisk, e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert risk event %s: %w", e.ID, err)
	}
	return nil
}

// UpdateScore persists the scoring stage's output against an already-inserted
// event: components, composite score, severity band, and propagation map.
func (r *RiskEventRepository) UpdateScore(e *domain.RiskEvent) error {
	propagationJSON, err := json.Marshal(e.Propagation)
	if err != nil {
		return fmt.Errorf("failed to encode propagation map: %w", err)
	}

	var primarySupplier sql.NullString
	if e.PrimarySupplierID != "" {
		primarySupplier = sql.NullString{String: e.PrimarySupplierID, Valid: true}
	}

	result, err := r.db.Exec(`
		UPDATE risk_events
		SET primary_supplier_id = ?, probability = ?, impact = ?, urgency = ?, mitigation = ?,
		    composite_score = ?, severity_band = ?, propagation_json = ?
		WHERE id = ?
	`, primarySupplier, e.Components.Probability, e.Components.Impact, e.Components.Urgency,
		e.Components.Mitigation, e.CompositeScore, e.SeverityBand, propagationJSON, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update score for risk event %s: %w", e.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for risk event %s: %w", e.ID, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Get retrieves a single risk event by ID.
func (r *RiskEventRepository) Get(id string) (*domain.RiskEvent, error) {
	row := r.db.QueryRow(riskEventSelectQuery+" WHERE id = ?", id)
	e, err := scanRiskEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListForSupplier returns risk events linked to the given supplier, most recent first.
func (r *RiskEventRepository) ListForSupplier(supplierID string, limit int) ([]*domain.RiskEvent, error) {
	rows, err := r.db.Query(riskEventSelectQuery+`
		WHERE linked_supplier_ids_json LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, "%\""+supplierID+"\"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk events for supplier %s: %w", supplierID, err)
	}
	defer rows.Close()

	var events []*domain.RiskEvent
	for rows.Next() {
		e, err := scanRiskEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const riskEventSelectQuery = `
	SELECT id, article_id, risk_type, affected_entities_json, affected_nodes_json,
	       linked_supplier_ids_json, primary_supplier_id, severity, confirmation,
	       time_horizon, reasoning, recommended_action, probability, impact, urgency,
	       mitigation, composite_score, severity_band, propagation_json, is_risk, created_at
	FROM risk_events
`

func scanRiskEvent(row rowScanner) (*domain.RiskEvent, error) {
	var e domain.RiskEvent
	var entitiesJSON, nodesJSON, linkedJSON, propagationJSON string
	var primarySupplier sql.NullString

	err := row.Scan(&e.ID, &e.ArticleID, &e.RiskType, &entitiesJSON, &nodesJSON, &linkedJSON,
		&primarySupplier, &e.Severity, &e.Confirmation, &e.TimeHorizon, &e.Reasoning,
		&e.RecommendedAction, &e.Components.Probability, &e.Components.Impact,
		&e.Components.Urgency, &e.Components.Mitigation, &e.CompositeScore, &e.SeverityBand,
		&propagationJSON, &e.IsRisk, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if primarySupplier.Valid {
		e.PrimarySupplierID = primarySupplier.String
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &e.AffectedEntities); err != nil {
		return nil, fmt.Errorf("failed to decode affected entities for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(nodesJSON), &e.AffectedSupplyChainNodes); err != nil {
		return nil, fmt.Errorf("failed to decode affected nodes for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(linkedJSON), &e.LinkedSupplierIDs); err != nil {
		return nil, fmt.Errorf("failed to decode linked supplier ids for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(propagationJSON), &e.Propagation); err != nil {
		return nil, fmt.Errorf("failed to decode propagation map for %s: %w", e.ID, err)
	}

	return &e, nil
}
