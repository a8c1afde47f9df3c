package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/rs/zerolog"
)

// SupplierRepository manages the supplier dependency graph nodes.
type SupplierRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSupplierRepository wires a SupplierRepository against db.
func NewSupplierRepository(db *sql.DB, log zerolog.Logger) *SupplierRepository {
	return &SupplierRepository{db: db, log: log.With().Str("repository", "supplier").Logger()}
}

// Upsert creates or updates a supplier row.
func (r *SupplierRepository) Upsert(s *domain.Supplier) error {
	materialsJSON, err := json.Marshal(s.Materials)
	if err != nil {
		return fmt.Errorf("failed to encode materials: %w", err)
	}

	var upstream sql.NullString
	if s.UpstreamSupplierID != "" {
		upstream = sql.NullString{String: s.UpstreamSupplierID, Valid: true}
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(`
		INSERT INTO suppliers
			(id, name, country, region, tier, materials_json, supply_volume_pct, status,
			 approved_vendor, esg_score, credit_rating, max_capacity, lead_time_weeks,
			 switching_cost, upstream_supplier_id, risk_score_current, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			region = excluded.region,
			tier = excluded.tier,
			materials_json = excluded.materials_json,
			supply_volume_pct = excluded.supply_volume_pct,
			status = excluded.status,
			approved_vendor = excluded.approved_vendor,
			esg_score = excluded.esg_score,
			credit_rating = excluded.credit_rating,
			max_capacity = excluded.max_capacity,
			lead_time_weeks = excluded.lead_time_weeks,
			switching_cost = excluded.switching_cost,
			upstream_supplier_id = excluded.upstream_supplier_id,
			risk_score_current = excluded.risk_score_current,
			updated_at = excluded.updated_at
	`, s.ID, s.Name, s.Country, s.Region, s.Tier, materialsJSON, s.SupplyVolumePct, s.Status,
		s.ApprovedVendor, s.ESGScore, s.CreditRating, s.MaxCapacity, s.LeadTimeWeeks,
		s.SwitchingCost, upstream, s.RiskScoreCurrent, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert supplier %s: %w", s.ID, err)
	}

	return nil
}

// UpdateRiskScore persists a supplier's current propagated risk score.
func (r *SupplierRepository) UpdateRiskScore(id string, score float64) error {
	_, err := r.db.Exec(`
		UPDATE suppliers SET risk_score_current = ?, updated_at = ? WHERE id = ?
	`, score, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update risk score for supplier %s: %w", id, err)
	}
	return nil
}

// Get retrieves a single supplier by ID.
func (r *SupplierRepository) Get(id string) (*domain.Supplier, error) {
	row := r.db.QueryRow(supplierSelectQuery+" WHERE id = ?", id)
	s, err := scanSupplier(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// List returns every supplier, ordered by tier then name.
func (r *SupplierRepository) List() ([]*domain.Supplier, error) {
	rows, err := r.db.Query(supplierSelectQuery + " ORDER BY tier ASC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []*domain.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// ListByMaterial returns every supplier, of any status, that carries the given material.
func (r *SupplierRepository) ListByMaterial(material string) ([]*domain.Supplier, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}

	var matches []*domain.Supplier
	for _, s := range all {
		if s.SuppliesMaterial(material) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

const supplierSelectQuery = `
	SELECT id, name, country, region, tier, materials_json, supply_volume_pct, status,
	       approved_vendor, esg_score, credit_rating, max_capacity, lead_time_weeks,
	       switching_cost, upstream_supplier_id, risk_score_current
	FROM suppliers
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSupplier(row rowScanner) (*domain.Supplier, error) {
	var s domain.Supplier
	var materialsJSON string
	var upstream sql.NullString

	err := row.Scan(&s.ID, &s.Name, &s.Country, &s.Region, &s.Tier, &materialsJSON,
		&s.SupplyVolumePct, &s.Status, &s.ApprovedVendor, &s.ESGScore, &s.CreditRating,
		&s.MaxCapacity, &s.LeadTimeWeeks, &s.SwitchingCost, &upstream, &s.RiskScoreCurrent)
	if err != nil {
		return nil, err
	}

	if upstream.Valid {
		s.UpstreamSupplierID = upstream.String
	}
	if err := json.Unmarshal([]byte(materialsJSON), &s.Materials); err != nil {
		return nil, fmt.Errorf("failed to decode materials for supplier %s: %w", s.ID, err)
	}

	return &s, nil
}
