package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/rs/zerolog"
)

// CompanyRepository manages the singleton company profile row.
type CompanyRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCompanyRepository wires a CompanyRepository against db.
func NewCompanyRepository(db *sql.DB, log zerolog.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, log: log.With().Str("repository", "company").Logger()}
}

// Get returns the company profile, or nil if it has not been seeded yet.
func (r *CompanyRepository) Get() (*domain.Company, error) {
	var c domain.Company
	var materialsJSON, criticalityJSON, bufferDaysJSON, geographiesJSON, contactsJSON string

	err := r.db.QueryRow(`
		SELECT name, industry, materials_json, criticality_json, buffer_days_json,
		       geographies_json, contacts_json
		FROM company WHERE id = 1
	`).Scan(&c.Name, &c.Industry, &materialsJSON, &criticalityJSON, &bufferDaysJSON,
		&geographiesJSON, &contactsJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company profile: %w", err)
	}

	if err := json.Unmarshal([]byte(materialsJSON), &c.Materials); err != nil {
		return nil, fmt.Errorf("failed to decode materials: %w", err)
	}
	if err := json.Unmarshal([]byte(criticalityJSON), &c.MaterialCriticality); err != nil {
		return nil, fmt.Errorf("failed to decode material criticality: %w", err)
	}
	if err := json.Unmarshal([]byte(bufferDaysJSON), &c.InventoryBufferDays); err != nil {
		return nil, fmt.Errorf("failed to decode buffer days: %w", err)
	}
	if err := json.Unmarshal([]byte(geographiesJSON), &c.Geographies); err != nil {
		return nil, fmt.Errorf("failed to decode geographies: %w", err)
	}
	if err := json.Unmarshal([]byte(contactsJSON), &c.Contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}

	return &c, nil
}

// Upsert writes the singleton company profile.
func (r *CompanyRepository) Upsert(c *domain.Company) error {
	materialsJSON, err := json.Marshal(c.Materials)
	if err != nil {
		return fmt.Errorf("failed to encode materials: %w", err)
	}
	criticalityJSON, err := json.Marshal(c.MaterialCriticality)
	if err != nil {
		return fmt.Errorf("failed to encode material criticality: %w", err)
	}
	bufferDaysJSON, err := json.Marshal(c.InventoryBufferDays)
	if err != nil {
		return fmt.Errorf("failed to encode buffer days: %w", err)
	}
	geographiesJSON, err := json.Marshal(c.Geographies)
	if err != nil {
		return fmt.Errorf("failed to encode geographies: %w", err)
	}
	contactsJSON, err := json.Marshal(c.Contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO company (id, name, industry, materials_json, criticality_json,
		                      buffer_days_json, geographies_json, contacts_json, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			materials_json = excluded.materials_json,
			criticality_json = excluded.criticality_json,
			buffer_days_json = excluded.buffer_days_json,
			geographies_json = excluded.geographies_json,
			contacts_json = excluded.contacts_json,
			updated_at = excluded.updated_at
	`, c.Name, c.Industry, materialsJSON, criticalityJSON, bufferDaysJSON,
		geographiesJSON, contactsJSON, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert company profile: %w", err)
	}

	r.log.Info().Str("name", c.Name).Msg("company profile updated")
	return nil
}
