package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/rs/zerolog"
)

// AlertRepository manages the final, actionable alerts produced by the pipeline.
type AlertRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAlertRepository wires an AlertRepository against db.
func NewAlertRepository(db *sql.DB, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{db: db, log: log.With().Str("repository", "alert").Logger()}
}

// Insert stores a newly fired alert.
func (r *AlertRepository) Insert(a *domain.Alert) error {
	suppliersJSON, err := json.Marshal(a.AffectedSuppliers)
	if err != nil {
		return fmt.Errorf("failed to encode affected suppliers: %w", err)
	}
	materialsJSON, err := json.Marshal(a.AffectedMaterials)
	if err != nil {
		return fmt.Errorf("failed to encode affected materials: %w", err)
	}
	alternatesJSON, err := json.Marshal(a.Alternates)
	if err != nil {
		return fmt.Errorf("failed to encode alternates: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO alerts
			(id, risk_event_id, severity_band, composite_score, title, description,
			 affected_suppliers_json, affected_materials_json, alternates_json,
			 recommendation, acknowledged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RiskEventID, a.SeverityBand, a.CompositeScore, a.Title, a.Description,
		suppliersJSON, materialsJSON, alternatesJSON, a.Recommendation, a.Acknowledged, a.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
	}

	r.log.Info().Str("id", a.ID).Str("band", string(a.SeverityBand)).Msg("alert created")
	return nil
}

// Get retrieves a single alert by ID.
func (r *AlertRepository) Get(id string) (*domain.Alert, error) {
	row := r.db.QueryRow(alertSelectQuery+" WHERE id = ?", id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetByRiskEventID enforces the one-alert-per-risk-event invariant: the
// alerting stage checks this before inserting so a redelivered message
// never double-emits.
func (r *AlertRepository) GetByRiskEventID(riskEventID string) (*domain.Alert, error) {
	row := r.db.QueryRow(alertSelectQuery+" WHERE risk_event_id = ?", riskEventID)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListOptions filters the alert listing query.
type ListOptions struct {
	UnacknowledgedOnly bool
	SeverityBand       domain.SeverityBand // empty means any band
	Since              time.Time           // zero means no lower bound
	Limit              int
}

// List returns alerts matching opts, sorted by composite score descending.
func (r *AlertRepository) List(opts ListOptions) ([]*domain.Alert, error) {
	query := alertSelectQuery + " WHERE 1=1"
	var args []interface{}

	if opts.UnacknowledgedOnly {
		query += " AND acknowledged = 0"
	}
	if opts.SeverityBand != "" {
		query += " AND severity_band = ?"
		args = append(args, opts.SeverityBand)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	query += " ORDER BY composite_score DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Acknowledge marks an alert as acknowledged by the given actor.
func (r *AlertRepository) Acknowledge(id string, by string) error {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE alerts SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ?
	`, by, now, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for alert %s: %w", id, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByBand returns the number of unresolved alerts per severity band,
// used by the /summary aggregate endpoint.
func (r *AlertRepository) CountByBand() (map[domain.SeverityBand]int, error) {
	rows, err := r.db.Query(`
		SELECT severity_band, COUNT(*) FROM alerts
		WHERE resolved_at IS NULL
		GROUP BY severity_band
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by band: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SeverityBand]int)
	for rows.Next() {
		var band domain.SeverityBand
		var count int
		if err := rows.Scan(&band, &count); err != nil {
			return nil, err
		}
		counts[band] = count
	}
	return counts, rows.Err()
}

const alertSelectQuery = `
	SELECT id, risk_event_id, severity_band, composite_score, title, description,
	       affected_suppliers_json, affected_materials_json, alternates_json,
	       recommendation, acknowledged, acknowledged_by, acknowledged_at, created_at, resolved_at
	FROM alerts
`

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var suppliersJSON, materialsJSON, alternatesJSON string
	var ackBy sql.NullString
	var ackAt, resolvedAt sql.NullTime

	err := row.Scan(&a.ID, &a.RiskEventID, &a.SeverityBand, &a.CompositeScore, &a.Title,
		&a.Description, &suppliersJSON, &materialsJSON, &alternatesJSON, &a.Recommendation,
		&a.Acknowledged, &ackBy, &ackAt, &a.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if ackBy.Valid {
		a.AcknowledgedBy = ackBy.String
	}
	if ackAt.Valid {
		a.AcknowledgedAt = &ackAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	if err := json.Unmarshal([]byte(suppliersJSON), &a.AffectedSuppliers); err != nil {
		return nil, fmt.Errorf("failed to decode affected suppliers for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(materialsJSON), &a.AffectedMaterials); err != nil {
		return nil, fmt.Errorf("failed to decode affected materials for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(alternatesJSON), &a.Alternates); err != nil {
		return nil, fmt.Errorf("failed to decode alternates for %s: %w", a.ID, err)
	}

	return &a, nil
}
