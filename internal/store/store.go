// Package store persists the risk pipeline's company profile, supplier
// graph, ingested articles, extracted risk events, and alerts.
package store

import (
	"database/sql"
	"fmt"

	"github.com/aristath/chainwatch/internal/database"
	"github.com/rs/zerolog"
)

// Store is the event store: one SQLite database, repositories per entity.
type Store struct {
	db *database.DB

	Companies  *CompanyRepository
	Suppliers  *SupplierRepository
	Articles   *ArticleRepository
	RiskEvents *RiskEventRepository
	Alerts     *AlertRepository
}

// Open creates the database connection, applies the schema, and wires
// the repositories.
func Open(dataDir string, log zerolog.Logger) (*Store, error) {
	db, err := database.New(database.Config{
		Path:    dataDir + "/chainwatch.db",
		Profile: database.ProfileLedger,
		Name:    "chainwatch",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	conn := db.Conn()
	return &Store{
		db:         db,
		Companies:  NewCompanyRepository(conn, log),
		Suppliers:  NewSupplierRepository(conn, log),
		Articles:   NewArticleRepository(conn, log),
		RiskEvents: NewRiskEventRepository(conn, log),
		Alerts:     NewAlertRepository(conn, log),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Conn exposes the raw connection for callers needing cross-repository
// transactions (the backup service reads the file path instead).
func (s *Store) Conn() *sql.DB {
	return s.db.Conn()
}

// Path returns the on-disk database file path.
func (s *Store) Path() string {
	return s.db.Path()
}
