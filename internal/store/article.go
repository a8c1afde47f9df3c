package store

import (
	"database/sql"
	"fmt"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/rs/zerolog"
)

// ArticleRepository manages raw, normalized external events awaiting extraction.
type ArticleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewArticleRepository wires an ArticleRepository against db.
func NewArticleRepository(db *sql.DB, log zerolog.Logger) *ArticleRepository {
	return &ArticleRepository{db: db, log: log.With().Str("repository", "article").Logger()}
}

// Insert stores a newly normalized article. A duplicate fingerprint is a
// no-op, since the stream substrate's dedup check should already have
// caught it — this is a defense-in-depth unique constraint, not the
// primary dedup mechanism.
func (r *ArticleRepository) Insert(a *domain.Article) error {
	_, err := r.db.Exec(`
		INSERT INTO articles (id, timestamp, source, headline, body, url, processed, process_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.ID, a.Timestamp, a.Source, a.Headline, a.Body, a.URL, a.Processed, a.ProcessNote)

	if err != nil {
		return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
	}
	return nil
}

// Exists reports whether an article with the given fingerprint is already stored.
func (r *ArticleRepository) Exists(id string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check article existence for %s: %w", id, err)
	}
	return count > 0, nil
}

// MarkProcessed records the outcome of the extraction stage for an article.
func (r *ArticleRepository) MarkProcessed(id string, note string, riskEventID *string) error {
	_, err := r.db.Exec(`
		UPDATE articles SET processed = 1, process_note = ?, risk_event_id = ? WHERE id = ?
	`, note, riskEventID, id)
	if err != nil {
		return fmt.Errorf("failed to mark article %s processed: %w", id, err)
	}
	return nil
}

// Get retrieves a single article by fingerprint.
func (r *ArticleRepository) Get(id string) (*domain.Article, error) {
	row := r.db.QueryRow(articleSelectQuery+" WHERE id = ?", id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

const articleSelectQuery = `
	SELECT id, timestamp, source, headline, body, url, processed, process_note, risk_event_id
	FROM articles
`

func scanArticle(row rowScanner) (*domain.Article, error) {
	var a domain.Article
	var riskEventID sql.NullString
	err := row.Scan(&a.ID, &a.Timestamp, &a.Source, &a.Headline, &a.Body, &a.URL,
		&a.Processed, &a.ProcessNote, &riskEventID)
	if err != nil {
		return nil, err
	}
	if riskEventID.Valid {
		a.RiskEventID = &riskEventID.String
	}
	return &a, nil
}
