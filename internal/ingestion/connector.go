// Package ingestion pulls raw external events on a schedule, normalizes
// and deduplicates them, persists them, and publishes them onto the
// normalized_events stream for extraction to pick up.
package ingestion

import (
	"context"
	"time"
)

// RawEvent is what a Connector fetches before normalization: an
// unstructured item from an external source (a news feed, a filing
// tracker, a regulatory bulletin).
type RawEvent struct {
	Source    string
	Headline  string
	Body      string
	URL       string
	Timestamp time.Time
}

// Connector is the generic contract for an external source the ingestion
// stage polls. Individual connector implementations (RSS, a vendor API,
// a regulatory feed) live outside this package's scope — the spec treats
// them as external collaborators behind this one interface.
type Connector interface {
	// Name identifies the connector for logging.
	Name() string
	// Fetch retrieves new raw events since the last poll.
	Fetch(ctx context.Context) ([]RawEvent, error)
}
