package ingestion

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/aristath/chainwatch/internal/domain"
)

// Fingerprint computes a stable MD5 digest over the lowercase-trimmed
// headline alone, used both as the article's store ID and the dedup key
// in the stream substrate. Two fetches of the same headline — even from
// different sources, URLs, or connector runs — collapse to the same
// fingerprint, so only one article ever exists per headline within the
// dedup TTL.
func Fingerprint(headline string) string {
	h := md5.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(headline))))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize converts a connector's raw event into a store-ready Article.
// The fingerprint becomes the article ID, so normalization is the single
// point where identity is assigned — entity linking and scoring never
// mint a new article ID.
func Normalize(raw RawEvent) *domain.Article {
	return &domain.Article{
		ID:        Fingerprint(raw.Headline),
		Timestamp: raw.Timestamp,
		Source:    raw.Source,
		Headline:  strings.TrimSpace(raw.Headline),
		Body:      strings.TrimSpace(raw.Body),
		URL:       raw.URL,
	}
}

// NormalizedEventPayload is the msgpack-encoded message published to the
// normalized_events stream: just enough to let the extraction stage look
// the article up, avoiding a second copy of the (possibly large) body in
// the stream itself.
type NormalizedEventPayload struct {
	ArticleID string `msgpack:"article_id"`
}
