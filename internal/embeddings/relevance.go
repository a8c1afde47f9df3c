// Package embeddings filters ingested articles for relevance to the
// company's keyword profile before the expensive LLM extraction step
// runs, using cosine similarity over bag-of-words vectors.
package embeddings

import (
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/events"
)

// Vector is a sparse bag-of-words embedding keyed by lowercased token.
type Vector map[string]float64

// Embed tokenizes text into a term-frequency vector. This is intentionally
// not a learned embedding model — the relevance filter only needs a cheap,
// deterministic signal to decide whether an article is worth sending to
// the LLM at all.
func Embed(text string) Vector {
	v := make(Vector)
	for _, tok := range tokenize(text) {
		v[tok]++
	}
	return v
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return fields
}

// cosine computes cosine similarity between two sparse vectors by
// projecting onto their shared vocabulary, then using gonum/floats for
// the dot product and norm arithmetic.
func cosine(a, b Vector) float64 {
	vocab := make(map[string]int, len(a)+len(b))
	for k := range a {
		if _, ok := vocab[k]; !ok {
			vocab[k] = len(vocab)
		}
	}
	for k := range b {
		if _, ok := vocab[k]; !ok {
			vocab[k] = len(vocab)
		}
	}
	if len(vocab) == 0 {
		return 0
	}

	av := make([]float64, len(vocab))
	bv := make([]float64, len(vocab))
	for k, i := range vocab {
		av[i] = a[k]
		bv[i] = b[k]
	}

	normA := floats.Norm(av, 2)
	normB := floats.Norm(bv, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(av, bv) / (normA * normB)
}

// RelevanceFilter decides whether an article is worth extracting, by
// cosine similarity of its text against the company's keyword profile.
// The keyword vector is cached and cleared on each CompanyProfileChanged
// event on the bus — the one process-wide cache this component owns. No
// package in this module emits CompanyProfileChanged.
type RelevanceFilter struct {
	threshold float64

	mu       sync.RWMutex
	keywords Vector
}

// NewRelevanceFilter builds a filter at the given threshold (0-1) and
// subscribes it to company-profile-change notifications on bus.
func NewRelevanceFilter(threshold float64, bus *events.Bus) *RelevanceFilter {
	f := &RelevanceFilter{threshold: threshold}
	if bus != nil {
		bus.Subscribe(events.CompanyProfileChanged, func(events.EventWithData) {
			f.invalidate()
		})
	}
	return f
}

// SetCompanyProfile (re)computes and caches the keyword vector for c.
func (f *RelevanceFilter) SetCompanyProfile(c *domain.Company) {
	text := strings.Join(append(append([]string{c.Name, c.Industry}, c.Materials...), c.Geographies...), " ")
	v := Embed(text)

	f.mu.Lock()
	f.keywords = v
	f.mu.Unlock()
}

func (f *RelevanceFilter) invalidate() {
	f.mu.Lock()
	f.keywords = nil
	f.mu.Unlock()
}

// IsRelevant reports whether articleText is similar enough to the cached
// keyword profile to warrant extraction. If no profile has been set yet,
// everything is treated as relevant (fail open — better to over-extract
// than silently drop articles before a profile exists).
func (f *RelevanceFilter) IsRelevant(articleText string) (bool, float64) {
	f.mu.RLock()
	keywords := f.keywords
	f.mu.RUnlock()

	if keywords == nil {
		return true, 1.0
	}

	score := cosine(Embed(articleText), keywords)
	return score > f.threshold, score
}
