package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestLinkEntitiesExactMatch(t *testing.T) {
	names := map[string]string{"sup-1": "Northfield Metals", "sup-2": "Delta Alloys"}

	linked, unmatched := LinkEntities([]string{"Northfield Metals"}, names)

	assert.Equal(t, []string{"sup-1"}, linked)
	assert.Empty(t, unmatched)
}

func TestLinkEntitiesSubstringMatch(t *testing.T) {
	names := map[string]string{"sup-1": "Northfield Metals Ltd"}

	linked, unmatched := LinkEntities([]string{"Northfield Metals"}, names)

	assert.Equal(t, []string{"sup-1"}, linked)
	assert.Empty(t, unmatched)
}

func TestLinkEntitiesCaseInsensitive(t *testing.T) {
	names := map[string]string{"sup-1": "Northfield Metals"}

	linked, _ := LinkEntities([]string{"NORTHFIELD METALS"}, names)

	assert.Equal(t, []string{"sup-1"}, linked)
}

func TestLinkEntitiesUnmatchedRetained(t *testing.T) {
	names := map[string]string{"sup-1": "Northfield Metals"}

	linked, unmatched := LinkEntities([]string{"Unrelated Corp"}, names)

	assert.Empty(t, linked)
	assert.Equal(t, []string{"Unrelated Corp"}, unmatched)
}

func TestLinkEntitiesDeduplicatesSameSupplier(t *testing.T) {
	names := map[string]string{"sup-1": "Northfield Metals"}

	linked, _ := LinkEntities([]string{"Northfield Metals", "northfield metals"}, names)

	assert.Len(t, linked, 1)
}

func TestIsComplexByLength(t *testing.T) {
	longBody := make([]byte, complexityThresholdChars+1)
	for i := range longBody {
		longBody[i] = 'a'
	}
	article := &domain.Article{Headline: "routine update", Body: string(longBody)}
	assert.True(t, isComplex(article))
}

func TestIsComplexByGeopoliticalTerm(t *testing.T) {
	article := &domain.Article{Headline: "New tariff announced on steel imports", Body: "short"}
	assert.True(t, isComplex(article))
}

func TestIsComplexFalseForRoutineShortArticle(t *testing.T) {
	article := &domain.Article{Headline: "Quarterly earnings released", Body: "short body"}
	assert.False(t, isComplex(article))
}
