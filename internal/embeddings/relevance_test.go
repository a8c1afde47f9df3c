package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chainwatch/internal/domain"
)

func TestCosineIdenticalVectorsIsOne(t *testing.T) {
	v := Embed("steel copper zinc steel")
	assert.InDelta(t, 1.0, cosine(v, v), 1e-9)
}

func TestCosineDisjointVectorsIsZero(t *testing.T) {
	a := Embed("steel copper")
	b := Embed("textiles apparel")
	assert.Equal(t, 0.0, cosine(a, b))
}

func TestRelevanceFilterFailsOpenWithoutProfile(t *testing.T) {
	f := NewRelevanceFilter(0.3, nil)
	relevant, score := f.IsRelevant("anything at all")
	assert.True(t, relevant)
	assert.Equal(t, 1.0, score)
}

func TestRelevanceFilterMatchesProfile(t *testing.T) {
	f := NewRelevanceFilter(0.2, nil)
	f.SetCompanyProfile(&domain.Company{
		Name:      "Acme Manufacturing",
		Industry:  "automotive",
		Materials: []string{"steel", "aluminum"},
	})

	relevant, score := f.IsRelevant("Steel tariffs disrupt automotive supply chains")
	assert.True(t, relevant)
	assert.Greater(t, score, 0.2)
}

func TestRelevanceFilterRejectsScoreExactlyAtThreshold(t *testing.T) {
	profile := Embed("steel aluminum")
	score := cosine(Embed("steel"), profile)
	require.Greater(t, score, 0.0)

	f := NewRelevanceFilter(score, nil)
	f.SetCompanyProfile(&domain.Company{Name: "steel aluminum"})

	relevant, got := f.IsRelevant("steel")
	assert.InDelta(t, score, got, 1e-9)
	assert.False(t, relevant, "a score exactly at the threshold must be rejected")
}

func TestRelevanceFilterRejectsUnrelatedArticle(t *testing.T) {
	f := NewRelevanceFilter(0.3, nil)
	f.SetCompanyProfile(&domain.Company{
		Name:      "Acme Manufacturing",
		Industry:  "automotive",
		Materials: []string{"steel", "aluminum"},
	})

	relevant, _ := f.IsRelevant("Local bakery wins regional pastry award")
	require.False(t, relevant)
}
