package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatform_Valid(t *testing.T) {
	for _, p := range KnownPlatforms {
		assert.True(t, p.Valid(), "platform %s", p)
	}
	assert.False(t, Platform("video-site").Valid())
	assert.False(t, Platform("").Valid())
}

func TestScrapedItem_Score(t *testing.T) {
	item := ScrapedItem{Engagement: Engagement{Likes: 10, Comments: 4, Shares: 2}}
	assert.Equal(t, 24, item.Score())

	assert.Equal(t, 0, ScrapedItem{}.Score())
}

func TestInsightSet_Total(t *testing.T) {
	set := InsightSet{
		Features:     []FeatureInsight{{Description: "a"}},
		Complaints:   []ComplaintInsight{{Description: "b"}, {Description: "c"}},
		Alternatives: []AlternativeInsight{{Name: "d"}},
	}
	assert.Equal(t, 4, set.Total())
}
