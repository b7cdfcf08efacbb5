package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeffrey/intellinieuws/internal/models"
)

func TestScore_NilCategoryOrNoKeywords(t *testing.T) {
	assert.Equal(t, 0.0, Score("title", "content", nil))
	assert.Equal(t, 0.0, Score("title", "content", &models.Category{}))
}

func TestScore_EmptyArticleText(t *testing.T) {
	cat := &models.Category{Keywords: []string{"python"}}
	assert.Equal(t, 0.0, Score("", "", cat))
}

func TestScore_TitleMatchScoresHigherThanContentOnly(t *testing.T) {
	cat := &models.Category{Keywords: []string{"python"}}
	titleScore := Score("Python releases new version", "unrelated text here", cat)
	contentScore := Score("Unrelated headline", "this mentions python once", cat)
	assert.Greater(t, titleScore, contentScore)
}

func TestScore_ExcludeKeywordPenalizes(t *testing.T) {
	cat := &models.Category{
		Keywords:        []string{"python"},
		ExcludeKeywords: []string{"snake"},
	}
	withoutExclude := Score("Python conference today", "great talks on python", &models.Category{Keywords: cat.Keywords})
	withExclude := Score("Python conference today", "a python snake escaped the zoo", cat)
	assert.Less(t, withExclude, withoutExclude)
}

func TestScore_ClampedToOne(t *testing.T) {
	cat := &models.Category{Keywords: []string{"python", "python", "python"}}
	score := Score("python python python python python", "python python python python python", cat)
	assert.LessOrEqual(t, score, 1.0)
}

func TestMatchedKeywords(t *testing.T) {
	cat := &models.Category{Keywords: []string{"python", "rust", "go"}}
	matched := MatchedKeywords("Python and Go both compile fast", "", cat)
	assert.ElementsMatch(t, []string{"python", "go"}, matched)
}

func TestMeetsThreshold(t *testing.T) {
	assert.True(t, MeetsThreshold(0.3))
	assert.False(t, MeetsThreshold(0.29))
}
