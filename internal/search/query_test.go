package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery_SingleKeyword(t *testing.T) {
	q := BuildQuery([]string{"python"}, nil)
	assert.Equal(t, `"python"`, q)
}

func TestBuildQuery_MultipleKeywordsOrJoined(t *testing.T) {
	q := BuildQuery([]string{"machine learning", "AI", "python"}, []string{"cryptocurrency"})
	assert.Equal(t, `("machine learning" OR "AI" OR "python") -"cryptocurrency"`, q)
}

func TestBuildQuery_MultipleExclusions(t *testing.T) {
	q := BuildQuery([]string{"python", "javascript"}, []string{"java", "php"})
	assert.Equal(t, `("python" OR "javascript") -"java" -"php"`, q)
}

func TestBuildQuery_EmptyKeywordsReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", BuildQuery(nil, []string{"x"}))
	assert.Equal(t, "", BuildQuery([]string{"   "}, nil))
}

func TestBuildQuery_SanitizesAndDedupes(t *testing.T) {
	q := BuildQuery([]string{" Python! ", "python", "C++"}, nil)
	assert.Equal(t, `("Python" OR "C")`, q)
}

func TestClassifyComplexity(t *testing.T) {
	assert.Equal(t, ComplexitySimple, ClassifyComplexity([]string{"a"}, nil))
	assert.Equal(t, ComplexityMedium, ClassifyComplexity([]string{"a", "b", "c"}, []string{"d"}))
	assert.Equal(t, ComplexityComplex, ClassifyComplexity([]string{"a", "b", "c", "d"}, []string{"e", "f"}))
}

func TestSplitTitleAndSource(t *testing.T) {
	title, source := splitTitleAndSource("Big News Happens - Example Times")
	assert.Equal(t, "Big News Happens", title)
	assert.Equal(t, "Example Times", source)

	title, source = splitTitleAndSource("No separator here")
	assert.Equal(t, "No separator here", title)
	assert.Equal(t, "", source)
}
