package resolver

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFromQueryParam_DirectURLParam(t *testing.T) {
	raw := "https://news.google.com/rss/articles/xyz?url=https%3A%2F%2Fexample.com%2Fstory"
	resolved, ok := resolveFromQueryParam(raw)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/story", resolved)
}

func TestResolveFromQueryParam_NoMatch(t *testing.T) {
	_, ok := resolveFromQueryParam("https://news.google.com/rss/articles/xyz")
	assert.False(t, ok)
}

func TestIsUsablePublisherURL(t *testing.T) {
	assert.True(t, isUsablePublisherURL("https://example.com/a"))
	assert.False(t, isUsablePublisherURL("https://news.google.com/a"))
	assert.False(t, isUsablePublisherURL("https://example.com/a.png"))
	assert.False(t, isUsablePublisherURL("not-a-url"))
}

func TestResolveViaBase64Decode(t *testing.T) {
	inner := "https://example.com/article/1234"
	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(inner))
	raw := "https://news.google.com/articles/" + encoded

	resolved, ok := resolveViaBase64Decode(raw)
	assert.True(t, ok)
	assert.Equal(t, inner, resolved)
}

func TestResolveViaBase64Decode_NoArticlesSegment(t *testing.T) {
	_, ok := resolveViaBase64Decode("https://news.google.com/rss/search?q=test")
	assert.False(t, ok)
}

func TestExtractHTTPURLSubstring(t *testing.T) {
	candidate, ok := extractHTTPURLSubstring(`garbage https://example.com/real-story?x=1 trailing`)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/real-story?x=1", candidate)
}

func TestBase64URLDecodeWithPadding_RepairsMissingPadding(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("hello world"))
	trimmed := raw
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	decoded, ok := base64URLDecodeWithPadding(trimmed)
	assert.True(t, ok)
	assert.Equal(t, "hello world", string(decoded))
}
