package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/pkg/breaker"
)

func newTestExtractor() *Extractor {
	cfg := DefaultConfig()
	cfg.JSRenderEnabled = false // no browser pool in unit tests
	return New(cfg, DefaultSelectors(), nil, breaker.NewManager(breaker.Config{}), testLogger(), nil)
}

func TestExtractMetadata_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testArticleHTML))
	}))
	defer srv.Close()

	e := newTestExtractor()
	article, err := e.ExtractMetadata(context.Background(), srv.URL, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "Headline From H1", article.Title)
	assert.Equal(t, "standard", article.ExtractionMethod)
	assert.True(t, article.ExtractionSuccess)
}

func TestExtractMetadata_NoTitleFailsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head></head><body><p>short</p></body></html>`))
	}))
	defer srv.Close()

	e := newTestExtractor()
	_, err := e.ExtractMetadata(context.Background(), srv.URL, "corr-2")
	assert.Error(t, err)
}

func TestExtractMetadata_NoBrowserFallbackReturnsOriginalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestExtractor()
	_, err := e.ExtractMetadata(context.Background(), srv.URL, "corr-3")
	assert.Error(t, err)
}

func TestURLHashAndContentHash(t *testing.T) {
	h1 := URLHash("https://example.com/a")
	h2 := URLHash("https://example.com/a")
	h3 := URLHash("https://example.com/b")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	assert.Equal(t, "", ContentHash(""))
	assert.NotEqual(t, "", ContentHash("some content"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://www.example.com/story"))
	assert.Equal(t, "", hostOf(":not a url:"))
}
