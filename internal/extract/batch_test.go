package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailedArticle(t *testing.T) {
	a := failedArticle("https://news.google.com/articles/x", "", "boom", "google_news_no_redirect")
	assert.False(t, a.ExtractionSuccess)
	assert.Equal(t, "boom", a.ExtractionError)
	assert.Equal(t, "google_news_no_redirect", a.ExtractionMethod)
}

func TestExtractBatch_PartitionsGoogleNewsFromRegular(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testArticleHTML))
	}))
	defer srv.Close()

	e := newTestExtractor() // no browser pool configured, so the Google News leg fails fast

	urls := []string{
		"https://news.google.com/rss/articles/abc",
		srv.URL,
	}

	results := e.ExtractBatch(context.Background(), urls, "corr-batch")
	assert.Len(t, results, 2)

	var sawRegularSuccess, sawGoogleNewsFailure bool
	for _, a := range results {
		if a.ExtractionMethod == "standard" && a.ExtractionSuccess {
			sawRegularSuccess = true
		}
		if a.ExtractionMethod == "google_news_batch_failed" {
			sawGoogleNewsFailure = true
		}
	}
	assert.True(t, sawRegularSuccess)
	assert.True(t, sawGoogleNewsFailure)
}
