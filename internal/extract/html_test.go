package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

const testArticleHTML = `<html>
<head>
	<title>Fallback Title</title>
	<meta property="og:title" content="OG Title" />
	<meta property="og:image" content="https://example.com/hero.jpg" />
	<meta property="article:published_time" content="2026-07-01T10:00:00Z" />
	<meta name="author" content="Jane Reporter" />
</head>
<body>
	<h1>Headline From H1</h1>
	<article>
		<p>This is the first paragraph of the article body, long enough to pass the content length threshold comfortably.</p>
		<p>This is the second paragraph continuing the story with more detail about the event being reported.</p>
	</article>
</body>
</html>`

func TestFetchAndParse_ExtractsAllFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testArticleHTML))
	}))
	defer srv.Close()

	c := newHTMLClient(DefaultSelectors(), testLogger())
	result, err := c.fetchAndParse(context.Background(), srv.URL, "example.com")
	require.NoError(t, err)

	assert.Equal(t, "Headline From H1", result.Title)
	assert.Contains(t, result.Content, "first paragraph")
	assert.Equal(t, []string{"Jane Reporter"}, result.Authors)
	assert.Equal(t, "2026-07-01T10:00:00Z", result.PublishDate)
	assert.Equal(t, "https://example.com/hero.jpg", result.TopImage)
}

func TestFetchAndParse_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newHTMLClient(DefaultSelectors(), testLogger())
	_, err := c.fetchAndParse(context.Background(), srv.URL, "example.com")
	assert.Error(t, err)
}

func TestExtractTitle_FallsBackToOGThenTitleTag(t *testing.T) {
	doc := mustParseDoc(t, `<html><head><title>T</title><meta property="og:title" content="OG"/></head><body></body></html>`)
	assert.Equal(t, "OG", extractTitle(doc))

	doc = mustParseDoc(t, `<html><head><title>Only Title</title></head><body></body></html>`)
	assert.Equal(t, "Only Title", extractTitle(doc))
}

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	out := cleanText("  Hello   world  \n\n  again  ")
	assert.Equal(t, "Hello world again", out)
}

func TestIsNavigationText(t *testing.T) {
	assert.True(t, isNavigationText("Subscribe to our newsletter"))
	assert.False(t, isNavigationText("This is a genuine sentence about a real news event that happened today."))
}

func TestSelectorSet_ForUnknownSourceReturnsNil(t *testing.T) {
	s := SelectorSet{"known.com": {".body"}}
	assert.Nil(t, s.For("unknown.com"))
	assert.Equal(t, []string{".body"}, s.For("known.com"))
}

func mustParseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}
