package extract

import (
	"compress/gzip"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/utils"
)

// htmlClient downloads and reduces a page to plain article text via a
// cascading selector strategy: source-specific, generic, then raw body
// paragraphs as last resort.
type htmlClient struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
	rotator   *utils.UserAgentRotator
	selectors SelectorSet
	log       *logger.Logger
}

func newHTMLClient(selectors SelectorSet, log *logger.Logger) *htmlClient {
	return &htmlClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sanitizer: bluemonday.StrictPolicy(),
		rotator:   utils.NewUserAgentRotator(true),
		selectors: selectors,
		log:       log.WithComponent("html-extractor"),
	}
}

// parsed is the common parse-contract output shared by the HTTP and
// browser paths.
type parsed struct {
	Title       string
	Content     string
	Authors     []string
	PublishDate string
	TopImage    string
}

func (c *htmlClient) fetchAndParse(ctx context.Context, targetURL, source string) (parsed, error) {
	body, err := c.fetchHTML(ctx, targetURL)
	if err != nil {
		return parsed{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return parsed{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := c.extractBySource(doc, source)
	if content == "" {
		content = c.extractGeneric(doc)
	}
	if content == "" {
		content = c.extractBodyText(doc)
	}

	return parsed{
		Title:       extractTitle(doc),
		Content:     cleanText(c.sanitizer.Sanitize(content)),
		Authors:     extractAuthors(doc),
		PublishDate: extractPublishDate(doc),
		TopImage:    extractTopImage(doc),
	}, nil
}

// parseBody runs the same selector cascade as fetchAndParse against HTML
// already obtained out-of-band (the browser-rendered DOM).
func (c *htmlClient) parseBody(body, source string) (parsed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return parsed{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := c.extractBySource(doc, source)
	if content == "" {
		content = c.extractGeneric(doc)
	}
	if content == "" {
		content = c.extractBodyText(doc)
	}

	return parsed{
		Title:       extractTitle(doc),
		Content:     cleanText(c.sanitizer.Sanitize(content)),
		Authors:     extractAuthors(doc),
		PublishDate: extractPublishDate(doc),
		TopImage:    extractTopImage(doc),
	}, nil
}

func (c *htmlClient) fetchHTML(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", c.rotator.GetUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.rotator.GetAcceptLanguage())
	if referer := c.rotator.GetReferer(); referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = reader
	}

	raw, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}

func (c *htmlClient) extractBySource(doc *goquery.Document, source string) string {
	for _, selector := range c.selectors.For(source) {
		if content := doc.Find(selector).Text(); len(strings.TrimSpace(content)) > 200 {
			return content
		}
	}
	return ""
}

func (c *htmlClient) extractGeneric(doc *goquery.Document) string {
	for _, selector := range genericSelectors {
		if content := doc.Find(selector).Text(); len(strings.TrimSpace(content)) > 200 {
			return content
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 50 && !isNavigationText(text) {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func (c *htmlClient) extractBodyText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, .advertisement, .ad, .menu").Remove()

	lines := strings.Split(doc.Find("body").Text(), "\n")
	var valid []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 100 && !isNavigationText(trimmed) {
			valid = append(valid, trimmed)
		}
	}
	if len(valid) < 3 {
		return ""
	}
	return strings.Join(valid, "\n\n")
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").Text())
}

func extractAuthors(doc *goquery.Document) []string {
	var authors []string
	if a, ok := doc.Find("meta[name='author']").Attr("content"); ok && a != "" {
		authors = append(authors, a)
	}
	doc.Find("[rel='author'], .author, .byline").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			authors = append(authors, t)
		}
	})
	return dedupeStrings(authors)
}

func extractPublishDate(doc *goquery.Document) string {
	if d, ok := doc.Find("meta[property='article:published_time']").Attr("content"); ok && d != "" {
		return d
	}
	if d, ok := doc.Find("time").Attr("datetime"); ok && d != "" {
		return d
	}
	return ""
}

func extractTopImage(doc *goquery.Document) string {
	if img, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		return img
	}
	return ""
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func cleanText(text string) string {
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func isNavigationText(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range navigationPhrases {
		if strings.Contains(lower, phrase) && len(text) < 100 {
			return true
		}
	}
	return false
}
