package extract

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jeffrey/intellinieuws/internal/models"
)

const (
	googleNewsBatchSize = 10
	maxTabsPerBrowser    = 10
)

var desktopChromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// blockedResourcePatterns mirrors spec §4.7.2 step 3: image/style/font
// assets are never needed to resolve a Google News redirect, so they're
// blocked per-tab to cut batch wall-clock and bandwidth.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg",
	"*.css", "*.woff", "*.woff2", "*.ttf", "*.eot", "*.ico",
}

// ExtractBatch partitions urls into Google News redirect links and regular
// publisher links, resolving the former with a shared-browser multi-tab
// strategy (since each link needs its own JS-driven redirect) and the
// latter through the ordinary single-URL path.
func (e *Extractor) ExtractBatch(ctx context.Context, urls []string, correlationID string) []*models.ArticleCreate {
	var googleNewsURLs, regularURLs []string
	for _, u := range urls {
		if strings.Contains(u, "news.google.com") {
			googleNewsURLs = append(googleNewsURLs, u)
		} else {
			regularURLs = append(regularURLs, u)
		}
	}

	var results []*models.ArticleCreate

	for _, u := range regularURLs {
		article, err := e.ExtractMetadata(ctx, u, correlationID)
		if err != nil {
			e.log.WithFields(map[string]interface{}{"url": u, "correlation_id": correlationID}).
				WithError(err).Warn("regular URL extraction failed")
			results = append(results, failedArticle(u, "", err.Error(), "extraction_failed"))
			continue
		}
		results = append(results, article)
	}

	if len(googleNewsURLs) > 0 {
		results = append(results, e.extractGoogleNewsBatches(ctx, googleNewsURLs, correlationID)...)
	}

	return results
}

func (e *Extractor) extractGoogleNewsBatches(ctx context.Context, urls []string, correlationID string) []*models.ArticleCreate {
	var all []*models.ArticleCreate

	totalBatches := (len(urls) + googleNewsBatchSize - 1) / googleNewsBatchSize
	for i := 0; i < len(urls); i += googleNewsBatchSize {
		end := i + googleNewsBatchSize
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[i:end]

		e.log.WithFields(map[string]interface{}{
			"batch_start":    i,
			"batch_size":     len(batch),
			"total_batches":  totalBatches,
			"correlation_id": correlationID,
		}).Info("processing google news batch")

		all = append(all, e.processBatchWithSingleBrowser(ctx, batch)...)

		if end < len(urls) {
			delay := time.Duration(5+rand.Intn(6)) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return all
			}
		}
	}
	return all
}

// processBatchWithSingleBrowser opens one browser and up to
// maxTabsPerBrowser tabs in sequence: Google News's redirect resolution
// needs its own page navigation per link, but sharing a browser process
// amortizes launch cost across the batch.
func (e *Extractor) processBatchWithSingleBrowser(ctx context.Context, batch []string) []*models.ArticleCreate {
	if e.browsers == nil {
		results := make([]*models.ArticleCreate, 0, len(batch))
		for _, u := range batch {
			results = append(results, failedArticle(u, "", "browser pool unavailable", "google_news_batch_failed"))
		}
		return results
	}

	b, err := e.browsers.Acquire(ctx)
	if err != nil {
		results := make([]*models.ArticleCreate, 0, len(batch))
		for _, u := range batch {
			results = append(results, failedArticle(u, "", err.Error(), "google_news_batch_failed"))
		}
		return results
	}
	defer e.browsers.Release(b)

	limit := len(batch)
	if limit > maxTabsPerBrowser {
		limit = maxTabsPerBrowser
	}

	results := make([]*models.ArticleCreate, 0, limit)
	for i := 0; i < limit; i++ {
		results = append(results, e.processGoogleNewsTab(ctx, b, batch[i]))

		if i < limit-1 {
			delay := time.Duration(1+rand.Intn(3)) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return results
			}
		}
	}
	return results
}

// processGoogleNewsTab navigates a single tab to a Google News redirect
// link, waits out the redirect latency, and hands the final publisher URL
// to the standard extraction path.
func (e *Extractor) processGoogleNewsTab(ctx context.Context, b *rod.Browser, googleNewsURL string) *models.ArticleCreate {
	page, err := b.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return failedArticle(googleNewsURL, "", err.Error(), "google_news_batch_failed")
	}
	defer page.Close()

	_ = proto.NetworkSetBlockedURLs{Urls: blockedResourcePatterns}.Call(page)
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: desktopChromeUA})

	if err := page.Navigate(googleNewsURL); err != nil {
		return failedArticle(googleNewsURL, "", err.Error(), "google_news_no_redirect")
	}
	time.Sleep(4 * time.Second) // critical for Google News redirect

	finalURL := currentURL(page)
	if finalURL == googleNewsURL || strings.Contains(finalURL, "news.google.com") {
		if err := page.Timeout(15 * time.Second).WaitLoad(); err == nil {
			time.Sleep(5 * time.Second)
			finalURL = currentURL(page)
		}
	}

	if finalURL == googleNewsURL || strings.Contains(finalURL, "news.google.com") {
		return failedArticle(googleNewsURL, "", "no redirect from Google News URL", "google_news_no_redirect")
	}

	article, err := e.ExtractMetadata(ctx, finalURL, "")
	if err != nil {
		article = failedArticle(finalURL, googleNewsURL, err.Error(), "google_news_playwright_failed")
	} else {
		article.ExtractionMethod = "google_news_playwright"
		article.GoogleNewsURL = googleNewsURL
		article.FinalRedirectedURL = finalURL
	}
	return article
}

func currentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func failedArticle(sourceURL, googleNewsURL, extractionError, method string) *models.ArticleCreate {
	return &models.ArticleCreate{
		SourceURL:         sourceURL,
		GoogleNewsURL:     googleNewsURL,
		ExtractionMethod:  method,
		ExtractionSuccess: false,
		ExtractionError:   extractionError,
	}
}
