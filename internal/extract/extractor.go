// Package extract downloads and parses articles, either by URL or in
// Google-News-aware batches, producing the common Article shape every
// downstream component consumes.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/jeffrey/intellinieuws/internal/extract/browser"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/breaker"
	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
	"github.com/jeffrey/intellinieuws/pkg/retry"
	"github.com/jeffrey/intellinieuws/pkg/utils"
)

const breakerName = "article_extraction"

var breakerConfig = breaker.Config{
	FailureThreshold: 5,
	RecoveryTimeout:  60 * time.Second,
	SuccessThreshold: 1,
	CallTimeout:      0, // extractor manages its own timeout split
	MonitoredKinds: map[crawlerr.Kind]bool{
		crawlerr.KindExtractionTimeout: true,
		crawlerr.KindExtractionNetwork: true,
	},
}

// Config controls extraction timeouts and whether the browser fallback may
// be used at all.
type Config struct {
	ExtractionTimeout time.Duration
	JSRenderEnabled   bool
	BrowserWaitTime   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExtractionTimeout: 30 * time.Second,
		JSRenderEnabled:   true,
		BrowserWaitTime:   3 * time.Second,
	}
}

// Extractor implements the single-URL and batched Google-News extraction
// paths described for C7.
type Extractor struct {
	cfg      Config
	html     *htmlClient
	browsers *browser.Pool // nil disables the JS-render fallback
	breakers *breaker.Manager
	robots   *utils.RobotsChecker // nil disables the robots.txt gate
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// WithRobotsChecker enables a robots.txt gate before every extraction.
// Optional.
func (e *Extractor) WithRobotsChecker(rc *utils.RobotsChecker) *Extractor {
	e.robots = rc
	return e
}

func New(cfg Config, selectors SelectorSet, browsers *browser.Pool, breakers *breaker.Manager, log *logger.Logger, m *metrics.Metrics) *Extractor {
	return &Extractor{
		cfg:      cfg,
		html:     newHTMLClient(selectors, log),
		browsers: browsers,
		breakers: breakers,
		log:      log.WithComponent("article-extractor"),
		metrics:  m,
	}
}

// ExtractMetadata implements the single-URL path: standard HTTP
// download+parse wrapped in retry+breaker, falling back to a headless
// browser render if JS-render is enabled and the standard path failed.
func (e *Extractor) ExtractMetadata(ctx context.Context, sourceURL string, correlationID string) (*models.ArticleCreate, error) {
	source := hostOf(sourceURL)

	if e.robots != nil {
		allowed, err := e.robots.IsAllowed(sourceURL)
		if err != nil {
			e.log.WithError(err).WithFields(map[string]interface{}{"correlation_id": correlationID, "url": sourceURL}).
				Warn("robots.txt check failed, proceeding")
		} else if !allowed {
			return nil, crawlerr.New(crawlerr.KindValidation, "extraction disallowed by robots.txt for "+sourceURL)
		}
	}

	result, err := retry.Run(ctx, e.log, e.metrics, "extract", retry.ExternalService, correlationID, func(ctx context.Context, attempt int) (parsed, error) {
		return breaker.CallWithBreaker(ctx, e.breakers, breakerName, breakerConfig, func(ctx context.Context) (parsed, error) {
			return e.standardPath(ctx, sourceURL, source)
		})
	})

	method := "standard"
	if err != nil {
		if !e.cfg.JSRenderEnabled || e.browsers == nil {
			e.recordStrategy(method, false)
			return nil, err
		}
		e.log.WithFields(map[string]interface{}{"correlation_id": correlationID, "url": sourceURL}).
			WithError(err).Warn("standard extraction failed, trying browser render")

		method = "browser"
		result, err = e.browserPath(ctx, sourceURL, source)
		if err != nil {
			e.recordStrategy(method, false)
			return nil, err
		}
	}
	e.recordStrategy(method, true)

	return e.assembleArticle(result, sourceURL, method)
}

func (e *Extractor) standardPath(ctx context.Context, sourceURL, source string) (parsed, error) {
	half := e.cfg.ExtractionTimeout / 2
	downloadCtx, cancel := context.WithTimeout(ctx, half)
	defer cancel()

	result, err := e.html.fetchAndParse(downloadCtx, sourceURL, source)
	if err != nil {
		if downloadCtx.Err() == context.DeadlineExceeded {
			return parsed{}, crawlerr.Wrap(crawlerr.KindExtractionTimeout, err, "download/parse timed out")
		}
		return parsed{}, crawlerr.Wrap(classifyHTTPError(err), err, "standard extraction failed")
	}
	return result, nil
}

func (e *Extractor) browserPath(ctx context.Context, sourceURL, source string) (parsed, error) {
	b, err := e.browsers.Acquire(ctx)
	if err != nil {
		return parsed{}, crawlerr.Wrap(crawlerr.KindExtractionNetwork, err, "failed to acquire browser")
	}
	defer e.browsers.Release(b)

	htmlBody, err := renderPage(ctx, b, sourceURL, e.cfg.BrowserWaitTime)
	if err != nil {
		return parsed{}, crawlerr.Wrap(crawlerr.KindExtractionNetwork, err, "browser render failed")
	}

	return e.html.parseBody(htmlBody, source)
}

func (e *Extractor) assembleArticle(p parsed, sourceURL, method string) (*models.ArticleCreate, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, crawlerr.New(crawlerr.KindExtractionParsing, "no title found")
	}

	content := p.Content
	if len(content) <= 50 {
		content = ""
	}

	var publishDate *time.Time
	if p.PublishDate != "" {
		if t, err := parseFlexibleDate(p.PublishDate); err == nil {
			publishDate = &t
		}
	}

	return &models.ArticleCreate{
		Title:             title,
		Content:           content,
		Author:            strings.Join(p.Authors, ", "),
		PublishDate:       publishDate,
		SourceURL:         sourceURL,
		ImageURL:          p.TopImage,
		ExtractionMethod:  method,
		ExtractionSuccess: true,
	}, nil
}

func (e *Extractor) recordStrategy(method string, success bool) {
	if e.metrics == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	e.metrics.ExtractionStrategy.WithLabelValues(method, outcome).Inc()
}

func classifyHTTPError(err error) crawlerr.Kind {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "dial") {
		return crawlerr.KindExtractionNetwork
	}
	return crawlerr.KindExtractionParsing
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// URLHash computes the dedup key for an article's source URL.
func URLHash(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// ContentHash computes the dedup/change-detection key for article content.
func ContentHash(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
