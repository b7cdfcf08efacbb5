package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jeffrey/intellinieuws/pkg/breaker"
	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
	"github.com/jeffrey/intellinieuws/pkg/utils"
)

const googleNewsRSSBase = "https://news.google.com/rss/search"

// complexityDelay mirrors the original engine's per-complexity rate-limit
// delay table.
var complexityDelay = map[Complexity]time.Duration{
	ComplexitySimple:  1 * time.Second,
	ComplexityMedium:  1500 * time.Millisecond,
	ComplexityComplex: 2 * time.Second,
}

// Result is one hit returned by a search.
type Result struct {
	Title       string
	URL         string
	PublishedAt *time.Time
	Source      string
}

// Client searches Google News RSS for a category's keywords, applying
// per-host rate limiting and circuit-breaker protection.
type Client struct {
	parser    *gofeed.Parser
	limiter   *utils.ScraperRateLimiter
	breakers  *breaker.Manager
	robots    *utils.RobotsChecker // nil disables the robots.txt gate
	log       *logger.Logger
	userAgent string
	metrics   *metrics.Metrics
}

// WithRobotsChecker enables a robots.txt gate before every search request.
// Optional.
func (c *Client) WithRobotsChecker(rc *utils.RobotsChecker) *Client {
	c.robots = rc
	return c
}

// WithMetrics attaches the Prometheus bundle used to record
// search_request_duration_seconds. Optional.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// Config controls how many results a search returns, with what locale, and
// over what time window. Period and the StartDate/EndDate pair are mutually
// exclusive; if both are set, Period wins and Search logs a warning.
type Config struct {
	MaxResults int
	Language   string
	Country    string
	Period     string // one of models.AllowedPeriodTokens, e.g. "7d"
	StartDate  *time.Time
	EndDate    *time.Time
}

func DefaultConfig() Config {
	return Config{MaxResults: 100, Language: "en", Country: "US"}
}

func NewClient(breakers *breaker.Manager, log *logger.Logger, userAgent string) *Client {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Client{
		parser:    parser,
		limiter:   utils.NewScraperRateLimiter(1),
		breakers:  breakers,
		log:       log,
		userAgent: userAgent,
	}
}

const breakerName = "google_news_search"

var breakerConfig = breaker.Config{
	FailureThreshold: 3,
	RecoveryTimeout:  300 * time.Second,
	SuccessThreshold: 1,
	CallTimeout:      30 * time.Second,
	MonitoredKinds: map[crawlerr.Kind]bool{
		crawlerr.KindGoogleNewsUnavail: true,
		crawlerr.KindExtractionTimeout: true,
		crawlerr.KindExtractionNetwork: true,
	},
}

// Search builds a query from keywords/excludeKeywords, rate-limits by
// query complexity, and fetches the Google News RSS feed through the
// circuit breaker. Returned URLs are deduplicated and capped at
// cfg.MaxResults.
func (c *Client) Search(ctx context.Context, keywords, excludeKeywords []string, cfg Config, correlationID string) ([]Result, error) {
	if len(keywords) == 0 {
		return nil, crawlerr.New(crawlerr.KindValidation, "keywords list cannot be empty")
	}

	query := BuildQuery(keywords, excludeKeywords)
	if query == "" {
		return nil, crawlerr.New(crawlerr.KindValidation, "no usable keywords after sanitization")
	}

	if cfg.Period != "" && (cfg.StartDate != nil || cfg.EndDate != nil) {
		c.log.WithFields(map[string]interface{}{"correlation_id": correlationID, "period": cfg.Period}).
			Warn("both period and start/end date supplied; period takes precedence")
		cfg.StartDate, cfg.EndDate = nil, nil
	}

	complexity := ClassifyComplexity(keywords, excludeKeywords)

	delay := complexityDelay[complexity]
	if delay == 0 {
		delay = 2 * time.Second
	}
	select {
	case <-time.After(delay): // query-complexity-scaled throttle, matches original engine
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	feedURL := buildFeedURL(query, cfg)
	c.log.WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"search_query":   query,
		"query_complexity": string(complexity),
		"feed_url":       feedURL,
	}).Info("executing Google News search")

	if err := c.limiter.Wait(ctx, "news.google.com"); err != nil {
		return nil, err
	}

	if c.robots != nil {
		allowed, err := c.robots.IsAllowed(feedURL)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{"correlation_id": correlationID}).
				Warn("robots.txt check failed, proceeding")
		} else if !allowed {
			return nil, crawlerr.New(crawlerr.KindValidation, "search request disallowed by robots.txt")
		}
	}

	requestStart := time.Now()
	feed, err := breaker.CallWithBreaker(ctx, c.breakers, breakerName, breakerConfig, func(ctx context.Context) (*gofeed.Feed, error) {
		f, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return nil, crawlerr.Wrap(crawlerr.KindGoogleNewsUnavail, err, "google news RSS fetch failed")
		}
		return f, nil
	})
	if c.metrics != nil {
		c.metrics.SearchRequestDuration.WithLabelValues(string(complexity)).Observe(time.Since(requestStart).Seconds())
	}
	if err != nil {
		c.log.WithError(err).WithFields(map[string]interface{}{"correlation_id": correlationID}).Error("google news search failed")
		return nil, err
	}

	results := dedupeResults(feed.Items, cfg.MaxResults)
	c.log.WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"urls_found":     len(results),
	}).Info("google news search completed")
	return results, nil
}

// splitTitleAndSource splits a Google News RSS item title of the form
// "Headline text - Publisher Name" into its two parts. If no separator is
// found the whole string is returned as the title.
func splitTitleAndSource(raw string) (title, source string) {
	idx := strings.LastIndex(raw, " - ")
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], raw[idx+3:]
}

// dateOnlyLayout is Google News's expected format for the after:/before:
// query operators.
const dateOnlyLayout = "2006-01-02"

func buildFeedURL(query string, cfg Config) string {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	ceid := fmt.Sprintf("%s:%s", cfg.Country, cfg.Language)

	switch {
	case cfg.Period != "":
		query = query + " when:" + cfg.Period
	case cfg.StartDate != nil && cfg.EndDate != nil:
		query = query + " after:" + cfg.StartDate.Format(dateOnlyLayout) + " before:" + cfg.EndDate.Format(dateOnlyLayout)
	}

	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", cfg.Language)
	v.Set("gl", cfg.Country)
	v.Set("ceid", ceid)
	return googleNewsRSSBase + "?" + v.Encode()
}

func dedupeResults(items []*gofeed.Item, maxResults int) []Result {
	seen := make(map[string]bool, len(items))
	out := make([]Result, 0, len(items))

	for _, item := range items {
		if item == nil || item.Link == "" {
			continue
		}
		if !strings.HasPrefix(item.Link, "http://") && !strings.HasPrefix(item.Link, "https://") {
			continue
		}
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		title, source := splitTitleAndSource(item.Title)
		r := Result{Title: title, URL: item.Link, Source: source}
		if item.PublishedParsed != nil {
			r.PublishedAt = item.PublishedParsed
		}
		out = append(out, r)

		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out
}
