// Package resolver converts Google News redirect URLs into canonical
// publisher URLs via an ordered strategy pipeline, short-circuiting on the
// first strategy that yields a non-Google host.
package resolver

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/jeffrey/intellinieuws/internal/cache"
	"github.com/jeffrey/intellinieuws/internal/extract/browser"
	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
	"github.com/jeffrey/intellinieuws/pkg/utils"
)

// resolveHitTTL bounds how long a strategy hit is trusted: Google News
// redirect URLs eventually expire, so this is much shorter than the
// robots.txt TTL.
const resolveHitTTL = 6 * time.Hour

// resolveHit is what a successful Resolve is cached as, so a later call
// for the same raw URL (possibly on a different worker) can skip straight
// to the strategy that already worked.
type resolveHit struct {
	PublisherURL string `json:"publisher_url"`
	Strategy     string `json:"strategy"`
}

// Strategy names, used as metric/log labels.
const (
	StrategyQueryParam  = "query_param"
	StrategyRedirect    = "redirect_chase"
	StrategyBase64      = "base64_decode"
	StrategyBrowser     = "browser_fallback"
)

// Config bounds the resolver's per-URL and per-batch work.
type Config struct {
	PerURLTimeout     time.Duration
	BatchBudget       time.Duration
	BatchURLCap       int
	BrowserEnabled    bool
}

func DefaultConfig() Config {
	return Config{
		PerURLTimeout:  5 * time.Second,
		BatchBudget:    75 * time.Second,
		BatchURLCap:    15,
		BrowserEnabled: true,
	}
}

// Resolver resolves Google News redirect URLs to publisher URLs.
type Resolver struct {
	cfg        Config
	httpClient *http.Client
	browsers   *browser.Pool // nil if browser fallback disabled
	rotator    *utils.UserAgentRotator
	log        *logger.Logger
	metrics    *metrics.Metrics
	cache      *cache.Service
}

// WithCache attaches a shared strategy-hit cache so other workers resolving
// the same raw URL skip straight to the strategy that already worked.
// Optional.
func (r *Resolver) WithCache(c *cache.Service) *Resolver {
	r.cache = c
	return r
}

func New(cfg Config, browsers *browser.Pool, log *logger.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // manual redirect chase
			},
		},
		browsers: browsers,
		rotator:  utils.NewUserAgentRotator(true),
		log:      log.WithComponent("url-resolver"),
		metrics:  m,
	}
}

// Resolve runs the strategy pipeline against a single URL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PerURLTimeout)
	defer cancel()

	if r.cache != nil {
		var hit resolveHit
		if err := r.cache.Get(ctx, cache.GenerateKey(cache.PrefixResolver, rawURL), &hit); err == nil {
			r.record(hit.Strategy, true)
			return hit.PublisherURL, hit.Strategy, nil
		}
	}

	if resolved, strategy, err := r.resolveUncached(ctx, rawURL); err == nil {
		r.cacheHit(ctx, rawURL, resolved, strategy)
		return resolved, strategy, nil
	}
	return "", "", crawlerr.New(crawlerr.KindExtractionNetwork, "no strategy resolved a publisher URL for "+rawURL)
}

func (r *Resolver) cacheHit(ctx context.Context, rawURL, resolved, strategy string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.SetWithTTL(ctx, cache.GenerateKey(cache.PrefixResolver, rawURL), resolveHit{
		PublisherURL: resolved,
		Strategy:     strategy,
	}, resolveHitTTL)
}

func (r *Resolver) resolveUncached(ctx context.Context, rawURL string) (string, string, error) {
	if resolved, ok := resolveFromQueryParam(rawURL); ok {
		r.record(StrategyQueryParam, true)
		return resolved, StrategyQueryParam, nil
	}
	r.record(StrategyQueryParam, false)

	if resolved, ok := r.resolveViaRedirectChase(ctx, rawURL); ok {
		r.record(StrategyRedirect, true)
		return resolved, StrategyRedirect, nil
	}
	r.record(StrategyRedirect, false)

	if resolved, ok := resolveViaBase64Decode(rawURL); ok {
		r.record(StrategyBase64, true)
		return resolved, StrategyBase64, nil
	}
	r.record(StrategyBase64, false)

	if r.cfg.BrowserEnabled && r.browsers != nil {
		resolved, ok := r.resolveViaBrowser(ctx, rawURL)
		r.record(StrategyBrowser, ok)
		if ok {
			return resolved, StrategyBrowser, nil
		}
	}

	return "", "", crawlerr.New(crawlerr.KindExtractionNetwork, "no strategy resolved a publisher URL for "+rawURL)
}

func (r *Resolver) record(strategy string, hit bool) {
	if r.metrics == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.metrics.ResolveStrategy.WithLabelValues(strategy, outcome).Inc()
}

// ResolveBatch resolves urls under a shared batch time budget and URL count
// cap, stopping early (and returning what it has) if either is exceeded. A
// success rate below 20% is logged at error level.
func (r *Resolver) ResolveBatch(ctx context.Context, urls []string) map[string]string {
	if len(urls) > r.cfg.BatchURLCap {
		r.log.WithFields(map[string]interface{}{
			"requested": len(urls), "cap": r.cfg.BatchURLCap,
		}).Warn("batch URL count exceeds cap, truncating")
		urls = urls[:r.cfg.BatchURLCap]
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.BatchBudget)
	defer cancel()

	resolved := make(map[string]string, len(urls))
	attempted := 0
	for _, u := range urls {
		select {
		case <-ctx.Done():
			r.logBatchOutcome(attempted, len(resolved))
			return resolved
		default:
		}
		attempted++
		if publisherURL, _, err := r.Resolve(ctx, u); err == nil {
			resolved[u] = publisherURL
		}
	}

	r.logBatchOutcome(attempted, len(resolved))
	return resolved
}

func (r *Resolver) logBatchOutcome(attempted, succeeded int) {
	if attempted == 0 {
		return
	}
	rate := float64(succeeded) / float64(attempted)
	fields := map[string]interface{}{"attempted": attempted, "succeeded": succeeded, "success_rate": rate}
	if rate < 0.2 {
		r.log.WithFields(fields).Error("url resolution batch success rate below threshold")
	} else {
		r.log.WithFields(fields).Info("url resolution batch completed")
	}
}

// isGoogleHost reports whether host belongs to Google's properties.
func isGoogleHost(host string) bool {
	host = strings.ToLower(host)
	return strings.Contains(host, "google.com") || strings.Contains(host, "gstatic.com")
}

var rejectedExtensions = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|css|woff2?|ttf|eot|ico|js)(\?|$)`)

func isUsablePublisherURL(candidate string) bool {
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return false
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return false
	}
	if isGoogleHost(parsed.Host) {
		return false
	}
	if rejectedExtensions.MatchString(parsed.Path) {
		return false
	}
	return true
}

// --- Strategy 1: query-parameter extraction ---

func resolveFromQueryParam(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	if u := parsed.Query().Get("url"); strings.HasPrefix(u, "http") && isUsablePublisherURL(u) {
		return u, true
	}

	if strings.Contains(parsed.Path, "/articles/") {
		if idx := strings.Index(rawURL, "url="); idx >= 0 {
			rest := rawURL[idx+len("url="):]
			if amp := strings.IndexByte(rest, '&'); amp >= 0 {
				rest = rest[:amp]
			}
			if decoded, err := url.QueryUnescape(rest); err == nil && isUsablePublisherURL(decoded) {
				return decoded, true
			}
		}
	}
	return "", false
}

// --- Strategy 2: HTTP redirect chase ---

func (r *Resolver) resolveViaRedirectChase(ctx context.Context, rawURL string) (string, bool) {
	current := rawURL
	for hop := 0; hop < 3; hop++ {
		hopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		req, err := http.NewRequestWithContext(hopCtx, http.MethodHead, current, nil)
		if err != nil {
			cancel()
			return "", false
		}
		for k, v := range r.rotator.GetRandomHeaders() {
			req.Header.Set(k, v)
		}
		req.Header.Set("User-Agent", r.rotator.GetUserAgent())

		resp, err := r.httpClient.Do(req)
		cancel()
		if err != nil {
			return "", false
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return "", false
		}
		location := resp.Header.Get("Location")
		if location == "" {
			return "", false
		}
		resolved, err := url.Parse(current)
		if err == nil {
			if loc, err2 := url.Parse(location); err2 == nil {
				location = resolved.ResolveReference(loc).String()
			}
		}
		if isUsablePublisherURL(location) {
			return location, true
		}
		current = location
	}
	return "", false
}

// --- Strategy 3: encoded-article-id decode ---

func resolveViaBase64Decode(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	idx := strings.Index(parsed.Path, "/articles/")
	if idx < 0 {
		return "", false
	}
	segment := parsed.Path[idx+len("/articles/"):]
	if slash := strings.IndexByte(segment, '/'); slash >= 0 {
		segment = segment[:slash]
	}
	if segment == "" {
		return "", false
	}

	decoded, ok := base64URLDecodeWithPadding(segment)
	if !ok {
		return "", false
	}

	unescaped, err := url.QueryUnescape(string(decoded))
	if err != nil {
		unescaped = string(decoded)
	}

	if candidate, ok := extractHTTPURLSubstring(unescaped); ok && isUsablePublisherURL(candidate) {
		return candidate, true
	}
	return "", false
}

func base64URLDecodeWithPadding(s string) ([]byte, bool) {
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, false
		}
	}
	return decoded, true
}

var httpURLPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

func extractHTTPURLSubstring(s string) (string, bool) {
	match := httpURLPattern.FindString(s)
	if match == "" {
		return "", false
	}
	return match, true
}

// --- Strategy 4: headless-browser fallback ---

var htmlURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href=["']?(https?://[^\s"'<>]+)`),
	regexp.MustCompile(`(?i)url=["']?(https?://[^\s"'<>&]+)`),
	regexp.MustCompile(`(?i)data-url=["']?(https?://[^\s"'<>]+)`),
	regexp.MustCompile(`(https?://[^\s"'<>]+)`),
}

func (r *Resolver) resolveViaBrowser(ctx context.Context, rawURL string) (string, bool) {
	b, err := r.browsers.Acquire(ctx)
	if err != nil {
		return "", false
	}
	defer r.browsers.Release(b)

	page, err := b.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", false
	}
	defer page.Close()

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.rotator.GetUserAgent()})
	if err := page.Navigate(rawURL); err != nil {
		return "", false
	}
	_ = page.WaitLoad()

	time.Sleep(4 * time.Second) // Google News redirect latency

	finalURL := currentURL(page)
	if finalURL == rawURL || isGoogleHost(hostOf(finalURL)) {
		_ = page.WaitLoad()
		time.Sleep(5 * time.Second)
		finalURL = currentURL(page)
	}

	if isUsablePublisherURL(finalURL) {
		return finalURL, true
	}

	htmlContent, err := page.HTML()
	if err != nil {
		return "", false
	}
	for _, pattern := range htmlURLPatterns {
		matches := pattern.FindAllStringSubmatch(htmlContent, -1)
		for _, m := range matches {
			candidate := m[len(m)-1]
			if isUsablePublisherURL(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func currentURL(page interface{ Info() (*proto.TargetInfo, error) }) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
