package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/jeffrey/intellinieuws/internal/cache"
)

// robotsTTL is how long a fetched robots.txt is trusted before refetching,
// both in the in-process map and in the shared Redis cache.
const robotsTTL = 24 * time.Hour

// RobotsChecker manages robots.txt compliance checking. The in-process map
// is always consulted first (cheapest path); a shared *cache.Service, if
// attached, lets every scheduler worker skip the robots.txt fetch entirely
// once any one of them has already resolved a host.
type RobotsChecker struct {
	cache     map[string]*robotsCacheEntry
	mu        sync.RWMutex
	userAgent string
	shared    *cache.Service
}

type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

// sharedDecision is what gets round-tripped through Redis: robots.txt
// grammar doesn't survive JSON, so the shared cache stores the decision
// for the one path checked, not the parsed document.
type sharedDecision struct {
	Allowed bool `json:"allowed"`
}

// NewRobotsChecker creates a new robots.txt checker.
func NewRobotsChecker(userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     make(map[string]*robotsCacheEntry),
		userAgent: userAgent,
	}
}

// WithSharedCache attaches a Redis-backed cache.Service so robots.txt
// decisions are reused across worker processes, not just within this one.
// Optional; nil leaves the checker relying solely on its in-process map.
func (rc *RobotsChecker) WithSharedCache(c *cache.Service) *RobotsChecker {
	rc.shared = c
	return rc
}

// IsAllowed checks if the given URL is allowed to be scraped according to robots.txt
func (rc *RobotsChecker) IsAllowed(targetURL string) (bool, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	// Build robots.txt URL
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsedURL.Scheme, parsedURL.Host)
	sharedKey := cache.GenerateKey(cache.PrefixRobots, parsedURL.Host, parsedURL.Path)

	// Check in-process cache first
	rc.mu.RLock()
	cached, exists := rc.cache[robotsURL]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.data.TestAgent(parsedURL.Path, rc.userAgent), nil
	}

	// Check the shared cache for a decision on this exact path before
	// paying for a robots.txt fetch.
	if rc.shared != nil {
		var decision sharedDecision
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := rc.shared.Get(ctx, sharedKey, &decision)
		cancel()
		if err == nil {
			return decision.Allowed, nil
		}
	}

	// Fetch robots.txt
	robotsData, err := rc.fetchRobotsTxt(robotsURL)
	if err != nil {
		// If robots.txt doesn't exist or error, allow by default
		rc.storeShared(sharedKey, true)
		return true, nil
	}

	// Cache the parsed document in-process
	rc.mu.Lock()
	rc.cache[robotsURL] = &robotsCacheEntry{
		data:      robotsData,
		expiresAt: time.Now().Add(robotsTTL),
	}
	rc.mu.Unlock()

	allowed := robotsData.TestAgent(parsedURL.Path, rc.userAgent)
	rc.storeShared(sharedKey, allowed)
	return allowed, nil
}

func (rc *RobotsChecker) storeShared(key string, allowed bool) {
	if rc.shared == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = rc.shared.SetWithTTL(ctx, key, sharedDecision{Allowed: allowed}, robotsTTL)
}

// fetchRobotsTxt downloads and parses robots.txt
func (rc *RobotsChecker) fetchRobotsTxt(robotsURL string) (*robotstxt.RobotsData, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	resp, err := client.Get(robotsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	robotsData, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	return robotsData, nil
}

// GetCrawlDelay returns the crawl delay for a target URL
// Note: This is a placeholder since robotstxt library doesn't provide CrawlDelay method
// We use our own rate limiting configuration instead
func (rc *RobotsChecker) GetCrawlDelay(targetURL string) time.Duration {
	// Return 0, we use our own configurable rate limiting
	// which is more reliable than parsing robots.txt Crawl-delay directive
	return 0
}

// ClearCache clears the robots.txt cache
func (rc *RobotsChecker) ClearCache() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache = make(map[string]*robotsCacheEntry)
}

// GetDomain extracts the domain from a URL
func GetDomain(targetURL string) (string, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return parsedURL.Host, nil
}

// NormalizeURL normalizes a URL for consistency
func NormalizeURL(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	// Remove trailing slash
	path := parsedURL.Path
	if strings.HasSuffix(path, "/") && len(path) > 1 {
		path = path[:len(path)-1]
	}

	normalized := fmt.Sprintf("%s://%s%s", parsedURL.Scheme, parsedURL.Host, path)
	if parsedURL.RawQuery != "" {
		normalized += "?" + parsedURL.RawQuery
	}

	return normalized, nil
}
