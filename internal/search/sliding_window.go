package search

import (
	"context"
	"time"
)

// dayBucket is one single-day sub-search window with its share of the
// overall result budget.
type dayBucket struct {
	start, end time.Time
	maxResults int
}

// dailyBuckets splits [start, end] into single-day windows [s, s+1d-1s],
// one per calendar day in the range, with maxTotal divided evenly (floor,
// minimum 1) across them. Pure and network-free so the split logic is
// independently testable. Returns nil if end is before start.
func dailyBuckets(start, end time.Time, maxTotal int) []dayBucket {
	if end.Before(start) {
		return nil
	}
	totalDays := int(end.Sub(start).Hours()/24) + 1
	perDay := maxTotal / totalDays
	if perDay < 1 {
		perDay = 1
	}

	buckets := make([]dayBucket, totalDays)
	for i := 0; i < totalDays; i++ {
		dayStart := start.Add(time.Duration(i) * 24 * time.Hour)
		buckets[i] = dayBucket{
			start:      dayStart,
			end:        dayStart.Add(24*time.Hour - time.Second),
			maxResults: perDay,
		}
	}
	return buckets
}

// CrawlWithDailySlidingWindow splits an arbitrary [start, end] range into
// single-day sub-searches (Google News's own recency windows don't stretch
// further back reliably than a few days), distributes max_total evenly
// across the buckets, and accumulates deduplicated results in insertion
// order. A single bucket's failure is logged and does not abort the rest.
// end before start returns an empty result and logs a warning, with zero
// downstream calls.
func (c *Client) CrawlWithDailySlidingWindow(
	ctx context.Context,
	keywords, excludeKeywords []string,
	start, end time.Time,
	maxResultsTotal int,
	language, country string,
	correlationID string,
) []Result {
	buckets := dailyBuckets(start, end, maxResultsTotal)
	if buckets == nil {
		c.log.WithFields(map[string]interface{}{
			"correlation_id": correlationID,
			"start":          start,
			"end":            end,
		}).Warn("invalid date range for daily sliding window: end before start")
		return nil
	}
	totalDays := len(buckets)

	seen := make(map[string]bool)
	var out []Result

	for i, bucket := range buckets {
		dayStart, dayEnd := bucket.start, bucket.end

		c.log.WithFields(map[string]interface{}{
			"correlation_id": correlationID,
			"day":            i + 1,
			"total_days":     totalDays,
			"day_start":      dayStart,
			"day_end":        dayEnd,
		}).Info("daily sliding window: crawling day")

		cfg := Config{
			MaxResults: bucket.maxResults,
			Language:   language,
			Country:    country,
			StartDate:  &dayStart,
			EndDate:    &dayEnd,
		}

		results, err := c.Search(ctx, keywords, excludeKeywords, cfg, correlationID)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{
				"correlation_id": correlationID,
				"day":            i + 1,
			}).Warn("failed to crawl day in sliding window, continuing")
			continue
		}

		for _, r := range results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			out = append(out, r)
		}

		select {
		case <-ctx.Done():
			return out
		default:
		}
	}

	c.log.WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"total_days":     totalDays,
		"urls_found":     len(out),
	}).Info("daily sliding window complete")

	return out
}
