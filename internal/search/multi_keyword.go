package search

import "context"

// SearchMultiKeyword runs one search per keyword instead of a single
// OR-combined query, for cases where a combined query would dilute
// per-keyword recall. The crawl engine does not call it; categories have no
// setting that selects it. Results are deduplicated
// by URL across all keyword searches, preserving first-seen order. A single
// keyword's search failure is logged and does not abort the others.
func (c *Client) SearchMultiKeyword(ctx context.Context, keywords, excludeKeywords []string, cfg Config, correlationID string) ([]Result, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []Result

	for _, keyword := range keywords {
		results, err := c.Search(ctx, []string{keyword}, excludeKeywords, cfg, correlationID)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{
				"correlation_id": correlationID,
				"keyword":        keyword,
			}).Warn("multi-keyword search failed for keyword, continuing")
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
			return out, nil
		default:
		}
	}

	return out, nil
}
