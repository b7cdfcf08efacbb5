package extract

import (
	"fmt"
	"time"
)

var publishDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// parseFlexibleDate tries each known publish-date layout in turn, since
// publishers format article:published_time inconsistently.
func parseFlexibleDate(raw string) (time.Time, error) {
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}
