package models

import "time"

// Category bundles keywords, excludes and locale defining what to crawl.
type Category struct {
	ID                     int64      `db:"id"`
	Name                   string     `db:"name"`
	Keywords               []string   `db:"keywords"`
	ExcludeKeywords        []string   `db:"exclude_keywords"`
	Language               string     `db:"language"`
	Country                string     `db:"country"`
	IsActive               bool       `db:"is_active"`
	ScheduleEnabled        bool       `db:"schedule_enabled"`
	ScheduleIntervalMin    int        `db:"schedule_interval_minutes"`
	CrawlPeriod            string     `db:"crawl_period"`
	LastScheduledRunAt     *time.Time `db:"last_scheduled_run_at"`
	NextScheduledRunAt     *time.Time `db:"next_scheduled_run_at"`
	DisabledUntil          *time.Time `db:"disabled_until"`
	ConsecutiveFailures    int        `db:"consecutive_failures"`
	LastError              string     `db:"last_error"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

// AllowedScheduleIntervals is the final set per SPEC_FULL §9 (expanded in a
// late migration of the original to include 5 and 15).
var AllowedScheduleIntervals = map[int]bool{
	1: true, 5: true, 15: true, 30: true, 60: true, 1440: true,
}

// AllowedPeriodTokens is the closed set of GNews recency-window tokens.
var AllowedPeriodTokens = map[string]bool{
	"1h": true, "2h": true, "6h": true, "12h": true,
	"1d": true, "2d": true, "7d": true,
	"1m": true, "3m": true, "6m": true, "1y": true,
}

// IsSchedulableNow reports whether the category is due for a scheduled run.
func (c *Category) IsSchedulableNow(now time.Time) bool {
	if !c.ScheduleEnabled || !c.IsActive {
		return false
	}
	if c.DisabledUntil != nil && now.Before(*c.DisabledUntil) {
		return false
	}
	if c.NextScheduledRunAt == nil {
		return true
	}
	return !now.Before(*c.NextScheduledRunAt)
}
