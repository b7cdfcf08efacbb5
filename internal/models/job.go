package models

import "time"

// Job status values, extended beyond the teacher's pending/running/
// completed/failed set with stuck-detection and manual-review states.
const (
	JobStatusPending       = "pending"
	JobStatusRunning       = "running"
	JobStatusCompleted     = "completed"
	JobStatusFailed        = "failed"
	JobStatusStuck         = "stuck"
	JobStatusManualReview  = "manual_review"
)

// Job type values.
const (
	JobTypeScheduled = "scheduled"
	JobTypeOnDemand  = "on_demand"
)

// CrawlJob is a tracked unit of crawl work for one category.
type CrawlJob struct {
	ID            int64                  `db:"id"`
	CategoryID    int64                  `db:"category_id"`
	JobType       string                 `db:"job_type"`
	Status        string                 `db:"status"`
	CreatedAt     time.Time              `db:"created_at"`
	StartedAt     *time.Time             `db:"started_at"`
	CompletedAt   *time.Time             `db:"completed_at"`
	UpdatedAt     time.Time              `db:"updated_at"`
	ArticlesFound int                    `db:"articles_found"`
	ArticlesSaved int                    `db:"articles_saved"`
	ErrorMessage  string                 `db:"error_message"`
	CorrelationID string                 `db:"correlation_id"`
	TaskID        string                 `db:"task_id"`
	Priority      int                    `db:"priority"`
	Metadata      map[string]interface{} `db:"metadata"`
}

// ScrapingMethod values, retained from the teacher for source-health
// bookkeeping (which extraction path last served a category).
const (
	ScrapingMethodRSS     = "rss"
	ScrapingMethodBrowser = "browser"
	ScrapingMethodHybrid  = "hybrid"
)
