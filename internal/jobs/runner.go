// Package jobs drives one crawl job from PENDING to a terminal state,
// wiring the crawl engine's result into job and category bookkeeping.
package jobs

import (
	"context"
	"strconv"
	"time"

	"github.com/jeffrey/intellinieuws/internal/crawl"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
	"github.com/jeffrey/intellinieuws/pkg/retry"
)

// minRateLimitCountdown is the floor spec §4.10 requires when a
// rate-limit signal carries no hint or a shorter one.
const minRateLimitCountdown = 15 * time.Minute

// CategoryStore is the subset of repository.CategoryRepository the runner
// needs.
type CategoryStore interface {
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	RecordFailure(ctx context.Context, categoryID int64, errMsg string, disabledUntil *time.Time) error
	RecordSuccess(ctx context.Context, categoryID int64) error
}

// JobStore is the subset of repository.JobRepository the runner needs.
// Marking a job MANUAL_REVIEW is recovery.Engine's call, not the runner's —
// see internal/recovery.
type JobStore interface {
	Start(ctx context.Context, jobID int64) error
	Complete(ctx context.Context, jobID int64, found, saved int) error
	Fail(ctx context.Context, jobID int64, errMsg string) error
}

// Engine is the subset of crawl.Engine the runner needs.
type Engine interface {
	Crawl(ctx context.Context, category *models.Category, advanced crawl.Advanced, correlationID string) (crawl.Result, error)
}

// Runner implements C10: the per-job state machine around CrawlEngine.
type Runner struct {
	categories CategoryStore
	jobs       JobStore
	engine     Engine
	advanced   crawl.Advanced
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func New(categories CategoryStore, jobs JobStore, engine Engine, advanced bool, log *logger.Logger) *Runner {
	return &Runner{
		categories: categories,
		jobs:       jobs,
		engine:     engine,
		advanced:   crawl.Advanced(advanced),
		log:        log.WithComponent("job-runner"),
	}
}

// WithMetrics attaches the Prometheus bundle used to record
// crawler_jobs_total and crawler_job_duration_seconds. Optional.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// Outcome reports what a Run call decided, for the scheduler/caller to log
// or act on (e.g. "retry_countdown" needs rescheduling, not just a return).
type Outcome struct {
	Status        string
	RetryAfter    time.Duration
	ArticlesFound int
	ArticlesSaved int
}

// Run executes category_id/job_id through its full lifecycle per spec
// §4.10. It never returns an error for expected terminal states (missing
// category, inactive category, extraction failure) — those are reported
// via Outcome.Status; the returned error is reserved for bookkeeping
// failures (job/category store errors) the caller should alert on.
func (r *Runner) Run(ctx context.Context, categoryID, jobID int64, correlationID string) (Outcome, error) {
	log := r.log.WithFields(map[string]interface{}{"correlation_id": correlationID, "job_id": jobID, "category_id": categoryID})

	category, err := r.categories.GetByID(ctx, categoryID)
	if err != nil {
		return Outcome{}, err
	}
	if category == nil {
		log.Warn("category not found, failing job")
		if err := r.jobs.Fail(ctx, jobID, "category not found"); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: models.JobStatusFailed}, nil
	}
	if !category.IsActive {
		log.Info("category not active, completing job as no-op")
		if err := r.jobs.Complete(ctx, jobID, 0, 0); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: models.JobStatusCompleted}, nil
	}

	if err := r.jobs.Start(ctx, jobID); err != nil {
		return Outcome{}, err
	}

	// Rate limit signals are excluded from the generic retry loop: the spec
	// treats them as an immediate reschedule-with-countdown, not a handful
	// of inline retries with minute-scale backoff.
	jobRetryCfg := retry.ExternalService
	jobRetryCfg.NonRetryableKinds = map[crawlerr.Kind]bool{crawlerr.KindRateLimitExceeded: true}

	startedAt := time.Now()
	result, crawlErr := retry.Run(ctx, r.log, r.metrics, "crawl_job", jobRetryCfg, correlationID, func(ctx context.Context, attempt int) (crawl.Result, error) {
		return r.engine.Crawl(ctx, category, r.advanced, correlationID)
	})
	duration := time.Since(startedAt)

	if r.metrics != nil {
		categoryLabel := strconv.FormatInt(categoryID, 10)
		r.metrics.CrawlJobDuration.WithLabelValues(categoryLabel).Observe(duration.Seconds())
	}

	if crawlErr == nil {
		if err := r.jobs.Complete(ctx, jobID, result.ArticlesFound, result.ArticlesSaved); err != nil {
			return Outcome{}, err
		}
		if err := r.categories.RecordSuccess(ctx, categoryID); err != nil {
			log.WithError(err).Warn("failed to record category success")
		}
		if r.metrics != nil {
			r.metrics.CrawlJobsTotal.WithLabelValues(strconv.FormatInt(categoryID, 10), models.JobStatusCompleted).Inc()
		}
		return Outcome{Status: models.JobStatusCompleted, ArticlesFound: result.ArticlesFound, ArticlesSaved: result.ArticlesSaved}, nil
	}

	return r.handleFailure(ctx, categoryID, jobID, correlationID, crawlErr, log)
}

func (r *Runner) handleFailure(ctx context.Context, categoryID, jobID int64, correlationID string, crawlErr error, log *logger.Logger) (Outcome, error) {
	kind := crawlerr.KindOf(crawlErr)

	if r.metrics != nil {
		r.metrics.CrawlJobsTotal.WithLabelValues(strconv.FormatInt(categoryID, 10), models.JobStatusFailed).Inc()
	}

	if kind == crawlerr.KindRateLimitExceeded {
		countdown := minRateLimitCountdown
		if hint, ok := crawlerr.RetryAfterOf(crawlErr); ok && hint > countdown {
			countdown = hint
		}
		log.WithFields(map[string]interface{}{"retry_after": countdown}).Warn("rate limit exceeded, scheduling retry")
		if err := r.jobs.Fail(ctx, jobID, crawlErr.Error()); err != nil {
			return Outcome{}, err
		}
		if err := r.categories.RecordFailure(ctx, categoryID, crawlErr.Error(), nil); err != nil {
			log.WithError(err).Warn("failed to record category failure")
		}
		return Outcome{Status: "retry_countdown", RetryAfter: countdown}, nil
	}

	if crawlerr.IsRetryable(crawlErr) {
		log.WithError(crawlErr).Warn("retryable failure exhausted retries, failing job")
		if err := r.jobs.Fail(ctx, jobID, crawlErr.Error()); err != nil {
			return Outcome{}, err
		}
		if err := r.categories.RecordFailure(ctx, categoryID, crawlErr.Error(), nil); err != nil {
			log.WithError(err).Warn("failed to record category failure")
		}
		return Outcome{Status: models.JobStatusFailed}, nil
	}

	log.WithError(crawlErr).Error("non-retryable failure, failing job")
	if err := r.jobs.Fail(ctx, jobID, crawlErr.Error()); err != nil {
		return Outcome{}, err
	}
	if err := r.categories.RecordFailure(ctx, categoryID, crawlErr.Error(), nil); err != nil {
		log.WithError(err).Warn("failed to record category failure")
	}
	return Outcome{Status: models.JobStatusFailed}, nil
}
