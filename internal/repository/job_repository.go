package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// JobRepository handles persistence for crawl jobs, generalizing the
// teacher's scraping_job_repository.go to per-category jobs with the
// additional stuck/manual-review lifecycle states.
type JobRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewJobRepository(db *pgxpool.Pool, log *logger.Logger) *JobRepository {
	return &JobRepository{db: db, logger: log.WithComponent("job-repo")}
}

func (r *JobRepository) Create(ctx context.Context, categoryID int64, jobType, correlationID string, priority int) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO crawl_jobs (category_id, job_type, status, correlation_id, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, categoryID, jobType, models.JobStatusPending, correlationID, priority, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create crawl job: %w", err)
	}
	r.logger.Debugf("created crawl job %d for category %d", id, categoryID)
	return id, nil
}

func (r *JobRepository) Start(ctx context.Context, jobID int64) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE crawl_jobs SET status = $1, started_at = $2, updated_at = $2 WHERE id = $3
	`, models.JobStatusRunning, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to start job %d: %w", jobID, err)
	}
	return nil
}

func (r *JobRepository) Complete(ctx context.Context, jobID int64, found, saved int) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE crawl_jobs
		SET status = $1, completed_at = $2, updated_at = $2, articles_found = $3, articles_saved = $4
		WHERE id = $5
	`, models.JobStatusCompleted, now, found, saved, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %d: %w", jobID, err)
	}
	return nil
}

func (r *JobRepository) Fail(ctx context.Context, jobID int64, errMsg string) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE crawl_jobs SET status = $1, completed_at = $2, updated_at = $2, error_message = $3
		WHERE id = $4
	`, models.JobStatusFailed, now, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job %d: %w", jobID, err)
	}
	return nil
}

// MarkManualReview flags a job that exhausted retries for operator
// attention rather than silently failing.
func (r *JobRepository) MarkManualReview(ctx context.Context, jobID int64, reason string) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE crawl_jobs SET status = $1, updated_at = $2, error_message = $3
		WHERE id = $4
	`, models.JobStatusManualReview, now, reason, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job %d for manual review: %w", jobID, err)
	}
	return nil
}

// CountActive reports how many jobs are PENDING or RUNNING, for the
// scheduler's health sweep.
func (r *JobRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM crawl_jobs WHERE status IN ($1, $2)
	`, models.JobStatusPending, models.JobStatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

// CountRunning reports how many jobs are currently RUNNING.
func (r *JobRepository) CountRunning(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM crawl_jobs WHERE status = $1`, models.JobStatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count running jobs: %w", err)
	}
	return count, nil
}

// CountStuck reports how many RUNNING jobs have had no update for longer
// than maxAge, for the scheduler's health sweep. It does not mutate state.
func (r *JobRepository) CountStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM crawl_jobs WHERE status = $1 AND updated_at < $2
	`, models.JobStatusRunning, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stuck jobs: %w", err)
	}
	return count, nil
}

// RequeueStuck resets RUNNING jobs with no update for longer than maxAge
// back to PENDING, per the stuck-detection rule in spec: a stuck job is
// retried from scratch, not left to rot in RUNNING.
func (r *JobRepository) RequeueStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	tag, err := r.db.Exec(ctx, `
		UPDATE crawl_jobs SET status = $1, started_at = NULL, updated_at = $2
		WHERE status = $3 AND updated_at < $2
	`, models.JobStatusPending, cutoff, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCompletedOlderThan removes terminal jobs past the retention
// window, for the scheduler's cleanup sweep.
func (r *JobRepository) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM crawl_jobs WHERE status IN ($1, $2) AND completed_at < $3
	`, models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old completed jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *JobRepository) GetByID(ctx context.Context, jobID int64) (*models.CrawlJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, jobSelect+` WHERE id = $1`, jobID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}
	return job, nil
}

func (r *JobRepository) ListByCategory(ctx context.Context, categoryID int64, limit int) ([]*models.CrawlJob, error) {
	rows, err := r.db.Query(ctx, jobSelect+`
		WHERE category_id = $1 ORDER BY created_at DESC LIMIT $2
	`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListFailedSince returns a category's FAILED jobs updated since a cutoff,
// for the recovery engine's failure-pattern analysis.
func (r *JobRepository) ListFailedSince(ctx context.Context, categoryID int64, since time.Time) ([]*models.CrawlJob, error) {
	rows, err := r.db.Query(ctx, jobSelect+`
		WHERE category_id = $1 AND status = $2 AND updated_at >= $3
		ORDER BY updated_at DESC
	`, categoryID, models.JobStatusFailed, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

const jobSelect = `
	SELECT id, category_id, job_type, status, created_at, started_at, completed_at,
	       updated_at, articles_found, articles_saved, COALESCE(error_message, ''),
	       COALESCE(correlation_id, ''), COALESCE(task_id, ''), priority
	FROM crawl_jobs
`

func scanJob(row rowScanner) (*models.CrawlJob, error) {
	var j models.CrawlJob
	err := row.Scan(
		&j.ID, &j.CategoryID, &j.JobType, &j.Status, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.UpdatedAt, &j.ArticlesFound, &j.ArticlesSaved, &j.ErrorMessage,
		&j.CorrelationID, &j.TaskID, &j.Priority,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
