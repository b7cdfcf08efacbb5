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

// CategoryRepository handles persistence for crawl categories: keyword
// sets, schedule state, and the consecutive-failure/disabled-until
// bookkeeping the scheduler uses to back off unhealthy categories.
type CategoryRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewCategoryRepository(db *pgxpool.Pool, log *logger.Logger) *CategoryRepository {
	return &CategoryRepository{db: db, logger: log.WithComponent("category-repo")}
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	c, err := scanCategoryRow(r.db.QueryRow(ctx, categorySelect+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return c, nil
}

// ListActive returns all active categories, used by the crawl engine's
// cross-category association. The scheduler selects due categories with
// ListDueForSchedule instead.
func (r *CategoryRepository) ListActive(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.Query(ctx, categorySelect+` WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c, err := scanCategoryRow(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// ListDueForSchedule returns active, schedule-enabled categories whose
// next_scheduled_run_at has elapsed and whose disabled_until has passed.
func (r *CategoryRepository) ListDueForSchedule(ctx context.Context, now time.Time) ([]*models.Category, error) {
	rows, err := r.db.Query(ctx, categorySelect+`
		WHERE is_active = TRUE AND schedule_enabled = TRUE
		  AND (disabled_until IS NULL OR disabled_until <= $1)
		  AND (next_scheduled_run_at IS NULL OR next_scheduled_run_at <= $1)
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c, err := scanCategoryRow(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// MarkScheduled updates last/next scheduled run timestamps after dispatch.
func (r *CategoryRepository) MarkScheduled(ctx context.Context, categoryID int64, ranAt, nextRunAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE categories SET last_scheduled_run_at = $1, next_scheduled_run_at = $2, updated_at = $1
		WHERE id = $3
	`, ranAt, nextRunAt, categoryID)
	if err != nil {
		return fmt.Errorf("failed to mark category %d scheduled: %w", categoryID, err)
	}
	return nil
}

// RecordFailure increments the consecutive-failure counter and stores the
// error; the caller decides whether to set disabled_until (the recovery
// engine passes a time, the job runner passes nil). The column is
// overwritten with the value passed, so nil clears it.
func (r *CategoryRepository) RecordFailure(ctx context.Context, categoryID int64, errMsg string, disabledUntil *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE categories
		SET consecutive_failures = consecutive_failures + 1, last_error = $1,
		    disabled_until = $2, updated_at = $3
		WHERE id = $4
	`, errMsg, disabledUntil, time.Now(), categoryID)
	if err != nil {
		return fmt.Errorf("failed to record failure for category %d: %w", categoryID, err)
	}
	return nil
}

// RecordSuccess resets the consecutive-failure counter on a clean run.
func (r *CategoryRepository) RecordSuccess(ctx context.Context, categoryID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE categories SET consecutive_failures = 0, last_error = NULL, updated_at = $1
		WHERE id = $2
	`, time.Now(), categoryID)
	if err != nil {
		return fmt.Errorf("failed to record success for category %d: %w", categoryID, err)
	}
	return nil
}

const categorySelect = `
	SELECT id, name, keywords, exclude_keywords, language, country, is_active,
	       schedule_enabled, schedule_interval_minutes, crawl_period,
	       last_scheduled_run_at, next_scheduled_run_at, disabled_until,
	       consecutive_failures, COALESCE(last_error, ''), created_at, updated_at
	FROM categories
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCategoryRow(row rowScanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Keywords, &c.ExcludeKeywords, &c.Language, &c.Country, &c.IsActive,
		&c.ScheduleEnabled, &c.ScheduleIntervalMin, &c.CrawlPeriod,
		&c.LastScheduledRunAt, &c.NextScheduledRunAt, &c.DisabledUntil,
		&c.ConsecutiveFailures, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
