package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/internal/crawl"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

type fakeCategoryStore struct {
	category     *models.Category
	failures     int
	successes    int
	lastErrMsg   string
	lastDisabled *time.Time
}

func (f *fakeCategoryStore) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	return f.category, nil
}

func (f *fakeCategoryStore) RecordFailure(ctx context.Context, categoryID int64, errMsg string, disabledUntil *time.Time) error {
	f.failures++
	f.lastErrMsg = errMsg
	f.lastDisabled = disabledUntil
	return nil
}

func (f *fakeCategoryStore) RecordSuccess(ctx context.Context, categoryID int64) error {
	f.successes++
	return nil
}

type fakeJobStore struct {
	started   bool
	completed bool
	failed    bool
	manual    bool
	found     int
	saved     int
	errMsg    string
}

func (f *fakeJobStore) Start(ctx context.Context, jobID int64) error {
	f.started = true
	return nil
}

func (f *fakeJobStore) Complete(ctx context.Context, jobID int64, found, saved int) error {
	f.completed = true
	f.found = found
	f.saved = saved
	return nil
}

func (f *fakeJobStore) Fail(ctx context.Context, jobID int64, errMsg string) error {
	f.failed = true
	f.errMsg = errMsg
	return nil
}

func (f *fakeJobStore) MarkManualReview(ctx context.Context, jobID int64, reason string) error {
	f.manual = true
	return nil
}

type fakeEngine struct {
	result crawl.Result
	err    error
}

func (f *fakeEngine) Crawl(ctx context.Context, category *models.Category, advanced crawl.Advanced, correlationID string) (crawl.Result, error) {
	return f.result, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestRun_MissingCategoryFailsJob(t *testing.T) {
	categories := &fakeCategoryStore{category: nil}
	jobStore := &fakeJobStore{}
	r := New(categories, jobStore, &fakeEngine{}, false, testLogger())

	outcome, err := r.Run(context.Background(), 99, 1, "cid")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.True(t, jobStore.failed)
	assert.False(t, jobStore.started)
}

func TestRun_InactiveCategoryCompletesAsNoOp(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, IsActive: false}}
	jobStore := &fakeJobStore{}
	r := New(categories, jobStore, &fakeEngine{}, false, testLogger())

	outcome, err := r.Run(context.Background(), 1, 1, "cid")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, outcome.Status)
	assert.True(t, jobStore.completed)
	assert.Equal(t, 0, jobStore.found)
}

func TestRun_SuccessCompletesJobAndRecordsSuccess(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, IsActive: true}}
	jobStore := &fakeJobStore{}
	engine := &fakeEngine{result: crawl.Result{ArticlesFound: 5, ArticlesSaved: 3}}
	r := New(categories, jobStore, engine, false, testLogger())

	outcome, err := r.Run(context.Background(), 1, 1, "cid")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, outcome.Status)
	assert.Equal(t, 5, outcome.ArticlesFound)
	assert.Equal(t, 3, outcome.ArticlesSaved)
	assert.True(t, jobStore.started)
	assert.Equal(t, 1, categories.successes)
}

func TestRun_RateLimitExceededSchedulesCountdown(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, IsActive: true}}
	jobStore := &fakeJobStore{}
	engine := &fakeEngine{err: crawlerr.New(crawlerr.KindRateLimitExceeded, "rate limited")}
	r := New(categories, jobStore, engine, false, testLogger())

	outcome, err := r.Run(context.Background(), 1, 1, "cid")
	require.NoError(t, err)
	assert.Equal(t, "retry_countdown", outcome.Status)
	assert.GreaterOrEqual(t, outcome.RetryAfter, minRateLimitCountdown)
	assert.Equal(t, 1, categories.failures)
}

func TestRun_NonRetryableFailsJob(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, IsActive: true}}
	jobStore := &fakeJobStore{}
	engine := &fakeEngine{err: crawlerr.New(crawlerr.KindExtractionParsing, "no title found")}
	r := New(categories, jobStore, engine, false, testLogger())

	outcome, err := r.Run(context.Background(), 1, 1, "cid")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.True(t, jobStore.failed)
	assert.Equal(t, 1, categories.failures)
}
