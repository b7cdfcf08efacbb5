package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/internal/jobs"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

type countingAlertHandler struct {
	calls int
}

func (h *countingAlertHandler) Send(ctx context.Context, alert alerting.Alert) (bool, error) {
	h.calls++
	return true, nil
}

type fakeCategoryStore struct {
	mu     sync.Mutex
	due    []*models.Category
	marked []int64
}

func (f *fakeCategoryStore) ListDueForSchedule(ctx context.Context, now time.Time) ([]*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

func (f *fakeCategoryStore) MarkScheduled(ctx context.Context, categoryID int64, ranAt, nextRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, categoryID)
	return nil
}

type fakeJobStore struct {
	mu       sync.Mutex
	created  []int64
	active   int64
	running  int64
	stuck       int64
	requeued    int64
	deleteCalls int
}

func (f *fakeJobStore) Create(ctx context.Context, categoryID int64, jobType, correlationID string, priority int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, categoryID)
	return int64(len(f.created)), nil
}

func (f *fakeJobStore) CountActive(ctx context.Context) (int64, error)  { return f.active, nil }
func (f *fakeJobStore) CountRunning(ctx context.Context) (int64, error) { return f.running, nil }
func (f *fakeJobStore) CountStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	return f.stuck, nil
}
func (f *fakeJobStore) RequeueStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	f.requeued++
	return f.stuck, nil
}
func (f *fakeJobStore) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteCalls++
	return 0, nil
}

type fakeRunner struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, categoryID, jobID int64, correlationID string) (jobs.Outcome, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return jobs.Outcome{Status: models.JobStatusCompleted}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestRunDispatch_CreatesJobForEachDueCategory(t *testing.T) {
	categories := &fakeCategoryStore{due: []*models.Category{
		{ID: 1, ScheduleIntervalMin: 30},
		{ID: 2, ScheduleIntervalMin: 60},
	}}
	jobStore := &fakeJobStore{}
	runner := &fakeRunner{}

	s := New(DefaultConfig(), categories, jobStore, runner, nil, testLogger())
	s.runDispatch(context.Background())

	// dispatch() spawns goroutines tracked by s.wg; wait for them directly.
	s.wg.Wait()

	assert.ElementsMatch(t, []int64{1, 2}, jobStore.created)
	assert.ElementsMatch(t, []int64{1, 2}, categories.marked)
	assert.Equal(t, 2, runner.calls)
}

func TestRunDispatch_SkipsCategoryAlreadyInFlight(t *testing.T) {
	categories := &fakeCategoryStore{due: []*models.Category{{ID: 5, ScheduleIntervalMin: 15}}}
	jobStore := &fakeJobStore{}
	runner := &fakeRunner{}

	s := New(DefaultConfig(), categories, jobStore, runner, nil, testLogger())
	s.inFlight[5] = true

	s.runDispatch(context.Background())

	assert.Empty(t, jobStore.created)
}

func TestRunHealthCheck_NoAlertWhenNoStuckJobs(t *testing.T) {
	jobStore := &fakeJobStore{active: 3, running: 1, stuck: 0}
	alerts := alerting.NewManager(alerting.DefaultManagerConfig(), testLogger())
	alerts.AddRules(alerting.DefaultRules())
	handler := &countingAlertHandler{}
	alerts.RegisterHandler(alerting.ChannelLogOnly, handler)
	s := New(DefaultConfig(), &fakeCategoryStore{}, jobStore, &fakeRunner{}, alerts, testLogger())
	s.runHealthCheck(context.Background())
	assert.Equal(t, 0, handler.calls)
}

func TestRunCleanup_RequeuesStuckAndDeletesOld(t *testing.T) {
	jobStore := &fakeJobStore{stuck: 2}
	s := New(DefaultConfig(), &fakeCategoryStore{}, jobStore, &fakeRunner{}, nil, testLogger())
	s.runCleanup(context.Background())
	assert.Equal(t, int64(1), jobStore.requeued)
	assert.Equal(t, 1, jobStore.deleteCalls)
}
