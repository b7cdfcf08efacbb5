package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/internal/alerting"
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
	category      *models.Category
	disabledUntil *time.Time
	recordedErr   string
}

func (f *fakeCategoryStore) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	return f.category, nil
}

func (f *fakeCategoryStore) RecordFailure(ctx context.Context, categoryID int64, errMsg string, disabledUntil *time.Time) error {
	f.recordedErr = errMsg
	f.disabledUntil = disabledUntil
	return nil
}

type fakeJobStore struct {
	failed []*models.CrawlJob
}

func (f *fakeJobStore) ListFailedSince(ctx context.Context, categoryID int64, since time.Time) ([]*models.CrawlJob, error) {
	return f.failed, nil
}

func (f *fakeJobStore) MarkManualReview(ctx context.Context, jobID int64, reason string) error {
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestAnalyze_NoFailuresReturnsNilAnalysis(t *testing.T) {
	e := New(DefaultConfig(), &fakeCategoryStore{}, &fakeJobStore{}, nil, testLogger())
	analysis, err := e.Analyze(context.Background(), 1, 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, analysis)
}

func TestAnalyze_HighFailureCountRecommendsDisable(t *testing.T) {
	failed := make([]*models.CrawlJob, 5)
	for i := range failed {
		failed[i] = &models.CrawlJob{ErrorMessage: "connection timeout"}
	}
	e := New(DefaultConfig(), &fakeCategoryStore{}, &fakeJobStore{failed: failed}, nil, testLogger())

	analysis, err := e.Analyze(context.Background(), 1, 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, ActionDisableCategory, analysis.Action)
	assert.Equal(t, PatternNetwork, analysis.DominantError)
}

func TestExecute_DisableCategoryUpdatesStoreAndAlerts(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, Name: "tech"}}
	alerts := alerting.NewManager(alerting.DefaultManagerConfig(), testLogger())
	alerts.AddRules(alerting.DefaultRules())
	handler := &countingAlertHandler{}
	alerts.RegisterHandler(alerting.ChannelLogOnly, handler)
	e := New(DefaultConfig(), categories, &fakeJobStore{}, alerts, testLogger())

	analysis := &Analysis{CategoryID: 1, FailureCount: 5, DominantError: PatternNetwork, Action: ActionDisableCategory}
	err := e.Execute(context.Background(), analysis, "cid", false)
	require.NoError(t, err)
	require.NotNil(t, categories.disabledUntil)
	assert.True(t, categories.disabledUntil.After(time.Now()))
	assert.Equal(t, 1, handler.calls)
}

func TestExecute_DryRunDoesNotMutateState(t *testing.T) {
	categories := &fakeCategoryStore{category: &models.Category{ID: 1, Name: "tech"}}
	e := New(DefaultConfig(), categories, &fakeJobStore{}, nil, testLogger())

	analysis := &Analysis{CategoryID: 1, FailureCount: 5, DominantError: PatternNetwork, Action: ActionDisableCategory}
	err := e.Execute(context.Background(), analysis, "cid", true)
	require.NoError(t, err)
	assert.Nil(t, categories.disabledUntil)
}
