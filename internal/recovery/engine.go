package recovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

// CategoryStore is the subset of repository.CategoryRepository the engine
// needs.
type CategoryStore interface {
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	RecordFailure(ctx context.Context, categoryID int64, errMsg string, disabledUntil *time.Time) error
}

// JobStore is the subset of repository.JobRepository the engine needs.
type JobStore interface {
	ListFailedSince(ctx context.Context, categoryID int64, since time.Time) ([]*models.CrawlJob, error)
	MarkManualReview(ctx context.Context, jobID int64, reason string) error
}

// Engine implements C12: analyze a category's recent failures and execute
// the recommended action.
type Engine struct {
	cfg        Config
	categories CategoryStore
	jobs       JobStore
	alerts     *alerting.Manager
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func New(cfg Config, categories CategoryStore, jobs JobStore, alerts *alerting.Manager, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, categories: categories, jobs: jobs, alerts: alerts, log: log.WithComponent("recovery-engine")}
}

// WithMetrics attaches the Prometheus bundle used to record
// recovery_actions_total. Optional.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Analyze inspects a category's failed jobs within the lookback window and
// returns the recommended recovery action without executing it.
func (e *Engine) Analyze(ctx context.Context, categoryID int64, lookback time.Duration) (*Analysis, error) {
	failed, err := e.jobs.ListFailedSince(ctx, categoryID, time.Now().Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs for category %d: %w", categoryID, err)
	}
	if len(failed) == 0 {
		return nil, nil
	}

	messages := make([]string, 0, len(failed))
	for _, j := range failed {
		if j.ErrorMessage != "" {
			messages = append(messages, j.ErrorMessage)
		}
	}
	dominant, counts := DominantPattern(messages)
	failureCount := len(failed)
	action := DetermineAction(e.cfg, failureCount, dominant)

	analysis := &Analysis{
		CategoryID:    categoryID,
		FailureCount:  failureCount,
		DominantError: dominant,
		ErrorPatterns: counts,
		LastError:     failed[0].ErrorMessage,
		LastJobID:     failed[0].ID,
		Action:        action,
		Notes:         fmt.Sprintf("based on %d failures with pattern %q", failureCount, dominant),
	}
	if action == ActionRetryDelayed {
		analysis.DelaySeconds = RetryDelaySeconds(dominant, failureCount)
		analysis.Notes += fmt.Sprintf("; retry after %ds", analysis.DelaySeconds)
	}
	return analysis, nil
}

// Execute carries out the analyzed action's side effects. Called with
// dryRun=true it only logs what it would have done.
func (e *Engine) Execute(ctx context.Context, analysis *Analysis, correlationID string, dryRun bool) error {
	log := e.log.WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"category_id":    analysis.CategoryID,
		"action":         analysis.Action,
		"dry_run":        dryRun,
	})

	if dryRun {
		log.Info("dry run: recovery action not executed")
		return nil
	}

	if e.metrics != nil {
		e.metrics.RecoveryActionsTotal.WithLabelValues(string(analysis.Action), strconv.FormatInt(analysis.CategoryID, 10)).Inc()
	}

	switch analysis.Action {
	case ActionDisableCategory:
		return e.disableCategory(ctx, analysis, correlationID, log)
	case ActionEscalate:
		return e.escalate(ctx, analysis, correlationID, log)
	case ActionMarkFailed, ActionRetryDelayed, ActionRetryImmediately:
		log.Info("no immediate action required beyond JobRunner's own retry/fail handling")
		return nil
	default:
		return nil
	}
}

func (e *Engine) disableCategory(ctx context.Context, analysis *Analysis, correlationID string, log *logger.Logger) error {
	category, err := e.categories.GetByID(ctx, analysis.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to load category %d for disable: %w", analysis.CategoryID, err)
	}
	if category == nil {
		return nil
	}

	disabledUntil := time.Now().Add(24 * time.Hour)
	reason := fmt.Sprintf("automatic disable after %d failures (%s)", analysis.FailureCount, analysis.DominantError)
	if err := e.categories.RecordFailure(ctx, analysis.CategoryID, reason, &disabledUntil); err != nil {
		return fmt.Errorf("failed to disable category %d: %w", analysis.CategoryID, err)
	}

	log.Warnf("category %q disabled until %s", category.Name, disabledUntil.Format(time.RFC3339))
	if e.alerts != nil {
		e.alerts.Send(ctx, alerting.Alert{
			Type:          alerting.TypeServiceDegraded,
			Severity:      alerting.SeverityHigh,
			Message:       fmt.Sprintf("category %q temporarily disabled due to repeated failures", category.Name),
			CorrelationID: correlationID,
			Details: map[string]interface{}{
				"category_id":   analysis.CategoryID,
				"failure_count": analysis.FailureCount,
				"error_pattern": string(analysis.DominantError),
				"disable_hours": 24,
			},
		})
	}
	return nil
}

func (e *Engine) escalate(ctx context.Context, analysis *Analysis, correlationID string, log *logger.Logger) error {
	log.Error("escalating category failures for manual intervention")
	if analysis.LastJobID != 0 {
		reason := fmt.Sprintf("escalated after %d failures (%s): %s", analysis.FailureCount, analysis.DominantError, analysis.Notes)
		if err := e.jobs.MarkManualReview(ctx, analysis.LastJobID, reason); err != nil {
			log.WithError(err).Warn("failed to mark job for manual review")
		}
	}
	if e.alerts != nil {
		e.alerts.Send(ctx, alerting.Alert{
			Type:          alerting.TypeTaskFailure,
			Severity:      alerting.SeverityCritical,
			Message:       "manual intervention required for repeated category failures",
			CorrelationID: correlationID,
			Details: map[string]interface{}{
				"category_id":   analysis.CategoryID,
				"failure_count": analysis.FailureCount,
				"error_pattern": string(analysis.DominantError),
				"notes":         analysis.Notes,
			},
		})
	}
	return nil
}
