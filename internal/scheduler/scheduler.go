// Package scheduler runs the periodic sweeps that turn due categories
// into dispatched crawl jobs: the main dispatch tick, a cleanup sweep, and
// a health sweep that alerts on a degraded job queue.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/internal/jobs"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// CategoryStore is the subset of repository.CategoryRepository the
// scheduler needs.
type CategoryStore interface {
	ListDueForSchedule(ctx context.Context, now time.Time) ([]*models.Category, error)
	MarkScheduled(ctx context.Context, categoryID int64, ranAt, nextRunAt time.Time) error
}

// JobStore is the subset of repository.JobRepository the scheduler needs.
type JobStore interface {
	Create(ctx context.Context, categoryID int64, jobType, correlationID string, priority int) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	CountRunning(ctx context.Context) (int64, error)
	CountStuck(ctx context.Context, maxAge time.Duration) (int64, error)
	RequeueStuck(ctx context.Context, maxAge time.Duration) (int64, error)
	DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobRunner is the subset of jobs.Runner the scheduler needs.
type JobRunner interface {
	Run(ctx context.Context, categoryID, jobID int64, correlationID string) (jobs.Outcome, error)
}

// Config controls sweep cadence and retention.
type Config struct {
	PollInterval        time.Duration // main dispatch tick; spec's min schedule granularity (1m)
	HealthCheckInterval time.Duration
	CleanupInterval     time.Duration
	StuckThreshold      time.Duration // default 2h
	JobCleanupRetention time.Duration // default 30 days
	MaxConcurrentJobs   int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:        1 * time.Minute,
		HealthCheckInterval: 1 * time.Minute,
		CleanupInterval:     1 * time.Hour,
		StuckThreshold:      2 * time.Hour,
		JobCleanupRetention: 30 * 24 * time.Hour,
		MaxConcurrentJobs:   10,
	}
}

// Scheduler dispatches due categories to the job runner and keeps the job
// queue healthy, mirroring the teacher's ticker+WaitGroup+running-flag
// pattern generalized from a single fixed-interval scrape to a
// database-driven per-category schedule.
type Scheduler struct {
	cfg        Config
	categories CategoryStore
	jobStore   JobStore
	runner     JobRunner
	alerts     *alerting.Manager
	log        *logger.Logger

	dispatchTicker *time.Ticker
	healthTicker   *time.Ticker
	cleanupTicker  *time.Ticker
	stopChan       chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex

	inFlightMu sync.Mutex
	inFlight   map[int64]bool
	semaphore  chan struct{}
}

func New(cfg Config, categories CategoryStore, jobStore JobStore, runner JobRunner, alerts *alerting.Manager, log *logger.Logger) *Scheduler {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultConfig().MaxConcurrentJobs
	}
	return &Scheduler{
		cfg:        cfg,
		categories: categories,
		jobStore:   jobStore,
		runner:     runner,
		alerts:     alerts,
		log:        log.WithComponent("scheduler"),
		stopChan:   make(chan struct{}),
		inFlight:   make(map[int64]bool),
		semaphore:  make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

// Start begins the dispatch, cleanup, and health sweeps.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler already running")
		return
	}
	s.running = true
	s.dispatchTicker = time.NewTicker(s.cfg.PollInterval)
	s.healthTicker = time.NewTicker(s.cfg.HealthCheckInterval)
	s.cleanupTicker = time.NewTicker(s.cfg.CleanupInterval)
	s.mu.Unlock()

	s.log.Infof("starting scheduler: poll=%v health=%v cleanup=%v", s.cfg.PollInterval, s.cfg.HealthCheckInterval, s.cfg.CleanupInterval)

	s.wg.Add(3)
	go s.loop("dispatch", s.dispatchTicker, s.runDispatch, ctx)
	go s.loop("health", s.healthTicker, s.runHealthCheck, ctx)
	go s.loop("cleanup", s.cleanupTicker, s.runCleanup, ctx)
}

func (s *Scheduler) loop(name string, ticker *time.Ticker, fn func(context.Context), ctx context.Context) {
	defer s.wg.Done()
	fn(ctx)
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-s.stopChan:
			s.log.Debugf("%s sweep stopped", name)
			return
		case <-ctx.Done():
			s.log.Debugf("%s sweep context cancelled", name)
			return
		}
	}
}

// runDispatch finds categories due for a run and dispatches one job each,
// serializing per category so at most one job is RUNNING at a time.
func (s *Scheduler) runDispatch(ctx context.Context) {
	now := time.Now()
	due, err := s.categories.ListDueForSchedule(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("failed to list categories due for schedule")
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Infof("dispatching %d due categories", len(due))

	for _, category := range due {
		if s.alreadyInFlight(category.ID) {
			s.log.Debugf("category %d already has a job in flight, skipping", category.ID)
			continue
		}

		correlationID := uuid.NewString()
		jobID, err := s.jobStore.Create(ctx, category.ID, models.JobTypeScheduled, correlationID, 0)
		if err != nil {
			s.log.WithError(err).Errorf("failed to create job for category %d", category.ID)
			continue
		}

		nextRun := now.Add(time.Duration(category.ScheduleIntervalMin) * time.Minute)
		if err := s.categories.MarkScheduled(ctx, category.ID, now, nextRun); err != nil {
			s.log.WithError(err).Warnf("failed to mark category %d scheduled", category.ID)
		}

		s.dispatch(ctx, category.ID, jobID, correlationID)
	}
}

func (s *Scheduler) alreadyInFlight(categoryID int64) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	return s.inFlight[categoryID]
}

func (s *Scheduler) dispatch(ctx context.Context, categoryID, jobID int64, correlationID string) {
	s.inFlightMu.Lock()
	s.inFlight[categoryID] = true
	s.inFlightMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.inFlightMu.Lock()
			delete(s.inFlight, categoryID)
			s.inFlightMu.Unlock()
		}()

		s.semaphore <- struct{}{}
		defer func() { <-s.semaphore }()

		outcome, err := s.runner.Run(ctx, categoryID, jobID, correlationID)
		if err != nil {
			s.log.WithError(err).Errorf("job runner failed for job %d", jobID)
			return
		}
		s.log.WithFields(map[string]interface{}{
			"job_id":      jobID,
			"category_id": categoryID,
			"status":      outcome.Status,
		}).Info("job dispatch finished")
	}()
}

// runHealthCheck counts active/running/stuck jobs and alerts when the
// queue looks degraded.
func (s *Scheduler) runHealthCheck(ctx context.Context) {
	active, err := s.jobStore.CountActive(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to count active jobs")
		return
	}
	running, err := s.jobStore.CountRunning(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to count running jobs")
		return
	}
	stuck, err := s.jobStore.CountStuck(ctx, s.cfg.StuckThreshold)
	if err != nil {
		s.log.WithError(err).Error("failed to count stuck jobs")
		return
	}

	s.log.WithFields(map[string]interface{}{
		"active_jobs":  active,
		"running_jobs": running,
		"stuck_jobs":   stuck,
	}).Debug("job queue health")

	if stuck > 0 && s.alerts != nil {
		s.alerts.Send(ctx, alerting.Alert{
			Type:     alerting.TypeServiceDegraded,
			Severity: alerting.SeverityMedium,
			Message:  "stuck crawl jobs detected",
			Details:  map[string]interface{}{"stuck_jobs": stuck, "active_jobs": active, "running_jobs": running},
		})
	}
}

// runCleanup requeues stuck jobs back to PENDING and deletes retention-
// expired completed/failed jobs.
func (s *Scheduler) runCleanup(ctx context.Context) {
	requeued, err := s.jobStore.RequeueStuck(ctx, s.cfg.StuckThreshold)
	if err != nil {
		s.log.WithError(err).Error("failed to requeue stuck jobs")
	} else if requeued > 0 {
		s.log.Infof("requeued %d stuck jobs back to pending", requeued)
	}

	cutoff := time.Now().Add(-s.cfg.JobCleanupRetention)
	deleted, err := s.jobStore.DeleteCompletedOlderThan(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("failed to delete old completed jobs")
		return
	}
	if deleted > 0 {
		s.log.Infof("deleted %d completed jobs older than retention window", deleted)
	}
}

// Stop halts all sweeps and waits for in-flight dispatches to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.log.Info("stopping scheduler...")
	close(s.stopChan)

	s.dispatchTicker.Stop()
	s.healthTicker.Stop()
	s.cleanupTicker.Stop()

	s.wg.Wait()
	s.running = false
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler's sweeps are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
