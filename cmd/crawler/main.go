package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/internal/api"
	"github.com/jeffrey/intellinieuws/internal/cache"
	"github.com/jeffrey/intellinieuws/internal/crawl"
	"github.com/jeffrey/intellinieuws/internal/extract"
	"github.com/jeffrey/intellinieuws/internal/extract/browser"
	"github.com/jeffrey/intellinieuws/internal/jobs"
	"github.com/jeffrey/intellinieuws/internal/recovery"
	"github.com/jeffrey/intellinieuws/internal/repository"
	"github.com/jeffrey/intellinieuws/internal/resolver"
	"github.com/jeffrey/intellinieuws/internal/scheduler"
	"github.com/jeffrey/intellinieuws/internal/search"
	"github.com/jeffrey/intellinieuws/pkg/breaker"
	"github.com/jeffrey/intellinieuws/pkg/config"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
	"github.com/jeffrey/intellinieuws/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log.Info("Starting news crawler service")

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		log.WithError(err).Fatal("Failed to parse database config")
	}
	dbConfig.MaxConns = 25
	dbConfig.MinConns = 5
	dbConfig.MaxConnLifetime = 1 * time.Hour
	dbConfig.MaxConnIdleTime = 30 * time.Minute
	dbConfig.HealthCheckPeriod = 1 * time.Minute
	dbConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	dbConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "news-crawler",
		"search_path":       "public",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	dbPool, err := pgxpool.NewWithConfig(dbCtx, dbConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := dbPool.Ping(dbCtx); err != nil {
		log.WithError(err).Fatal("Failed to ping database")
	}
	log.Info("Successfully connected to database")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(dbCtx).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, continuing without shared cache")
		redisClient = nil
	}
	sharedCache := cache.NewService(redisClient, 24*time.Hour)

	var robotsChecker *utils.RobotsChecker
	if cfg.Search.RobotsTxtCheck {
		robotsChecker = utils.NewRobotsChecker(cfg.Search.UserAgent).WithSharedCache(sharedCache)
	}

	breakers := breaker.NewManager(breaker.Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
	}).WithMetrics(m)

	var browserPool *browser.Pool
	if cfg.Resolver.BrowserEnabled || cfg.Extractor.JSRenderEnabled {
		browserPool, err = browser.NewPool(cfg.Browser.PoolSize, log)
		if err != nil {
			log.WithError(err).Warn("Failed to start browser pool, JS-render fallbacks disabled")
			browserPool = nil
		}
	}

	articleRepo := repository.NewArticleRepository(dbPool, log)
	categoryRepo := repository.NewCategoryRepository(dbPool, log)
	jobRepo := repository.NewJobRepository(dbPool, log)

	searchClient := search.NewClient(breakers, log, cfg.Search.UserAgent).WithMetrics(m).WithRobotsChecker(robotsChecker)
	urlResolver := resolver.New(resolver.Config{
		PerURLTimeout:  cfg.Resolver.PerURLTimeout,
		BatchBudget:    cfg.Resolver.BatchBudget,
		BatchURLCap:    cfg.Resolver.BatchURLCap,
		BrowserEnabled: cfg.Resolver.BrowserEnabled,
	}, browserPool, log, m).WithCache(sharedCache)
	extractor := extract.New(extract.Config{
		ExtractionTimeout: cfg.Extractor.Timeout,
		JSRenderEnabled:   cfg.Extractor.JSRenderEnabled,
		BrowserWaitTime:   cfg.Browser.WaitAfterLoad,
	}, extract.DefaultSelectors(), browserPool, breakers, log, m).WithRobotsChecker(robotsChecker)

	crawlEngine := crawl.New(crawl.Config{
		MaxConcurrentExtractions: cfg.Extractor.ConcurrencyLimit,
	}, searchClient, urlResolver, extractor, articleRepo, log).WithCategoryLister(categoryRepo).WithMetrics(m)

	jobRunner := jobs.New(categoryRepo, jobRepo, crawlEngine, true, log).WithMetrics(m)

	alertManager := alerting.NewManager(alerting.ManagerConfig{
		MaxAlertsPerHour: cfg.Alerting.MaxAlertsPerHour,
	}, log).WithMetrics(m)
	alertManager.AddRules(alerting.DefaultRules())
	alertManager.RegisterHandler(alerting.ChannelLogOnly, alerting.NewLogHandler(log))
	if cfg.Alerting.WebhookURL != "" {
		alertManager.RegisterHandler(alerting.ChannelWebhook, alerting.NewWebhookHandler(alerting.WebhookConfig{
			URLs: []string{cfg.Alerting.WebhookURL},
		}, log))
	}
	if cfg.Alerting.EmailEnabled {
		alertManager.RegisterHandler(alerting.ChannelEmail, alerting.NewEmailHandler(alerting.EmailConfig{
			SMTPHost:     cfg.Alerting.EmailHost,
			SMTPPort:     cfg.Alerting.EmailPort,
			SMTPUsername: cfg.Alerting.EmailUsername,
			SMTPPassword: cfg.Alerting.EmailPassword,
			FromEmail:    cfg.Alerting.EmailUsername,
			ToEmails:     strings.Split(cfg.Alerting.EmailRecipients, ","),
		}, log))
	}

	schedulerCfg := scheduler.DefaultConfig()
	schedulerCfg.PollInterval = time.Duration(cfg.Scheduler.PollIntervalMinutes) * time.Minute
	schedulerCfg.HealthCheckInterval = cfg.Scheduler.HealthCheckInterval
	schedulerCfg.CleanupInterval = cfg.Scheduler.CleanupInterval
	schedulerCfg.StuckThreshold = cfg.Scheduler.StuckThreshold
	schedulerCfg.JobCleanupRetention = cfg.Scheduler.CleanupRetention()
	schedulerCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs

	sched := scheduler.New(schedulerCfg, categoryRepo, jobRepo, jobRunner, alertManager, log)

	recoveryEngine := recovery.New(recovery.Config{
		MaxRetriesPerCategory: cfg.Recovery.MaxRetriesPerCategory,
		EscalationThreshold:   cfg.Recovery.EscalationThreshold,
	}, categoryRepo, jobRepo, alertManager, log).WithMetrics(m)
	_ = recoveryEngine // invoked out-of-band via cmd/recoverctl

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	log.Info("Scheduler started")

	adminServer := api.NewServer(api.Config{Port: cfg.Server.MetricsPort}, reg, alertManager, log)
	go func() {
		if err := adminServer.Start(); err != nil {
			log.WithError(err).Error("Admin server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down crawler...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Admin server forced to shutdown")
	}

	log.Info("Crawler exited")
}
