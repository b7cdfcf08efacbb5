// Command recoverctl runs one recovery analysis/execution pass for a single
// category, outside the scheduler's own loop. Useful for on-call operators
// investigating a category stuck failing, per spec §1's "CLI scripts" being
// an external collaborator rather than an in-process concern.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffrey/intellinieuws/internal/alerting"
	"github.com/jeffrey/intellinieuws/internal/recovery"
	"github.com/jeffrey/intellinieuws/internal/repository"
	"github.com/jeffrey/intellinieuws/pkg/config"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

func main() {
	categoryID := flag.Int64("category", 0, "category ID to analyze")
	lookback := flag.Duration("lookback", 24*time.Hour, "how far back to look for failed jobs")
	dryRun := flag.Bool("dry-run", true, "log the recommended action without executing it")
	flag.Parse()

	if *categoryID == 0 {
		fmt.Fprintln(os.Stderr, "usage: recoverctl -category=<id> [-lookback=24h] [-dry-run=true]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer dbPool.Close()

	categoryRepo := repository.NewCategoryRepository(dbPool, log)
	jobRepo := repository.NewJobRepository(dbPool, log)

	alertManager := alerting.NewManager(alerting.DefaultManagerConfig(), log)
	alertManager.AddRules(alerting.DefaultRules())
	alertManager.RegisterHandler(alerting.ChannelLogOnly, alerting.NewLogHandler(log))

	engine := recovery.New(recovery.Config{
		MaxRetriesPerCategory: cfg.Recovery.MaxRetriesPerCategory,
		EscalationThreshold:   cfg.Recovery.EscalationThreshold,
	}, categoryRepo, jobRepo, alertManager, log)

	analysis, err := engine.Analyze(ctx, *categoryID, *lookback)
	if err != nil {
		log.WithError(err).Fatal("analysis failed")
	}
	if analysis == nil {
		fmt.Printf("category %d: no failures in the last %s\n", *categoryID, *lookback)
		return
	}

	fmt.Printf("category %d: %d failures, dominant pattern=%s, action=%s, notes=%q\n",
		analysis.CategoryID, analysis.FailureCount, analysis.DominantError, analysis.Action, analysis.Notes)

	if err := engine.Execute(ctx, analysis, "recoverctl", *dryRun); err != nil {
		log.WithError(err).Fatal("execution failed")
	}
}
