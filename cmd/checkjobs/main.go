package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sahilchouksey/univast-api/app"
	"github.com/sahilchouksey/univast-api/config"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/cron"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/logger"
)

// checkjobs prints recent scheduler runs and the review backlog. With -run it
// executes one job synchronously first, e.g. -run reconcile_counters.
func main() {
	limit := flag.Int("limit", 20, "number of recent runs to show")
	run := flag.String("run", "", "job to execute before reporting")
	flag.Parse()

	log := logger.New("warn", "text")

	if err := config.LoadENV(); err != nil {
		log.WithError(err).Warn(".env file not loaded, using system environment variables")
	}
	cfg, err := config.Get()
	if err != nil {
		log.WithError(err).Fatal("failed to read configuration")
	}

	store, err := database.StartGORM(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer store.Close()

	backend, err := app.NewStorageBackend(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize attachment storage")
	}

	db := store.GetDB()
	container := app.NewContainer(cfg, db, backend, services.NewEmailService(cfg), log)
	manager := cron.NewCronManager(db, cron.Services{
		Accounts:      container.Accounts,
		Applications:  container.Applications,
		Institutions:  container.Institutions,
		Dispatcher:    container.Notifications,
		Notifications: container.Notifications,
		Revocations:   auth.NewRevocationStore(db),
	}, cron.Options{}, log)

	if *run != "" {
		if err := manager.RunNow(*run); err != nil {
			fmt.Fprintf(os.Stderr, "job %s failed: %v\n", *run, err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	runs, err := manager.RecentRuns(ctx, *limit)
	if err != nil {
		log.WithError(err).Fatal("failed to load cron runs")
	}

	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("CRON JOB RUNS")
	fmt.Println(strings.Repeat("=", 40))

	if len(runs) == 0 {
		fmt.Println("No cron job runs recorded")
	}
	for _, r := range runs {
		fmt.Printf("[%s] %-20s %-9s %6dms  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.JobName, r.Status, r.Duration, summary(r))
	}

	stats, err := container.Applications.Stats(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to aggregate applications")
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("APPLICATIONS: %d\n", stats.Total)
	fmt.Println(strings.Repeat("=", 40))
	for _, status := range model.AllStatuses {
		fmt.Printf("  %-13s %d\n", status, stats.ByStatus[status])
	}
}

func summary(r model.CronJobLog) string {
	if r.Status == model.CronJobFailed {
		return "error: " + truncate(r.ErrorMsg, 80)
	}
	return truncate(r.Message, 80)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
