package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/greenway/internal/adapters/nats"
	"github.com/samirrijal/greenway/internal/adapters/postgres"
	"github.com/samirrijal/greenway/internal/core/ports"
	"github.com/samirrijal/greenway/internal/core/usecases"
	"github.com/samirrijal/greenway/internal/pkg/config"
	"github.com/samirrijal/greenway/internal/pkg/logging"
	"github.com/samirrijal/greenway/internal/workflows"
)

func main() {
	dayFlag := flag.String("day", "", "day to aggregate (YYYY-MM-DD, default: previous UTC day)")
	workerFlag := flag.Bool("worker", false, "run as a Temporal worker with NATS trigger subscription")
	flag.Parse()

	cfg, err := config.Load("greenway-aggregator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("greenway-aggregator", logLevel, "json")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, aggregation events will not be published", "error", err)
	} else {
		events = pub
		defer pub.Close()
	}

	aggSvc := usecases.NewAggregationService(
		postgres.NewPassRepo(db),
		postgres.NewRangeRepo(db),
		events,
	)

	if *workerFlag {
		runWorker(cfg, aggSvc)
		return
	}

	// One-shot mode: aggregate a single day and exit.
	var day time.Time
	if *dayFlag != "" {
		day, err = time.ParseInLocation("2006-01-02", *dayFlag, time.UTC)
		if err != nil {
			log.Fatalf("invalid -day %q: %v", *dayFlag, err)
		}
	}

	result, err := aggSvc.Aggregate(ctx, day)
	if err != nil {
		log.Fatalf("aggregate: %v", err)
	}
	slog.Info("aggregation finished",
		"day", result.Day.Format("2006-01-02"),
		"ranges", len(result.Ranges),
		"passes", result.PassCount)
}

// runWorker hosts the aggregation workflow on Temporal and converts NATS
// trigger messages into workflow executions. The workflow ID embeds the day,
// so concurrent triggers for the same day collapse into a single run.
func runWorker(cfg *config.Config, aggSvc *usecases.AggregationService) {
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AggregationWorkflow)
	w.RegisterActivity(&workflows.AggregationActivities{Aggregation: aggSvc})

	// Nightly run shortly after midnight UTC, aggregating the day that just
	// ended. Re-registering on restart is a no-op while the cron is alive.
	_, err = c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:           "aggregate-daily",
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: "15 0 * * *",
	}, workflows.AggregationWorkflow, workflows.AggregationInput{})
	if err != nil {
		slog.Warn("schedule daily aggregation", "error", err)
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats trigger subscription unavailable", "error", err)
	} else {
		defer sub.Close()
		err = sub.SubscribeAggregateTriggers(func(day time.Time) {
			dayStr := ""
			if !day.IsZero() {
				dayStr = day.Format("2006-01-02")
			}
			workflowID := "aggregate-" + dayStr
			if dayStr == "" {
				workflowID = "aggregate-previous-day"
			}

			_, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
				ID:        workflowID,
				TaskQueue: cfg.Temporal.TaskQueue,
			}, workflows.AggregationWorkflow, workflows.AggregationInput{Day: dayStr})
			if err != nil {
				slog.Error("start aggregation workflow failed", "day", dayStr, "error", err)
				return
			}
			slog.Info("aggregation workflow started", "workflow_id", workflowID)
		})
		if err != nil {
			slog.Warn("subscribe aggregate triggers failed", "error", err)
		}
	}

	slog.Info("aggregation worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
