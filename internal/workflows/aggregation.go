package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// AggregationInput is the input for the daily aggregation workflow.
// Day is a calendar date in YYYY-MM-DD form; empty means the previous UTC day.
type AggregationInput struct {
	Day string
}

// AggregationResult summarizes a completed aggregation run.
type AggregationResult struct {
	Day        string
	RangeCount int
	PassCount  int
}

// AggregationWorkflow rebuilds the per-light time ranges for one calendar day.
// The heavy lifting happens in a single activity; the workflow exists so runs
// are retried, deduplicated by workflow ID, and visible in Temporal UI.
func AggregationWorkflow(ctx workflow.Context, input AggregationInput) (*AggregationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting aggregation workflow", "day", input.Day)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result AggregationResult
	if err := workflow.ExecuteActivity(ctx, "AggregateDay", input.Day).Get(ctx, &result); err != nil {
		return nil, err
	}

	logger.Info("Aggregation complete", "day", result.Day, "ranges", result.RangeCount, "passes", result.PassCount)
	return &result, nil
}
