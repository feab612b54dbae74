package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/greenway/internal/core/usecases"
)

// AggregationActivities holds the activity implementations for the
// aggregation workflow.
type AggregationActivities struct {
	Aggregation *usecases.AggregationService
}

// AggregateDay recomputes the light ranges for the given day (YYYY-MM-DD,
// empty for the previous UTC day) and returns a summary.
func (a *AggregationActivities) AggregateDay(ctx context.Context, day string) (*AggregationResult, error) {
	var target time.Time
	if day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		target = parsed
	}

	res, err := a.Aggregation.Aggregate(ctx, target)
	if err != nil {
		return nil, err
	}

	return &AggregationResult{
		Day:        res.Day.Format("2006-01-02"),
		RangeCount: len(res.Ranges),
		PassCount:  res.PassCount,
	}, nil
}
