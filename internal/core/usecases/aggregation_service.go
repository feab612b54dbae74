package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/core/ports"
)

// AggregationService compresses a day's raw passes into contiguous
// per-light color ranges and replaces that day's stored ranges atomically.
type AggregationService struct {
	passes ports.PassRepository
	ranges ports.RangeRepository
	events ports.EventPublisher
	now    func() time.Time
}

// NewAggregationService creates a new AggregationService. events may be nil.
func NewAggregationService(passes ports.PassRepository, ranges ports.RangeRepository, events ports.EventPublisher) *AggregationService {
	return &AggregationService{passes: passes, ranges: ranges, events: events, now: time.Now}
}

// Aggregate computes and stores ranges for day. A zero day means the previous
// UTC calendar day, which avoids aggregating a still-accumulating day.
// Re-running for the same day on unchanged input produces identical rows:
// all prior ranges for the day are replaced in one transaction.
//
// Concurrent runs for the same day are not safe and must be serialized by the
// caller; runs for different days touch disjoint rows and may overlap.
func (s *AggregationService) Aggregate(ctx context.Context, day time.Time) (*domain.AggregationResult, error) {
	if day.IsZero() {
		day = domain.PreviousUTCDay(s.now())
	} else {
		day = domain.TruncateToDay(day)
	}

	start, end := domain.DayBounds(day)

	passes, err := s.passes.ListForInterval(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list passes for %s: %w", day.Format("2006-01-02"), err)
	}

	ranges := buildRanges(passes, day)

	if err := s.ranges.ReplaceForDay(ctx, day, ranges); err != nil {
		return nil, fmt.Errorf("replace ranges for %s: %w", day.Format("2006-01-02"), err)
	}

	result := &domain.AggregationResult{Day: day, Ranges: ranges, PassCount: len(passes)}

	slog.Info("aggregated light ranges",
		"day", day.Format("2006-01-02"), "ranges", len(ranges), "passes", len(passes))

	if s.events != nil {
		if err := s.events.PublishAggregation(ctx, result); err != nil {
			slog.Warn("publish aggregation event failed", "day", day.Format("2006-01-02"), "error", err)
		}
	}

	return result, nil
}

// buildRanges folds the (light, timestamp)-ordered passes into maximal runs
// of consecutive same-color observations. The accumulator holds the open
// range for the light currently being scanned; a color change (or a new
// light) closes it. A single observation yields a zero-duration range.
func buildRanges(passes []domain.TrafficLightPass, day time.Time) []domain.LightRange {
	ranges := make([]domain.LightRange, 0, len(passes))
	var open *domain.LightRange

	for _, p := range passes {
		if open != nil && open.LightIdentifier == p.LightIdentifier && open.Color == p.Color {
			open.EndTime = p.PassTimestamp
			continue
		}

		if open != nil {
			ranges = append(ranges, *open)
		}
		open = &domain.LightRange{
			LightIdentifier: p.LightIdentifier,
			Color:           p.Color,
			StartTime:       p.PassTimestamp,
			EndTime:         p.PassTimestamp,
			Day:             day,
		}
	}

	if open != nil {
		ranges = append(ranges, *open)
	}
	return ranges
}
