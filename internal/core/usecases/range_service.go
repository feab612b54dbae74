package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/core/ports"
	"github.com/samirrijal/greenway/internal/pkg/metrics"
)

// rangeCacheTTL is short: ranges only change when the aggregation job runs.
const rangeCacheTTL = 5 * time.Minute

// RangeService serves aggregated light ranges.
type RangeService struct {
	ranges ports.RangeRepository
	cache  ports.CacheService
	now    func() time.Time
}

// NewRangeService creates a new RangeService. cache may be nil.
func NewRangeService(ranges ports.RangeRepository, cache ports.CacheService) *RangeService {
	return &RangeService{ranges: ranges, cache: cache, now: time.Now}
}

// RangesFor returns the ranges of one light for one day, ordered by
// start_time. A zero day defaults to the previous UTC day, matching the
// aggregation default so reads and writes agree. An empty result is not an
// error: the day simply has not been aggregated, or the light never flipped.
func (s *RangeService) RangesFor(ctx context.Context, lightIdentifier string, day time.Time) ([]domain.LightRange, error) {
	if lightIdentifier == "" {
		return nil, fmt.Errorf("light identifier must not be empty")
	}

	if day.IsZero() {
		day = domain.PreviousUTCDay(s.now())
	} else {
		day = domain.TruncateToDay(day)
	}

	cacheKey := fmt.Sprintf("ranges:%s:%s", lightIdentifier, day.Format("2006-01-02"))
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var ranges []domain.LightRange
			if err := json.Unmarshal(data, &ranges); err == nil {
				metrics.CacheHits.WithLabelValues("ranges").Inc()
				return ranges, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("ranges").Inc()
	}

	ranges, err := s.ranges.ListForLightAndDay(ctx, lightIdentifier, day)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(ranges); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, rangeCacheTTL)
		}
	}

	return ranges, nil
}
