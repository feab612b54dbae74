package ports

import (
	"context"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// ClickRepository persists click events and their optional inferred passes.
type ClickRepository interface {
	// SaveClick stores the click and, when pass is non-nil, the pass row
	// referencing it. Both writes happen in a single transaction.
	SaveClick(ctx context.Context, click *domain.ClickEvent, pass *domain.InferredPass) (*domain.TrafficLightPass, error)
}

// PassRepository reads recorded traffic light passes.
type PassRepository interface {
	// ListForInterval returns passes with pass_timestamp in [start, end),
	// ordered by (light_identifier, pass_timestamp). The ordering is a
	// correctness requirement of range aggregation, not an optimization.
	ListForInterval(ctx context.Context, start, end time.Time) ([]domain.TrafficLightPass, error)
}

// RangeRepository persists aggregated light ranges.
type RangeRepository interface {
	// ReplaceForDay deletes every range for day and inserts the given ones
	// atomically, so re-running aggregation never leaves stale or partial
	// rows behind.
	ReplaceForDay(ctx context.Context, day time.Time, ranges []domain.LightRange) error

	// ListForLightAndDay returns the ranges of one light on one day, ordered
	// by start_time ascending.
	ListForLightAndDay(ctx context.Context, lightIdentifier string, day time.Time) ([]domain.LightRange, error)
}
