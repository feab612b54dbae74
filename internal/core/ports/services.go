package ports

import (
	"context"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPass(ctx context.Context, pass *domain.TrafficLightPass) error
	PublishAggregation(ctx context.Context, result *domain.AggregationResult) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReferenceProvider supplies the known traffic light coordinates used for
// geofence validation. Implementations degrade to an empty set rather than
// returning errors; an empty set means "no geofence enforced".
type ReferenceProvider interface {
	Coordinates() []domain.GeoPoint
}
