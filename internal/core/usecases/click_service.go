package usecases

import (
	"context"
	"log/slog"

	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/core/ports"
)

// ClickService records validated click events.
type ClickService struct {
	clicks   ports.ClickRepository
	geofence *GeofenceService
	events   ports.EventPublisher
}

// NewClickService creates a new ClickService. events may be nil when no
// broker is available.
func NewClickService(clicks ports.ClickRepository, geofence *GeofenceService, events ports.EventPublisher) *ClickService {
	return &ClickService{clicks: clicks, geofence: geofence, events: events}
}

// RecordClick validates the click against the geofence and persists it
// together with its optional inferred pass. A non-nil Rejection is a business
// refusal, not an error; an error means persistence failed.
func (s *ClickService) RecordClick(ctx context.Context, click *domain.ClickEvent, inferred *domain.InferredPass) (*Rejection, error) {
	if rej := s.geofence.Validate(click.Lat, click.Lon); rej != nil {
		return rej, nil
	}

	pass, err := s.clicks.SaveClick(ctx, click, inferred)
	if err != nil {
		return nil, err
	}

	if pass != nil && s.events != nil {
		// Best effort: a broker outage must not fail the click.
		if err := s.events.PublishPass(ctx, pass); err != nil {
			slog.Warn("publish pass event failed", "light", pass.LightIdentifier, "error", err)
		}
	}

	return nil, nil
}
