package usecases

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/greenway/internal/core/ports"
	"github.com/samirrijal/greenway/internal/pkg/geospatial"
)

// DefaultMaxDistanceMeters filters out all but the nearest, directly visible
// lights while still allowing legitimate remote activations.
const DefaultMaxDistanceMeters = 50.0

// rejectionMessage is intentionally fixed; clients rely on the structured
// details.distance_m field rather than parsing the text.
const rejectionMessage = "Вы находитесь слишком далеко от ближайшего светофора для отправки сигнала."

// Rejection describes why a click was refused by the geofence.
type Rejection struct {
	Message        string
	DistanceMeters float64 // rounded to one decimal for diagnostics
}

// GeofenceService validates click coordinates against the known traffic
// light positions. Validation fails open: when no reference set is available
// every click is accepted, because missing geodata must not brick ingestion.
type GeofenceService struct {
	lights      ports.ReferenceProvider
	maxDistance float64
}

// NewGeofenceService creates a validator. rawMaxDistance is the operator
// configured radius in meters as a raw string; anything non-numeric, negative
// or non-finite falls back to DefaultMaxDistanceMeters with a warning.
func NewGeofenceService(lights ports.ReferenceProvider, rawMaxDistance string) *GeofenceService {
	return &GeofenceService{
		lights:      lights,
		maxDistance: sanitizeMaxDistance(rawMaxDistance),
	}
}

// MaxDistanceMeters returns the effective geofence radius.
func (s *GeofenceService) MaxDistanceMeters() float64 {
	return s.maxDistance
}

// Validate returns nil when the click is acceptable: either the nearest known
// light is within the radius, or no reference set is available at all.
func (s *GeofenceService) Validate(lat, lon float64) *Rejection {
	lights := s.lights.Coordinates()
	if len(lights) == 0 {
		slog.Warn("traffic light reference set unavailable or empty, allowing click without distance enforcement")
		return nil
	}

	nearest := math.Inf(1)
	for _, light := range lights {
		if d := geospatial.Haversine(lat, lon, light.Lat, light.Lon); d < nearest {
			nearest = d
		}
	}

	if nearest <= s.maxDistance {
		return nil
	}

	return &Rejection{
		Message:        rejectionMessage,
		DistanceMeters: math.Round(nearest*10) / 10,
	}
}

func sanitizeMaxDistance(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultMaxDistanceMeters
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || !isFinite(v) {
		slog.Warn("invalid geofence max distance, falling back to default",
			"configured", raw, "default_m", DefaultMaxDistanceMeters)
		return DefaultMaxDistanceMeters
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
