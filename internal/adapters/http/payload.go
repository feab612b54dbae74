package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// ClickPayload is the wire form of a reported click. Coordinates and speed
// arrive either as JSON numbers or as numeric strings, depending on the
// client generation, so everything is decoded through json.RawMessage first.
type ClickPayload struct {
	Lat           json.RawMessage `json:"lat"`
	Lon           json.RawMessage `json:"lon"`
	Speed         json.RawMessage `json:"speed"`
	Timestamp     string          `json:"timestamp"`
	InferredState *InferredState  `json:"inferred_state"`
}

// InferredState carries the client's pass annotation. Older clients send the
// light under light_id or light_number instead of light_identifier.
type InferredState struct {
	LightIdentifier string          `json:"light_identifier"`
	LightID         string          `json:"light_id"`
	LightNumber     string          `json:"light_number"`
	Color           string          `json:"color"`
	SpeedProfile    any             `json:"speed_profile"`
	PassTimestamp   string          `json:"pass_timestamp"`
	Timestamp       string          `json:"timestamp"`
}

// Parse validates the payload and converts it into domain objects. A nil
// InferredPass is returned when the click carries no pass annotation.
func (p *ClickPayload) Parse() (*domain.ClickEvent, *domain.InferredPass, error) {
	lat, ok := parseNumber(p.Lat)
	if !ok {
		return nil, nil, fmt.Errorf("lat is required and must be numeric")
	}
	lon, ok := parseNumber(p.Lon)
	if !ok {
		return nil, nil, fmt.Errorf("lon is required and must be numeric")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, nil, fmt.Errorf("coordinates out of range: lat=%v lon=%v", lat, lon)
	}

	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return nil, nil, fmt.Errorf("timestamp: %w", err)
	}

	click := &domain.ClickEvent{Lat: lat, Lon: lon, Timestamp: ts}
	if speed, ok := parseNumber(p.Speed); ok {
		click.Speed = &speed
	}

	if p.InferredState == nil {
		return click, nil, nil
	}

	pass, err := p.InferredState.parse()
	if err != nil {
		return nil, nil, err
	}
	return click, pass, nil
}

func (s *InferredState) parse() (*domain.InferredPass, error) {
	light := s.LightID
	if light == "" {
		light = s.LightIdentifier
	}
	if light == "" {
		light = s.LightNumber
	}
	if strings.TrimSpace(light) == "" {
		return nil, fmt.Errorf("inferred_state requires a light identifier")
	}

	color := domain.PassColor(strings.ToLower(strings.TrimSpace(s.Color)))
	if !color.Valid() {
		return nil, fmt.Errorf("inferred_state.color must be green or red, got %q", s.Color)
	}

	rawTS := s.PassTimestamp
	if rawTS == "" {
		rawTS = s.Timestamp
	}
	passTS, err := parseTimestamp(rawTS)
	if err != nil {
		return nil, fmt.Errorf("inferred_state timestamp: %w", err)
	}

	return &domain.InferredPass{
		LightIdentifier: strings.TrimSpace(light),
		Color:           color,
		SpeedProfile:    s.SpeedProfile,
		PassTimestamp:   passTS,
	}, nil
}

// parseTimestamp accepts RFC 3339 with or without sub-seconds and offset, and
// normalizes to UTC so day bucketing is stable regardless of client timezone.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be RFC 3339, got %q", raw)
	}
	return t.UTC(), nil
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// ParseFloat accepts "NaN" and "Inf"; those are never valid input.
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil &&
			!math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}
