package domain

import (
	"time"
)

// PassColor is the observed state of a traffic light during a pass.
type PassColor string

const (
	ColorGreen PassColor = "green"
	ColorRed   PassColor = "red"
)

// Valid reports whether the color is one of the known states.
func (c PassColor) Valid() bool {
	return c == ColorGreen || c == ColorRed
}

// ClickEvent is a single geolocated button press reported by a client.
type ClickEvent struct {
	ID        int64     `json:"id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     *float64  `json:"speed,omitempty"` // m/s, as reported by the device
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// InferredPass is the client-computed annotation attached to a click:
// which light was passed, in what color, and when.
type InferredPass struct {
	LightIdentifier string    `json:"light_identifier"`
	Color           PassColor `json:"color"`
	SpeedProfile    any       `json:"speed_profile,omitempty"` // opaque JSON value
	PassTimestamp   time.Time `json:"pass_timestamp"`
}

// TrafficLightPass is a persisted observation of a light's color at an instant.
// It belongs to exactly one click event and is immutable once recorded.
type TrafficLightPass struct {
	ID              int64     `json:"id"`
	ClickEventID    int64     `json:"click_event_id"`
	LightIdentifier string    `json:"light_identifier"`
	Color           PassColor `json:"color"`
	SpeedProfile    any       `json:"speed_profile,omitempty"`
	PassTimestamp   time.Time `json:"pass_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
}

// LightRange is a maximal contiguous run of same-color observations for one
// light within a single UTC day. For a fixed (light, day) the ranges are
// non-overlapping and ordered by StartTime.
type LightRange struct {
	ID              int64     `json:"id"`
	LightIdentifier string    `json:"light_identifier"`
	Color           PassColor `json:"color"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Day             time.Time `json:"day"` // midnight UTC of the calendar day
	CreatedAt       time.Time `json:"created_at"`
}

// AggregationResult summarises one aggregation run.
type AggregationResult struct {
	Day       time.Time    `json:"day"`
	Ranges    []LightRange `json:"ranges"`
	PassCount int          `json:"pass_count"`
}

// PreviousUTCDay returns midnight UTC of the calendar day before now.
// Aggregation and range reads default to it so that an in-progress day is
// never aggregated.
func PreviousUTCDay(now time.Time) time.Time {
	return TruncateToDay(now.UTC().AddDate(0, 0, -1))
}

// TruncateToDay normalizes t to midnight UTC of its calendar day.
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the half-open interval [00:00:00Z, 24:00:00Z) of day.
func DayBounds(day time.Time) (start, end time.Time) {
	start = TruncateToDay(day)
	return start, start.AddDate(0, 0, 1)
}
