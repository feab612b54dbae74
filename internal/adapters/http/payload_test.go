package http_test

import (
	"encoding/json"
	"testing"
	"time"

	handler "github.com/samirrijal/greenway/internal/adapters/http"
	"github.com/samirrijal/greenway/internal/core/domain"
)

func decodePayload(t *testing.T, raw string) *handler.ClickPayload {
	t.Helper()
	var p handler.ClickPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &p
}

func TestClickPayload_NumericFields(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.751244,
		"lon": 37.618423,
		"speed": 4.2,
		"timestamp": "2026-08-28T08:00:00Z"
	}`)

	click, pass, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if pass != nil {
		t.Error("expected no inferred pass")
	}
	if click.Lat != 55.751244 || click.Lon != 37.618423 {
		t.Errorf("coordinates mangled: %v, %v", click.Lat, click.Lon)
	}
	if click.Speed == nil || *click.Speed != 4.2 {
		t.Errorf("speed mangled: %v", click.Speed)
	}
}

func TestClickPayload_StringNumbers(t *testing.T) {
	p := decodePayload(t, `{
		"lat": "55.751244",
		"lon": "37.618423",
		"speed": "4.2",
		"timestamp": "2026-08-28T08:00:00Z"
	}`)

	click, _, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if click.Lat != 55.751244 || click.Lon != 37.618423 {
		t.Errorf("string coordinates not coerced: %v, %v", click.Lat, click.Lon)
	}
	if click.Speed == nil || *click.Speed != 4.2 {
		t.Errorf("string speed not coerced: %v", click.Speed)
	}
}

func TestClickPayload_OffsetTimestampNormalizedUTC(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T11:00:00+03:00"
	}`)

	click, _, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	if !click.Timestamp.Equal(want) || click.Timestamp.Location() != time.UTC {
		t.Errorf("expected %s (UTC), got %s", want, click.Timestamp)
	}
}

func TestClickPayload_MissingCoordinates(t *testing.T) {
	for _, raw := range []string{
		`{"lon": 37.61, "timestamp": "2026-08-28T08:00:00Z"}`,
		`{"lat": 55.75, "timestamp": "2026-08-28T08:00:00Z"}`,
		`{"lat": "abc", "lon": 37.61, "timestamp": "2026-08-28T08:00:00Z"}`,
		`{"lat": 95.0, "lon": 37.61, "timestamp": "2026-08-28T08:00:00Z"}`,
	} {
		p := decodePayload(t, raw)
		if _, _, err := p.Parse(); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestClickPayload_BadTimestamp(t *testing.T) {
	p := decodePayload(t, `{"lat": 55.75, "lon": 37.61, "timestamp": "28/08/2026 08:00"}`)
	if _, _, err := p.Parse(); err == nil {
		t.Fatal("expected timestamp format error")
	}
}

func TestClickPayload_InferredState(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T08:00:00Z",
		"inferred_state": {
			"light_identifier": "661",
			"color": "GREEN",
			"speed_profile": {"avg": 4.1, "max": 6.0},
			"pass_timestamp": "2026-08-28T08:00:05Z"
		}
	}`)

	_, pass, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if pass == nil {
		t.Fatal("expected inferred pass")
	}
	if pass.LightIdentifier != "661" {
		t.Errorf("light = %q", pass.LightIdentifier)
	}
	if pass.Color != domain.ColorGreen {
		t.Errorf("color not normalized: %q", pass.Color)
	}
	if pass.PassTimestamp.Format(time.RFC3339) != "2026-08-28T08:00:05Z" {
		t.Errorf("pass timestamp = %s", pass.PassTimestamp)
	}
	if pass.SpeedProfile == nil {
		t.Error("speed profile dropped")
	}
}

func TestClickPayload_LightIdentifierAliases(t *testing.T) {
	for _, field := range []string{"light_identifier", "light_id", "light_number"} {
		p := decodePayload(t, `{
			"lat": 55.75, "lon": 37.61,
			"timestamp": "2026-08-28T08:00:00Z",
			"inferred_state": {"`+field+`": "661", "color": "red", "timestamp": "2026-08-28T08:00:05Z"}
		}`)
		_, pass, err := p.Parse()
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if pass.LightIdentifier != "661" {
			t.Errorf("%s: light = %q", field, pass.LightIdentifier)
		}
	}
}

func TestClickPayload_LightIDWinsOverOtherAliases(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T08:00:00Z",
		"inferred_state": {
			"light_id": "661",
			"light_identifier": "999",
			"light_number": "123",
			"color": "green",
			"pass_timestamp": "2026-08-28T08:00:05Z"
		}
	}`)

	_, pass, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if pass.LightIdentifier != "661" {
		t.Errorf("expected light_id to take precedence, got %q", pass.LightIdentifier)
	}
}

func TestClickPayload_NonFiniteCoordinatesRejected(t *testing.T) {
	for _, body := range []string{
		`{"lat": "NaN", "lon": 37.61, "timestamp": "2026-08-28T08:00:00Z"}`,
		`{"lat": 55.75, "lon": "Inf", "timestamp": "2026-08-28T08:00:00Z"}`,
		`{"lat": "-Infinity", "lon": 37.61, "timestamp": "2026-08-28T08:00:00Z"}`,
	} {
		p := decodePayload(t, body)
		if _, _, err := p.Parse(); err == nil {
			t.Errorf("expected non-finite coordinate to be rejected: %s", body)
		}
	}
}

func TestClickPayload_PassTimestampRequired(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T08:00:00Z",
		"inferred_state": {"light_id": "661", "color": "green"}
	}`)

	if _, _, err := p.Parse(); err == nil {
		t.Fatal("expected error for inferred_state without a timestamp")
	}
}

func TestClickPayload_InvalidColor(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T08:00:00Z",
		"inferred_state": {"light_id": "661", "color": "yellow"}
	}`)
	if _, _, err := p.Parse(); err == nil {
		t.Fatal("expected error for unknown color")
	}
}

func TestClickPayload_InferredStateWithoutLight(t *testing.T) {
	p := decodePayload(t, `{
		"lat": 55.75, "lon": 37.61,
		"timestamp": "2026-08-28T08:00:00Z",
		"inferred_state": {"color": "green"}
	}`)
	if _, _, err := p.Parse(); err == nil {
		t.Fatal("expected error for inferred_state without a light identifier")
	}
}
