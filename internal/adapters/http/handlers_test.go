package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/greenway/internal/adapters/geodata"
	handler "github.com/samirrijal/greenway/internal/adapters/http"
	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/core/usecases"
)

// ---- Mock repositories ----

type mockClickRepo struct {
	saveFn func(ctx context.Context, click *domain.ClickEvent, pass *domain.InferredPass) (*domain.TrafficLightPass, error)
}

func (m *mockClickRepo) SaveClick(ctx context.Context, click *domain.ClickEvent, pass *domain.InferredPass) (*domain.TrafficLightPass, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, click, pass)
	}
	return nil, nil
}

type mockPassRepo struct {
	listFn func(ctx context.Context, start, end time.Time) ([]domain.TrafficLightPass, error)
}

func (m *mockPassRepo) ListForInterval(ctx context.Context, start, end time.Time) ([]domain.TrafficLightPass, error) {
	if m.listFn != nil {
		return m.listFn(ctx, start, end)
	}
	return nil, nil
}

type mockRangeRepo struct {
	replaceFn func(ctx context.Context, day time.Time, ranges []domain.LightRange) error
	listFn    func(ctx context.Context, lightIdentifier string, day time.Time) ([]domain.LightRange, error)
}

func (m *mockRangeRepo) ReplaceForDay(ctx context.Context, day time.Time, ranges []domain.LightRange) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, day, ranges)
	}
	return nil
}

func (m *mockRangeRepo) ListForLightAndDay(ctx context.Context, lightIdentifier string, day time.Time) ([]domain.LightRange, error) {
	if m.listFn != nil {
		return m.listFn(ctx, lightIdentifier, day)
	}
	return nil, nil
}

// ---- Test helpers ----

func testLights(t *testing.T) *geodata.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "light_traffics.json")
	if err := os.WriteFile(path, []byte(`[{"lat": 55.751244, "lon": 37.618423}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	return geodata.NewStore(path)
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(t *testing.T, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	t.Helper()
	lights := testLights(t)
	geofence := usecases.NewGeofenceService(lights, "")
	d := &handler.Dependencies{
		Clicks:      usecases.NewClickService(&mockClickRepo{}, geofence, nil),
		Ranges:      usecases.NewRangeService(&mockRangeRepo{}, nil),
		Aggregation: usecases.NewAggregationService(&mockPassRepo{}, &mockRangeRepo{}, nil),
		Lights:      lights,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---- Click handler tests ----

func TestClick_Accepted(t *testing.T) {
	saved := false
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Clicks = usecases.NewClickService(&mockClickRepo{
			saveFn: func(ctx context.Context, click *domain.ClickEvent, pass *domain.InferredPass) (*domain.TrafficLightPass, error) {
				saved = true
				return nil, nil
			},
		}, usecases.NewGeofenceService(d.Lights, ""), nil)
	})
	app := setupApp(deps)

	body := `{"lat": 55.751244, "lon": 37.618423, "timestamp": "2026-08-28T08:00:00Z"}`
	req := httptest.NewRequest("POST", "/v1/clicks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if !saved {
		t.Error("click was not persisted")
	}
}

func TestClick_GeofenceRejection(t *testing.T) {
	app := setupApp(makeDeps(t))

	// Several kilometers from the only known light.
	body := `{"lat": 55.80, "lon": 37.70, "timestamp": "2026-08-28T08:00:00Z"}`
	req := httptest.NewRequest("POST", "/v1/clicks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var result struct {
		Error   string `json:"error"`
		Details struct {
			DistanceM float64 `json:"distance_m"`
		} `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Error == "" {
		t.Error("rejection must carry an error message")
	}
	if result.Details.DistanceM <= 50 {
		t.Errorf("expected distance_m above the radius, got %v", result.Details.DistanceM)
	}
}

func TestClick_MalformedPayload(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("POST", "/v1/clicks", strings.NewReader(`{"lat": "abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %q", apiErr.Code)
	}
}

func TestClick_LegacyPathDeprecationHeaders(t *testing.T) {
	app := setupApp(makeDeps(t))

	body := `{"lat": 55.751244, "lon": 37.618423, "timestamp": "2026-08-28T08:00:00Z"}`
	req := httptest.NewRequest("POST", "/api/green_light", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("legacy path must still ingest, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header on legacy path")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header on legacy path")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "/v1/clicks") {
		t.Errorf("expected Link header pointing at /v1/clicks, got %q", link)
	}
}

// ---- Range handler tests ----

func TestLightRanges_Success(t *testing.T) {
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Ranges = usecases.NewRangeService(&mockRangeRepo{
			listFn: func(ctx context.Context, lightIdentifier string, dd time.Time) ([]domain.LightRange, error) {
				return []domain.LightRange{
					{LightIdentifier: "661", Color: domain.ColorGreen,
						StartTime: day.Add(8 * time.Hour), EndTime: day.Add(8*time.Hour + 5*time.Minute), Day: day},
					{LightIdentifier: "661", Color: domain.ColorRed,
						StartTime: day.Add(9 * time.Hour), EndTime: day.Add(9*time.Hour + 2*time.Minute), Day: day},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/lights/661/ranges?day=2026-08-28", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		LightIdentifier string `json:"light_identifier"`
		Day             string `json:"day"`
		Ranges          []struct {
			Color     string `json:"color"`
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		} `json:"ranges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.LightIdentifier != "661" || result.Day != "2026-08-28" {
		t.Errorf("unexpected envelope: %+v", result)
	}
	if len(result.Ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(result.Ranges))
	}
	if result.Ranges[0].Color != "green" || result.Ranges[1].Color != "red" {
		t.Errorf("unexpected colors: %+v", result.Ranges)
	}
}

func TestLightRanges_EmptyDay(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/lights/661/ranges?day=2026-08-28", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for empty day, got %d", resp.StatusCode)
	}

	var result struct {
		Day    string            `json:"day"`
		Ranges []json.RawMessage `json:"ranges"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Day != "2026-08-28" {
		t.Errorf("expected served day in envelope, got %q", result.Day)
	}
	if len(result.Ranges) != 0 {
		t.Errorf("expected empty ranges list, got %d", len(result.Ranges))
	}
}

func TestLightRanges_BadDay(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/lights/661/ranges?day=yesterday", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for bad day, got %d", resp.StatusCode)
	}
}

// ---- Geodata handler tests ----

func TestTrafficLights_Passthrough(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/light_traffics.json", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}

	var payload []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload) != 1 {
		t.Errorf("expected 1 light, got %d", len(payload))
	}
}

// ---- Aggregation trigger tests ----

func TestAggregate_Success(t *testing.T) {
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Aggregation = usecases.NewAggregationService(&mockPassRepo{
			listFn: func(ctx context.Context, start, end time.Time) ([]domain.TrafficLightPass, error) {
				return []domain.TrafficLightPass{
					{LightIdentifier: "661", Color: domain.ColorGreen, PassTimestamp: start.Add(8 * time.Hour)},
				}, nil
			},
		}, &mockRangeRepo{}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/v1/aggregate", strings.NewReader(`{"day": "2026-08-28"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Day       string `json:"day"`
		Ranges    int    `json:"ranges"`
		PassCount int    `json:"pass_count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Day != "2026-08-28" || result.Ranges != 1 || result.PassCount != 1 {
		t.Errorf("unexpected summary: %+v", result)
	}
}

func TestAggregate_BadDay(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("POST", "/v1/aggregate", strings.NewReader(`{"day": "August 28"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- System endpoint tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStats_NoDatabase(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/stats", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500 without a database, got %d", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if resp.Header.Get("X-API-Version") == "" {
		t.Error("missing X-API-Version")
	}
}

// ---- GraphQL tests ----

func TestGraphQL_TrafficLights(t *testing.T) {
	app := setupApp(makeDeps(t))

	body := `{"query": "{ trafficLights { lat lon } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			TrafficLights []struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"trafficLights"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.TrafficLights) != 1 {
		t.Errorf("expected 1 light, got %d", len(result.Data.TrafficLights))
	}
}

func TestGraphQL_RangesForLight(t *testing.T) {
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Ranges = usecases.NewRangeService(&mockRangeRepo{
			listFn: func(ctx context.Context, lightIdentifier string, dd time.Time) ([]domain.LightRange, error) {
				return []domain.LightRange{
					{LightIdentifier: lightIdentifier, Color: domain.ColorGreen,
						StartTime: day.Add(8 * time.Hour), EndTime: day.Add(9 * time.Hour), Day: day},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	body := `{"query": "{ rangesForLight(light_identifier: \"661\", day: \"2026-08-28\") { color start_time end_time } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	var result struct {
		Data struct {
			RangesForLight []struct {
				Color string `json:"color"`
			} `json:"rangesForLight"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.RangesForLight) != 1 || result.Data.RangesForLight[0].Color != "green" {
		t.Errorf("unexpected result: %+v", result.Data.RangesForLight)
	}
}
