package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/pkg/metrics"
)

// ClickHandler ingests a geolocated click. The geofence decides acceptance;
// a refusal is a 400 with the distance to the nearest known light so clients
// can show the user how far off they are.
func ClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload ClickPayload
		if err := c.BodyParser(&payload); err != nil {
			metrics.ClicksRejected.WithLabelValues("payload").Inc()
			return errBadRequest(c, "invalid request body")
		}

		click, pass, err := payload.Parse()
		if err != nil {
			metrics.ClicksRejected.WithLabelValues("payload").Inc()
			return errBadRequest(c, err.Error())
		}

		rejection, err := deps.Clicks.RecordClick(c.Context(), click, pass)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if rejection != nil {
			metrics.ClicksRejected.WithLabelValues("geofence").Inc()
			return c.Status(400).JSON(fiber.Map{
				"error": rejection.Message,
				"details": fiber.Map{
					"distance_m": rejection.DistanceMeters,
				},
			})
		}

		metrics.ClicksAccepted.Inc()
		if pass != nil {
			metrics.PassesRecorded.Inc()
		}
		return c.Status(201).JSON(fiber.Map{"status": "ok"})
	}
}

// LightRangesHandler returns the aggregated color ranges of one light for one
// day. Without a day parameter the previous UTC day is served, matching what
// the aggregation job produces by default.
func LightRangesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lightID := c.Params("id")
		if lightID == "" {
			return errBadRequest(c, "light id is required")
		}

		var day time.Time
		if raw := c.Query("day"); raw != "" {
			parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
			if err != nil {
				return errBadRequest(c, "day must be YYYY-MM-DD")
			}
			day = parsed
		}

		ranges, err := deps.Ranges.RangesFor(c.Context(), lightID, day)
		if err != nil {
			return errInternal(c, err.Error())
		}

		type rangeResp struct {
			Color     string `json:"color"`
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		}
		out := make([]rangeResp, 0, len(ranges))
		var served string
		for _, r := range ranges {
			served = r.Day.Format("2006-01-02")
			out = append(out, rangeResp{
				Color:     string(r.Color),
				StartTime: r.StartTime.UTC().Format(time.RFC3339),
				EndTime:   r.EndTime.UTC().Format(time.RFC3339),
			})
		}
		if served == "" {
			if day.IsZero() {
				day = domain.PreviousUTCDay(time.Now())
			}
			served = day.Format("2006-01-02")
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(fiber.Map{
			"light_identifier": lightID,
			"day":              served,
			"ranges":           out,
		})
	}
}

// TrafficLightsHandler serves the raw traffic light geodata to map clients.
// The payload is re-read on every request and is never cached: operators edit
// the file in place and expect the map to follow.
func TrafficLightsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")
		return c.JSON(deps.Lights.RawPayload())
	}
}

// AggregateHandler triggers a synchronous aggregation run. Body is optional:
// {"day":"YYYY-MM-DD"}; without it the previous UTC day is aggregated.
func AggregateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Day string `json:"day"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		var day time.Time
		if req.Day != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.Day, time.UTC)
			if err != nil {
				return errBadRequest(c, "day must be YYYY-MM-DD")
			}
			day = parsed
		}

		started := time.Now()
		result, err := deps.Aggregation.Aggregate(c.Context(), day)
		if err != nil {
			metrics.AggregationRuns.WithLabelValues("error").Inc()
			return errInternal(c, err.Error())
		}
		metrics.AggregationRuns.WithLabelValues("ok").Inc()
		metrics.AggregationDuration.Observe(time.Since(started).Seconds())
		metrics.RangesProduced.Add(float64(len(result.Ranges)))

		return c.JSON(fiber.Map{
			"day":        result.Day.Format("2006-01-02"),
			"ranges":     len(result.Ranges),
			"pass_count": result.PassCount,
		})
	}
}

// StatsHandler returns row counts from the click tables.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats struct {
			Clicks        int    `json:"clicks"`
			Passes        int    `json:"passes"`
			Ranges        int    `json:"ranges"`
			KnownLights   int    `json:"known_lights"`
			LastClickedAt string `json:"last_clicked_at,omitempty"`
		}
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM click_events),
				(SELECT count(*) FROM traffic_light_passes),
				(SELECT count(*) FROM light_ranges),
				COALESCE((SELECT max(clicked_at)::text FROM click_events), '')
		`)
		if err := row.Scan(&stats.Clicks, &stats.Passes, &stats.Ranges, &stats.LastClickedAt); err != nil {
			return errInternal(c, err.Error())
		}
		stats.KnownLights = len(deps.Lights.Coordinates())

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}
