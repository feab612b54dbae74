package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// PassRepo implements ports.PassRepository with pgx.
type PassRepo struct {
	db *DB
}

// NewPassRepo creates a new PassRepo.
func NewPassRepo(db *DB) *PassRepo {
	return &PassRepo{db: db}
}

// ListForInterval returns passes with pass_timestamp in [start, end).
// Ordering by (light_identifier, pass_timestamp) groups each light's
// observations contiguously, which the range aggregation depends on.
func (r *PassRepo) ListForInterval(ctx context.Context, start, end time.Time) ([]domain.TrafficLightPass, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, click_event_id, light_identifier, color, speed_profile, pass_timestamp, created_at
		FROM traffic_light_passes
		WHERE pass_timestamp >= $1 AND pass_timestamp < $2
		ORDER BY light_identifier, pass_timestamp
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []domain.TrafficLightPass
	for rows.Next() {
		var p domain.TrafficLightPass
		var color string
		var profile []byte
		if err := rows.Scan(
			&p.ID, &p.ClickEventID, &p.LightIdentifier, &color,
			&profile, &p.PassTimestamp, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Color = domain.PassColor(color)
		if len(profile) > 0 {
			_ = json.Unmarshal(profile, &p.SpeedProfile)
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}
