package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// ClickRepo implements ports.ClickRepository with pgx.
type ClickRepo struct {
	db *DB
}

// NewClickRepo creates a new ClickRepo.
func NewClickRepo(db *DB) *ClickRepo {
	return &ClickRepo{db: db}
}

// SaveClick inserts the click event and, when pass is non-nil, the inferred
// pass referencing it. Both rows are written in one transaction so a click
// never appears without its pass or vice versa.
func (r *ClickRepo) SaveClick(ctx context.Context, click *domain.ClickEvent, pass *domain.InferredPass) (*domain.TrafficLightPass, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO click_events (lat, lon, speed, clicked_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, click.Lat, click.Lon, click.Speed, click.Timestamp).Scan(&click.ID, &click.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert click: %w", err)
	}

	var saved *domain.TrafficLightPass
	if pass != nil {
		profile, err := encodeSpeedProfile(pass.SpeedProfile)
		if err != nil {
			return nil, fmt.Errorf("encode speed profile: %w", err)
		}

		saved = &domain.TrafficLightPass{
			ClickEventID:    click.ID,
			LightIdentifier: pass.LightIdentifier,
			Color:           pass.Color,
			SpeedProfile:    pass.SpeedProfile,
			PassTimestamp:   pass.PassTimestamp,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO traffic_light_passes (click_event_id, light_identifier, color, speed_profile, pass_timestamp)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, click.ID, pass.LightIdentifier, string(pass.Color), profile, pass.PassTimestamp).
			Scan(&saved.ID, &saved.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert pass: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// encodeSpeedProfile marshals the opaque profile value for the jsonb column.
// The value is already JSON-decoded, so marshalling cannot surprise us with
// unsupported types in practice.
func encodeSpeedProfile(profile any) ([]byte, error) {
	if profile == nil {
		return nil, nil
	}
	return json.Marshal(profile)
}
