package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/greenway/internal/core/domain"
)

// RangeRepo implements ports.RangeRepository with pgx.
type RangeRepo struct {
	db *DB
}

// NewRangeRepo creates a new RangeRepo.
func NewRangeRepo(db *DB) *RangeRepo {
	return &RangeRepo{db: db}
}

// ReplaceForDay deletes every range for day and inserts the given ones in a
// single transaction. Either the day ends up fully replaced or untouched,
// which keeps re-runs of the aggregation job idempotent.
func (r *RangeRepo) ReplaceForDay(ctx context.Context, day time.Time, ranges []domain.LightRange) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM light_ranges WHERE day = $1`, day); err != nil {
		return fmt.Errorf("clear day: %w", err)
	}

	if len(ranges) > 0 {
		batch := &pgx.Batch{}
		for _, lr := range ranges {
			batch.Queue(`
				INSERT INTO light_ranges (light_identifier, color, start_time, end_time, day)
				VALUES ($1, $2, $3, $4, $5)
			`, lr.LightIdentifier, string(lr.Color), lr.StartTime, lr.EndTime, lr.Day)
		}

		br := tx.SendBatch(ctx, batch)
		for range ranges {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert range: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListForLightAndDay returns the ranges of one light on one day, ordered by
// start_time ascending.
func (r *RangeRepo) ListForLightAndDay(ctx context.Context, lightIdentifier string, day time.Time) ([]domain.LightRange, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, light_identifier, color, start_time, end_time, day, created_at
		FROM light_ranges
		WHERE light_identifier = $1 AND day = $2
		ORDER BY start_time
	`, lightIdentifier, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []domain.LightRange
	for rows.Next() {
		var lr domain.LightRange
		var color string
		if err := rows.Scan(
			&lr.ID, &lr.LightIdentifier, &color,
			&lr.StartTime, &lr.EndTime, &lr.Day, &lr.CreatedAt,
		); err != nil {
			return nil, err
		}
		lr.Color = domain.PassColor(color)
		ranges = append(ranges, lr)
	}
	return ranges, rows.Err()
}
