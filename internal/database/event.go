package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/tourney/internal/models"
)

// CreateEvent inserts an event and returns its id.
func (p *Postgres) CreateEvent(ctx context.Context, season int, name string, date time.Time, finals bool) (int64, error) {
	var eventDate *time.Time
	if !date.IsZero() {
		eventDate = &date
	}
	var id int64
	err := p.Pool.QueryRow(ctx, `
		INSERT INTO events (season, name, event_date, is_finals)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, season, name, eventDate, finals).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create event %q: %w", name, err)
	}
	return id, nil
}

// RecordPlacements stores the final places of a Finals event.
func (p *Postgres) RecordPlacements(ctx context.Context, eventID int64, placements []models.Placement) error {
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, pl := range placements {
			_, err := tx.Exec(ctx, `
				INSERT INTO placements (event_id, player_id, place)
				VALUES ($1, $2, $3)
				ON CONFLICT (event_id, player_id) DO UPDATE SET place = $3
			`, eventID, pl.ID, pl.Place)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record placements for event %d: %w", eventID, err)
	}
	return nil
}
