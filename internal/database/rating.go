package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/tourney/internal/models"
)

// LoadRatedPlayers returns every durable rating keyed by player id.
func (p *Postgres) LoadRatedPlayers(ctx context.Context) (map[string]models.RatedPlayer, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT discord_id, name, rating, rating_deviation, volatility
		FROM rated_players
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load rated players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RatedPlayer, error) {
		var rp models.RatedPlayer
		err := row.Scan(&rp.DiscordID, &rp.Name, &rp.Rating, &rp.RatingDeviation, &rp.Volatility)
		return rp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rated players: %w", err)
	}

	out := make(map[string]models.RatedPlayer, len(players))
	for _, rp := range players {
		out[rp.DiscordID] = rp
	}
	return out, nil
}

const upsertRatedPlayer = `
	INSERT INTO rated_players (discord_id, name, rating, rating_deviation, volatility, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (discord_id)
	DO UPDATE SET name = $2, rating = $3, rating_deviation = $4, volatility = $5, updated_at = NOW()
`

// SaveRatedPlayer upserts one rating.
func (p *Postgres) SaveRatedPlayer(ctx context.Context, rp models.RatedPlayer) error {
	_, err := p.Pool.Exec(ctx, upsertRatedPlayer, rp.DiscordID, rp.Name, rp.Rating, rp.RatingDeviation, rp.Volatility)
	if err != nil {
		return fmt.Errorf("failed to save rating for %s: %w", rp.DiscordID, err)
	}
	return nil
}

// SaveRatedPlayers writes an event's rating period in one transaction.
func (p *Postgres) SaveRatedPlayers(ctx context.Context, players []models.RatedPlayer) error {
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rp := range players {
			if _, err := tx.Exec(ctx, upsertRatedPlayer, rp.DiscordID, rp.Name, rp.Rating, rp.RatingDeviation, rp.Volatility); err != nil {
				return fmt.Errorf("player %s: %w", rp.DiscordID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save ratings: %w", err)
	}
	return nil
}
