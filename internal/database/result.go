package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/tourney/internal/models"
)

// RecordResult stores one confirmed game and returns its id.
func (p *Postgres) RecordResult(ctx context.Context, eventID int64, mapName string, round int, scores []models.PlayerScore) (int64, error) {
	var id int64
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO results (event_id, map, round)
			VALUES ($1, $2, $3)
			RETURNING id
		`, eventID, mapName, round).Scan(&id)
		if err != nil {
			return err
		}
		return insertScoresTx(ctx, tx, id, scores)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record result for event %d: %w", eventID, err)
	}
	return id, nil
}

// UpdateResult replaces the map and scores of a recorded game.
func (p *Postgres) UpdateResult(ctx context.Context, recordID int64, mapName string, scores []models.PlayerScore) error {
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE results SET map = $1 WHERE id = $2`, mapName, recordID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("no result %d", recordID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM result_players WHERE result_id = $1`, recordID); err != nil {
			return err
		}
		return insertScoresTx(ctx, tx, recordID, scores)
	})
	if err != nil {
		return fmt.Errorf("failed to update result %d: %w", recordID, err)
	}
	return nil
}

// VoidResult marks a recorded game as retracted. Voided results are kept for
// audit but excluded from history queries.
func (p *Postgres) VoidResult(ctx context.Context, recordID int64) error {
	if _, err := p.Pool.Exec(ctx, `UPDATE results SET voided = TRUE WHERE id = $1`, recordID); err != nil {
		return fmt.Errorf("failed to void result %d: %w", recordID, err)
	}
	return nil
}

// EventResults returns the scores of every non-voided game of an event.
func (p *Postgres) EventResults(ctx context.Context, eventID int64) (map[int64][]models.PlayerScore, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT r.id, rp.player_id, rp.score
		FROM results r
		JOIN result_players rp ON rp.result_id = r.id
		WHERE r.event_id = $1 AND NOT r.voided
		ORDER BY r.id, rp.player_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for event %d: %w", eventID, err)
	}
	defer rows.Close()

	out := make(map[int64][]models.PlayerScore)
	for rows.Next() {
		var id int64
		var ps models.PlayerScore
		if err := rows.Scan(&id, &ps.ID, &ps.Score); err != nil {
			return nil, err
		}
		out[id] = append(out[id], ps)
	}
	return out, rows.Err()
}

func insertScoresTx(ctx context.Context, tx pgx.Tx, recordID int64, scores []models.PlayerScore) error {
	for _, s := range scores {
		_, err := tx.Exec(ctx, `
			INSERT INTO result_players (result_id, player_id, score)
			VALUES ($1, $2, $3)
		`, recordID, s.ID, s.Score)
		if err != nil {
			return err
		}
	}
	return nil
}
