package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jason-s-yu/tourney/internal/models"
)

// InsertMatchActions writes a batch of audited match commands in one transaction.
func (p *Postgres) InsertMatchActions(ctx context.Context, actions []models.MatchAction) error {
	if len(actions) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range actions {
			payload, err := json.Marshal(a.Payload)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO match_actions (event_id, match_id, actor, action, payload, acted_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, a.EventID, a.MatchID, a.Actor, a.Action, payload, time.UnixMilli(a.Timestamp))
			if err != nil {
				return fmt.Errorf("insert action %s on match %d: %w", a.Action, a.MatchID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to flush %d match actions: %w", len(actions), err)
	}
	return nil
}
