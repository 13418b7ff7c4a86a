// Package cache holds the Redis-backed pieces: the event snapshot and the
// match action queue drained by the historian.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/tourney/internal/models"
)

const (
	// DefaultSnapshotKey holds the running event's snapshot.
	DefaultSnapshotKey = "tourney:snapshot"
	// DefaultQueueName is the Redis list the historian drains.
	DefaultQueueName = "tourney_actions"
)

// Connect creates a client for addr/db and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Snapshots stores one opaque event snapshot under a single key.
type Snapshots struct {
	rdb *redis.Client
	key string
}

func NewSnapshots(rdb *redis.Client, key string) *Snapshots {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &Snapshots{rdb: rdb, key: key}
}

// SnapshotEvent overwrites the stored snapshot.
func (s *Snapshots) SnapshotEvent(ctx context.Context, blob []byte) error {
	if err := s.rdb.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or nil when there is none.
func (s *Snapshots) LoadSnapshot(ctx context.Context) ([]byte, error) {
	blob, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return blob, nil
}

func (s *Snapshots) ClearSnapshot(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// ActionQueue pushes match actions for the historian.
type ActionQueue struct {
	rdb  *redis.Client
	name string
}

func NewActionQueue(rdb *redis.Client, name string) *ActionQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, name: name}
}

// Name is the Redis list the queue writes to.
func (q *ActionQueue) Name() string { return q.name }

// Publish serializes the action to JSON and pushes it onto the queue.
func (q *ActionQueue) Publish(ctx context.Context, action models.MatchAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal match action: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next action. It returns nil on timeout.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) (*models.MatchAction, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	var action models.MatchAction
	if err := json.Unmarshal([]byte(res[1]), &action); err != nil {
		return nil, fmt.Errorf("invalid match action: %w", err)
	}
	return &action, nil
}
