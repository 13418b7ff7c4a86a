package tournament

import (
	"context"
	"time"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
)

// Persistence is the durable store for ratings, events and results.
type Persistence interface {
	LoadRatedPlayers(ctx context.Context) (map[string]models.RatedPlayer, error)
	SaveRatedPlayer(ctx context.Context, rp models.RatedPlayer) error
	SaveRatedPlayers(ctx context.Context, players []models.RatedPlayer) error
	CreateEvent(ctx context.Context, season int, name string, date time.Time, finals bool) (int64, error)
	RecordResult(ctx context.Context, eventID int64, mapName string, round int, scores []models.PlayerScore) (int64, error)
	UpdateResult(ctx context.Context, recordID int64, mapName string, scores []models.PlayerScore) error
	VoidResult(ctx context.Context, recordID int64) error
	RecordPlacements(ctx context.Context, eventID int64, placements []models.Placement) error
}

// Snapshots keeps the single event snapshot.
type Snapshots interface {
	SnapshotEvent(ctx context.Context, blob []byte) error
	// LoadSnapshot returns nil when no snapshot exists.
	LoadSnapshot(ctx context.Context) ([]byte, error)
	ClearSnapshot(ctx context.Context) error
}

// Publisher fans updates out to observers.
type Publisher interface {
	Publish(u push.Update)
	Subscribe(dump []push.Update) *push.Subscription
}

// ActionRecorder receives the audit trail of match commands.
type ActionRecorder interface {
	Publish(ctx context.Context, action models.MatchAction) error
}

// Ports are the store's collaborators. Actions may be nil.
type Ports struct {
	Notifier    notify.Notifier
	Persistence Persistence
	Snapshots   Snapshots
	Publisher   Publisher
	Actions     ActionRecorder
}
