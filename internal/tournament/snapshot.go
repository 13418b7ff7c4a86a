package tournament

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/sirupsen/logrus"
)

// snapshot is the persisted layout of a running event. Channel and message
// refs are opaque identifiers that are re-resolved on restore.
type snapshot struct {
	IsFinals    bool             `json:"isFinals"`
	WarningSent bool             `json:"warningSent"`
	Round       int              `json:"round"`
	EventName   string           `json:"eventName"`
	EventID     int64            `json:"eventId"`
	Season      int              `json:"season"`
	EventDate   time.Time        `json:"eventDate"`
	Players     []*models.Player `json:"players"`
	Matches     []*models.Match  `json:"matches"`

	NextMatchID int               `json:"nextMatchId"`
	Hosted      map[string]int    `json:"hosted,omitempty"`
	Selection   *pendingSelection `json:"selection,omitempty"`
}

func (s *Store) snapshotLocked() snapshot {
	players := make([]*models.Player, len(s.players))
	for i, p := range s.players {
		c := *p
		players[i] = &c
	}
	matches := make([]*models.Match, len(s.matches))
	for i, m := range s.matches {
		matches[i] = cloneMatch(m)
	}
	return snapshot{
		IsFinals:    s.event.IsFinals,
		WarningSent: s.event.WarningSent,
		Round:       s.event.Round,
		EventName:   s.event.Name,
		EventID:     s.event.ID,
		Season:      s.event.Season,
		EventDate:   s.event.Date,
		Players:     players,
		Matches:     matches,
		NextMatchID: s.nextID,
		Hosted:      s.hosted,
		Selection:   s.selection,
	}
}

// Backup writes the running event to the snapshot store.
func (s *Store) Backup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.event.Running {
		return models.UserErrorf("no event is running")
	}
	blob, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.ports.Snapshots.SnapshotEvent(ctx, blob); err != nil {
		s.metrics.Snapshots.WithLabelValues("error").Inc()
		return s.escalate(ctx, "snapshot event", err)
	}
	s.metrics.Snapshots.WithLabelValues("ok").Inc()
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "bytes": len(blob)}).Debug("event snapshot written")
	return nil
}

// Restore reinstalls the last snapshot after a restart. Every stored room is
// resolved first; if one cannot be found nothing is installed. Results
// messages that no longer resolve are forgotten and posted afresh on the next
// fix. It reports whether an event was restored.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event.Running {
		return false, models.UserErrorf("%s is already running", s.event.Name)
	}
	blob, err := s.ports.Snapshots.LoadSnapshot(ctx)
	if err != nil {
		return false, s.escalate(ctx, "load snapshot", err)
	}
	if blob == nil {
		return false, nil
	}
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return false, models.Invariantf("snapshot is unreadable: %v", err)
	}

	for _, m := range snap.Matches {
		if m.Channels == nil {
			continue
		}
		if err := s.ports.Notifier.ResolveChannelByID(ctx, m.Channels.Text); err != nil {
			return false, s.escalate(ctx, "resolve channel", fmt.Errorf("match %d: %w", m.ID, err))
		}
		if m.Channels.Voice != "" {
			if err := s.ports.Notifier.ResolveChannelByID(ctx, m.Channels.Voice); err != nil {
				return false, s.escalate(ctx, "resolve channel", fmt.Errorf("match %d: %w", m.ID, err))
			}
		}
	}
	for _, p := range snap.Players {
		u, err := s.ports.Notifier.ResolveUserByID(ctx, p.ID)
		if err != nil {
			s.logger.WithError(err).WithField("player", p.ID).Debug("keeping stored name of unresolved player")
			continue
		}
		if u.Name != "" {
			p.Name = u.Name
		}
	}

	for _, m := range snap.Matches {
		if m.ResultsRef == "" {
			continue
		}
		if err := s.ports.Notifier.ResolveMessageByRef(ctx, m.ResultsRef); err != nil {
			s.logger.WithError(err).WithField("match_id", m.ID).Warn("dropping stale results message ref")
			m.ResultsRef = ""
		}
	}

	s.resetLocked()
	s.event = models.Event{
		ID:          snap.EventID,
		Season:      snap.Season,
		Name:        snap.EventName,
		Date:        snap.EventDate,
		IsFinals:    snap.IsFinals,
		Round:       snap.Round,
		Running:     true,
		WarningSent: snap.WarningSent,
	}
	s.players = snap.Players
	s.matches = snap.Matches
	s.nextID = max(snap.NextMatchID, 1)
	for _, m := range s.matches {
		if m.ID >= s.nextID {
			s.nextID = m.ID + 1
		}
	}
	if snap.Hosted != nil {
		s.hosted = snap.Hosted
	}
	s.selection = snap.Selection
	s.rated = nil

	for _, m := range s.matches {
		s.armTeardownLocked(m)
	}
	s.startSnapshotsLocked()
	s.armReminderLocked()

	s.logger.WithFields(logrus.Fields{
		"event_id": s.event.ID,
		"round":    s.event.Round,
		"players":  len(s.players),
		"matches":  len(s.matches),
	}).Info("event restored")
	return true, nil
}
