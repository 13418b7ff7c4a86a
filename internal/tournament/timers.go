package tournament

import (
	"context"
	"time"

	"github.com/jason-s-yu/tourney/internal/match"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/schedule"
	"github.com/sirupsen/logrus"
)

// timerTimeout bounds the I/O a timer callback performs.
const timerTimeout = 30 * time.Second

func (s *Store) startSnapshotsLocked() {
	s.stopSnapshotsLocked()
	stop := make(chan struct{})
	s.stopSnapshots = stop
	interval := s.opts.SnapshotInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), timerTimeout)
				if err := s.Backup(ctx); err != nil && !models.IsUserError(err) {
					s.logger.WithError(err).Warn("periodic snapshot failed")
				}
				cancel()
			}
		}
	}()
}

func (s *Store) stopSnapshotsLocked() {
	if s.stopSnapshots != nil {
		close(s.stopSnapshots)
		s.stopSnapshots = nil
	}
}

// armReminderLocked schedules the one-shot Finals reminder unless it was sent
// or the event has no date.
func (s *Store) armReminderLocked() {
	s.stopReminderLocked()
	if !s.event.IsFinals || s.event.WarningSent || s.event.Date.IsZero() {
		return
	}
	at := schedule.ReminderAt(s.event.Date, s.opts.ReminderLead)
	eventID := s.event.ID
	s.reminder = time.AfterFunc(at.Sub(s.now()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), timerTimeout)
		defer cancel()
		s.remind(ctx, eventID)
	})
}

func (s *Store) stopReminderLocked() {
	if s.reminder != nil {
		s.reminder.Stop()
		s.reminder = nil
	}
}

func (s *Store) remind(ctx context.Context, eventID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.event.Running || s.event.ID != eventID || s.event.WarningSent {
		return
	}
	s.event.WarningSent = true
	s.announce(ctx, s.event.Name+" starts "+schedule.Describe(s.event.Date)+". Accept your invitation if you have not yet.", "")
}

// scheduleTeardownLocked starts the grace period after which the match rooms
// are removed and the match archived. The deadline is kept on the match so a
// restore can re-arm it.
func (s *Store) scheduleTeardownLocked(m *models.Match) {
	at := s.now().Add(s.opts.TeardownGrace)
	m.TeardownAt = &at
	s.armTeardownLocked(m)
}

func (s *Store) armTeardownLocked(m *models.Match) {
	if m.TeardownAt == nil {
		return
	}
	if t, ok := s.teardowns[m.ID]; ok {
		t.Stop()
	}
	eventID, matchID := s.event.ID, m.ID
	var channels *models.Channels
	if m.Channels != nil {
		ch := *m.Channels
		channels = &ch
	}
	s.teardowns[m.ID] = time.AfterFunc(m.TeardownAt.Sub(s.now()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), timerTimeout)
		defer cancel()
		s.fireTeardown(ctx, eventID, matchID, channels)
	})
}

// fireTeardown runs a due teardown. Rooms of an event that has since ended are
// still removed.
func (s *Store) fireTeardown(ctx context.Context, eventID int64, matchID int, channels *models.Channels) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event.Running && s.event.ID == eventID {
		if m, err := s.match(matchID); err == nil && m.TeardownAt != nil {
			s.teardownLocked(ctx, m)
			return
		}
	}
	if channels != nil {
		if err := s.ports.Notifier.TeardownChannels(ctx, *channels); err != nil {
			_ = s.escalate(ctx, "teardown channels", err)
		}
	}
}

// teardownLocked removes the rooms of a confirmed or cancelled match and
// archives it.
func (s *Store) teardownLocked(ctx context.Context, m *models.Match) {
	delete(s.teardowns, m.ID)
	if m.Channels != nil {
		if err := s.ports.Notifier.TeardownChannels(ctx, *m.Channels); err != nil {
			_ = s.escalate(ctx, "teardown channels", err)
		}
	}
	if err := match.Close(m); err != nil {
		s.logger.WithError(err).WithField("match_id", m.ID).Error("failed to close match")
		return
	}
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "match_id": m.ID}).Debug("match archived")
	s.publish(push.MatchUpdate(m))
}

func (s *Store) stopTeardownLocked(matchID int) {
	if t, ok := s.teardowns[matchID]; ok {
		t.Stop()
		delete(s.teardowns, matchID)
	}
}
