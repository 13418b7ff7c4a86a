package tournament

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/rating"
	"github.com/jason-s-yu/tourney/internal/schedule"
	"github.com/sirupsen/logrus"
)

// OpenSwiss starts a Swiss event. dateText may be empty or natural language.
func (s *Store) OpenSwiss(ctx context.Context, season int, name, dateText string) error {
	return s.open(ctx, false, season, name, dateText)
}

// OpenFinals starts a Finals event and arms its reminder.
func (s *Store) OpenFinals(ctx context.Context, season int, name, dateText string) error {
	return s.open(ctx, true, season, name, dateText)
}

func (s *Store) open(ctx context.Context, finals bool, season int, name, dateText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event.Running {
		return models.UserErrorf("%s is already running", s.event.Name)
	}
	if name == "" {
		return models.UserErrorf("the event needs a name")
	}
	date, err := schedule.ParseEventDate(dateText, s.now(), s.opts.Location)
	if err != nil {
		return err
	}

	rated, err := s.ports.Persistence.LoadRatedPlayers(ctx)
	if err != nil {
		return s.escalate(ctx, "load rated players", err)
	}
	id, err := s.ports.Persistence.CreateEvent(ctx, season, name, date, finals)
	if err != nil {
		return s.escalate(ctx, "create event", err)
	}

	s.resetLocked()
	if rated == nil {
		rated = make(map[string]models.RatedPlayer)
	}
	s.rated = rated
	s.event = models.Event{
		ID:       id,
		Season:   season,
		Name:     name,
		Date:     date,
		IsFinals: finals,
		Running:  true,
	}
	s.startSnapshotsLocked()
	s.armReminderLocked()

	s.logger.WithFields(logrus.Fields{"event_id": id, "finals": finals}).Info("event opened")
	text := fmt.Sprintf("Season %d: %s is open", season, name)
	if !date.IsZero() {
		text += ", starting " + schedule.Describe(date)
	}
	s.announce(ctx, text+".", "")
	s.publish(push.RoundUpdate(0))
	s.publishTable()
	return nil
}

// EndEvent closes a Swiss event: ratings are updated from every decided match
// and the snapshot is cleared. Finals end by themselves once a champion is
// crowned.
func (s *Store) EndEvent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.event.Running {
		return models.UserErrorf("no event is running")
	}
	if s.anyActive() {
		return models.UserErrorf("finish or cancel the open matches first")
	}
	return s.endLocked(ctx, "")
}

func (s *Store) endLocked(ctx context.Context, champion string) error {
	if err := s.ensureRated(ctx); err != nil {
		return err
	}

	ids := make([]string, len(s.players))
	for i, p := range s.players {
		ids[i] = p.ID
	}
	updated := rating.Update(s.rated, ids, rating.FromMatches(s.matches))
	keys := make([]string, 0, len(updated))
	for id := range updated {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	list := make([]models.RatedPlayer, 0, len(keys))
	for _, id := range keys {
		rp := updated[id]
		if p := s.player(id); p != nil && p.Name != "" {
			rp.Name = p.Name
		}
		list = append(list, rp)
	}
	if err := s.ports.Persistence.SaveRatedPlayers(ctx, list); err != nil {
		return s.escalate(ctx, "save ratings", err)
	}
	if s.event.IsFinals {
		if err := s.ports.Persistence.RecordPlacements(ctx, s.event.ID, s.placementsLocked(champion)); err != nil {
			return s.escalate(ctx, "record placements", err)
		}
	}

	table := s.standingsLocked()
	s.publish(push.StandingsUpdate(table))
	s.announceRich(ctx, s.summaryLocked(table, champion), "")

	s.stopSnapshotsLocked()
	s.stopReminderLocked()
	if err := s.ports.Snapshots.ClearSnapshot(ctx); err != nil {
		_ = s.escalate(ctx, "clear snapshot", err)
	}

	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "round": s.event.Round}).Info("event ended")
	s.event.Running = false
	s.players = nil
	s.matches = nil
	s.selection = nil
	s.rated = nil
	return nil
}

// resetLocked drops the previous event. Pending teardowns keep running.
func (s *Store) resetLocked() {
	s.stopSnapshotsLocked()
	s.stopReminderLocked()
	s.event = models.Event{}
	s.players = nil
	s.matches = nil
	s.nextID = 1
	s.hosted = make(map[string]int)
	s.selection = nil
	s.teardowns = make(map[int]*time.Timer)
}

func (s *Store) summaryLocked(table []models.Standing, champion string) notify.RichMessage {
	msg := notify.RichMessage{Title: s.event.Name + " results"}
	if champion != "" {
		msg.Lines = append(msg.Lines, "Champion: "+s.name(champion))
	}
	for i, st := range table {
		if i == 10 {
			break
		}
		msg.Fields = append(msg.Fields, notify.Field{
			Name:  fmt.Sprintf("%d. %s", i+1, st.Name),
			Value: fmt.Sprintf("%d pts (%d-%d)", st.Score, st.Wins, st.Losses),
		})
	}
	return msg
}

// placementsLocked ranks Finals participants: the champion, then everyone by
// the last round they reached, then by seed and invitation score.
func (s *Store) placementsLocked(champion string) []models.Placement {
	reached := make(map[string]int)
	for _, m := range s.matches {
		if m.State == models.StateCancelled {
			continue
		}
		for _, id := range m.Players {
			if m.Round > reached[id] {
				reached[id] = m.Round
			}
		}
	}

	var field []*models.Player
	for _, p := range s.players {
		if _, ok := reached[p.ID]; ok || p.ID == champion {
			field = append(field, p)
		}
	}
	seed := func(p *models.Player) int {
		if p.Seed == 0 {
			return int(^uint(0) >> 1)
		}
		return p.Seed
	}
	sort.SliceStable(field, func(i, j int) bool {
		a, b := field[i], field[j]
		if (a.ID == champion) != (b.ID == champion) {
			return a.ID == champion
		}
		if reached[a.ID] != reached[b.ID] {
			return reached[a.ID] > reached[b.ID]
		}
		if seed(a) != seed(b) {
			return seed(a) < seed(b)
		}
		return a.Score > b.Score
	})
	out := make([]models.Placement, len(field))
	for i, p := range field {
		out[i] = models.Placement{ID: p.ID, Place: i + 1}
	}
	return out
}
