package tournament

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/tourney/internal/match"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/sirupsen/logrus"
)

func (s *Store) runningMatch(id int) (*models.Match, error) {
	if !s.event.Running {
		return nil, models.UserErrorf("no event is running")
	}
	return s.match(id)
}

func target(m *models.Match) string {
	if m.Channels == nil {
		return ""
	}
	return m.Channels.Text
}

// ChooseHome picks one of the offered home maps (index is zero-based).
func (s *Store) ChooseHome(ctx context.Context, matchID int, actor string, index int, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := match.ChooseHome(m, actor, index, admin); err != nil {
		return err
	}
	s.record(ctx, m.ID, actor, "choose_home", map[string]any{"map": m.Home})
	s.announce(ctx, fmt.Sprintf("Map: %s. Report the score when you are done.", m.Home), target(m))
	s.publish(push.MatchUpdate(m))
	return nil
}

// ForceHome sets the map of a match directly.
func (s *Store) ForceHome(ctx context.Context, matchID int, mapName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := match.ForceHome(m, mapName); err != nil {
		return err
	}
	s.record(ctx, m.ID, "admin", "force_home", map[string]any{"map": mapName})
	s.announce(ctx, "The map was set to "+mapName+".", target(m))
	s.publish(push.MatchUpdate(m))
	return nil
}

// Report stores an unconfirmed score. scores follow the match's player order.
func (s *Store) Report(ctx context.Context, matchID int, reporter string, scores []int, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := match.Report(m, reporter, scores, admin); err != nil {
		return err
	}
	s.record(ctx, m.ID, reporter, "report", map[string]any{"scores": scores})
	s.announce(ctx, fmt.Sprintf("%s reported %s. Waiting for confirmation.", s.name(reporter), s.scoreLine(m.Players, scores)), target(m))
	s.publish(push.MatchUpdate(m))
	return nil
}

// Reject disputes the pending report.
func (s *Store) Reject(ctx context.Context, matchID int, actor string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := match.Reject(m, actor, admin); err != nil {
		return err
	}
	s.record(ctx, m.ID, actor, "reject", nil)
	s.announce(ctx, s.name(actor)+" rejected the reported score. Report it again.", target(m))
	s.publish(push.MatchUpdate(m))
	return nil
}

// Confirm accepts the pending report and records the game. Nothing changes if
// the result cannot be stored.
func (s *Store) Confirm(ctx context.Context, matchID int, actor string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	work := cloneMatch(m)
	mapName := work.Home
	fx, err := match.Confirm(work, actor, admin)
	if err != nil {
		return err
	}

	scores := gameScores(work)
	if fx.Persist {
		rec, err := s.ports.Persistence.RecordResult(ctx, s.event.ID, mapName, work.Round, scoreRows(work.Players, scores))
		if err != nil {
			return s.escalate(ctx, "record result", err)
		}
		work.Records = append(work.Records, rec)
	}
	offered := true
	if fx.NextLeg {
		offered = s.offerHomesLocked(work)
	}
	*m = *work

	s.metrics.MatchesConfirmed.WithLabelValues(string(m.Kind)).Inc()
	s.record(ctx, m.ID, actor, "confirm", map[string]any{"scores": scores, "map": mapName})
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "match_id": m.ID, "round": m.Round}).Info("game confirmed")

	if fx.NextLeg {
		s.announce(ctx, s.introLocked(m), target(m))
		if !offered {
			s.askForMapLocked(ctx, m)
		}
	}
	if fx.Resolved {
		m.ResultsRef = s.announceRich(ctx, s.resultLocked(m), "")
	}
	if fx.ScheduleTeardown {
		s.scheduleTeardownLocked(m)
	}
	s.publish(push.MatchUpdate(m))
	s.publishTable()

	if fx.Resolved && s.event.IsFinals {
		s.advanceAfterCommitLocked(ctx)
	}
	return nil
}

// FixScore corrects a confirmed result, rewrites the stored record and
// re-renders the posted summary.
func (s *Store) FixScore(ctx context.Context, matchID int, scores []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	work := cloneMatch(m)
	fx, err := match.FixScore(work, scores)
	if err != nil {
		return err
	}
	if s.event.IsFinals && m.Round != s.event.Round && !sameWinners(m, work) {
		return models.UserErrorf("the bracket has moved on; the winner of match %d can no longer change", m.ID)
	}
	if fx.Revise {
		if len(work.Records) == 0 {
			return models.Invariantf("match %d is resolved without a stored result", m.ID)
		}
		rec := work.Records[len(work.Records)-1]
		if err := s.ports.Persistence.UpdateResult(ctx, rec, work.Home, scoreRows(work.Players, scores)); err != nil {
			return s.escalate(ctx, "update result", err)
		}
	}
	*m = *work

	s.record(ctx, m.ID, "admin", "fix_score", map[string]any{"scores": scores})
	if m.ResultsRef != "" {
		if err := s.ports.Notifier.EditRich(ctx, m.ResultsRef, s.resultLocked(m)); err != nil {
			_ = s.escalate(ctx, "edit results", err)
		}
	} else {
		m.ResultsRef = s.announceRich(ctx, s.resultLocked(m), "")
	}
	s.publish(push.MatchUpdate(m))
	s.publishTable()
	return nil
}

// CancelMatch retracts a match and any result it recorded.
func (s *Store) CancelMatch(ctx context.Context, matchID int, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := s.cancelLocked(ctx, m, actor); err != nil {
		return err
	}
	s.publishTable()
	if s.event.IsFinals {
		s.advanceAfterCommitLocked(ctx)
	}
	return nil
}

func (s *Store) cancelLocked(ctx context.Context, m *models.Match, actor string) error {
	work := cloneMatch(m)
	fx, err := match.Cancel(work)
	if err != nil {
		return err
	}
	if fx.Void {
		for _, rec := range work.Records {
			if err := s.ports.Persistence.VoidResult(ctx, rec); err != nil {
				return s.escalate(ctx, "void result", err)
			}
		}
		work.Records = nil
	}
	*m = *work

	s.stopTeardownLocked(m.ID)
	m.TeardownAt = nil
	if fx.ScheduleTeardown {
		s.scheduleTeardownLocked(m)
	}
	s.record(ctx, m.ID, actor, "cancel", nil)
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "match_id": m.ID}).Info("match cancelled")
	s.announce(ctx, "This match was cancelled.", target(m))
	s.publish(push.MatchUpdate(m))
	return nil
}

// Comment stores a player's remark on their match.
func (s *Store) Comment(ctx context.Context, matchID int, actor, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.runningMatch(matchID)
	if err != nil {
		return err
	}
	if err := match.Comment(m, actor, text); err != nil {
		return err
	}
	s.record(ctx, m.ID, actor, "comment", map[string]any{"text": text})
	s.publish(push.MatchUpdate(m))
	return nil
}

// gameScores are the scores of the game just played: the last leg of a
// knockout series, otherwise the result.
func gameScores(m *models.Match) []int {
	if m.Kind == models.KindKnockout && len(m.Legs) > 0 {
		return m.Legs[len(m.Legs)-1]
	}
	if m.Result != nil {
		return m.Result.Scores
	}
	return nil
}

func scoreRows(players []string, scores []int) []models.PlayerScore {
	rows := make([]models.PlayerScore, 0, len(players))
	for i, id := range players {
		if i < len(scores) {
			rows = append(rows, models.PlayerScore{ID: id, Score: scores[i]})
		}
	}
	return rows
}

func sameWinners(a, b *models.Match) bool {
	if a.Result == nil || b.Result == nil {
		return a.Result == b.Result
	}
	if len(a.Result.Winners) != len(b.Result.Winners) {
		return false
	}
	for i := range a.Result.Winners {
		if a.Result.Winners[i] != b.Result.Winners[i] {
			return false
		}
	}
	return true
}

func (s *Store) scoreLine(players []string, scores []int) string {
	parts := make([]string, 0, len(players))
	for i, id := range players {
		if i < len(scores) {
			parts = append(parts, fmt.Sprintf("%s %d", s.name(id), scores[i]))
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Store) resultLocked(m *models.Match) notify.RichMessage {
	title := fmt.Sprintf("Round %d", m.Round)
	if m.RoundName != "" {
		title = m.RoundName
	}
	msg := notify.RichMessage{Title: title + " result"}
	if m.Result == nil {
		return msg
	}
	winners := make([]string, len(m.Result.Winners))
	for i, w := range m.Result.Winners {
		winners[i] = s.name(w)
	}
	msg.Lines = append(msg.Lines, s.scoreLine(m.Players, m.Result.Scores))
	if m.Home != "" {
		msg.Fields = append(msg.Fields, notify.Field{Name: "Map", Value: m.Home})
	}
	if len(m.Legs) > 1 {
		for i, leg := range m.Legs {
			msg.Fields = append(msg.Fields, notify.Field{Name: fmt.Sprintf("Leg %d", i+1), Value: s.scoreLine(m.Players, leg)})
		}
	}
	label := "Winner"
	if len(winners) > 1 {
		label = "Advancing"
	}
	msg.Fields = append(msg.Fields, notify.Field{Name: label, Value: strings.Join(winners, ", ")})
	return msg
}
