package tournament

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/match"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/sirupsen/logrus"
)

// InviteRequest invites a player into the Finals field. Seed applies to
// knockout invitees, Score ranks wildcards and standbys.
type InviteRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       models.PlayerType `json:"type"`
	Seed       int               `json:"seed"`
	Score      int               `json:"score"`
	AnarchyMap string            `json:"anarchyMap"`
	Homes      [3]string         `json:"homes"`
}

// Invite adds a player to the Finals before the bracket starts.
func (s *Store) Invite(ctx context.Context, req InviteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(true); err != nil {
		return err
	}
	if s.event.Round > 0 {
		return models.UserErrorf("the Finals have already started")
	}
	if req.ID == "" || req.Name == "" {
		return models.UserErrorf("a player id and name are required")
	}
	if !hasHomes(req.Homes) && req.Homes != ([3]string{}) {
		return models.UserErrorf("declare all three home maps or none")
	}
	switch req.Type {
	case models.TypeKnockout:
		if req.Seed < 1 {
			return models.UserErrorf("knockout invitees need a seed")
		}
		for _, p := range s.players {
			if p.Type == models.TypeKnockout && p.Status != models.StatusDeclined && p.Seed == req.Seed {
				return models.UserErrorf("seed %d is already taken by %s", req.Seed, p.Name)
			}
		}
	case models.TypeWildcard, models.TypeStandby:
		req.Seed = 0
	default:
		return models.UserErrorf("invitees are knockout, wildcard or standby")
	}
	if s.player(req.ID) != nil {
		return models.UserErrorf("%s is already invited", req.Name)
	}
	if err := s.ensureRatedPlayer(ctx, req.ID, req.Name); err != nil {
		return err
	}

	p := &models.Player{
		ID:         req.ID,
		Name:       req.Name,
		CanHost:    hasHomes(req.Homes),
		Homes:      req.Homes,
		Status:     models.StatusWaiting,
		Type:       req.Type,
		Seed:       req.Seed,
		Score:      req.Score,
		AnarchyMap: req.AnarchyMap,
	}
	s.players = append(s.players, p)

	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "player": p.ID, "type": p.Type}).Info("player invited")
	s.announce(ctx, fmt.Sprintf("%s, you are invited to %s as a %s. Please accept or decline.", p.Name, s.event.Name, p.Type), "")
	s.publishTable()
	return nil
}

// Respond records an invitee's answer. A decline hands the place to the best
// standby.
func (s *Store) Respond(ctx context.Context, id string, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(true); err != nil {
		return err
	}
	if s.event.Round > 0 {
		return models.UserErrorf("the Finals have already started")
	}
	p := s.player(id)
	if p == nil {
		return models.UserErrorf("%s is not invited", id)
	}
	if p.Status != models.StatusWaiting {
		return models.UserErrorf("you already %s", p.Status)
	}

	if accept {
		if err := s.ports.Notifier.GrantRole(ctx, id, notify.RoleParticipant); err != nil {
			return s.escalate(ctx, "grant role", err)
		}
		p.Status = models.StatusAccepted
		s.announce(ctx, p.Name+" accepted the invitation.", "")
		s.publishTable()
		return nil
	}

	p.Status = models.StatusDeclined
	typ, seed := p.Type, p.Seed
	p.Seed = 0
	s.announce(ctx, p.Name+" declined the invitation.", "")
	if typ != models.TypeStandby {
		if sb := s.bestStandbyLocked(); sb != nil {
			sb.Type = typ
			if typ == models.TypeKnockout {
				sb.Seed = seed
			}
			s.announce(ctx, fmt.Sprintf("%s moves up from standby as a %s.", sb.Name, typ), "")
		}
	}
	s.publishTable()
	return nil
}

func (s *Store) bestStandbyLocked() *models.Player {
	var best *models.Player
	for _, p := range s.players {
		if p.Type != models.TypeStandby || p.Status == models.StatusDeclined || p.Withdrawn {
			continue
		}
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

// StartFinals seeds the bracket once every invitee has answered. On a running
// bracket with nothing in play it retries the next stage.
func (s *Store) StartFinals(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(true); err != nil {
		return err
	}
	if s.event.Round > 0 {
		if s.selection != nil || s.anyActive() {
			return models.UserErrorf("the Finals are already under way")
		}
		return s.advanceFinalsLocked(ctx)
	}

	var knockouts, wildcards int
	for _, p := range s.players {
		if p.Status == models.StatusWaiting && p.Type != models.TypeStandby {
			return models.UserErrorf("%s has not answered their invitation", p.Name)
		}
		if p.Status != models.StatusAccepted || p.Withdrawn {
			continue
		}
		switch p.Type {
		case models.TypeKnockout:
			knockouts++
		case models.TypeWildcard:
			wildcards++
		}
	}
	switch {
	case knockouts > bracket.MaxKnockout:
		return models.UserErrorf("at most %d knockout seeds fit the bracket", bracket.MaxKnockout)
	case knockouts == bracket.MaxKnockout && wildcards > 0:
		return models.UserErrorf("a full knockout bracket leaves no place for wildcards")
	case knockouts+wildcards < 2:
		return models.UserErrorf("at least two accepted players are needed")
	}

	bracket.Promote(s.players, nil)
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "knockouts": knockouts, "wildcards": wildcards}).Info("finals started")
	return s.startStageLocked(ctx)
}

// SelectOpponent resolves a pending knockout selection.
func (s *Store) SelectOpponent(ctx context.Context, actor, opponent string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(true); err != nil {
		return err
	}
	sel := s.selection
	if sel == nil {
		return models.UserErrorf("no opponent selection is pending")
	}
	if !admin && actor != sel.Selector {
		return models.UserErrorf("%s chooses the opponent", s.name(sel.Selector))
	}
	pairs, err := bracket.ResolveSelection(sel.Selection, opponent)
	if err != nil {
		return err
	}
	ms := s.knockoutMatchesLocked(s.event.Round, sel.RoundName, pairs)
	if err := s.openRoomsLocked(ctx, ms); err != nil {
		return err
	}
	s.selection = nil

	s.announce(ctx, fmt.Sprintf("%s chose to face %s.", s.name(sel.Selector), s.name(opponent)), "")
	s.commitMatchesLocked(ctx, ms)
	s.publishTable()
	return nil
}

// advanceFinalsLocked moves the bracket on once the current round has no
// match left in play.
func (s *Store) advanceFinalsLocked(ctx context.Context) error {
	if !s.event.Running || !s.event.IsFinals || s.event.Round == 0 {
		return nil
	}
	if s.selection != nil {
		if !s.selectionBrokenLocked() {
			return nil
		}
		s.logger.WithField("event_id", s.event.ID).Warn("dropping selection with a withdrawn player")
		s.selection = nil
	}
	if s.anyActive() {
		return nil
	}

	var round []*models.Match
	for _, m := range s.matches {
		if m.Round == s.event.Round {
			round = append(round, m)
		}
	}
	bracket.Advance(s.players, round)
	return s.startStageLocked(ctx)
}

// advanceAfterCommitLocked moves the Finals on once a command's own change is
// committed. A stage that cannot open leaves that change in place; the
// operator is told and StartFinals opens the stage later.
func (s *Store) advanceAfterCommitLocked(ctx context.Context) {
	err := s.advanceFinalsLocked(ctx)
	if err == nil {
		return
	}
	if !models.IsOperational(err) {
		_ = s.escalate(ctx, "advance finals", err)
	}
	s.logger.WithField("event_id", s.event.ID).WithError(err).Warn("next finals stage is waiting for start")
}

func (s *Store) selectionBrokenLocked() bool {
	ids := append([]string{s.selection.Selector}, s.selection.Options...)
	for _, id := range ids {
		p := s.player(id)
		if p == nil || p.Withdrawn || p.Type != models.TypeKnockout {
			return true
		}
	}
	return false
}

// startStageLocked opens whatever the bracket needs next: a wildcard round, a
// knockout round, or the champion's crowning.
func (s *Store) startStageLocked(ctx context.Context) error {
	stage, err := bracket.Next(s.players, s.rng)
	if err != nil {
		s.logger.WithField("event_id", s.event.ID).WithError(err).Error("cannot size the next finals stage")
		return err
	}
	if stage.Champion != "" {
		return s.crownLocked(ctx, stage.Champion)
	}

	round := s.event.Round + 1
	var ms []*models.Match
	var plan *bracket.Plan
	if len(stage.Groups) > 0 {
		for i, g := range stage.Groups {
			ms = append(ms, match.NewWildcard(s.nextID+i, round, g))
		}
	} else {
		plan = stage.Knockout
		ms = s.knockoutMatchesLocked(round, plan.RoundName, plan.Pairs)
	}
	if err := s.openRoomsLocked(ctx, ms); err != nil {
		return err
	}

	s.event.Round = round
	s.metrics.RoundsStarted.WithLabelValues("finals").Inc()
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "round": round, "matches": len(ms)}).Info("finals stage opened")
	s.publish(push.RoundUpdate(round))

	if plan == nil {
		s.announce(ctx, fmt.Sprintf("Wildcard round: %d anarchy matches.", len(ms)), "")
	} else {
		text := plan.RoundName + " is up."
		if len(plan.Waiting) > 0 {
			names := make([]string, len(plan.Waiting))
			for i, id := range plan.Waiting {
				names[i] = s.name(id)
			}
			text += " Waiting this round: " + strings.Join(names, ", ") + "."
		}
		s.announce(ctx, text, "")
		if plan.Selection != nil {
			s.selection = &pendingSelection{Selection: *plan.Selection, RoundName: plan.RoundName}
			opts := make([]string, len(plan.Selection.Options))
			for i, id := range plan.Selection.Options {
				opts[i] = s.name(id)
			}
			s.announce(ctx, fmt.Sprintf("%s, choose your opponent: %s.", s.name(plan.Selection.Selector), strings.Join(opts, ", ")), "")
		}
	}
	s.commitMatchesLocked(ctx, ms)
	s.publishTable()
	return nil
}

func (s *Store) knockoutMatchesLocked(round int, roundName string, pairs [][2]string) []*models.Match {
	ms := make([]*models.Match, len(pairs))
	for i, pr := range pairs {
		ms[i] = match.NewKnockout(s.nextID+i, round, roundName, pr[0], pr[1], nil)
		s.offerHomesLocked(ms[i])
	}
	return ms
}

func (s *Store) crownLocked(ctx context.Context, champion string) error {
	if err := s.ports.Notifier.GrantRole(ctx, champion, notify.RoleChampion); err != nil {
		_ = s.escalate(ctx, "grant role", err)
	}
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "player": champion}).Info("champion crowned")
	s.announce(ctx, fmt.Sprintf("%s is the champion of %s!", s.name(champion), s.event.Name), "")
	return s.endLocked(ctx, champion)
}
