package tournament

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/tourney/internal/match"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/pairing"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/standings"
	"github.com/sirupsen/logrus"
)

// JoinRequest enters a player into a Swiss event. Hosts must declare three
// home maps.
type JoinRequest struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	CanHost bool      `json:"canHost"`
	Homes   [3]string `json:"homes"`
}

// Join adds a player, or brings back one who withdrew.
func (s *Store) Join(ctx context.Context, req JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(false); err != nil {
		return err
	}
	if req.ID == "" || req.Name == "" {
		return models.UserErrorf("a player id and name are required")
	}
	if req.CanHost && !hasHomes(req.Homes) {
		return models.UserErrorf("hosts must declare three home maps")
	}
	existing := s.player(req.ID)
	if existing != nil && !existing.Withdrawn {
		return models.UserErrorf("%s has already joined", existing.Name)
	}
	if err := s.ensureRatedPlayer(ctx, req.ID, req.Name); err != nil {
		return err
	}
	if err := s.ports.Notifier.GrantRole(ctx, req.ID, notify.RoleParticipant); err != nil {
		return s.escalate(ctx, "grant role", err)
	}

	p := existing
	if p == nil {
		p = &models.Player{ID: req.ID, Status: models.StatusAccepted}
		s.players = append(s.players, p)
	}
	p.Name = req.Name
	p.CanHost = req.CanHost
	p.Homes = req.Homes
	p.Withdrawn = false

	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "player": p.ID}).Info("player joined")
	s.announce(ctx, p.Name+" joined "+s.event.Name+".", "")
	s.publish(push.AddPlayerUpdate(p))
	s.publishTable()
	return nil
}

// Withdraw removes a player from future rounds and cancels their open match.
func (s *Store) Withdraw(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.event.Running {
		return models.UserErrorf("no event is running")
	}
	p := s.player(id)
	if p == nil || p.Withdrawn {
		return models.UserErrorf("%s is not in the event", id)
	}
	if m := s.activeMatch(id); m != nil {
		if err := s.cancelLocked(ctx, m, id); err != nil {
			return err
		}
	}
	p.Withdrawn = true
	if err := s.ports.Notifier.RevokeRole(ctx, id, notify.RoleParticipant); err != nil {
		_ = s.escalate(ctx, "revoke role", err)
	}

	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "player": id}).Info("player withdrew")
	s.announce(ctx, p.Name+" withdrew.", "")
	s.publish(push.WithdrawUpdate(p.Name))
	s.publishTable()
	if s.event.IsFinals {
		s.advanceAfterCommitLocked(ctx)
	}
	return nil
}

// UpdateHomes replaces a player's home maps. It is refused while an opponent is
// choosing from the current ones.
func (s *Store) UpdateHomes(ctx context.Context, id string, homes [3]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.event.Running {
		return models.UserErrorf("no event is running")
	}
	p := s.player(id)
	if p == nil {
		return models.UserErrorf("%s is not in the event", id)
	}
	if !hasHomes(homes) {
		return models.UserErrorf("declare three home maps")
	}
	if m := s.activeMatch(id); m != nil && m.State == models.StateAwaitingHome && m.HomePlayer == id {
		return models.UserErrorf("your opponent is choosing from your homes right now")
	}
	p.Homes = homes
	p.CanHost = true
	if !s.event.IsFinals {
		s.publish(push.AddPlayerUpdate(p))
	}
	return nil
}

// NextRound pairs the next Swiss round. Every match of the current round must
// be settled first. An impossible pairing leaves the round unchanged.
func (s *Store) NextRound(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(false); err != nil {
		return err
	}
	if s.anyActive() {
		return models.UserErrorf("round %d still has open matches", s.event.Round)
	}
	if err := s.ensureRated(ctx); err != nil {
		return err
	}

	table := standings.Compute(s.players, s.matches)
	byID := make(map[string]models.Standing, len(table))
	for _, st := range table {
		byID[st.ID] = st
	}
	var cands []pairing.Candidate
	for _, p := range s.players {
		if p.Withdrawn {
			continue
		}
		st := byID[p.ID]
		rating := models.DefaultRating
		if rp, ok := s.rated[p.ID]; ok {
			rating = rp.Rating
		}
		cands = append(cands, pairing.Candidate{
			ID:            p.ID,
			Points:        standings.Points(st),
			Rating:        rating,
			MatchesPlayed: st.Wins + st.Losses,
			CanHost:       p.CanHost && p.HasHomes(),
		})
	}
	if len(cands) < 2 {
		return models.UserErrorf("at least two players are needed to pair a round")
	}

	res, err := pairing.Swiss(pairing.Input{
		Candidates: cands,
		Played:     s.playedLocked(),
		Round:      s.event.Round,
	}, s.rng)
	if err != nil {
		s.metrics.PairingFailures.Inc()
		s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "round": s.event.Round + 1}).WithError(err).Error("pairing failed")
		return err
	}

	hosted := make(map[string]int, len(s.hosted))
	for k, v := range s.hosted {
		hosted[k] = v
	}
	canHost := func(id string) bool {
		p := s.player(id)
		return p != nil && p.CanHost && p.HasHomes()
	}
	homes := pairing.AssignHomes(res.Pairs, hosted, canHost, s.rng)

	round := s.event.Round + 1
	ms := make([]*models.Match, len(res.Pairs))
	for i, pr := range res.Pairs {
		ms[i] = match.NewSwiss(s.nextID+i, round, pr.A, pr.B, homes[i], s.homesOf(homes[i]))
	}
	if err := s.openRoomsLocked(ctx, ms); err != nil {
		return err
	}

	s.event.Round = round
	s.hosted = hosted
	s.metrics.RoundsStarted.WithLabelValues("swiss").Inc()
	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "round": round, "matches": len(ms)}).Info("round paired")

	s.publish(push.RoundUpdate(round))
	s.announce(ctx, fmt.Sprintf("Round %d is paired.", round), "")
	if res.Bye != "" {
		s.announce(ctx, s.name(res.Bye)+" has a bye this round.", "")
	}
	s.commitMatchesLocked(ctx, ms)
	return nil
}

// UndoRound retracts the latest Swiss round: every match of it is cancelled,
// recorded results are voided and the round counter steps back.
func (s *Store) UndoRound(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunning(false); err != nil {
		return err
	}
	round := s.event.Round
	if round < 1 {
		return models.UserErrorf("no round has been played yet")
	}

	var undone []*models.Match
	for _, m := range s.matches {
		if m.Round == round && m.State != models.StateCancelled {
			undone = append(undone, m)
		}
	}
	for _, m := range undone {
		for _, rec := range m.Records {
			if err := s.ports.Persistence.VoidResult(ctx, rec); err != nil {
				return s.escalate(ctx, "void result", err)
			}
		}
	}

	for _, m := range undone {
		s.stopTeardownLocked(m.ID)
		if m.Channels != nil {
			if err := s.ports.Notifier.TeardownChannels(ctx, *m.Channels); err != nil {
				_ = s.escalate(ctx, "teardown channels", err)
			}
		}
		if m.HomePlayer != "" && s.hosted[m.HomePlayer] > 0 {
			s.hosted[m.HomePlayer]--
		}
		m.State = models.StateCancelled
		m.Pending = nil
		m.Result = nil
		m.Records = nil
		m.Channels = nil
		m.TeardownAt = nil
		s.record(ctx, m.ID, "", "undo", nil)
		s.publish(push.MatchUpdate(m))
	}
	s.event.Round = round - 1

	s.logger.WithFields(logrus.Fields{"event_id": s.event.ID, "round": round}).Warn("round undone")
	s.announce(ctx, fmt.Sprintf("Round %d was undone.", round), "")
	s.publish(push.RoundUpdate(s.event.Round))
	s.publishTable()
	return nil
}

// playedLocked reports whether two players met in any match that was not
// cancelled.
func (s *Store) playedLocked() func(a, b string) bool {
	met := make(map[[2]string]bool)
	for _, m := range s.matches {
		if m.State == models.StateCancelled {
			continue
		}
		for i := range m.Players {
			for j := range m.Players {
				if i != j {
					met[[2]string{m.Players[i], m.Players[j]}] = true
				}
			}
		}
	}
	return func(a, b string) bool { return met[[2]string{a, b}] }
}

func hasHomes(h [3]string) bool {
	for _, m := range h {
		if m == "" {
			return false
		}
	}
	return true
}
