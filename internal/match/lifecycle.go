// Package match is the per-match state machine: home selection, report,
// confirm or reject, admin fixes, cancel and close. It only decides what
// happens; the caller performs the returned Effects.
package match

import (
	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/models"
)

// Effects tells the caller which side effects a transition requires.
type Effects struct {
	// Persist records the game just confirmed as a new result.
	Persist bool
	// Revise rewrites the last recorded result after an admin fix.
	Revise bool
	// Void retracts every recorded result of the match.
	Void bool
	// ScheduleTeardown starts the grace period before the rooms are removed.
	ScheduleTeardown bool
	// NextLeg means the series continues; the caller offers the new home
	// player's maps.
	NextLeg bool
	// Resolved means the match has its final result.
	Resolved bool
}

// NewSwiss opens a Swiss match. home hosts and offers homes.
func NewSwiss(id, round int, a, b, home string, homes []string) *models.Match {
	return &models.Match{
		ID:         id,
		Kind:       models.KindSwiss,
		Players:    []string{a, b},
		Round:      round,
		State:      models.StateAwaitingHome,
		HomePlayer: home,
		Homes:      append([]string(nil), homes...),
	}
}

// NewKnockout opens a knockout series between a higher and a lower seed.
func NewKnockout(id, round int, roundName, higher, lower string, lowerHomes []string) *models.Match {
	players := []string{higher, lower}
	return &models.Match{
		ID:         id,
		Kind:       models.KindKnockout,
		Players:    players,
		Round:      round,
		RoundName:  roundName,
		State:      models.StateAwaitingHome,
		HomePlayer: players[bracket.LegHome(1)],
		Homes:      append([]string(nil), lowerHomes...),
		Leg:        1,
		LegGoal:    bracket.KnockoutKillGoal,
	}
}

// NewWildcard opens an anarchy match. Its map is drawn up front, so it starts
// ready for a report.
func NewWildcard(id, round int, g bracket.Group) *models.Match {
	return &models.Match{
		ID:        id,
		Kind:      models.KindWildcard,
		Players:   append([]string(nil), g.Players...),
		Round:     round,
		RoundName: bracket.RoundWildcard,
		State:     models.StateHomeSelected,
		Home:      g.Home,
		KillGoal:  g.KillGoal,
		Advance:   g.Advance,
		Primaries: g.Primaries,
	}
}

// ChooseHome selects one of the offered maps. The home player's opponent
// picks unless admin is set.
func ChooseHome(m *models.Match, actor string, index int, admin bool) error {
	if m.State != models.StateAwaitingHome {
		return models.UserErrorf("the home map for this match has already been chosen")
	}
	if !admin {
		if !m.Has(actor) {
			return models.UserErrorf("you are not playing in this match")
		}
		if actor == m.HomePlayer {
			return models.UserErrorf("your opponent picks from your home maps")
		}
	}
	if index < 0 || index >= len(m.Homes) || m.Homes[index] == "" {
		return models.UserErrorf("pick a home map between 1 and %d", len(m.Homes))
	}
	m.Home = m.Homes[index]
	m.State = models.StateHomeSelected
	return nil
}

// ForceHome sets the map regardless of the offered homes.
func ForceHome(m *models.Match, mapName string) error {
	if mapName == "" {
		return models.UserErrorf("a map name is required")
	}
	if m.State != models.StateAwaitingHome && m.State != models.StateHomeSelected {
		return models.UserErrorf("the map cannot be changed once a score is reported")
	}
	m.Home = mapName
	m.State = models.StateHomeSelected
	return nil
}

// Report stores an unconfirmed result. scores follow m.Players.
func Report(m *models.Match, reporter string, scores []int, admin bool) error {
	switch m.State {
	case models.StateAwaitingHome:
		return models.UserErrorf("choose a home map before reporting")
	case models.StateReported:
		return models.UserErrorf("a score is already waiting for confirmation")
	case models.StateHomeSelected:
	default:
		return models.UserErrorf("this match is already decided")
	}
	if !admin && !m.Has(reporter) {
		return models.UserErrorf("you are not playing in this match")
	}
	if _, err := validate(m, scores); err != nil {
		return err
	}
	m.Pending = &models.Report{Reporter: reporter, Scores: append([]int(nil), scores...)}
	m.State = models.StateReported
	return nil
}

// Reject disputes a pending report.
func Reject(m *models.Match, actor string, admin bool) error {
	if m.State != models.StateReported || m.Pending == nil {
		return models.UserErrorf("there is no reported score to reject")
	}
	if !admin {
		if !m.Has(actor) {
			return models.UserErrorf("you are not playing in this match")
		}
		if actor == m.Pending.Reporter {
			return models.UserErrorf("you cannot reject your own report")
		}
	}
	m.Pending = nil
	m.State = models.StateHomeSelected
	return nil
}

// Confirm accepts the pending report. A knockout leg that leaves the series
// open sends the match back to home selection for the next leg with the home
// role swapped.
func Confirm(m *models.Match, actor string, admin bool) (Effects, error) {
	if m.State != models.StateReported || m.Pending == nil {
		return Effects{}, models.UserErrorf("there is no reported score to confirm")
	}
	if !admin {
		if !m.Has(actor) {
			return Effects{}, models.UserErrorf("you are not playing in this match")
		}
		if actor == m.Pending.Reporter {
			return Effects{}, models.UserErrorf("your opponent has to confirm your report")
		}
	}
	scores := m.Pending.Scores
	winners, err := validate(m, scores)
	if err != nil {
		return Effects{}, err
	}
	m.Pending = nil

	if m.Kind != models.KindKnockout {
		m.Result = &models.Result{Winners: winners, Scores: scores}
		m.State = models.StateConfirmed
		return Effects{Persist: true, ScheduleTeardown: true, Resolved: true}, nil
	}

	m.Legs = append(m.Legs, scores)
	st := bracket.Series(m.Legs)
	if st.Decided {
		m.Result = &models.Result{
			Winners: []string{m.Players[st.Winner]},
			Scores:  []int{st.Aggregate[0], st.Aggregate[1]},
		}
		m.State = models.StateConfirmed
		return Effects{Persist: true, ScheduleTeardown: true, Resolved: true}, nil
	}
	m.Leg = st.NextLeg
	m.LegGoal = st.NextGoal
	m.HomePlayer = m.Players[bracket.LegHome(st.NextLeg)]
	m.Home = ""
	m.State = models.StateAwaitingHome
	return Effects{Persist: true, NextLeg: true}, nil
}

// FixScore replaces a confirmed result. For a knockout series the scores
// replace the deciding leg and must still decide the series.
func FixScore(m *models.Match, scores []int) (Effects, error) {
	if !m.State.Resolved() || m.Result == nil {
		return Effects{}, models.UserErrorf("only a confirmed result can be fixed")
	}

	if m.Kind != models.KindKnockout {
		winners, err := validate(m, scores)
		if err != nil {
			return Effects{}, err
		}
		m.Result = &models.Result{Winners: winners, Scores: append([]int(nil), scores...)}
		return Effects{Revise: true}, nil
	}

	if len(m.Legs) == 0 {
		return Effects{}, models.Invariantf("knockout match %d is resolved without legs", m.ID)
	}
	prior := m.Legs[:len(m.Legs)-1]
	before := bracket.Series(prior)
	probe := *m
	probe.Leg, probe.LegGoal = before.NextLeg, before.NextGoal
	if _, err := validate(&probe, scores); err != nil {
		return Effects{}, err
	}
	legs := append(append([][]int(nil), prior...), append([]int(nil), scores...))
	st := bracket.Series(legs)
	if !st.Decided {
		return Effects{}, models.UserErrorf("that score would reopen the series; cancel the match instead")
	}
	m.Legs = legs
	m.Result = &models.Result{
		Winners: []string{m.Players[st.Winner]},
		Scores:  []int{st.Aggregate[0], st.Aggregate[1]},
	}
	return Effects{Revise: true}, nil
}

// Cancel retracts a match from any state before it is closed. A confirmed
// result is withdrawn with it.
func Cancel(m *models.Match) (Effects, error) {
	if m.State == models.StateClosed || m.State == models.StateCancelled {
		return Effects{}, models.UserErrorf("this match is already %s", m.State)
	}
	fx := Effects{
		Void:             len(m.Records) > 0,
		ScheduleTeardown: m.Channels != nil,
	}
	m.Pending = nil
	m.Result = nil
	m.State = models.StateCancelled
	return fx, nil
}

// Close archives a confirmed or cancelled match and drops its rooms.
func Close(m *models.Match) error {
	switch m.State {
	case models.StateConfirmed:
		m.State = models.StateClosed
	case models.StateCancelled, models.StateClosed:
	default:
		return models.Invariantf("match %d closed while %s", m.ID, m.State)
	}
	m.Channels = nil
	m.TeardownAt = nil
	return nil
}

// Comment stores a player's post-game remark.
func Comment(m *models.Match, actor, text string) error {
	if !m.Has(actor) {
		return models.UserErrorf("you are not playing in this match")
	}
	if text == "" {
		return models.UserErrorf("the comment is empty")
	}
	if m.Comments == nil {
		m.Comments = make(map[string]string)
	}
	m.Comments[actor] = text
	return nil
}
