package match

import (
	"sort"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/models"
)

const (
	// SwissKillGoal and SwissWinBy make a Swiss game a race to 20, win by 2.
	SwissKillGoal = 20
	SwissWinBy    = 2
)

// ValidateRace checks a two-player score against a race to goal. With winBy
// above 1 the game runs past goal until one side leads by winBy.
func ValidateRace(w, l, goal, winBy int) error {
	if w < 0 || l < 0 {
		return models.UserErrorf("scores cannot be negative")
	}
	if w == l {
		return models.UserErrorf("a game cannot end in a tie")
	}
	if w < l {
		w, l = l, w
	}
	if winBy <= 1 {
		if w != goal {
			return models.UserErrorf("the winner must finish on exactly %d", goal)
		}
		return nil
	}
	if l <= goal-winBy {
		if w != goal {
			return models.UserErrorf("the winner must finish on exactly %d", goal)
		}
		return nil
	}
	if w != l+winBy {
		return models.UserErrorf("past %d the game ends as soon as someone leads by %d", goal-winBy, winBy)
	}
	return nil
}

// validate checks scores for the current game of m and returns the winners.
func validate(m *models.Match, scores []int) ([]string, error) {
	if len(scores) != len(m.Players) {
		return nil, models.UserErrorf("expected %d scores, got %d", len(m.Players), len(scores))
	}

	switch m.Kind {
	case models.KindSwiss:
		if err := ValidateRace(scores[0], scores[1], SwissKillGoal, SwissWinBy); err != nil {
			return nil, err
		}
	case models.KindKnockout:
		goal, winBy := m.LegGoal, 1
		if m.Leg > 2 {
			goal, winBy = bracket.OvertimeGoal, bracket.OvertimeWinBy
		}
		if goal <= 0 {
			return nil, models.Invariantf("match %d has no leg goal", m.ID)
		}
		if err := ValidateRace(scores[0], scores[1], goal, winBy); err != nil {
			return nil, err
		}
	case models.KindWildcard:
		return validateAnarchy(m, scores)
	default:
		return nil, models.Invariantf("match %d has unknown kind %q", m.ID, m.Kind)
	}

	if scores[0] > scores[1] {
		return []string{m.Players[0]}, nil
	}
	return []string{m.Players[1]}, nil
}

// validateAnarchy requires exactly one player on the kill goal and a clear cut
// between the last advancing player and the first eliminated one.
func validateAnarchy(m *models.Match, scores []int) ([]string, error) {
	if m.KillGoal <= 0 || m.Advance <= 0 {
		return nil, models.Invariantf("anarchy match %d has no kill goal or advance count", m.ID)
	}
	atGoal := 0
	for _, s := range scores {
		if s < 0 || s > m.KillGoal {
			return nil, models.UserErrorf("scores must be between 0 and %d", m.KillGoal)
		}
		if s == m.KillGoal {
			atGoal++
		}
	}
	if atGoal != 1 {
		return nil, models.UserErrorf("exactly one player must reach the kill goal of %d", m.KillGoal)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	if m.Advance < len(order) && scores[order[m.Advance-1]] == scores[order[m.Advance]] {
		return nil, models.UserErrorf("tie at the advancement cutoff, play it off and report again")
	}
	n := m.Advance
	if n > len(order) {
		n = len(order)
	}
	winners := make([]string, n)
	for i := 0; i < n; i++ {
		winners[i] = m.Players[order[i]]
	}
	return winners, nil
}
