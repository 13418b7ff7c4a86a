// Package standings derives the live table from players and confirmed matches.
package standings

import (
	"math/rand"
	"sort"

	"github.com/jason-s-yu/tourney/internal/models"
)

// Compute builds one Standing per player from every resolved two-player match.
// score = wins*3 + the wins of every opponent the player defeated.
func Compute(players []*models.Player, matches []*models.Match) []models.Standing {
	byID := make(map[string]*models.Standing, len(players))
	out := make([]*models.Standing, 0, len(players))
	for _, p := range players {
		s := &models.Standing{ID: p.ID, Name: p.Name, Defeated: []string{}}
		byID[p.ID] = s
		out = append(out, s)
	}

	for _, m := range matches {
		if !m.State.Resolved() || m.Result == nil || len(m.Players) != 2 {
			continue
		}
		a, b := m.Players[0], m.Players[1]
		var winner, loser string
		switch {
		case m.Won(a):
			winner, loser = a, b
		case m.Won(b):
			winner, loser = b, a
		default:
			continue
		}
		if s, ok := byID[winner]; ok {
			s.Wins++
			s.Defeated = append(s.Defeated, loser)
		}
		if s, ok := byID[loser]; ok {
			s.Losses++
		}
	}

	result := make([]models.Standing, len(out))
	for i, s := range out {
		s.Score = s.Wins * 3
		for _, d := range s.Defeated {
			if opp, ok := byID[d]; ok {
				s.Score += opp.Wins
			}
		}
		result[i] = *s
	}
	return result
}

// SortKey orders standings. The win and loss terms only separate exact ties.
func SortKey(s models.Standing) float64 {
	return float64(s.Score) + float64(s.Wins)/100 - float64(s.Losses)/10000
}

// Sort orders standings by SortKey descending. Equal keys end up in random
// order drawn from rng; a nil rng keeps input order for equal keys.
func Sort(list []models.Standing, rng *rand.Rand) {
	if rng != nil {
		rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	}
	sort.SliceStable(list, func(i, j int) bool {
		return SortKey(list[i]) > SortKey(list[j])
	})
}

// Points is the net record (wins minus losses) used by the pairing engine.
func Points(s models.Standing) int {
	return s.Wins - s.Losses
}
