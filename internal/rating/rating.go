package rating

import (
	"sort"

	"github.com/jason-s-yu/tourney/internal/models"
)

// Outcome is one pairwise result fed to the rating period. ScoreA is 1 when A
// won, 0 when B won and 0.5 for a tie.
type Outcome struct {
	A      string
	B      string
	ScoreA float64
}

// FromMatches turns every decided match into pairwise outcomes. Two-player
// matches are binary; anarchy matches are decomposed into a ranked race.
func FromMatches(matches []*models.Match) []Outcome {
	var out []Outcome
	for _, m := range matches {
		if m == nil || !m.State.Resolved() || m.Result == nil {
			continue
		}
		switch {
		case len(m.Players) == 2:
			a, b := m.Players[0], m.Players[1]
			switch {
			case m.Won(a):
				out = append(out, Outcome{A: a, B: b, ScoreA: 1})
			case m.Won(b):
				out = append(out, Outcome{A: a, B: b, ScoreA: 0})
			}
		case len(m.Players) > 2 && len(m.Result.Scores) == len(m.Players):
			out = append(out, RaceOutcomes(m.Players, m.Result.Scores)...)
		}
	}
	return out
}

// RaceOutcomes ranks a free-for-all by score, groups tied scores together and
// emits one outcome per pair: a win for the better group, a draw inside a group.
func RaceOutcomes(players []string, scores []int) []Outcome {
	type entry struct {
		id    string
		score int
	}
	race := make([]entry, len(players))
	for i, p := range players {
		race[i] = entry{p, scores[i]}
	}
	sort.SliceStable(race, func(i, j int) bool {
		return race[i].score > race[j].score
	})

	var groups [][]string
	for i := 0; i < len(race); {
		j := i + 1
		for j < len(race) && race[j].score == race[i].score {
			j++
		}
		group := make([]string, 0, j-i)
		for k := i; k < j; k++ {
			group = append(group, race[k].id)
		}
		groups = append(groups, group)
		i = j
	}

	var out []Outcome
	for gi, group := range groups {
		for x := 0; x < len(group); x++ {
			for y := x + 1; y < len(group); y++ {
				out = append(out, Outcome{A: group[x], B: group[y], ScoreA: 0.5})
			}
		}
		for _, lower := range groups[gi+1:] {
			for _, a := range group {
				for _, b := range lower {
					out = append(out, Outcome{A: a, B: b, ScoreA: 1})
				}
			}
		}
	}
	return out
}

// Update runs one batched Glicko2 period over the event. current holds durable
// ratings; participants without one are seeded with the defaults. The returned
// map holds the new rating of every participant and of every player named in an
// outcome. It is a pure function of its inputs.
func Update(current map[string]models.RatedPlayer, participants []string, outcomes []Outcome) map[string]models.RatedPlayer {
	ids := make(map[string]struct{}, len(participants))
	for _, id := range participants {
		ids[id] = struct{}{}
	}
	for _, o := range outcomes {
		ids[o.A] = struct{}{}
		ids[o.B] = struct{}{}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	before := make(map[string]models.RatedPlayer, len(sorted))
	pre := make(map[string]Glicko2Rating, len(sorted))
	for _, id := range sorted {
		rp, ok := current[id]
		if !ok {
			rp = models.NewRatedPlayer(id, id)
		}
		before[id] = rp
		pre[id] = NewGlicko2Rating(rp.Rating, rp.RatingDeviation, rp.Volatility)
	}

	games := make(map[string][]game, len(sorted))
	for _, o := range outcomes {
		if o.A == o.B {
			continue
		}
		games[o.A] = append(games[o.A], game{opp: pre[o.B], score: o.ScoreA})
		games[o.B] = append(games[o.B], game{opp: pre[o.A], score: 1 - o.ScoreA})
	}

	updated := make(map[string]models.RatedPlayer, len(sorted))
	for _, id := range sorted {
		next := updatePeriod(pre[id], games[id])
		rp := before[id]
		rp.Rating = next.Rating()
		rp.RatingDeviation = next.RD()
		rp.Volatility = next.Sigma
		updated[id] = rp
	}
	return updated
}
