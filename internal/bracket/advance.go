package bracket

import (
	"math/rand"
	"sort"

	"github.com/jason-s-yu/tourney/internal/models"
)

// Stage is what the Finals do next: crown a champion, run a knockout round, or
// run a wildcard anarchy round.
type Stage struct {
	Champion string
	Knockout *Plan
	Groups   []Group
}

// Advance applies a finished round: every player who did not win a resolved
// match is eliminated, and wildcard survivors are promoted once they fit the
// bracket, in finishing order.
func Advance(players []*models.Player, round []*models.Match) {
	byID := make(map[string]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	var finishers [][]string
	for _, m := range round {
		if !m.State.Resolved() || m.Result == nil {
			continue
		}
		for _, id := range m.Players {
			if p, ok := byID[id]; ok && !m.Won(id) {
				p.Type = models.TypeEliminated
			}
		}
		if m.Kind == models.KindWildcard {
			finishers = append(finishers, m.Result.Winners)
		}
	}

	// First places of every group, then second places, and so on.
	var order []string
	for rank := 0; ; rank++ {
		added := false
		for _, f := range finishers {
			if rank < len(f) {
				order = append(order, f[rank])
				added = true
			}
		}
		if !added {
			break
		}
	}
	Promote(players, order)
}

// Promote turns every wildcard into a knockout seed once knockouts and
// wildcards together fit the bracket. Seeds follow the existing knockouts: the
// players named in order first, then the rest by invitation score.
func Promote(players []*models.Player, order []string) {
	knockouts, wildcards := contenders(players)
	if len(wildcards) == 0 || len(knockouts)+len(wildcards) > MaxKnockout {
		return
	}

	next := 1
	for _, k := range knockouts {
		if k.Seed >= next {
			next = k.Seed + 1
		}
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(wildcards, func(i, j int) bool {
		ri, iok := rank[wildcards[i].ID]
		rj, jok := rank[wildcards[j].ID]
		if iok != jok {
			return iok
		}
		if iok {
			return ri < rj
		}
		return wildcards[i].Score > wildcards[j].Score
	})
	for _, w := range wildcards {
		w.Type = models.TypeKnockout
		w.Seed = next
		next++
	}
}

// Next decides the following stage from the players still in contention.
func Next(players []*models.Player, rng *rand.Rand) (Stage, error) {
	knockouts, wildcards := contenders(players)

	if len(wildcards) > 0 {
		spots := SpotsRequired(len(knockouts), len(knockouts)+len(wildcards))
		pool := make([]Entrant, len(wildcards))
		for i, w := range wildcards {
			pool[i] = Entrant{ID: w.ID, AnarchyMap: w.AnarchyMap}
		}
		groups, err := GroupWildcards(pool, spots, rng)
		if err != nil {
			return Stage{}, err
		}
		return Stage{Groups: groups}, nil
	}

	seeded := make([]Seeded, len(knockouts))
	for i, k := range knockouts {
		seeded[i] = Seeded{ID: k.ID, Seed: k.Seed}
	}
	plan, err := PlanKnockout(seeded)
	if err != nil {
		return Stage{}, err
	}
	if plan.Champion != "" {
		return Stage{Champion: plan.Champion}, nil
	}
	return Stage{Knockout: &plan}, nil
}

// contenders returns accepted knockout players by seed and wildcards by score.
func contenders(players []*models.Player) (knockouts, wildcards []*models.Player) {
	for _, p := range players {
		if p.Status != models.StatusAccepted || p.Withdrawn {
			continue
		}
		switch p.Type {
		case models.TypeKnockout:
			knockouts = append(knockouts, p)
		case models.TypeWildcard:
			wildcards = append(wildcards, p)
		}
	}
	sort.SliceStable(knockouts, func(i, j int) bool { return knockouts[i].Seed < knockouts[j].Seed })
	sort.SliceStable(wildcards, func(i, j int) bool { return wildcards[i].Score > wildcards[j].Score })
	return knockouts, wildcards
}
