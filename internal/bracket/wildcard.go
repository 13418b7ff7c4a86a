package bracket

import (
	"math/rand"

	"github.com/jason-s-yu/tourney/internal/models"
)

const (
	// MaxGroupSize caps an anarchy free-for-all.
	MaxGroupSize = 7
	// KillsPerPrimary scales an anarchy kill goal with the group size.
	KillsPerPrimary = 10
	// FallbackMap is used when no group member declared an anarchy map.
	FallbackMap = "random"
)

// Entrant is a wildcard player in seeding order.
type Entrant struct {
	ID         string
	AnarchyMap string
}

// Group is one anarchy match of the wildcard stage.
type Group struct {
	Players   []string
	Advance   int
	KillGoal  int
	Primaries int
	Home      string
}

// SpotsRequired is the number of knockout places left for wildcards.
func SpotsRequired(knockouts, total int) int {
	if total <= MaxKnockout {
		return total - knockouts
	}
	spots := MaxKnockout - knockouts
	if spots < 1 {
		spots = 1
	}
	return spots
}

// AdvancePlayers is how many players leave each group when several groups run
// in parallel.
func AdvancePlayers(spots, pool int) int {
	switch spots {
	case 3, 5, 6:
		if pool >= 15 {
			return 2
		}
		return 3
	default:
		return 2
	}
}

// GroupWildcards splits the wildcard pool into anarchy groups. A pool that
// fits one group advances exactly spots; larger pools are snaked across
// ceil(pool/7) groups by seed.
func GroupWildcards(pool []Entrant, spots int, rng *rand.Rand) ([]Group, error) {
	if len(pool) == 0 {
		return nil, models.Invariantf("wildcard stage started with an empty pool")
	}
	if spots < 1 || spots >= len(pool) {
		return nil, models.Invariantf("wildcard stage cannot advance %d of %d players", spots, len(pool))
	}

	if len(pool) <= MaxGroupSize {
		return []Group{newGroup(pool, spots, rng)}, nil
	}

	n := (len(pool) + MaxGroupSize - 1) / MaxGroupSize
	buckets := make([][]Entrant, n)
	for i, e := range pool {
		row, col := i/n, i%n
		if row%2 == 1 {
			col = n - 1 - col
		}
		buckets[col] = append(buckets[col], e)
	}

	advance := AdvancePlayers(spots, len(pool))
	groups := make([]Group, n)
	for i, b := range buckets {
		groups[i] = newGroup(b, advance, rng)
	}
	return groups, nil
}

func newGroup(members []Entrant, advance int, rng *rand.Rand) Group {
	primaries := (len(members) + 1) / 2
	g := Group{
		Players:   make([]string, len(members)),
		Advance:   advance,
		KillGoal:  KillsPerPrimary * primaries,
		Primaries: primaries,
		Home:      FallbackMap,
	}
	var maps []string
	for i, m := range members {
		g.Players[i] = m.ID
		if m.AnarchyMap != "" {
			maps = append(maps, m.AnarchyMap)
		}
	}
	if len(maps) > 0 {
		if rng == nil {
			g.Home = maps[0]
		} else {
			g.Home = maps[rng.Intn(len(maps))]
		}
	}
	return g
}
