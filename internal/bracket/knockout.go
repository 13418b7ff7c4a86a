// Package bracket sizes the Finals: knockout topologies for up to six seeds,
// the wildcard anarchy stage that feeds them, and the two-leg series rules.
package bracket

import (
	"sort"

	"github.com/jason-s-yu/tourney/internal/models"
)

// MaxKnockout is the largest bracket with a fixed topology.
const MaxKnockout = 6

const (
	RoundFinal        = "Final"
	RoundSemifinal    = "Semifinal"
	RoundQuarterfinal = "Quarterfinal"
	RoundWildcard     = "Wildcard"
)

// Seeded is a knockout player and their seed (lower is better).
type Seeded struct {
	ID   string
	Seed int
}

// Selection asks the top remaining seed of the round to pick an opponent.
type Selection struct {
	Selector string   `json:"selector"`
	Options  []string `json:"options"`
}

// Plan is the next knockout round. Exactly one of Champion, Pairs or Selection
// describes what happens; Waiting players sit the round out.
type Plan struct {
	RoundName string
	Champion  string
	Pairs     [][2]string
	Selection *Selection
	Waiting   []string
}

// PlanKnockout maps the remaining knockout players onto the fixed topology for
// their count. Pairs list the higher seed first.
func PlanKnockout(knockouts []Seeded) (Plan, error) {
	s := make([]Seeded, len(knockouts))
	copy(s, knockouts)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Seed < s[j].Seed })
	id := func(i int) string { return s[i].ID }

	switch len(s) {
	case 1:
		return Plan{Champion: id(0)}, nil
	case 2:
		return Plan{RoundName: RoundFinal, Pairs: [][2]string{{id(0), id(1)}}}, nil
	case 3:
		return Plan{
			RoundName: RoundSemifinal,
			Pairs:     [][2]string{{id(1), id(2)}},
			Waiting:   []string{id(0)},
		}, nil
	case 4:
		return Plan{
			RoundName: RoundSemifinal,
			Selection: &Selection{Selector: id(0), Options: []string{id(1), id(2), id(3)}},
		}, nil
	case 5:
		return Plan{
			RoundName: RoundQuarterfinal,
			Pairs:     [][2]string{{id(3), id(4)}},
			Waiting:   []string{id(0), id(1), id(2)},
		}, nil
	case 6:
		return Plan{
			RoundName: RoundQuarterfinal,
			Selection: &Selection{Selector: id(2), Options: []string{id(3), id(4), id(5)}},
			Waiting:   []string{id(0), id(1)},
		}, nil
	}
	return Plan{}, models.Invariantf("no knockout topology for %d players", len(s))
}

// ResolveSelection turns a selector's choice into the round's two pairs: the
// selector against the chosen seed, and the two left over against each other.
func ResolveSelection(sel Selection, chosen string) ([][2]string, error) {
	if chosen == sel.Selector {
		return nil, models.UserErrorf("you cannot select yourself")
	}
	var rest []string
	found := false
	for _, o := range sel.Options {
		if o == chosen {
			found = true
			continue
		}
		rest = append(rest, o)
	}
	if !found {
		return nil, models.UserErrorf("%s is not one of the available opponents", chosen)
	}
	if len(rest) != 2 {
		return nil, models.Invariantf("selection offers %d options, expected 3", len(sel.Options))
	}
	return [][2]string{{sel.Selector, chosen}, {rest[0], rest[1]}}, nil
}
