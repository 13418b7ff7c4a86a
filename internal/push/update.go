// Package push fans tournament updates out to public observers.
package push

import "github.com/jason-s-yu/tourney/internal/models"

// AddPlayer announces a new Swiss entrant.
type AddPlayer struct {
	Name  string    `json:"name"`
	Homes [3]string `json:"homes"`
}

// Seed is one row of the Finals seeding.
type Seed struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Seed   int                 `json:"seed,omitempty"`
	Score  int                 `json:"score,omitempty"`
	Type   models.PlayerType   `json:"type"`
	Status models.PlayerStatus `json:"status"`
}

// Update is one observer message. Exactly one field is set.
type Update struct {
	Round         *int              `json:"round,omitempty"`
	AddPlayer     *AddPlayer        `json:"addPlayer,omitempty"`
	Match         *models.Match     `json:"match,omitempty"`
	WildcardMatch *models.Match     `json:"wildcardMatch,omitempty"`
	FinalsMatch   *models.Match     `json:"finalsMatch,omitempty"`
	Standings     []models.Standing `json:"standings,omitempty"`
	Seeding       []Seed            `json:"seeding,omitempty"`
	Withdraw      string            `json:"withdraw,omitempty"`
}

func RoundUpdate(round int) Update { return Update{Round: &round} }

func AddPlayerUpdate(p *models.Player) Update {
	return Update{AddPlayer: &AddPlayer{Name: p.Name, Homes: p.Homes}}
}

// MatchUpdate routes m to the field matching its kind. m is copied.
func MatchUpdate(m *models.Match) Update {
	c := *m
	switch m.Kind {
	case models.KindWildcard:
		return Update{WildcardMatch: &c}
	case models.KindKnockout:
		return Update{FinalsMatch: &c}
	default:
		return Update{Match: &c}
	}
}

func StandingsUpdate(s []models.Standing) Update {
	if s == nil {
		s = []models.Standing{}
	}
	return Update{Standings: s}
}

func SeedingUpdate(s []Seed) Update { return Update{Seeding: s} }

func WithdrawUpdate(name string) Update { return Update{Withdraw: name} }
