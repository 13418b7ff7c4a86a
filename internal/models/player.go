package models

// PlayerStatus tracks a finals invitation.
type PlayerStatus string

const (
	StatusWaiting  PlayerStatus = "waiting"
	StatusAccepted PlayerStatus = "accepted"
	StatusDeclined PlayerStatus = "declined"
)

// PlayerType is a player's position in a Finals bracket.
type PlayerType string

const (
	TypeKnockout   PlayerType = "knockout"
	TypeWildcard   PlayerType = "wildcard"
	TypeStandby    PlayerType = "standby"
	TypeEliminated PlayerType = "eliminated"
)

// Player is a participant of the running event. It lives only as long as the event.
type Player struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CanHost    bool         `json:"canHost"`
	Withdrawn  bool         `json:"withdrawn,omitempty"`
	Homes      [3]string    `json:"homes"`
	Status     PlayerStatus `json:"status"`
	Type       PlayerType   `json:"type"`
	Seed       int          `json:"seed,omitempty"`
	Score      int          `json:"score,omitempty"`
	AnarchyMap string       `json:"anarchyMap,omitempty"`
}

// HasHomes reports whether all three home maps are declared.
func (p *Player) HasHomes() bool {
	for _, h := range p.Homes {
		if h == "" {
			return false
		}
	}
	return true
}

// Glicko-2 defaults for a player seen for the first time.
const (
	DefaultRating          = 1500.0
	DefaultRatingDeviation = 200.0
	DefaultVolatility      = 0.06
)

// RatedPlayer is the durable cross-event identity of a player.
type RatedPlayer struct {
	DiscordID       string  `json:"discordId"`
	Name            string  `json:"name"`
	Rating          float64 `json:"rating"`
	RatingDeviation float64 `json:"ratingDeviation"`
	Volatility      float64 `json:"volatility"`
}

// NewRatedPlayer seeds a rating with the defaults.
func NewRatedPlayer(id, name string) RatedPlayer {
	return RatedPlayer{
		DiscordID:       id,
		Name:            name,
		Rating:          DefaultRating,
		RatingDeviation: DefaultRatingDeviation,
		Volatility:      DefaultVolatility,
	}
}

// Standing is derived on demand from players and matches; it is never stored.
type Standing struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Wins     int      `json:"wins"`
	Losses   int      `json:"losses"`
	Score    int      `json:"score"`
	Defeated []string `json:"defeated"`
}
