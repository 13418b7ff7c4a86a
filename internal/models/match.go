package models

import "time"

// MatchKind distinguishes the three match formats.
type MatchKind string

const (
	KindSwiss    MatchKind = "swiss"
	KindKnockout MatchKind = "knockout"
	KindWildcard MatchKind = "wildcard"
)

// MatchState is the lifecycle state of a match.
type MatchState string

const (
	StateAwaitingHome MatchState = "awaiting_home"
	StateHomeSelected MatchState = "home_selected"
	StateReported     MatchState = "reported"
	StateConfirmed    MatchState = "confirmed"
	StateClosed       MatchState = "closed"
	StateCancelled    MatchState = "cancelled"
)

// Active reports whether a match in this state still occupies its players.
func (s MatchState) Active() bool {
	return s == StateAwaitingHome || s == StateHomeSelected || s == StateReported
}

// Resolved reports whether a result has been confirmed.
func (s MatchState) Resolved() bool {
	return s == StateConfirmed || s == StateClosed
}

// Report is an unconfirmed result. Scores are aligned with Match.Players.
type Report struct {
	Reporter string `json:"reporter"`
	Scores   []int  `json:"scores"`
}

// Result is a confirmed result. For knockout series Scores holds the aggregate.
type Result struct {
	Winners []string `json:"winners"`
	Scores  []int    `json:"scores"`
}

// Channels are opaque chat-platform identifiers for a match's rooms.
type Channels struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Match is one pairing (or anarchy group). Pending is set only while Reported,
// Result only while Confirmed or Closed, Channels only until the match is Closed.
type Match struct {
	ID        int       `json:"id"`
	Kind      MatchKind `json:"kind"`
	Players   []string  `json:"players"`
	Round     int       `json:"round"`
	RoundName string    `json:"roundName,omitempty"`

	State MatchState `json:"state"`

	// HomePlayer owns the offered Homes for two-player matches.
	HomePlayer string   `json:"homePlayer,omitempty"`
	Homes      []string `json:"homes,omitempty"`
	Home       string   `json:"home,omitempty"`

	// Knockout series bookkeeping. Legs holds the confirmed per-leg scores.
	Leg     int     `json:"leg,omitempty"`
	LegGoal int     `json:"legGoal,omitempty"`
	Legs    [][]int `json:"legs,omitempty"`

	// Wildcard anarchy parameters.
	KillGoal  int `json:"killGoal,omitempty"`
	Advance   int `json:"advance,omitempty"`
	Primaries int `json:"primaries,omitempty"`

	Pending  *Report   `json:"pending,omitempty"`
	Result   *Result   `json:"result,omitempty"`
	Channels *Channels `json:"channels,omitempty"`

	// Records are the persisted result rows, one per confirmed game.
	Records    []int64           `json:"records,omitempty"`
	ResultsRef string            `json:"resultsRef,omitempty"`
	Comments   map[string]string `json:"comments,omitempty"`
	TeardownAt *time.Time        `json:"teardownAt,omitempty"`
}

// Has reports whether id plays in the match.
func (m *Match) Has(id string) bool {
	return m.IndexOf(id) >= 0
}

// IndexOf returns the position of id in Players, or -1.
func (m *Match) IndexOf(id string) int {
	for i, p := range m.Players {
		if p == id {
			return i
		}
	}
	return -1
}

// Opponent returns the other player of a two-player match.
func (m *Match) Opponent(id string) string {
	if len(m.Players) != 2 {
		return ""
	}
	if m.Players[0] == id {
		return m.Players[1]
	}
	if m.Players[1] == id {
		return m.Players[0]
	}
	return ""
}

// Won reports whether id is among the confirmed winners.
func (m *Match) Won(id string) bool {
	if m.Result == nil {
		return false
	}
	for _, w := range m.Result.Winners {
		if w == id {
			return true
		}
	}
	return false
}
