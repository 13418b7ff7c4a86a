package rating

import (
	"testing"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateOneVsOne(t *testing.T) {
	current := map[string]models.RatedPlayer{
		"a": models.NewRatedPlayer("a", "Alpha"),
		"b": models.NewRatedPlayer("b", "Bravo"),
	}
	out := Update(current, []string{"a", "b"}, []Outcome{{A: "a", B: "b", ScoreA: 1}})

	a, b := out["a"], out["b"]
	assert.Greater(t, a.Rating, 1500.0, "winner's rating should have gone up")
	assert.Less(t, b.Rating, 1500.0, "loser's rating should have gone down")
	assert.Less(t, a.RatingDeviation, 200.0)
	assert.Less(t, b.RatingDeviation, 200.0)
	assert.InDelta(t, 1500-a.Rating, b.Rating-1500, 1e-9, "symmetric start should give symmetric change")
	assert.Equal(t, "Alpha", a.Name)
}

// Glickman's worked example: 1500/200/0.06 beats 1400/30, loses to 1550/100 and 1700/300.
func TestUpdateGlickmanExample(t *testing.T) {
	current := map[string]models.RatedPlayer{
		"p":  {DiscordID: "p", Rating: 1500, RatingDeviation: 200, Volatility: 0.06},
		"o1": {DiscordID: "o1", Rating: 1400, RatingDeviation: 30, Volatility: 0.06},
		"o2": {DiscordID: "o2", Rating: 1550, RatingDeviation: 100, Volatility: 0.06},
		"o3": {DiscordID: "o3", Rating: 1700, RatingDeviation: 300, Volatility: 0.06},
	}
	outcomes := []Outcome{
		{A: "p", B: "o1", ScoreA: 1},
		{A: "o2", B: "p", ScoreA: 1},
		{A: "p", B: "o3", ScoreA: 0},
	}
	out := Update(current, nil, outcomes)

	p := out["p"]
	assert.InDelta(t, 1464.06, p.Rating, 0.5)
	assert.InDelta(t, 151.52, p.RatingDeviation, 0.5)
	assert.InDelta(t, 0.06, p.Volatility, 0.001)
}

func TestUpdateIsPure(t *testing.T) {
	current := map[string]models.RatedPlayer{
		"a": {DiscordID: "a", Rating: 1620, RatingDeviation: 80, Volatility: 0.06},
	}
	outcomes := []Outcome{
		{A: "a", B: "b", ScoreA: 1},
		{A: "b", B: "c", ScoreA: 0.5},
		{A: "c", B: "a", ScoreA: 1},
	}
	first := Update(current, []string{"a", "b", "c", "d"}, outcomes)
	second := Update(current, []string{"a", "b", "c", "d"}, outcomes)
	assert.Equal(t, first, second)
	assert.Equal(t, 1620.0, current["a"].Rating, "input map must not be mutated")
}

func TestUpdateIdleParticipantOnlyGainsDeviation(t *testing.T) {
	out := Update(nil, []string{"idle"}, nil)
	idle := out["idle"]
	assert.Equal(t, models.DefaultRating, idle.Rating)
	assert.Greater(t, idle.RatingDeviation, models.DefaultRatingDeviation)
	assert.Equal(t, models.DefaultVolatility, idle.Volatility)
}

func TestRaceOutcomesGroupsTies(t *testing.T) {
	out := RaceOutcomes([]string{"c", "a", "b"}, []int{5, 10, 5})
	require.Len(t, out, 3)
	assert.Equal(t, Outcome{A: "a", B: "c", ScoreA: 1}, out[0])
	assert.Equal(t, Outcome{A: "a", B: "b", ScoreA: 1}, out[1])
	assert.Equal(t, Outcome{A: "c", B: "b", ScoreA: 0.5}, out[2])
}

func TestFromMatchesSkipsUndecided(t *testing.T) {
	matches := []*models.Match{
		{Players: []string{"a", "b"}, State: models.StateConfirmed, Result: &models.Result{Winners: []string{"b"}, Scores: []int{12, 20}}},
		{Players: []string{"c", "d"}, State: models.StateHomeSelected},
		{Players: []string{"e", "f"}, State: models.StateCancelled},
		{
			Kind:    models.KindWildcard,
			Players: []string{"x", "y", "z"},
			State:   models.StateClosed,
			Result:  &models.Result{Winners: []string{"x", "y"}, Scores: []int{30, 22, 9}},
		},
	}
	out := FromMatches(matches)
	require.Len(t, out, 4)
	assert.Equal(t, Outcome{A: "a", B: "b", ScoreA: 0}, out[0])
	assert.Equal(t, Outcome{A: "x", B: "y", ScoreA: 1}, out[1])
}
